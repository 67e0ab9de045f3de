package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cubny/taximeter"
	"github.com/cubny/taximeter/internal/config"
	"github.com/cubny/taximeter/internal/httpapi"
	"github.com/cubny/taximeter/internal/location"
	"github.com/cubny/taximeter/internal/persistence"
	"github.com/cubny/taximeter/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// .env is optional, the environment wins over it
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %s\n", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := Run(context.Background(), cfg, signals); err != nil {
		log.Fatalf("meterd: %s\n", err)
	}
	log.Println("exit.")
}

// Run wires the meter to its store, its location feed and the HTTP api, restores an
// interrupted session and serves until a signal arrives or ctx is done
func Run(ctx context.Context, cfg config.Config, signals <-chan os.Signal) error {
	store, err := storage.Open(ctx, storage.Kind(cfg.Store), cfg.StoreDSN)
	if err != nil {
		return err
	}
	defer store.Close()
	gateway := persistence.New(store)

	feed, pusher, err := newFeed(cfg)
	if err != nil {
		return err
	}

	meter, err := taximeter.New(cfg.Presets, gateway, feed,
		taximeter.WithTickInterval(cfg.TickInterval),
		taximeter.WithSnapshotInterval(cfg.SnapshotInterval),
		taximeter.WithTickHandler(logTick),
	)
	if err != nil {
		return err
	}
	defer meter.Close()

	restorePending(ctx, meter)

	runCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		meter.Run(runCtx)
	}()
	defer func() {
		stop()
		wg.Wait()
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(httpapi.NewHandler(meter, gateway, cfg.ExportDir, pusher), cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[http] listening on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case sig := <-signals:
		log.Printf("received %s, shutting down", sig)
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newFeed replays a recording when one is configured and otherwise takes positions from the api.
// The pusher is nil for a replay.
func newFeed(cfg config.Config) (taximeter.LocationFeed, httpapi.Pusher, error) {
	if cfg.ReplayFile != "" {
		replay, err := location.OpenReplayFeed(cfg.ReplayFile, cfg.ReplayInterval)
		if err != nil {
			return nil, nil, err
		}
		replay.SetPermission(cfg.Permission)
		log.Printf("[location] replaying %s, %d positions", cfg.ReplayFile, replay.Remaining())
		return replay, nil, nil
	}
	push := location.NewPushFeed(cfg.Permission)
	return push, push, nil
}

// restorePending brings an interrupted session back in the paused state
func restorePending(ctx context.Context, meter *taximeter.Meter) {
	snap, err := meter.PendingSnapshot(ctx)
	if err != nil {
		log.Printf("[meter] load snapshot: %s", err)
		return
	}
	if snap == nil {
		return
	}
	st, err := meter.Restore(ctx, *snap)
	if err != nil {
		log.Printf("[meter] could not restore the interrupted session: %s", err)
		return
	}
	log.Printf("[meter] restored interrupted session: %s, %d yen, %s", st.State, st.FareYen, st.Elapsed)
}

func logTick(st taximeter.Status) {
	if st.State != taximeter.StateRunning {
		return
	}
	log.Printf("[meter] %s  %.3f km  %d yen", st.Elapsed, st.DistanceKm, st.FareYen)
}
