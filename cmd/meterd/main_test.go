package main

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubny/taximeter"
	"github.com/cubny/taximeter/internal/config"
	"github.com/cubny/taximeter/internal/persistence"
	"github.com/cubny/taximeter/internal/storage"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		HTTPAddr:         "127.0.0.1:0",
		Store:            string(storage.KindFile),
		StoreDSN:         filepath.Join(dir, "data"),
		SnapshotInterval: time.Second,
		TickInterval:     time.Second,
		ExportDir:        filepath.Join(dir, "exports"),
		Concurrency:      1,
		Permission:       taximeter.PermissionGranted,
		ReplayInterval:   time.Millisecond,
		CORSOrigins:      []string{"*"},
		Presets:          taximeter.DefaultPresets,
	}
}

func TestRun_RestoresPendingSnapshot(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	store, err := storage.NewFile(cfg.StoreDSN)
	require.Nil(t, err)
	gateway := persistence.New(store)
	startedAt := time.Now().Add(-10 * time.Minute)
	session, err := taximeter.Session{}.Start(taximeter.DefaultPresets[0], startedAt)
	require.Nil(t, err)
	require.Nil(t, gateway.SaveSnapshot(ctx, session.Snapshot(startedAt.Add(time.Minute))))

	signals := make(chan os.Signal, 1)
	signals <- syscall.SIGINT
	require.Nil(t, Run(ctx, cfg, signals))

	snap, err := gateway.LoadSnapshot(ctx)
	require.Nil(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, taximeter.StatePaused, snap.State)
	assert.Equal(t, int64(60000), snap.ElapsedAccumulatedMs)
}

func TestRun_StopsWithContext(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, make(chan os.Signal)) }()

	cancel()
	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{name: "unknown store", mutate: func(cfg *config.Config) { cfg.Store = "mongo" }},
		{name: "missing replay", mutate: func(cfg *config.Config) { cfg.ReplayFile = "/does/not/exist.csv" }},
		{name: "no presets", mutate: func(cfg *config.Config) { cfg.Presets = nil }},
		{name: "bad address", mutate: func(cfg *config.Config) { cfg.HTTPAddr = "127.0.0.1:-1" }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := testConfig(t)
			test.mutate(&cfg)
			assert.NotNil(t, Run(context.Background(), cfg, make(chan os.Signal)))
		})
	}
}

func TestNewFeed(t *testing.T) {
	cfg := testConfig(t)
	feed, pusher, err := newFeed(cfg)
	require.Nil(t, err)
	assert.NotNil(t, feed)
	assert.NotNil(t, pusher)

	cfg.ReplayFile = filepath.Join(t.TempDir(), "drive.csv")
	require.Nil(t, os.WriteFile(cfg.ReplayFile, []byte("1,35.68,139.76,1792314000\n"), 0o644))
	feed, pusher, err = newFeed(cfg)
	require.Nil(t, err)
	assert.NotNil(t, feed)
	assert.Nil(t, pusher)
}
