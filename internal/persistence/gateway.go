// Package persistence stores the meter's in-progress snapshot and its drive history as JSON
// blobs in a storage.Store. Missing or corrupt records read as empty.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/cubny/taximeter"
	"github.com/cubny/taximeter/internal/storage"
)

const (
	historyKey  = "history"
	snapshotKey = "snapshot"
)

var _ taximeter.Gateway = (*Gateway)(nil)

// Gateway implements taximeter.Gateway on top of a blob store
type Gateway struct {
	store storage.Store
	now   func() time.Time

	// mu serializes the read-modify-write of the history
	mu sync.Mutex
}

func New(store storage.Store) *Gateway {
	return &Gateway{store: store, now: time.Now}
}

// LoadHistory returns the stored drives, newest first and at most taximeter.MaxHistory
func (g *Gateway) LoadHistory(ctx context.Context) ([]taximeter.HistoryItem, error) {
	b, err := g.store.Get(ctx, historyKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []taximeter.HistoryItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var items []taximeter.HistoryItem
	if err := json.Unmarshal(b, &items); err != nil {
		log.Printf("[persistence] history is corrupt, treating it as empty: %s", err)
		return []taximeter.HistoryItem{}, nil
	}
	if items == nil {
		items = []taximeter.HistoryItem{}
	}
	if len(items) > taximeter.MaxHistory {
		items = items[:taximeter.MaxHistory]
	}
	return items, nil
}

// AppendHistory puts item in front of the stored history and drops what falls beyond the bound
func (g *Gateway) AppendHistory(ctx context.Context, item taximeter.HistoryItem) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	items, err := g.LoadHistory(ctx)
	if err != nil {
		return err
	}
	b, err := json.Marshal(taximeter.PrependHistory(items, item))
	if err != nil {
		return err
	}
	if err := g.store.Put(ctx, historyKey, b); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ExportHistoryText writes the history as a plain text table into dir and returns the file path
func (g *Gateway) ExportHistoryText(ctx context.Context, dir string) (string, error) {
	items, err := g.LoadHistory(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	now := g.now()
	path := filepath.Join(dir, fmt.Sprintf("taximeter-history-%s.txt", now.Format("20060102-150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(f, "Taximeter drive history, %d drives, exported %s\n\n", len(items), now.Format(time.RFC3339))
	w := tabwriter.NewWriter(f, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tFinished\tPreset\tFare (yen)\tDistance (km)\tElapsed\tPauses\tAccepted\tFiltered")
	for i, it := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.3f\t%s\t%d\t%d\t%d\n",
			i+1,
			time.UnixMilli(it.FinishedAtMs).Format("2006-01-02 15:04:05"),
			it.PresetID,
			it.FareYen,
			it.DistanceKm,
			taximeter.FormatDuration(it.Elapsed()),
			len(it.PauseLogs),
			it.AcceptedSampleCount,
			it.FilteredSampleCount,
		)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// LoadSnapshot returns nil when there is no snapshot or it cannot be used
func (g *Gateway) LoadSnapshot(ctx context.Context) (*taximeter.Snapshot, error) {
	b, err := g.store.Get(ctx, snapshotKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap taximeter.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		log.Printf("[persistence] snapshot is corrupt, ignoring it: %s", err)
		return nil, nil
	}
	if err := snap.Validate(); err != nil {
		log.Printf("[persistence] snapshot is unusable, ignoring it: %s", err)
		return nil, nil
	}
	return &snap, nil
}

func (g *Gateway) SaveSnapshot(ctx context.Context, snap taximeter.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := g.store.Put(ctx, snapshotKey, b); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (g *Gateway) ClearSnapshot(ctx context.Context) error {
	if err := g.store.Delete(ctx, snapshotKey); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}
