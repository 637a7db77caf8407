package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lueurxax/signal-ingest/internal/process/geocluster"
)

// WriteSnapshot encodes the current snapshot as JSON.
func (e *Engine) WriteSnapshot(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(e.snapshot.Load()); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	return nil
}

// SaveSnapshot writes the current snapshot to path.
func (e *Engine) SaveSnapshot(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}

	if err := e.WriteSnapshot(f); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot file: %w", err)
	}

	return nil
}

// LoadSnapshot publishes a snapshot read from path. Outside live mode this
// disables the retry passes.
func (e *Engine) LoadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot file: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	return e.ReadSnapshot(f)
}

// ReadSnapshot publishes a snapshot decoded from r.
func (e *Engine) ReadSnapshot(r io.Reader) error {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	snap.index = geocluster.NewIndex(snap.Items)

	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	e.publish(&snap)
	e.fromSnapshot.Store(true)

	e.logger.Info().
		Int(logFieldItems, len(snap.Items)).
		Int(logFieldClusters, len(snap.Clusters)).
		Msg("snapshot loaded")

	return nil
}
