package history

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Interpolator answers brightness queries for a long running process. It
// caches the stored document and reloads it only when the store's
// modification time has advanced past the cached one.
type Interpolator struct {
	store  Store
	logger *slog.Logger

	mu      sync.Mutex
	doc     Document
	modTime time.Time
}

// NewInterpolator loads the current document from store.
func NewInterpolator(store Store, logger *slog.Logger) (*Interpolator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Interpolator{store: store, logger: logger}
	if err := i.reload(); err != nil {
		return nil, err
	}
	return i, nil
}

// reload reads the modification time before the document so an update
// landing in between is picked up by the next freshness check.
func (i *Interpolator) reload() error {
	mt, err := i.store.ModTime()
	if err != nil {
		return err
	}
	doc, err := i.store.Load()
	if err != nil {
		return err
	}
	i.doc = doc
	i.modTime = mt
	return nil
}

// refresh reloads the document if the store has changed.
func (i *Interpolator) refresh() error {
	mt, err := i.store.ModTime()
	if err != nil {
		return err
	}
	if !mt.After(i.modTime) {
		return nil
	}

	i.logger.Debug("history changed, reloading", "mod_time", mt)
	if err := i.reload(); err != nil {
		return fmt.Errorf("reload history: %w", err)
	}
	return nil
}

// Interpolate returns the recommended brightness for light using the newest
// history.
func (i *Interpolator) Interpolate(light float64) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.refresh(); err != nil {
		return 0, err
	}
	return Interpolate(i.doc.Newest, light)
}

// Document returns a copy of the cached document after a freshness check.
func (i *Interpolator) Document() (Document, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.refresh(); err != nil {
		return Document{}, err
	}
	return i.doc.Clone(), nil
}
