package storage

import (
	"fmt"
	"os"
	"sort"

	"github.com/samber/lo"

	"dockersleuth/pkg/errdefs"
)

// SkippedContainer records one container directory the catalog could not
// load during enumeration.
type SkippedContainer struct {
	ID  string
	Err error
}

// PartialWarning reports a best-effort enumeration: how many entries loaded
// and which were skipped. It is nil when the catalog loaded everything.
type PartialWarning struct {
	Succeeded int
	Skipped   []SkippedContainer
}

func (w *PartialWarning) String() string {
	return fmt.Sprintf("loaded %d containers, skipped %d", w.Succeeded, len(w.Skipped))
}

// Catalog enumerates containers from the containers directory and builds
// records via the store. A directory that fails to load is a per-item
// failure reported through PartialWarning, never a catalog-wide failure.
type Catalog struct {
	store *Store
}

// NewCatalog creates a container catalog over the given store.
func NewCatalog(store *Store) *Catalog {
	return &Catalog{store: store}
}

// ListAll returns records for every loadable container, in directory order.
func (c *Catalog) ListAll() ([]*ContainerRecord, *PartialWarning, error) {
	dir := c.store.Layout().ContainersDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("containers directory %s: %w", dir, errdefs.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("read containers directory %s: %w", dir, err)
	}

	var records []*ContainerRecord
	var skipped []SkippedContainer
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := c.store.Container(entry.Name())
		if err != nil {
			skipped = append(skipped, SkippedContainer{ID: entry.Name(), Err: err})
			continue
		}
		records = append(records, rec)
	}

	if len(skipped) == 0 {
		return records, nil, nil
	}
	return records, &PartialWarning{Succeeded: len(records), Skipped: skipped}, nil
}

// List returns containers sorted ascending by start time, never-started
// containers first. With onlyRunning it keeps only records whose persisted
// state says running.
func (c *Catalog) List(onlyRunning bool) ([]*ContainerRecord, *PartialWarning, error) {
	records, warn, err := c.ListAll()
	if err != nil {
		return nil, warn, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		left, right := records[i].StartedAt, records[j].StartedAt
		switch {
		case left == nil:
			return right != nil
		case right == nil:
			return false
		}
		return left.Before(*right)
	})

	if onlyRunning {
		records = lo.Filter(records, func(rec *ContainerRecord, _ int) bool {
			return rec.Running
		})
	}
	return records, warn, nil
}
