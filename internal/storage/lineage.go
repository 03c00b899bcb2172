package storage

import (
	"dockersleuth/pkg/fileutil"
)

// Resolver walks parent-layer pointers starting from a container to produce
// its ordered layer chain. The result is recomputed on every call.
type Resolver struct {
	store *Store
}

// NewResolver creates a lineage resolver over the given store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the container's layer chain, most-specific layer first.
//
// The starting layer is the container ID itself when the legacy layout has
// a graph directory for it, otherwise the container's declared image
// reference. A container with neither yields an empty chain, not an error.
// An absent parent pointer ends the chain; a missing layer descriptor
// ends it too but marks the result Truncated, since the chain may be
// incomplete rather than complete.
func (r *Resolver) Resolve(rec *ContainerRecord) (*Lineage, error) {
	current := rec.ImageRef
	if dir, ok := r.store.Layout().GraphLayerDir(rec.ID); ok && fileutil.IsDir(dir) {
		current = rec.ID
	}
	if current == "" {
		return &Lineage{}, nil
	}

	lin := &Lineage{}
	seen := make(map[string]bool)
	for current != "" {
		if seen[current] {
			// A cycle in the parent relation truncates the chain rather
			// than looping forever.
			lin.Truncated = true
			break
		}
		seen[current] = true
		lin.Layers = append(lin.Layers, current)

		desc, err := r.store.Layer(current)
		if err != nil {
			return nil, err
		}
		if desc == nil {
			lin.Truncated = true
			break
		}

		parent, found, err := r.store.LayerParent(current)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		current = parent
	}

	return lin, nil
}
