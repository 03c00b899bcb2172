package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockersleuth/pkg/errdefs"
)

func TestResolveContentAddressableChain(t *testing.T) {
	store, _ := newContentFixture(t)

	leaf := "sha256:" + hexID("1")
	mid := "sha256:" + hexID("2")
	root := "sha256:" + hexID("3")
	writeLayer(t, store, leaf, `{}`, mid)
	writeLayer(t, store, mid, `{}`, root)
	writeLayer(t, store, root, `{}`, "")

	rec := &ContainerRecord{ID: "c1", ImageRef: leaf}
	lin, err := NewResolver(store).Resolve(rec)
	require.NoError(t, err)

	assert.Equal(t, []string{leaf, mid, root}, lin.Layers, "leaf to root order")
	assert.False(t, lin.Truncated)
}

func TestResolveSingleLayerChain(t *testing.T) {
	store, _ := newContentFixture(t)
	layer := "sha256:" + hexID("4")
	writeLayer(t, store, layer, `{}`, "")

	lin, err := NewResolver(store).Resolve(&ContainerRecord{ID: "c1", ImageRef: layer})
	require.NoError(t, err)
	assert.Equal(t, []string{layer}, lin.Layers)
	assert.False(t, lin.Truncated)
}

func TestResolveIsIdempotent(t *testing.T) {
	store, _ := newContentFixture(t)
	leaf := "sha256:" + hexID("5")
	root := "sha256:" + hexID("6")
	writeLayer(t, store, leaf, `{}`, root)
	writeLayer(t, store, root, `{}`, "")

	resolver := NewResolver(store)
	rec := &ContainerRecord{ID: "c1", ImageRef: leaf}

	first, err := resolver.Resolve(rec)
	require.NoError(t, err)
	second, err := resolver.Resolve(rec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveMissingDescriptorTruncates(t *testing.T) {
	store, _ := newContentFixture(t)
	leaf := "sha256:" + hexID("7")
	// The leaf descriptor is absent: the chain still contains the leaf but
	// is flagged as possibly incomplete.
	lin, err := NewResolver(store).Resolve(&ContainerRecord{ID: "c1", ImageRef: leaf})
	require.NoError(t, err)

	assert.Equal(t, []string{leaf}, lin.Layers)
	assert.True(t, lin.Truncated)
}

func TestResolveCycleTruncates(t *testing.T) {
	store, _ := newContentFixture(t)
	a := "sha256:" + hexID("8")
	b := "sha256:" + hexID("9")
	writeLayer(t, store, a, `{}`, b)
	writeLayer(t, store, b, `{}`, a)

	lin, err := NewResolver(store).Resolve(&ContainerRecord{ID: "c1", ImageRef: a})
	require.NoError(t, err)

	assert.Equal(t, []string{a, b}, lin.Layers)
	assert.True(t, lin.Truncated)
}

func TestResolveMalformedImageRef(t *testing.T) {
	store, _ := newContentFixture(t)

	_, err := NewResolver(store).Resolve(&ContainerRecord{ID: "c1", ImageRef: "not-a-digest"})
	require.ErrorIs(t, err, errdefs.ErrParse)
}

func TestResolveNoStartingLayer(t *testing.T) {
	store, _ := newContentFixture(t)

	lin, err := NewResolver(store).Resolve(&ContainerRecord{ID: "c1"})
	require.NoError(t, err)
	assert.Empty(t, lin.Layers)
	assert.False(t, lin.Truncated)
}

func TestResolveLegacyGraphDirStartsAtContainer(t *testing.T) {
	store, dockerDir := newLegacyFixture(t)

	// A per-container graph directory means the container ID doubles as
	// the first layer.
	containerID := hexID("c")
	parent := hexID("d")
	require.NoError(t, writeDir(filepath.Join(dockerDir, "graph", containerID)))
	writeLayer(t, store, containerID, `{"parent": "`+parent+`"}`, "")
	writeLayer(t, store, parent, `{}`, "")

	lin, err := NewResolver(store).Resolve(&ContainerRecord{ID: containerID, ImageRef: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, []string{containerID, parent}, lin.Layers)
	assert.False(t, lin.Truncated)
}

func TestResolveLegacyFallsBackToImageRef(t *testing.T) {
	store, _ := newLegacyFixture(t)
	image := hexID("e")
	writeLayer(t, store, image, `{}`, "")

	lin, err := NewResolver(store).Resolve(&ContainerRecord{ID: "gone", ImageRef: image})
	require.NoError(t, err)
	assert.Equal(t, []string{image}, lin.Layers)
}
