package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// hexID builds a 64-character hex string from a single character, giving
// tests readable but structurally valid digests.
func hexID(c string) string {
	return strings.Repeat(c, 64)
}

func writeDir(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// newContentFixture creates a minimal content-addressable (overlay2) docker
// tree and returns its store.
func newContentFixture(t *testing.T) (*Store, string) {
	t.Helper()
	dockerDir := filepath.Join(t.TempDir(), "docker")
	require.NoError(t, os.MkdirAll(filepath.Join(dockerDir, "image", "overlay2"), 0755))

	layout, err := NewLayout(dockerDir, GenerationContentAddressable, DriverOverlay2)
	require.NoError(t, err)
	return NewStore(layout), dockerDir
}

// newLegacyFixture creates a minimal legacy (graph/aufs) docker tree and
// returns its store.
func newLegacyFixture(t *testing.T) (*Store, string) {
	t.Helper()
	dockerDir := filepath.Join(t.TempDir(), "docker")
	require.NoError(t, os.MkdirAll(filepath.Join(dockerDir, "graph"), 0755))

	layout, err := NewLayout(dockerDir, GenerationLegacy, DriverAufs)
	require.NoError(t, err)
	return NewStore(layout), dockerDir
}

// writeContainerConfig writes a container config file for the store's
// generation.
func writeContainerConfig(t *testing.T, store *Store, containerID, config string) {
	t.Helper()
	writeFile(t, store.Layout().ContainerConfigPath(containerID), config)
}

// writeLayer writes a layer descriptor, and for content-addressable stores
// a parent pointer file when parentID is non-empty. Legacy layers embed the
// parent in the descriptor itself, so callers put it in the JSON directly.
func writeLayer(t *testing.T, store *Store, layerID, descriptor, parentID string) {
	t.Helper()
	path, err := store.Layout().LayerDescriptorPath(layerID)
	require.NoError(t, err)
	writeFile(t, path, descriptor)

	if parentID == "" {
		return
	}
	parentPath, ok, err := store.Layout().LayerParentPath(layerID)
	require.NoError(t, err)
	require.True(t, ok)
	writeFile(t, parentPath, parentID)
}
