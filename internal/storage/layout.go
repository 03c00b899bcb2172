package storage

import (
	"fmt"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"dockersleuth/pkg/errdefs"
	"dockersleuth/pkg/fileutil"
)

// Layout exposes the directory conventions of one (generation, driver)
// combination. All filesystem-path knowledge for a metadata generation
// lives behind this interface; Store and Resolver never build paths
// themselves.
//
// Layouts form a closed set of variants resolved once at construction.
// NewLayout fails with errdefs.ErrUnsupportedConfiguration for anything
// outside that set, before any file is touched.
type Layout interface {
	Generation() Generation
	Driver() string

	// DockerDir returns the data directory this layout was built for.
	DockerDir() string

	// ContainersDir returns the directory whose subdirectories are the
	// known container IDs.
	ContainersDir() string

	// ContainerConfigPath returns the path of a container's config file.
	ContainerConfigPath(containerID string) string

	// LayerDescriptorPath returns the path of a layer's descriptor file.
	// For generation 2 it fails with errdefs.ErrParse when the layer ID is
	// not a valid "<algorithm>:<digest>" pair.
	LayerDescriptorPath(layerID string) (string, error)

	// LayerParentPath returns the path of a layer's dedicated parent
	// pointer file. ok is false for generation 1, whose parent reference is
	// embedded in the descriptor itself.
	LayerParentPath(layerID string) (path string, ok bool, err error)

	// LayerSizePath returns the path of a layer's size file. ok is false
	// when the layout does not record per-layer sizes.
	LayerSizePath(layerID string) (path string, ok bool)

	// RepositoryIndexPath returns the path of the repository index file.
	RepositoryIndexPath() string

	// MountIDPath returns the path of the container-to-mount-ID side file.
	// ok is false for generation 1, which has no such indirection.
	MountIDPath(containerID string) (path string, ok bool)

	// GraphLayerDir returns a per-layer directory directly under the graph
	// root. ok is false for generation 2. The lineage walk probes this to
	// decide whether a container ID doubles as its own first layer.
	GraphLayerDir(layerID string) (path string, ok bool)
}

// NewLayout builds the Layout for a (generation, driver) combination.
func NewLayout(dockerDir string, gen Generation, driver string) (Layout, error) {
	switch gen {
	case GenerationLegacy:
		if driver != DriverAufs {
			return nil, fmt.Errorf("generation 1 driver %q: %w", driver, errdefs.ErrUnsupportedConfiguration)
		}
		return &legacyLayout{dockerDir: dockerDir}, nil
	case GenerationContentAddressable:
		switch driver {
		case DriverAufs, DriverOverlay, DriverOverlay2:
			return &contentLayout{dockerDir: dockerDir, driver: driver}, nil
		}
		return nil, fmt.Errorf("generation 2 driver %q: %w", driver, errdefs.ErrUnsupportedConfiguration)
	}
	return nil, fmt.Errorf("storage generation %d: %w", gen, errdefs.ErrUnsupportedConfiguration)
}

// contentDrivers lists the generation-2 drivers in detection probe order.
var contentDrivers = []string{DriverOverlay2, DriverOverlay, DriverAufs}

// DetectLayout probes dockerDir for a recognizable storage layout: a graph/
// directory means generation 1, a single populated image/<driver>/ directory
// means generation 2 with that driver. Ambiguous or unrecognizable trees
// fail with errdefs.ErrUnsupportedConfiguration.
func DetectLayout(dockerDir string) (Layout, error) {
	if fileutil.IsDir(filepath.Join(dockerDir, "graph")) {
		return NewLayout(dockerDir, GenerationLegacy, DriverAufs)
	}

	var found []string
	for _, driver := range contentDrivers {
		if fileutil.IsDir(filepath.Join(dockerDir, "image", driver)) {
			found = append(found, driver)
		}
	}
	switch len(found) {
	case 1:
		return NewLayout(dockerDir, GenerationContentAddressable, found[0])
	case 0:
		return nil, fmt.Errorf("no storage layout under %s: %w", dockerDir, errdefs.ErrUnsupportedConfiguration)
	}
	return nil, fmt.Errorf("multiple image drivers %v under %s: %w", found, dockerDir, errdefs.ErrUnsupportedConfiguration)
}

// legacyLayout implements the generation-1 graph/ conventions.
type legacyLayout struct {
	dockerDir string
}

func (l *legacyLayout) Generation() Generation { return GenerationLegacy }
func (l *legacyLayout) Driver() string { return DriverAufs }
func (l *legacyLayout) DockerDir() string { return l.dockerDir }

func (l *legacyLayout) ContainersDir() string {
	return filepath.Join(l.dockerDir, "containers")
}

func (l *legacyLayout) ContainerConfigPath(containerID string) string {
	return filepath.Join(l.ContainersDir(), containerID, "config.json")
}

func (l *legacyLayout) LayerDescriptorPath(layerID string) (string, error) {
	return filepath.Join(l.dockerDir, "graph", layerID, "json"), nil
}

func (l *legacyLayout) LayerParentPath(string) (string, bool, error) {
	// The parent reference is a field inside the descriptor JSON.
	return "", false, nil
}

func (l *legacyLayout) LayerSizePath(layerID string) (string, bool) {
	return filepath.Join(l.dockerDir, "graph", layerID, "layersize"), true
}

func (l *legacyLayout) RepositoryIndexPath() string {
	return filepath.Join(l.dockerDir, "repositories-aufs")
}

func (l *legacyLayout) MountIDPath(string) (string, bool) {
	return "", false
}

func (l *legacyLayout) GraphLayerDir(layerID string) (string, bool) {
	return filepath.Join(l.dockerDir, "graph", layerID), true
}

// contentLayout implements the generation-2 image/<driver>/ conventions.
type contentLayout struct {
	dockerDir string
	driver    string
}

func (l *contentLayout) Generation() Generation { return GenerationContentAddressable }
func (l *contentLayout) Driver() string { return l.driver }
func (l *contentLayout) DockerDir() string { return l.dockerDir }

func (l *contentLayout) imageDir() string {
	return filepath.Join(l.dockerDir, "image", l.driver)
}

func (l *contentLayout) ContainersDir() string {
	return filepath.Join(l.dockerDir, "containers")
}

func (l *contentLayout) ContainerConfigPath(containerID string) string {
	return filepath.Join(l.ContainersDir(), containerID, "config.v2.json")
}

func (l *contentLayout) LayerDescriptorPath(layerID string) (string, error) {
	dgst, err := parseLayerID(layerID)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.imageDir(), "imagedb", "content", dgst.Algorithm().String(), dgst.Encoded()), nil
}

func (l *contentLayout) LayerParentPath(layerID string) (string, bool, error) {
	dgst, err := parseLayerID(layerID)
	if err != nil {
		return "", false, err
	}
	path := filepath.Join(l.imageDir(), "imagedb", "metadata", dgst.Algorithm().String(), dgst.Encoded(), "parent")
	return path, true, nil
}

func (l *contentLayout) LayerSizePath(string) (string, bool) {
	// Per-image-layer sizes live in the layerdb keyed by chain ID, not by
	// the image-config IDs this package walks.
	return "", false
}

func (l *contentLayout) RepositoryIndexPath() string {
	return filepath.Join(l.imageDir(), "repositories.json")
}

func (l *contentLayout) MountIDPath(containerID string) (string, bool) {
	return filepath.Join(l.imageDir(), "layerdb", "mounts", containerID, "mount-id"), true
}

func (l *contentLayout) GraphLayerDir(string) (string, bool) {
	return "", false
}

// parseLayerID validates a generation-2 layer identifier. It must split
// into exactly two non-empty components on the first ":"; go-digest also
// rejects unknown algorithms and bad hex.
func parseLayerID(layerID string) (digest.Digest, error) {
	dgst, err := digest.Parse(layerID)
	if err != nil {
		return "", fmt.Errorf("layer id %q: %v: %w", layerID, err, errdefs.ErrParse)
	}
	return dgst, nil
}
