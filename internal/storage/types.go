// Package storage reads container and image metadata from an on-disk Docker
// data directory without talking to the daemon.
//
// It normalizes the two incompatible metadata generations Docker has used
// over its history (the legacy graph/ layout and the content-addressable
// image/<driver>/ layout) into one container/image model, reconstructs layer
// lineage, and enumerates containers. All reads are against a presumed
// quiescent data directory; nothing here modifies it.
package storage

import (
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Generation identifies one of the two on-disk metadata schemas.
type Generation int

const (
	// GenerationLegacy is the graph/-based layout (Docker storage v1).
	GenerationLegacy Generation = 1

	// GenerationContentAddressable is the image/<driver>/ layout keyed by
	// algorithm:digest identifiers (Docker storage v2).
	GenerationContentAddressable Generation = 2
)

// Union-filesystem driver names recognized by this package.
const (
	DriverAufs     = "aufs"
	DriverOverlay  = "overlay"
	DriverOverlay2 = "overlay2"
)

// Volume is a legacy (generation 1) bind-mount declaration.
type Volume struct {
	// ContainerPath is the mount destination inside the container.
	ContainerPath string

	// HostPath is the mount source on the host.
	HostPath string
}

// MountPoint is a structured (generation 2) bind-mount declaration.
type MountPoint struct {
	// Source is the host path. Empty means "named volume"; the actual
	// source is then derived from VolumeName.
	Source string

	// Destination is the mount destination inside the container.
	Destination string

	// VolumeName is the named-volume name, if any.
	VolumeName string
}

// ContainerRecord is a read-only projection of one container's persisted
// metadata. It is reconstructed from disk on every query.
type ContainerRecord struct {
	// ID is the engine-assigned container identifier.
	ID string

	// ImageRef references the image the container was created from: a plain
	// layer ID for generation 1, "<algorithm>:<digest>" for generation 2.
	ImageRef string

	// ImageName is the human-readable image reference from the container's
	// config (e.g. "busybox").
	ImageName string

	// Name is the container name as stored (Docker persists it with a
	// leading slash).
	Name string

	// Labels attached to the container. Nil when the config carries none.
	Labels map[string]string

	CreatedAt time.Time

	// StartedAt is nil if the container was never started.
	StartedAt *time.Time

	// Running is false when the config has no State block.
	Running bool

	// Volumes holds generation-1 bind declarations, sorted by container
	// path. Empty for generation 2.
	Volumes []Volume

	// MountPoints holds generation-2 bind declarations, sorted by their
	// config key. Empty for generation 1.
	MountPoints []MountPoint

	// MountID is the backend mount identifier (generation 2 only). It is
	// resolved best-effort from the layerdb mounts side file and stays
	// empty when that file is absent; it is only needed for mount planning.
	MountID string
}

// LayerDescriptor describes one filesystem layer.
type LayerDescriptor struct {
	// ID is the layer identifier: a plain hash for generation 1,
	// "<algorithm>:<digest>" for generation 2.
	ID string

	// ParentID references the next layer toward the root. Empty means this
	// is the root layer.
	ParentID string

	CreatedAt time.Time

	// Command is the build command that produced the layer, if recorded.
	Command []string

	Comment string

	// SizeBytes is 0 when the layout does not expose per-layer sizes
	// (generation 2 keeps sizes in the layerdb, not the image config).
	SizeBytes int64

	// DiffIDs lists the uncompressed layer digests from the image config's
	// rootfs section (generation 2 only).
	DiffIDs []digest.Digest

	// History lists the build steps recorded in the image config
	// (generation 2 only).
	History []ocispec.History
}

// Lineage is the ordered layer chain composing a container's root
// filesystem, most-specific layer first.
type Lineage struct {
	// Layers holds layer IDs from leaf to root.
	Layers []string

	// Truncated is set when the walk stopped because a layer's own
	// descriptor could not be read, meaning the chain may be incomplete
	// rather than naturally terminated. Callers may surface this; the
	// chain itself is still returned.
	Truncated bool
}
