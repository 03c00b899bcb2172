package mountplan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dockersleuth/internal/storage"
	"dockersleuth/pkg/errdefs"
	"dockersleuth/pkg/fileutil"
)

// unionStrategy builds the operation(s) reconstructing the merged root
// filesystem for one driver family.
type unionStrategy func(p *Planner, rec *storage.ContainerRecord, mountDir string) ([]Op, error)

// Planner combines a container's declared volumes and its resolved layer
// chain into a mount plan. The driver-specific union strategy is selected
// once at construction from the layout's closed (generation, driver) set.
type Planner struct {
	store    *storage.Store
	resolver *storage.Resolver
	union    unionStrategy

	dockerDir string
	// rootDir is the parent of the docker directory; host-relative bind
	// sources resolve under it.
	rootDir string
}

// NewPlanner creates a planner for the store's layout. It fails with
// errdefs.ErrUnsupportedConfiguration when the layout's driver has no
// union strategy, before any file access or side effect.
func NewPlanner(store *storage.Store) (*Planner, error) {
	layout := store.Layout()
	union, err := unionStrategyFor(layout)
	if err != nil {
		return nil, err
	}
	dockerDir := layout.DockerDir()
	return &Planner{
		store:     store,
		resolver:  storage.NewResolver(store),
		union:     union,
		dockerDir: dockerDir,
		rootDir:   filepath.Join(dockerDir, ".."),
	}, nil
}

func unionStrategyFor(layout storage.Layout) (unionStrategy, error) {
	switch layout.Generation() {
	case storage.GenerationLegacy:
		return (*Planner).aufsGraphUnion, nil
	case storage.GenerationContentAddressable:
		switch layout.Driver() {
		case storage.DriverAufs:
			return (*Planner).aufsUnion, nil
		case storage.DriverOverlay:
			return (*Planner).overlayUnion, nil
		case storage.DriverOverlay2:
			return (*Planner).overlay2Union, nil
		}
	}
	return nil, fmt.Errorf("no mount strategy for %s driver %q: %w",
		generationName(layout.Generation()), layout.Driver(), errdefs.ErrUnsupportedConfiguration)
}

func generationName(gen storage.Generation) string {
	if gen == storage.GenerationLegacy {
		return "legacy"
	}
	return "content-addressable"
}

// Plan produces the mount plan for one container: the layer-union
// operation(s) first, then one read-only bind per declared volume or mount
// point. Bind ordering follows the sorted declaration order and carries no
// semantic meaning.
func (p *Planner) Plan(rec *storage.ContainerRecord, mountDir string) (*Plan, error) {
	ops, err := p.union(p, rec, mountDir)
	if err != nil {
		return nil, err
	}
	ops = append(ops, p.bindOps(rec, mountDir)...)
	return &Plan{ContainerID: rec.ID, MountDir: mountDir, Ops: ops}, nil
}

func (p *Planner) bindOps(rec *storage.ContainerRecord, mountDir string) []Op {
	var ops []Op
	for _, vol := range rec.Volumes {
		ops = append(ops, p.bindOp(vol.HostPath, vol.ContainerPath, mountDir))
	}
	for _, mp := range rec.MountPoints {
		source := mp.Source
		if source == "" {
			// Named volume: data lives under the engine's volumes tree.
			source = filepath.Join("docker", "volumes", mp.VolumeName, "_data")
		}
		ops = append(ops, p.bindOp(source, mp.Destination, mountDir))
	}
	return ops
}

func (p *Planner) bindOp(hostPath, containerPath, mountDir string) Op {
	return Op{
		Source:   filepath.Join(p.rootDir, strings.TrimLeft(hostPath, "/")),
		Target:   filepath.Join(mountDir, strings.TrimLeft(containerPath, "/")),
		Bind:     true,
		ReadOnly: true,
	}
}

// aufsGraphUnion mounts a legacy container: aufs branches over the diff
// directory of every layer in the resolved chain, leaf first.
func (p *Planner) aufsGraphUnion(rec *storage.ContainerRecord, mountDir string) ([]Op, error) {
	lin, err := p.resolver.Resolve(rec)
	if err != nil {
		return nil, err
	}
	if len(lin.Layers) == 0 {
		return nil, fmt.Errorf("no layers resolved for container %s: %w", rec.ID, errdefs.ErrNotFound)
	}

	branches := make([]string, 0, len(lin.Layers))
	for _, layerID := range lin.Layers {
		branches = append(branches, filepath.Join(p.dockerDir, "aufs", "diff", layerID)+"=ro+wh")
	}
	return []Op{{
		Source:   "none",
		Target:   mountDir,
		FSType:   "aufs",
		ReadOnly: true,
		Options:  []string{"br=" + strings.Join(branches, ":")},
	}}, nil
}

// aufsUnion mounts a content-addressable aufs container: the container's
// own diff directory (by mount ID) over the lower diffs listed in the
// aufs/layers file, one mount ID per line, top to bottom.
func (p *Planner) aufsUnion(rec *storage.ContainerRecord, mountDir string) ([]Op, error) {
	mountID, err := p.requireMountID(rec)
	if err != nil {
		return nil, err
	}

	diffIDs := []string{mountID}
	layersPath := filepath.Join(p.dockerDir, "aufs", "layers", mountID)
	if raw, err := os.ReadFile(layersPath); err == nil {
		for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				diffIDs = append(diffIDs, line)
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read aufs layers %s: %w", layersPath, err)
	}

	branches := make([]string, 0, len(diffIDs))
	for _, id := range diffIDs {
		branches = append(branches, filepath.Join(p.dockerDir, "aufs", "diff", id)+"=ro+wh")
	}
	return []Op{{
		Source:   "none",
		Target:   mountDir,
		FSType:   "aufs",
		ReadOnly: true,
		Options:  []string{"br=" + strings.Join(branches, ":")},
	}}, nil
}

// overlayUnion mounts an original-overlay-driver container: the container's
// upper directory over its lower image root, read-only, without an
// upperdir so the overlay itself cannot write.
func (p *Planner) overlayUnion(rec *storage.ContainerRecord, mountDir string) ([]Op, error) {
	mountID, err := p.requireMountID(rec)
	if err != nil {
		return nil, err
	}

	mountRoot := filepath.Join(p.dockerDir, "overlay", mountID)
	lowers := []string{filepath.Join(mountRoot, "upper")}

	lowerIDPath := filepath.Join(mountRoot, "lower-id")
	lowerID, err := fileutil.ReadTrimmed(lowerIDPath)
	if err != nil {
		return nil, fmt.Errorf("overlay lower-id %s: %w", lowerIDPath, errdefs.ErrNotFound)
	}
	lowers = append(lowers, filepath.Join(p.dockerDir, "overlay", lowerID, "root"))

	return []Op{{
		Source:   "overlay",
		Target:   mountDir,
		FSType:   "overlay",
		ReadOnly: true,
		Options:  []string{"lowerdir=" + strings.Join(lowers, ":")},
	}}, nil
}

// overlay2Union mounts an overlay2 container: the container's diff
// directory stacked over the lower chain recorded in its lower file
// (colon-separated paths relative to the overlay2 directory). Lowerdir-only
// overlay mounts are inherently read-only.
func (p *Planner) overlay2Union(rec *storage.ContainerRecord, mountDir string) ([]Op, error) {
	mountID, err := p.requireMountID(rec)
	if err != nil {
		return nil, err
	}

	overlayDir := filepath.Join(p.dockerDir, "overlay2")
	lowers := []string{filepath.Join(overlayDir, mountID, "diff")}

	lowerPath := filepath.Join(overlayDir, mountID, "lower")
	raw, err := fileutil.ReadTrimmed(lowerPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read overlay2 lower %s: %w", lowerPath, err)
		}
		// No lower file: the container sits directly on a single layer.
	}
	for _, rel := range strings.Split(raw, ":") {
		if rel != "" {
			lowers = append(lowers, filepath.Join(overlayDir, rel))
		}
	}

	return []Op{{
		Source:   "overlay",
		Target:   mountDir,
		FSType:   "overlay",
		ReadOnly: true,
		Options:  []string{"lowerdir=" + strings.Join(lowers, ":")},
	}}, nil
}

func (p *Planner) requireMountID(rec *storage.ContainerRecord) (string, error) {
	if rec.MountID != "" {
		return rec.MountID, nil
	}
	path, _ := p.store.Layout().MountIDPath(rec.ID)
	return "", fmt.Errorf("mount id for container %s (%s): %w", rec.ID, path, errdefs.ErrNotFound)
}
