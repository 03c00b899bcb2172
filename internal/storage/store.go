package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"dockersleuth/pkg/errdefs"
	"dockersleuth/pkg/fileutil"
)

// Store reads and parses the on-disk JSON descriptors of one layout into
// typed records. Every call re-reads from disk; nothing is cached.
type Store struct {
	layout Layout
}

// NewStore creates a metadata store over the given layout.
func NewStore(layout Layout) *Store {
	return &Store{layout: layout}
}

// Layout returns the layout the store reads through.
func (s *Store) Layout() Layout {
	return s.layout
}

// containerConfigDoc mirrors the container config JSON. Both generations
// share this top-level shape; generation 1 populates Volumes, generation 2
// populates MountPoints.
type containerConfigDoc struct {
	Image   string `json:"Image"`
	Name    string `json:"Name"`
	Created string `json:"Created"`
	Config  struct {
		Image  string            `json:"Image"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
	State *struct {
		Running   bool   `json:"Running"`
		StartedAt string `json:"StartedAt"`
	} `json:"State"`
	Volumes     map[string]string        `json:"Volumes"`
	MountPoints map[string]mountPointDoc `json:"MountPoints"`
}

type mountPointDoc struct {
	Source      string `json:"Source"`
	Destination string `json:"Destination"`
	Name        string `json:"Name"`
}

// Container loads one container's config. It fails with errdefs.ErrNotFound
// when the config file is absent and errdefs.ErrParse when it is not valid
// JSON. Missing optional fields get their documented defaults; metadata
// completeness is best-effort.
func (s *Store) Container(containerID string) (*ContainerRecord, error) {
	path := s.layout.ContainerConfigPath(containerID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("container config %s: %w", path, errdefs.ErrNotFound)
		}
		return nil, fmt.Errorf("read container config %s: %w", path, err)
	}

	var doc containerConfigDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("container config %s: %v: %w", path, err, errdefs.ErrParse)
	}

	rec := &ContainerRecord{
		ID:        containerID,
		ImageRef:  doc.Image,
		ImageName: doc.Config.Image,
		Name:      doc.Name,
		Labels:    doc.Config.Labels,
	}
	if t, err := parseDockerTime(doc.Created); err == nil {
		rec.CreatedAt = t
	}
	if doc.State != nil {
		rec.Running = doc.State.Running
		if t, err := parseDockerTime(doc.State.StartedAt); err == nil && !t.IsZero() {
			started := t
			rec.StartedAt = &started
		}
	}

	switch s.layout.Generation() {
	case GenerationLegacy:
		rec.Volumes = sortedVolumes(doc.Volumes)
	case GenerationContentAddressable:
		rec.MountPoints = sortedMountPoints(doc.MountPoints)
		// The mount ID lives in a side file keyed by container ID. Its
		// absence is tolerated: it is only needed for mount planning.
		if path, ok := s.layout.MountIDPath(containerID); ok {
			if id, err := fileutil.ReadTrimmed(path); err == nil {
				rec.MountID = id
			}
		}
	}

	return rec, nil
}

// layerConfigDoc mirrors a layer descriptor: the graph/<id>/json file for
// generation 1, the imagedb content file (a Docker image config, whose
// rootfs and history sections follow the OCI image config schema) for
// generation 2.
type layerConfigDoc struct {
	Parent          string `json:"parent"`
	Created         string `json:"created"`
	Comment         string `json:"comment"`
	ContainerConfig struct {
		Cmd []string `json:"Cmd"`
	} `json:"container_config"`
	RootFS  ocispec.RootFS    `json:"rootfs"`
	History []ocispec.History `json:"history"`
}

// Layer loads one layer's descriptor. It returns (nil, nil) when the
// descriptor file does not exist: intermediate layers may be legitimately
// unavailable in partial exports, so absence is not an error here.
func (s *Store) Layer(layerID string) (*LayerDescriptor, error) {
	path, err := s.layout.LayerDescriptorPath(layerID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read layer descriptor %s: %w", path, err)
	}

	var doc layerConfigDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("layer descriptor %s: %v: %w", path, err, errdefs.ErrParse)
	}

	desc := &LayerDescriptor{
		ID:       layerID,
		ParentID: doc.Parent,
		Command:  doc.ContainerConfig.Cmd,
		Comment:  doc.Comment,
		DiffIDs:  doc.RootFS.DiffIDs,
		History:  doc.History,
	}
	if t, err := parseDockerTime(doc.Created); err == nil {
		desc.CreatedAt = t
	}
	if sizePath, ok := s.layout.LayerSizePath(layerID); ok {
		if raw, err := fileutil.ReadTrimmed(sizePath); err == nil {
			if size, err := strconv.ParseInt(raw, 10, 64); err == nil {
				desc.SizeBytes = size
			}
		}
	}

	return desc, nil
}

// LayerParent resolves a layer's parent reference. found is false when the
// chain naturally ends here: an absent parent pointer file (generation 2)
// or an absent/parentless descriptor (generation 1).
func (s *Store) LayerParent(layerID string) (parent string, found bool, err error) {
	path, ok, err := s.layout.LayerParentPath(layerID)
	if err != nil {
		return "", false, err
	}
	if !ok {
		desc, err := s.Layer(layerID)
		if err != nil {
			return "", false, err
		}
		if desc == nil || desc.ParentID == "" {
			return "", false, nil
		}
		return desc.ParentID, true, nil
	}

	raw, err := fileutil.ReadTrimmed(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read layer parent %s: %w", path, err)
	}
	if raw == "" {
		return "", false, nil
	}
	return raw, true, nil
}

// RepositoryIndex returns the repository index document as raw JSON. It
// fails with errdefs.ErrNotFound when the index file is absent and
// errdefs.ErrParse when it is not valid JSON.
func (s *Store) RepositoryIndex() (json.RawMessage, error) {
	path := s.layout.RepositoryIndexPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("repository index %s: %w", path, errdefs.ErrNotFound)
		}
		return nil, fmt.Errorf("read repository index %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("repository index %s: %w", path, errdefs.ErrParse)
	}
	return json.RawMessage(data), nil
}

// parseDockerTime parses the timestamp formats Docker persists. Nanosecond
// precision first, then plain RFC 3339.
func parseDockerTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func sortedVolumes(volumes map[string]string) []Volume {
	if len(volumes) == 0 {
		return nil
	}
	paths := make([]string, 0, len(volumes))
	for containerPath := range volumes {
		paths = append(paths, containerPath)
	}
	sort.Strings(paths)

	out := make([]Volume, 0, len(paths))
	for _, containerPath := range paths {
		out = append(out, Volume{
			ContainerPath: containerPath,
			HostPath:      volumes[containerPath],
		})
	}
	return out
}

func sortedMountPoints(points map[string]mountPointDoc) []MountPoint {
	if len(points) == 0 {
		return nil
	}
	keys := make([]string, 0, len(points))
	for key := range points {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]MountPoint, 0, len(keys))
	for _, key := range keys {
		p := points[key]
		out = append(out, MountPoint{
			Source:      p.Source,
			Destination: p.Destination,
			VolumeName:  p.Name,
		})
	}
	return out
}
