package mountplan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockersleuth/internal/storage"
	"dockersleuth/pkg/errdefs"
)

func hexID(c string) string {
	return strings.Repeat(c, 64)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// newPlanner builds a planner over a docker tree rooted at
// <tmp>/var/lib/docker, mirroring the canonical layout so host-relative
// paths resolve under <tmp>/var/lib.
func newPlanner(t *testing.T, gen storage.Generation, driver string) (*Planner, string) {
	t.Helper()
	dockerDir := filepath.Join(t.TempDir(), "var", "lib", "docker")
	require.NoError(t, os.MkdirAll(dockerDir, 0755))

	layout, err := storage.NewLayout(dockerDir, gen, driver)
	require.NoError(t, err)
	planner, err := NewPlanner(storage.NewStore(layout))
	require.NoError(t, err)
	return planner, dockerDir
}

func TestPlanBindMountScenario(t *testing.T) {
	planner, dockerDir := newPlanner(t, storage.GenerationContentAddressable, storage.DriverOverlay2)
	rootDir := filepath.Dir(dockerDir) // <tmp>/var/lib

	rec := &storage.ContainerRecord{
		ID:      "c1",
		MountID: "m",
		MountPoints: []storage.MountPoint{
			{Source: "/data/x", Destination: "/var/x"},
		},
	}

	plan, err := planner.Plan(rec, "/mnt/c1")
	require.NoError(t, err)
	require.Len(t, plan.Ops, 2, "union mount plus one bind")

	bind := plan.Ops[1]
	assert.True(t, bind.Bind)
	assert.True(t, bind.ReadOnly)
	assert.Equal(t, filepath.Join(rootDir, "data", "x"), bind.Source)
	assert.Equal(t, "/mnt/c1/var/x", bind.Target)
}

func TestPlanNamedVolume(t *testing.T) {
	planner, dockerDir := newPlanner(t, storage.GenerationContentAddressable, storage.DriverOverlay2)
	rootDir := filepath.Dir(dockerDir)

	rec := &storage.ContainerRecord{
		ID:      "c1",
		MountID: "m",
		MountPoints: []storage.MountPoint{
			{Source: "", Destination: "/srv/cache", VolumeName: "vol1"},
		},
	}

	plan, err := planner.Plan(rec, "/mnt/c1")
	require.NoError(t, err)
	require.Len(t, plan.Ops, 2)

	assert.Equal(t, filepath.Join(rootDir, "docker", "volumes", "vol1", "_data"), plan.Ops[1].Source)
}

func TestPlanZeroVolumesHasOnlyUnionOp(t *testing.T) {
	planner, dockerDir := newPlanner(t, storage.GenerationContentAddressable, storage.DriverOverlay2)

	plan, err := planner.Plan(&storage.ContainerRecord{ID: "c1", MountID: "m"}, "/mnt/c1")
	require.NoError(t, err)

	require.Len(t, plan.Ops, 1)
	op := plan.Ops[0]
	assert.Equal(t, "overlay", op.FSType)
	assert.True(t, op.ReadOnly)
	assert.False(t, op.Bind)
	require.Len(t, op.Options, 1)
	assert.Equal(t, "lowerdir="+filepath.Join(dockerDir, "overlay2", "m", "diff"), op.Options[0])
}

func TestPlanOverlay2LowerChain(t *testing.T) {
	planner, dockerDir := newPlanner(t, storage.GenerationContentAddressable, storage.DriverOverlay2)
	writeFile(t, filepath.Join(dockerDir, "overlay2", "m", "lower"), "l/ONE:l/TWO\n")

	plan, err := planner.Plan(&storage.ContainerRecord{ID: "c1", MountID: "m"}, "/mnt/c1")
	require.NoError(t, err)

	overlayDir := filepath.Join(dockerDir, "overlay2")
	want := "lowerdir=" + strings.Join([]string{
		filepath.Join(overlayDir, "m", "diff"),
		filepath.Join(overlayDir, "l", "ONE"),
		filepath.Join(overlayDir, "l", "TWO"),
	}, ":")
	assert.Equal(t, []string{want}, plan.Ops[0].Options)
}

func TestPlanOverlayDriver(t *testing.T) {
	planner, dockerDir := newPlanner(t, storage.GenerationContentAddressable, storage.DriverOverlay)
	writeFile(t, filepath.Join(dockerDir, "overlay", "m", "lower-id"), hexID("1")+"\n")

	plan, err := planner.Plan(&storage.ContainerRecord{ID: "c1", MountID: "m"}, "/mnt/c1")
	require.NoError(t, err)

	want := "lowerdir=" + filepath.Join(dockerDir, "overlay", "m", "upper") +
		":" + filepath.Join(dockerDir, "overlay", hexID("1"), "root")
	assert.Equal(t, []string{want}, plan.Ops[0].Options)
}

func TestPlanAufsDriver(t *testing.T) {
	planner, dockerDir := newPlanner(t, storage.GenerationContentAddressable, storage.DriverAufs)
	writeFile(t, filepath.Join(dockerDir, "aufs", "layers", "m"), hexID("1")+"\n"+hexID("2")+"\n")

	plan, err := planner.Plan(&storage.ContainerRecord{ID: "c1", MountID: "m"}, "/mnt/c1")
	require.NoError(t, err)

	op := plan.Ops[0]
	assert.Equal(t, "aufs", op.FSType)
	assert.Equal(t, "none", op.Source)
	diff := filepath.Join(dockerDir, "aufs", "diff")
	want := "br=" + strings.Join([]string{
		filepath.Join(diff, "m") + "=ro+wh",
		filepath.Join(diff, hexID("1")) + "=ro+wh",
		filepath.Join(diff, hexID("2")) + "=ro+wh",
	}, ":")
	assert.Equal(t, []string{want}, op.Options)
}

func TestPlanLegacyAufs(t *testing.T) {
	planner, dockerDir := newPlanner(t, storage.GenerationLegacy, storage.DriverAufs)

	containerID := hexID("c")
	parent := hexID("d")
	writeFile(t, filepath.Join(dockerDir, "graph", containerID, "json"), `{"parent": "`+parent+`"}`)
	writeFile(t, filepath.Join(dockerDir, "graph", parent, "json"), `{}`)

	plan, err := planner.Plan(&storage.ContainerRecord{ID: containerID}, "/mnt/old")
	require.NoError(t, err)

	require.Len(t, plan.Ops, 1)
	op := plan.Ops[0]
	assert.Equal(t, "aufs", op.FSType)
	diff := filepath.Join(dockerDir, "aufs", "diff")
	want := "br=" + filepath.Join(diff, containerID) + "=ro+wh:" + filepath.Join(diff, parent) + "=ro+wh"
	assert.Equal(t, []string{want}, op.Options)
}

func TestPlanMissingMountID(t *testing.T) {
	planner, _ := newPlanner(t, storage.GenerationContentAddressable, storage.DriverOverlay2)

	_, err := planner.Plan(&storage.ContainerRecord{ID: "c1"}, "/mnt/c1")
	require.ErrorIs(t, err, errdefs.ErrNotFound)
	assert.Contains(t, err.Error(), "mount-id", "error must name the side file searched")
}

func TestNewPlannerUnsupportedDriver(t *testing.T) {
	_, err := NewPlanner(storage.NewStore(unsupportedLayout{}))
	require.ErrorIs(t, err, errdefs.ErrUnsupportedConfiguration)
}

func TestOpString(t *testing.T) {
	bind := Op{Source: "/src", Target: "/dst", Bind: true, ReadOnly: true}
	assert.Equal(t, "mount --bind -o ro /src /dst", bind.String())

	union := Op{Source: "overlay", Target: "/mnt", FSType: "overlay", ReadOnly: true, Options: []string{"lowerdir=/a:/b"}}
	assert.Equal(t, "mount -t overlay -o ro,lowerdir=/a:/b overlay /mnt", union.String())
}

// unsupportedLayout stands in for a driver this package has no union
// strategy for.
type unsupportedLayout struct{}

func (unsupportedLayout) Generation() storage.Generation {
	return storage.GenerationContentAddressable
}

func (unsupportedLayout) Driver() string { return "btrfs" }
func (unsupportedLayout) DockerDir() string { return "/var/lib/docker" }
func (unsupportedLayout) ContainersDir() string { return "/var/lib/docker/containers" }

func (unsupportedLayout) ContainerConfigPath(id string) string {
	return "/var/lib/docker/containers/" + id + "/config.v2.json"
}

func (unsupportedLayout) LayerDescriptorPath(string) (string, error) { return "", nil }
func (unsupportedLayout) LayerParentPath(string) (string, bool, error) { return "", false, nil }
func (unsupportedLayout) LayerSizePath(string) (string, bool) { return "", false }
func (unsupportedLayout) RepositoryIndexPath() string { return "" }
func (unsupportedLayout) MountIDPath(string) (string, bool) { return "", false }
func (unsupportedLayout) GraphLayerDir(string) (string, bool) { return "", false }
