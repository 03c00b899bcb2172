package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/go-units"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/cobra"

	"dockersleuth/internal/storage"
)

var historyShowEmpty bool

var historyCmd = &cobra.Command{
	Use:   "history CONTAINER",
	Short: "Show the layer history behind a container's filesystem",
	Long: `Walk a container's layer lineage from its topmost layer down to the
root layer and print what is known about each: creation time, the build
command that produced it, size and comment.

Layers whose descriptor is missing from the data directory (common in
partial exports) are reported as such; the walk continues with what is on
disk.`,
	Args: cobra.ExactArgs(1),
	RunE: showHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyShowEmpty, "show-empty", false, "also show zero-size layers (legacy layout)")
}

func showHistory(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	rec, err := store.Container(args[0])
	if err != nil {
		return err
	}

	lin, err := storage.NewResolver(store).Resolve(rec)
	if err != nil {
		return err
	}
	if len(lin.Layers) == 0 {
		return fmt.Errorf("no layers resolved for container %s", rec.ID)
	}

	legacy := store.Layout().Generation() == storage.GenerationLegacy
	for _, layerID := range lin.Layers {
		desc, err := store.Layer(layerID)
		if err != nil {
			return err
		}
		printLayer(layerID, desc, legacy)
	}

	if lin.Truncated {
		log.Warn("layer chain possibly truncated: a layer descriptor was unreadable", "container", rec.ID)
	}
	return nil
}

func printLayer(layerID string, desc *storage.LayerDescriptor, legacy bool) {
	fmt.Println(strings.Repeat("-", 62))
	fmt.Println(layerID)
	if desc == nil {
		fmt.Println("\tno descriptor on disk")
		return
	}

	// The legacy layout records plenty of zero-size bookkeeping layers;
	// hide them unless asked. The content-addressable layout does not
	// expose per-layer sizes at all, so always show those.
	if legacy && desc.SizeBytes == 0 && !historyShowEmpty {
		fmt.Println("\tempty layer")
		return
	}

	if legacy || desc.SizeBytes > 0 {
		fmt.Printf("\tsize: %s\n", units.HumanSize(float64(desc.SizeBytes)))
	}
	if !desc.CreatedAt.IsZero() {
		fmt.Printf("\tcreated at: %s\n", desc.CreatedAt.Format(time.RFC3339))
	}
	command := strings.Join(desc.Command, " ")
	if command == "" {
		// Image configs without a per-layer command still carry the build
		// steps in their history section.
		command = lastBuildStep(desc.History)
	}
	if command != "" {
		fmt.Printf("\twith command: %s\n", command)
	}
	if desc.Comment != "" {
		fmt.Printf("\tcomment: %s\n", desc.Comment)
	}
	if len(desc.History) > 0 {
		fmt.Printf("\tbuild steps: %d\n", len(desc.History))
	}
	if len(desc.DiffIDs) > 0 {
		fmt.Printf("\tdiff ids: %d\n", len(desc.DiffIDs))
	}
}

// lastBuildStep returns the newest non-empty created_by entry, the command
// that produced the image's topmost layer.
func lastBuildStep(history []ocispec.History) string {
	for i := len(history) - 1; i >= 0; i-- {
		if step := strings.TrimSpace(history[i].CreatedBy); step != "" {
			return step
		}
	}
	return ""
}
