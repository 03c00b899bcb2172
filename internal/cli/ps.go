package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	"dockersleuth/internal/storage"
)

var (
	psAll    bool
	psQuiet  bool
	psFormat string
)

var psCmd = &cobra.Command{
	Use:   "ps [OPTIONS]",
	Short: "List containers found in the data directory",
	Long: `List containers persisted in the Docker data directory.

By default only containers recorded as running are shown; the state read is
whatever the daemon last wrote to disk. Use -a to show every container.

Examples:
  dockersleuth ps                  # containers recorded as running
  dockersleuth ps -a               # all containers
  dockersleuth ps --format json    # JSON output`,
	Args: cobra.NoArgs,
	RunE: listContainers,
}

func init() {
	psCmd.Flags().BoolVarP(&psAll, "all", "a", false, "show all containers (default: recorded as running)")
	psCmd.Flags().BoolVarP(&psQuiet, "quiet", "q", false, "only show container IDs")
	psCmd.Flags().StringVar(&psFormat, "format", "table", "output format (table/json)")
}

// PsEntry is one row of ps output.
type PsEntry struct {
	ID        string            `json:"Id"`
	ImageID   string            `json:"ImageId"`
	ImageName string            `json:"ImageName"`
	Name      string            `json:"Name"`
	Labels    map[string]string `json:"Labels,omitempty"`
	Running   bool              `json:"Running"`
	StartedAt *time.Time        `json:"StartedAt,omitempty"`
}

func listContainers(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	catalog := storage.NewCatalog(store)
	records, warn, err := catalog.List(!psAll)
	if err != nil {
		return fmt.Errorf("list containers: %w", err)
	}
	warnSkipped(warn)

	entries := make([]PsEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, PsEntry{
			ID:        rec.ID,
			ImageID:   displayImageID(rec.ImageRef),
			ImageName: rec.ImageName,
			Name:      strings.TrimPrefix(rec.Name, "/"),
			Labels:    rec.Labels,
			Running:   rec.Running,
			StartedAt: rec.StartedAt,
		})
	}

	switch psFormat {
	case "json":
		return outputJSON(entries)
	case "table":
		return outputTable(entries)
	default:
		return fmt.Errorf("unknown format: %s (supported: table, json)", psFormat)
	}
}

// warnSkipped surfaces a partial catalog enumeration without failing it.
func warnSkipped(warn *storage.PartialWarning) {
	if warn == nil {
		return
	}
	log.Warn(warn.String())
	for _, skip := range warn.Skipped {
		log.Warn("skipped container", "id", skip.ID, "err", skip.Err)
	}
}

// displayImageID strips the algorithm prefix from content-addressable image
// references; legacy plain IDs pass through.
func displayImageID(imageRef string) string {
	if dgst, err := digest.Parse(imageRef); err == nil {
		return dgst.Encoded()
	}
	return imageRef
}

func outputJSON(entries []PsEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func outputTable(entries []PsEntry) error {
	if psQuiet {
		for _, entry := range entries {
			fmt.Println(entry.ID)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CONTAINER ID\tIMAGE\tNAME\tSTARTED\tLABELS")
	for _, entry := range entries {
		started := ""
		if entry.StartedAt != nil {
			started = entry.StartedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortID(entry.ID), entry.ImageName, entry.Name, started, formatLabels(entry.Labels))
	}
	return w.Flush()
}

// shortID returns the first 12 characters of a container ID, the standard
// short form.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
