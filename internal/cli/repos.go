package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Show the image repository index",
	Long: `Print the repository index file of the data directory: the mapping
from image names and tags to image identifiers, as the daemon last
persisted it.`,
	Args: cobra.NoArgs,
	RunE: showRepositories,
}

func showRepositories(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	raw, err := store.RepositoryIndex()
	if err != nil {
		return err
	}

	// Round-trip through a generic value so keys come out sorted.
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode repository index: %w", err)
	}
	pretty, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("format repository index: %w", err)
	}

	fmt.Printf("Listing repositories from file %s\n", store.Layout().RepositoryIndexPath())
	fmt.Println(string(pretty))
	return nil
}
