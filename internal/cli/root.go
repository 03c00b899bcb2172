package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dockersleuth/internal/storage"
)

var (
	// Version is the dockersleuth version.
	Version = "0.1.0"

	// Global flags. The docker directory defaults to
	// $DOCKERSLEUTH_DOCKER_DIR, then /var/lib/docker.
	dockerDir      string
	storageVersion int
	storageDriver  string
)

var rootCmd = &cobra.Command{
	Use:   "dockersleuth",
	Short: "Offline forensic inspector for Docker data directories",
	Long: `dockersleuth reconstructs container metadata and filesystems directly
from an on-disk Docker data directory, without the daemon running.

It is built for incident response on stopped or seized hosts:
  - list containers persisted in the data directory
  - show the layer history behind a container's filesystem
  - plan (and optionally perform) a read-only mount of a container's rootfs

dockersleuth never modifies the inspected directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(psCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(mountCmd)

	rootCmd.PersistentFlags().StringVar(&dockerDir, "docker-dir", "",
		"Docker data directory (default: $DOCKERSLEUTH_DOCKER_DIR or /var/lib/docker)")
	rootCmd.PersistentFlags().IntVar(&storageVersion, "storage-version", 0,
		"Docker storage generation: 1 or 2 (default: auto-detect)")
	rootCmd.PersistentFlags().StringVar(&storageDriver, "driver", "",
		"union filesystem driver: aufs, overlay or overlay2 (default: auto-detect)")
}

// resolveDockerDir applies the flag/env/default chain for the data
// directory.
func resolveDockerDir() string {
	if dockerDir != "" {
		return dockerDir
	}
	if env := os.Getenv("DOCKERSLEUTH_DOCKER_DIR"); env != "" {
		return env
	}
	return "/var/lib/docker"
}

// openStore builds the layout and metadata store for the selected data
// directory. Unsupported generation/driver combinations fail here, before
// any metadata is read.
func openStore() (*storage.Store, error) {
	dir := resolveDockerDir()

	gen := storage.Generation(storageVersion)
	driver := storageDriver
	if gen == storage.GenerationLegacy && driver == "" {
		driver = storage.DriverAufs
	}

	// Auto-detect whatever the flags left unspecified.
	if gen == 0 || driver == "" {
		detected, err := storage.DetectLayout(dir)
		if err != nil {
			return nil, err
		}
		if gen == 0 {
			gen = detected.Generation()
		}
		if driver == "" {
			driver = detected.Driver()
		}
	}

	layout, err := storage.NewLayout(dir, gen, driver)
	if err != nil {
		return nil, err
	}
	return storage.NewStore(layout), nil
}
