package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"dockersleuth/internal/mountplan"
)

var mountDryRun bool

var mountCmd = &cobra.Command{
	Use:   "mount CONTAINER MOUNTDIR",
	Short: "Mount a container's filesystem read-only for examination",
	Long: `Reconstruct a container's root filesystem view at MOUNTDIR.

The command first prints the full mount plan: the layer-union mount that
merges the container's layer chain, followed by one read-only bind mount
per declared volume. Nothing is executed until you confirm. Every
operation is read-only; the data directory is never written.

Executing the plan requires root. Use --dry-run to stop at the plan.`,
	Args: cobra.ExactArgs(2),
	RunE: mountContainer,
}

func init() {
	mountCmd.Flags().BoolVar(&mountDryRun, "dry-run", false, "print the mount plan without executing it")
}

func mountContainer(cmd *cobra.Command, args []string) error {
	containerID, mountDir := args[0], args[1]

	store, err := openStore()
	if err != nil {
		return err
	}

	rec, err := store.Container(containerID)
	if err != nil {
		return err
	}

	planner, err := mountplan.NewPlanner(store)
	if err != nil {
		return err
	}
	plan, err := planner.Plan(rec, mountDir)
	if err != nil {
		return err
	}

	for _, op := range plan.Ops {
		fmt.Println(op)
	}
	if mountDryRun {
		return nil
	}

	if !confirm(fmt.Sprintf("Mount container %s on %s (run the operations above)?", shortID(containerID), mountDir)) {
		log.Info("aborted, nothing mounted")
		return nil
	}

	if err := mountplan.Apply(plan); err != nil {
		return fmt.Errorf("apply mount plan: %w", err)
	}
	log.Info("container filesystem mounted read-only", "container", shortID(containerID), "dir", mountDir)
	return nil
}

// confirm asks on stdin, defaulting to yes on an empty answer.
func confirm(question string) bool {
	fmt.Printf("%s [Y/n] ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "" || answer == "y" || answer == "yes"
}
