package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfpilot-io/tfpilot/internal/deploy"
)

var destroyAutoApprove bool

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Synthesize, plan, and destroy a stack",
	RunE:  runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval before destroying")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	wf, machine, err := newWorkflow(confirmerFor(destroyAutoApprove, true))
	if err != nil {
		return err
	}
	watchProgress(machine)

	if err := wf.Destroy(cmd.Context()); err != nil {
		if errors.Is(err, deploy.ErrAborted) {
			fmt.Println("Destroy cancelled.")
			return nil
		}
		return err
	}

	fmt.Printf("\nDestroy complete! Stack: %s\n", machine.Snapshot().StackName)
	return nil
}
