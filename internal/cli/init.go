package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfpilot-io/tfpilot/internal/deploy"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Synthesize and initialize the backend",
	Long:  `Synthesizes the stack, selects the local or cloud backend, and initializes it.`,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	wf, machine, err := newWorkflow(deploy.AutoApprove{})
	if err != nil {
		return err
	}

	if err := wf.Init(cmd.Context()); err != nil {
		return err
	}

	fmt.Printf("Backend initialized for stack %q.\n", machine.Snapshot().StackName)
	return nil
}
