package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfpilot-io/tfpilot/internal/deploy"
)

var deployAutoApprove bool

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Synthesize, plan, and apply a stack",
	Long:  `Runs the full deploy pipeline: synth, init, plan, confirmation, apply, and output collection.`,
	RunE:  runDeploy,
}

func init() {
	deployCmd.Flags().BoolVar(&deployAutoApprove, "auto-approve", false, "Skip interactive approval of the plan before applying")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	wf, machine, err := newWorkflow(confirmerFor(deployAutoApprove, false))
	if err != nil {
		return err
	}
	watchProgress(machine)

	if err := wf.Deploy(cmd.Context()); err != nil {
		if errors.Is(err, deploy.ErrAborted) {
			fmt.Println("Deploy cancelled.")
			return nil
		}
		return err
	}

	st := machine.Snapshot()
	fmt.Printf("\nDeploy complete! Stack: %s\n", st.StackName)
	if len(st.Outputs) > 0 {
		fmt.Println("\nOutputs:")
		renderOutputs(st.Outputs)
	}
	return nil
}
