package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfpilot-io/tfpilot/internal/deploy"
)

var synthShowJSON bool

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Synthesize the stack configuration",
	Long:  `Runs the configured app command or PKL module and records the synthesized stack.`,
	RunE:  runSynth,
}

func init() {
	synthCmd.Flags().BoolVar(&synthShowJSON, "json", false, "Print the synthesized configuration document")
}

func runSynth(cmd *cobra.Command, args []string) error {
	wf, machine, err := newWorkflow(deploy.AutoApprove{})
	if err != nil {
		return err
	}

	if err := wf.Synth(cmd.Context()); err != nil {
		return err
	}

	st := machine.Snapshot()
	if synthShowJSON {
		fmt.Println(st.StackJSON)
		return nil
	}
	fmt.Printf("Synthesized stack %q to %s\n", st.StackName, outDir)
	return nil
}
