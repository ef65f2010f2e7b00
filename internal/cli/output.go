package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfpilot-io/tfpilot/internal/deploy"
)

var outputJSON bool

var outputCmd = &cobra.Command{
	Use:   "output [name]",
	Short: "Show output values of a deployed stack",
	Long: `Reads output values from the stack's backend.

If no name is given, all outputs are displayed. If a name is given,
only that output's value is printed.`,
	RunE: runOutput,
}

func init() {
	outputCmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
}

func runOutput(cmd *cobra.Command, args []string) error {
	wf, machine, err := newWorkflow(deploy.AutoApprove{})
	if err != nil {
		return err
	}

	if err := wf.FetchOutputs(cmd.Context()); err != nil {
		return err
	}

	outputs := machine.Snapshot().Outputs

	if len(args) > 0 {
		name := args[0]
		val, ok := outputs[name]
		if !ok {
			return fmt.Errorf("output %q not found", name)
		}
		if outputJSON {
			data, _ := json.Marshal(val.Value)
			fmt.Println(string(data))
		} else if val.Sensitive {
			fmt.Println("<sensitive>")
		} else {
			fmt.Println(val.Value)
		}
		return nil
	}

	if len(outputs) == 0 {
		fmt.Println("No outputs defined.")
		return nil
	}

	if outputJSON {
		data, _ := json.MarshalIndent(outputs, "", "  ")
		fmt.Println(string(data))
	} else {
		renderOutputs(outputs)
	}

	return nil
}
