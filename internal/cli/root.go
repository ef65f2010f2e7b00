package cli

import (
	"github.com/spf13/cobra"

	"github.com/tfpilot-io/tfpilot/internal/logging"
)

var (
	logLevel          string
	synthCommand      string
	outDir            string
	pklModule         string
	pklProps          map[string]string
	terraformBin      string
	containerImage    string
	containerPlatform string
)

var rootCmd = &cobra.Command{
	Use:   "tfpilot",
	Short: "Deployment workflow driver for Terraform stacks",
	Long: `tfpilot synthesizes a stack configuration and drives it through the
plan/apply/destroy lifecycle against a local terraform binary or a cloud
run API, streaming resource progress as it happens.

A stack is synthesized either by an app command that writes Terraform
JSON documents under the output directory, or by evaluating a PKL module
that renders one.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&synthCommand, "app", "", "Command that synthesizes the stack configuration")
	rootCmd.PersistentFlags().StringVar(&outDir, "output", "tfpilot.out", "Synth output directory")
	rootCmd.PersistentFlags().StringVar(&pklModule, "pkl", "", "Synthesize by evaluating this PKL module instead of running a command")
	rootCmd.PersistentFlags().StringToStringVarP(&pklProps, "prop", "D", nil, "Set external PKL properties (format: key=value)")
	rootCmd.PersistentFlags().StringVar(&terraformBin, "terraform-binary", "", "Terraform binary to execute (default: terraform on PATH)")
	rootCmd.PersistentFlags().StringVar(&containerImage, "container-image", "", "Run terraform inside a container from this image instead of a host binary")
	rootCmd.PersistentFlags().StringVar(&containerPlatform, "container-platform", "", "Container platform as os/arch (default: daemon default)")

	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(outputCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
