package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfpilot-io/tfpilot/internal/archive"
	"github.com/tfpilot-io/tfpilot/internal/deploy"
)

var (
	archiveBucket  string
	archivePrefix  string
	archiveRegion  string
	archiveProfile string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute the changes required to reach the configuration",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&archiveBucket, "archive-bucket", "", "Upload the plan artifact to this S3 bucket")
	planCmd.Flags().StringVar(&archivePrefix, "archive-prefix", "tfpilot/plans", "Key prefix for archived plans")
	planCmd.Flags().StringVar(&archiveRegion, "archive-region", "", "AWS region for the archive bucket")
	planCmd.Flags().StringVar(&archiveProfile, "archive-profile", "", "AWS shared config profile for the archive bucket")
}

func runPlan(cmd *cobra.Command, args []string) error {
	wf, machine, err := newWorkflow(deploy.AutoApprove{})
	if err != nil {
		return err
	}

	if err := wf.Plan(cmd.Context()); err != nil {
		return err
	}

	st := machine.Snapshot()
	plan := st.Plan

	if !plan.NeedsApply {
		fmt.Println("No changes. Infrastructure is up-to-date.")
	} else {
		fmt.Println("\ntfpilot will perform the following actions:")
		renderPlanResources(plan)
	}
	if st.URL != "" {
		fmt.Printf("\nReview the plan at %s\n", st.URL)
	}

	if archiveBucket != "" {
		workdir, err := stackWorkdir(st.StackName)
		if err != nil {
			return err
		}
		uploader, err := archive.NewUploader(cmd.Context(), archiveBucket, archivePrefix, archiveRegion, archiveProfile)
		if err != nil {
			return err
		}
		if err := uploader.UploadPlan(cmd.Context(), st.StackName, localPlanFile(plan, workdir), st.StackJSON); err != nil {
			return err
		}
	}

	return nil
}
