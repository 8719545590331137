package cli

import (
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/service"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newRepairRostersCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair-rosters",
		Short: "Rebuild every trainer's cached student list from the student profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := service.NewRosterService(opts.env.Deps).RepairAll(cmd.Context())
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("roster repair failed: %v", err)}
			}
			if report.Failed == nil {
				report.Failed = []string{}
			}

			view := map[string]interface{}{"trainers": report.Trainers, "rewritten": report.Rewritten, "failed": report.Failed}
			err = output(cmd, opts, view, func(w io.Writer) {
				fmt.Fprintf(w, "trainers: %d\nrewritten: %d\nfailed: %d\n", report.Trainers, report.Rewritten, len(report.Failed))
				for _, uid := range report.Failed {
					fmt.Fprintf(w, "  %s\n", uid)
				}
			})
			if err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d roster(s) could not be rebuilt", len(report.Failed))}
			}
			return nil
		},
	}
}

type orphanView struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func newOrphansCommand(opts *RootOptions) *cobra.Command {
	var (
		deleteOrphans bool
		minAge        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List accounts that have credentials but no profile",
		Long: `List accounts whose signup created the credential but failed to write
the profile. Such accounts cannot log in. With --delete their credentials are
removed so the email can sign up again. Accounts younger than --min-age are
left alone since their signup may still be in progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orphans, err := service.FindOrphanedAccounts(ctx, opts.env.Deps, opts.env.Directory, minAge)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("could not list accounts: %v", err)}
			}

			deleted := 0
			if deleteOrphans && len(orphans) > 0 {
				deleted, err = service.DeleteOrphanedAccounts(ctx, opts.env.Deps, opts.env.Directory, orphans)
				if err != nil {
					return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("deleted %d of %d orphaned accounts: %v", deleted, len(orphans), err)}
				}
			}

			views := make([]orphanView, len(orphans))
			for i, acc := range orphans {
				views[i] = orphanView{UID: acc.UID, Email: acc.Email, CreatedAt: acc.CreatedAt}
			}
			return output(cmd, opts, map[string]interface{}{"orphans": views, "deleted": deleted}, func(w io.Writer) {
				if len(orphans) == 0 {
					fmt.Fprintln(w, "no orphaned accounts")
					return
				}
				for _, v := range views {
					fmt.Fprintf(w, "%s\t%s\t%s\n", v.UID, v.Email, v.CreatedAt.Format(time.RFC3339))
				}
				if deleteOrphans {
					fmt.Fprintf(w, "deleted %d account(s)\n", deleted)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&deleteOrphans, "delete", false, "delete the orphaned credentials")
	cmd.Flags().DurationVar(&minAge, "min-age", service.DefaultOrphanMinAge, "only report accounts created at least this long ago")
	return cmd
}

func newReferralCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "referral <code>",
		Short: "Show which trainer a referral code belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			auth := service.NewAuthService(opts.env.Deps, opts.env.Directory.NewClient(), nil)
			check := auth.ResolveReferralCode(cmd.Context(), args[0])

			view := map[string]interface{}{"found": check.Found}
			if check.Found {
				view["trainerId"] = check.TrainerID
				view["trainerName"] = check.TrainerName
			} else {
				view["reason"] = check.Reason
			}
			err := output(cmd, opts, view, func(w io.Writer) {
				if check.Found {
					fmt.Fprintf(w, "%s\t%s\n", check.TrainerID, check.TrainerName)
					return
				}
				fmt.Fprintf(w, "%s: %s\n", service.NormalizeReferralCode(args[0]), check.Reason)
			})
			if err != nil {
				return err
			}
			if !check.Found {
				return &ExitError{Code: ExitFailure, Message: check.Reason}
			}
			return nil
		},
	}
}

var _ service.AccountDirectory = (*identity.Directory)(nil)
