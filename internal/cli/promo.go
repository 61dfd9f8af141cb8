package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPromoCommand creates the "promo" command group.
func NewPromoCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promo",
		Short: "Loyalty rewards and promo codes",
	}
	cmd.AddCommand(newPromoStatusCommand(opts))
	cmd.AddCommand(newPromoClaimCommand(opts))
	cmd.AddCommand(newPromoApplyCommand(opts))
	return cmd
}

func newPromoStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show loyalty progress for the customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			if opts.Customer == "" {
				return WrapExitError(ExitCommandError, "promo status requires --customer", nil)
			}

			app, err := NewApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			count := len(app.Store.List(opts.Customer))
			progress := app.Loyalty.Progress(count)
			claimable := app.Loyalty.MilestoneReached(count)

			if f.Format == "json" {
				return f.Success(map[string]any{
					"orders":    count,
					"progress":  progress,
					"milestone": app.Config.Milestone,
					"claimable": claimable,
					"hasActive": app.Loyalty.ActiveCode() != "",
				})
			}
			line := fmt.Sprintf("%d orders, progress %d/%d", count, progress, app.Config.Milestone)
			if claimable {
				line += " (free delivery claimable)"
			}
			if app.Loyalty.ActiveCode() != "" {
				line += fmt.Sprintf(", active code %s", app.Loyalty.ActiveCode())
			}
			return f.Success(line)
		},
	}
}

func newPromoClaimCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim the free-delivery promo code",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			if opts.Customer == "" {
				return WrapExitError(ExitCommandError, "promo claim requires --customer", nil)
			}

			app, err := NewApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			count := len(app.Store.List(opts.Customer))
			code, err := app.Loyalty.Claim(count)
			if err != nil {
				f.Fail(err.Error())
				return WrapExitError(ExitFailure, "claim rejected", nil)
			}
			app.PersistPromo(cmd.Context())

			if f.Format == "json" {
				return f.Success(map[string]string{"code": code})
			}
			return f.Success(fmt.Sprintf("Promo code: %s (use with book --promo)", code))
		},
	}
}

func newPromoApplyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <code>",
		Short: "Check a promo code against the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			app, err := NewApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			outcome := app.Loyalty.Validate(args[0])
			if f.Format == "json" {
				return f.Success(map[string]string{"outcome": outcome.String()})
			}
			return f.Success(fmt.Sprintf("Code %s: %s", args[0], outcome))
		},
	}
}
