package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourtanker/orderflow/internal/order"
	"github.com/yourtanker/orderflow/internal/store"
)

// NewAdvanceCommand creates the "advance" command.
func NewAdvanceCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advance <order-id>",
		Short: "Advance an order to its next status",
		Long:  "Moves an order one step along Pending -> Started -> Completed. The final step includes the acknowledgment pause.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			app, err := NewApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			rec, err := app.Store.Advance(cmd.Context(), args[0])
			switch {
			case err == nil:
			case errors.Is(err, store.ErrNotFound):
				f.Fail(err.Error())
				return WrapExitError(ExitCommandError, "order not found", nil)
			case order.IsIllegalTransition(err) || errors.Is(err, store.ErrTransitionInFlight):
				f.Fail(err.Error())
				return WrapExitError(ExitFailure, "transition rejected", nil)
			default:
				return WrapExitError(ExitCommandError, "advancing order", err)
			}

			if f.Format == "json" {
				return f.Success(rec)
			}
			return f.Success(fmt.Sprintf("Order %s is now %s", rec.ID, rec.Status))
		},
	}
	return cmd
}
