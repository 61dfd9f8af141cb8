package cli

import (
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/yourtanker/orderflow/internal/order"
)

// NewListCommand creates the "list" command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var completedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Long:  "Lists orders from the merged view (remote snapshot plus any cache-only records). Scoped to --customer when given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			app, err := NewApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			recs := app.Store.List(opts.Customer)
			if completedOnly {
				_, recs = order.Partition(recs)
			}

			if f.Format == "json" {
				return f.Success(recs)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("ID", "Status", "Type", "Quantity", "Price", "Created", "Synced")
			for _, rec := range recs {
				synced := "yes"
				if !rec.Synced() {
					synced = "no"
				}
				if err := table.Append([]string{
					rec.ID,
					string(rec.Status),
					string(rec.DeliveryType),
					string(rec.Quantity),
					rec.Price,
					rec.CreatedAt.Format(time.RFC3339),
					synced,
				}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	cmd.Flags().BoolVar(&completedOnly, "completed", false, "show only completed orders")
	return cmd
}
