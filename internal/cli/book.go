package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourtanker/orderflow/internal/loyalty"
	"github.com/yourtanker/orderflow/internal/order"
	"github.com/yourtanker/orderflow/internal/session"
)

// NewBookCommand creates the "book" command.
func NewBookCommand(opts *RootOptions) *cobra.Command {
	var (
		deliveryType string
		quantity     string
		address      string
		landmark     string
		name         string
		contact      string
		promoCode    string
	)

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a tanker delivery",
		Long:  "Creates a new delivery order. With --promo, the active promo code is redeemed and the booking is free.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			if opts.Customer == "" {
				return WrapExitError(ExitCommandError, "booking requires --customer", nil)
			}
			dt, err := order.ParseDeliveryType(deliveryType)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --type", err)
			}
			qty, err := order.ParseQuantity(quantity)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --quantity", err)
			}

			app, err := NewApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			sess := session.New()
			sess.SignIn(opts.Customer, name)
			sess.UpdateDraft(func(d *order.Draft) {
				d.DeliveryType = dt
				d.Quantity = qty
				d.Address = address
				d.Landmark = landmark
				d.SecondaryContact = contact
			})

			if promoCode != "" {
				if outcome := app.Loyalty.Validate(promoCode); outcome != loyalty.OutcomeValid {
					f.Fail(fmt.Sprintf("promo code rejected (%s)", outcome))
					return WrapExitError(ExitFailure, "promo code rejected", nil)
				}
				app.Loyalty.Redeem()
				app.PersistPromo(cmd.Context())
				sess.MarkFreeNext()
				f.VerboseLog("promo code redeemed, booking is free")
			}

			draft := sess.Draft()
			draft.IsFree = sess.ConsumeFree()
			sess.ResetDraft()

			rec, err := app.Store.Create(cmd.Context(), draft)
			if err != nil {
				return WrapExitError(ExitCommandError, "creating order", err)
			}

			if f.Format == "json" {
				return f.Success(rec)
			}
			return f.Success(fmt.Sprintf("Booked %s: %s %s to %s for %s",
				rec.ID, rec.Quantity, rec.DeliveryType, rec.Address, rec.Price))
		},
	}

	cmd.Flags().StringVar(&deliveryType, "type", "Normal", "delivery type (Normal|Express)")
	cmd.Flags().StringVar(&quantity, "quantity", "2500L", "tanker volume (2500L|5000L|10000L)")
	cmd.Flags().StringVar(&address, "address", "", "delivery address")
	cmd.Flags().StringVar(&landmark, "landmark", "", "nearby landmark")
	cmd.Flags().StringVar(&name, "name", "", "customer display name")
	cmd.Flags().StringVar(&contact, "contact", "", "secondary contact number")
	cmd.Flags().StringVar(&promoCode, "promo", "", "promo code to redeem for a free delivery")

	return cmd
}
