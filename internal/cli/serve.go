package cli

import (
	"github.com/spf13/cobra"

	"github.com/yourtanker/orderflow/internal/server"
)

// NewServeCommand creates the "serve" command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the booking API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			if addr == "" {
				addr = app.Config.ListenAddr
			}
			app.Log.Info("serving booking API", "addr", addr)

			srv := server.New(app.Store, app.Loyalty, app.Cache, app.Log)
			if err := srv.Run(addr); err != nil {
				return WrapExitError(ExitCommandError, "http server", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config listenAddr)")
	return cmd
}
