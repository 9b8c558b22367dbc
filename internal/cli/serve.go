package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"piawg/internal/api"
	"piawg/internal/config"
)

const shutdownTimeout = 5 * time.Second

func NewServeCommand(global *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the provisioning API for a browser front-end",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.settings.APIAddr
			}
			ctx, stop := signalContext()
			defer stop()

			store, closeStore := a.openPrefs()
			defer closeStore()

			sessions, err := api.NewSessions(a.settings.APISecret)
			if err != nil {
				return err
			}
			if a.settings.APISecret == "" {
				a.log.Info("PIA_API_SECRET not set; signing sessions with a random key")
			}
			h := api.NewHandler(a.pipeline, store, sessions, a.log.WithField("component", "api"))

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewRouter(h),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s; press Ctrl+C to stop\n", addr)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default PIA_API_ADDR or "+config.DefaultAPIAddr+")")
	return cmd
}
