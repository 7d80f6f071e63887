package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/vova4o/otpexport/internal/handlers"
	"github.com/vova4o/otpexport/internal/service"
)

const shutdownTimeout = 5 * time.Second

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the decoder over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h := handlers.NewHandlers(service.NewExtractor(a.logger), a.settings.GetQRSize(), a.logger)
			srv := &http.Server{
				Handler:           h.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ln, err := net.Listen("tcp", a.settings.GetListen())
			if err != nil {
				a.logger.Error("Failed to listen: " + err.Error())
				return err
			}
			a.logger.Info("Listening on " + ln.Addr().String())

			ctx := cmd.Context()
			done := make(chan error, 1)
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				done <- srv.Shutdown(shutdownCtx)
			}()

			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("Server failed: " + err.Error())
				return err
			}
			if err := <-done; err != nil {
				a.logger.Error("Failed to shut down: " + err.Error())
				return err
			}
			a.logger.Info("Server stopped")
			return nil
		},
	}
}
