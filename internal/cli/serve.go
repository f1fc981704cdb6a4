package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/infinicraft/internal/server"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string

	// onListen is called with the bound address once the listener is open
	// (for testing).
	onListen func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Long: `Serve the JSON API and the /ws event stream for a browser canvas.

The server runs until interrupted. On SIGINT or SIGTERM it stops accepting
requests, lets in-flight merges finish and closes the database.

Example:
  infinicraft serve --db ./craft.db
  infinicraft serve --listen 127.0.0.1:9000 --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, true, func(s *session) error {
				return runServer(s, opts, cmd)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config server.listen)")

	return cmd
}

func runServer(s *session, opts *ServeOptions, cmd *cobra.Command) error {
	addr := s.app.Config.Server.Listen
	if opts.Listen != "" {
		addr = opts.Listen
	}

	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return failure(ExitCommandError, "LISTEN_FAILED", "failed to listen", err)
	}

	srv := &http.Server{
		Handler:           server.New(s.app, s.logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down", "reason", context.Cause(gctx))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	bound := ln.Addr().String()
	s.logger.Info("server starting", "addr", bound, "db", s.app.Config.Database)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", bound)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	if opts.onListen != nil {
		opts.onListen(bound)
	}

	if err := g.Wait(); err != nil {
		return failure(ExitFailure, "SERVER_ERROR", "server error", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}
