package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"appforge/internal/preview"
	"appforge/pkg/sandbox"
)

func newPreviewCmd(a *app) *cobra.Command {
	var addr, root string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Serve the generated project over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if root == "" {
				root = a.cfg.Sandbox.Root
			}
			store, err := sandbox.New(root)
			if err != nil {
				return err
			}
			srv, err := preview.NewServer(store, nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	cmd.Flags().StringVarP(&root, "sandbox", "s", "", "Directory to serve (defaults to the configured sandbox root)")
	return cmd
}
