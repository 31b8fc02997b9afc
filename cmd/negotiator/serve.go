package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/negotiation-coach/internal/rpc"
)

// #region serve

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the CoachService gRPC server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if addr == "" {
				addr = a.cfg.GRPCAddr
			}
			return a.serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func (a *app) serve(ctx context.Context, addr string) error {
	svc, closeAll, err := a.service(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	gs := rpc.NewGRPCServer(svc, a.log)

	errCh := make(chan error, 1)
	go func() { errCh <- gs.Serve(lis) }()
	a.log.Info("serving", zap.String("addr", lis.Addr().String()))

	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
		gs.GracefulStop()
		return nil
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}
}

// #endregion serve
