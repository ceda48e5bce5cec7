// Command curvectl is the operator CLI for loading gilt close prices and
// generating yield curves.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Checker-Finance/yieldcurve/internal/bootstrap"
	"github.com/Checker-Finance/yieldcurve/internal/service"
	"github.com/Checker-Finance/yieldcurve/pkg/config"
	"github.com/Checker-Finance/yieldcurve/pkg/logger"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "curvectl",
	Short:         "Load gilt prices and build UK government yield curves",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		level := cfg.LogLevel
		if v, _ := cmd.Flags().GetString("log-level"); v != "" {
			level = v
		}
		logger.Init(cfg.ServiceName+"-cli", "cli", level)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(datesCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(statsCmd)
}

// deps holds the connections a command needs. Events go through the
// configured broker so CLI generations are announced like API ones.
type deps struct {
	stores  *bootstrap.Stores
	service *service.Service
	close   func()
}

func openDeps(ctx context.Context) (*deps, error) {
	stores, err := bootstrap.OpenStores(ctx, cfg, logger.L())
	if err != nil {
		return nil, err
	}
	pub, _, err := bootstrap.NewPublisher(cfg, logger.Named("publisher"))
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	svc := service.New(stores.Curves, stores.Bonds, pub, logger.Named("service"))
	if err := svc.SetDefaultMethod(cfg.DefaultMethod); err != nil {
		_ = pub.Close()
		_ = stores.Close()
		return nil, err
	}
	return &deps{
		stores:  stores,
		service: svc,
		close: func() {
			_ = pub.Close()
			_ = stores.Close()
		},
	}, nil
}
