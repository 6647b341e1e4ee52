package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/agency-site/internal/global"
	"github.com/Laisky/agency-site/internal/web"
	"github.com/Laisky/agency-site/library/log"
)

var apiCMD = &cobra.Command{
	Use:   "api",
	Short: "api",
	Long:  `HTTP API of the agency site`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if gconfig.Shared.GetBool("dry") {
			log.Logger.Info("configuration is valid, dry run exits")
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := runAPI(ctx); err != nil {
			log.Logger.Panic("run api", zap.Error(err))
		}
	},
}

func runAPI(ctx context.Context) error {
	backends, err := global.SetupDB(ctx)
	if err != nil {
		return errors.Wrap(err, "setup db")
	}
	defer backends.Close(context.WithoutCancel(ctx))

	svcs, err := global.SetupServices(ctx, backends)
	if err != nil {
		return errors.Wrap(err, "setup services")
	}

	server, err := web.NewServer(svcs)
	if err != nil {
		return errors.Wrap(err, "new server")
	}

	return web.RunServer(ctx, gconfig.Shared.GetString("listen"), server)
}

func init() {
	rootCMD.AddCommand(apiCMD)
}
