package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	"zback/internal/config"
	"zback/internal/daemon"
	"zback/internal/logger"
	"zback/internal/notify"
	"zback/internal/repository"
	"zback/internal/zfsapi"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the backup orchestration daemon",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	registry, err := config.NewRegistry(cfgPath)
	if err != nil {
		return err
	}
	defer registry.Close()

	if err := registry.Watch(); err != nil {
		logger.Log.Warn("config watcher unavailable, use SIGHUP or the reload endpoint",
			zap.Error(err))
	}

	cur := registry.Current()
	api := zfsapi.NewClient(cur.API.URL, cur.API.Timeout)
	orch := daemon.NewOrchestrator(registry, api, repository.NewEventRepository(), notify.ForURL(cur.WebhookURL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go orch.Run(ctx)

	srv := daemon.NewServer(orch, registry, cur.DaemonPort)
	srv.Start()

	logger.Log.Info("zback daemon started",
		zap.Int("datasets", len(cur.Datasets)),
		zap.String("api", cur.API.URL),
		zap.Int("port", cur.DaemonPort))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				logger.Log.Info("reload requested via SIGHUP")
				registry.MarkPending()
				continue
			}
			logger.Log.Info("shutting down",
				zap.String("signal", sig.String()))
		case <-srv.StopCh():
			logger.Log.Info("stop requested via API")
		}
		break
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

func init() {
	rootCmd.AddCommand(runCmd)
}
