package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SayonaraQ/downloadbot/internal/cache"
	"github.com/SayonaraQ/downloadbot/internal/cookies"
	"github.com/SayonaraQ/downloadbot/internal/deliver"
	"github.com/SayonaraQ/downloadbot/internal/extract"
	"github.com/SayonaraQ/downloadbot/internal/model"
	"github.com/SayonaraQ/downloadbot/internal/pipeline"
	"github.com/SayonaraQ/downloadbot/internal/telegram"
	"github.com/SayonaraQ/downloadbot/internal/users"
	"github.com/SayonaraQ/downloadbot/internal/worker"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot",
	Long: `Start the Telegram bot and serve requests until interrupted.

The bot reloads any still-fresh cached media from disk on startup, so a
restart does not force users back through a full download.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := model.LoadConfig(viper.GetViper())
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runBot(cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cfg *model.Config) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return fmt.Errorf("error creating data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		return fmt.Errorf("error creating cache directory: %w", err)
	}
	tmpRoot := filepath.Join(cfg.Data.Dir, "tmp")
	if err := os.MkdirAll(tmpRoot, 0o755); err != nil {
		return fmt.Errorf("error creating temp directory: %w", err)
	}

	extract.CheckEnvironment(log)

	store := cache.NewStore(cfg.Cache.Dir, cfg.Cache.TTL, log)
	loaded, err := store.Load()
	if err != nil {
		return fmt.Errorf("error loading cache index: %w", err)
	}
	log.WithField("entries", loaded).Info("Cache index loaded")

	resolver := cookies.NewResolver(cfg.Cookies, cfg.Download.TryNoCookiesFirst, log)
	limiter := worker.NewLimiter(cfg.Download.Rate, cfg.Download.Burst)
	engine := extract.NewEngine(extract.NewYTDLP(log), resolver, limiter, cfg.Limits, cfg.Download, log)
	flight := worker.NewFlight(cfg.Limits.Concurrency)
	registry := users.NewRegistry(cfg.UsersFile(), log)

	bot, err := telegram.NewBot(cfg.Telegram, log)
	if err != nil {
		return fmt.Errorf("error starting telegram bot: %w", err)
	}
	transport := bot.Transport()
	deliverer := deliver.NewEngine(transport, store, log)
	pipe := pipeline.New(store, flight, engine, deliverer, transport, registry, tmpRoot, log)
	bot.Register(pipe, registry)

	stop := make(chan struct{})
	store.StartSweeper(cfg.Cache.SweepInterval, stop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("Shutting down")
		close(stop)
		bot.Stop()
	}()

	log.Info("Bot started")
	bot.Start()
	return nil
}
