package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"dmarchive/internal/archive"
	"dmarchive/internal/classify"
	"dmarchive/internal/config"
	"dmarchive/internal/domain"
	"dmarchive/internal/engine"
	"dmarchive/internal/instagram"
	"dmarchive/internal/notify"
	"dmarchive/internal/runlog"
	"dmarchive/internal/timezone"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "dmarchive",
		Short:   "dmarchive: incremental direct-message conversation archiver",
		Long:    "dmarchive keeps a local, browsable archive of one direct-message conversation,\nincluding media, and tops it up incrementally on every run.",
		Version: version,
		RunE:    runSync, // bare invocation runs a sync
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.dmarchive/config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(historyCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			fmt.Printf("wrote %s\nedit it (or set DM_USERNAME, DM_PASSWORD, DM_FRIEND_USERNAME) and run dmarchive\n", cfgPath)
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch new messages and media into the archive",
		RunE:  runSync,
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// setupLogger rebuilds the process logger per config: level, and optionally
// a log file mirrored alongside stderr.
func setupLogger(cfg *config.Config) error {
	var level slog.Level
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
	}

	logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("%w (run `dmarchive init` to create one)", err)
	}
	if err := setupLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := instagram.New(instagram.Config{
		Username: cfg.Account.Username,
		Password: cfg.Account.Password,
		APIBase:  cfg.Account.APIBase,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if err := login(ctx, client); err != nil {
		return err
	}

	store, err := archive.Open(cfg.Archive.DataDir, cfg.Friend.Username, timezone.Melbourne(), logger)
	if err != nil {
		return err
	}

	stats := engine.NewStats()
	eng := &engine.Engine{
		Client:          client,
		Store:           store,
		Friend:          cfg.Friend.Username,
		Reels:           classify.ReelPolicy(cfg.Sync.ReelPolicy),
		FirstRunItemCap: cfg.Sync.MaxItemsFirstRun,
		Stats:           stats,
		Logger:          logger,
	}

	started := time.Now()
	runErr := eng.Run(ctx)

	summary := stats.Summary()
	if runErr == nil {
		fmt.Print(summary)
	}

	recordRun(ctx, cfg, stats, started, runErr)
	if runErr == nil {
		sendNotification(cfg, summary)
	}
	return runErr
}

// login performs the password step and, when the account demands it, the
// interactive second-factor step on stdin.
func login(ctx context.Context, client *instagram.Client) error {
	res, err := client.Login(ctx)
	if err != nil {
		return err
	}
	if res.Status == domain.LoginNeedsSecondFactor {
		fmt.Fprint(os.Stderr, "Enter the verification code: ")
		var code string
		fmt.Scanln(&code)
		res, err = client.SubmitTwoFactor(ctx, code)
		if err != nil {
			return err
		}
	}
	if res.Status != domain.LoginSuccess {
		return fmt.Errorf("%w: %s", domain.ErrAuthFailed, res.Reason)
	}
	return nil
}

// recordRun writes the run outcome to the history database. History is an
// aid, not a requirement: failures here are logged and ignored.
func recordRun(ctx context.Context, cfg *config.Config, stats *engine.Stats, started time.Time, runErr error) {
	if !cfg.RunLog.Enabled {
		return
	}
	store, err := runlog.Open(cfg.RunLog.DBPath, logger)
	if err != nil {
		logger.Warn("cannot open run history", "err", err)
		return
	}
	defer store.Close()

	run := runlog.Run{
		Friend:          cfg.Friend.Username,
		StartedAt:       started,
		FinishedAt:      time.Now(),
		Outcome:         "ok",
		NewMessages:     stats.ItemsMerged.Value(),
		Duplicates:      stats.DuplicatesSkipped.Value(),
		MediaDownloaded: stats.MediaDownloaded.Value(),
		MediaFailed:     stats.MediaFailed.Value(),
		PagesFetched:    stats.PagesFetched.Value(),
	}
	switch {
	case runErr != nil:
		run.Outcome = "failed"
		run.Detail = runErr.Error()
	case stats.Skipped(engine.SkipPageFetchFailed) > 0:
		run.Outcome = "aborted"
		run.Detail = "pagination stopped on a fetch failure"
	}

	if err := store.Record(ctx, run); err != nil {
		logger.Warn("cannot record run", "err", err)
	}
}

// sendNotification delivers the summary to the configured channel, if any.
func sendNotification(cfg *config.Config, summary string) {
	tg := cfg.Notify.Telegram
	if !tg.Enabled {
		return
	}
	chatID, err := strconv.ParseInt(tg.ChatID, 10, 64)
	if err != nil {
		logger.Warn("invalid telegram chat id", "chatId", tg.ChatID)
		return
	}
	notifier, err := notify.NewTelegram(notify.TelegramConfig{
		Token:  tg.Token,
		ChatID: chatID,
		Logger: logger,
	})
	if err != nil {
		logger.Warn("telegram notifier unavailable", "err", err)
		return
	}
	notifier.Notify("dmarchive: " + cfg.Friend.Username + "\n" + summary)
}
