package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jsulmar/yarm/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfg          *config.Config
	cfgFile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "yarm",
	Short: "Record, review and upload audio clips",
	Long: `yarm records a clip from a local input device, lets you review it
and sends it to a collection endpoint.

Run 'yarm session' for an interactive recorder, or 'yarm serve' to
collect uploads.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel, config.LogConfig{})

		// Use default config path if not specified
		if cfgFile == "" {
			cfgFile = os.ExpandEnv("$HOME/.config/yarm.yaml")
		}

		// config init must work when the file is broken or absent
		if cmd.Name() == "init" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if cfg.Log.File != "" {
			setupLogging(verboseLevel, cfg.Log)
		}
		slog.Debug("Configuration loaded", "file", cfgFile)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/yarm.yaml)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=encoder output")

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging configures slog based on the verbose level. When a log file
// is configured, records also go to a rotating file.
func setupLogging(level int, logCfg config.LogConfig) {
	var slogLevel slog.Level
	switch level {
	case 0:
		slogLevel = slog.LevelInfo
	case 1, 2:
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if logCfg.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logCfg.File,
			MaxSize:    logCfg.MaxSizeMB,
			MaxBackups: logCfg.MaxBackups,
			MaxAge:     logCfg.MaxAgeDays,
		})
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(out, opts)
	slog.SetDefault(slog.New(handler))

	if level >= 2 {
		os.Setenv("PIPEWIRE_DEBUG", "3")
	}
}
