package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pipehealth/pipehealth-go/internal/config"
	"github.com/pipehealth/pipehealth-go/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile   string
	verbose   bool
	logger    *logrus.Logger
	logCloser io.Closer
	cfg       *config.Config
)

func main() {
	defer func() {
		if logCloser != nil {
			logCloser.Close()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "phealth",
	Short: "PipeHealth - AI-weighted sales forecast outlooks",
	Long: `PipeHealth computes health-score weighted revenue outlooks over your
open pipeline, surfacing the deals that drive the gap between the CRM
forecast and the AI view.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load configuration
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config, using defaults: %v\n", err)
			cfg = config.Default()
		}

		// Initialize logger
		logCfg := logging.Config{
			Level:     cfg.Logging.Level,
			Directory: cfg.Logging.Directory,
		}
		if verbose {
			logCfg.Level = "debug"
		}
		logger, logCloser, err = logging.New(logCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v, falling back to stderr logging\n", err)
			logger = logrus.New()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .pipehealth/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`PipeHealth {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(outlookCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(periodsCmd)
	rootCmd.AddCommand(visibilityCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configureCmd)
}
