package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/lbpfeat/internal/config"
	"github.com/MeKo-Tech/lbpfeat/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// Error from the last configuration load.
	configErr error
	// Flag to configuration key bindings, applied to every fresh viper instance.
	flagBindings []func(v *viper.Viper) error
)

// bindFlag binds a flag to a configuration key so an explicitly set flag
// overrides environment, file and defaults.
func bindFlag(key string, f *pflag.Flag) {
	flagBindings = append(flagBindings, func(v *viper.Viper) error {
		return v.BindPFlag(key, f)
	})
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "lbpfeat",
	Short: "Patch-based LBP feature extraction",
	Long: `lbpfeat builds and applies patch-based local binary pattern (LBP) feature
extractors as used by boosted face and object detectors.

This tool provides:
- Generation of MB-LBP and LBP operator families over a detection patch
- Inspection of saved extractors
- Batch extraction of feature datasets from annotated images
- Mean and variance of image regions through integral images

Examples:
  lbpfeat generate -o extractor.yaml --patch-height 24 --patch-width 20
  lbpfeat info extractor.yaml
  lbpfeat extract annotations.csv --model extractor.yaml -o dataset.yaml
  lbpfeat meanvar face.png --box 10,12,48,40`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			printVersion(cmd.OutOrStdout())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/lbpfeat, /etc/lbpfeat)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	bindFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	bindFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return fmt.Errorf("error loading configuration: %w", configErr)
		}
		if globalConfig == nil {
			if err := initConfigE(); err != nil {
				return err
			}
		}
		setupLogging(cmd.ErrOrStderr(), globalConfig)
		slog.Debug("starting command", "command", cmd.CommandPath(), "build", version.String())
		return nil
	}
}

// setupLogging installs the JSON slog handler. Logs go to stderr so that
// datasets written to stdout stay parseable.
func setupLogging(w io.Writer, cfg *config.Config) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})))
}

// initConfig reads in config file and ENV variables if set. Errors are
// reported by the command's pre-run hook.
func initConfig() {
	configErr = initConfigE()
}

// initConfigE loads into a fresh viper instance so repeated executions in
// one process do not see each other's config files.
func initConfigE() error {
	v := viper.New()
	for _, bind := range flagBindings {
		if err := bind(v); err != nil {
			return err
		}
	}
	configLoader = config.NewLoaderWithViper(v)

	var err error
	// Validation happens per command once flags are merged in.
	globalConfig, err = configLoader.LoadWithFileWithoutValidation(cfgFile)
	return err
}

// GetConfig returns the configuration with CLI flags merged in.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if err := initConfigE(); err != nil {
			return nil, err
		}
	}

	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

func printVersion(w io.Writer) {
	v, commit, date := version.Info()
	_, _ = fmt.Fprintf(w, "lbpfeat version %s\n", v)
	_, _ = fmt.Fprintf(w, "Commit: %s\n", commit)
	_, _ = fmt.Fprintf(w, "Date: %s\n", date)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
