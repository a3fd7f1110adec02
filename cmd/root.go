package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"sibterm/pkg/config"
)

var (
	cfgFile   string
	debug     bool
	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "sibterm",
	Short: "Terminal client for ShellInABox servers",
	Long: `A command-line client that attaches the local terminal to a remote shell
served by ShellInABox. Keystrokes are uploaded and screen output is long-polled
over plain HTTP(S), so no browser is needed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if debug {
			cfg.Log.Level = "debug"
		}
		logCloser, err = cfg.Log.ConfigureZerolog()
		if err != nil {
			return err
		}
		return nil
	},
}

// Execute runs the root command and exits with status 1 on error
func Execute() {
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", renderError(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sibterm/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().Bool("no-verify", false, "skip TLS certificate verification")

	bindFlag(rootCmd.PersistentFlags(), "log.file", "log-file")
	bindFlag(rootCmd.PersistentFlags(), "http.insecure_skip_verify", "no-verify")
}

// bindFlag ties a viper key to a flag so the flag overrides file and env
func bindFlag(flags *pflag.FlagSet, key, name string) {
	if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func GetConfig() *config.Config {
	return cfg
}
