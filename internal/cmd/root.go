package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atikulmunna/lognorm/internal/config"
	"github.com/atikulmunna/lognorm/internal/logger"
)

var cfgFile string

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "lognorm",
	Short: "lognorm — log-line normalizer",
	Long: `lognorm turns raw lines from application servers, HTTP access logs,
cache servers, database servers and data-sync jobs into one canonical
record shape: timestamp, level, message, plus role or client address
where the source carries them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(viper.GetViper(), cfgFile); err != nil {
			return err
		}
		return logger.Setup(viper.GetString("log_level"), viper.GetString("log_format"))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.lognorm.yaml)")
	flags.StringP("output", "o", "text", "output format: text, json")
	flags.StringSliceP("level", "l", nil, "only show these levels (comma-separated: error,warning)")
	flags.String("log-level", "info", "operational log level: debug, info, warn, error")
	flags.String("log-format", "text", "operational log format: text, json")

	cobra.CheckErr(viper.BindPFlag("output", flags.Lookup("output")))
	cobra.CheckErr(viper.BindPFlag("levels", flags.Lookup("level")))
	cobra.CheckErr(viper.BindPFlag("log_level", flags.Lookup("log-level")))
	cobra.CheckErr(viper.BindPFlag("log_format", flags.Lookup("log-format")))
}
