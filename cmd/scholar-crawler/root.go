package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "scholar-crawler"

// NewRootCmd creates the root command for scholar-crawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Resumable Google Scholar co-authorship crawler",
		Long: `scholar-crawler discovers co-authorship relations on Google Scholar.
Starting from seed author searches or profile identifiers it walks the
co-author links breadth-first, builds an author graph and periodically
checkpoints its progress so an interrupted crawl can be resumed.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (default: ./scholar-crawler.yaml)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewVersionCmd())

	cobra.OnInitialize(func() { initConfig(cmd) })

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads the optional config file and maps environment
// variables of the form SCHOLAR_CRAWLER_* onto flags.
func initConfig(cmd *cobra.Command) {
	cfgFile, _ := cmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(appName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", appName))
		}
	}

	viper.SetEnvPrefix("SCHOLAR_CRAWLER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger instantiates the root logger all services share.
func newLogger(cmd *cobra.Command) *logrus.Entry {
	host, _ := os.Hostname()

	rootLogger := logrus.New()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		rootLogger.SetLevel(logrus.DebugLevel)
	}

	return rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"host": host,
	})
}
