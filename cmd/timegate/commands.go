package main

import (
	"github.com/spf13/cobra"

	"github.com/nainya/timegate/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "timegate",
	Short:         "Memento TimeGate and TimeMap server for versioned pages",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var (
	flagConfPath   string
	flagStore      string
	flagSQLitePath string
	flagMongoURI   string
	flagRemoteAddr string
)

// Run executes CLI.
func Run() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}

	return 0
}

// loadConfig reads the config file when given and applies the store flags
// on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	conf := config.NewConfig()
	if flagConfPath != "" {
		parsed, err := config.NewConfigFromFile(flagConfPath)
		if err != nil {
			return nil, err
		}
		conf = parsed
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		conf.Store.Backend = flagStore
	}
	if flags.Changed("sqlite-path") {
		conf.Store.SQLitePath = flagSQLitePath
	}
	if flags.Changed("mongo-uri") {
		conf.Store.MongoURI = flagMongoURI
	}
	if flags.Changed("remote-addr") {
		conf.Store.RemoteAddr = flagRemoteAddr
	}

	return conf, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfPath, "config", "c", "", "Config path")
	rootCmd.PersistentFlags().StringVar(
		&flagStore,
		"store",
		config.DefaultStoreBackend,
		"Version store backend: sqlite, memory, mongo, remote",
	)
	rootCmd.PersistentFlags().StringVar(
		&flagSQLitePath,
		"sqlite-path",
		config.DefaultSQLitePath,
		"SQLite database path",
	)
	rootCmd.PersistentFlags().StringVar(
		&flagMongoURI,
		"mongo-uri",
		config.DefaultMongoURI,
		"MongoDB's connection URI",
	)
	rootCmd.PersistentFlags().StringVar(
		&flagRemoteAddr,
		"remote-addr",
		config.DefaultRemoteAddr,
		"Address of a remote revision service",
	)
}
