// Package cmd implements the reslock command line, used by operators to hold
// and probe resource locks of a running deployment.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/ezraisw/reslock/config"
	"github.com/ezraisw/reslock/logger"
	logrlogger "github.com/ezraisw/reslock/logger/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	v = viper.New()

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:           "reslock",
		Short:         "Hold, probe and inspect resource locks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// flag name -> config key
	flagKeys = map[string]string{
		"backend":            "backend",
		"single-process":     "single_process",
		"readers":            "readers",
		"nodes":              "nodes",
		"driver":             "driver",
		"expiration":         "expiration",
		"quorum-expiry":      "quorum.expiry",
		"quorum-tries":       "quorum.tries",
		"quorum-retry-delay": "quorum.retry_delay",
		"quorum-jitter":      "quorum.retry_jitter",
		"quorum-drift":       "quorum.drift_factor",
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(holdCmd)
	RootCmd.AddCommand(probeCmd)
	RootCmd.AddCommand(inspectCmd)

	flags := RootCmd.PersistentFlags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.CountP("verbose", "v", "increase log verbosity")
	flags.String("backend", config.BackendRedsync, "lock backend (memory, redsync, redislock, noop)")
	flags.Bool("single-process", false, "allow in-process backends")
	flags.String("readers", "", "reader handling (counting, equal)")
	flags.StringSlice("nodes", []string{"localhost:6379"}, "host:port of every lock node")
	flags.String("driver", "goredis", "redis client for the redsync backend (goredis, redigo)")
	flags.Duration("expiration", 0, "time a critical section may go without maintaining its lock")
	flags.Duration("quorum-expiry", 0, "lease TTL of distributed locks")
	flags.Int("quorum-tries", 0, "attempts at reaching a quorum")
	flags.Duration("quorum-retry-delay", 0, "delay between quorum attempts")
	flags.Duration("quorum-jitter", 0, "maximum random delay added between attempts")
	flags.Float64("quorum-drift", 0, "clock drift factor")

	// Defaults take precedence over unchanged flags.
	config.SetDefaults(v)
	v.SetDefault("backend", config.BackendRedsync)
	v.SetDefault("nodes", []string{"localhost:6379"})
	for flag, key := range flagKeys {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}

func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v.SetEnvPrefix("reslock")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file, _ := RootCmd.PersistentFlags().GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "error reading config:", err)
			os.Exit(1)
		}
	}
}

func newLogger() logger.Logger {
	verbosity, _ := RootCmd.PersistentFlags().GetCount("verbose")
	sink := funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: verbosity})
	return logrlogger.NewLogger(sink)
}

func newStack() (*config.Stack, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	return config.New(cfg, newLogger())
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
