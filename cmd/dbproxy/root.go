package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	dbproxy "github.com/ice-blockchain/go-dbproxy"
	"github.com/ice-blockchain/go-dbproxy/benchmark"
	"github.com/ice-blockchain/go-dbproxy/config"
	"github.com/ice-blockchain/go-dbproxy/driver"
	"github.com/ice-blockchain/go-dbproxy/errorlog"
	"github.com/ice-blockchain/go-dbproxy/logger"
	"github.com/ice-blockchain/go-dbproxy/selector"
)

const Version = "0.3.0"

var (
	source *config.Static
	db     *dbproxy.Database
	bench  *benchmark.Benchmark
	events logger.Logger = logger.Nop{}
	rdb    redis.UniversalClient

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dbproxy",
		Short: "load-balanced database access",
		Long: fmt.Sprintf(`dbproxy (v%s)

Runs statements against a master/slaves database deployment. Reads go to a
healthy slave picked by weight, writes to the master. Without a profile
every statement runs on the single configured server.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(queryCmd, rowCmd, oneCmd, execCmd, escapeCmd, nodesCmd, versionCmd)
	// version works without a configuration file
	versionCmd.PersistentPreRunE = func(*cobra.Command, []string) error { return nil }

	flags := RootCmd.PersistentFlags()
	flags.StringP("config", "c", "dbproxy.yaml", "configuration file holding the database and db_profiles keys")
	flags.String("profile", "", "database profile to use, overrides database.profile")
	flags.String("tag", "", "label appended to the statement as a comment")
	flags.Bool("master", false, "run the statement on the master even if it is a read")
	flags.Bool("debug", false, "print the debug record of every statement to stderr")
	flags.Bool("metrics", false, "print connection and query timings in Prometheus format to stderr")
	flags.String("redis", "", "redis URL of the shared node health cache, in-process cache if empty")
	flags.String("log-level", "warn", "minimum level of logged events (debug, info, warn, error)")
}

// initConfig loads .env files and environment overrides.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	var err error
	source, err = config.LoadFile(viper.GetString("config"))
	if err != nil {
		return err
	}
	if p := viper.GetString("profile"); p != "" {
		source.Database.Profile = p
	}

	events = newKitLogger(stderr, viper.GetString("log-level"))

	var cache selector.HealthCache
	if url := viper.GetString("redis"); url != "" {
		if rdb, err = selector.NewRedisUniversalClient(url); err != nil {
			return err
		}
		cache = selector.NewRedisCache(rdb)
	}

	bench = benchmark.New()
	db = dbproxy.New(source, dbproxy.Opts{
		Debug:       viper.GetBool("debug"),
		ErrorPolicy: dbproxy.PropagateOnFailure,
		Selector: selector.NewWeighted(selector.Opts{
			Prober: selector.DriverProber{Registry: driver.Default},
			Cache:  cache,
			Logger: events,
		}),
		Timer:   bench,
		Logger:  events,
		Request: errorlog.Request{URL: "cli://" + cmd.CommandPath()},
	})
	return nil
}

func newKitLogger(w io.Writer, lvl string) logger.Logger {
	l := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	l = level.NewFilter(l, levelOption(lvl))
	l = kitlog.With(l, "ts", kitlog.DefaultTimestampUTC)
	return logger.NewKitLogger(l)
}

func levelOption(lvl string) level.Option {
	switch strings.ToLower(lvl) {
	case "debug":
		return level.AllowDebug()
	case "info":
		return level.AllowInfo()
	case "error":
		return level.AllowError()
	default:
		return level.AllowWarn()
	}
}

// finish prints what the flags asked for and releases every connection.
func finish() {
	if db == nil {
		return
	}
	if viper.GetBool("debug") {
		printRecords(stderr, db.Debug().Queries())
	}
	if viper.GetBool("metrics") {
		bench.WritePrometheus(stderr)
	}
	if err := db.Close(); err != nil {
		fmt.Fprintln(stderr, "close:", err)
	}
	if rdb != nil {
		rdb.Close()
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := RootCmd.ExecuteContext(context.Background())
	finish()
	if err != nil {
		return 1
	}
	return 0
}
