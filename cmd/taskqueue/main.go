package main

import (
	"fmt"
	"log"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marijnz/bouncingballs-sub001/config"
)

// Build-time variables (injected via -ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	goVersion = runtime.Version()
	platform  = runtime.GOOS + "/" + runtime.GOARCH

	configFile string

	v   = config.NewViper()
	cfg *config.Config
)

func getVersionInfo() string {
	commitHash := commit
	if len(commit) > 8 {
		commitHash = commit[:8]
	}
	return fmt.Sprintf("taskqueue %s (%s) built with %s on %s", version, commitHash, goVersion, platform)
}

var rootCmd = &cobra.Command{
	Use:     "taskqueue",
	Version: version,
	Short:   "Run task groups on a work-stealing pool",
	Long:    `taskqueue drives a TaskQueue with a synthetic group workload and can expose its Prometheus metrics.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(v, configFile)
		return err
	},
	SilenceUsage: true,
}

// loadConfig reads the optional config file into v and decodes the result.
// Flags bound to v take precedence over the file and the environment.
func loadConfig(v *viper.Viper, path string) (*config.Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	return config.Decode(v)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")
	flags.StringP("name", "n", "", "Queue name used in logs and metrics")
	flags.IntP("workers", "w", 0, "Worker count including the local worker")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Bool("log-json", false, "Log JSON to the console")
	flags.String("log-file", "", "Also log JSON to this rotated file")
	flags.Bool("metrics", false, "Serve Prometheus metrics")
	flags.String("metrics-addr", "", "Listen address for /metrics")

	for key, flag := range map[string]string{
		"queue.name":      "name",
		"queue.workers":   "workers",
		"log.level":       "log-level",
		"log.json":        "log-json",
		"log.file":        "log-file",
		"metrics.enabled": "metrics",
		"metrics.addr":    "metrics-addr",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			log.Fatal(err)
		}
	}

	rootCmd.SetVersionTemplate(getVersionInfo() + "\n")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
