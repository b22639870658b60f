package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/iboybrian/atitlan-vibes/internal/config"
	"github.com/iboybrian/atitlan-vibes/internal/daemon"
	"github.com/iboybrian/atitlan-vibes/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			ProfileName: profileName,
			LogLevel:    cfg.LogLevel,
			MetricsAddr: cfg.MetricsAddr,
		}),
	)

	app.Run()
}
