package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/iboybrian/atitlan-vibes/internal/bus"
	"github.com/iboybrian/atitlan-vibes/internal/chat"
	"github.com/iboybrian/atitlan-vibes/internal/config"
	"github.com/iboybrian/atitlan-vibes/internal/logging"
	"github.com/iboybrian/atitlan-vibes/internal/profile"
	"github.com/iboybrian/atitlan-vibes/internal/remote"
	"github.com/iboybrian/atitlan-vibes/internal/tui"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	userFlag := flag.String("user", "", "user id to chat as (overrides config user_id)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: vibes [--profile <name>] [--user <id>] <townId>[:<roomType>]")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	scope, err := chat.ParseScope(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

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
	if *userFlag != "" {
		cfg.UserID = *userFlag
	}

	logger, err := logging.NewClient(profile.ClientLogPath(profileName), profileName, "vibes", cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open log: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	socketPath := profile.SocketPath(profileName)

	// Probe daemon health; auto-start if needed.
	if !probeDaemon(socketPath) {
		fmt.Fprintf(os.Stderr, "daemon not running for profile %q, starting...\n", profileName)
		if err := startDaemon(profileName); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(socketPath, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready, see %s\n", profile.LogPath(profileName))
			os.Exit(1)
		}
	}

	c, err := remote.Dial(socketPath, logger.Named("remote"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	b := bus.New()
	ctl := chat.NewController(chat.Options{
		Store:    c,
		Feed:     c,
		Identity: chat.StaticIdentity(cfg.UserID),
		Bus:      b,
		Logger:   logger.Named("chat"),
	})

	app := tui.NewApp(tui.Options{
		Controller: ctl,
		Bus:        b,
		Scope:      scope,
		Profile:    profileName,
		Logger:     logger.Named("tui"),
	})
	if err := app.Run(); err != nil {
		logger.Error("tui exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeDaemon checks the daemon with a real gRPC health check.
func probeDaemon(socketPath string) bool {
	c, err := remote.Dial(socketPath, nil)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Ping(ctx) == nil
}

func startDaemon(profileName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	vibesd := filepath.Join(filepath.Dir(executable), "vibesd")
	if _, err := os.Stat(vibesd); err != nil {
		vibesd = "vibesd"
	}

	// The daemon logs to the terminal too; keep it off the TUI's screen.
	cmd := exec.Command(vibesd, "--profile", profileName)
	return cmd.Start()
}

func waitForDaemon(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
