package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iboybrian/atitlan-vibes/internal/config"
	"github.com/iboybrian/atitlan-vibes/internal/logging"
	"github.com/iboybrian/atitlan-vibes/internal/profile"
	"github.com/iboybrian/atitlan-vibes/internal/remote"
)

type env struct {
	client  *remote.Client
	userID  string
	jsonOut bool
	logger  *zap.Logger
}

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	userFlag := flag.String("user", "", "user id for chat commands (overrides config user_id)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Usage = printUsage
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fail(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// invite works offline.
	if args[0] == "invite" {
		if len(args) != 2 {
			usage("vibesctl invite <townId>")
		}
		cmdInvite(args[1], *jsonFlag)
		return
	}

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		fail(err)
	}
	if *userFlag != "" {
		cfg.UserID = *userFlag
	}
	logger, err := logging.NewClient(profile.ClientLogPath(profileName), profileName, "vibesctl", cfg.LogLevel)
	if err != nil {
		fail(fmt.Errorf("open log: %w", err))
	}
	defer func() { _ = logger.Sync() }()

	socketPath := profile.SocketPath(profileName)
	c, err := remote.Dial(socketPath, logger.Named("remote"))
	if err != nil {
		fail(fmt.Errorf("cannot connect to daemon for profile %q: %w", profileName, err))
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err = c.Ping(pingCtx)
	cancel()
	if err != nil {
		fail(fmt.Errorf("daemon for profile %q is not running (start vibesd): %w", profileName, err))
	}

	e := &env{client: c, userID: cfg.UserID, jsonOut: *jsonFlag, logger: logger}
	if err := run(ctx, e, args); err != nil {
		logger.Warn("command failed", zap.Strings("args", args), zap.Error(err))
		fail(err)
	}
}

func run(ctx context.Context, e *env, args []string) error {
	switch args[0] {
	case "towns":
		if len(args) >= 2 && args[1] == "list" {
			return cmdTownsList(ctx, e)
		}
		if len(args) >= 4 && args[1] == "add" {
			desc := ""
			if len(args) >= 5 {
				desc = args[4]
			}
			return cmdTownsAdd(ctx, e, args[2], args[3], desc)
		}
		usage("vibesctl towns <list | add <id> <name> [description]>")
	case "users":
		if len(args) >= 4 && args[1] == "add" {
			email := ""
			if len(args) >= 5 {
				email = args[4]
			}
			return cmdUsersAdd(ctx, e, args[2], args[3], email)
		}
		usage("vibesctl users add <id> <name> [email]")
	case "chat":
		if len(args) < 3 {
			usage("vibesctl chat <open|send|react|tail> <townId> ...")
		}
		return runChat(ctx, e, args[1], args[2], args[3:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	return nil
}

func runChat(ctx context.Context, e *env, sub, scope string, rest []string) error {
	switch sub {
	case "open":
		return cmdChatOpen(ctx, e, scope)
	case "send":
		if len(rest) < 1 {
			usage("vibesctl chat send <townId> <text> [replyToMessageId]")
		}
		replyTo := ""
		if len(rest) >= 2 {
			replyTo = rest[1]
		}
		return cmdChatSend(ctx, e, scope, rest[0], replyTo)
	case "react":
		if len(rest) != 2 {
			usage("vibesctl chat react <townId> <messageId> <emoji>")
		}
		return cmdChatReact(ctx, e, scope, rest[0], rest[1])
	case "tail":
		return cmdChatTail(ctx, e, scope)
	}
	usage("vibesctl chat <open|send|react|tail> <townId> ...")
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: vibesctl [--profile <name>] [--user <id>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  towns list                            List towns")
	fmt.Fprintln(os.Stderr, "  towns add <id> <name> [desc]          Create or rename a town")
	fmt.Fprintln(os.Stderr, "  users add <id> <name> [email]         Create or update a user")
	fmt.Fprintln(os.Stderr, "  chat open <townId>                    Resolve the town chat and print its history")
	fmt.Fprintln(os.Stderr, "  chat send <townId> <text> [replyTo]   Send a message")
	fmt.Fprintln(os.Stderr, "  chat react <townId> <msgId> <emoji>   Toggle a reaction")
	fmt.Fprintln(os.Stderr, "  chat tail <townId>                    Follow new messages")
	fmt.Fprintln(os.Stderr, "  invite <townId>                       Print the chat invite link and QR code")
}

func usage(line string) {
	fmt.Fprintln(os.Stderr, "usage: "+line)
	os.Exit(1)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
