// Package main is the entry point for the gatewayenv command.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/qserverless/gatewayenv/internal/config"
	"github.com/qserverless/gatewayenv/pkg/logger"
)

var (
	configPath  = flag.String("config", "", "Path to config file")
	showVersion = flag.Bool("version", false, "Show version")
)

const version = "0.1.0"

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: gatewayenv [flags] <command> [command flags]\n\n")
	fmt.Fprintf(out, "Commands:\n")
	fmt.Fprintf(out, "  init            write a config file and generate a secret key file\n")
	fmt.Fprintf(out, "  build           build and encrypt a job environment\n")
	fmt.Fprintf(out, "  decrypt         decrypt a job environment to JSON\n")
	fmt.Fprintf(out, "  env             decrypt a job environment to KEY=VALUE lines\n")
	fmt.Fprintf(out, "  run             run a worker with a stored job environment\n")
	fmt.Fprintf(out, "  list            list stored job environments\n")
	fmt.Fprintf(out, "  delete          delete a stored job environment\n")
	fmt.Fprintf(out, "  encrypt-string  encrypt stdin\n")
	fmt.Fprintf(out, "  decrypt-string  decrypt stdin\n\n")
	fmt.Fprintf(out, "Flags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("gatewayenv version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if args[0] == "init" {
		if err := initialize(args[1:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Initialization failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init("gatewayenv", cfg.Log.Env, cfg.Log.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, logger.L(), os.Stdin, os.Stdout)
	if err := a.dispatch(ctx, args[0], args[1:]); err != nil {
		logger.L().Error("command failed", zap.String("command", args[0]), zap.Error(err))
		stop()
		logger.Sync()
		os.Exit(1)
	}
}
