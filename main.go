package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmorgan81/vaultimage/internal/config"
	"github.com/dmorgan81/vaultimage/internal/feed"
	"github.com/dmorgan81/vaultimage/internal/handler"
	"github.com/dmorgan81/vaultimage/internal/inject"
	"github.com/dmorgan81/vaultimage/internal/log"
	"github.com/dmorgan81/vaultimage/internal/mcpserver"
	"github.com/dmorgan81/vaultimage/internal/tool"
	"github.com/samber/do"
)

func main() {
	var (
		mode        = flag.String("mode", "mcp", "one of mcp, lambda, generate, feed, descriptor")
		configPath  = flag.String("config", "", "optional YAML config file")
		description = flag.String("description", "", "image description (generate mode)")
		name        = flag.String("name", "", "base filename without extension (generate mode)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := log.New(os.Stderr)
	ctx = log.NewContext(ctx, logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}

	injector := inject.Setup(ctx, cfg)
	defer func() { _ = injector.Shutdown() }()

	if err := run(ctx, injector, *mode, tool.Args{ImageDescription: *description, BaseFilename: *name}); err != nil {
		logger.Error("exiting", "mode", *mode, "error", err)
		_ = injector.Shutdown()
		os.Exit(1)
	}
}

func run(ctx context.Context, injector *do.Injector, mode string, args tool.Args) error {
	switch mode {
	case "mcp":
		return do.MustInvoke[*mcpserver.Server](injector).Run(ctx)
	case "lambda":
		h := do.MustInvoke[*handler.Handler](injector)
		lambda.StartWithOptions(h.Handle, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
			_ = injector.Shutdown()
		}))
		return nil
	case "generate":
		res, err := do.MustInvoke[*tool.GenerateImage](injector).Run(ctx, args)
		if err != nil {
			return err
		}
		if res.Failed() {
			return errors.New(res.Error)
		}
		return json.NewEncoder(os.Stdout).Encode(res)
	case "feed":
		rss, err := do.MustInvoke[*feed.Generator](injector).Generate(ctx)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(rss)
		return err
	case "descriptor":
		d, err := do.MustInvoke[*tool.GenerateImage](injector).Descriptor()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}
