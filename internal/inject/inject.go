package inject

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"runtime/debug"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/vaultimage/internal/config"
	"github.com/dmorgan81/vaultimage/internal/feed"
	"github.com/dmorgan81/vaultimage/internal/handler"
	"github.com/dmorgan81/vaultimage/internal/image"
	"github.com/dmorgan81/vaultimage/internal/log"
	"github.com/dmorgan81/vaultimage/internal/mcpserver"
	"github.com/dmorgan81/vaultimage/internal/param"
	"github.com/dmorgan81/vaultimage/internal/store"
	"github.com/dmorgan81/vaultimage/internal/tool"
	"github.com/samber/do"
	"github.com/samber/lo"
)

func Setup(ctx context.Context, cfg *config.Config) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideValue[*http.Client](injector, http.DefaultClient)
	do.ProvideValue[*config.Config](injector, cfg)

	do.ProvideNamedValue[string](injector, "vault", cfg.Vault)
	do.ProvideNamed[string](injector, "feed_link", func(i *do.Injector) (string, error) {
		abs, err := filepath.Abs(cfg.Vault)
		if err != nil {
			return "", err
		}
		return (&url.URL{Scheme: "file", Path: abs}).String(), nil
	})
	do.ProvideNamedValue[string](injector, "version", version())
	do.ProvideNamed[string](injector, "backend_key", func(i *do.Injector) (string, error) {
		if cfg.Backend.KeyParam == "" {
			return cfg.Backend.Key, nil
		}
		return do.MustInvoke[param.Fetcher](i).Fetch(ctx, cfg.Backend.KeyParam)
	})

	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	do.Provide[image.Backend](injector, newBackend)
	do.Provide[*image.Gateway](injector, newGateway)
	do.Provide[*tool.GenerateImage](injector, newTool)
	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*mcpserver.Server](injector, mcpserver.NewServer)
	do.Provide[*feed.Generator](injector, feed.NewGenerator)

	return injector
}

func newBackend(i *do.Injector) (image.Backend, error) {
	key, err := do.InvokeNamed[string](i, "backend_key")
	if err != nil {
		return nil, err
	}
	return &image.HTTPBackend{
		Client:   do.MustInvoke[*http.Client](i),
		Endpoint: do.MustInvoke[*config.Config](i).Backend.Endpoint,
		Key:      key,
	}, nil
}

func newGateway(i *do.Injector) (*image.Gateway, error) {
	cfg := do.MustInvoke[*config.Config](i).Backend
	return image.NewGateway(do.MustInvoke[image.Backend](i), image.Options{
		Pipeline: image.Pipeline{
			Model:     cfg.Model,
			Precision: cfg.Precision,
			Device:    cfg.Device,
		},
		Steps:    cfg.Steps,
		Guidance: cfg.Guidance,
	}), nil
}

func newTool(i *do.Injector) (*tool.GenerateImage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	gateway := do.MustInvoke[*image.Gateway](i)
	if !cfg.Mirror.Enabled() {
		return tool.NewGenerateImage(cfg.Vault, gateway), nil
	}

	params := store.AWSMirrorParams{
		S3:           do.MustInvoke[*s3.Client](i),
		Bucket:       cfg.Mirror.Bucket,
		Prefix:       cfg.Mirror.Prefix,
		Distribution: cfg.Mirror.Distribution,
	}
	if params.Distribution != "" {
		params.CloudFront = do.MustInvoke[*cloudfront.Client](i)
	}
	mirror := store.NewAWSMirror(params)
	return tool.NewGenerateImage(cfg.Vault, gateway, tool.WithMirror(mirror)), nil
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	setting := lo.FindOrElse(info.Settings, debug.BuildSetting{Value: "unknown"}, func(s debug.BuildSetting) bool {
		return s.Key == "vcs.revision"
	})
	return setting.Value
}
