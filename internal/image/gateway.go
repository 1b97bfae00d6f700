package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	stdimage "image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync"

	"github.com/go-logr/logr"
)

const (
	DefaultModel     = "stabilityai/stable-diffusion-3.5-medium"
	DefaultPrecision = "float16"
	DefaultDevice    = "mps"
	DefaultSteps     = 40
	DefaultGuidance  = 4.5
)

var ErrEmptyDescription = errors.New("image description is empty")

// Options configures a Gateway. Zero strings and a zero step count fall
// back to the defaults; Guidance is used as given, so 0 disables guidance.
type Options struct {
	Pipeline Pipeline
	Steps    int
	Guidance float64
}

func DefaultOptions() Options {
	return Options{Guidance: DefaultGuidance}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Pipeline.Model == "" {
		o.Pipeline.Model = DefaultModel
	}
	if o.Pipeline.Precision == "" {
		o.Pipeline.Precision = DefaultPrecision
	}
	if o.Pipeline.Device == "" {
		o.Pipeline.Device = DefaultDevice
	}
	if o.Steps == 0 {
		o.Steps = DefaultSteps
	}
	return o
}

// Gateway owns a lazily loaded pipeline. The pipeline is loaded at most
// once and calls to GenerateImage are serialized.
type Gateway struct {
	backend Backend
	opts    Options

	mu     sync.Mutex
	handle Handle
}

func NewGateway(backend Backend, opts Options) *Gateway {
	return &Gateway{backend: backend, opts: opts.withDefaults()}
}

func (g *Gateway) Options() Options {
	return g.opts
}

func (g *Gateway) GenerateImage(ctx context.Context, description string) (stdimage.Image, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	log := logr.FromContextOrDiscard(ctx).WithName("gateway")

	if g.handle == nil {
		log.Info("loading pipeline", "pipeline", g.opts.Pipeline)
		handle, err := g.backend.Load(ctx, g.opts.Pipeline)
		if err != nil {
			return nil, fmt.Errorf("loading pipeline %s: %w", g.opts.Pipeline.Model, err)
		}
		g.handle = handle
	}

	log.Info("generating image", "steps", g.opts.Steps, "guidance", g.opts.Guidance)
	data, err := g.handle.Generate(ctx, Request{
		Prompt:   description,
		Steps:    g.opts.Steps,
		Guidance: g.opts.Guidance,
	})
	if err != nil {
		return nil, err
	}

	img, format, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding generated image: %w", err)
	}
	log.V(1).Info("decoded image", "format", format, "bounds", img.Bounds().String())
	return img, nil
}

// Shutdown releases the loaded pipeline, if any.
func (g *Gateway) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.handle == nil {
		return nil
	}
	err := g.handle.Close(context.Background())
	g.handle = nil
	return err
}
