package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/dmorgan81/vaultimage/internal/log"
	"github.com/dmorgan81/vaultimage/internal/reply"
	"github.com/dmorgan81/vaultimage/internal/store"
	"github.com/google/uuid"
)

const pngExt = ".png"

type Gateway interface {
	GenerateImage(context.Context, string) (image.Image, error)
}

// GenerateImage generates an image from a description and saves it as
// <vault>/<base_filename>.png.
type GenerateImage struct {
	vault     string
	gateway   Gateway
	mirror    *store.Mirror
	templator *reply.Templator
}

type Option func(*GenerateImage)

// WithMirror copies every saved image to m after it is written to the vault.
func WithMirror(m *store.Mirror) Option {
	return func(t *GenerateImage) { t.mirror = m }
}

func NewGenerateImage(vault string, gateway Gateway, opts ...Option) *GenerateImage {
	t := &GenerateImage{
		vault:     vault,
		gateway:   gateway,
		templator: &reply.Templator{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *GenerateImage) Vault() string {
	return t.vault
}

// Run never calls the gateway when the vault is unavailable; that case is
// reported in the Result rather than as an error.
func (t *GenerateImage) Run(ctx context.Context, args Args) (Result, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup(Name).With("invocation", uuid.NewString(), "args", args)
	log.Info("handling tool call")

	vault, err := resolveVault(t.vault)
	if err != nil {
		log.Warn("vault unavailable", "error", err)
		return errorResult(err), nil
	}

	name, err := args.filename()
	if err != nil {
		return Result{}, err
	}

	img, err := t.gateway.GenerateImage(ctx, args.ImageDescription)
	if err != nil {
		return Result{}, fmt.Errorf("generating image: %w", err)
	}

	var data bytes.Buffer
	if err := png.Encode(&data, img); err != nil {
		return Result{}, fmt.Errorf("encoding image: %w", err)
	}

	upload := store.UploadParams{
		Name:        name,
		Data:        data.Bytes(),
		ContentType: "image/png",
		Metadata:    map[string]string{"prompt": args.ImageDescription},
	}
	if err := (&store.FileUploader{Dir: vault}).Upload(ctx, upload); err != nil {
		return Result{}, fmt.Errorf("saving image: %w", err)
	}
	if t.mirror != nil {
		if err := t.mirror.Publish(ctx, upload); err != nil {
			return Result{}, fmt.Errorf("mirroring image: %w", err)
		}
	}

	markdown := fmt.Sprintf("![image](%s)", name)
	msg, err := t.templator.Template(reply.Params{Name: name, Markdown: markdown})
	if err != nil {
		return Result{}, err
	}

	path := filepath.Join(vault, name)
	log.Info("saved image", "path", path)
	return Result{
		Path:         path,
		RelativePath: name,
		Markdown:     markdown,
		Message:      msg,
	}, nil
}

func resolveVault(vault string) (string, error) {
	if vault == "" {
		return "", errors.New("no vault is configured")
	}

	abs, err := filepath.Abs(vault)
	if err != nil {
		return "", fmt.Errorf("vault %s cannot be resolved: %w", vault, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("vault %s is unavailable: %w", vault, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("vault %s is not a directory", vault)
	}
	return abs, nil
}
