package inject

import (
	"bytes"
	"context"
	stdimage "image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmorgan81/vaultimage/internal/config"
	"github.com/dmorgan81/vaultimage/internal/handler"
	"github.com/dmorgan81/vaultimage/internal/image"
	"github.com/dmorgan81/vaultimage/internal/tool"
	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diffusionServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, stdimage.NewGray(stdimage.Rect(0, 0, 8, 8))))

	mux := http.NewServeMux()
	mux.HandleFunc("/pipelines", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p"}`))
	})
	mux.HandleFunc("/pipelines/p/text2image", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/pipelines/p", func(w http.ResponseWriter, r *http.Request) {})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(vault, endpoint string) *config.Config {
	return &config.Config{
		Vault: vault,
		Backend: config.BackendConfig{
			Endpoint:  endpoint,
			Model:     "m",
			Precision: "float16",
			Device:    "cpu",
			Steps:     5,
			Guidance:  2,
			Key:       "k",
		},
	}
}

func TestSetup(t *testing.T) {
	vault := t.TempDir()
	srv := diffusionServer(t)
	injector := Setup(context.Background(), testConfig(vault, srv.URL))

	gw := do.MustInvoke[*image.Gateway](injector)
	assert.Equal(t, 5, gw.Options().Steps)
	assert.Equal(t, image.Pipeline{Model: "m", Precision: "float16", Device: "cpu"}, gw.Options().Pipeline)

	h := do.MustInvoke[*handler.Handler](injector)
	out, err := h.Handle(context.Background(), handler.Input{ImageDescription: "cat", BaseFilename: "cat"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(vault, "cat.png"), out.Path)
	assert.FileExists(t, out.Path)

	assert.NoError(t, injector.Shutdown())
}

func TestSetupPassesZeroGuidance(t *testing.T) {
	cfg := testConfig(t.TempDir(), "http://unused")
	cfg.Backend.Guidance = 0
	injector := Setup(context.Background(), cfg)

	assert.Zero(t, do.MustInvoke[*image.Gateway](injector).Options().Guidance)
}

func TestSetupFeedLinkIsAbsolute(t *testing.T) {
	t.Chdir(t.TempDir())
	injector := Setup(context.Background(), testConfig("vault", "http://unused"))

	abs, err := filepath.Abs("vault")
	require.NoError(t, err)
	link := do.MustInvokeNamed[string](injector, "feed_link")
	assert.Equal(t, (&url.URL{Scheme: "file", Path: abs}).String(), link)
	assert.True(t, strings.HasPrefix(link, "file:///"))
}

func TestSetupSharesTool(t *testing.T) {
	injector := Setup(context.Background(), testConfig(t.TempDir(), "http://unused"))
	assert.Same(t, do.MustInvoke[*tool.GenerateImage](injector), do.MustInvoke[*tool.GenerateImage](injector))
}
