package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-logr/logr"
)

// HTTPBackend talks to a diffusers inference server that keeps loaded
// pipelines addressable by id.
type HTTPBackend struct {
	Client   *http.Client
	Endpoint string
	Key      string
}

type httpHandle struct {
	backend *HTTPBackend
	id      string
}

func (b *HTTPBackend) Load(ctx context.Context, pipeline Pipeline) (Handle, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("endpoint", b.Endpoint, "pipeline", pipeline)
	log.Info("loading pipeline via diffusion server")

	body, err := json.Marshal(pipeline)
	if err != nil {
		return nil, err
	}

	resp, err := b.do(ctx, http.MethodPost, "/pipelines", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding pipeline response: %w", err)
	}
	if out.ID == "" {
		return nil, errors.New("diffusion server returned no pipeline id")
	}
	log.Info("pipeline loaded", "id", out.ID)

	return &httpHandle{backend: b, id: out.ID}, nil
}

func (h *httpHandle) Generate(ctx context.Context, req Request) ([]byte, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("pipeline", h.id)
	log.Info("generating image via diffusion server")

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := h.backend.do(ctx, http.MethodPost, "/pipelines/"+url.PathEscape(h.id)+"/text2image", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	seed := resp.Header.Get("X-Input-Seed")
	log.Info("received image via diffusion server", "seed", seed)

	return io.ReadAll(resp.Body)
}

func (h *httpHandle) Close(ctx context.Context) error {
	resp, err := h.backend.do(ctx, http.MethodDelete, "/pipelines/"+url.PathEscape(h.id), nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(b.Endpoint, "/")+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}
	if b.Key != "" {
		req.Header.Add("X-Api-Key", b.Key)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}
