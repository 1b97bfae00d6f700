package image

import (
	"bytes"
	"context"
	"errors"
	stdimage "image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redPNG(t *testing.T) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeBackend struct {
	loads    atomic.Int32
	loadErr  error
	pipeline Pipeline
	handle   *fakeHandle
}

func (b *fakeBackend) Load(_ context.Context, p Pipeline) (Handle, error) {
	b.loads.Add(1)
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	b.pipeline = p
	return b.handle, nil
}

type fakeHandle struct {
	data     []byte
	err      error
	mu       sync.Mutex
	requests []Request
	inflight atomic.Int32
	overlap  atomic.Bool
	closed   bool
}

func (h *fakeHandle) Generate(_ context.Context, req Request) ([]byte, error) {
	if h.inflight.Add(1) > 1 {
		h.overlap.Store(true)
	}
	defer h.inflight.Add(-1)

	h.mu.Lock()
	h.requests = append(h.requests, req)
	h.mu.Unlock()
	return h.data, h.err
}

func (h *fakeHandle) Close(context.Context) error {
	h.closed = true
	return nil
}

func TestGatewayDefaults(t *testing.T) {
	backend := &fakeBackend{handle: &fakeHandle{data: redPNG(t)}}
	gw := NewGateway(backend, DefaultOptions())

	img, err := gw.GenerateImage(context.Background(), "a red test image")
	require.NoError(t, err)
	assert.Equal(t, stdimage.Rect(0, 0, 64, 64), img.Bounds())

	assert.Equal(t, Pipeline{Model: DefaultModel, Precision: DefaultPrecision, Device: DefaultDevice}, backend.pipeline)
	require.Len(t, backend.handle.requests, 1)
	assert.Equal(t, Request{Prompt: "a red test image", Steps: 40, Guidance: 4.5}, backend.handle.requests[0])
}

func TestGatewayZeroGuidance(t *testing.T) {
	backend := &fakeBackend{handle: &fakeHandle{data: redPNG(t)}}
	gw := NewGateway(backend, Options{Steps: 40, Guidance: 0})

	_, err := gw.GenerateImage(context.Background(), "kitten")
	require.NoError(t, err)
	require.Len(t, backend.handle.requests, 1)
	assert.Zero(t, backend.handle.requests[0].Guidance)
	assert.Zero(t, gw.Options().Guidance)
}

func TestGatewayLoadsOnce(t *testing.T) {
	backend := &fakeBackend{handle: &fakeHandle{data: redPNG(t)}}
	gw := NewGateway(backend, Options{Steps: 10, Guidance: 7})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gw.GenerateImage(context.Background(), "kitten")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, backend.loads.Load())
	assert.Len(t, backend.handle.requests, 8)
	assert.False(t, backend.handle.overlap.Load())
	for _, req := range backend.handle.requests {
		assert.Equal(t, 10, req.Steps)
		assert.InDelta(t, 7, req.Guidance, 1e-9)
	}
}

func TestGatewayLoadError(t *testing.T) {
	boom := errors.New("no device")
	backend := &fakeBackend{loadErr: boom}
	gw := NewGateway(backend, Options{})

	_, err := gw.GenerateImage(context.Background(), "kitten")
	assert.ErrorIs(t, err, boom)

	_, err = gw.GenerateImage(context.Background(), "kitten")
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 2, backend.loads.Load())
}

func TestGatewayGenerateError(t *testing.T) {
	boom := errors.New("oom")
	gw := NewGateway(&fakeBackend{handle: &fakeHandle{err: boom}}, Options{})

	_, err := gw.GenerateImage(context.Background(), "kitten")
	assert.ErrorIs(t, err, boom)
}

func TestGatewayUndecodable(t *testing.T) {
	gw := NewGateway(&fakeBackend{handle: &fakeHandle{data: []byte("not an image")}}, Options{})

	_, err := gw.GenerateImage(context.Background(), "kitten")
	assert.ErrorContains(t, err, "decoding")
}

func TestGatewayEmptyDescription(t *testing.T) {
	backend := &fakeBackend{handle: &fakeHandle{}}
	gw := NewGateway(backend, Options{})

	_, err := gw.GenerateImage(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyDescription)
	assert.Zero(t, backend.loads.Load())
}

func TestGatewayShutdown(t *testing.T) {
	backend := &fakeBackend{handle: &fakeHandle{data: redPNG(t)}}
	gw := NewGateway(backend, Options{})
	require.NoError(t, gw.Shutdown())

	_, err := gw.GenerateImage(context.Background(), "kitten")
	require.NoError(t, err)
	require.NoError(t, gw.Shutdown())
	assert.True(t, backend.handle.closed)
}
