package image

import "context"

// Pipeline identifies the diffusion pipeline a Backend should load.
type Pipeline struct {
	Model     string `json:"model"`
	Precision string `json:"torch_dtype"`
	Device    string `json:"device"`
}

type Request struct {
	Prompt   string  `json:"prompt"`
	Steps    int     `json:"num_inference_steps"`
	Guidance float64 `json:"guidance_scale"`
}

// Handle is a loaded pipeline. Generate returns encoded image bytes.
type Handle interface {
	Generate(context.Context, Request) ([]byte, error)
	Close(context.Context) error
}

type Backend interface {
	Load(context.Context, Pipeline) (Handle, error)
}
