package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

const (
	Name        = "generate_image"
	Description = "Generates a PNG image from a description using the Stable Diffusion 3.5 Medium model, " +
		"saves it in the vault, and returns a path relative to the vault that can be used in a markdown file."
)

type Descriptor struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type Function struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Parameters returns the JSON schema of Args.
func Parameters() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: false,
		AllowAdditionalProperties:  false,
	}
	schema := reflector.Reflect(&Args{})
	schema.Version = ""
	schema.ID = ""

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encoding %s schema: %w", Name, err)
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("decoding %s schema: %w", Name, err)
	}
	return params, nil
}

func (t *GenerateImage) Descriptor() (Descriptor, error) {
	params, err := Parameters()
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{
		Type: "function",
		Function: Function{
			Name:        Name,
			Description: Description,
			Parameters:  params,
		},
	}, nil
}

// RunJSON validates raw tool-call arguments against the advertised schema
// and runs the tool.
func (t *GenerateImage) RunJSON(ctx context.Context, raw string) (Result, error) {
	params, err := Parameters()
	if err != nil {
		return Result{}, err
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(params))
	if err != nil {
		return Result{}, err
	}

	res, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidArgument, strings.Join(msgs, "; "))
	}

	var args Args
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return t.Run(ctx, args)
}
