package handler

import (
	"context"

	"github.com/dmorgan81/vaultimage/internal/log"
	"github.com/dmorgan81/vaultimage/internal/tool"
	"github.com/samber/do"
)

type Input struct {
	ImageDescription string `json:"image_description"`
	BaseFilename     string `json:"base_filename"`
}

func (i Input) toArgs() tool.Args {
	return tool.Args{
		ImageDescription: i.ImageDescription,
		BaseFilename:     i.BaseFilename,
	}
}

type Output = tool.Result

type Handler struct {
	tool *tool.GenerateImage
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return &Handler{tool: do.MustInvoke[*tool.GenerateImage](i)}, nil
}

func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("input", input)
	log.Info("handling lambda invocation")

	out, err := h.tool.Run(ctx, input.toArgs())
	if err != nil {
		log.Error("tool call failed", "error", err)
		return Output{}, err
	}
	return out, nil
}
