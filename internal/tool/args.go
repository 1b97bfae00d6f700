package tool

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrInvalidArgument = errors.New("invalid argument")

type Args struct {
	ImageDescription string `json:"image_description" jsonschema:"minLength=1,pattern=\\S" jsonschema_description:"A detailed description of the image you wish to generate. Include information about the subject, background, mood or tone, lighting, camera angle, and any other relevant details."`
	BaseFilename     string `json:"base_filename" jsonschema:"minLength=1,pattern=\\S" jsonschema_description:"The filename to save the generated image as, without the PNG extension. Must not contain path separators."`
}

// filename returns the vault-relative file name for args.
func (a Args) filename() (string, error) {
	if strings.TrimSpace(a.ImageDescription) == "" {
		return "", fmt.Errorf("%w: image_description is required", ErrInvalidArgument)
	}

	base := a.BaseFilename
	if ext := filepath.Ext(base); strings.EqualFold(ext, pngExt) {
		base = strings.TrimSuffix(base, ext)
	}

	switch {
	case strings.TrimSpace(base) == "":
		return "", fmt.Errorf("%w: base_filename is required", ErrInvalidArgument)
	case base == "." || base == "..":
		return "", fmt.Errorf("%w: base_filename %q is not a file name", ErrInvalidArgument, a.BaseFilename)
	case strings.ContainsAny(base, `/\`+"\x00"):
		return "", fmt.Errorf("%w: base_filename %q must not contain path separators", ErrInvalidArgument, a.BaseFilename)
	}
	return base + pngExt, nil
}
