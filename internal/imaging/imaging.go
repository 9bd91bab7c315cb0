// Package imaging defines how uploaded pictures are turned into the single
// stored representation.
package imaging

import (
	"context"
	"errors"
)

// ErrDecode is wrapped by every failure caused by the input bytes themselves
// (unknown format, truncated data, oversize raster). Other errors come from
// the environment, e.g. a cancelled context.
var ErrDecode = errors.New("imaging: cannot decode image")

// Result is a canonicalized image.
type Result struct {
	PNG          []byte `json:"-"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	SourceFormat string `json:"sourceFormat"` // decoder name, e.g. "jpeg"
	SourceMIME   string `json:"sourceMime"`
}

// Canonicalizer decodes arbitrary raster bytes and re-encodes them as PNG.
type Canonicalizer interface {
	Canonicalize(ctx context.Context, data []byte) (*Result, error)
}
