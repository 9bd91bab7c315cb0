// Package canonical implements imaging.Canonicalizer with the standard
// library decoders plus golang.org/x/image for BMP, TIFF and WebP.
package canonical

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	// Decoders register themselves with image.Decode.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/sakif/instalitre/internal/imaging"
)

var _ imaging.Canonicalizer = (*Encoder)(nil)

// Encoder re-encodes uploads as PNG, at most Config.Workers at a time.
type Encoder struct {
	config Config
	logger *slog.Logger
	pool   *Pool
	png    png.Encoder
}

// New creates an Encoder. Zero fields of cfg fall back to DefaultConfig.
func New(cfg Config, logger *slog.Logger) *Encoder {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = def.MaxPixels
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = def.AcquireTimeout
	}

	return &Encoder{
		config: cfg,
		logger: logger,
		pool:   NewPool(cfg.Workers, logger),
		png:    png.Encoder{CompressionLevel: cfg.Compression},
	}
}

// Canonicalize decodes data with whichever registered decoder recognizes it
// and returns the raster re-encoded as PNG. Animated GIFs keep their first
// frame only.
func (e *Encoder) Canonicalize(ctx context.Context, data []byte) (*imaging.Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no data", imaging.ErrDecode)
	}

	mime := detectMIME(data)
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w: content looks like %s", imaging.ErrDecode, mime)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", imaging.ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty raster %dx%d", imaging.ErrDecode, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > e.config.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", imaging.ErrDecode, cfg.Width, cfg.Height, e.config.MaxPixels)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, e.config.AcquireTimeout)
	defer cancel()
	if err := e.pool.Acquire(acquireCtx); err != nil {
		return nil, err
	}
	defer e.pool.Release()

	start := time.Now()

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", imaging.ErrDecode, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	if err := e.png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("canonical: encoding png: %w", err)
	}

	bounds := img.Bounds()
	e.logger.Debug("image canonicalized",
		slog.String("format", format),
		slog.String("mime", mime),
		slog.Int("width", bounds.Dx()),
		slog.Int("height", bounds.Dy()),
		slog.Int("inBytes", len(data)),
		slog.Int("outBytes", buf.Len()),
		slog.Duration("duration", time.Since(start)),
	)

	return &imaging.Result{
		PNG:          buf.Bytes(),
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		SourceFormat: format,
		SourceMIME:   mime,
	}, nil
}

// detectMIME tries the stdlib sniffer first and falls back to mimetype,
// which also knows BMP, TIFF and WebP variants.
func detectMIME(head []byte) string {
	mt := http.DetectContentType(head)
	if mt != "application/octet-stream" {
		return mt
	}
	return mimetype.Detect(head).String()
}
