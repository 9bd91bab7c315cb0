package canonical

import (
	"image/png"
	"time"
)

// Config holds the limits applied while canonicalizing uploads.
type Config struct {
	// Workers is the number of images decoded and encoded at the same time.
	Workers int
	// MaxPixels bounds width*height, checked from the header before decoding.
	MaxPixels int64
	// Compression is the zlib level used for the PNG output.
	Compression png.CompressionLevel
	// AcquireTimeout bounds the wait for a free worker slot.
	AcquireTimeout time.Duration
}

// DefaultConfig returns limits suited to phone-camera photos.
func DefaultConfig() Config {
	return Config{
		Workers:        4,
		MaxPixels:      50_000_000,
		Compression:    png.DefaultCompression,
		AcquireTimeout: 10 * time.Second,
	}
}
