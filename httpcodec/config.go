// SPDX-License-Identifier: GPL-3.0-or-later

package httpcodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"
)

// Names of the encodings supported by [*Compressor].
const (
	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingZstd    = "zstd"
	EncodingSnappy  = "x-snappy-framed"
	EncodingLZ4     = "lz4"
)

var supportedEncodings = []string{
	EncodingGzip,
	EncodingDeflate,
	EncodingZstd,
	EncodingSnappy,
	EncodingLZ4,
}

// ErrInvalidConfig indicates an invalid [*CompressorConfig].
var ErrInvalidConfig = errors.New("httpcodec: invalid compressor config")

// CompressorConfig configures a [*Compressor].
//
// A config can be loaded from YAML using [LoadCompressorConfig]:
//
//	encodings: [zstd, gzip]
//	level: 9
//	minLength: 256
type CompressorConfig struct {
	// Encodings lists the enabled encodings by preference, which breaks
	// ties between equal quality values.
	//
	// Set by [NewCompressorConfig] to gzip and deflate.
	Encodings []string `yaml:"encodings"`

	// Level is the compression level from 1 (fastest) to 9 (smallest).
	// Encodings without levels ignore it.
	//
	// Set by [NewCompressorConfig] to 6.
	Level int `yaml:"level"`

	// MinLength is the smallest non-chunked body worth encoding.
	//
	// Set by [NewCompressorConfig] to zero.
	MinLength int `yaml:"minLength"`
}

// NewCompressorConfig returns a [*CompressorConfig] with sensible defaults.
func NewCompressorConfig() *CompressorConfig {
	return &CompressorConfig{
		Encodings: []string{EncodingGzip, EncodingDeflate},
		Level:     6,
		MinLength: 0,
	}
}

// LoadCompressorConfig parses YAML data on top of [NewCompressorConfig]
// defaults. Unknown fields are rejected.
func LoadCompressorConfig(data []byte) (*CompressorConfig, error) {
	cfg := NewCompressorConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns an error when the config cannot be used.
func (c *CompressorConfig) Validate() error {
	if len(c.Encodings) <= 0 {
		return fmt.Errorf("%w: no encodings", ErrInvalidConfig)
	}
	for idx, name := range c.Encodings {
		if !slices.Contains(supportedEncodings, name) {
			return fmt.Errorf("%w: unsupported encoding %q", ErrInvalidConfig, name)
		}
		if slices.Contains(c.Encodings[:idx], name) {
			return fmt.Errorf("%w: duplicate encoding %q", ErrInvalidConfig, name)
		}
	}
	if c.Level < 1 || c.Level > 9 {
		return fmt.Errorf("%w: level %d out of range", ErrInvalidConfig, c.Level)
	}
	if c.MinLength < 0 {
		return fmt.Errorf("%w: negative minLength", ErrInvalidConfig)
	}
	return nil
}
