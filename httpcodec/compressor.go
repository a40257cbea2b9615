// SPDX-License-Identifier: GPL-3.0-or-later

package httpcodec

import (
	"io"
	"strconv"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// NewCompressor returns a new [*Compressor] using cfg, which must be valid.
func NewCompressor(cfg *CompressorConfig) *Compressor {
	return &Compressor{
		Encodings: cfg.Encodings,
		Level:     cfg.Level,
		MinLength: cfg.MinLength,
	}
}

// Compressor is a [Negotiator] compressing bodies with the enabled
// encoding the client prefers according to Accept-Encoding quality values.
//
// Responses already carrying a Content-Encoding other than identity are
// left alone. The "*" wildcard assigns its quality to every enabled
// encoding the header does not mention.
type Compressor struct {
	// Encodings lists the enabled encodings by preference.
	//
	// Set by [NewCompressor] from [CompressorConfig.Encodings].
	Encodings []string

	// Level is the compression level from 1 to 9.
	//
	// Set by [NewCompressor] from [CompressorConfig.Level].
	Level int

	// MinLength is the smallest non-chunked body worth encoding.
	//
	// Set by [NewCompressor] from [CompressorConfig.MinLength].
	MinLength int
}

var _ Negotiator = &Compressor{}

// BeginEncode implements [Negotiator].
func (c *Compressor) BeginEncode(resp *Response, acceptEncoding string) (*EncodingResult, error) {
	if ce := resp.Header().Get("Content-Encoding"); ce != "" && !strings.EqualFold(ce, "identity") {
		return nil, nil
	}
	if !resp.IsChunked() && len(resp.Content()) < c.MinLength {
		return nil, nil
	}
	name := c.selectEncoding(acceptEncoding)
	if name == "" {
		return nil, nil
	}
	transform, err := NewWriterTransform(func(w io.Writer) (io.WriteCloser, error) {
		return c.newWriter(name, w)
	})
	if err != nil {
		return nil, err
	}
	return NewEncodingResult(name, transform)
}

// selectEncoding returns the enabled encoding with the highest quality, or
// "" when the client accepts none of them.
func (c *Compressor) selectEncoding(acceptEncoding string) string {
	qvalues := parseAcceptEncoding(acceptEncoding)
	star, hasStar := qvalues["*"]
	var (
		best  string
		bestQ float64
	)
	for _, name := range c.Encodings {
		q, found := qvalues[name]
		if !found {
			if !hasStar {
				continue
			}
			q = star
		}
		if q > bestQ {
			best, bestQ = name, q
		}
	}
	return best
}

// parseAcceptEncoding maps each lower-cased coding to its quality value.
// Malformed quality values count as zero.
func parseAcceptEncoding(value string) map[string]float64 {
	qvalues := make(map[string]float64)
	for _, item := range strings.Split(value, ",") {
		coding, params, _ := strings.Cut(item, ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding == "" {
			continue
		}
		q := 1.0
		for _, param := range strings.Split(params, ";") {
			key, val, found := strings.Cut(strings.TrimSpace(param), "=")
			if !found || !strings.EqualFold(strings.TrimSpace(key), "q") {
				continue
			}
			parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil || parsed < 0 || parsed > 1 {
				parsed = 0
			}
			q = parsed
		}
		qvalues[coding] = q
	}
	return qvalues
}

func (c *Compressor) newWriter(name string, w io.Writer) (io.WriteCloser, error) {
	switch name {
	case EncodingGzip:
		return gzip.NewWriterLevel(w, c.Level)
	case EncodingDeflate:
		return zlib.NewWriterLevel(w, c.Level)
	case EncodingZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.Level)))
	case EncodingSnappy:
		return snappy.NewBufferedWriter(w), nil
	case EncodingLZ4:
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(lz4Level(c.Level))); err != nil {
			return nil, err
		}
		return zw, nil
	default:
		return nil, ErrInvalidConfig
	}
}

var lz4Levels = []lz4.CompressionLevel{
	lz4.Level1, lz4.Level2, lz4.Level3,
	lz4.Level4, lz4.Level5, lz4.Level6,
	lz4.Level7, lz4.Level8, lz4.Level9,
}

func lz4Level(level int) lz4.CompressionLevel {
	return lz4Levels[min(max(level, 1), 9)-1]
}
