// SPDX-License-Identifier: GPL-3.0-or-later

package httpcodec

import (
	"bytes"
	"errors"
	"io"
	"slices"
)

// Transform is a stateful streaming encoder.
//
// Input is fed with Accept and the output produced so far is collected with
// Drain. Finish flushes the encoder state; any final output is available
// through Drain afterwards. A Transform cannot be reused after Finish.
type Transform interface {
	// Accept feeds data to the encoder.
	Accept(data []byte) error

	// Drain returns and removes the available output, or nil.
	Drain() []byte

	// Size returns the number of bytes Drain would return.
	Size() int

	// Finish flushes the encoder and returns whether it produced output.
	Finish() (bool, error)
}

// ErrTransformFinished indicates that a [Transform] was fed after Finish.
var ErrTransformFinished = errors.New("httpcodec: transform already finished")

// NewWriterTransform returns a [Transform] adapting a streaming writer
// such as a compressor. The newWriter function receives the buffer
// collecting the output; closing the writer it returns must flush it.
func NewWriterTransform(newWriter func(w io.Writer) (io.WriteCloser, error)) (Transform, error) {
	t := &writerTransform{}
	w, err := newWriter(&t.output)
	if err != nil {
		return nil, err
	}
	t.writer = w
	return t, nil
}

type writerTransform struct {
	finished bool
	output   bytes.Buffer
	writer   io.WriteCloser
}

func (t *writerTransform) Accept(data []byte) error {
	if t.finished {
		return ErrTransformFinished
	}
	_, err := t.writer.Write(data)
	return err
}

func (t *writerTransform) Drain() []byte {
	if t.output.Len() <= 0 {
		return nil
	}
	out := slices.Clone(t.output.Bytes())
	t.output.Reset()
	return out
}

func (t *writerTransform) Size() int {
	return t.output.Len()
}

func (t *writerTransform) Finish() (bool, error) {
	if t.finished {
		return false, ErrTransformFinished
	}
	t.finished = true
	if err := t.writer.Close(); err != nil {
		return false, err
	}
	return t.output.Len() > 0, nil
}
