// Copyright 2018 Andrew Fort
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package rfc6242

import (
	"bytes"
	"io"
	"strconv"
)

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithMaximumChunkSize limits the size of each chunk written in chunked mode.
func WithMaximumChunkSize(size uint32) EncoderOption {
	return func(e *Encoder) {
		if size > 0 {
			e.MaxChunkSize = size
		}
	}
}

// NewEncoder returns a new RFC6242 message encoder writing to output, configured with any options provided.
func NewEncoder(output io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{Output: output, MaxChunkSize: rfc6242maximumAllowedChunkSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encoder collects the body of a message through Write and emits it, framed, on EndOfMessage.
//
// In end-of-message mode the body is followed by "]]>]]>". In chunked mode the body is
// written as one or more "\n#<size>\n" chunks followed by "\n##\n".
type Encoder struct {
	// Output is the underlying Writer to receive encoded output
	Output io.Writer
	// ChunkedFraming sets whether the next message should use
	// chunked-message framing (true) or end-of-message framing (false)
	ChunkedFraming bool
	// MaxChunkSize is the maximum size of chunks the encoder will emit.
	MaxChunkSize uint32

	body bytes.Buffer
}

// Write appends b to the message currently being built.
func (e *Encoder) Write(b []byte) (int, error) {
	return e.body.Write(b)
}

// EndOfMessage must be called after each message (XML document) is written to the Encoder.
// The framed message is written to the underlying writer in a single call.
func (e *Encoder) EndOfMessage() error {
	defer e.body.Reset()

	var out bytes.Buffer
	if e.ChunkedFraming {
		e.writeChunks(&out, e.body.Bytes())
		out.Write(tokenEndOfChunks)
	} else {
		out.Write(e.body.Bytes())
		out.Write(tokenEOM)
	}
	_, err := e.Output.Write(out.Bytes())
	return err
}

// Close attempts to close the underlying writer.
func (e *Encoder) Close() error {
	if closer, ok := e.Output.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (e *Encoder) writeChunks(out *bytes.Buffer, b []byte) {
	limit := int(e.MaxChunkSize)
	if limit <= 0 || uint64(limit) > rfc6242maximumAllowedChunkSize {
		limit = rfc6242maximumAllowedChunkSize
	}
	for len(b) > 0 {
		size := len(b)
		if size > limit {
			size = limit
		}
		out.Write(tokenChunkHeading)
		out.WriteString(strconv.Itoa(size))
		out.WriteByte('\n')
		out.Write(b[:size])
		b = b[size:]
	}
}
