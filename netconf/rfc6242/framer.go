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

// Package rfc6242 implements the NETCONF message framing of RFC6242: end-of-message and chunked.
package rfc6242

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

const (
	// DefaultReadBufferSize is the size of the buffer used for each read from the transport.
	DefaultReadBufferSize = 4096

	// the maximum chunk size allowed by RFC6242.
	rfc6242maximumAllowedChunkSize = 4294967295
	// the length of `rfc6242maximumAllowedChunkSize` in bytes on the wire.
	rfc6242maximumAllowedChunkSizeLength = 10
)

var (
	tokenEOM          = []byte("]]>]]>")
	tokenEndOfChunks  = []byte("\n##\n")
	tokenChunkHeading = []byte("\n#")
)

var (
	// ErrStreamExhausted is returned when the transport yields no more bytes before
	// a message terminator has been seen.
	ErrStreamExhausted = errors.New("stream exhausted before end of message")
	// ErrZeroChunks is a protocol error indicating that no chunk was
	// seen prior to the end-of-chunks token.
	ErrZeroChunks = errors.New("end-of-chunks seen prior to chunk")
	// ErrChunkSizeInvalid is a protocol error indicating that a chunk
	// frame introduction was seen, but chunk-size decoding failed.
	ErrChunkSizeInvalid = errors.New("no valid chunk-size detected")
	// ErrChunkSizeTokenTooLong is a protocol error indicating a
	// valid chunk-size token start was seen, but that the chunk-size
	// token was longer than that necessary to store the maximum
	// permitted chunk size "4294967295".
	ErrChunkSizeTokenTooLong = errors.New("token too long")
	// ErrChunkSizeTooLarge is a protocol error indicating that the
	// chunk-size decoded exceeds the limit stated in RFC6242.
	ErrChunkSizeTooLarge = errors.New("chunk size larger than maximum (4294967295)")
)

// FramerOption configures a Framer.
type FramerOption func(*Framer)

// WithReadBufferSize sets the size of the buffer used for each transport read.
func WithReadBufferSize(size int) FramerOption {
	return func(f *Framer) {
		if size > 0 {
			f.buf = make([]byte, size)
		}
	}
}

// Framer reads complete NETCONF messages from an input stream.
//
// In end-of-message mode a message ends at the first "]]>]]>" sequence. In chunked mode a
// message is a sequence of "\n#<size>\n<data>" chunks terminated by "\n##\n".
// Bytes read beyond the end of a message are retained and form the start of the next one.
//
// Framer is not safe for concurrent use.
type Framer struct {
	// Input is the source of framed messages.
	Input io.Reader
	// ChunkedFraming selects chunked framing (true) or end-of-message framing (false)
	// for the next message read.
	ChunkedFraming bool

	buf     []byte
	pending []byte
	// offset into pending already searched for the end-of-message token.
	scanned int
	err     error
}

// NewFramer returns a Framer reading from input, in end-of-message mode.
func NewFramer(input io.Reader, opts ...FramerOption) *Framer {
	f := &Framer{Input: input}
	for _, opt := range opts {
		opt(f)
	}
	if f.buf == nil {
		f.buf = make([]byte, DefaultReadBufferSize)
	}
	return f
}

// ReadMessage blocks until a complete message has been received and returns it with the framing removed.
//
// A read that yields no bytes, or reports io.EOF, before the message terminator is seen results
// in ErrStreamExhausted. Any other read error is returned as is. Once an error has been returned,
// every later call returns the same error.
func (f *Framer) ReadMessage() ([]byte, error) {
	for {
		msg, ok, err := f.split()
		if err != nil {
			f.err = err
			return nil, err
		}
		if ok {
			return msg, nil
		}
		if f.err != nil {
			return nil, f.err
		}

		n, err := f.Input.Read(f.buf)
		f.pending = append(f.pending, f.buf[:n]...)
		switch {
		case err == io.EOF, err == nil && n == 0:
			f.err = errors.WithStack(ErrStreamExhausted)
		case err != nil:
			f.err = err
		}
	}
}

func (f *Framer) split() (msg []byte, ok bool, err error) {
	if f.ChunkedFraming {
		var advance int
		advance, msg, err = splitChunked(f.pending)
		if err != nil || advance == 0 {
			return nil, false, err
		}
		f.consume(advance)
		return msg, true, nil
	}

	from := f.scanned - len(tokenEOM) + 1
	if from < 0 {
		from = 0
	}
	idx := bytes.Index(f.pending[from:], tokenEOM)
	if idx < 0 {
		f.scanned = len(f.pending)
		return nil, false, nil
	}
	idx += from
	msg = append([]byte(nil), f.pending[:idx]...)
	f.consume(idx + len(tokenEOM))
	return msg, true, nil
}

func (f *Framer) consume(n int) {
	f.pending = append(f.pending[:0], f.pending[n:]...)
	f.scanned = 0
}

// splitChunked looks for a complete chunked message at the start of b. An advance of zero with a nil
// error means more data is required.
func splitChunked(b []byte) (advance int, msg []byte, err error) {
	type span struct{ from, to int }
	var chunks []span

	pos := 0
	for {
		if pos == len(b) {
			return 0, nil, nil
		}
		action, adv, size, herr := detectChunkHeader(b[pos:])
		switch {
		case herr != nil:
			return 0, nil, herr
		case action == chActionMoreData:
			return 0, nil, nil
		case action == chActionEndOfChunks:
			if len(chunks) == 0 {
				return 0, nil, errors.WithStack(ErrZeroChunks)
			}
			for _, c := range chunks {
				msg = append(msg, b[c.from:c.to]...)
			}
			return pos + adv, msg, nil
		}

		start := pos + adv
		if uint64(len(b)-start) < size {
			return 0, nil, nil
		}
		chunks = append(chunks, span{from: start, to: start + int(size)})
		pos = start + int(size)
	}
}

type chunkHeaderAction int

const (
	chActionMoreData chunkHeaderAction = iota
	chActionEndOfChunks
	chActionChunk
)

func detectChunkHeader(b []byte) (action chunkHeaderAction, advance int, chunksize uint64, err error) {
	if len(b) < len(tokenChunkHeading)+1 {
		if !bytes.HasPrefix(tokenChunkHeading, b) {
			err = errors.WithStack(chunkHeaderLexError{got: b, want: tokenChunkHeading})
		}
		return
	}
	if !bytes.HasPrefix(b, tokenChunkHeading) {
		got := b
		if len(got) > 8 {
			got = got[:8]
		}
		err = errors.WithStack(chunkHeaderLexError{got: got, want: tokenChunkHeading})
		return
	}

	switch {
	case b[2] >= '1' && b[2] <= '9':
		action = chActionChunk
		digits := b[2:]
		n := bytes.IndexByte(digits, '\n')
		switch {
		case n == -1 && len(digits) <= rfc6242maximumAllowedChunkSizeLength:
			action = chActionMoreData
		case n == -1, n > rfc6242maximumAllowedChunkSizeLength:
			err = errors.WithStack(ErrChunkSizeTokenTooLong)
		default:
			chunksize, err = strconv.ParseUint(string(digits[:n]), 10, 64)
			switch {
			case err != nil:
				err = errors.WithStack(ErrChunkSizeInvalid)
			case chunksize > rfc6242maximumAllowedChunkSize:
				err = errors.WithStack(ErrChunkSizeTooLarge)
			}
			advance = len(tokenChunkHeading) + n + 1
		}
	case b[2] == '#':
		switch {
		case len(b) < len(tokenEndOfChunks):
			action = chActionMoreData
		case b[3] == '\n':
			action = chActionEndOfChunks
			advance = len(tokenEndOfChunks)
		default:
			err = errors.WithStack(chunkHeaderLexError{got: b[:4], want: tokenEndOfChunks})
		}
	default:
		err = errors.WithStack(chunkHeaderLexError{got: b[2:3], wexplicit: []byte("DIGIT1 or HASH")})
	}
	return
}

type chunkHeaderLexError struct{ got, want, wexplicit []byte }

func (e chunkHeaderLexError) Error() string {
	if len(e.wexplicit) > 0 {
		return fmt.Sprintf("invalid chunk header; expected %s, saw %q", e.wexplicit, e.got)
	}
	return fmt.Sprintf("invalid chunk header; expected %q, saw %q", e.want, e.got)
}
