// Package codec encodes and decodes NETCONF messages over an RFC6242 framed stream.
package codec

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/rfc6242"
)

// ErrStreamExhausted is returned when the transport ends before a complete message is received.
var ErrStreamExhausted = rfc6242.ErrStreamExhausted

// Decoder reads framed netconf messages and decodes them.
type Decoder struct {
	ncDecoder *rfc6242.Framer
}

// Encoder wraps the standard xml Codec (for XML encoding)
// and RFC6242-compliant Codec (for netconf message framing)
type Encoder struct {
	xmlEncoder *xml.Encoder
	ncEncoder  *rfc6242.Encoder
}

// Encode encodes netconf message.
func (e *Encoder) Encode(msg interface{}) error {
	// Prepend xml document declaration to each message.
	_, err := e.ncEncoder.Write([]byte(xml.Header))
	if err != nil {
		return err
	}

	err = e.xmlEncoder.Encode(msg)
	if err != nil {
		return err
	}
	return e.ncEncoder.EndOfMessage()
}

// NewDecoder delivers a new decoder.
func NewDecoder(t io.Reader, opts ...rfc6242.FramerOption) *Decoder {
	return &Decoder{ncDecoder: rfc6242.NewFramer(t, opts...)}
}

// NewEncoder delivers a new encoder.
func NewEncoder(t io.Writer) *Encoder {
	ncEncoder := rfc6242.NewEncoder(t)
	return &Encoder{xmlEncoder: xml.NewEncoder(ncEncoder), ncEncoder: ncEncoder}
}

// EnableChunkedFraming enables chunked framing on the specified decoder and encoder.
func EnableChunkedFraming(d *Decoder, e *Encoder) {
	rfc6242.SetChunkedFraming(d.ncDecoder, e.ncEncoder)
}

// ReadMessage returns the next complete message, with framing removed.
func (d *Decoder) ReadMessage() ([]byte, error) {
	return d.ncDecoder.ReadMessage()
}

// DecodeHello reads the next message as a hello.
func (d *Decoder) DecodeHello() (*common.HelloMessage, error) {
	b, err := d.ReadMessage()
	if err != nil {
		return nil, err
	}
	return DecodeHello(b)
}

// DecodeReply reads the next message as the reply to an operation of the given kind.
func (d *Decoder) DecodeReply(kind common.Operation) (*common.RPCReply, error) {
	b, err := d.ReadMessage()
	if err != nil {
		return nil, err
	}
	return DecodeReply(b, kind)
}

// Marshal returns the xml document for msg, as it would be sent before framing.
func Marshal(msg interface{}) ([]byte, error) {
	b, err := xml.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), b...), nil
}

// DecodeHello decodes a hello message.
func DecodeHello(b []byte) (*common.HelloMessage, error) {
	hello := &common.HelloMessage{}
	if err := xml.Unmarshal(b, hello); err != nil {
		return nil, common.NewDecodeError(string(b), errors.Wrap(err, "failed to decode hello"))
	}
	for i, capability := range hello.Capabilities {
		hello.Capabilities[i] = strings.TrimSpace(capability)
	}
	return hello, nil
}

// DecodeReply decodes an rpc-reply answering an operation of the given kind.
// The content of any <data> element is copied verbatim from the message.
func DecodeReply(b []byte, kind common.Operation) (*common.RPCReply, error) {
	reply := &common.RPCReply{RawReply: string(b), Kind: kind}
	if err := xml.Unmarshal(b, reply); err != nil {
		return nil, common.NewDecodeError(reply.RawReply, errors.Wrap(err, "failed to decode rpc-reply"))
	}
	reply.Data, reply.DataPresent = ExtractData(reply.RawReply)
	return reply, nil
}
