// Package common defines the NETCONF data model shared by clients and servers.
package common

import (
	"encoding/xml"
)

// Defines structs representing netconf messages.

// Request represents the body of a Netconf RPC request. It is either one of the request records
// defined in this package, a RawRequest, or any struct with xml tags.
type Request interface{}

// RawRequest is an XML fragment sent verbatim as the body of an rpc.
type RawRequest string

// Operation identifies the kind of request a reply answers.
type Operation string

// Operations known to the client.
const (
	OpHello          Operation = "hello"
	OpGet            Operation = "get"
	OpGetConfig      Operation = "get-config"
	OpEditConfig     Operation = "edit-config"
	OpCopyConfig     Operation = "copy-config"
	OpDeleteConfig   Operation = "delete-config"
	OpLock           Operation = "lock"
	OpUnlock         Operation = "unlock"
	OpCommit         Operation = "commit"
	OpDiscardChanges Operation = "discard-changes"
	OpKillSession    Operation = "kill-session"
	OpCloseSession   Operation = "close-session"
	OpRaw            Operation = "rpc"
)

// ReturnsData reports whether a successful reply to the operation carries a <data> element
// rather than <ok/>.
func (o Operation) ReturnsData() bool {
	return o == OpGet || o == OpGetConfig
}

// OperationOf returns the operation a request performs.
func OperationOf(req Request) Operation {
	switch r := req.(type) {
	case interface{ Operation() Operation }:
		return r.Operation()
	default:
		return OpRaw
	}
}

// HelloMessage defines the message sent/received during session negotiation.
type HelloMessage struct {
	XMLName      xml.Name   `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 hello"`
	Capabilities []string   `xml:"capabilities>capability"`
	SessionID    uint32     `xml:"session-id,omitempty"`
	Errors       []RPCError `xml:"rpc-error,omitempty"`
}

// RPCMessage defines an rpc request message
type RPCMessage struct {
	XMLName   xml.Name `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 rpc"`
	MessageID uint32   `xml:"message-id,attr"`
	*Union
}

// Union holds the body of an rpc. Exactly one of the fields is set: ValueStr for a request
// marshalled through its xml tags, ValueXML for a fragment emitted verbatim.
type Union struct {
	ValueStr interface{}
	ValueXML string `xml:",innerxml"`
}

// GetUnion wraps a request for use as the body of an RPCMessage.
func GetUnion(s Request) *Union {
	switch request := s.(type) {
	case RawRequest:
		return &Union{ValueXML: string(request)}
	case string:
		return &Union{ValueXML: request}
	default:
		return &Union{ValueStr: request}
	}
}

// DefaultCapabilities sets the default capabilities of the client library
var DefaultCapabilities = []string{
	CapBase10,
	CapBase11,
	CapXpath,
}

// NoChunkedCodecCapabilities omits the chunked codec capability.
var NoChunkedCodecCapabilities = []string{
	CapBase10,
	CapXpath,
}

// Define xml names for different netconf messages.
var (
	NameHello    = xml.Name{Space: NetconfNS, Local: "hello"}
	NameRPC      = xml.Name{Space: NetconfNS, Local: "rpc"}
	NameRPCReply = xml.Name{Space: NetconfNS, Local: "rpc-reply"}
)

// Define netconf URNs.
const (
	NetconfNS = "urn:ietf:params:xml:ns:netconf:base:1.0"
	CapBase10 = "urn:ietf:params:netconf:base:1.0"
	CapBase11 = "urn:ietf:params:netconf:base:1.1"
	CapXpath  = "urn:ietf:params:netconf:capability:xpath:1.0"
)

// PeerSupportsChunkedFraming returns true if capability list indicates support for chunked framing.
func PeerSupportsChunkedFraming(caps []string) bool {
	for _, capability := range caps {
		if capability == CapBase11 {
			return true
		}
	}
	return false
}

// WithoutChunkedFraming returns caps with the chunked framing capability removed.
func WithoutChunkedFraming(caps []string) []string {
	out := make([]string, 0, len(caps))
	for _, capability := range caps {
		if capability != CapBase11 {
			out = append(out, capability)
		}
	}
	return out
}
