// Package netconf implements the server side of NETCONF sessions over SSH.
package netconf

import (
	"context"
	"encoding/xml"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	xssh "golang.org/x/crypto/ssh"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/common/codec"
	"github.com/damianoneill/ncclient/netconf/server/ssh"
)

// Server represents a Netconf Server.
// It encapsulates a transport connection to an SSH server, and session handlers that will
// be invoked to handle netconf messages.
type Server struct {
	*ssh.Server
	sf    SessionFactory
	trace *Trace

	mu              sync.Mutex
	sessionHandlers map[uint32]*SessionHandler
	nextSid         uint32
}

// SessionCallback defines the caller supplied callback functions.
type SessionCallback interface {
	// Capabilities is called to retrieve the capabilities that should be advertised to the client.
	// If the callback returns nil, the default set of capabilities is used.
	Capabilities() []string
	// HandleRequest is called to handle an RPC request. A nil reply sends nothing.
	HandleRequest(req *RPCRequestMessage) *RPCReplyMessage
}

// SessionEndCallback may be implemented by a SessionCallback to be told when its session ends.
type SessionEndCallback interface {
	SessionEnded()
}

// SessionFactory delivers the callbacks for a new session.
type SessionFactory func(*SessionHandler) SessionCallback

// SessionHandler represents the server side of an active netconf SSH session.
type SessionHandler struct {
	// server references the Netconf server that launched the session.
	server *Server

	// svrcon is the underlying ssh server connection.
	svrcon *xssh.ServerConn

	// ch is the underlying transport channel.
	ch   xssh.Channel
	chMu sync.Mutex

	// The codecs used to handle client i/o
	enc *codec.Encoder
	dec *codec.Decoder

	// The capabilities advertised to the client.
	capabilities []string
	// The session id to be reported to the client.
	sid uint32

	// Set when the channel should be closed once the current reply has been sent.
	closeAfterReply bool

	// The HelloMessage sent by the connecting client.
	ClientHello *common.HelloMessage

	// Caller supplied callbacks
	cb SessionCallback
}

// RPCRequestMessage represents an RPC request from a client, where the element type of the
// request body is unknown.
type RPCRequestMessage struct {
	XMLName   xml.Name
	MessageID string     `xml:"message-id,attr"`
	Request   RPCRequest `xml:",any"`
	// Raw holds the complete rpc message as received.
	Raw []byte `xml:"-"`
}

// RPCRequest describes an RPC request.
type RPCRequest struct {
	XMLName xml.Name
	Body    string `xml:",innerxml"`
}

// RPCReplyMessage represents an rpc-reply message that will be sent to a client session, where the
// content of the data element is unknown.
type RPCReplyMessage struct {
	XMLName   xml.Name          `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 rpc-reply"`
	MessageID string            `xml:"message-id,attr,omitempty"`
	Errors    []common.RPCError `xml:"rpc-error,omitempty"`
	Data      *ReplyData        `xml:"data,omitempty"`
	Ok        common.ExtantBool `xml:"ok"`
}

// ReplyData holds the content of the data element of a reply, emitted verbatim.
type ReplyData struct {
	Data string `xml:",innerxml"`
}

// OkReply delivers a reply carrying <ok/>.
func OkReply(req *RPCRequestMessage) *RPCReplyMessage {
	return &RPCReplyMessage{MessageID: req.MessageID, Ok: true}
}

// DataReply delivers a reply carrying data.
func DataReply(req *RPCRequestMessage, data string) *RPCReplyMessage {
	return &RPCReplyMessage{MessageID: req.MessageID, Data: &ReplyData{Data: data}}
}

// ErrorReply delivers a reply carrying rpc-errors.
func ErrorReply(req *RPCRequestMessage, errs ...common.RPCError) *RPCReplyMessage {
	return &RPCReplyMessage{MessageID: req.MessageID, Errors: errs}
}

// NewServer creates a new Server that will accept Netconf connections on address:port (port zero selects an
// ephemeral port, available via Port()), with credentials defined by the sshcfg configuration.
func NewServer(ctx context.Context, address string, port int, sshcfg *xssh.ServerConfig, sf SessionFactory) (ncs *Server, err error) {
	trace := ContextNetconfTrace(ctx)
	if trace.Trace != nil {
		ctx = ssh.WithSSHTrace(ctx, trace.Trace)
	}

	ncs = &Server{sessionHandlers: make(map[uint32]*SessionHandler), sf: sf, trace: trace}

	ncs.Server, err = ssh.NewServer(ctx, address, port, sshcfg, ncs.handlerFactory())
	if err != nil {
		return nil, err
	}
	return
}

func (ncs *Server) handlerFactory() ssh.HandlerFactory {
	return func(svrconn *xssh.ServerConn) ssh.Handler {
		sid := atomic.AddUint32(&ncs.nextSid, 1)
		sess := ncs.newSessionHandler(svrconn, sid)
		ncs.mu.Lock()
		ncs.sessionHandlers[sid] = sess
		ncs.mu.Unlock()
		return sess
	}
}

// SessionHandler delivers the handler of the active session with the given id, or nil.
func (ncs *Server) SessionHandler(id uint32) *SessionHandler {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	return ncs.sessionHandlers[id]
}

// Close closes any active transport to the server and prevents subsequent connections.
func (ncs *Server) Close() {
	ncs.mu.Lock()
	handlers := make([]*SessionHandler, 0, len(ncs.sessionHandlers))
	for _, h := range ncs.sessionHandlers {
		handlers = append(handlers, h)
	}
	ncs.mu.Unlock()

	for _, h := range handlers {
		h.Close()
	}
	ncs.Server.Close()
}

func (ncs *Server) newSessionHandler(svrcon *xssh.ServerConn, sid uint32) *SessionHandler {
	sh := &SessionHandler{
		server:       ncs,
		svrcon:       svrcon,
		sid:          sid,
		capabilities: common.DefaultCapabilities,
	}

	ncs.trace.StartSession(sh)

	sh.cb = ncs.sf(sh)
	if caps := sh.cb.Capabilities(); caps != nil {
		sh.capabilities = caps
	}
	return sh
}

// ID delivers the session id allocated to the session.
func (h *SessionHandler) ID() uint32 {
	return h.sid
}

// Handle establishes a Netconf server session on a newly-connected SSH channel.
func (h *SessionHandler) Handle(ch xssh.Channel) {
	h.chMu.Lock()
	h.ch = ch
	h.chMu.Unlock()
	h.dec = codec.NewDecoder(ch)
	h.enc = codec.NewEncoder(ch)

	err := h.serve()

	h.server.mu.Lock()
	delete(h.server.sessionHandlers, h.sid)
	h.server.mu.Unlock()
	if ender, ok := h.cb.(SessionEndCallback); ok {
		ender.SessionEnded()
	}
	h.server.trace.EndSession(h, err)
}

func (h *SessionHandler) serve() error {
	// Send server hello to client.
	err := h.encode(&common.HelloMessage{Capabilities: h.capabilities, SessionID: h.sid})
	if err != nil {
		return err
	}

	if err = h.waitForClientHello(); err != nil {
		return err
	}

	for {
		b, err := h.dec.ReadMessage()
		if err != nil {
			if errors.Cause(err) == codec.ErrStreamExhausted {
				return nil
			}
			return err
		}
		h.handleRPC(b)
		if h.closeAfterReply {
			h.Close()
			return nil
		}
	}
}

// CloseAfterReply arranges for the channel to be closed once the reply to the current request is sent.
func (h *SessionHandler) CloseAfterReply() {
	h.closeAfterReply = true
}

// Close initiates session tear-down by closing the underlying transport channel.
func (h *SessionHandler) Close() {
	h.chMu.Lock()
	defer h.chMu.Unlock()
	if h.ch != nil {
		_ = h.ch.Close()
	}
}

func (h *SessionHandler) waitForClientHello() error {
	timer := time.AfterFunc(5*time.Second, h.Close)
	defer timer.Stop()

	b, err := h.dec.ReadMessage()
	if err == nil {
		h.ClientHello, err = codec.DecodeHello(b)
	}
	h.server.trace.ClientHello(h)
	if err != nil {
		return errors.Wrap(err, "failed to receive client hello")
	}

	if common.PeerSupportsChunkedFraming(h.ClientHello.Capabilities) && common.PeerSupportsChunkedFraming(h.capabilities) {
		// Update the codec to use chunked framing from now.
		codec.EnableChunkedFraming(h.dec, h.enc)
	}
	return nil
}

func (h *SessionHandler) handleRPC(b []byte) {
	request := &RPCRequestMessage{Raw: b}
	err := xml.Unmarshal(b, request)
	h.server.trace.Decoded(h, err)
	if err != nil || request.XMLName != common.NameRPC {
		_ = h.encode(&RPCReplyMessage{Errors: []common.RPCError{{
			Type:     common.ErrorTypeRPC,
			Tag:      common.ErrorTagMalformedMessage,
			Severity: common.SeverityError,
		}}})
		return
	}

	if reply := h.cb.HandleRequest(request); reply != nil {
		_ = h.encode(reply)
	}
}

func (h *SessionHandler) encode(m interface{}) error {
	err := h.enc.Encode(m)
	h.server.trace.Encoded(h, err)
	return err
}
