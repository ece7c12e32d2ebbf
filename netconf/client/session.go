// Package client implements the session layer of a NETCONF client: hello exchange, message-id
// correlation and teardown over an SSH transport.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/common/codec"
	"github.com/damianoneill/ncclient/netconf/rfc6242"
)

// The Message layer defines a set of base protocol operations
// invoked as RPC methods with XML-encoded parameters.

var (
	// ErrNotConnected is returned when a session is used without a transport.
	ErrNotConnected = errors.New("netconf session is not connected")
	// ErrAlreadyConnected is returned by Connect on a session that holds a transport.
	ErrAlreadyConnected = errors.New("netconf session is already connected")
	// ErrHelloTimeout is returned when the server hello does not arrive within the setup timeout.
	ErrHelloTimeout = errors.New("failed to get hello from server")
)

// State describes the lifecycle stage of a session.
type State int

// Session states.
const (
	// Disconnected: no transport.
	Disconnected State = iota
	// Connected: transport open, no session id held.
	Connected
	// Established: transport open and a session id held.
	Established
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Established:
		return "established"
	default:
		return "disconnected"
	}
}

// Session represents a Netconf Session.
//
// A session performs one request/reply exchange at a time. Message ids start at 1 and
// increase by one for every request written, whatever its outcome.
type Session interface {
	// Connect opens the transport and reads the server hello, recording the session id it carries.
	Connect() (*common.HelloMessage, error)

	// SendHello sends the client hello, advertising the configured capabilities. If both peers
	// support it, chunked framing is used from then on.
	SendHello() error

	// Execute executes an RPC request on the server and returns the reply.
	// A reply carrying any rpc-error is returned as a *common.RPCErrors error and no reply.
	Execute(req common.Request) (*common.RPCReply, error)

	// Close releases the session. If a session id is still held a close-session is attempted first.
	// Failures are reported through the Error trace hook only.
	Close()

	// ID delivers the server-allocated id of the session, zero when none is held.
	ID() uint32

	// ServerCapabilities delivers the server-supplied capabilities.
	ServerCapabilities() []string

	// NextMessageID delivers the message-id the next request will carry.
	NextMessageID() uint32

	// State delivers the lifecycle stage of the session.
	State() State
}

type sesImpl struct {
	ctx    context.Context
	cfg    *Config
	dial   Dialer
	target string
	trace  *ClientTrace

	mu        sync.Mutex
	t         Transport
	dec       *codec.Decoder
	enc       *codec.Encoder
	hello     *common.HelloMessage
	messageID uint32
	sessionID uint32
}

// NewSession creates a new, disconnected, Netconf session that will use dial to reach target.
// Trace hooks are taken from ctx.
func NewSession(ctx context.Context, target string, dial Dialer, cfg *Config) Session {
	return &sesImpl{
		ctx:       ctx,
		cfg:       resolveConfig(cfg),
		dial:      dial,
		target:    target,
		trace:     ContextClientTrace(ctx),
		messageID: 1,
	}
}

func (si *sesImpl) Connect() (hello *common.HelloMessage, err error) {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.t != nil {
		return nil, ErrAlreadyConnected
	}

	si.trace.ConnectStart(si.target)
	defer func(begin time.Time) {
		si.trace.ConnectDone(si.target, err, time.Since(begin))
	}(time.Now())

	t, err := si.dial(si.ctx)
	if err != nil {
		return nil, err
	}
	si.attach(t)

	if hello, err = si.readHello(); err != nil {
		si.trace.Error("Failed to receive hello", si.target, err)
		_ = si.disconnect()
		return nil, err
	}
	si.hello = hello
	si.trace.HelloDone(hello)

	if len(hello.Errors) > 0 {
		return nil, &common.RPCErrors{Errors: hello.Errors}
	}
	if hello.SessionID == 0 {
		err = common.NewDecodeError("", errors.New("server hello carried no session-id"))
		_ = si.disconnect()
		return nil, err
	}
	si.sessionID = hello.SessionID
	return hello, nil
}

func (si *sesImpl) readHello() (*common.HelloMessage, error) {
	t := si.t
	timer := time.AfterFunc(time.Duration(si.cfg.SetupTimeoutSecs)*time.Second, func() {
		_ = t.Close()
	})

	b, err := si.dec.ReadMessage()
	if !timer.Stop() {
		// The transport has already been closed by the timer.
		si.detach()
		si.trace.ConnectionClosed(si.target, nil)
		return nil, ErrHelloTimeout
	}
	if err != nil {
		return nil, err
	}
	return codec.DecodeHello(b)
}

func (si *sesImpl) SendHello() error {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.t == nil {
		return ErrNotConnected
	}

	caps := si.cfg.Capabilities
	if si.cfg.DisableChunkedCodec {
		caps = common.WithoutChunkedFraming(caps)
	}
	if err := si.enc.Encode(&common.HelloMessage{Capabilities: caps}); err != nil {
		si.trace.Error("Failed to encode hello", si.target, err)
		return err
	}

	if si.hello != nil && common.PeerSupportsChunkedFraming(caps) && common.PeerSupportsChunkedFraming(si.hello.Capabilities) {
		// Update the codec to use chunked framing from now.
		codec.EnableChunkedFraming(si.dec, si.enc)
	}
	return nil
}

func (si *sesImpl) Execute(req common.Request) (*common.RPCReply, error) {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.execute(req)
}

func (si *sesImpl) execute(req common.Request) (reply *common.RPCReply, err error) {
	if si.t == nil {
		return nil, ErrNotConnected
	}

	id := si.messageID
	si.trace.ExecuteStart(req, id)
	defer func(begin time.Time) {
		si.trace.ExecuteDone(req, id, reply, err, time.Since(begin))
	}(time.Now())

	err = si.enc.Encode(&common.RPCMessage{MessageID: id, Union: common.GetUnion(req)})
	si.messageID++
	if err != nil {
		return nil, err
	}

	kind := common.OperationOf(req)
	if reply, err = si.dec.DecodeReply(kind); err != nil {
		return nil, err
	}
	if reply.MessageID != id {
		return nil, &common.MessageIDError{Sent: id, Received: reply.MessageID}
	}
	if err = common.Classify(reply); err != nil {
		return nil, err
	}

	switch kind {
	case common.OpCloseSession:
		si.sessionID = 0
		if err = si.disconnect(); err != nil {
			return nil, err
		}
	case common.OpKillSession:
		if killed, ok := killedSession(req); ok && killed == si.sessionID {
			si.sessionID = 0
		}
	}
	return reply, nil
}

func killedSession(req common.Request) (uint32, bool) {
	switch r := req.(type) {
	case *common.KillSessionReq:
		return r.SessionID, true
	case common.KillSessionReq:
		return r.SessionID, true
	}
	return 0, false
}

func (si *sesImpl) Close() {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.t == nil {
		return
	}
	if si.sessionID != 0 {
		if _, err := si.execute(&common.CloseSessionReq{}); err != nil {
			si.trace.Error("Implicit close-session failed", si.target, err)
		}
	}
	if err := si.disconnect(); err != nil {
		si.trace.Error("Session close failed", si.target, err)
	}
}

func (si *sesImpl) ID() uint32 {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.sessionID
}

func (si *sesImpl) ServerCapabilities() []string {
	si.mu.Lock()
	defer si.mu.Unlock()
	if si.hello == nil {
		return nil
	}
	return si.hello.Capabilities
}

func (si *sesImpl) NextMessageID() uint32 {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.messageID
}

func (si *sesImpl) State() State {
	si.mu.Lock()
	defer si.mu.Unlock()
	switch {
	case si.t == nil:
		return Disconnected
	case si.sessionID == 0:
		return Connected
	default:
		return Established
	}
}

func (si *sesImpl) attach(t Transport) {
	si.t = t
	si.dec = codec.NewDecoder(t, rfc6242.WithReadBufferSize(si.cfg.ReadBufferSize))
	si.enc = codec.NewEncoder(t)
}

func (si *sesImpl) detach() {
	si.t, si.dec, si.enc = nil, nil, nil
	si.sessionID = 0
}

// disconnect closes the transport, if any. The session id is cleared regardless of the outcome.
func (si *sesImpl) disconnect() error {
	t := si.t
	if t == nil {
		return nil
	}
	si.detach()
	err := t.Close()
	si.trace.ConnectionClosed(si.target, err)
	return err
}
