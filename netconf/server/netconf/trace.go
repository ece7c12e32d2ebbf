package netconf

import (
	"context"

	"github.com/imdario/mergo"
	log "github.com/sirupsen/logrus"

	"github.com/damianoneill/ncclient/netconf/server/ssh"
)

// unique type to prevent assignment.
type netconfEventContextKey struct{}

// ContextNetconfTrace returns the Trace associated with the
// provided context. If none, it returns the no-op hooks.
func ContextNetconfTrace(ctx context.Context) *Trace {
	trace, _ := ctx.Value(netconfEventContextKey{}).(*Trace)
	if trace == nil {
		return NoOpLoggingHooks
	}
	merged := *trace
	_ = mergo.Merge(&merged, NoOpLoggingHooks)
	return &merged
}

// WithTrace returns a new context based on the provided parent
// ctx. Servers created with the returned context will use
// the provided trace hooks
func WithTrace(ctx context.Context, trace *Trace) context.Context {
	return context.WithValue(ctx, netconfEventContextKey{}, trace)
}

// Trace defines a structure for handling trace events
type Trace struct {
	*ssh.Trace
	StartSession func(s *SessionHandler)
	EndSession   func(s *SessionHandler, e error)
	ClientHello  func(s *SessionHandler)
	Encoded      func(s *SessionHandler, e error)
	Decoded      func(s *SessionHandler, e error)
}

// DefaultLoggingHooks provides a default logging hook to report errors.
var DefaultLoggingHooks = &Trace{
	Trace: ssh.DefaultLoggingHooks,
	ClientHello: func(s *SessionHandler) {
		if s.ClientHello == nil {
			log.WithField("session-id", s.sid).Warn("ClientHello not received")
		}
	},
	EndSession: func(s *SessionHandler, e error) {
		if e != nil {
			log.WithField("session-id", s.sid).WithError(e).Warn("EndSession")
		}
	},
	Encoded: func(s *SessionHandler, e error) {
		if e != nil {
			log.WithField("session-id", s.sid).WithError(e).Warn("Encode failed")
		}
	},
	Decoded: func(s *SessionHandler, e error) {
		if e != nil {
			log.WithField("session-id", s.sid).WithError(e).Warn("Decode failed")
		}
	},
}

// DiagnosticLoggingHooks provides a set of default diagnostic hooks
var DiagnosticLoggingHooks = &Trace{
	Trace: ssh.DiagnosticLoggingHooks,
	ClientHello: func(s *SessionHandler) {
		log.WithFields(log.Fields{"session-id": s.sid, "hello": s.ClientHello}).Debug("ClientHello")
	},
	StartSession: func(s *SessionHandler) {
		log.WithFields(log.Fields{"session-id": s.sid, "remote": s.svrcon.RemoteAddr()}).Debug("StartSession")
	},
	EndSession: func(s *SessionHandler, e error) {
		log.WithField("session-id", s.sid).WithError(e).Debug("EndSession")
	},
	Encoded: DefaultLoggingHooks.Encoded,
	Decoded: DefaultLoggingHooks.Decoded,
}

// NoOpLoggingHooks provides set of hooks that do nothing.
var NoOpLoggingHooks = &Trace{
	StartSession: func(s *SessionHandler) {},
	ClientHello:  func(s *SessionHandler) {},
	EndSession:   func(s *SessionHandler, e error) {},
	Encoded:      func(s *SessionHandler, e error) {},
	Decoded:      func(s *SessionHandler, e error) {},
}
