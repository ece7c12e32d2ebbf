package client

import (
	"context"
	"io"
	"time"

	"golang.org/x/crypto/ssh"
)

// The Secure Transport layer provides a communication path between
// the client and server.  NETCONF can be layered over any
// transport protocol that provides a set of basic requirements.

// Transport interface defines what characteristics make up a NETCONF transport
// layer object.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer establishes the transport for a session.
type Dialer func(ctx context.Context) (Transport, error)

// SSHDialer returns a Dialer that opens the netconf subsystem on target over ssh.
func SSHDialer(clientConfig *ssh.ClientConfig, target string) Dialer {
	return func(ctx context.Context) (Transport, error) {
		return NewSSHTransport(ctx, clientConfig, target, "netconf")
	}
}

type tImpl struct {
	reader      io.Reader
	writeCloser io.WriteCloser
	sshSession  *ssh.Session
	sshClient   *ssh.Client
	trace       *ClientTrace
}

// NewSSHTransport creates a new SSH transport, connecting to the target with the supplied client configuration
// and requesting the specified subsystem.
//
//nolint:gosec
func NewSSHTransport(ctx context.Context, clientConfig *ssh.ClientConfig, target, subsystem string) (rt Transport, err error) {
	impl := &tImpl{trace: ContextClientTrace(ctx)}

	impl.trace.DialStart(clientConfig, target)
	defer func(begin time.Time) {
		impl.trace.DialDone(clientConfig, target, err, time.Since(begin))
	}(time.Now())

	defer func() {
		if err != nil {
			if impl.sshSession != nil {
				_ = impl.sshSession.Close()
			}
			if impl.sshClient != nil {
				_ = impl.sshClient.Close()
			}
		}
	}()

	if impl.sshClient, err = ssh.Dial("tcp", target, clientConfig); err != nil {
		return
	}

	if impl.sshSession, err = impl.sshClient.NewSession(); err != nil {
		return
	}

	if err = impl.sshSession.RequestSubsystem(subsystem); err != nil {
		return
	}

	if impl.reader, err = impl.sshSession.StdoutPipe(); err != nil {
		return
	}

	if impl.writeCloser, err = impl.sshSession.StdinPipe(); err != nil {
		return
	}

	impl.reader = &traceReader{r: impl.reader, trace: impl.trace}
	impl.writeCloser = &traceWriter{w: impl.writeCloser, trace: impl.trace}

	rt = impl
	return
}

func (t *tImpl) Read(p []byte) (n int, err error) {
	return t.reader.Read(p)
}

func (t *tImpl) Write(p []byte) (n int, err error) {
	return t.writeCloser.Write(p)
}

// Close closes all session resources in the following order:
//
//  1. stdin pipe
//  2. SSH session
//  3. SSH client
//
// Errors are returned with priority matching the same order.
func (t *tImpl) Close() error {
	var writeCloseErr, sshSessionCloseErr, sshClientCloseErr error

	if t.writeCloser != nil {
		writeCloseErr = t.writeCloser.Close()
	}
	if t.sshSession != nil {
		sshSessionCloseErr = t.sshSession.Close()
		// The server may already have closed the channel after close-session.
		if sshSessionCloseErr == io.EOF {
			sshSessionCloseErr = nil
		}
	}
	if t.sshClient != nil {
		sshClientCloseErr = t.sshClient.Close()
	}

	switch {
	case writeCloseErr != nil && writeCloseErr != io.EOF:
		return writeCloseErr
	case sshSessionCloseErr != nil:
		return sshSessionCloseErr
	default:
		return sshClientCloseErr
	}
}

type traceReader struct {
	r     io.Reader
	trace *ClientTrace
}

func (tr *traceReader) Read(p []byte) (c int, err error) {
	tr.trace.ReadStart(p)
	defer func(begin time.Time) {
		tr.trace.ReadDone(p, c, err, time.Since(begin))
	}(time.Now())

	return tr.r.Read(p)
}

type traceWriter struct {
	w     io.WriteCloser
	trace *ClientTrace
}

func (tw *traceWriter) Write(p []byte) (c int, err error) {
	tw.trace.WriteStart(p)
	defer func(begin time.Time) {
		tw.trace.WriteDone(p, c, err, time.Since(begin))
	}(time.Now())

	return tw.w.Write(p)
}

func (tw *traceWriter) Close() error {
	return tw.w.Close()
}
