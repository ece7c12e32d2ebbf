package ssh

import (
	"context"
	"fmt"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Server represents an SSH server that hands each subsystem channel to a Handler.
type Server struct {
	listener net.Listener
	trace    *Trace

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// Handler is the interface that is implemented to handle an SSH channel.
type Handler interface {
	// Handle is a function that handles i/o to/from an SSH channel
	Handle(ch ssh.Channel)
}

// HandlerFactory is a function that will deliver an Handler.
type HandlerFactory func(conn *ssh.ServerConn) Handler

// NewServer delivers a new SSH Server, with a custom channel handler.
// A port of zero selects an ephemeral port; see Port.
func NewServer(ctx context.Context, address string, port int, cfg *ssh.ServerConfig, factory HandlerFactory) (server *Server, err error) {
	server = &Server{trace: ContextSSHTrace(ctx), conns: map[net.Conn]struct{}{}}

	listenAddress := fmt.Sprintf("%s:%d", address, port)
	server.listener, err = net.Listen("tcp", listenAddress)
	server.trace.Listened(listenAddress, err)
	if err != nil {
		return nil, err
	}

	go server.acceptConnections(cfg, factory)

	return server, nil
}

// Port delivers the tcp port number on which the server is listening.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Address delivers the host:port on which the server is listening.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// Close stops accepting connections and closes any that are open.
func (s *Server) Close() {
	_ = s.listener.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

func (s *Server) acceptConnections(config *ssh.ServerConfig, factory HandlerFactory) {
	s.trace.StartAccepting()
	for {
		nConn, err := s.listener.Accept()
		s.trace.Accepted(nConn, err)
		if err != nil {
			return
		}
		go s.serveConnection(nConn, config, factory)
	}
}

func (s *Server) serveConnection(nConn net.Conn, config *ssh.ServerConfig, factory HandlerFactory) {
	s.track(nConn, true)
	defer s.track(nConn, false)
	defer nConn.Close()

	svrconn, chch, reqch, err := ssh.NewServerConn(nConn, config)
	s.trace.NewServerConn(nConn, err)
	if err != nil {
		return
	}

	go ssh.DiscardRequests(reqch)

	var wg sync.WaitGroup
	for newChannel := range chch {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		dataChan, requests, err := newChannel.Accept()
		s.trace.SSHChannelAccept(nConn, err)
		if err != nil {
			continue
		}

		// Handle the "subsystem" request.
		go func(in <-chan *ssh.Request) {
			for req := range in {
				err := req.Reply(req.Type == "subsystem", nil)
				s.trace.SubsystemRequestReply(req.Type, err)
			}
		}(requests)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer dataChan.Close()
			factory(svrconn).Handle(dataChan)
		}()
	}
	wg.Wait()
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}
