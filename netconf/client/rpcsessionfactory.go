package client

import (
	"context"

	"golang.org/x/crypto/ssh"
)

// Defines a factory method for instantiating netconf rpc sessions.

// NewRPCSession connects to the  target using the ssh configuration, and establishes
// a netconf session with default configuration.
func NewRPCSession(ctx context.Context, sshcfg *ssh.ClientConfig, target string) (s Session, err error) {
	return NewRPCSessionWithConfig(ctx, sshcfg, target, DefaultConfig)
}

// NewRPCSessionWithConfig connects to the  target using the ssh configuration, and establishes
// a netconf session with the client configuration.
func NewRPCSessionWithConfig(ctx context.Context, sshcfg *ssh.ClientConfig, target string, cfg *Config) (s Session, err error) {
	return NewRPCSessionWithDialer(ctx, target, SSHDialer(sshcfg, target), cfg)
}

// NewRPCSessionWithDialer establishes a netconf session over the transport delivered by dial:
// it connects, reads the server hello and sends the client hello.
func NewRPCSessionWithDialer(ctx context.Context, target string, dial Dialer, cfg *Config) (Session, error) {
	s := NewSession(ctx, target, dial, cfg)
	if _, err := s.Connect(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.SendHello(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
