package client

import (
	"github.com/imdario/mergo"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/rfc6242"
)

// Defines structs describing netconf configuration.

// Config defines properties that configure netconf session behaviour.
type Config struct {
	// Defines the time in seconds that the client will wait to receive a hello message from the server.
	SetupTimeoutSecs int
	// Size in bytes of each read from the transport.
	ReadBufferSize int
	// Prevents the session from switching to chunked framing, even when both peers support it.
	DisableChunkedCodec bool
	// Capabilities advertised in the client hello.
	Capabilities []string
}

// DefaultConfig holds the values used for any field left unset.
var DefaultConfig = &Config{
	SetupTimeoutSecs: 5,
	ReadBufferSize:   rfc6242.DefaultReadBufferSize,
	Capabilities:     common.DefaultCapabilities,
}

// resolveConfig returns a copy of cfg with defaults applied to unspecified values.
func resolveConfig(cfg *Config) *Config {
	resolved := Config{}
	if cfg != nil {
		resolved = *cfg
	}
	_ = mergo.Merge(&resolved, DefaultConfig)
	return &resolved
}
