package config

import (
	"fmt"
	"time"
)

// Config holds server configuration values.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// UDP relay.
	Host             string        `mapstructure:"host" yaml:"host"`
	RendezvousPort   int           `mapstructure:"rendezvous_port" yaml:"rendezvous_port"`
	IngressPort      int           `mapstructure:"ingress_port" yaml:"ingress_port"`
	EgressPort       int           `mapstructure:"egress_port" yaml:"egress_port"`
	MaxDatagramSize  int           `mapstructure:"max_datagram_size" yaml:"max_datagram_size"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	QueueCapacity    int           `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	IngressRateLimit int           `mapstructure:"ingress_rate_limit" yaml:"ingress_rate_limit"`

	// Admin HTTP API.
	HTTPAddr          string        `mapstructure:"http_addr" yaml:"http_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Session log; empty disables it.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	MDNSEnabled  bool   `mapstructure:"mdns_enabled" yaml:"mdns_enabled"`
	MDNSInstance string `mapstructure:"mdns_instance" yaml:"mdns_instance"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		LogLevel:          "info",
		RendezvousPort:    11000,
		IngressPort:       11001,
		EgressPort:        11002,
		MaxDatagramSize:   65507,
		HandshakeTimeout:  10 * time.Second,
		QueueCapacity:     4096,
		HTTPAddr:          ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Host != "" {
		c.Host = other.Host
	}
	if other.RendezvousPort != 0 {
		c.RendezvousPort = other.RendezvousPort
	}
	if other.IngressPort != 0 {
		c.IngressPort = other.IngressPort
	}
	if other.EgressPort != 0 {
		c.EgressPort = other.EgressPort
	}
	if other.MaxDatagramSize != 0 {
		c.MaxDatagramSize = other.MaxDatagramSize
	}
	if other.HandshakeTimeout != 0 {
		c.HandshakeTimeout = other.HandshakeTimeout
	}
	if other.IdleTimeout != 0 {
		c.IdleTimeout = other.IdleTimeout
	}
	if other.QueueCapacity != 0 {
		c.QueueCapacity = other.QueueCapacity
	}
	if other.IngressRateLimit != 0 {
		c.IngressRateLimit = other.IngressRateLimit
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.MDNSEnabled {
		c.MDNSEnabled = true
	}
	if other.MDNSInstance != "" {
		c.MDNSInstance = other.MDNSInstance
	}
}

// Validate rejects configurations the relay cannot start with.
// Port 0 is allowed and means "pick any free port".
func (c Config) Validate() error {
	for name, port := range map[string]int{
		"rendezvous_port": c.RendezvousPort,
		"ingress_port":    c.IngressPort,
		"egress_port":     c.EgressPort,
	} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%s out of range: %d", name, port)
		}
	}
	if c.RendezvousPort != 0 && (c.RendezvousPort == c.IngressPort || c.RendezvousPort == c.EgressPort) ||
		c.IngressPort != 0 && c.IngressPort == c.EgressPort {
		return fmt.Errorf("rendezvous, ingress and egress ports must differ")
	}
	if c.MaxDatagramSize <= 0 {
		return fmt.Errorf("max_datagram_size must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive")
	}
	if c.IdleTimeout < 0 || c.QueueCapacity < 0 || c.IngressRateLimit < 0 {
		return fmt.Errorf("idle_timeout, queue_capacity and ingress_rate_limit must not be negative")
	}
	return nil
}
