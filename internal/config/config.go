// Package config contains the server configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ooni/netsrv/internal/cryptox"
	"github.com/ooni/netsrv/internal/tlsx"
	"gopkg.in/yaml.v3"
)

// Services that can run behind the server.
const (
	ServiceEcho = "echo"
	ServiceDoT  = "dot"
	ServiceH2   = "h2"
)

// TLS restricts the TLS negotiation. Empty fields mean that crypto/tls
// chooses.
type TLS struct {
	MinVersion   string   `yaml:"min_version"`
	MaxVersion   string   `yaml:"max_version"`
	CipherSuites []string `yaml:"cipher_suites"`
}

// DNS configures the DNS-over-TLS service.
type DNS struct {
	TTL     uint32              `yaml:"ttl"`
	Records map[string][]string `yaml:"records"`
}

// Config describes one server.
type Config struct {
	Host      string        `yaml:"host"`
	Listen    string        `yaml:"listen"`
	Plaintext bool          `yaml:"plaintext"`
	KeyFile   string        `yaml:"key_file"`
	CertFile  string        `yaml:"cert_file"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxConns  int           `yaml:"max_conns"`
	Service   string        `yaml:"service"`
	TLS       TLS           `yaml:"tls"`
	DNS       DNS           `yaml:"dns"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Host:    "localhost",
		Listen:  "127.0.0.1:8853",
		Timeout: 30 * time.Second,
		Service: ServiceEcho,
	}
}

// Load reads and validates the configuration file at path. Fields
// missing from the file keep their default value.
func Load(path string) (*Config, error) {
	c, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Read is like Load but does not validate, so that the caller can
// override fields before calling Validate.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Decode(data)
}

// Parse parses and validates a YAML configuration. Unknown fields
// are an error.
func Parse(data []byte) (*Config, error) {
	c, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Decode is like Parse but does not validate.
func Decode(data []byte) (*Config, error) {
	c := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return c, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host must be set")
	}
	if c.Listen == "" {
		return errors.New("listen must be set")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", c.Timeout)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("max_conns must not be negative: %d", c.MaxConns)
	}
	switch c.Service {
	case ServiceEcho, ServiceDoT, ServiceH2:
	default:
		return fmt.Errorf("unsupported service: %s (supported: %s, %s, %s)",
			c.Service, ServiceEcho, ServiceDoT, ServiceH2)
	}
	if c.Plaintext {
		return nil
	}
	if c.KeyFile == "" || c.CertFile == "" {
		return errors.New("key_file and cert_file must be set unless plaintext is true")
	}
	min, err := tlsx.ParseVersion(c.TLS.MinVersion)
	if err != nil {
		return fmt.Errorf("invalid tls.min_version: %w", err)
	}
	max, err := tlsx.ParseVersion(c.TLS.MaxVersion)
	if err != nil {
		return fmt.Errorf("invalid tls.max_version: %w", err)
	}
	if min != 0 && max != 0 && min > max {
		return errors.New("tls.min_version is greater than tls.max_version")
	}
	if _, err := tlsx.ParseCipherSuites(c.TLS.CipherSuites); err != nil {
		return fmt.Errorf("invalid tls.cipher_suites: %w", err)
	}
	return nil
}

// Protocols returns the TLS negotiation parameters, including the ALPN
// protocol of the configured service.
func (c *Config) Protocols() cryptox.Protocols {
	p := cryptox.Protocols{
		MinVersion:   c.TLS.MinVersion,
		MaxVersion:   c.TLS.MaxVersion,
		CipherSuites: c.TLS.CipherSuites,
	}
	switch c.Service {
	case ServiceDoT:
		p.NextProtos = []string{"dot"}
	case ServiceH2:
		p.NextProtos = []string{"h2"}
	}
	return p
}
