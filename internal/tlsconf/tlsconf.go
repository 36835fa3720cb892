// Package tlsconf helps with configuring TLS
package tlsconf

import (
	"crypto/tls"
	"errors"
)

// SetVersions restricts the protocol versions used by conf. Zero
// means that crypto/tls uses its default for that bound.
func SetVersions(conf *tls.Config, min, max uint16) error {
	if min != 0 && max != 0 && min > max {
		return errors.New("tlsconf: min version greater than max version")
	}
	conf.MinVersion, conf.MaxVersion = min, max
	return nil
}

// SetCipherSuites restricts the TLS 1.0-1.2 cipher suites used by
// conf. An empty list keeps the crypto/tls defaults.
func SetCipherSuites(conf *tls.Config, suites []uint16) error {
	if len(suites) == 0 {
		conf.CipherSuites = nil
		return nil
	}
	conf.CipherSuites = append([]uint16(nil), suites...)
	return nil
}

// SetNextProtos configures the protocols advertised via ALPN.
func SetNextProtos(conf *tls.Config, protos []string) error {
	conf.NextProtos = append([]string(nil), protos...)
	return nil
}
