// Package tlsx contains crypto/tls extensions
package tlsx

import (
	"crypto/tls"
	"fmt"
	"strings"
)

var (
	tlsVersion = map[uint16]string{
		tls.VersionTLS10: "TLSv1",
		tls.VersionTLS11: "TLSv1.1",
		tls.VersionTLS12: "TLSv1.2",
		tls.VersionTLS13: "TLSv1.3",
	}
	tlsVersionByName = map[string]uint16{
		"tlsv1":   tls.VersionTLS10,
		"tlsv1.0": tls.VersionTLS10,
		"tlsv1.1": tls.VersionTLS11,
		"tlsv1.2": tls.VersionTLS12,
		"tlsv1.3": tls.VersionTLS13,
	}
)

// VersionString returns the name of a TLS version.
func VersionString(version uint16) string {
	if name, found := tlsVersion[version]; found {
		return name
	}
	return fmt.Sprintf("0x%04x", version)
}

// ParseVersion parses a TLS version name like "TLSv1.2". The empty
// string maps to zero, meaning that crypto/tls chooses.
func ParseVersion(name string) (uint16, error) {
	if name == "" {
		return 0, nil
	}
	version, found := tlsVersionByName[strings.ToLower(name)]
	if !found {
		return 0, fmt.Errorf("tlsx: unknown TLS version: %s", name)
	}
	return version, nil
}

// ParseCipherSuites maps IANA cipher suite names to IDs. Insecure
// suites are accepted only when listed explicitly.
func ParseCipherSuites(names []string) ([]uint16, error) {
	if len(names) == 0 {
		return nil, nil
	}
	known := make(map[string]uint16)
	for _, cs := range tls.CipherSuites() {
		known[cs.Name] = cs.ID
	}
	for _, cs := range tls.InsecureCipherSuites() {
		known[cs.Name] = cs.ID
	}
	var out []uint16
	for _, name := range names {
		id, found := known[name]
		if !found {
			return nil, fmt.Errorf("tlsx: unknown cipher suite: %s", name)
		}
		out = append(out, id)
	}
	return out, nil
}
