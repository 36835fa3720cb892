package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const full = `
host: db1
listen: 127.0.0.1:8853
key_file: /etc/netsrv/key.pem
cert_file: /etc/netsrv/cert.pem
timeout: 30s
max_conns: 128
service: dot
tls:
  min_version: TLSv1.2
  max_version: TLSv1.3
  cipher_suites:
    - TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256
dns:
  ttl: 60
  records:
    db1.example.com: [10.0.0.1, "fd00::1"]
`

func TestParseFull(t *testing.T) {
	c, err := Parse([]byte(full))
	require.NoError(t, err)
	require.Equal(t, "db1", c.Host)
	require.Equal(t, 30000*time.Millisecond, c.Timeout)
	require.Equal(t, 128, c.MaxConns)
	require.Equal(t, ServiceDoT, c.Service)
	require.EqualValues(t, 60, c.DNS.TTL)
	require.Equal(t, []string{"10.0.0.1", "fd00::1"}, c.DNS.Records["db1.example.com"])
	p := c.Protocols()
	require.Equal(t, "TLSv1.2", p.MinVersion)
	require.Equal(t, "TLSv1.3", p.MaxVersion)
	require.Equal(t, []string{"dot"}, p.NextProtos)
	require.Len(t, p.CipherSuites, 1)
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("plaintext: true\n"))
	require.NoError(t, err)
	require.Equal(t, "localhost", c.Host)
	require.Equal(t, ServiceEcho, c.Service)
	require.Equal(t, 30*time.Second, c.Timeout)
	require.Empty(t, c.Protocols().NextProtos)
}

func TestParseErrors(t *testing.T) {
	for name, data := range map[string]string{
		"empty file needs credentials": "",
		"unknown field":                "plaintext: true\nhots: db1\n",
		"empty host":                   "plaintext: true\nhost: \"\"\n",
		"empty listen":                 "plaintext: true\nlisten: \"\"\n",
		"negative timeout":             "plaintext: true\ntimeout: -1s\n",
		"negative max_conns":           "plaintext: true\nmax_conns: -1\n",
		"unknown service":              "plaintext: true\nservice: ftp\n",
		"missing key":                  "cert_file: cert.pem\n",
		"bad version":                  "key_file: k\ncert_file: c\ntls: {min_version: SSLv3}\n",
		"inverted versions":            "key_file: k\ncert_file: c\ntls: {min_version: TLSv1.3, max_version: TLSv1.2}\n",
		"bad cipher suite":             "key_file: k\ncert_file: c\ntls: {cipher_suites: [NOPE]}\n",
		"malformed yaml":               "host: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netsrv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(full), 0600))
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "db1", c.Host)
	_, err = Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
}

func TestReadDoesNotValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netsrv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: db1\n"), 0600))
	c, err := Read(path)
	require.NoError(t, err)
	require.Error(t, c.Validate())
	_, err = Load(path)
	require.Error(t, err)
	c.Plaintext = true
	require.NoError(t, c.Validate())
}
