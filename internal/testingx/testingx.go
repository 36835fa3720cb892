// Package testingx contains testing extensions
package testingx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-lab/go/rtx"
)

// KeyPair is a throwaway self-signed key pair written to disk.
type KeyPair struct {
	CertFile string
	CertPEM  []byte
	KeyFile  string
	KeyPEM   []byte
	Leaf     *x509.Certificate
}

// NewKeyPairPEM generates a self-signed ECDSA certificate for host.
func NewKeyPairPEM(host string) (certPEM, keyPEM []byte) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	rtx.Must(err, "ecdsa.GenerateKey failed")
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	rtx.Must(err, "rand.Int failed")
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: host},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{host}
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	rtx.Must(err, "x509.CreateCertificate failed")
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	rtx.Must(err, "x509.MarshalPKCS8PrivateKey failed")
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return
}

// WriteKeyPair generates a key pair for host and writes it as
// cert.pem and key.pem inside a temporary directory.
func WriteKeyPair(t testing.TB, host string) KeyPair {
	t.Helper()
	certPEM, keyPEM := NewKeyPairPEM(host)
	dir := t.TempDir()
	pair := KeyPair{
		CertFile: filepath.Join(dir, "cert.pem"),
		CertPEM:  certPEM,
		KeyFile:  filepath.Join(dir, "key.pem"),
		KeyPEM:   keyPEM,
	}
	if err := os.WriteFile(pair.CertFile, certPEM, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pair.KeyFile, keyPEM, 0600); err != nil {
		t.Fatal(err)
	}
	block, _ := pem.Decode(certPEM)
	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	pair.Leaf = leaf
	return pair
}

// ClientConfig returns a client config trusting only pair.
func (pair KeyPair) ClientConfig() *tls.Config {
	pool := x509.NewCertPool()
	pool.AddCert(pair.Leaf)
	return &tls.Config{
		RootCAs:    pool,
		ServerName: pair.Leaf.Subject.CommonName,
	}
}

// ServerConfig returns a server config using pair.
func (pair KeyPair) ServerConfig() *tls.Config {
	cert, err := tls.X509KeyPair(pair.CertPEM, pair.KeyPEM)
	rtx.Must(err, "tls.X509KeyPair failed")
	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

// ConnPair returns two connected loopback TCP connections. Unlike
// net.Pipe, writes are buffered by the kernel, which TLS needs.
func ConnPair(t testing.TB) (client, server net.Conn) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := listener.Accept()
		ch <- result{conn: conn, err: err}
	}()
	client, err = net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	r := <-ch
	if r.err != nil {
		client.Close()
		t.Fatal(r.err)
	}
	t.Cleanup(func() {
		client.Close()
		r.conn.Close()
	})
	return client, r.conn
}
