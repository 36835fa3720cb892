// Package cryptox is the crypto runtime used by the TLS server. It
// wraps crypto/tls with an explicit lifecycle: a Method selects the
// negotiation parameters, a Context built from a Method holds the
// credentials, and each connection gets its own handle derived from
// the Context.
package cryptox

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ooni/netsrv/internal/tlsconf"
	"github.com/ooni/netsrv/internal/tlsx"
	"github.com/ooni/netsrv/model"
)

var (
	initOnce  sync.Once
	initErr   error
	initCount int64
)

// Init performs the process-wide initialization of the crypto
// runtime. It is safe to call Init many times, possibly concurrently:
// only the first call does any work.
func Init() error {
	initOnce.Do(func() {
		atomic.AddInt64(&initCount, 1)
		var probe [1]byte
		_, err := io.ReadFull(rand.Reader, probe[:])
		initErr = ErrorBuilder{
			Error:   err,
			Failure: model.ErrCryptoInit,
			Message: "unable to read from the entropy source",
		}.MaybeBuild()
	})
	return initErr
}

// ErrorBuilder translates errors returned by crypto/tls and friends
// into *model.ErrWrapper errors.
type ErrorBuilder struct {
	// Error is the error to wrap. When nil, MaybeBuild returns nil.
	Error error

	// Failure is the error class.
	Failure error

	// Message describes the failed operation.
	Message string
}

// MaybeBuild builds a new *model.ErrWrapper if b.Error is not nil,
// and returns nil otherwise.
func (b ErrorBuilder) MaybeBuild() error {
	if b.Error == nil {
		return nil
	}
	return &model.ErrWrapper{
		Failure:    b.Failure,
		Message:    b.Message,
		WrappedErr: b.Error,
	}
}

// Check returns a *model.ErrWrapper with failure and message when
// failed is true, and nil otherwise.
func Check(failed bool, failure error, message string) error {
	if !failed {
		return nil
	}
	return &model.ErrWrapper{Failure: failure, Message: message}
}

// Protocols restricts the negotiation. The zero value does not apply
// any restriction and leaves every choice to crypto/tls.
type Protocols struct {
	// MinVersion is the minimum TLS version (e.g. "TLSv1.2").
	MinVersion string

	// MaxVersion is the maximum TLS version (e.g. "TLSv1.3").
	MaxVersion string

	// CipherSuites lists the allowed TLS 1.0-1.2 cipher suites
	// using their IANA names.
	CipherSuites []string

	// NextProtos lists the protocols to advertise via ALPN.
	NextProtos []string
}

// Method contains the negotiation parameters.
type Method struct {
	template *tls.Config
}

// NewMethod selects a negotiation method according to p.
func NewMethod(p Protocols) (*Method, error) {
	const message = "unable to load TLS method"
	min, err := tlsx.ParseVersion(p.MinVersion)
	if err != nil {
		return nil, ErrorBuilder{Error: err, Failure: model.ErrCryptoInit, Message: message}.MaybeBuild()
	}
	max, err := tlsx.ParseVersion(p.MaxVersion)
	if err != nil {
		return nil, ErrorBuilder{Error: err, Failure: model.ErrCryptoInit, Message: message}.MaybeBuild()
	}
	suites, err := tlsx.ParseCipherSuites(p.CipherSuites)
	if err != nil {
		return nil, ErrorBuilder{Error: err, Failure: model.ErrCryptoInit, Message: message}.MaybeBuild()
	}
	template := &tls.Config{}
	if err := tlsconf.SetVersions(template, min, max); err != nil {
		return nil, ErrorBuilder{Error: err, Failure: model.ErrCryptoInit, Message: message}.MaybeBuild()
	}
	if err := tlsconf.SetCipherSuites(template, suites); err != nil {
		return nil, ErrorBuilder{Error: err, Failure: model.ErrCryptoInit, Message: message}.MaybeBuild()
	}
	if err := tlsconf.SetNextProtos(template, p.NextProtos); err != nil {
		return nil, ErrorBuilder{Error: err, Failure: model.ErrCryptoInit, Message: message}.MaybeBuild()
	}
	return &Method{template: template}, nil
}

// Context is a reusable TLS context. Load the certificate and then the
// private key before calling NewHandle. Once configured, a Context is
// read-only and NewHandle may be called concurrently.
type Context struct {
	// ReadFile reads credential files. NewContext sets it to os.ReadFile.
	ReadFile func(path string) ([]byte, error)

	certPEM []byte
	config  atomic.Pointer[tls.Config]
	freed   int32
}

// NewContext allocates a new Context using method.
func NewContext(method *Method) (*Context, error) {
	if err := Check(method == nil, model.ErrCryptoInit, "unable to create TLS context"); err != nil {
		return nil, err
	}
	c := &Context{ReadFile: os.ReadFile}
	c.config.Store(method.template.Clone())
	return c, nil
}

// UseCertificateFile loads a PEM certificate chain from path.
func (c *Context) UseCertificateFile(path string) error {
	const message = "unable to load server certificate"
	config := c.config.Load()
	if err := Check(config == nil, model.ErrCredentialLoad, message+": context released"); err != nil {
		return err
	}
	data, err := c.ReadFile(path)
	if err != nil {
		return ErrorBuilder{Error: err, Failure: model.ErrCredentialLoad, Message: message}.MaybeBuild()
	}
	var block *pem.Block
	for rest := data; ; {
		block, rest = pem.Decode(rest)
		if block == nil || block.Type == "CERTIFICATE" {
			break
		}
	}
	if block == nil {
		err = errors.New("no PEM certificate found")
		return ErrorBuilder{Error: err, Failure: model.ErrCredentialLoad, Message: message}.MaybeBuild()
	}
	if _, err := x509.ParseCertificate(block.Bytes); err != nil {
		return ErrorBuilder{Error: err, Failure: model.ErrCredentialLoad, Message: message}.MaybeBuild()
	}
	c.certPEM = data
	return nil
}

// UsePrivateKeyFile loads a PEM private key from path. The key must
// match the certificate loaded with UseCertificateFile.
func (c *Context) UsePrivateKeyFile(path string) error {
	const message = "unable to load server private key"
	config := c.config.Load()
	if err := Check(config == nil, model.ErrCredentialLoad, message+": context released"); err != nil {
		return err
	}
	if err := Check(c.certPEM == nil, model.ErrCredentialLoad, message+": no certificate loaded"); err != nil {
		return err
	}
	data, err := c.ReadFile(path)
	if err != nil {
		return ErrorBuilder{Error: err, Failure: model.ErrCredentialLoad, Message: message}.MaybeBuild()
	}
	pair, err := tls.X509KeyPair(c.certPEM, data)
	if err != nil {
		return ErrorBuilder{Error: err, Failure: model.ErrCredentialLoad, Message: message}.MaybeBuild()
	}
	config.Certificates = []tls.Certificate{pair}
	return nil
}

// Configured returns whether both certificate and key are loaded.
func (c *Context) Configured() bool {
	config := c.config.Load()
	return config != nil && len(config.Certificates) > 0
}

// NewHandle allocates a per-connection TLS handle bound to c that
// will run the server side of the handshake over conn.
func (c *Context) NewHandle(conn net.Conn) (*tls.Conn, error) {
	const message = "unable to create TLS handle"
	config := c.config.Load()
	if err := Check(config == nil, model.ErrCryptoHandshakeInit, message+": context released"); err != nil {
		return nil, err
	}
	if err := Check(len(config.Certificates) <= 0, model.ErrCryptoHandshakeInit, message+": context not configured"); err != nil {
		return nil, err
	}
	if err := Check(conn == nil, model.ErrCryptoHandshakeInit, message+": nil connection"); err != nil {
		return nil, err
	}
	return tls.Server(conn, config), nil
}

// Free releases the context. It returns true only for the call that
// actually released it. Handles created before Free keep working.
func (c *Context) Free() bool {
	if !atomic.CompareAndSwapInt32(&c.freed, 0, 1) {
		return false
	}
	c.config.Store(nil)
	c.certPEM = nil
	return true
}

// Freed returns whether Free has been called.
func (c *Context) Freed() bool {
	return atomic.LoadInt32(&c.freed) != 0
}
