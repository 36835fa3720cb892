package model

import "errors"

var (
	// ErrCryptoInit indicates that we could not select a negotiation
	// method or allocate a TLS context.
	ErrCryptoInit = errors.New("crypto_init_error")

	// ErrCredentialLoad indicates that the certificate or the private
	// key could not be loaded into the TLS context.
	ErrCredentialLoad = errors.New("credential_load_error")

	// ErrCryptoHandshakeInit indicates that we could not allocate the
	// per-connection TLS handle.
	ErrCryptoHandshakeInit = errors.New("crypto_handshake_init_error")
)

// ErrWrapper is our error wrapper. Failure is one of the sentinel
// errors above and Message describes the operation that failed.
type ErrWrapper struct {
	// Failure is the error class.
	Failure error

	// Message describes the failed operation.
	Message string

	// WrappedErr is the error reported by the underlying library.
	WrappedErr error
}

// Error returns a description of the error that occurred.
func (e *ErrWrapper) Error() string {
	if e.WrappedErr == nil {
		return e.Failure.Error() + ": " + e.Message
	}
	return e.Failure.Error() + ": " + e.Message + ": " + e.WrappedErr.Error()
}

// Is allows errors.Is to match the error class.
func (e *ErrWrapper) Is(target error) bool {
	return e.Failure == target
}

// Unwrap allows to access the underlying error
func (e *ErrWrapper) Unwrap() error {
	return e.WrappedErr
}
