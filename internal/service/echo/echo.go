// Package echo contains a service writing back what it reads.
package echo

import (
	"context"
	"io"

	"github.com/ooni/netsrv/model"
)

// Serve copies the session input back to the session until EOF or
// an error. It returns the number of bytes echoed.
func Serve(ctx context.Context, session model.Session) (int64, error) {
	return io.Copy(session, session)
}
