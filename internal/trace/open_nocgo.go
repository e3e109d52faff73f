//go:build !cgo

package trace

import (
	"context"
	"errors"
)

// Open is unavailable without cgo; the Kuzu driver links KuzuDB's C library.
func Open(_ context.Context, _ string) (Store, error) {
	return nil, errors.New("trace: persistent store requires a cgo build")
}
