package dl

import "github.com/pkg/errors"

var (
	// ErrNotFound means the dynamic linker has no such symbol
	ErrNotFound = errors.New("symbol not found by dynamic linker")
	// ErrUnavailable means the binary was built without cgo
	ErrUnavailable = errors.New("dynamic symbol lookup needs cgo")
)
