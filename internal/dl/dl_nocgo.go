//go:build !cgo

package dl

import "github.com/pkg/errors"

// Available reports whether dynamic lookup is compiled in.
const Available = false

// Lookup always fails without cgo.
func Lookup(name string) (uintptr, error) {
	return 0, errors.Wrap(ErrUnavailable, name)
}
