//go:build !(android && cgo)

package logging

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
)

func newHandler(string) log.Handler {
	return cli.New(os.Stderr)
}
