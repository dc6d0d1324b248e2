// Package logging configures apex/log for the injector and the hook library.
package logging

import (
	"fmt"
	"strings"

	"github.com/apex/log"
)

// Setup installs the platform handler and sets the level. tag names the
// component in system logs that support it.
func Setup(tag string, debug bool) {
	log.SetHandler(newHandler(tag))
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// format renders an entry as one line: message then sorted key=value pairs.
func format(e *log.Entry) string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, name := range e.Fields.Names() {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}
	return b.String()
}
