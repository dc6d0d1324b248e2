package logging

import (
	"testing"

	"github.com/apex/log"
)

type capture struct {
	entries []*log.Entry
}

func (c *capture) HandleLog(e *log.Entry) error {
	c.entries = append(c.entries, e)
	return nil
}

func TestFormat(t *testing.T) {
	c := &capture{}
	l := &log.Logger{Handler: c, Level: log.DebugLevel}
	l.WithFields(log.Fields{"pid": 42, "module": "libc.so"}).Info("attached")
	l.Debug("detached")

	if len(c.entries) != 2 {
		t.Fatalf("handled %d entries, want 2", len(c.entries))
	}
	if got, want := format(c.entries[0]), "attached module=libc.so pid=42"; got != want {
		t.Errorf("format = %q, want %q", got, want)
	}
	if got := format(c.entries[1]); got != "detached" {
		t.Errorf("format = %q, want %q", got, "detached")
	}
}

func TestSetup(t *testing.T) {
	Setup("armhook", true)
	if l := log.Log.(*log.Logger).Level; l != log.DebugLevel {
		t.Errorf("level = %v, want debug", l)
	}
	Setup("armhook", false)
	if l := log.Log.(*log.Logger).Level; l != log.InfoLevel {
		t.Errorf("level = %v, want info", l)
	}
}
