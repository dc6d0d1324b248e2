package fileio

import (
	"bytes"
	"unicode/utf8"
)

// Rewrite replaces every quoted value of cfg.Key in buf, other than
// cfg.Keep, with cfg.Replacement. The buffer length never changes: a shorter
// result is padded with spaces at the end, a longer one loses its tail.
// Buffers that are not valid UTF-8 or exceed cfg.MaxBuffer are left alone.
// It reports whether buf was modified.
func Rewrite(buf []byte, cfg Config) bool {
	if len(buf) == 0 || len(buf) > cfg.MaxBuffer || !utf8.Valid(buf) {
		return false
	}
	needle := []byte(cfg.Key + `="`)
	repl := []byte(cfg.Replacement)

	var out []byte
	last, pos := 0, 0
	for {
		i := bytes.Index(buf[pos:], needle)
		if i < 0 {
			break
		}
		start := pos + i + len(needle)
		end := bytes.IndexByte(buf[start:], '"')
		if end < 0 {
			break
		}
		end += start
		pos = end + 1
		if string(buf[start:end]) == cfg.Keep {
			continue
		}
		out = append(out, buf[last:start]...)
		out = append(out, repl...)
		last = end
	}
	if out == nil {
		return false
	}
	out = append(out, buf[last:]...)

	if len(out) < len(buf) {
		out = append(out, bytes.Repeat([]byte{' '}, len(buf)-len(out))...)
	}
	copy(buf, out[:len(buf)])
	return true
}
