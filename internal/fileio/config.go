// Package fileio holds the state and logic behind the fopen, fread and
// fclose replacements: which streams are watched and how their read buffers
// are rewritten.
package fileio

import "strings"

// Config selects the watched files and the rewrite applied to them.
type Config struct {
	// PathPrefix must occur in the opened path.
	PathPrefix string
	// Extension must end the opened path.
	Extension string
	// Key names the quoted value to replace, as in Key="value".
	Key string
	// Replacement is written in place of the value.
	Replacement string
	// Keep is a value left alone.
	Keep string
	// MaxBuffer is the largest read buffer inspected.
	MaxBuffer int
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		PathPrefix:  "/data/local/temp/",
		Extension:   ".target",
		Key:         "secret_key",
		Replacement: "d1ff",
		Keep:        "0",
		MaxBuffer:   1 << 20,
	}
}

// Matches reports whether streams opened from path are watched.
func (c Config) Matches(path string) bool {
	return strings.Contains(path, c.PathPrefix) && strings.HasSuffix(path, c.Extension)
}
