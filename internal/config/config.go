// Package config reads the injector and hook library settings from the
// environment.
package config

import (
	"github.com/k2io/armhook/internal/fileio"
	"github.com/pkg/errors"
	"github.com/xyproto/env/v2"
)

// ErrInvalid means a setting has an unusable value.
var ErrInvalid = errors.New("invalid setting")

const (
	// ResolverDlsym finds remote functions through this process' dynamic linker.
	ResolverDlsym = "dlsym"
	// ResolverELF finds remote functions in the module files.
	ResolverELF = "elf"

	// ModeGOT swaps the target executable's GOT slots.
	ModeGOT = "got"
	// ModeInline overwrites the libc function prologues.
	ModeInline = "inline"
)

// Injector configures cmd/injector.
type Injector struct {
	LibcPath    string
	LinkerPath  string
	ScratchSize int
	Resolver    string
	// DisableSELinux switches enforcement off before attaching.
	DisableSELinux bool
	Debug          bool
}

// Hook configures the injected library.
type Hook struct {
	// Target is the module whose GOT is patched in ModeGOT.
	Target string
	Mode   string
	FileIO fileio.Config
	Debug  bool
}

// LoadInjector reads the ARMHOOK_* injector settings from the current
// environment.
func LoadInjector() (Injector, error) {
	env.Load()
	c := Injector{
		LibcPath:       env.Str("ARMHOOK_LIBC", "/system/lib/libc.so"),
		LinkerPath:     env.Str("ARMHOOK_LINKER", "/system/bin/linker"),
		ScratchSize:    env.Int("ARMHOOK_SCRATCH", 0x400),
		Resolver:       env.Str("ARMHOOK_RESOLVER", ResolverDlsym),
		DisableSELinux: !env.Has("ARMHOOK_SELINUX") || env.Bool("ARMHOOK_SELINUX"),
		Debug:          env.Bool("ARMHOOK_DEBUG"),
	}
	if c.ScratchSize <= 0 {
		return c, errors.Wrapf(ErrInvalid, "ARMHOOK_SCRATCH=%d", c.ScratchSize)
	}
	if c.Resolver != ResolverDlsym && c.Resolver != ResolverELF {
		return c, errors.Wrapf(ErrInvalid, "ARMHOOK_RESOLVER=%q", c.Resolver)
	}
	return c, nil
}

// LoadHook reads the ARMHOOK_* hook library settings from the current
// environment.
func LoadHook() (Hook, error) {
	env.Load()
	d := fileio.DefaultConfig()
	c := Hook{
		Target: env.Str("ARMHOOK_TARGET", "/system/bin/target_process"),
		Mode:   env.Str("ARMHOOK_MODE", ModeGOT),
		FileIO: fileio.Config{
			PathPrefix:  env.Str("ARMHOOK_PATH_PREFIX", d.PathPrefix),
			Extension:   env.Str("ARMHOOK_EXTENSION", d.Extension),
			Key:         env.Str("ARMHOOK_KEY", d.Key),
			Replacement: env.Str("ARMHOOK_REPLACEMENT", d.Replacement),
			Keep:        d.Keep,
			MaxBuffer:   env.Int("ARMHOOK_MAX_BUFFER", d.MaxBuffer),
		},
		Debug: env.Bool("ARMHOOK_DEBUG"),
	}
	if c.Mode != ModeGOT && c.Mode != ModeInline {
		return c, errors.Wrapf(ErrInvalid, "ARMHOOK_MODE=%q", c.Mode)
	}
	if c.FileIO.Key == "" {
		return c, errors.Wrap(ErrInvalid, "ARMHOOK_KEY is empty")
	}
	if c.FileIO.MaxBuffer <= 0 {
		return c, errors.Wrapf(ErrInvalid, "ARMHOOK_MAX_BUFFER=%d", c.FileIO.MaxBuffer)
	}
	return c, nil
}
