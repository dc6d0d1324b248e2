package config

import (
	"testing"

	"github.com/pkg/errors"
)

func TestLoadInjectorDefaults(t *testing.T) {
	c, err := LoadInjector()
	if err != nil {
		t.Fatalf("LoadInjector: %v", err)
	}
	if c.LibcPath != "/system/lib/libc.so" || c.LinkerPath != "/system/bin/linker" {
		t.Errorf("paths = %q %q", c.LibcPath, c.LinkerPath)
	}
	if c.ScratchSize != 0x400 || c.Resolver != ResolverDlsym || !c.DisableSELinux {
		t.Errorf("config = %+v", c)
	}
}

func TestLoadInjectorOverrides(t *testing.T) {
	t.Setenv("ARMHOOK_RESOLVER", "elf")
	t.Setenv("ARMHOOK_SCRATCH", "4096")
	t.Setenv("ARMHOOK_SELINUX", "false")
	t.Setenv("ARMHOOK_DEBUG", "1")

	c, err := LoadInjector()
	if err != nil {
		t.Fatalf("LoadInjector: %v", err)
	}
	if c.Resolver != ResolverELF || c.ScratchSize != 4096 || c.DisableSELinux || !c.Debug {
		t.Errorf("config = %+v", c)
	}
}

func TestLoadInjectorInvalid(t *testing.T) {
	t.Setenv("ARMHOOK_RESOLVER", "magic")
	if _, err := LoadInjector(); !errors.Is(err, ErrInvalid) {
		t.Errorf("error = %v, want ErrInvalid", err)
	}
}

func TestLoadHook(t *testing.T) {
	t.Setenv("ARMHOOK_MODE", "inline")
	t.Setenv("ARMHOOK_KEY", "api_key")

	c, err := LoadHook()
	if err != nil {
		t.Fatalf("LoadHook: %v", err)
	}
	if c.Mode != ModeInline || c.Target != "/system/bin/target_process" {
		t.Errorf("config = %+v", c)
	}
	if c.FileIO.Key != "api_key" || c.FileIO.PathPrefix != "/data/local/temp/" || c.FileIO.MaxBuffer != 1<<20 {
		t.Errorf("fileio = %+v", c.FileIO)
	}

	t.Setenv("ARMHOOK_MODE", "plt")
	if _, err := LoadHook(); !errors.Is(err, ErrInvalid) {
		t.Errorf("error = %v, want ErrInvalid", err)
	}
}

func TestLoadHookSeesLaterChanges(t *testing.T) {
	t.Setenv("ARMHOOK_MODE", "got")
	c, err := LoadHook()
	if err != nil {
		t.Fatalf("LoadHook: %v", err)
	}
	if c.Mode != ModeGOT {
		t.Fatalf("mode = %q, want got", c.Mode)
	}

	t.Setenv("ARMHOOK_MODE", "inline")
	if c, err = LoadHook(); err != nil {
		t.Fatalf("LoadHook: %v", err)
	}
	if c.Mode != ModeInline {
		t.Errorf("mode after change = %q, want inline", c.Mode)
	}
}
