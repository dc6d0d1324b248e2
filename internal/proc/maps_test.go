package proc

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pkg/errors"
)

// fakeProc lays out a procfs tree with one directory per pid and a self link.
func fakeProc(t *testing.T, self int, procs map[int]struct{ cmdline, maps string }) FS {
	t.Helper()
	root := t.TempDir()
	for pid, p := range procs {
		dir := filepath.Join(root, strconv.Itoa(pid))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "cmdline"), []byte(p.cmdline), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "maps"), []byte(p.maps), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(strconv.Itoa(self), filepath.Join(root, "self")); err != nil {
		t.Fatal(err)
	}
	fs, err := NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

const libMaps = "6f000000-6f001000 r--p 00000000 fd:01 1000 /system/bin/app_process\n" +
	"7f0001000-7f0002000 r-xp 00000000 fd:01 1234 /path/to/lib.so\n" +
	"7f0002000-7f0003000 rw-p 00001000 fd:01 1234 /path/to/lib.so\n"

func TestFindModuleBase(t *testing.T) {
	fs := fakeProc(t, 100, map[int]struct{ cmdline, maps string }{
		100: {"self\x00", libMaps},
	})

	base, err := fs.FindModuleBase(Self, "lib.so")
	if err != nil {
		t.Fatalf("FindModuleBase: %v", err)
	}
	if base != 0x7f0001000 {
		t.Errorf("FindModuleBase = %#x, want 0x7f0001000", base)
	}
	m, err := fs.FindModule(Self, "lib.so")
	if err != nil {
		t.Fatalf("FindModule: %v", err)
	}
	if m.Path != "/path/to/lib.so" || !m.Exec {
		t.Errorf("FindModule = %+v", m)
	}

	if _, err := fs.FindModuleBase(Self, "libmissing.so"); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("FindModuleBase(missing) error = %v", err)
	}
}

func TestMappings(t *testing.T) {
	fs := fakeProc(t, 100, map[int]struct{ cmdline, maps string }{
		100: {"self\x00", libMaps},
	})
	maps, err := fs.Mappings(100)
	if err != nil {
		t.Fatalf("Mappings: %v", err)
	}
	if len(maps) != 3 {
		t.Fatalf("len(Mappings) = %d, want 3", len(maps))
	}
	m := maps[1]
	if !m.Read || m.Write || !m.Exec || m.Size() != 0x1000 || m.Path != "/path/to/lib.so" {
		t.Errorf("Mappings[1] = %+v", m)
	}
	if maps[2].Offset != 0x1000 || !maps[2].Write {
		t.Errorf("Mappings[2] = %+v", maps[2])
	}
}

func TestFindPID(t *testing.T) {
	fs := fakeProc(t, 1, map[int]struct{ cmdline, maps string }{
		1:   {"/init\x00", ""},
		200: {"/system/bin/target_process\x00--flag\x00", ""},
		300: {"/system/bin/target_process_other\x00", ""},
	})

	pid, err := fs.FindPID("/system/bin/target_process")
	if err != nil {
		t.Fatalf("FindPID: %v", err)
	}
	if pid != 200 {
		t.Errorf("FindPID = %d, want 200", pid)
	}
	if _, err := fs.FindPID("target_process"); !errors.Is(err, ErrProcessNotFound) {
		t.Errorf("FindPID(partial name) error = %v", err)
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name                     string
		local, localBase, remote uintptr
		want                     uintptr
		wantErr                  bool
	}{
		{"offset kept", 0xb6f01234, 0xb6f00000, 0xa0000000, 0xa0001234, false},
		{"at base", 0xb6f00000, 0xb6f00000, 0xa0000000, 0xa0000000, false},
		{"before base", 0xb6eff000, 0xb6f00000, 0xa0000000, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Translate(tt.local, tt.localBase, tt.remote)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Translate error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrBeforeBase) {
				t.Errorf("Translate error = %v, want ErrBeforeBase", err)
			}
			if got != tt.want {
				t.Errorf("Translate = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestRemoteAddr(t *testing.T) {
	fs := fakeProc(t, 100, map[int]struct{ cmdline, maps string }{
		100: {"injector\x00", "b6f00000-b6f80000 r-xp 00000000 fd:01 7 /system/lib/libc.so\n"},
		200: {"target\x00", "a0000000-a0080000 r-xp 00000000 fd:01 7 /system/lib/libc.so\n"},
	})
	got, err := fs.RemoteAddr(200, "/system/lib/libc.so", 0xb6f12345)
	if err != nil {
		t.Fatalf("RemoteAddr: %v", err)
	}
	if got != 0xa0012345 {
		t.Errorf("RemoteAddr = %#x, want 0xa0012345", got)
	}
}
