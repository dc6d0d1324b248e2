// Package selinux checks for and switches off SELinux enforcement.
package selinux

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// ErrNotMounted means no selinuxfs mount was found.
var ErrNotMounted = errors.New("selinuxfs not mounted")

const fsName = "selinuxfs"

// Controller reads the kernel filesystem and mount tables at the given paths.
type Controller struct {
	Filesystems string
	Mounts      string
}

// Default uses the tables of the running kernel.
var Default = Controller{
	Filesystems: "/proc/filesystems",
	Mounts:      "/proc/mounts",
}

// Enabled reports whether the kernel knows selinuxfs. Unreadable tables count
// as disabled.
func (c Controller) Enabled() bool {
	ok := false
	err := scanLines(c.Filesystems, func(line string) bool {
		ok = strings.Contains(line, fsName)
		return !ok
	})
	if err != nil {
		log.WithError(err).Debug("selinux: filesystems unreadable")
	}
	return ok
}

// Mount returns the selinuxfs mount point.
func (c Controller) Mount() (string, error) {
	var mount string
	err := scanLines(c.Mounts, func(line string) bool {
		if !strings.Contains(line, fsName) {
			return true
		}
		if f := strings.Fields(line); len(f) > 1 {
			mount = f[1]
		}
		return false
	})
	if err != nil {
		return "", err
	}
	if mount == "" {
		return "", ErrNotMounted
	}
	return mount, nil
}

// Disable switches SELinux to permissive mode.
func (c Controller) Disable() error {
	mount, err := c.Mount()
	if err != nil {
		return err
	}
	enforce := filepath.Join(mount, "enforce")
	if err := os.WriteFile(enforce, []byte("0"), 0o644); err != nil {
		return errors.Wrap(err, "selinux permissive")
	}
	log.WithField("file", enforce).Info("selinux enforcement disabled")
	return nil
}

// scanLines calls fn for each line of path until fn returns false.
func scanLines(path string, fn func(line string) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		if !fn(s.Text()) {
			break
		}
	}
	return errors.Wrapf(s.Err(), "read %s", path)
}
