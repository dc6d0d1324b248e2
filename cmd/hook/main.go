// Command hook is built with -buildmode=c-shared and loaded into the target
// by the injector. Its initializer redirects fopen, fread and fclose so reads
// of watched files pass through fileio.Rewrite.
package main

import (
	"github.com/apex/log"
	"github.com/k2io/armhook"
	"github.com/k2io/armhook/internal/config"
	"github.com/k2io/armhook/internal/fileio"
	"github.com/k2io/armhook/internal/logging"
	"golang.org/x/sys/unix"
)

// state is written once by init, before any replacement can run.
var state *fileio.Hooks

type replacement struct {
	fn   fileio.Function
	addr func() uintptr
	// optional replacements only narrow stale handle tracking
	optional bool
}

var replacements = []replacement{
	{fn: fileio.Fopen, addr: fopenHook},
	{fn: fileio.Fread, addr: freadHook},
	{fn: fileio.Fclose, addr: fcloseHook, optional: true},
}

func init() {
	cfg, err := config.LoadHook()
	logging.Setup("hook", cfg.Debug)
	if err != nil {
		log.WithError(err).Error("hook disabled")
		return
	}
	state = fileio.New(cfg.FileIO, unix.Gettid)
	install(cfg)
}

func install(cfg config.Hook) {
	watched := state.Config()
	lg := log.WithFields(log.Fields{
		"mode":   cfg.Mode,
		"target": cfg.Target,
		"watch":  watched.PathPrefix + "*" + watched.Extension,
	})
	for _, r := range replacements {
		fn := r.fn
		publish := func(original uintptr) { state.SetOriginal(fn, original) }

		var err error
		switch cfg.Mode {
		case config.ModeInline:
			_, err = armhook.HookFunction(fn.String(), r.addr(), publish)
		default:
			_, err = armhook.HookGOT(cfg.Target, fn.String(), r.addr(), publish)
		}
		switch {
		case err == nil:
			lg.WithField("function", fn).Info("hooked")
		case r.optional:
			lg.WithError(err).WithField("function", fn).Warn("not hooked, closed streams stay tracked")
		default:
			lg.WithError(err).WithField("function", fn).Error("not hooked")
			return
		}
	}
}

func main() {}
