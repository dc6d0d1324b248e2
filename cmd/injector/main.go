// Command injector loads a shared library into a running process.
//
//	injector <process_name> <library_path>
//
// process_name must equal the first command line element of the target.
// Settings come from ARMHOOK_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/k2io/armhook/internal/config"
	"github.com/k2io/armhook/internal/inject"
	"github.com/k2io/armhook/internal/logging"
	"github.com/k2io/armhook/internal/proc"
	"github.com/k2io/armhook/internal/selinux"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <process_name> <library_path>\n", os.Args[0])
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2]); err != nil {
		log.WithError(err).Error("injection failed")
		os.Exit(1)
	}
}

func run(name, library string) error {
	cfg, err := config.LoadInjector()
	if err != nil {
		return err
	}
	logging.Setup("injector", cfg.Debug)

	fs, err := proc.Default()
	if err != nil {
		return err
	}
	pid, err := fs.FindPID(name)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"process": name, "pid": pid, "library": library}).Info("target found")

	if cfg.DisableSELinux && selinux.Default.Enabled() {
		if err := selinux.Default.Disable(); err != nil {
			log.WithError(err).Warn("selinux left enforcing")
		}
	}

	in, err := inject.New(cfg)
	if err != nil {
		return err
	}
	res, err := in.Inject(pid, library)
	if err != nil {
		return err
	}
	if !res.Loaded() {
		fmt.Println("Injection returned 0 (likely failed)...")
		if res.LoaderError != "" {
			fmt.Println(res.LoaderError)
		}
		return nil
	}
	fmt.Printf("Injection succeeded with handle: %#x\n", res.Handle)
	return nil
}
