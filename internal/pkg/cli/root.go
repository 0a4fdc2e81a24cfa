// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/hpc/charliecloud-sub000/internal/pkg/container"
	"github.com/hpc/charliecloud-sub000/internal/pkg/platform"
	"github.com/hpc/charliecloud-sub000/internal/pkg/seccomp"
	"github.com/hpc/charliecloud-sub000/pkg/sylog"
)

// version is set at build time via -ldflags.
var version = "unreleased"

var knownFeatures = map[string]bool{
	"seccomp": true,
	"squash":  true,
}

// RootCmd is the launcher's single command: an image reference, "--", and
// the user command to run inside it.
var RootCmd = &cobra.Command{
	Use:                   "ch-run IMAGE -- COMMAND [ARG...]",
	Short:                 "run a command inside a container",
	DisableFlagsInUseLine: true,
	Args:                  cobra.ArbitraryArgs,
	SilenceUsage:          true,
	SilenceErrors:         true,
	RunE:                  run,
}

var flags = &Flags{}

func init() {
	flags.Register(RootCmd.Flags())
}

// Execute runs the root command, exiting the process with a matching
// status on error. It is the sole entry point cmd/ch-run calls.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ch-run: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	setLogLevel()

	if flags.Version {
		fmt.Println(version)
		return nil
	}
	if flags.Feature != "" {
		if knownFeatures[flags.Feature] {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if !flags.Unsafe {
		if err := platform.VerifyUnprivileged(); err != nil {
			return err
		}
	}

	imgRef, cmdArgs, err := splitImageAndCommand(args)
	if err != nil {
		return err
	}

	cfg, err := BuildConfig(flags, imgRef)
	if err != nil {
		return err
	}

	driver, err := container.Containerize(cfg)
	if driver != nil {
		defer driver.Stop()
	}
	if err != nil {
		return errors.Wrap(err, "containerize")
	}

	if flags.Seccomp {
		if err := seccomp.Install(); err != nil {
			return errors.Wrap(err, "installing seccomp filter")
		}
	}

	if flags.Cd != "" {
		if err := os.Chdir(flags.Cd); err != nil {
			return errors.Wrapf(err, "cd %s", flags.Cd)
		}
	}

	if len(cmdArgs) == 0 {
		cmdArgs = []string{"/bin/sh"}
	}
	exePath, err := lookPath(cmdArgs[0], cfg.Env["PATH"])
	if err != nil {
		return err
	}

	sylog.Debugf("executing %v", cmdArgs)
	return errors.Wrapf(unix.Exec(exePath, cmdArgs, cfg.Env.Slice()), "exec %s", exePath)
}

// lookPath resolves name the way execvp(3) does: a name containing a
// slash is used as-is (relative to the current directory, which by this
// point is the container's), otherwise each directory in pathEnv is
// searched in order. This can't use os/exec.LookPath, which always
// consults the calling process's own $PATH rather than the container
// environment the command is about to be exec'd with.
func lookPath(name, pathEnv string) (string, error) {
	if strings.Contains(name, "/") {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name, nil
		}
		return "", errors.Errorf("can't execute %q", name)
	}
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", errors.Errorf("%s: command not found", name)
}

// splitImageAndCommand separates the positional "IMAGE -- COMMAND..."
// arguments cobra leaves after flag parsing.
func splitImageAndCommand(args []string) (imgRef string, cmdArgs []string, err error) {
	if len(args) == 0 {
		return "", nil, errors.New("usage: ch-run IMAGE -- COMMAND [ARG...]")
	}
	return args[0], args[1:], nil
}

func setLogLevel() {
	level := int(sylog.InfoLevel) + flags.Verbose - flags.Quiet
	sylog.SetLevel(level, flags.Color)
}
