// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package platform collects the thin, process-wide primitives the rest of
// the launcher builds on: syscall failure classification, path
// canonicalization, and the privilege self-check ch-run.c's
// privs_verify_invoking() performs before doing anything else.
package platform

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/hpc/charliecloud-sub000/pkg/sylog"
)

// Fatal reports a syscall failure with file/line context and exits 255. It
// mirrors the C source's Tf_m()/Te_m() fatal-with-errno macros: every
// syscall failure in the container constructor is fatal at the point of
// detection rather than unwound as a recoverable error, so partial
// container state never leaks into the user's session.
func Fatal(err error, format string, a ...interface{}) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "?", 0
	}
	msg := fmt.Sprintf(format, a...)
	sylog.Fatalf("%s:%d: %s: %v", filepath.Base(file), line, msg, err)
}

// Assert panics with file/line context for programmer errors: conditions
// that indicate a bug rather than an environmental failure, and that no
// errno describes. Recovered only in cmd/ch-run's main.
func Assert(cond bool, format string, a ...interface{}) {
	if cond {
		return
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "?", 0
	}
	panic(fmt.Sprintf("%s:%d: assertion failed: %s", filepath.Base(file), line, fmt.Sprintf(format, a...)))
}

// VerifyUnprivileged checks that the launcher is not running setuid: real,
// effective, and saved UID (and GID) must all agree. ch-run must work
// without ever being installed setuid-root; the CLI checks this before any
// namespace or mount work, after handling --version and --feature, and
// skips the check under --unsafe.
func VerifyUnprivileged() error {
	ruid, euid, suid, err := getresuid()
	if err != nil {
		return errors.Wrap(err, "getresuid")
	}
	if ruid != euid || euid != suid {
		return fmt.Errorf("real, effective, and saved UIDs differ (%d, %d, %d): refusing to run setuid", ruid, euid, suid)
	}

	rgid, egid, sgid, err := getresgid()
	if err != nil {
		return errors.Wrap(err, "getresgid")
	}
	if rgid != egid || egid != sgid {
		return fmt.Errorf("real, effective, and saved GIDs differ (%d, %d, %d): refusing to run setgid", rgid, egid, sgid)
	}

	return nil
}

func getresuid() (ruid, euid, suid int, err error) {
	var r, e, s int
	if e2 := unix.Getresuid(&r, &e, &s); e2 != nil {
		return 0, 0, 0, e2
	}
	return r, e, s, nil
}

func getresgid() (rgid, egid, sgid int, err error) {
	var r, e, s int
	if e2 := unix.Getresgid(&r, &e, &s); e2 != nil {
		return 0, 0, 0, e2
	}
	return r, e, s, nil
}

// Canonicalize resolves path to an absolute, symlink-free form. Every
// recorded bind-mount destination and the new-root path itself must be
// canonical at every observable point, so mkdirs's denylist check and the
// pivot dance compare like with like.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %q", path)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Wrapf(err, "canonicalizing %q", abs)
	}
	return real, nil
}
