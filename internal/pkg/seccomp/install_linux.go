// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package seccomp

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/hpc/charliecloud-sub000/pkg/sylog"
)

// Install sets PR_SET_NO_NEW_PRIVS and installs the fake-root filter via
// prctl(PR_SET_SECCOMP, ...) rather than the raw seccomp(2) syscall, for
// compatibility with older kernels that have prctl's SECCOMP_MODE_FILTER
// but predate the seccomp(2) syscall wrapper.
//
// NO_NEW_PRIVS must be set first: without it, PR_SET_SECCOMP is only
// permitted for a process with CAP_SYS_ADMIN, which an unprivileged
// launcher never has.
func Install() error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return errors.Wrap(err, "prctl(PR_SET_NO_NEW_PRIVS)")
	}

	prog := Build()
	fprog := unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}

	if err := unix.Prctl(unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER, uintptr(unsafe.Pointer(&fprog)), 0, 0); err != nil {
		return errors.Wrap(err, "prctl(PR_SET_SECCOMP)")
	}

	return selfTest()
}

// selfTest confirms the filter actually faked kexec_load(2): a real
// kexec_load always fails for an unprivileged caller (EPERM at minimum),
// so success here can only mean the filter's ERRNO(0) fake fired. Catching
// a broken filter here, before the container is entered, is much better
// than catching it when some unrelated syscall in the container silently
// misbehaves.
func selfTest() error {
	_, _, errno := unix.Syscall6(unix.SYS_KEXEC_LOAD, 0, 0, 0, 0, 0, 0)
	if errno != 0 {
		return errors.Errorf("seccomp self-test failed: kexec_load returned %v, want faked success", errno)
	}
	sylog.Debugf("seccomp self-test passed: kexec_load faked")
	return nil
}
