// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package squashfuse drives a FUSE SquashFS mount as an external helper
// process. No in-process FUSE low-level-ops binding is available without
// cgo, so the archive is served by forking the squashfuse(1) binary and
// waiting for its mount to appear in /proc/self/mountinfo, exactly as a
// libfuse low-level session's fuse_session_loop would run in a forked
// child in a cgo build.
package squashfuse

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/hpc/charliecloud-sub000/internal/pkg/util/bin"
	"github.com/hpc/charliecloud-sub000/pkg/sylog"
	"github.com/hpc/charliecloud-sub000/pkg/util/capabilities"
)

const mountTimeout = 2 * time.Second

// MountParams describes a single SquashFS-over-FUSE mount request.
type MountParams struct {
	Source string // path (or /proc/self/fd/N) to the SquashFS archive
	Target string // mount point, created by the caller
	Offset uint64 // byte offset of the filesystem within Source
}

// Driver owns one forked squashfuse(1) helper process and the mount it
// serves. Stop kills the helper; the launcher calls it only on paths that
// return before exec'ing the user command, so after a successful exec the
// helper keeps running and its mount is not torn down by the launcher.
type Driver struct {
	cmd     *exec.Cmd
	target  string
	cmdpath string
}

// New locates the squashfuse helper binary on PATH. It returns an error if
// none is installed; the caller decides whether that is fatal (only
// SquashFS images need it).
func New() (*Driver, error) {
	p, err := bin.FindBin("squashfuse")
	if err != nil {
		return nil, errors.Wrap(err, "squashfuse helper not found")
	}
	return &Driver{cmdpath: p}, nil
}

// Mount forks squashfuse(1) against params and blocks until the mount is
// observable in /proc/self/mountinfo or mountTimeout elapses.
func (d *Driver) Mount(params MountParams) error {
	optsStr := "offset=" + strconv.FormatUint(params.Offset, 10)
	d.cmd = exec.Command(d.cmdpath, "-f", "-o", optsStr, params.Source, params.Target)
	d.target = params.Target

	var stderr bytes.Buffer
	d.cmd.Stderr = &stderr

	if path.Dir(params.Source) == "/proc/self/fd" {
		fdNum, err := strconv.Atoi(path.Base(params.Source))
		if err == nil {
			d.cmd.ExtraFiles = []*os.File{os.NewFile(uintptr(fdNum), params.Source)}
		}
	}

	// Mounting FUSE filesystems needs CAP_SYS_ADMIN; granting it as an
	// ambient capability lets the unprivileged outer-namespace process
	// run the helper without a setuid binary. An ambient capability can
	// only be raised from the permitted+inheritable sets and must be
	// effective in the parent for the raise to take hold, so check and
	// (if needed) temporarily raise the effective set around the fork
	// rather than rely on squashfuse(1) failing with an opaque EPERM.
	restoreEffective, err := ensureSysAdminEffective()
	if err != nil {
		return errors.Wrap(err, "preparing CAP_SYS_ADMIN for squashfuse")
	}
	if restoreEffective != nil {
		defer restoreEffective()
	}

	d.cmd.SysProcAttr = &syscall.SysProcAttr{
		AmbientCaps: []uintptr{uintptr(capabilities.Map["CAP_SYS_ADMIN"].Value)},
	}

	sylog.Debugf("executing %v", d.cmd.String())
	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("squashfuse start failed: %v: %v", err, stderr.String())
	}

	process := d.cmd.Process
	if process == nil {
		return fmt.Errorf("no squashfuse process started")
	}

	elapsed := time.Duration(0)
	const pollEvery = 25 * time.Millisecond
	for elapsed < mountTimeout {
		time.Sleep(pollEvery)
		elapsed += pollEvery

		if err := process.Signal(syscall.Signal(0)); err != nil {
			waitErr := d.cmd.Wait()
			return fmt.Errorf("squashfuse exited early: %v: %v", waitErr, stderr.String())
		}

		points, err := mountPoints()
		if err != nil {
			d.Stop()
			return fmt.Errorf("failed reading mountinfo: %v", err)
		}
		if points[params.Target] {
			sylog.Debugf("%v mounted after %v", params.Target, elapsed)
			return nil
		}
	}

	d.Stop()
	return fmt.Errorf("squashfuse failed to mount %v within %v", params.Target, mountTimeout)
}

// Stop kills the helper process if it is still running.
func (d *Driver) Stop() error {
	if d.cmd == nil || d.cmd.Process == nil {
		return nil
	}
	sylog.Debugf("killing squashfuse for %v", d.target)
	return d.cmd.Process.Kill()
}

// ensureSysAdminEffective confirms CAP_SYS_ADMIN is available to raise as
// an ambient capability (present in both the permitted and inheritable
// sets, per capabilities(7)) and, if it isn't already effective, raises it
// for the duration of the fork. The returned func restores the prior
// effective set; it is nil if no change was made.
func ensureSysAdminEffective() (func(), error) {
	sysAdmin := uint64(1) << capabilities.Map["CAP_SYS_ADMIN"].Value

	permitted, err := capabilities.GetProcessPermitted()
	if err != nil {
		return nil, errors.Wrap(err, "reading permitted capabilities")
	}
	inheritable, err := capabilities.GetProcessInheritable()
	if err != nil {
		return nil, errors.Wrap(err, "reading inheritable capabilities")
	}
	if permitted&sysAdmin == 0 || inheritable&sysAdmin == 0 {
		return nil, errors.New("CAP_SYS_ADMIN is not in the permitted+inheritable set; can't grant it ambiently to squashfuse(1)")
	}

	effective, err := capabilities.GetProcessEffective()
	if err != nil {
		return nil, errors.Wrap(err, "reading effective capabilities")
	}
	if effective&sysAdmin != 0 {
		return nil, nil
	}

	prevEffective, err := capabilities.SetProcessEffective(effective | sysAdmin)
	if err != nil {
		return nil, errors.Wrap(err, "raising CAP_SYS_ADMIN to effective")
	}
	return func() {
		if _, err := capabilities.SetProcessEffective(prevEffective); err != nil {
			sylog.Warningf("restoring effective capabilities: %v", err)
		}
	}, nil
}
