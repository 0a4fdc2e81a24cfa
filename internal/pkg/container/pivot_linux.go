// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package container

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// pivot performs the documented pivot_root dance. The root before pivot
// may be an initramfs rootfs, which pivot_root(2) rejects outright; the
// fix is to first MS_MOVE the new root's parent over /, chroot into it,
// and only then call pivot_root. /dev is used as the put-old target
// because even the most minimal images have it. newroot is returned
// rewritten to /<basename>, since that's the only path valid once the
// old root is gone.
func pivot(newroot string) (string, error) {
	parent, base := filepath.Dir(newroot), filepath.Base(newroot)

	if err := os.Chdir(parent); err != nil {
		return "", errors.Wrapf(err, "can't chdir to %s", parent)
	}
	if err := unix.Mount(parent, "/", "", unix.MS_MOVE, ""); err != nil {
		return "", errors.Wrap(err, "can't move-mount new root's parent over /")
	}
	if err := unix.Chroot("."); err != nil {
		return "", errors.Wrap(err, "can't chroot into new root's parent")
	}

	newroot = "/" + base

	if err := os.Chdir(newroot); err != nil {
		return "", errors.Wrapf(err, "can't chdir into new root %s", newroot)
	}
	if err := unix.PivotRoot(newroot, filepath.Join(newroot, "dev")); err != nil {
		return "", errors.Wrap(err, "can't pivot_root(2)")
	}
	if err := unix.Chroot("."); err != nil {
		return "", errors.Wrap(err, "can't chroot(2) into new root")
	}
	if err := unix.Unmount("/dev", unix.MNT_DETACH); err != nil {
		return "", errors.Wrap(err, "can't detach old root")
	}

	return newroot, nil
}

// remountReadOnly re-mounts newroot read-only unless writable is set or
// it is already read-only (EROFS on a write-access probe, e.g. a
// read-only NFS export): that single case is the one recoverable
// "failure" in the whole constructor.
func remountReadOnly(newroot string, writable bool) error {
	if writable {
		return nil
	}
	if err := unix.Access(newroot, unix.W_OK); err != nil {
		if errors.Is(err, unix.EROFS) {
			return nil
		}
	}
	if err := unix.Mount("", newroot, "", unix.MS_REC|unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
		return errors.Wrap(err, "can't re-mount image read-only (is it on NFS?)")
	}
	return nil
}
