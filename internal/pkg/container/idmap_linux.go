// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package container

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/hpc/charliecloud-sub000/pkg/util/namespaces"
)

// writeIDMap writes a single 1:1 mapping line "<inside> <outside> 1" to
// /proc/self/{uid,gid}_map. An unprivileged process without CAP_SETUID in
// the parent namespace can map exactly one ID this way: an arbitrary
// inside ID to its own real ID outside. setgroups must be set to "deny"
// before the gid_map write, or the kernel refuses it for unprivileged
// callers.
func writeIDMap(path string, inside, outside int) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d %d 1\n", inside, outside); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func denySetgroups() error {
	f, err := os.OpenFile("/proc/self/setgroups", os.O_WRONLY, 0)
	if err != nil {
		return errors.Wrap(err, "opening /proc/self/setgroups")
	}
	defer f.Close()
	if _, err := f.WriteString("deny\n"); err != nil {
		return errors.Wrap(err, "writing /proc/self/setgroups")
	}
	return nil
}

// mapIdentity maps insideUID/GID to the process's current effective
// UID/GID, denying setgroups first. Used both for the outer namespace
// (inside = 0, i.e. root-in-namespace) and the inner one (inside =
// cfg.ContainerUID/GID).
func mapIdentity(insideUID, insideGID int) error {
	euid := unix.Geteuid()
	egid := unix.Getegid()

	if err := writeIDMap("/proc/self/uid_map", insideUID, euid); err != nil {
		return err
	}
	if err := denySetgroups(); err != nil {
		return err
	}
	if err := writeIDMap("/proc/self/gid_map", insideGID, egid); err != nil {
		return err
	}

	return verifyIDMap(insideUID, insideGID, euid, egid)
}

// verifyIDMap confirms that uid_map/gid_map now hold exactly the single
// "<inside> <outside> 1" line mapIdentity just wrote, by reading it back
// the same way namespaces.HostUID/HostGID do from inside the new
// namespace. The check only fires when the inside ID is 0 (the outer,
// root-in-namespace call): HostUID/HostGID short-circuit on a nonzero
// current ID, so there's nothing to read back for the inner call.
func verifyIDMap(insideUID, insideGID, wantOutsideUID, wantOutsideGID int) error {
	if insideUID == 0 {
		gotUID, err := namespaces.HostUID()
		if err != nil {
			return errors.Wrap(err, "reading back uid_map")
		}
		if int(gotUID) != wantOutsideUID {
			return errors.Errorf("uid_map sanity check failed: host uid %d, want %d", gotUID, wantOutsideUID)
		}
	}
	if insideGID == 0 {
		gotGID, err := namespaces.HostGID()
		if err != nil {
			return errors.Wrap(err, "reading back gid_map")
		}
		if int(gotGID) != wantOutsideGID {
			return errors.Errorf("gid_map sanity check failed: host gid %d, want %d", gotGID, wantOutsideGID)
		}
	}
	return nil
}
