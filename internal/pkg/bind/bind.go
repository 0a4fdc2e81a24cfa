// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package bind implements the container constructor's bind-mount policy:
// dependency-leveled mount requests, the recorded-destination denylist
// that keeps later directory creation out of already-bound subtrees, and
// the symlink-ranch overmount trick for creating a directory under a
// read-only parent.
package bind

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/hpc/charliecloud-sub000/internal/pkg/platform"
	"github.com/hpc/charliecloud-sub000/pkg/sylog"
)

// Level is a bind request's dependency on its source and destination
// existing.
type Level int

const (
	// Required: both source and destination must exist; missing either
	// is fatal.
	Required Level = iota
	// Optional: silently skipped if either side is missing.
	Optional
	// MakeDst: the destination is created (via Tracker.Mkdirs) if
	// missing; the source must still exist.
	MakeDst
)

// Request is one bind-mount to perform.
type Request struct {
	Source   string
	Dest     string // relative to the new root
	Level    Level
	ReadOnly bool
}

// Tracker records every successful bind's canonical destination so
// subsequent Mkdirs calls refuse to create paths under them: mirrors the
// single process-global "bind paths" list the original design calls out
// explicitly as shared mutable state.
type Tracker struct {
	newroot string
	scratch string // writable area for symlink-ranch overmounts; "" disables them
	bound   []string
}

// SetScratch updates the writable scratch area used for symlink-ranch
// overmounts, preserving the tracker's recorded bind destinations.
func (t *Tracker) SetScratch(scratch string) {
	t.scratch = scratch
}

// NewTracker creates a Tracker rooted at newroot. scratch, if non-empty,
// is a writable directory (typically on the overlay tmpfs) used to stage
// symlink-ranch overmounts when Mkdirs hits a read-only parent.
func NewTracker(newroot, scratch string) *Tracker {
	return &Tracker{newroot: newroot, scratch: scratch}
}

// Do performs req. A Required bind with a missing source or destination,
// or any mount(2)/remount failure, is fatal (mirrors the C source: the
// container constructor never leaves a half-configured mount tree).
func (t *Tracker) Do(req Request) error {
	dest := filepath.Join(t.newroot, req.Dest)

	srcExists := pathExists(req.Source)
	dstExists := pathExists(dest)

	switch req.Level {
	case Optional:
		if !srcExists || !dstExists {
			sylog.Debugf("bind: skipping optional %s -> %s (missing)", req.Source, req.Dest)
			return nil
		}
	case Required:
		if !srcExists {
			return errors.Errorf("bind: required source missing: %s", req.Source)
		}
		if !dstExists {
			return errors.Errorf("bind: required destination missing: %s", dest)
		}
	case MakeDst:
		if !srcExists {
			return errors.Errorf("bind: source missing: %s", req.Source)
		}
		if !dstExists {
			if err := t.Mkdirs(req.Dest); err != nil {
				return errors.Wrapf(err, "bind: creating destination %s", req.Dest)
			}
		}
	}

	if err := unix.Mount(req.Source, dest, "", unix.MS_REC|unix.MS_BIND, ""); err != nil {
		return errors.Wrapf(err, "bind: mounting %s -> %s", req.Source, dest)
	}
	if req.ReadOnly {
		if err := unix.Mount("", dest, "", unix.MS_REC|unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
			return errors.Wrapf(err, "bind: remounting read-only %s", dest)
		}
	}

	canon, err := platform.Canonicalize(dest)
	if err != nil {
		return errors.Wrapf(err, "bind: canonicalizing %s", dest)
	}
	t.bound = append(t.bound, canon)
	sylog.Debugf("bind: %s -> %s", req.Source, dest)
	return nil
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// isUnderBound reports whether path falls under any previously recorded
// bind destination.
func (t *Tracker) isUnderBound(path string) bool {
	for _, b := range t.bound {
		if path == b || strings.HasPrefix(path, b+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
