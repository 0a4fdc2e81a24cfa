// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package bind

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/hpc/charliecloud-sub000/internal/pkg/platform"
	"github.com/hpc/charliecloud-sub000/pkg/sylog"
)

// Mkdirs creates the directories named by path (relative to the new
// root), walking component by component from t.newroot. Symlinks are
// followed only if relative; absolute or broken symlinks are fatal.
// Components falling under a previously recorded bind destination are
// refused: you cannot mkdir into a subtree someone else already bound.
func (t *Tracker) Mkdirs(path string) error {
	if path == "" || path[0] != '/' {
		return errors.Errorf("mkdirs: path must be absolute: %q", path)
	}

	base, err := platform.Canonicalize(t.newroot)
	if err != nil {
		return errors.Wrapf(err, "mkdirs: canonicalizing base %s", t.newroot)
	}

	components := strings.Split(strings.Trim(path, "/"), "/")
	nextCanonical := base

	for i, component := range components {
		isLast := i == len(components)-1
		next := filepath.Join(nextCanonical, component)

		info, err := os.Lstat(next)
		switch {
		case err == nil:
			if info.Mode()&os.ModeSymlink != 0 {
				target, rerr := os.Readlink(next)
				if rerr != nil {
					return errors.Wrapf(rerr, "mkdirs: reading symlink %s", next)
				}
				if strings.HasPrefix(target, "/") {
					return errors.Errorf("mkdirs: can't mkdir: symlink not relative: %s", next)
				}
				resolved, rerr := platform.Canonicalize(next)
				if rerr != nil {
					return errors.Wrapf(rerr, "mkdirs: can't mkdir: broken symlink: %s", next)
				}
				next = resolved
				info, err = os.Lstat(next)
				if err != nil {
					return errors.Wrapf(err, "mkdirs: resolved symlink vanished: %s", next)
				}
			}
			if !info.IsDir() && !isLast {
				return errors.Errorf("mkdirs: exists but not a directory: %s", next)
			}
			canon, cerr := platform.Canonicalize(next)
			if cerr != nil {
				return errors.Wrapf(cerr, "mkdirs: canonicalizing %s", next)
			}
			nextCanonical = canon

		case os.IsNotExist(err):
			if nextCanonical != base && !strings.HasPrefix(nextCanonical, base+string(filepath.Separator)) {
				return errors.Errorf("mkdirs: %s not subdirectory of %s", next, base)
			}
			if t.isUnderBound(next) {
				return errors.Errorf("mkdirs: %s under existing bind-mount", next)
			}
			if mkErr := os.Mkdir(next, 0o755); mkErr != nil {
				if os.IsPermission(mkErr) && t.scratch != "" {
					if oerr := t.overmount(next); oerr != nil {
						return errors.Wrapf(oerr, "mkdirs: overmounting %s", next)
					}
				} else {
					return errors.Wrapf(mkErr, "mkdirs: creating %s", next)
				}
			}
			nextCanonical = next

		default:
			return errors.Wrapf(err, "mkdirs: statting %s", next)
		}
	}

	return nil
}

// overmount makes path's parent writable via a symlink ranch: a fresh
// scratch subdirectory overmounts the read-only parent, the original
// parent is preserved bind-mounted under ".orig" inside that scratch
// directory, and a relative symlink is created back into .orig/<entry>
// for every pre-existing entry. path itself is then created on the now-
// writable parent.
func (t *Tracker) overmount(path string) error {
	sylog.Verbosef("making writeable via symlink ranch: %s", path)

	parent := filepath.Dir(path)

	n, err := countEntries(t.scratch)
	if err != nil {
		return errors.Wrapf(err, "overmount: listing scratch %s", t.scratch)
	}
	over := filepath.Join(t.scratch, strconv.Itoa(n+1))
	origDir := filepath.Join(over, ".orig")

	if err := os.Mkdir(over, 0o755); err != nil {
		return errors.Wrap(err, "overmount: creating scratch subdir")
	}
	if err := os.Mkdir(origDir, 0o755); err != nil {
		return errors.Wrap(err, "overmount: creating .orig")
	}
	if err := unix.Mount(parent, origDir, "", unix.MS_REC|unix.MS_BIND, ""); err != nil {
		return errors.Wrapf(err, "overmount: bind-mounting %s -> %s", parent, origDir)
	}
	if err := unix.Mount(over, parent, "", unix.MS_REC|unix.MS_BIND, ""); err != nil {
		return errors.Wrapf(err, "overmount: bind-mounting %s -> %s", over, parent)
	}

	entries, err := os.ReadDir(origDir)
	if err != nil {
		return errors.Wrapf(err, "overmount: listing %s", origDir)
	}
	sylog.Debugf("overmount: existing entries: %d", len(entries))
	for _, e := range entries {
		src := filepath.Join(parent, e.Name())
		dst := filepath.Join(".orig", e.Name())
		if err := os.Symlink(dst, src); err != nil {
			return errors.Wrapf(err, "overmount: symlinking %s -> %s", src, dst)
		}
	}

	if err := os.Mkdir(path, 0o755); err != nil {
		return errors.Wrapf(err, "overmount: mkdir after overmount: %s", path)
	}
	return nil
}

func countEntries(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return len(entries), nil
}
