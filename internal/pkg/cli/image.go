// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package cli translates parsed command-line flags into the launcher's
// internal configuration: image-reference classification, the named-image
// storage path transform, and the container.Config the constructor
// consumes.
package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/hpc/charliecloud-sub000/internal/pkg/container"
)

// ClassifyImage resolves imgRef (the positional image argument) to a
// concrete filesystem root and its ImageType. mount, if non-empty, is the
// explicit --mount SquashFS mount point; storageDir is the --storage root
// used to resolve bare image names.
func ClassifyImage(imgRef, mount, storageDir string) (newroot string, typ container.ImageType, err error) {
	if imgRef == "" {
		return "", container.None, nil
	}

	info, statErr := os.Stat(imgRef)
	isFile := statErr == nil && !info.IsDir()

	switch {
	case statErr == nil && info.IsDir():
		return imgRef, container.Directory, nil

	case isFile && (strings.HasSuffix(imgRef, ".sqfs") || isSquashFS(imgRef)):
		if mount == "" {
			return "", 0, errors.New("SquashFS image requires --mount DIR")
		}
		return mount, container.Squash, nil

	case statErr != nil && os.IsNotExist(statErr) && !strings.ContainsAny(imgRef, "/"):
		root := filepath.Join(storageDir, "img", StoragePathName(imgRef))
		if _, err := os.Stat(root); err != nil {
			return "", 0, errors.Wrapf(err, "named image %q not found under %s", imgRef, storageDir)
		}
		return root, container.Name, nil

	default:
		return "", 0, errors.Errorf("can't find or classify image reference %q", imgRef)
	}
}

// isSquashFS sniffs path's first four bytes for the "hsqs" SquashFS magic,
// so a SquashFS archive need not be named with a recognized suffix.
func isSquashFS(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var magic [4]byte
	if _, err := f.Read(magic[:]); err != nil {
		return false
	}
	return string(magic[:]) == "hsqs"
}

