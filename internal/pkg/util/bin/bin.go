// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// Copyright (c) 2019-2021, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package bin provides access to external helper binaries the launcher
// forks rather than links: the FUSE SquashFS mount helper and a handful of
// bootstrap/rootless utilities.
package bin

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/hpc/charliecloud-sub000/pkg/sylog"
)

// FindBin returns the path to the named external binary, or an error if it
// is not found on PATH. Unlike the engine build of this package there is no
// on-disk configuration file to override individual paths: ch-run has no
// config file, so every lookup goes through PATH.
func FindBin(name string) (path string, err error) {
	switch name {
	case "squashfuse", "fuse-overlayfs", "mount", "mknod", "newuidmap", "newgidmap":
		return findOnPath(name)
	}
	return "", fmt.Errorf("unknown executable name %q", name)
}

func findOnPath(name string) (path string, err error) {
	path, err = exec.LookPath(name)
	if err != nil {
		return "", err
	}
	sylog.Debugf("Found %q at %q", name, path)
	return path, nil
}

// AddDirToPath prepends dir to the process's PATH, used when a helper
// binary needs to be found next to the launcher itself.
func AddDirToPath(dir string) {
	old := os.Getenv("PATH")
	os.Setenv("PATH", dir+":"+old)
}
