// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// StorageDir resolves the named-image storage root: the --storage flag if
// given, else $CH_IMAGE_STORAGE, else /var/tmp/$USER.ch, matching the
// original storage_default() fallback chain.
func StorageDir(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("CH_IMAGE_STORAGE"); env != "" {
		return env, nil
	}
	user := os.Getenv("USER")
	if user == "" {
		return "", errors.New("$USER must be set to resolve the default storage directory")
	}
	return filepath.Join("/var/tmp", user+".ch"), nil
}

// StoragePathName applies the storage directory's name transform to a
// named-image reference: '/' becomes '%' and ':' becomes '+', so an image
// reference that is itself a path-like string ("repo.io/foo:bar") becomes
// a single flat directory name. The transform is a bijection on the
// allowed character class: neither '%' nor '+' may appear in an input
// image reference, since they are the transform's own escape targets.
func StoragePathName(ref string) string {
	r := strings.ReplaceAll(ref, "/", "%")
	r = strings.ReplaceAll(r, ":", "+")
	return r
}

// StoragePathToRef reverses StoragePathName.
func StoragePathToRef(name string) string {
	r := strings.ReplaceAll(name, "%", "/")
	r = strings.ReplaceAll(r, "+", ":")
	return r
}
