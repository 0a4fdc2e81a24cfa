// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package cli

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/hpc/charliecloud-sub000/internal/pkg/bind"
)

// ParseBindSpec parses one --bind argument: SRC[:DST[:opts]]. DST defaults
// to SRC; "ro" in opts marks the mount read-only. DST must be absolute and
// not the container root itself.
func ParseBindSpec(spec string) (bind.Request, error) {
	parts := strings.Split(spec, ":")
	if len(parts) == 0 || parts[0] == "" {
		return bind.Request{}, errors.Errorf("bad bind spec %q", spec)
	}

	src := parts[0]
	dst := src
	readOnly := false

	if len(parts) >= 2 && parts[1] != "" {
		dst = parts[1]
	}
	if len(parts) >= 3 {
		for _, opt := range strings.Split(parts[2], ",") {
			switch opt {
			case "ro":
				readOnly = true
			case "rw", "":
			default:
				return bind.Request{}, errors.Errorf("bad bind spec %q: unknown option %q", spec, opt)
			}
		}
	}

	if !filepath.IsAbs(dst) {
		return bind.Request{}, errors.Errorf("bad bind spec %q: destination must be absolute", spec)
	}
	if dst == "/" {
		return bind.Request{}, errors.Errorf("bad bind spec %q: destination can't be the container root", spec)
	}

	return bind.Request{Source: src, Dest: dst, Level: bind.MakeDst, ReadOnly: readOnly}, nil
}

// ParseBindSpecs parses every spec in specs in order.
func ParseBindSpecs(specs []string) ([]bind.Request, error) {
	reqs := make([]bind.Request, 0, len(specs))
	for _, s := range specs {
		req, err := ParseBindSpec(s)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
