// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package cli

import (
	"testing"

	"github.com/hpc/charliecloud-sub000/internal/pkg/bind"
)

func TestParseBindSpecSourceOnly(t *testing.T) {
	req, err := ParseBindSpec("/mnt/data")
	if err != nil {
		t.Fatalf("ParseBindSpec: %v", err)
	}
	if req.Source != "/mnt/data" || req.Dest != "/mnt/data" || req.ReadOnly {
		t.Errorf("got %+v", req)
	}
}

func TestParseBindSpecSourceDest(t *testing.T) {
	req, err := ParseBindSpec("/mnt/data:/data")
	if err != nil {
		t.Fatalf("ParseBindSpec: %v", err)
	}
	if req.Source != "/mnt/data" || req.Dest != "/data" {
		t.Errorf("got %+v", req)
	}
}

func TestParseBindSpecReadOnly(t *testing.T) {
	req, err := ParseBindSpec("/mnt/data:/data:ro")
	if err != nil {
		t.Fatalf("ParseBindSpec: %v", err)
	}
	if !req.ReadOnly {
		t.Errorf("expected ReadOnly, got %+v", req)
	}
	if req.Level != bind.MakeDst {
		t.Errorf("expected MakeDst level, got %v", req.Level)
	}
}

func TestParseBindSpecRejectsRelativeDest(t *testing.T) {
	if _, err := ParseBindSpec("/mnt/data:rel/path"); err == nil {
		t.Error("expected error for relative destination")
	}
}

func TestParseBindSpecRejectsRoot(t *testing.T) {
	if _, err := ParseBindSpec("/mnt/data:/"); err == nil {
		t.Error("expected error binding onto container root")
	}
}

func TestParseBindSpecRejectsUnknownOption(t *testing.T) {
	if _, err := ParseBindSpec("/mnt/data:/data:bogus"); err == nil {
		t.Error("expected error for unknown bind option")
	}
}

func TestParseBindSpecsOrderPreserved(t *testing.T) {
	reqs, err := ParseBindSpecs([]string{"/a:/x", "/b:/y"})
	if err != nil {
		t.Fatalf("ParseBindSpecs: %v", err)
	}
	if len(reqs) != 2 || reqs[0].Dest != "/x" || reqs[1].Dest != "/y" {
		t.Errorf("got %+v", reqs)
	}
}
