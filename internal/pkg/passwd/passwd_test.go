// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package passwd

import (
	"strings"
	"testing"
)

func TestBuildSuppressesRootEntry(t *testing.T) {
	// The container UID's own entry may itself be the host's root line, so
	// suppression means at most one root line, never a second synthetic one.
	content := string(Build(0, "/root"))
	if n := strings.Count(content, "root:x:0:0:"); n > 1 {
		t.Errorf("expected no synthetic root entry when container UID is 0, got %d root lines:\n%s", n, content)
	}
}

func TestBuildSuppressesNobodyEntry(t *testing.T) {
	content := string(Build(65534, ""))
	if n := strings.Count(content, "nobody:x:65534:"); n > 1 {
		t.Errorf("expected no synthetic nobody entry when container UID is 65534, got %d nobody lines:\n%s", n, content)
	}
}

func TestBuildOrdinaryUID(t *testing.T) {
	content := string(Build(1000, "/home/x"))
	if !strings.Contains(content, "root:x:0:0:") {
		t.Errorf("expected root entry for ordinary container UID, got:\n%s", content)
	}
	if !strings.Contains(content, "nobody:x:65534:") {
		t.Errorf("expected nobody entry for ordinary container UID, got:\n%s", content)
	}
	if !strings.Contains(content, ":1000:1000:") {
		t.Errorf("expected an entry for UID 1000, got:\n%s", content)
	}
	if !strings.HasSuffix(content, "/home/x:/bin/sh\n") && !strings.Contains(content, "/home/x:") {
		t.Errorf("expected container UID's home to be %q, got:\n%s", "/home/x", content)
	}
}

func TestBuildGroupSuppressesRootAndNogroup(t *testing.T) {
	root := string(BuildGroup(0))
	if strings.Contains(root, "root:x:0:") {
		t.Errorf("expected no synthetic root group when container GID is 0, got:\n%s", root)
	}

	nogroup := string(BuildGroup(65534))
	if strings.Contains(nogroup, "nogroup:x:65534:") {
		t.Errorf("expected no synthetic nogroup when container GID is 65534, got:\n%s", nogroup)
	}
}

func TestBuildGroupOrdinaryGID(t *testing.T) {
	content := string(BuildGroup(2000))
	if !strings.Contains(content, "root:x:0:") {
		t.Errorf("expected root group entry, got:\n%s", content)
	}
	if !strings.Contains(content, "nogroup:x:65534:") {
		t.Errorf("expected nogroup entry, got:\n%s", content)
	}
	if !strings.Contains(content, ":2000:") {
		t.Errorf("expected an entry for GID 2000, got:\n%s", content)
	}
}
