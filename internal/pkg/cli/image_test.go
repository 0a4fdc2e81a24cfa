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
	"testing"

	"github.com/hpc/charliecloud-sub000/internal/pkg/container"
)

func TestClassifyImageDirectory(t *testing.T) {
	dir := t.TempDir()

	newroot, typ, err := ClassifyImage(dir, "", "")
	if err != nil {
		t.Fatalf("ClassifyImage: %v", err)
	}
	if typ != container.Directory {
		t.Errorf("got type %v, want Directory", typ)
	}
	if newroot != dir {
		t.Errorf("got newroot %q, want %q", newroot, dir)
	}
}

func TestClassifyImageNone(t *testing.T) {
	_, typ, err := ClassifyImage("", "", "")
	if err != nil {
		t.Fatalf("ClassifyImage: %v", err)
	}
	if typ != container.None {
		t.Errorf("got type %v, want None", typ)
	}
}

func TestClassifyImageSquashRequiresMount(t *testing.T) {
	dir := t.TempDir()
	sqfs := filepath.Join(dir, "image.sqfs")
	if err := os.WriteFile(sqfs, []byte("not really squashfs"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := ClassifyImage(sqfs, "", ""); err == nil {
		t.Error("expected error for SquashFS image without --mount")
	}
}

func TestClassifyImageSquash(t *testing.T) {
	dir := t.TempDir()
	sqfs := filepath.Join(dir, "image.sqfs")
	if err := os.WriteFile(sqfs, []byte("not really squashfs"), 0o644); err != nil {
		t.Fatal(err)
	}
	mount := filepath.Join(dir, "mnt")

	newroot, typ, err := ClassifyImage(sqfs, mount, "")
	if err != nil {
		t.Fatalf("ClassifyImage: %v", err)
	}
	if typ != container.Squash {
		t.Errorf("got type %v, want Squash", typ)
	}
	if newroot != mount {
		t.Errorf("got newroot %q, want %q", newroot, mount)
	}
}

func TestClassifyImageUnknownName(t *testing.T) {
	storage := t.TempDir()
	if _, _, err := ClassifyImage("no-such-image", "", storage); err == nil {
		t.Error("expected error for unresolvable named image")
	}
}

func TestClassifyImageNamedFound(t *testing.T) {
	storage := t.TempDir()
	imgDir := filepath.Join(storage, "img", StoragePathName("debian:latest"))
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		t.Fatal(err)
	}

	newroot, typ, err := ClassifyImage("debian:latest", "", storage)
	if err != nil {
		t.Fatalf("ClassifyImage: %v", err)
	}
	if typ != container.Name {
		t.Errorf("got type %v, want Name", typ)
	}
	if newroot != imgDir {
		t.Errorf("got newroot %q, want %q", newroot, imgDir)
	}
}

func TestStoragePathNameRoundTrip(t *testing.T) {
	cases := []string{"debian:latest", "registry.io/foo/bar:v1", "plain"}
	for _, ref := range cases {
		name := StoragePathName(ref)
		if back := StoragePathToRef(name); back != ref {
			t.Errorf("round trip %q -> %q -> %q, want %q back", ref, name, back, ref)
		}
	}
}
