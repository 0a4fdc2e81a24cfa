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
	"testing"
)

func TestBuildConfigRequiresUser(t *testing.T) {
	old, had := os.LookupEnv("USER")
	os.Unsetenv("USER")
	defer func() {
		if had {
			os.Setenv("USER", old)
		}
	}()

	dir := t.TempDir()
	if _, err := BuildConfig(&Flags{}, dir); err == nil {
		t.Error("expected error when $USER is unset")
	}
}

func TestBuildConfigDirectoryImage(t *testing.T) {
	os.Setenv("USER", "charlie")
	dir := t.TempDir()

	cfg, err := BuildConfig(&Flags{UID: -1, GID: -1}, dir)
	if err != nil {
		t.Fatalf("BuildConfig: %v", err)
	}
	if cfg.NewRoot != dir {
		t.Errorf("got newroot %q, want %q", cfg.NewRoot, dir)
	}
	if cfg.User != "charlie" {
		t.Errorf("got user %q, want charlie", cfg.User)
	}
	if cfg.HooksPrestart.Len() != 3 {
		t.Errorf("got %d prestart hooks, want 3 (front default, env edits, back default)", cfg.HooksPrestart.Len())
	}
}

func TestBuildConfigHomeRequiresOverlay(t *testing.T) {
	os.Setenv("USER", "charlie")
	os.Setenv("HOME", "/home/charlie")
	dir := t.TempDir()

	cfg, err := BuildConfig(&Flags{UID: -1, GID: -1, Home: true}, dir)
	if err != nil {
		t.Fatalf("BuildConfig: %v", err)
	}
	if cfg.OverlaySize == "" {
		t.Error("expected --home to imply a default overlay size")
	}
}

func TestBuildConfigWriteAndWriteFakeExclusive(t *testing.T) {
	os.Setenv("USER", "charlie")
	dir := t.TempDir()

	_, err := BuildConfig(&Flags{UID: -1, GID: -1, Write: true, WriteFake: "10%"}, dir)
	if err == nil {
		t.Error("expected error when --write and --write-fake are both set")
	}
}

func TestBuildConfigSetEnvLiteral(t *testing.T) {
	os.Setenv("USER", "charlie")
	dir := t.TempDir()

	cfg, err := BuildConfig(&Flags{UID: -1, GID: -1, SetEnv: []string{"FOO=bar"}}, dir)
	if err != nil {
		t.Fatalf("BuildConfig: %v", err)
	}
	if cfg.HooksPrestart.Len() != 3 {
		t.Errorf("got %d hooks, want 3", cfg.HooksPrestart.Len())
	}
}

func TestParseOverlaySizePercentage(t *testing.T) {
	if _, err := parseOverlaySize("12%"); err != nil {
		t.Errorf("parseOverlaySize(12%%): %v", err)
	}
	if _, err := parseOverlaySize("0%"); err == nil {
		t.Error("expected error for 0%")
	}
	if _, err := parseOverlaySize("101%"); err == nil {
		t.Error("expected error for 101%")
	}
}

func TestParseOverlaySizeBytes(t *testing.T) {
	n, err := parseOverlaySize("100M")
	if err != nil {
		t.Fatalf("parseOverlaySize(100M): %v", err)
	}
	if n != 100*1024*1024 {
		t.Errorf("got %d bytes, want %d", n, 100*1024*1024)
	}
}
