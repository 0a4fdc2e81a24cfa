// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package container implements the container constructor: the outer and
// inner user+mount namespace setup, the filesystem tree assembly, and the
// pivot_root dance that together turn an image reference into a running
// container.
package container

import (
	"github.com/pkg/errors"

	"github.com/hpc/charliecloud-sub000/internal/pkg/bind"
	"github.com/hpc/charliecloud-sub000/internal/pkg/hook"
)

// ImageType classifies how img_ref names the filesystem tree to run.
type ImageType int

const (
	// Directory is an already-unpacked image tree.
	Directory ImageType = iota
	// Squash is a SquashFS archive, mounted via the FUSE driver.
	Squash
	// Name is a reference resolved against a local image store.
	Name
	// None means no image: run directly in the host filesystem
	// namespace (namespaces only, no new root).
	None
)

func (t ImageType) String() string {
	switch t {
	case Directory:
		return "directory"
	case Squash:
		return "squash"
	case Name:
		return "name"
	case None:
		return "none"
	default:
		return "unknown"
	}
}

// JoinConfig carries the --join family of flags.
type JoinConfig struct {
	Join    bool
	JoinCt  int
	JoinPID int
	JoinTag string
}

// Config is the single mutable record carried through container
// construction, built by the CLI layer and consumed by Containerize.
type Config struct {
	Binds []bind.Request

	ContainerUID int
	ContainerGID int

	Env           hook.Environment // initial environment, mutated by HooksPrestart.Run
	EnvExpand     bool
	HooksPrestart hook.Registry

	HostHome string // host path to bind at /home/$USER, "" if unset
	User     string // container-side username, used for /home/$USER

	ImgRef  string
	NewRoot string
	Type    ImageType

	Join JoinConfig

	OverlaySize string // e.g. "12%"; "" means no writable overlay

	PrivatePasswd bool
	PrivateTmp    bool
	PrivateHome   bool

	Writable bool

	Ldconfigs []string

	ChSSH bool
}

// Validate checks the invariants the constructor depends on.
func (c *Config) Validate() error {
	if c.NewRoot == "" && c.Type != None {
		return errors.New("config: newroot is required unless image type is none")
	}
	if c.HostHome != "" && c.OverlaySize == "" {
		return errors.New("config: host_home requires overlay_size (home injection needs a writable overlay)")
	}
	if c.ContainerUID < 0 || c.ContainerGID < 0 {
		return errors.New("config: container_uid/gid must be non-negative")
	}
	if c.Join.Join && c.Join.JoinPID != 0 {
		return errors.New("config: join and join_pid are mutually exclusive")
	}
	return nil
}
