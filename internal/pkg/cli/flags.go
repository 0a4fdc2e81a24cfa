// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package cli

import "github.com/spf13/pflag"

// Flags holds every recognized option's parsed value. ch-run is a single
// command, so unlike a multi-verb CLI there is no per-subcommand flag
// registry: one struct, bound directly to one cobra.Command's FlagSet.
type Flags struct {
	Binds []string

	Cd string

	UID int
	GID int

	Home bool

	Join    bool
	JoinCt  int
	JoinTag string
	JoinPID int

	Mount string

	NoPasswd bool

	PrivateTmp bool

	SetEnv      []string
	SetEnv0     []string
	UnsetEnv    []string
	EnvNoExpand bool

	Seccomp bool

	Storage string

	Write     bool
	WriteFake string

	Feature string

	ChSSH bool

	Unsafe bool

	Verbose int
	Quiet   int

	Color bool

	Version bool
}

// Register binds every flag in f to fs, matching the option table: long
// names and short forms where the original tool defines one.
func (f *Flags) Register(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&f.Binds, "bind", "b", nil, "bind SRC[:DST[:ro]] into the container; repeatable")
	fs.StringVarP(&f.Cd, "cd", "c", "", "initial working directory inside the container")

	fs.IntVarP(&f.UID, "uid", "u", -1, "container UID (default: current UID)")
	fs.IntVarP(&f.GID, "gid", "g", -1, "container GID (default: current GID)")

	fs.BoolVarP(&f.Home, "home", "H", false, "bind $HOME at /home/$USER (implies a write-fake overlay)")

	fs.BoolVarP(&f.Join, "join", "j", false, "join a peer group sharing one container instance")
	fs.IntVar(&f.JoinCt, "join-ct", 0, "number of peers in the join group")
	fs.StringVar(&f.JoinTag, "join-tag", "", "join group tag (default: from environment, else parent PID)")
	fs.IntVar(&f.JoinPID, "join-pid", 0, "join the namespaces of a specific running peer, bypassing election")

	fs.StringVarP(&f.Mount, "mount", "m", "", "mount point for a SquashFS image")

	fs.BoolVar(&f.NoPasswd, "no-passwd", false, "skip synthetic /etc/passwd and /etc/group")
	fs.BoolVar(&f.PrivateTmp, "private-tmp", false, "use a container tmpfs /tmp instead of binding the host's")

	fs.StringArrayVar(&f.SetEnv, "set-env", nil, "set environment variables from NAME=VALUE or a newline-delimited file; repeatable")
	fs.StringArrayVar(&f.SetEnv0, "set-env0", nil, "like --set-env but reads a NUL-delimited file")
	fs.StringArrayVar(&f.UnsetEnv, "unset-env", nil, "unset environment variables matching a glob; repeatable")
	fs.BoolVar(&f.EnvNoExpand, "env-no-expand", false, "don't expand $VAR references in --set-env values")

	fs.BoolVar(&f.Seccomp, "seccomp", false, "install the fake-success seccomp filter")

	fs.StringVar(&f.Storage, "storage", "", "named-image storage directory (default: $CH_IMAGE_STORAGE, else /var/tmp/$USER.ch)")

	fs.BoolVarP(&f.Write, "write", "w", false, "mount the image read-write")
	fs.StringVar(&f.WriteFake, "write-fake", "", "mount read-only with a writable tmpfs overlay of the given size (bytes or N%)")

	fs.StringVar(&f.Feature, "feature", "", "exit 0 if FEAT is compiled in, 1 otherwise, without running a command")

	fs.BoolVar(&f.ChSSH, "ch-ssh", false, "bind ch-ssh into the container at /usr/bin/ch-ssh")

	fs.BoolVar(&f.Unsafe, "unsafe", false, "disable default safety checks (for testing only)")

	fs.CountVarP(&f.Verbose, "verbose", "v", "increase logging verbosity; repeatable")
	fs.CountVarP(&f.Quiet, "quiet", "q", "decrease logging verbosity; repeatable")
	fs.BoolVar(&f.Color, "color", false, "force colored log output")

	fs.BoolVar(&f.Version, "version", false, "print version and exit")
}
