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
	"strconv"
	"strings"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"

	"github.com/hpc/charliecloud-sub000/internal/pkg/container"
	"github.com/hpc/charliecloud-sub000/internal/pkg/hook"
)

// BuildConfig translates parsed flags and the positional image reference
// into a container.Config. It performs no system calls itself; Containerize
// is the only place namespaces or mounts are touched.
func BuildConfig(f *Flags, imgRef string) (*container.Config, error) {
	user := os.Getenv("USER")
	if user == "" {
		return nil, errors.New("$USER must be set")
	}

	uid := f.UID
	if uid < 0 {
		uid = os.Getuid()
	}
	gid := f.GID
	if gid < 0 {
		gid = os.Getgid()
	}

	storage, err := StorageDir(f.Storage)
	if err != nil {
		return nil, err
	}

	newroot, typ, err := ClassifyImage(imgRef, f.Mount, storage)
	if err != nil {
		return nil, err
	}

	overlaySize, writable, err := resolveWritability(f)
	if err != nil {
		return nil, err
	}

	hostHome := ""
	if f.Home {
		hostHome = os.Getenv("HOME")
		if hostHome == "" {
			return nil, errors.New("--home requires $HOME to be set")
		}
		if overlaySize == "" {
			overlaySize = "12%"
		}
	}

	binds, err := ParseBindSpecs(f.Binds)
	if err != nil {
		return nil, err
	}

	cfg := &container.Config{
		Binds:        binds,
		ContainerUID: uid,
		ContainerGID: gid,
		EnvExpand:    !f.EnvNoExpand,
		Env:          inheritedEnvironment(),
		HostHome:     hostHome,
		User:         user,
		ImgRef:       imgRef,
		NewRoot:      newroot,
		Type:         typ,
		Join: container.JoinConfig{
			Join:    f.Join,
			JoinCt:  f.JoinCt,
			JoinPID: f.JoinPID,
			JoinTag: f.JoinTag,
		},
		OverlaySize:   overlaySize,
		PrivatePasswd: f.NoPasswd,
		PrivateTmp:    f.PrivateTmp,
		PrivateHome:   !f.Home,
		Writable:      writable,
		ChSSH:         f.ChSSH,
	}

	if f.Join {
		cfg.Join.JoinTag = container.ResolveJoinTag(f.JoinTag)
		ct, err := container.ResolveJoinCt(f.JoinCt)
		if err != nil {
			return nil, err
		}
		cfg.Join.JoinCt = ct
	}

	defaultsData := hook.DefaultsData{
		User:      user,
		HomeBound: hostHome != "",
		RootBound: writable,
	}
	if err := hook.RegisterFront(&cfg.HooksPrestart, defaultsData); err != nil {
		return nil, err
	}
	if err := registerEnvHooks(cfg, f); err != nil {
		return nil, err
	}
	if err := hook.RegisterBack(&cfg.HooksPrestart, defaultsData); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// inheritedEnvironment seeds the container's environment from the
// launcher's own, as the starting point for the default and user-supplied
// edit hooks.
func inheritedEnvironment() hook.Environment {
	env := make(hook.Environment)
	for _, kv := range os.Environ() {
		if name, value, ok := strings.Cut(kv, "="); ok {
			env[name] = value
		}
	}
	return env
}

// resolveWritability turns --write/--write-fake into (overlaySize,
// writable). --write mounts the image itself read-write, with no overlay;
// --write-fake (or a bare size, "N%" or a docker/go-units byte count) adds
// a tmpfs overlay over an otherwise read-only image.
func resolveWritability(f *Flags) (overlaySize string, writable bool, err error) {
	if f.Write && f.WriteFake != "" {
		return "", false, errors.New("--write and --write-fake are mutually exclusive")
	}
	if f.Write {
		return "", true, nil
	}
	if f.WriteFake == "" {
		return "", false, nil
	}
	if _, err := parseOverlaySize(f.WriteFake); err != nil {
		return "", false, err
	}
	return f.WriteFake, false, nil
}

// parseOverlaySize validates a --write-fake size argument: either a
// percentage of the host's available memory ("12%") or a byte count in
// docker/go-units' human notation ("100M", "1g", a bare integer).
func parseOverlaySize(size string) (int64, error) {
	if strings.HasSuffix(size, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(size, "%"))
		if err != nil || pct <= 0 || pct > 100 {
			return 0, errors.Errorf("bad overlay size %q: want 1-100%%", size)
		}
		return int64(pct), nil
	}
	n, err := units.RAMInBytes(size)
	if err != nil {
		return 0, errors.Wrapf(err, "bad overlay size %q", size)
	}
	return n, nil
}

// registerEnvHooks wires --set-env/--set-env0/--unset-env into a single
// hook, run between the default front and back hooks. Edits are applied
// grouped by flag: every --set-env argument in command-line order, then
// every --set-env0 argument, then every --unset-env pattern; assignments
// read from one file are applied in no defined order. Literal NAME=VALUE
// arguments and file arguments (files are
// distinguished by not containing '=' before any '/') are both accepted,
// mirroring --set-env's documented dual syntax.
func registerEnvHooks(cfg *container.Config, f *Flags) error {
	type edit struct {
		set   bool
		name  string
		value string
		glob  string
	}
	var edits []edit

	collectSetEnv := func(args []string, delim byte) error {
		for _, arg := range args {
			if name, value, ok := strings.Cut(arg, "="); ok && !strings.Contains(name, "/") {
				edits = append(edits, edit{set: true, name: name, value: value})
				continue
			}
			kv, err := hook.ReadEnvironmentFile(arg, delim)
			if err != nil {
				return err
			}
			for name, value := range kv {
				edits = append(edits, edit{set: true, name: name, value: value})
			}
		}
		return nil
	}

	if err := collectSetEnv(f.SetEnv, '\n'); err != nil {
		return err
	}
	if err := collectSetEnv(f.SetEnv0, 0); err != nil {
		return err
	}
	for _, pattern := range f.UnsetEnv {
		edits = append(edits, edit{set: false, glob: pattern})
	}

	expand := cfg.EnvExpand
	return cfg.HooksPrestart.Register("user-env-edits", func(ctx *hook.Context, _ interface{}) error {
		for _, e := range edits {
			if e.set {
				ctx.Env.Set(e.name, e.value, expand)
				continue
			}
			if err := ctx.Env.Unset(e.glob); err != nil {
				return err
			}
		}
		return nil
	}, nil, hook.DupFail)
}
