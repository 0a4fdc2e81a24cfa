// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package container

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/hpc/charliecloud-sub000/internal/pkg/bind"
	"github.com/hpc/charliecloud-sub000/internal/pkg/hook"
	"github.com/hpc/charliecloud-sub000/internal/pkg/join"
	"github.com/hpc/charliecloud-sub000/internal/pkg/passwd"
	"github.com/hpc/charliecloud-sub000/internal/pkg/squashfuse"
	"github.com/hpc/charliecloud-sub000/pkg/sylog"
)

// Containerize runs the full container constructor algorithm against cfg,
// leaving the calling OS thread pivoted into the new root (or attached to
// a peer's namespaces) on return. It must run on a goroutine locked to
// its OS thread: unshare(2)/setns(2) are per-thread, and Go's scheduler
// may otherwise migrate the calling goroutine mid-sequence.
//
// The returned Driver, if non-nil, serves the container's filesystem.
// Stopping it is left to the caller; ch-run's run() defers Stop, which
// therefore runs only when run() returns without exec'ing the user
// command. After a successful exec the helper is not stopped or unmounted
// by the launcher.
func Containerize(cfg *Config) (*squashfuse.Driver, error) {
	if cfg.Join.JoinPID != 0 {
		return nil, join.JoinNamespaces(cfg.Join.JoinPID)
	}

	var coord *join.Coordinator
	if cfg.Join.Join {
		var err error
		coord, err = join.Begin(cfg.Join.JoinCt, cfg.Join.JoinTag)
		if err != nil {
			return nil, errors.Wrap(err, "join: begin")
		}
	}

	var driver *squashfuse.Driver
	isWinner := coord == nil || coord.Winner
	if isWinner {
		if err := setupOuterNamespace(); err != nil {
			return nil, err
		}

		if cfg.Type == Squash {
			d, err := squashfuse.New()
			if err != nil {
				return nil, errors.Wrap(err, "squashfuse")
			}
			// cfg.NewRoot is the --mount directory; without one, a fresh
			// directory under the host temporary directory is used.
			mountpoint := cfg.NewRoot
			if mountpoint == "" {
				mp, err := os.MkdirTemp(os.TempDir(), "ch-run_squash.*")
				if err != nil {
					return nil, errors.Wrap(err, "creating squashfuse mount point")
				}
				if err := os.Chmod(mp, 0o777); err != nil {
					return nil, errors.Wrap(err, "chmod squashfuse mount point")
				}
				mountpoint = mp
			}
			if err := d.Mount(squashfuse.MountParams{Source: cfg.ImgRef, Target: mountpoint}); err != nil {
				return nil, errors.Wrap(err, "mounting squashfs image")
			}
			cfg.NewRoot = mountpoint
			driver = d
		}

		if err := setupInnerNamespace(cfg); err != nil {
			return driver, err
		}

		if err := enterUDSS(cfg, driver); err != nil {
			return driver, err
		}
	} else {
		if err := join.JoinNamespaces(coord.WinnerPID); err != nil {
			return nil, err
		}
	}

	if coord != nil {
		if err := coord.End(); err != nil {
			return driver, errors.Wrap(err, "join: end")
		}
	}

	return driver, nil
}

// setupOuterNamespace unshares user+mount once, mapping the current
// effective UID/GID to 0-in-namespace. This is what lets an unprivileged
// process run setuid-free helpers (the FUSE mount driver) before the
// second, container-identity namespace is created.
func setupOuterNamespace() error {
	sylog.Debugf("setting up outer namespaces")
	if err := unix.Unshare(unix.CLONE_NEWNS | unix.CLONE_NEWUSER); err != nil {
		return errors.Wrap(err, "can't init outer user+mount namespaces")
	}
	return mapIdentity(0, 0)
}

// setupInnerNamespace unshares user+mount a second time, mapping 0 (the
// outer-namespace root-equivalent identity just established) to the
// requested container identity.
func setupInnerNamespace(cfg *Config) error {
	sylog.Debugf("setting up inner namespaces")
	if err := unix.Unshare(unix.CLONE_NEWNS | unix.CLONE_NEWUSER); err != nil {
		return errors.Wrap(err, "can't init inner user+mount namespaces")
	}
	return mapIdentity(cfg.ContainerUID, cfg.ContainerGID)
}

// enterUDSS builds the filesystem tree, runs hooks, and pivots into it.
// After this returns, the caller is running inside the container.
func enterUDSS(cfg *Config, driver *squashfuse.Driver) error {
	newroot := cfg.NewRoot
	parent := filepath.Dir(newroot)

	tracker := bind.NewTracker(newroot, "")

	// The new root's own bind is not recorded in the tracker: every later
	// Mkdirs call creates paths under it.
	if err := unix.Mount(newroot, newroot, "", unix.MS_REC|unix.MS_BIND, ""); err != nil {
		return errors.Wrap(err, "claiming new root")
	}
	if err := unix.Mount(newroot, newroot, "", unix.MS_PRIVATE, ""); err != nil {
		return errors.Wrap(err, "can't make new root private")
	}
	if err := unix.Mount(parent, parent, "", unix.MS_PRIVATE, ""); err != nil {
		return errors.Wrap(err, "can't make new root's parent private")
	}

	if cfg.OverlaySize != "" {
		if err := tmpfsMount(filepath.Join(newroot, "tmp", ".ch-overlay"), "size="+cfg.OverlaySize); err != nil {
			return errors.Wrap(err, "mounting writable overlay scratch")
		}
		tracker.SetScratch(filepath.Join(newroot, "tmp", ".ch-overlay"))
	}

	for _, req := range bind.DefaultRequests() {
		req.ReadOnly = true
		if err := tracker.Do(req); err != nil {
			return err
		}
	}

	if !cfg.PrivatePasswd {
		if err := setupPasswd(cfg, tracker); err != nil {
			return errors.Wrap(err, "setting up /etc/passwd and /etc/group")
		}
	}

	if cfg.PrivateTmp {
		if err := tmpfsMount(filepath.Join(newroot, "tmp"), ""); err != nil {
			return errors.Wrap(err, "mounting private /tmp")
		}
	} else {
		if err := tracker.Do(bind.Request{Source: "/tmp", Dest: "/tmp", Level: bind.Required}); err != nil {
			return err
		}
	}

	if !cfg.PrivateHome {
		if err := tmpfsMount(filepath.Join(newroot, "home"), "size=4m"); err != nil {
			return errors.Wrap(err, "mounting /home tmpfs")
		}
		if cfg.HostHome == "" {
			return errors.New("cannot find home directory: is $HOME set?")
		}
		newhome := "/home/" + cfg.User
		if err := tracker.Mkdirs(newhome); err != nil {
			return err
		}
		if err := tracker.Do(bind.Request{Source: cfg.HostHome, Dest: newhome, Level: bind.Required}); err != nil {
			return err
		}
	}

	if cfg.ChSSH {
		if err := bindChSSH(cfg, tracker); err != nil {
			return errors.Wrap(err, "--ch-ssh")
		}
	}

	for _, req := range cfg.Binds {
		if err := tracker.Do(req); err != nil {
			return err
		}
	}

	if len(cfg.Ldconfigs) > 0 {
		// Device-injection manifests can name directories the image's
		// dynamic linker should pick up, but parsing those manifests is
		// out of scope here; callers that populate Ldconfigs by other
		// means get a record of the intent, not an actual ldconfig(8)
		// invocation.
		sylog.Debugf("ldconfig directories (not processed): %v", cfg.Ldconfigs)
	}

	if cfg.Env == nil {
		cfg.Env = hook.Environment{}
	}
	ctx := &hook.Context{Env: cfg.Env}
	if err := cfg.HooksPrestart.Run(ctx); err != nil {
		return errors.Wrap(err, "running pre-start hooks")
	}
	cfg.Env = ctx.Env

	newroot, err := pivot(newroot)
	if err != nil {
		return err
	}
	cfg.NewRoot = newroot

	if err := remountReadOnly(newroot, cfg.Writable); err != nil {
		return err
	}

	return nil
}

func tmpfsMount(dest, opts string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrapf(err, "creating tmpfs mount point %s", dest)
	}
	if err := unix.Mount("none", dest, "tmpfs", 0, opts); err != nil {
		return errors.Wrapf(err, "mounting tmpfs at %s", dest)
	}
	return nil
}

func setupPasswd(cfg *Config, tracker *bind.Tracker) error {
	passwdContent := passwd.Build(uint32(cfg.ContainerUID), "/home/"+cfg.User)
	groupContent := passwd.BuildGroup(uint32(cfg.ContainerGID))

	passwdPath, err := passwd.WriteTemp("", "ch-run_passwd.*", passwdContent)
	if err != nil {
		return err
	}
	defer os.Remove(passwdPath)

	groupPath, err := passwd.WriteTemp("", "ch-run_group.*", groupContent)
	if err != nil {
		return err
	}
	defer os.Remove(groupPath)

	if err := tracker.Do(bind.Request{Source: passwdPath, Dest: "/etc/passwd", Level: bind.Required}); err != nil {
		return err
	}
	return tracker.Do(bind.Request{Source: groupPath, Dest: "/etc/group", Level: bind.Required})
}

func bindChSSH(cfg *Config, tracker *bind.Tracker) error {
	exe, err := os.Readlink("/proc/self/exe")
	if err != nil {
		return errors.Wrap(err, "reading /proc/self/exe")
	}
	chssh := filepath.Join(filepath.Dir(exe), "ch-ssh")
	return tracker.Do(bind.Request{Source: chssh, Dest: "/usr/bin/ch-ssh", Level: bind.Required})
}

// ResolveJoinTag resolves the join-tag fallback chain: command line, a
// fixed set of workload-manager environment variables, the caller's parent
// PID, and finally a generated UUID when the parent PID is 1.
func ResolveJoinTag(cliTag string) string {
	if cliTag != "" {
		return cliTag
	}
	for _, ev := range []string{"SLURM_STEP_ID", "SLURM_JOB_ID", "PMI_JOBID"} {
		if v := os.Getenv(ev); v != "" {
			return v
		}
	}
	if ppid := os.Getppid(); ppid != 1 {
		return strconv.Itoa(ppid)
	}
	return join.GenerateTag()
}

// joinCtEnvVars are read, in order, when --join-ct is not given on the
// command line.
var joinCtEnvVars = []string{"SLURM_NPROCS", "SLURM_NTASKS", "OMPI_COMM_WORLD_LOCAL_SIZE"}

// ResolveJoinCt resolves the join-peer-count fallback chain: command
// line, then a fixed set of workload-manager environment variables.
func ResolveJoinCt(cliCt int) (int, error) {
	if cliCt > 0 {
		return cliCt, nil
	}
	for _, ev := range joinCtEnvVars {
		v := os.Getenv(ev)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			continue
		}
		return n, nil
	}
	return 0, errors.New("join: no valid peer group size found")
}
