// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package join lets N peer processes launched by an external workload
// manager share one container: the first to arrive builds it, the rest
// attach to its user and mount namespaces. There is no portable cgo-free
// binding for POSIX named semaphores or shm_open in this module's
// dependency graph, so the named semaphore is an flock(2)'d file under
// os.TempDir and the named shared-memory segment is a MAP_SHARED mmap of
// an O_CREAT|O_EXCL file of the same name: both get the durable, kernel-
// visible, cross-process identity the originals have, just reached
// through file descriptors instead of the POSIX IPC namespace.
package join

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/hpc/charliecloud-sub000/pkg/sylog"
	"github.com/hpc/charliecloud-sub000/pkg/util/fs/lock"
	"github.com/hpc/charliecloud-sub000/pkg/util/namespaces"
)

const (
	lockTimeout  = 30 * time.Second
	lockPollEvery = 20 * time.Millisecond
	recordSize   = 16 // winner_pid int64 + proc_left_ct int64, little-endian
)

// Coordinator holds one peer's handles into the shared join state for one
// peer-group tag. Its zero value is not usable; construct with Begin.
type Coordinator struct {
	tag      string
	lockPath string
	shmPath  string
	lockFd   int
	region   []byte
	Winner   bool
	WinnerPID int
}

// Begin elects a winner among all peers sharing joinTag and arranges for
// every peer to eventually learn the winner's PID. The winner returns with
// the lock still held (mirroring the original design's semaphore, which
// the winner keeps across its entire container-construction phase) and is
// the only caller that should proceed with full container setup; losers
// return with the lock released and should instead attach to the winner's
// namespaces.
func Begin(joinCt int, joinTag string) (*Coordinator, error) {
	c := &Coordinator{
		tag:      joinTag,
		lockPath: filepath.Join(os.TempDir(), "ch-run_sem-"+joinTag),
		shmPath:  filepath.Join(os.TempDir(), "ch-run_shm-"+joinTag),
	}

	if err := ensureExists(c.lockPath); err != nil {
		return nil, errors.Wrapf(err, "creating join lock %s", c.lockPath)
	}

	lockFd, err := lockTimed(c.lockPath, lockTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "join: waiting for lock")
	}
	c.lockFd = lockFd

	shmFd, err := unix.Open(c.shmPath, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0600)
	switch {
	case err == nil:
		c.Winner = true
		if ferr := unix.Ftruncate(shmFd, recordSize); ferr != nil {
			unix.Close(shmFd)
			return nil, errors.Wrap(ferr, "join: ftruncate shared region")
		}
	case errors.Is(err, unix.EEXIST):
		c.Winner = false
		shmFd, err = unix.Open(c.shmPath, unix.O_RDWR, 0)
		if err != nil {
			return nil, errors.Wrap(err, "join: opening existing shared region")
		}
	default:
		return nil, errors.Wrap(err, "join: creating shared region")
	}

	region, err := unix.Mmap(shmFd, 0, recordSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	unix.Close(shmFd)
	if err != nil {
		return nil, errors.Wrap(err, "join: mmap shared region")
	}
	c.region = region

	if c.Winner {
		sylog.Infof("join: I won")
		c.setWinnerPID(os.Getpid())
		c.setProcLeftCt(int64(joinCt))
		c.WinnerPID = os.Getpid()
		// Lock stays held: the winner is still serialized until End.
	} else {
		c.WinnerPID = int(c.winnerPID())
		sylog.Infof("join: winner pid: %d", c.WinnerPID)
		if err := lock.Release(c.lockFd); err != nil {
			return nil, errors.Wrap(err, "join: releasing lock")
		}
		// Losers run in parallel; the winner will be done setting up by
		// the time they reach JoinNamespaces.
	}

	return c, nil
}

// End decrements the peer-left counter and, if this peer is the last to
// leave, unlinks both IPC objects. Every peer, winner or loser, must call
// End exactly once.
func (c *Coordinator) End() error {
	if !c.Winner {
		fd, err := lockTimed(c.lockPath, lockTimeout)
		if err != nil {
			return errors.Wrap(err, "join: re-acquiring lock at end")
		}
		c.lockFd = fd
	}

	left := c.procLeftCt() - 1
	c.setProcLeftCt(left)
	sylog.Infof("join: %d peers left excluding myself", left)

	if left <= 0 {
		if left != 0 {
			return errors.Errorf("join: expected 0 peers left but found %d", left)
		}
		sylog.Infof("join: cleaning up IPC resources")
		if err := os.Remove(c.lockPath); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "join: unlinking lock")
		}
		if err := os.Remove(c.shmPath); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "join: unlinking shared region")
		}
	}

	if err := lock.Release(c.lockFd); err != nil {
		return errors.Wrap(err, "join: releasing lock at end")
	}
	if err := unix.Munmap(c.region); err != nil {
		return errors.Wrap(err, "join: munmap")
	}

	sylog.Infof("join: done")
	return nil
}

// JoinNamespaces attaches the calling process to pid's user and mount
// namespaces, in that order (user must be joined first: it governs
// whether the subsequent mnt-namespace join is permitted). setns(2) can
// transiently fail with EINVAL under concurrent namespace churn; that is
// retried up to 5 times with a 1s sleep before giving up.
func JoinNamespaces(pid int) error {
	sylog.Infof("joining namespaces of pid %d", pid)
	for _, ns := range []string{"user", "mnt"} {
		if err := joinOneRetrying(pid, ns); err != nil {
			return err
		}
	}
	return nil
}

// GenerateTag produces a fresh peer-group tag for the rare case where none
// of the command line, the workload-manager environment variables, and the
// parent PID is usable (a reparented process whose PPID is 1 has lost its
// original launcher and can't rely on that PID being stable or even still
// a process).
func GenerateTag() string {
	return uuid.NewString()
}

func joinOneRetrying(pid int, ns string) error {
	const maxAttempts = 5
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = namespaces.Enter(pid, ns)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EINVAL) {
			return errors.Wrapf(err, "can't join %s namespace of pid %d", ns, pid)
		}
		sylog.Warningf("join: setns(%s) returned EINVAL, attempt %d/%d, retrying in 1s", ns, attempt, maxAttempts)
		time.Sleep(1 * time.Second)
	}
	return errors.Wrapf(err, "can't join %s namespace of pid %d after %d attempts", ns, pid, maxAttempts)
}

func (c *Coordinator) winnerPID() int64 {
	return int64(binary.LittleEndian.Uint64(c.region[0:8]))
}

func (c *Coordinator) setWinnerPID(pid int) {
	binary.LittleEndian.PutUint64(c.region[0:8], uint64(pid))
}

func (c *Coordinator) procLeftCt() int64 {
	return int64(binary.LittleEndian.Uint64(c.region[8:16]))
}

func (c *Coordinator) setProcLeftCt(v int64) {
	binary.LittleEndian.PutUint64(c.region[8:16], uint64(v))
}

// lockTimed blocks until an exclusive lock on path is acquired or timeout
// elapses, returning the locked fd. flock(2) has no native timeout, so
// this polls lock.TryExclusive; the poll interval is short enough that
// legitimate waits (bounded by a peer's full container setup) are not
// perceptibly delayed.
func lockTimed(path string, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		fd, acquired, err := lock.TryExclusive(path)
		if err != nil {
			return 0, err
		}
		if acquired {
			return fd, nil
		}
		if time.Now().After(deadline) {
			return 0, errors.New("timeout waiting for join lock")
		}
		time.Sleep(lockPollEvery)
	}
}

// ensureExists creates path if it doesn't already exist; lock.TryExclusive
// opens read-only and so needs the file to be there first.
func ensureExists(path string) error {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0600)
	if err != nil {
		return err
	}
	return unix.Close(fd)
}
