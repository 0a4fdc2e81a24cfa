// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package passwd synthesizes the /etc/passwd and /etc/group content bound
// over the container's copies, from scratch rather than by editing a
// template: bind-mounting the host's real files fails against directory
// services, so only the mappings the container actually needs are written.
package passwd

import (
	"fmt"
	"os"

	pwdparse "github.com/astromechza/etcpwdparse"
	"github.com/pkg/errors"

	"github.com/hpc/charliecloud-sub000/pkg/sylog"
)

const (
	rootUID    = 0
	nobodyUID  = 65534
	nogroupGID = 65534
)

// Entry is one synthesized /etc/passwd line's fields.
type Entry struct {
	Name  string
	UID   uint32
	GID   uint32
	Gecos string
	Home  string
	Shell string
}

func (e Entry) String() string {
	return fmt.Sprintf("%s:x:%d:%d:%s:%s:%s", e.Name, e.UID, e.GID, e.Gecos, e.Home, e.Shell)
}

// GroupEntry is one synthesized /etc/group line's fields.
type GroupEntry struct {
	Name string
	GID  uint32
}

func (g GroupEntry) String() string {
	return fmt.Sprintf("%s:x:%d:", g.Name, g.GID)
}

// hostLookup resolves uid against the host's /etc/passwd, returning the
// matching entry's name/gecos/shell if one exists.
func hostLookup(uid uint32) (name, gecos, shell string, found bool) {
	cache, err := pwdparse.NewLoadedEtcPasswdCache()
	if err != nil {
		sylog.Debugf("could not load host /etc/passwd: %s", err)
		return "", "", "", false
	}
	entry, ok := cache.LookupUid(int(uid))
	if !ok {
		return "", "", "", false
	}
	return entry.Username(), entry.Comment(), entry.Shell(), true
}

// Build synthesizes /etc/passwd content for the container. containerUID is
// the UID the launched process will run as inside the container; home is
// the container-side $HOME path recorded for that entry.
func Build(containerUID uint32, home string) []byte {
	var entries []Entry

	if containerUID != rootUID {
		entries = append(entries, Entry{"root", rootUID, rootUID, "root", "/root", "/bin/sh"})
	}
	if containerUID != nobodyUID {
		entries = append(entries, Entry{"nobody", nobodyUID, nogroupGID, "nobody", "/", "/bin/false"})
	}

	name, gecos, shell, found := hostLookup(containerUID)
	if !found {
		name = "charlie"
		gecos = "Charlie"
		shell = "/bin/sh"
	}
	if home == "" {
		home = "/home/" + name
	}
	entries = append(entries, Entry{name, containerUID, containerUID, gecos, home, shell})

	out := make([]byte, 0, 128*len(entries))
	for _, e := range entries {
		out = append(out, []byte(e.String()+"\n")...)
	}
	return out
}

// BuildGroup synthesizes /etc/group content mirroring Build's passwd rules:
// a root group unless the container GID is 0, a nogroup unless it's 65534,
// and a group for the container's own GID.
func BuildGroup(containerGID uint32) []byte {
	var entries []GroupEntry

	if containerGID != rootUID {
		entries = append(entries, GroupEntry{"root", rootUID})
	}
	if containerGID != nogroupGID {
		entries = append(entries, GroupEntry{"nogroup", nogroupGID})
	}

	entries = append(entries, GroupEntry{"charliegroup", containerGID})

	out := make([]byte, 0, 64*len(entries))
	for _, e := range entries {
		out = append(out, []byte(e.String()+"\n")...)
	}
	return out
}

// WriteTemp writes content to a new temporary file under dir and returns
// its path. The caller binds the file over the in-container /etc/passwd (or
// /etc/group) and then unlinks this copy; the bind mount keeps it alive for
// the lifetime of the mount namespace.
func WriteTemp(dir, pattern string, content []byte) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", errors.Wrap(err, "creating synthetic passwd/group file")
	}
	path := f.Name()
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.Wrap(err, "writing synthetic passwd/group file")
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.Wrap(err, "closing synthetic passwd/group file")
	}
	return path, nil
}
