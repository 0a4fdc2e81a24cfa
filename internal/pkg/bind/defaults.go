// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package bind

// DefaultRequests returns the bind table applied to every container
// before user-supplied binds: required kernel-facing filesystems, then a
// fixed set of host-integration files and HPC interconnect/scheduler
// paths applied best-effort.
func DefaultRequests() []Request {
	reqs := []Request{
		{Source: "/dev", Dest: "/dev", Level: Required},
		{Source: "/proc", Dest: "/proc", Level: Required},
		{Source: "/sys", Dest: "/sys", Level: Required},

		{Source: "/etc/hosts", Dest: "/etc/hosts", Level: Optional},
		{Source: "/etc/machine-id", Dest: "/etc/machine-id", Level: Optional},
		{Source: "/etc/resolv.conf", Dest: "/etc/resolv.conf", Level: Optional},
	}
	reqs = append(reqs, hpcRequests()...)
	return reqs
}

// hpcRequests are interconnect libraries and workload-manager spool
// directories commonly needed for unmodified MPI/Slurm binaries to run
// correctly inside the container; every one is optional since most
// systems have only a subset installed.
func hpcRequests() []Request {
	paths := []string{
		"/var/run/munge",
		"/var/spool/slurm",
		"/opt/slurm",
		"/etc/slurm",
		"/opt/pmix",
		"/etc/libibverbs.d",
		"/usr/lib64/libibverbs",
	}
	reqs := make([]Request, 0, len(paths))
	for _, p := range paths {
		reqs = append(reqs, Request{Source: p, Dest: p, Level: Optional})
	}
	return reqs
}
