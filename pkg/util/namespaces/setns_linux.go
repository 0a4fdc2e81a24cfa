// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package namespaces

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// nsMap lists the namespace kinds Enter knows how to join. The join
// coordinator only ever uses "user" and "mnt", in that order, but the
// other kinds are kept available for setns-capable callers outside the
// join path.
var nsMap = map[string]int{
	"ipc":  unix.CLONE_NEWIPC,
	"net":  unix.CLONE_NEWNET,
	"mnt":  unix.CLONE_NEWNS,
	"uts":  unix.CLONE_NEWUTS,
	"user": unix.CLONE_NEWUSER,
}

// Enter joins the process pid's namespace of the given kind.
func Enter(pid int, namespace string) error {
	flag, ok := nsMap[namespace]
	if !ok {
		return fmt.Errorf("namespace %s not supported", namespace)
	}

	path := fmt.Sprintf("/proc/%d/ns/%s", pid, namespace)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("can't open namespace path %s: %s", path, err)
	}
	defer f.Close()

	return unix.Setns(int(f.Fd()), flag)
}
