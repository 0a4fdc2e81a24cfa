// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/hpc/charliecloud-sub000/internal/pkg/cli"
)

func main() {
	// Containerize's unshare(2)/setns(2) sequence is per-thread; the
	// calling goroutine must never migrate mid-sequence.
	runtime.LockOSThread()

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "ch-run: %v\n", r)
			os.Exit(255)
		}
	}()
	cli.Execute()
}
