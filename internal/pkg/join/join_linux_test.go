// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package join

import (
	"fmt"
	"testing"
)

// TestTwoPeersOneWinner simulates two peers sharing a tag within a single
// test process: the first Begin call must win, the second must lose and
// learn the winner's PID, and both End calls must leave no IPC objects
// behind. The winner holds the lock from Begin until End, so the winner's
// End runs before the second Begin, the same order in which a real loser
// gets the lock.
func TestTwoPeersOneWinner(t *testing.T) {
	tag := fmt.Sprintf("jointest-%s", t.Name())

	winner, err := Begin(2, tag)
	if err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	if !winner.Winner {
		t.Fatalf("first peer did not win election")
	}
	if err := winner.End(); err != nil {
		t.Fatalf("winner End: %v", err)
	}

	loser, err := Begin(2, tag)
	if err != nil {
		t.Fatalf("second Begin: %v", err)
	}
	if loser.Winner {
		t.Fatalf("second peer incorrectly won election")
	}
	if loser.WinnerPID != winner.WinnerPID {
		t.Fatalf("loser learned PID %d, want %d", loser.WinnerPID, winner.WinnerPID)
	}

	if err := loser.End(); err != nil {
		t.Fatalf("loser End: %v", err)
	}

	fresh, err := Begin(1, tag)
	if err != nil {
		t.Fatalf("Begin after full cleanup should succeed fresh: %v", err)
	}
	if err := fresh.End(); err != nil {
		t.Fatalf("fresh End: %v", err)
	}
}
