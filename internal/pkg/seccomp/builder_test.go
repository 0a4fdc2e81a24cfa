// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package seccomp

import (
	"reflect"
	"testing"
)

func TestBuildDeterministic(t *testing.T) {
	a := Build()
	b := Build()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Build is not deterministic: got two different programs from identical tables")
	}
	if len(a) == 0 {
		t.Fatalf("Build returned an empty program")
	}
}

func TestBuildJumpsInRange(t *testing.T) {
	prog := Build()
	for i, ins := range prog {
		if ins.Jt > maxJump || ins.Jf > maxJump {
			t.Fatalf("instruction %d: jump out of classic BPF range (jt=%d jf=%d)", i, ins.Jt, ins.Jf)
		}
	}
}

func TestBuildEndsInReturns(t *testing.T) {
	prog := Build()
	last := prog[len(prog)-1]
	if last.Code&0x07 != 0x06 { // BPF_RET class
		t.Fatalf("program does not end in a RET instruction: last code %#x", last.Code)
	}
}

func TestBuildCoversEveryArch(t *testing.T) {
	prog := Build()
	if len(archs) == 0 {
		t.Fatalf("archs table is empty")
	}
	// every arch needs at least a load-nr instruction in its block
	if len(prog) < len(archs) {
		t.Fatalf("program too short for %d architectures: %d instructions", len(archs), len(prog))
	}
}
