// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package seccomp

import "golang.org/x/sys/unix"

// Offsets into struct seccomp_data, from linux/seccomp.h.
const (
	dataOffNR   = 0  // int nr
	dataOffArch = 4  // __u32 arch
	dataOffArgs = 16 // __u64 args[6], args[1] at +24, args[2] at +32
)

const (
	retAllow = 0x7fff0000 // SECCOMP_RET_ALLOW
	retFake  = 0x00050000 // SECCOMP_RET_ERRNO | 0: "fails" with errno 0, i.e. fakes success
)

// jt/jf in classic BPF are single bytes: a jump can only reach 255
// instructions ahead. ctJumpStart, below, keeps every jump in this program
// well inside that range, but Build asserts it explicitly rather than
// silently truncating if the tables ever grow enough to violate it.
const maxJump = 255

// perArchBlock is the set of instructions checking syscall numbers for one
// architecture: one fake-return entry per fakeSyscalls row that has a
// number on that architecture, plus the mknod/mknodat mode-check tails.
type perArchBlock struct {
	archIdx int
	entries []jumpEntry // ordinary faked syscalls, in fakeSyscalls order
}

type jumpEntry struct {
	nr int32
}

// Build constructs the BPF program faking root for the syscalls in
// fakeSyscalls, across every architecture in archs. The layout is:
//
//  1. load arch
//  2. one BPF_JEQ per architecture, jumping into that architecture's block,
//     falling through to the next comparison on mismatch; falling off the
//     end of this run lands on the ALLOW instruction, so syscall_data.arch
//     values this table doesn't recognize are allowed rather than killed
//  3. per-architecture blocks: load nr, compare against every faked
//     syscall's number on that architecture (skipping nrNon entries) and
//     against the mknod/mknodat numbers, which get their own mode-checking
//     tail instead of an unconditional fake; a number matching none of them
//     jumps to ALLOW
//  4. shared ALLOW and FAKE return instructions
//  5. shared mknod and mknodat mode-check tails, each loading the mode
//     argument, masking it with S_IFMT, and returning FAKE only for
//     S_IFCHR/S_IFBLK (device nodes); anything else (regular files,
//     FIFOs, sockets) falls through to ALLOW so the real syscall runs
//
// Build is deterministic: the same archs/fakeSyscalls/mknodNRs/mknodatNRs
// tables always produce byte-identical output, since it does nothing but
// walk those tables in order.
func Build() []unix.SockFilter {
	blocks := make([]perArchBlock, len(archs))
	for i := range archs {
		b := perArchBlock{archIdx: i}
		for _, fs := range fakeSyscalls {
			if fs.nr[i] != nrNon {
				b.entries = append(b.entries, jumpEntry{nr: fs.nr[i]})
			}
		}
		blocks[i] = b
	}

	// Instruction counts needed to compute forward-jump distances before
	// the instructions themselves exist.
	const (
		ctLoadArch   = 1
		ctLoadNR     = 1
		ctMknodJump  = 1 // jeq against mknodNRs[i], jumps into the mknod tail
		ctMknodatJmp = 1
		ctAllow      = 1
		ctFake       = 1
		// load mode arg, and(S_IFMT), jeq S_IFCHR, jeq S_IFBLK, ret ALLOW, ret FAKE
		ctModeTail = 6
	)

	ctArchJumps := len(archs) // one BPF_JEQ per arch in the dispatch block
	archBlockLen := make([]int, len(archs))
	for i, b := range blocks {
		// ctLoadNR + one jeq per ordinary fake entry + mknod jeq + mknodat jeq
		archBlockLen[i] = ctLoadNR + len(b.entries) + ctMknodJump + ctMknodatJmp
	}

	// Layout, in instruction order:
	//   [0]                       load arch
	//   [1..ctArchJumps]          per-arch dispatch jeq
	//   archBlocks...             one per architecture, in archs order
	//   idxAllow                  RET ALLOW
	//   idxFake                   RET FAKE (errno 0)
	//   idxMknodTail              mknod mode-check tail (6 insns incl. its own rets)
	//   idxMknodatTail            mknodat mode-check tail (6 insns incl. its own rets)
	idxArchBlockStart := ctLoadArch + ctArchJumps
	archBlockStart := make([]int, len(archs))
	off := idxArchBlockStart
	for i := range archs {
		archBlockStart[i] = off
		off += archBlockLen[i]
	}
	idxAllow := off
	idxFake := idxAllow + ctAllow
	idxMknodTail := idxFake + ctFake
	idxMknodatTail := idxMknodTail + ctModeTail

	prog := make([]unix.SockFilter, 0, idxMknodatTail+ctModeTail)

	// 1. load arch
	prog = append(prog, stmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, dataOffArch))

	// 2. arch dispatch: jt jumps into this arch's block, jf falls through
	// to the next comparison; the last arch's jf instead jumps explicitly
	// to ALLOW, since falling through there would land on the first arch
	// block's "load nr" rather than off the end of the dispatch run.
	for i := range archs {
		target := archBlockStart[i]
		here := ctLoadArch + i // instruction index of this jeq
		jt := target - here - 1
		jf := 0
		if i == len(archs)-1 {
			jf = idxAllow - here - 1
		}
		assertJump(jt)
		assertJump(jf)
		prog = append(prog, jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(archs[i]), uint8(jt), uint8(jf)))
	}

	// 3. per-architecture blocks
	for i, b := range blocks {
		here := archBlockStart[i]
		prog = append(prog, stmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, dataOffNR))
		here++

		for _, e := range b.entries {
			jt := idxFake - here - 1
			assertJump(jt)
			prog = append(prog, jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(e.nr), uint8(jt), 0))
			here++
		}

		if nr := mknodNRs[i]; nr != nrNon {
			jt := idxMknodTail - here - 1
			assertJump(jt)
			prog = append(prog, jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), uint8(jt), 0))
		} else {
			prog = append(prog, jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), 0, 0))
		}
		here++

		// The block's last comparison jumps to ALLOW on mismatch, so a
		// syscall this architecture doesn't fake never falls into the next
		// architecture's block.
		jfAllow := idxAllow - here - 1
		assertJump(jfAllow)
		if nr := mknodatNRs[i]; nr != nrNon {
			jt := idxMknodatTail - here - 1
			assertJump(jt)
			prog = append(prog, jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), uint8(jt), uint8(jfAllow)))
		} else {
			prog = append(prog, jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), uint8(jfAllow), uint8(jfAllow)))
		}
	}

	// 4. shared returns
	prog = append(prog, stmt(unix.BPF_RET|unix.BPF_K, retAllow))
	prog = append(prog, stmt(unix.BPF_RET|unix.BPF_K, retFake))

	// 5. mknod/mknodat mode-check tails: ALLOW unless the mode names a
	// device node, in which case FAKE (fake success, don't actually make
	// the node: the container has no access to host device majors/minors
	// anyway).
	prog = append(prog, modeCheckTail(dataOffArgs+1*8)...)
	prog = append(prog, modeCheckTail(dataOffArgs+2*8)...)

	return prog
}

// modeCheckTail loads the mode argument at argOff, masks it with S_IFMT,
// and returns FAKE for S_IFCHR or S_IFBLK, ALLOW (its own return
// instruction, not a fallthrough) for anything else.
func modeCheckTail(argOff uint32) []unix.SockFilter {
	return []unix.SockFilter{
		stmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, argOff),
		{Code: unix.BPF_ALU | unix.BPF_AND | unix.BPF_K, K: sIFMT},
		// after masking, compare to S_IFCHR and S_IFBLK; either matches FAKE
		{Code: unix.BPF_JMP | unix.BPF_JEQ | unix.BPF_K, K: sIFCHR, Jt: 2, Jf: 0},
		{Code: unix.BPF_JMP | unix.BPF_JEQ | unix.BPF_K, K: sIFBLK, Jt: 1, Jf: 0},
		{Code: unix.BPF_RET | unix.BPF_K, K: retAllow},
		{Code: unix.BPF_RET | unix.BPF_K, K: retFake},
	}
}

func stmt(code uint16, k uint32) unix.SockFilter {
	return unix.SockFilter{Code: code, K: k}
}

func jump(code uint16, k uint32, jt, jf uint8) unix.SockFilter {
	return unix.SockFilter{Code: code, K: k, Jt: jt, Jf: jf}
}

func assertJump(n int) {
	if n < 0 || n > maxJump {
		panic("seccomp: jump distance out of range, tables have grown too large for classic BPF")
	}
}
