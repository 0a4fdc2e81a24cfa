// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package seccomp builds and installs a raw BPF seccomp filter that fakes
// success for a fixed list of privileged syscalls (fake root) across six
// CPU architectures, without requiring a kernel-matching build: the
// process's actual seccomp_data.arch is checked at filter-evaluation time,
// not at compile time, so one process can run under qemu-user emulation or
// be exec'd into a binary of a different architecture and still be
// filtered correctly.
package seccomp

// NR_NON and NR_END are sentinels in the syscall-number tables. They must
// stay negative since 0 is itself a valid syscall number on some
// architectures.
const (
	nrNon = -1 // syscall does not exist on this architecture
	nrEnd = -2 // end of table
)

// Audit architecture identifiers, from linux/audit.h. AUDIT_ARCH_AARCH64 and
// AUDIT_ARCH_ARM are given their numeric values directly because older
// kernel headers on some distributions lack the AArch64 constant and
// misdefine the ARM one.
const (
	auditArchAARCH64 = 0xC00000B7
	auditArchARM     = 0x40000028
	auditArchI386    = 0x40000003
	auditArchPPC64LE = 0xC0000015
	auditArchS390X   = 0xC0000016
	auditArchX86_64  = 0xC000003E
)

// archs lists the architectures checked, in the order their jump tables
// appear in the generated program. The last one falls through to ALLOW for
// any architecture this table doesn't recognize.
var archs = []uint32{
	auditArchAARCH64,
	auditArchARM,
	auditArchI386,
	auditArchPPC64LE,
	auditArchS390X,
	auditArchX86_64,
}

// fakeSyscall names one syscall faked on every architecture that has it,
// with its number per architecture in the same order as archs (nrNon where
// the architecture lacks the call).
type fakeSyscall struct {
	name string
	nr   [6]int32
}

// fakeSyscalls is the syscall-number matrix, column order
// (arm64, arm32, x86, ppc64le, s390x, x86-64), transcribed from the launcher
// this spec was distilled from. Column values come from chromium's
// cross-arch syscall tables and strace's ppc64/s390x syscall tables; there
// is no single kernel header that lists all of these per-architecture.
var fakeSyscalls = []fakeSyscall{
	{"capset", [6]int32{91, 185, 185, 184, 185, 126}},
	{"chown", [6]int32{nrNon, 182, 182, 181, 212, 92}},
	{"chown32", [6]int32{nrNon, 212, 212, nrNon, nrNon, nrNon}},
	{"fchown", [6]int32{55, 95, 95, 95, 207, 93}},
	{"fchown32", [6]int32{nrNon, 207, 207, nrNon, nrNon, nrNon}},
	{"fchownat", [6]int32{54, 325, 298, 289, 291, 260}},
	{"lchown", [6]int32{nrNon, 16, 16, 16, 198, 94}},
	{"lchown32", [6]int32{nrNon, 198, 198, nrNon, nrNon, nrNon}},
	{"kexec_load", [6]int32{104, 347, 283, 268, 277, 246}},
	{"setfsgid", [6]int32{152, 139, 139, 139, 216, 123}},
	{"setfsgid32", [6]int32{nrNon, 216, 216, nrNon, nrNon, nrNon}},
	{"setfsuid", [6]int32{151, 138, 138, 138, 215, 122}},
	{"setfsuid32", [6]int32{nrNon, 215, 215, nrNon, nrNon, nrNon}},
	{"setgid", [6]int32{144, 46, 46, 46, 214, 106}},
	{"setgid32", [6]int32{nrNon, 214, 214, nrNon, nrNon, nrNon}},
	{"setgroups", [6]int32{159, 81, 81, 81, 206, 116}},
	{"setgroups32", [6]int32{nrNon, 206, 206, nrNon, nrNon, nrNon}},
	{"setregid", [6]int32{143, 71, 71, 71, 204, 114}},
	{"setregid32", [6]int32{nrNon, 204, 204, nrNon, nrNon, nrNon}},
	{"setresgid", [6]int32{149, 170, 170, 169, 210, 119}},
	{"setresgid32", [6]int32{nrNon, 210, 210, nrNon, nrNon, nrNon}},
	{"setresuid", [6]int32{147, 164, 164, 164, 208, 117}},
	{"setresuid32", [6]int32{nrNon, 208, 208, nrNon, nrNon, nrNon}},
	{"setreuid", [6]int32{145, 70, 70, 70, 203, 113}},
	{"setreuid32", [6]int32{nrNon, 203, 203, nrNon, nrNon, nrNon}},
	{"setuid", [6]int32{146, 23, 23, 23, 213, 105}},
	{"setuid32", [6]int32{nrNon, 213, 213, nrNon, nrNon, nrNon}},
}

// mknodNRs and mknodatNRs give the per-architecture syscall numbers for
// mknod(2) and mknodat(2), which need special handling (only device
// creation is faked; FIFOs and regular files go through to the kernel).
var (
	mknodNRs   = [6]int32{nrNon, 14, 14, 14, 14, 133}
	mknodatNRs = [6]int32{33, 324, 297, 288, 290, 259}
)

// File-type bits from the mode argument, checked against S_IFMT.
const (
	sIFMT  = 0170000
	sIFCHR = 0020000
	sIFBLK = 0060000
)
