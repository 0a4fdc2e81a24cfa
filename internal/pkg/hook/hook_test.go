// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package hook

import "testing"

func noop(ctx *Context, data interface{}) error { return nil }

func TestRegisterOrderPreserved(t *testing.T) {
	var r Registry
	var order []string
	record := func(name string) Func {
		return func(ctx *Context, data interface{}) error {
			order = append(order, name)
			return nil
		}
	}
	r.Register("a", record("a"), nil, DupFail)
	r.Register("b", record("b"), nil, DupFail)
	r.Register("c", record("c"), nil, DupFail)

	if err := r.Run(&Context{Env: Environment{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestRunClearsRegistry(t *testing.T) {
	var r Registry
	r.Register("a", noop, nil, DupFail)
	if err := r.Run(&Context{Env: Environment{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("registry not cleared after Run, Len() = %d", r.Len())
	}
}

func TestDupFail(t *testing.T) {
	var r Registry
	if err := r.Register("a", noop, nil, DupFail); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register("a", noop, nil, DupFail); err == nil {
		t.Fatalf("expected error registering duplicate name under DupFail")
	}
}

func TestDupSkip(t *testing.T) {
	var r Registry
	calls := 0
	first := func(ctx *Context, data interface{}) error { calls = 1; return nil }
	second := func(ctx *Context, data interface{}) error { calls = 2; return nil }

	r.Register("a", first, nil, DupFail)
	if err := r.Register("a", second, nil, DupSkip); err != nil {
		t.Fatalf("Register with DupSkip: %v", err)
	}
	if err := r.Run(&Context{Env: Environment{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("DupSkip should have kept the original hook, calls = %d", calls)
	}
}

func TestDupReplace(t *testing.T) {
	var r Registry
	calls := 0
	first := func(ctx *Context, data interface{}) error { calls = 1; return nil }
	second := func(ctx *Context, data interface{}) error { calls = 2; return nil }

	r.Register("a", first, nil, DupFail)
	if err := r.Register("a", second, nil, DupReplace); err != nil {
		t.Fatalf("Register with DupReplace: %v", err)
	}
	if err := r.Run(&Context{Env: Environment{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Fatalf("DupReplace should have installed the new hook, calls = %d", calls)
	}
}

func TestDefaultsSetsHomeWhenBound(t *testing.T) {
	var r Registry
	if err := RegisterDefaults(&r, DefaultsData{User: "charlie", HomeBound: true}); err != nil {
		t.Fatalf("RegisterDefaults: %v", err)
	}
	ctx := &Context{Env: Environment{}}
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Env["HOME"] != "/home/charlie" {
		t.Fatalf("HOME = %q, want /home/charlie", ctx.Env["HOME"])
	}
	if ctx.Env["PATH"] != "/bin" {
		t.Fatalf("PATH = %q, want /bin", ctx.Env["PATH"])
	}
	if ctx.Env["CH_RUNNING"] != "1" {
		t.Fatalf("CH_RUNNING = %q, want 1", ctx.Env["CH_RUNNING"])
	}
}

func TestDefaultsUnsetsTmpdir(t *testing.T) {
	var r Registry
	RegisterDefaults(&r, DefaultsData{User: "charlie"})
	ctx := &Context{Env: Environment{"TMPDIR": "/weird"}}
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := ctx.Env["TMPDIR"]; ok {
		t.Fatalf("TMPDIR should be unset by the default front hook")
	}
}
