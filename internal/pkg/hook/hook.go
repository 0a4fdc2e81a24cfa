// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package hook implements the container constructor's ordered pre-start
// callback list. Hooks run once, strictly in insertion order, immediately
// before the pivot into the new root; a hook may edit the environment, but
// must never touch namespaces. Context.Binds is not read back by the
// container constructor, so entries a hook appends there are not mounted.
package hook

import "github.com/pkg/errors"

// DupPolicy governs what Register does when a hook with the same name is
// already present.
type DupPolicy int

const (
	// DupReplace discards the existing hook with this name and installs
	// the new one in its place, keeping the new hook's position in the
	// running order (its own, not the old entry's).
	DupReplace DupPolicy = iota
	// DupSkip leaves the existing hook alone and silently drops the new
	// registration.
	DupSkip
	// DupFail aborts registration with an error.
	DupFail
)

// Context is what a running hook is allowed to see and mutate.
type Context struct {
	Env   Environment
	Binds []string // bind-mount specs; not read back by the constructor
}

// Func is a hook body. data is the opaque payload supplied at
// registration, letting one Func implementation serve many hook names
// (e.g. one env-file-reading hook per --set-env file argument).
type Func func(ctx *Context, data interface{}) error

type entry struct {
	name string
	fn   Func
	data interface{}
}

// Registry is an ordered, named list of pre-start hooks. The zero value
// is ready to use.
type Registry struct {
	entries []entry
}

// Register appends fn under name, honoring policy if name is already
// registered.
func (r *Registry) Register(name string, fn Func, data interface{}, policy DupPolicy) error {
	if i := r.indexOf(name); i >= 0 {
		switch policy {
		case DupSkip:
			return nil
		case DupFail:
			return errors.Errorf("hook %q already registered", name)
		case DupReplace:
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
		}
	}
	r.entries = append(r.entries, entry{name: name, fn: fn, data: data})
	return nil
}

func (r *Registry) indexOf(name string) int {
	for i, e := range r.entries {
		if e.name == name {
			return i
		}
	}
	return -1
}

// Run executes every registered hook in insertion order against ctx, then
// clears the registry: hooks run exactly once per container.
func (r *Registry) Run(ctx *Context) error {
	for _, e := range r.entries {
		if err := e.fn(ctx, e.data); err != nil {
			return errors.Wrapf(err, "hook %q", e.name)
		}
	}
	r.entries = nil
	return nil
}

// Len reports how many hooks are currently queued.
func (r *Registry) Len() int {
	return len(r.entries)
}
