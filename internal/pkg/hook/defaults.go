// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package hook

const (
	hookNameEnvFirst = "env-first"
	hookNameEnvLast  = "env-last"

	// runningMarker is exported into every container so scripts running
	// inside can detect they're in one without parsing /proc.
	runningMarker = "1"
)

// DefaultsData carries what the bracketing default hooks need to compute
// HOME, since that depends on whether the user's home directory ended up
// bound into the container.
type DefaultsData struct {
	User       string // container-side username
	HomeBound  bool   // true if the user's real home is bind-mounted in
	RootBound  bool   // true if / itself is writable (rare: --no-home styles)
}

// RegisterDefaults installs the two hooks that bracket every user-supplied
// environment edit: one at the front establishing HOME/PATH/TMPDIR, one at
// the end stamping the running-marker variable. Both use DupFail, since a
// caller registering either name twice is a programming error, not a
// legitimate override. Callers that need user edits to run between the two
// (the common case) should use RegisterFront and RegisterBack instead, with
// the user hooks registered in between.
func RegisterDefaults(r *Registry, data DefaultsData) error {
	if err := RegisterFront(r, data); err != nil {
		return err
	}
	return RegisterBack(r, data)
}

// RegisterFront installs only the front default hook (HOME/PATH/TMPDIR).
func RegisterFront(r *Registry, data DefaultsData) error {
	return r.Register(hookNameEnvFirst, envFirstHook, data, DupFail)
}

// RegisterBack installs only the back default hook (CH_RUNNING marker).
func RegisterBack(r *Registry, data DefaultsData) error {
	return r.Register(hookNameEnvLast, envLastHook, data, DupFail)
}

func envFirstHook(ctx *Context, d interface{}) error {
	data := d.(DefaultsData)

	home := "/"
	switch {
	case data.HomeBound:
		home = "/home/" + data.User
	case data.RootBound:
		home = "/root"
	}
	ctx.Env.Set("HOME", home, false)

	path := ctx.Env["PATH"]
	if path == "" {
		path = "/bin"
	} else {
		path = path + ":/bin"
	}
	ctx.Env.Set("PATH", path, false)

	delete(ctx.Env, "TMPDIR")
	return nil
}

func envLastHook(ctx *Context, _ interface{}) error {
	ctx.Env.Set("CH_RUNNING", runningMarker, false)
	return nil
}
