// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package hook

import (
	"bufio"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// Environment is the set of variables that will be exported to the user
// command, keyed by name. It supports both literal assignment and
// shell-style "$VAR" expansion against itself at set time, matching
// --set-env's expand/no-expand distinction.
type Environment map[string]string

// Set assigns name=value, expanding "$OTHER" and "${OTHER}" references
// against the environment's current contents when expand is true; a name
// absent from the environment is looked up in the launcher's own process
// environment instead.
func (e Environment) Set(name, value string, expand bool) {
	if expand {
		value = os.Expand(value, func(ref string) string {
			if v, ok := e[ref]; ok {
				return v
			}
			return os.Getenv(ref)
		})
	}
	e[name] = value
}

// Slice renders the environment as "NAME=VALUE" entries suitable for
// exec(3)'s envp, in an unspecified but stable-per-call order.
func (e Environment) Slice() []string {
	out := make([]string, 0, len(e))
	for name, value := range e {
		out = append(out, name+"="+value)
	}
	return out
}

// Unset removes every variable matching a shell glob pattern.
func (e Environment) Unset(pattern string) error {
	for name := range e {
		matched, err := globMatch(pattern, name)
		if err != nil {
			return err
		}
		if matched {
			delete(e, name)
		}
	}
	return nil
}

// globMatch reports whether name matches a shell glob pattern. Environment
// variable names never contain '/', so path.Match's separator-sensitivity
// does not matter here.
func globMatch(pattern, name string) (bool, error) {
	ok, err := path.Match(pattern, name)
	if err != nil {
		return false, errors.Wrapf(err, "bad glob pattern %q", pattern)
	}
	return ok, nil
}

// ReadEnvironmentFile parses a --set-env file: one NAME=VALUE assignment per record,
// records separated by delim (newline, or NUL for --set-env0).
func ReadEnvironmentFile(path string, delim byte) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening env file %s", path)
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	scanner.Split(splitOnByte(delim))
	for scanner.Scan() {
		rec := scanner.Text()
		if rec == "" {
			continue
		}
		name, value, ok := strings.Cut(rec, "=")
		if !ok {
			return nil, errors.Errorf("%s: malformed entry %q, want NAME=VALUE", path, rec)
		}
		out[name] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading env file %s", path)
	}
	return out, nil
}

func splitOnByte(delim byte) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := indexByte(data, delim); i >= 0 {
			return i + 1, data[:i], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

func indexByte(data []byte, b byte) int {
	for i, c := range data {
		if c == b {
			return i
		}
	}
	return -1
}
