// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
)

// set with -ldflags by `mage build`
var (
	commitHash string
	buildDate  string
)

// Version is a SemVer 2.0.0 build version. Suffix is empty for releases.
type Version struct {
	Major  int
	Minor  int
	Patch  int
	Suffix string
}

// String renders the version; pre-release builds carry the short commit as
// build metadata when it is known
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Suffix == "" {
		return s
	}
	s += "-" + v.Suffix
	if commit, _ := buildStamp(); commit != "" {
		s += "+" + strings.ToLower(shortCommit(commit))
	}
	return s
}

// buildStamp returns the commit and build date. Values injected by mage win;
// otherwise the vcs settings recorded by the go tool are used.
func buildStamp() (commit, date string) {
	commit, date = commitHash, buildDate
	if commit != "" && date != "" {
		return
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			if commit == "" {
				commit = setting.Value
			}
		case "vcs.time":
			if date == "" {
				date = setting.Value
			}
		}
	}
	return
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

// Dependencies lists the modules the binary was built with as path="version",
// sorted by path
func Dependencies() []string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	deps := make([]string, 0, len(bi.Deps))
	for _, dep := range bi.Deps {
		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, dep.Version))
	}
	sort.Strings(deps)
	return deps
}

// BuildVersionString is the output of `pv-fund version`
func BuildVersionString() string {
	commit, date := buildStamp()
	if date == "" {
		date = "unknown"
	}
	if commit == "" {
		commit = "unknown"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "pv-fund v%s %s/%s\n\n", CurrentVersion, runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Build Date: %s\nCommit: %s\nBuilt with: %s\n", date, commit, runtime.Version())
	if deps := Dependencies(); len(deps) > 0 {
		sb.WriteString("\nDependencies:\n\n")
		sb.WriteString(strings.Join(deps, "\n"))
	}
	return sb.String()
}
