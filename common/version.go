// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
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
	"strings"
)

var (
	// commitHash contains the current Git revision; set via ldflags at build time
	commitHash string

	// buildDate contains the date of the current build
	buildDate string
)

type Version struct {
	// Increment this for backwards incompatible changes
	Major int

	// Increment this for feature releases
	Minor int

	// Increment this for bug releases
	Patch int

	// Suffix used in the version string; blank for release versions
	Suffix string
}

func (v Version) String() string {
	metadata := ""
	if v.Suffix != "" {
		metadata = "-" + v.Suffix
	}
	if commitHash != "" {
		metadata = fmt.Sprintf("%s+%s", metadata, strings.ToUpper(commitHash))
	}
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, metadata)
}

// BuildVersionString returns a full version report including the Go runtime
// and build date, suitable for the version subcommand
func BuildVersionString() string {
	program := "gfapi"
	version := "v" + CurrentVersion.String()

	osArch := runtime.GOOS + "/" + runtime.GOARCH

	date := buildDate
	if date == "" {
		date = "unknown"
	}

	return fmt.Sprintf("%s %s %s BuildDate: %s", program, version, osArch, date)
}

// GetDependencyList returns the modules compiled into the running binary
func GetDependencyList() []string {
	var deps []string

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return deps
	}

	for _, dep := range bi.Deps {
		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, dep.Version))
	}

	return deps
}
