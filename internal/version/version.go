// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package version

import "runtime"

// set at build time through -ldflags -X
var (
	version   string
	buildTime string
	gitBranch string
	gitCommit string
)

type VersionInfo struct {
	Version   string
	BuildTime string
	GitBranch string
	GitCommit string

	GoVersion string
	GoOS      string
	GoArch    string
}

// Info returns the version information
func Info() VersionInfo {
	return VersionInfo{
		Version:   orUnknown(version),
		BuildTime: orUnknown(buildTime),
		GitBranch: orUnknown(gitBranch),
		GitCommit: orUnknown(gitCommit),

		GoVersion: runtime.Version(),
		GoOS:      runtime.GOOS,
		GoArch:    runtime.GOARCH,
	}
}

// LogAttrs returns the version information as slog key value pairs
func (v VersionInfo) LogAttrs() []any {
	return []any{
		"version", v.Version,
		"build-time", v.BuildTime,
		"git-branch", v.GitBranch,
		"git-commit", v.GitCommit,
		"go-version", v.GoVersion,
		"go-os", v.GoOS,
		"go-arch", v.GoArch,
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
