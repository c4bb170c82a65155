// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	tests := []struct {
		name    string
		ver     string
		time    string
		branch  string
		commit  string
		wantVer string
	}{
		{name: "unset values", wantVer: "unknown"},
		{
			name: "typical values", ver: "v0.1.0", time: "2025-04-01T12:00:00Z",
			branch: "main", commit: "abcdef123456", wantVer: "v0.1.0",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			version, buildTime, gitBranch, gitCommit = tc.ver, tc.time, tc.branch, tc.commit
			t.Cleanup(func() { version, buildTime, gitBranch, gitCommit = "", "", "", "" })

			info := Info()
			assert.Equal(t, tc.wantVer, info.Version)
			assert.Equal(t, runtime.Version(), info.GoVersion)
			assert.Equal(t, runtime.GOOS, info.GoOS)
			assert.Equal(t, runtime.GOARCH, info.GoArch)
			if tc.commit == "" {
				assert.Equal(t, "unknown", info.GitCommit)
			} else {
				assert.Equal(t, tc.commit, info.GitCommit)
			}
		})
	}
}

func TestLogAttrs(t *testing.T) {
	attrs := Info().LogAttrs()
	assert.Len(t, attrs, 14)
	assert.Equal(t, "version", attrs[0])
	assert.Equal(t, runtime.Version(), attrs[9])
}
