// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSysFS builds a sysfs tree with an SMT status file (skipped when smt is
// nil) and one physical_package_id file per entry of packages.
func fakeSysFS(t *testing.T, smt *string, packages ...string) string {
	t.Helper()
	root := t.TempDir()

	if smt != nil {
		smtDir := filepath.Join(root, "devices", "system", "cpu", "smt")
		require.NoError(t, os.MkdirAll(smtDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(smtDir, "active"), []byte(*smt), 0o644))
	}

	for cpu, pkg := range packages {
		writePackageID(t, root, cpu, []byte(pkg))
	}
	return root
}

func writePackageID(t *testing.T, root string, cpu int, content []byte) {
	t.Helper()
	dir := filepath.Join(root, "devices", "system", "cpu", fmt.Sprintf("cpu%d", cpu), "topology")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "physical_package_id"), content, 0o644))
}

func smtOn() *string  { s := "1\n"; return &s }
func smtOff() *string { s := "0\n"; return &s }

func newTestDetector(root string, opts ...OptionFn) *Detector {
	opts = append([]OptionFn{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	return NewDetector(root, opts...)
}

func TestDetect_TwoCPUsOnePackage(t *testing.T) {
	root := fakeSysFS(t, smtOff(), "0\n", "0\n")

	ctx, err := newTestDetector(root).Detect()
	require.NoError(t, err)

	assert.False(t, ctx.SMT())
	assert.Equal(t, 2, ctx.Threads())
	assert.Equal(t, 1, ctx.Packages())
	assert.Equal(t, 2, ctx.Cores())

	cores, ok := ctx.PackageMap().Get(0)
	require.True(t, ok)
	assert.Equal(t, 2, cores)
	assert.Equal(t, "0-1", ctx.CPUs(0).String())
}

func TestDetect_FourCPUsTwoPackagesSMT(t *testing.T) {
	root := fakeSysFS(t, smtOn(), "0", "0", "1", "1")

	ctx, err := newTestDetector(root).Detect()
	require.NoError(t, err)

	assert.True(t, ctx.SMT())
	assert.Equal(t, 4, ctx.Threads())
	assert.Equal(t, 2, ctx.Cores())
	assert.Equal(t, 2, ctx.Packages())
	assert.Equal(t, []int{0, 1}, ctx.PackageMap().IDs())

	for _, pkg := range []int{0, 1} {
		cores, ok := ctx.PackageMap().Get(pkg)
		require.True(t, ok)
		assert.Equal(t, 1, cores, "package %d", pkg)
	}
	assert.Equal(t, "threads=4 cores=2 packages=2 smt=true", ctx.String())
}

func TestDetect_GeneratedTopologies(t *testing.T) {
	tests := []struct {
		name     string
		packages []string
		distinct int
	}{
		{"single cpu", []string{"0"}, 1},
		{"three cpus one package", []string{"0", "0", "0"}, 1},
		{"eight cpus one package", []string{"0", "0", "0", "0", "0", "0", "0", "0"}, 1},
		{"uneven packages", []string{"0", "0", "0", "1", "1"}, 2},
		{"sparse package ids", []string{"0", "0", "4", "4", "9"}, 3},
		{"four packages", []string{"0", "1", "2", "3"}, 4},
	}

	for _, tt := range tests {
		for _, smt := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s smt=%t", tt.name, smt), func(t *testing.T) {
				status := smtOff()
				if smt {
					status = smtOn()
				}
				root := fakeSysFS(t, status, tt.packages...)

				ctx, err := newTestDetector(root).Detect()
				require.NoError(t, err)

				threads := len(tt.packages)
				assert.Equal(t, threads, ctx.Threads())
				assert.Equal(t, tt.distinct, ctx.Packages())
				assert.Equal(t, ctx.Packages(), ctx.PackageMap().Len())
				if smt {
					assert.Equal(t, threads/2, ctx.Cores())
				} else {
					assert.Equal(t, threads, ctx.Cores())
				}
			})
		}
	}
}

func TestDetect_PerPackageCoreCounts(t *testing.T) {
	root := fakeSysFS(t, smtOn(), "0", "0", "0", "0", "0", "1", "1", "1")

	ctx, err := newTestDetector(root).Detect()
	require.NoError(t, err)

	pkg0, _ := ctx.PackageMap().Get(0)
	pkg1, _ := ctx.PackageMap().Get(1)
	assert.Equal(t, 2, pkg0) // 5 threads / 2
	assert.Equal(t, 1, pkg1) // 3 threads / 2
	assert.Equal(t, 4, ctx.Cores())
}

func TestDetect_SMTStatus(t *testing.T) {
	empty := ""
	garbage := "forceoff\n"
	one := "1"

	tests := []struct {
		name    string
		status  *string
		wantSMT bool
		wantErr error
	}{
		{"missing file", nil, false, ErrSMTDetection},
		{"empty file", &empty, false, ErrSMTDetection},
		{"active", smtOn(), true, nil},
		{"active without newline", &one, true, nil},
		{"inactive", smtOff(), false, nil},
		{"other content", &garbage, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := fakeSysFS(t, tt.status, "0", "0")

			ctx, err := newTestDetector(root).Detect()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, ctx)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSMT, ctx.SMT())
		})
	}
}

func TestDetect_PackageIDErrors(t *testing.T) {
	t.Run("non utf8 content", func(t *testing.T) {
		root := fakeSysFS(t, smtOff(), "0")
		writePackageID(t, root, 1, []byte{0xff, 0xfe, 0x00})

		_, err := newTestDetector(root).Detect()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("non numeric content", func(t *testing.T) {
		root := fakeSysFS(t, smtOff(), "0", "zero\n")

		_, err := newTestDetector(root).Detect()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrParse)

		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, 1, parseErr.CPU)
		assert.Equal(t, "zero", parseErr.Content)
	})

	t.Run("negative package id", func(t *testing.T) {
		root := fakeSysFS(t, smtOff(), "-1")

		_, err := newTestDetector(root).Detect()
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("unreadable package id", func(t *testing.T) {
		root := fakeSysFS(t, smtOff(), "0")
		// a directory in place of the file cannot be read
		dir := filepath.Join(root, "devices", "system", "cpu", "cpu1", "topology", "physical_package_id")
		require.NoError(t, os.MkdirAll(dir, 0o755))

		_, err := newTestDetector(root).Detect()
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrParse)
		assert.Contains(t, err.Error(), "failed to read package id of CPU 1")
	})

	t.Run("trailing whitespace is accepted", func(t *testing.T) {
		root := fakeSysFS(t, smtOff(), "0 \n", "\t0\n")

		ctx, err := newTestDetector(root).Detect()
		require.NoError(t, err)
		assert.Equal(t, 2, ctx.Threads())
	})
}

func TestDetect_EnumerationBounds(t *testing.T) {
	t.Run("first missing cpu ends enumeration", func(t *testing.T) {
		root := fakeSysFS(t, smtOff(), "0", "0", "0")
		// cpu4 exists but cpu3 does not
		writePackageID(t, root, 4, []byte("0"))

		ctx, err := newTestDetector(root).Detect()
		require.NoError(t, err)
		assert.Equal(t, 3, ctx.Threads())
	})

	t.Run("max cpus", func(t *testing.T) {
		root := fakeSysFS(t, smtOff(), "0", "0", "0", "0")

		ctx, err := newTestDetector(root, WithMaxCPUs(2)).Detect()
		require.NoError(t, err)
		assert.Equal(t, 2, ctx.Threads())
	})

	t.Run("no cpus", func(t *testing.T) {
		root := fakeSysFS(t, smtOff())

		ctx, err := newTestDetector(root).Detect()
		require.NoError(t, err)
		assert.Equal(t, 0, ctx.Threads())
		assert.Equal(t, 0, ctx.Packages())
	})
}

func TestDetect_PackageCapacity(t *testing.T) {
	root := fakeSysFS(t, smtOff(), "0", "1", "2")

	_, err := newTestDetector(root, WithMaxPackages(2)).Detect()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPackageCapacity)

	ctx, err := newTestDetector(root, WithMaxPackages(3)).Detect()
	require.NoError(t, err)
	assert.Equal(t, 3, ctx.Packages())
	assert.Equal(t, 3, ctx.PackageMap().Cap())
}

func TestDetect_NonContiguousEnumeration(t *testing.T) {
	t.Run("interleaved packages fail", func(t *testing.T) {
		root := fakeSysFS(t, smtOff(), "0", "1", "0", "1")

		_, err := newTestDetector(root).Detect()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNonContiguous)
	})

	t.Run("descending packages fail", func(t *testing.T) {
		root := fakeSysFS(t, smtOff(), "1", "1", "0", "0")

		_, err := newTestDetector(root).Detect()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNonContiguous)
	})

	t.Run("interleaved packages allowed", func(t *testing.T) {
		root := fakeSysFS(t, smtOff(), "0", "1", "0", "1")

		ctx, err := newTestDetector(root, WithAllowInterleaved(true)).Detect()
		require.NoError(t, err)
		assert.Equal(t, 4, ctx.Threads())
		assert.Equal(t, 2, ctx.Packages())

		// the running counter is reset only when a package is first seen,
		// so interleaving over-counts the last package
		pkg0, _ := ctx.PackageMap().Get(0)
		pkg1, _ := ctx.PackageMap().Get(1)
		assert.Equal(t, 2, pkg0)
		assert.Equal(t, 3, pkg1)
	})
}
