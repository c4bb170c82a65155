// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package topotest builds fake sysfs trees for tests that need a detected
// topology.Context.
package topotest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sustainable-computing-io/amd-rapl/internal/topology"
)

// WriteSysFS creates a sysfs tree under a temp dir with the SMT status and one
// physical_package_id file per entry of packages, CPU i holding packages[i].
// It returns the root of the tree.
func WriteSysFS(t testing.TB, smt bool, packages ...int) string {
	t.Helper()
	root := t.TempDir()
	cpuDir := filepath.Join(root, "devices", "system", "cpu")

	require.NoError(t, os.MkdirAll(filepath.Join(cpuDir, "smt"), 0o755))
	status := "0\n"
	if smt {
		status = "1\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(cpuDir, "smt", "active"), []byte(status), 0o644))

	for cpu, pkg := range packages {
		dir := filepath.Join(cpuDir, fmt.Sprintf("cpu%d", cpu), "topology")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "physical_package_id"), fmt.Appendf(nil, "%d\n", pkg), 0o644))
	}
	return root
}

// Detect runs the real detector on a tree written by WriteSysFS
func Detect(t testing.TB, smt bool, packages ...int) *topology.Context {
	t.Helper()
	root := WriteSysFS(t, smt, packages...)

	ctx, err := topology.NewDetector(root, topology.WithLogger(slog.New(slog.DiscardHandler))).Detect()
	require.NoError(t, err)
	return ctx
}
