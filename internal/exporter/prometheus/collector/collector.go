// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package collector holds the Prometheus collectors of the amd-rapl textfile exporter
package collector

const (
	namespace = "amd_rapl"

	buildSubsystem = "build"
	nodeSubsystem  = "node"
)
