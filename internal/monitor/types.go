// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"github.com/sustainable-computing-io/amd-rapl/internal/device"
)

type (
	Energy = device.Energy
	Power  = device.Power
)

const (
	Joule = device.Joule
	Watt  = device.Watt
)
