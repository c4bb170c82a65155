// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnergy_Units(t *testing.T) {
	tests := []struct {
		name   string
		energy Energy
		joules float64
		milli  float64
		micro  float64
	}{
		{"Zero", 0, 0, 0, 0},
		{"One Joule", Joule, 1, 1_000, 1_000_000},
		{"1.5 Joule", 1.5 * Joule, 1.5, 1_500, 1_500_000},
		{"One MilliJoule", MilliJoule, 0.001, 1, 1_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.joules, tt.energy.Joules(), 1e-12)
			assert.InDelta(t, tt.milli, tt.energy.MilliJoules(), 1e-9)
			assert.InDelta(t, tt.micro, tt.energy.MicroJoules(), 1e-6)
		})
	}
}

func TestEnergy_String(t *testing.T) {
	tests := []struct {
		energy Energy
		want   string
	}{
		{0, "0.00J"},
		{Joule, "1.00J"},
		{12.345 * Joule, "12.35J"},
		{-2 * Joule, "-2.00J"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%f", float64(tt.energy)), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.energy.String())
		})
	}
}

func TestPower_Units(t *testing.T) {
	p := 2.5 * Watt
	assert.Equal(t, 2.5, p.Watts())
	assert.InDelta(t, 2_500, p.MilliWatts(), 1e-9)
	assert.InDelta(t, 2_500_000, p.MicroWatts(), 1e-6)
	assert.Equal(t, "2.50W", p.String())
}

func TestPowerOver(t *testing.T) {
	tests := []struct {
		name     string
		delta    Energy
		interval time.Duration
		want     Power
	}{
		{"100ms multiplies by ten", 5 * Joule, 100 * time.Millisecond, 50 * Watt},
		{"one second", 5 * Joule, time.Second, 5 * Watt},
		{"two seconds", 5 * Joule, 2 * time.Second, 2.5 * Watt},
		{"negative delta is kept", -1 * Joule, 100 * time.Millisecond, -10 * Watt},
		{"zero interval", 5 * Joule, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want.Watts(), PowerOver(tt.delta, tt.interval).Watts(), 1e-12)
		})
	}
}
