// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"errors"
	"fmt"
)

var (
	// ErrSMTDetection is returned when the SMT status file is missing, unreadable or empty
	ErrSMTDetection = errors.New("smt check error")

	// ErrInvalidEncoding is returned when a package id file is not valid UTF-8
	ErrInvalidEncoding = errors.New("invalid utf-8 content")

	// ErrParse is matched by every ParseError
	ErrParse = errors.New("int parse error")

	// ErrPackageCapacity is returned when more distinct packages are found than supported
	ErrPackageCapacity = errors.New("too many packages")

	// ErrNonContiguous is returned when CPUs of a package are not enumerated contiguously
	ErrNonContiguous = errors.New("cpus of a package are not enumerated contiguously")
)

// ParseError describes a package id file whose content is not an unsigned integer
type ParseError struct {
	CPU     int
	Path    string
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid package id %q for CPU %d in %s: %v", e.Content, e.CPU, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is makes every ParseError match ErrParse
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
