// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
)

var (
	_ error = &MError{}
)

// MError carries a classifying error together with a list of collected causes.
type MError struct {
	cerr error
	uerr []error
}

func (e *MError) Format(st fmt.State, verb rune) {
	switch verb {
	case 'v', 's':
		flag := "%"
		if st.Flag('+') {
			flag += "+"
		}
		fmt.Fprintf(st, flag+string(verb)+":\n", e.cerr)
		for _, ue := range e.uerr {
			fmt.Fprintf(st, "\t"+flag+string(verb), ue)
		}
	}
}

func (e *MError) Error() string {
	return fmt.Sprintf("%s", e)
}

func (e *MError) Is(s error) bool {
	if errors.Is(e.cerr, s) {
		return true
	}
	for _, ue := range e.uerr {
		if errors.Is(ue, s) {
			return true
		}
	}
	return false
}

func (e *MError) Cause() []error {
	return e.uerr
}

// Collect gathers multiple errors under one classifier. Nil entries are
// skipped; with no non-nil causes the result is nil.
func Collect(cerr error, uerr ...error) error {
	n := 0
	for _, e := range uerr {
		if e != nil {
			uerr[n] = e
			n++
		}
	}
	uerr = uerr[:n]
	if len(uerr) == 0 {
		return nil
	}
	return &MError{
		uerr: uerr,
		cerr: cerr,
	}
}
