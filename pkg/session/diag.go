// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"

	"github.com/pingcap/mysqlx/pkg/proto"
)

// Severity of a diagnostic entry.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ServerError is an error or warning reported by the server.
type ServerError struct {
	Code     uint32
	SQLState string
	Msg      string
	Fatal    bool
}

func (e *ServerError) Error() string {
	if e.SQLState == "" {
		return fmt.Sprintf("server error %d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("server error %d (%s): %s", e.Code, e.SQLState, e.Msg)
}

func severityOfWarning(level uint32) Severity {
	switch level {
	case proto.WarningLevelNote:
		return SeverityInfo
	case proto.WarningLevelError:
		return SeverityError
	}
	return SeverityWarning
}

// DiagEntry is one accumulated diagnostic.
type DiagEntry struct {
	Severity Severity
	Err      error
}

// Diagnostics accumulates errors, warnings and infos of a session or of a
// single statement. Entries survive until Clear.
type Diagnostics struct {
	entries []DiagEntry
}

func (d *Diagnostics) add(sev Severity, err error) {
	d.entries = append(d.entries, DiagEntry{Severity: sev, Err: err})
}

// Count returns the number of entries at exactly the given severity.
func (d *Diagnostics) Count(sev Severity) int {
	n := 0
	for _, e := range d.entries {
		if e.Severity == sev {
			n++
		}
	}
	return n
}

// Entries returns the errors recorded at the given severity, oldest first.
func (d *Diagnostics) Entries(sev Severity) []error {
	var out []error
	for _, e := range d.entries {
		if e.Severity == sev {
			out = append(out, e.Err)
		}
	}
	return out
}

// FirstError returns the oldest error-severity entry, or nil.
func (d *Diagnostics) FirstError() error {
	for _, e := range d.entries {
		if e.Severity == SeverityError {
			return e.Err
		}
	}
	return nil
}

func (d *Diagnostics) Clear() {
	d.entries = nil
}
