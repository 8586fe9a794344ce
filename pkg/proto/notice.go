// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package proto

import (
	"github.com/pingcap/mysqlx/lib/util/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Notice frame types.
const (
	NoticeWarning                uint32 = 1
	NoticeSessionVariableChanged uint32 = 2
	NoticeSessionStateChanged    uint32 = 3
)

// Notice scopes.
const (
	NoticeScopeGlobal uint32 = 1
	NoticeScopeLocal  uint32 = 2
)

// Notice is the generic notice envelope. The payload encoding depends on
// the notice type.
type Notice struct {
	Type    uint32
	Scope   uint32
	Payload []byte
}

// Global reports whether the notice concerns the session rather than the
// statement currently processed. Scope defaults to global when absent.
func (m *Notice) Global() bool {
	return m.Scope != NoticeScopeLocal
}

func AppendNotice(b []byte, m *Notice) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))
	if m.Scope != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Scope))
	}
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Payload)
	return b
}

func DecodeNotice(b []byte) (*Notice, error) {
	m := &Notice{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.WithStack(ErrMalformedMessage)
		}
		b = b[n:]
		switch num {
		case 1:
			var v uint64
			if v, b, err = consumeVarint(b); err != nil {
				return nil, err
			}
			m.Type = uint32(v)
		case 2:
			var v uint64
			if v, b, err = consumeVarint(b); err != nil {
				return nil, err
			}
			m.Scope = uint32(v)
		case 3:
			if m.Payload, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
		default:
			if b, err = skipField(num, typ, b); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Warning levels.
const (
	WarningLevelNote    uint32 = 1
	WarningLevelWarning uint32 = 2
	WarningLevelError   uint32 = 3
)

// Warning is the payload of a NoticeWarning notice.
type Warning struct {
	Level uint32
	Code  uint32
	Msg   string
}

func AppendWarning(b []byte, m *Warning) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Level))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Code))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendString(b, m.Msg)
	return b
}

func DecodeWarning(b []byte) (*Warning, error) {
	m := &Warning{Level: WarningLevelWarning}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.WithStack(ErrMalformedMessage)
		}
		b = b[n:]
		switch num {
		case 1, 2:
			var v uint64
			if v, b, err = consumeVarint(b); err != nil {
				return nil, err
			}
			if num == 1 {
				m.Level = uint32(v)
			} else {
				m.Code = uint32(v)
			}
		case 3:
			var v []byte
			if v, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
			m.Msg = string(v)
		default:
			if b, err = skipField(num, typ, b); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Session state parameters.
const (
	StateCurrentSchema        uint32 = 1
	StateAccountExpired       uint32 = 2
	StateGeneratedInsertID    uint32 = 3
	StateRowsAffected         uint32 = 4
	StateRowsFound            uint32 = 5
	StateRowsMatched          uint32 = 6
	StateTrxCommitted         uint32 = 7
	StateTrxRolledBack        uint32 = 9
	StateProducedMessage      uint32 = 10
	StateClientIDAssigned     uint32 = 11
	StateGeneratedDocumentIDs uint32 = 12
)

// SessionStateChange is the payload of a NoticeSessionStateChanged notice.
type SessionStateChange struct {
	Param  uint32
	Values []Scalar
}

func AppendSessionStateChange(b []byte, m *SessionStateChange) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Param))
	for i := range m.Values {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, AppendScalar(nil, &m.Values[i]))
	}
	return b
}

func DecodeSessionStateChange(b []byte) (*SessionStateChange, error) {
	m := &SessionStateChange{}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.WithStack(ErrMalformedMessage)
		}
		b = b[n:]
		switch num {
		case 1:
			var v uint64
			if v, b, err = consumeVarint(b); err != nil {
				return nil, err
			}
			m.Param = uint32(v)
		case 2:
			var v []byte
			if v, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
			s, err := DecodeScalar(v)
			if err != nil {
				return nil, err
			}
			m.Values = append(m.Values, *s)
		default:
			if b, err = skipField(num, typ, b); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
