// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package proto

import (
	"github.com/pingcap/mysqlx/lib/util/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Statement namespaces.
const (
	NamespaceSQL    = "sql"
	NamespaceMysqlx = "mysqlx"
)

// StmtExecute is the client message executing one statement. Args are
// pre-encoded Any messages, see AnyString and friends.
type StmtExecute struct {
	Namespace string
	Stmt      []byte
	Args      [][]byte
}

func AppendStmtExecute(b []byte, m *StmtExecute) []byte {
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Stmt)
	for _, arg := range m.Args {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, arg)
	}
	if m.Namespace != "" && m.Namespace != NamespaceSQL {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, m.Namespace)
	}
	return b
}

func DecodeStmtExecute(b []byte) (*StmtExecute, error) {
	m := &StmtExecute{Namespace: NamespaceSQL}
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.WithStack(ErrMalformedMessage)
		}
		b = b[n:]
		switch num {
		case 1:
			if m.Stmt, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
		case 2:
			var v []byte
			if v, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
			m.Args = append(m.Args, v)
		case 3:
			var v []byte
			if v, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
			m.Namespace = string(v)
		default:
			if b, err = skipField(num, typ, b); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// The statement variant carried by Prepare (OneOfMessage.type).
const prepareStmtTypeStmt uint64 = 5

// Prepare asks the server to prepare a statement under a client-chosen id.
type Prepare struct {
	StmtID uint32
	Stmt   StmtExecute
}

func AppendPrepare(b []byte, m *Prepare) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.StmtID))
	oneOf := protowire.AppendTag(nil, 1, protowire.VarintType)
	oneOf = protowire.AppendVarint(oneOf, prepareStmtTypeStmt)
	oneOf = protowire.AppendTag(oneOf, 6, protowire.BytesType)
	oneOf = protowire.AppendBytes(oneOf, AppendStmtExecute(nil, &m.Stmt))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, oneOf)
	return b
}

func DecodePrepare(b []byte) (*Prepare, error) {
	m := &Prepare{}
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
			m.StmtID = uint32(v)
		case 2:
			var oneOf []byte
			if oneOf, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
			for len(oneOf) > 0 {
				onum, otyp, on := protowire.ConsumeTag(oneOf)
				if on < 0 {
					return nil, errors.WithStack(ErrMalformedMessage)
				}
				oneOf = oneOf[on:]
				if onum == 6 && otyp == protowire.BytesType {
					var v []byte
					if v, oneOf, err = consumeBytes(oneOf); err != nil {
						return nil, err
					}
					stmt, err := DecodeStmtExecute(v)
					if err != nil {
						return nil, err
					}
					m.Stmt = *stmt
					continue
				}
				if oneOf, err = skipField(onum, otyp, oneOf); err != nil {
					return nil, err
				}
			}
		default:
			if b, err = skipField(num, typ, b); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// PrepareExecute runs a previously prepared statement.
type PrepareExecute struct {
	StmtID uint32
	Args   [][]byte
}

func AppendPrepareExecute(b []byte, m *PrepareExecute) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.StmtID))
	for _, arg := range m.Args {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, arg)
	}
	return b
}

func DecodePrepareExecute(b []byte) (*PrepareExecute, error) {
	m := &PrepareExecute{}
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
			m.StmtID = uint32(v)
		case 2:
			var v []byte
			if v, b, err = consumeBytes(b); err != nil {
				return nil, err
			}
			m.Args = append(m.Args, v)
		default:
			if b, err = skipField(num, typ, b); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// PrepareDeallocate frees a prepared statement on the server.
type PrepareDeallocate struct {
	StmtID uint32
}

func AppendPrepareDeallocate(b []byte, m *PrepareDeallocate) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.StmtID))
	return b
}

func DecodePrepareDeallocate(b []byte) (*PrepareDeallocate, error) {
	m := &PrepareDeallocate{}
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
			m.StmtID = uint32(v)
		default:
			if b, err = skipField(num, typ, b); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
