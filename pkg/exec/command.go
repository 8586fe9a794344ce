// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package exec

import (
	"github.com/pingcap/mysqlx/pkg/proto"
)

// pipeline replays a fixed sequence of client frames.
type pipeline struct {
	frames []proto.Frame
}

func (p *pipeline) Next() (proto.Frame, bool, error) {
	if len(p.frames) == 0 {
		return proto.Frame{}, false, nil
	}
	f := p.frames[0]
	p.frames = p.frames[1:]
	return f, true, nil
}

func executeCmd(ns, stmt string, args [][]byte) proto.Command {
	return &pipeline{frames: []proto.Frame{{
		Type: proto.ClientStmtExecute,
		Payload: proto.AppendStmtExecute(nil, &proto.StmtExecute{
			Namespace: ns,
			Stmt:      []byte(stmt),
			Args:      args,
		}),
	}}}
}

// prepareExecuteCmd pipelines Prepare with PrepareExecute, so preparing
// costs no extra round trip.
func prepareExecuteCmd(id uint32, ns, stmt string, args [][]byte) proto.Command {
	return &pipeline{frames: []proto.Frame{
		{
			Type: proto.ClientPrepare,
			Payload: proto.AppendPrepare(nil, &proto.Prepare{
				StmtID: id,
				Stmt: proto.StmtExecute{
					Namespace: ns,
					Stmt:      []byte(stmt),
				},
			}),
		},
		{
			Type: proto.ClientPrepareExecute,
			Payload: proto.AppendPrepareExecute(nil, &proto.PrepareExecute{
				StmtID: id,
				Args:   args,
			}),
		},
	}}
}

func executePreparedCmd(id uint32, args [][]byte) proto.Command {
	return &pipeline{frames: []proto.Frame{{
		Type: proto.ClientPrepareExecute,
		Payload: proto.AppendPrepareExecute(nil, &proto.PrepareExecute{
			StmtID: id,
			Args:   args,
		}),
	}}}
}

func deallocateCmd(id uint32) proto.Command {
	return &pipeline{frames: []proto.Frame{{
		Type:    proto.ClientPrepareDeallocate,
		Payload: proto.AppendPrepareDeallocate(nil, &proto.PrepareDeallocate{StmtID: id}),
	}}}
}
