// Copyright 2024 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package testkit

import (
	"net"
	"testing"

	"github.com/pingcap/mysqlx/lib/util/waitgroup"
	"github.com/stretchr/testify/require"
)

// TestPipeConn runs a client function and a server function over the two
// ends of an in-memory pipe.
func TestPipeConn(t *testing.T, a, b func(*testing.T, net.Conn), loop int) {
	var wg waitgroup.WaitGroup
	for i := 0; i < loop; i++ {
		cli, srv := net.Pipe()
		if ddl, ok := t.Deadline(); ok {
			require.NoError(t, cli.SetDeadline(ddl))
			require.NoError(t, srv.SetDeadline(ddl))
		}
		wg.Run(func() {
			a(t, cli)
			require.NoError(t, cli.Close())
		})
		wg.Run(func() {
			b(t, srv)
			require.NoError(t, srv.Close())
		})
		wg.Wait()
	}
}
