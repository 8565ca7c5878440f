// Package dblock serializes Postgres-backed tests across packages. go test
// runs packages in parallel and they all truncate the same tables.
package dblock

import (
	"net"
	"time"
)

const lockAddr = "127.0.0.1:45433"

// Acquire blocks until no other test binary holds the lock and returns the
// release func.
func Acquire() func() {
	for {
		ln, err := net.Listen("tcp", lockAddr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
