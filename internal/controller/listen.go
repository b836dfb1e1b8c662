package controller

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/crocme10/area-net/internal/wire"
	"github.com/crocme10/area-net/internal/wire/tcpframe"
)

// acceptLoop accepts inbound TCP connections and delivers them wrapped
// as wire.Framed on out. It generalizes
// remote-procedure-call/plugin.Server.Serve's accepting/serving
// two-channel dance: accepting a connection and delivering it to the
// consumer are split into separate select cases so a blocked
// downstream consumer can never stall ln.Close() on shutdown.
func acceptLoop(ctx context.Context, ln net.Listener, out chan<- wire.Framed, logger *zap.Logger) {
	accepting := make(chan bool, 1)
	serving := make(chan net.Conn, 1)
	failed := make(chan error, 1)
	accepting <- true

	for {
		select {
		case <-ctx.Done():
			return

		case <-accepting:
			go func() {
				conn, err := ln.Accept()
				if err != nil {
					failed <- err
					return
				}
				serving <- conn
			}()

		case conn := <-serving:
			select {
			case out <- tcpframe.New(conn):
				accepting <- true
			case <-ctx.Done():
				_ = conn.Close()
				return
			}

		case err := <-failed:
			select {
			case <-ctx.Done():
				return
			default:
			}
			// Transient accept errors (EMFILE, a temporary network
			// error) must not stall the loop: refill accepting so the
			// next Accept() is tried.
			logger.Warn("accept failed, retrying", zap.Error(err))
			accepting <- true
		}
	}
}
