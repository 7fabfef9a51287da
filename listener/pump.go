//
// SPDX-License-Identifier: GPL-3.0-or-later
//

package listener

import (
	"context"
	"net"

	"github.com/bassosimone/conduit"
	"github.com/bassosimone/conduit/channel"
)

// connWriter adapts a [net.Conn] to [channel.Writer].
type connWriter struct {
	conn net.Conn
}

func (w *connWriter) Write(ctx context.Context, data []byte) error {
	_, err := w.conn.Write(data)
	return err
}

func (w *connWriter) Close() error {
	return w.conn.Close()
}

// NewPumpHandler returns a [Handler] that registers conn's write half with
// sink under (stream, meta), then reads into a bufSize buffer in a loop,
// depositing one [conduit.SourceReplyData] reply per successful read into
// src and a [conduit.SourceReplyEndStream] reply on EOF or error, at which
// point it unregisters the writer and closes conn.
//
// This is the shared reader+writer task pair the raw-socket connectors
// (TCP, TLS, Unix) register per accepted connection; the WebSocket
// connector runs its own reader in its upgrade handler.
func NewPumpHandler(src *channel.Source, sink *channel.Sink, bufSize int) Handler {
	return func(ctx context.Context, stream conduit.StreamId, conn net.Conn, meta conduit.ConnectionMeta, origin *conduit.EventOriginUri) {
		sink.RegisterStreamWriter(stream, meta, &connWriter{conn: conn})

		buf := make([]byte, bufSize)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				_ = src.Deposit(ctx, conduit.SourceReply{
					Kind:   conduit.SourceReplyData,
					Bytes:  data,
					Meta:   meta,
					Stream: stream,
					Origin: origin,
				})
			}
			if err != nil {
				sink.Unregister(stream)
				_ = src.Deposit(ctx, conduit.SourceReply{
					Kind:   conduit.SourceReplyEndStream,
					Stream: stream,
					Origin: origin,
				})
				conn.Close()
				return
			}
		}
	}
}
