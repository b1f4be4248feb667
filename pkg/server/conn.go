package server

import (
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/agilira/memcrs-go/pkg/protocol"
	"github.com/agilira/memcrs-go/pkg/recorder"
)

// Conn drives one client connection: read frame, decode, record, dispatch,
// write response, repeat. The only two suspension points are the frame read
// and the response write; command dispatch never blocks.
type Conn struct {
	nc           net.Conn
	handler      *Handler
	recorder     *recorder.ConnRecorder
	idleTimeout  time.Duration
	itemMemLimit uint32
	log          zerolog.Logger
	observe      Observer
}

func newConn(nc net.Conn, handler *Handler, rec *recorder.ConnRecorder, idleTimeout time.Duration, itemMemLimit uint32, log zerolog.Logger, observe Observer) *Conn {
	return &Conn{nc: nc, handler: handler, recorder: rec, idleTimeout: idleTimeout, itemMemLimit: itemMemLimit, log: log, observe: observe}
}

// Serve runs the connection's read/dispatch/write loop until the peer
// disconnects, the idle timeout fires, or a QUIT-family opcode closes it.
func (c *Conn) Serve() {
	defer c.recorder.Stop()
	defer c.nc.Close()

	for {
		c.nc.SetReadDeadline(time.Now().Add(c.idleTimeout))
		req, err := protocol.ReadRequest(c.nc, c.itemMemLimit)
		if err != nil {
			if err != io.EOF {
				c.log.Debug().Err(err).Str("remote", c.nc.RemoteAddr().String()).Msg("connection closed")
			}
			return
		}

		c.recorder.Push(req)

		start := time.Now()
		resp, closeAfter := c.handler.Handle(req)
		if c.observe != nil {
			outcome := "ok"
			if resp != nil && resp.Status != protocol.StatusOK {
				outcome = "error"
			}
			c.observe(req.Header.Opcode.String(), outcome, time.Since(start).Seconds())
		}
		if resp != nil {
			if _, err := c.nc.Write(protocol.Encode(*resp)); err != nil {
				c.log.Debug().Err(err).Msg("write error, closing connection")
				return
			}
		}
		if closeAfter {
			return
		}
	}
}
