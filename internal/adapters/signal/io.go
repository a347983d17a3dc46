package signal

import (
	"context"
	"time"

	"github.com/dkeye/Meet/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(c.id)).Msg("writePump ctx done")
			c.Close()
			return
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump ping failed")
				c.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(c.id)).Msg("readPump closing")
		c.Close()
		ctl.Orch.Disconnect(c.id)
	}()

	if ctl.Opts.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.Opts.ReadLimit)
	}
	pongWait := ctl.Opts.pongWait()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(c.id)).Msg("readPump ctx done")
			return
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleFrame(c, data)
	}
}

func (ctl *SignalWSController) handleFrame(c *WsSignalConn, data []byte) {
	f, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("bad frame")
		ctl.sendError(c, protocol.CodeBadPayload, err)
		return
	}

	switch f.Event {
	case protocol.EventJoinMeeting:
		ctl.handleJoin(c, f)
	case protocol.EventLeaveMeeting:
		ctl.handleLeave(c)
	case protocol.EventWebRTCSignal:
		ctl.handleWebRTCSignal(c, f)
	case protocol.EventScreenShare:
		ctl.handleScreenShare(c, f)
	case protocol.EventPing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("event", string(f.Event)).Msg("unknown event")
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, code protocol.ErrorCode, err error) {
	b, encErr := protocol.Encode(protocol.EventError, protocol.Error{Code: code, Message: err.Error()})
	if encErr != nil {
		return
	}
	_ = c.TrySend(b)
}

// reportError sends a domain error back as an error frame.
func (ctl *SignalWSController) reportError(c *WsSignalConn, err error) {
	ctl.Orch.SendError(c.id, err)
}
