package signal

import (
	"errors"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(conn *WsSignalConn, f protocol.Frame) {
	var p protocol.JoinMeeting
	if err := f.DecodeData(&p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, protocol.CodeBadPayload, err)
		return
	}
	limitKey := conn.user
	if limitKey == "" {
		limitKey = domain.UserID(conn.id)
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(limitKey) {
		log.Warn().Str("module", "signal").Str("sid", string(conn.id)).Msg("join rate limited")
		ctl.reportError(conn, protocol.ErrRateLimited)
		return
	}

	code, err := ctl.Orch.JoinMeeting(conn.id, conn.user, p)
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(conn.id)).Str("room", string(code)).Msg("join rejected")
		ctl.reportError(conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(conn.id)).Str("room", string(code)).Msg("join")
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(conn *WsSignalConn) {
	if err := ctl.Orch.LeaveMeeting(conn.id); err != nil {
		if !errors.Is(err, domain.ErrNotInRoom) {
			ctl.reportError(conn, err)
		}
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(conn.id)).Msg("leave")
}

func (ctl *SignalWSController) handleScreenShare(conn *WsSignalConn, f protocol.Frame) {
	var p protocol.ScreenShare
	if err := f.DecodeData(&p); err != nil {
		ctl.sendError(conn, protocol.CodeBadPayload, err)
		return
	}
	if err := ctl.Orch.ScreenShare(conn.id, p.IsSharing); err != nil {
		ctl.reportError(conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(conn.id)).Bool("sharing", p.IsSharing).Msg("screen share")
}
