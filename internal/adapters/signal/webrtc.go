package signal

import (
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

// handleWebRTCSignal forwards offers, answers and candidates untouched.
func (ctl *SignalWSController) handleWebRTCSignal(conn *WsSignalConn, f protocol.Frame) {
	var env protocol.Envelope
	if err := f.DecodeData(&env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad signal payload")
		ctl.sendError(conn, protocol.CodeBadPayload, err)
		return
	}
	if err := ctl.Orch.Signal(conn.id, env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(conn.id)).Msg("invalid signal")
		ctl.sendError(conn, protocol.CodeBadPayload, err)
	}
}
