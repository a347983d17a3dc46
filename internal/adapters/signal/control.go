package signal

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.Orch.Pong(conn.id)
}
