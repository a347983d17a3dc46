package app

import "github.com/dkeye/Meet/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a connection whose send queue is full.
type Policy interface {
	OnBackPressure(conn core.SignalConnection) BackpressureAction
}

// SimplePolicy kicks slow connections; they then go through the normal
// disconnect path.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.SignalConnection) BackpressureAction {
	return KickMember
}

// TolerantPolicy drops the frame and keeps the connection.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(core.SignalConnection) BackpressureAction {
	return DropFrame
}
