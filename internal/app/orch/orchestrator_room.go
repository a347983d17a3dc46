package orch

import (
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

func (o *Orchestrator) CreateMeeting(host domain.UserID, hostName string) (core.RoomInfo, error) {
	return o.Registry.Create(host, hostName)
}

func (o *Orchestrator) Meeting(raw string) (core.RoomInfo, error) {
	code, err := domain.ParseCode(raw)
	if err != nil {
		return core.RoomInfo{}, err
	}
	return o.Registry.Lookup(code)
}

func (o *Orchestrator) Members(raw string) ([]core.MemberDTO, error) {
	code, err := domain.ParseCode(raw)
	if err != nil {
		return nil, err
	}
	return o.Registry.ActiveMembers(code)
}

// Admit acknowledges that a meeting may be joined. Membership itself is
// established over the signaling connection.
func (o *Orchestrator) Admit(raw string) (core.RoomInfo, error) {
	code, err := domain.ParseCode(raw)
	if err != nil {
		return core.RoomInfo{}, err
	}
	return o.Registry.Admit(code)
}

func (o *Orchestrator) LeaveMember(raw string, id domain.MemberID) error {
	code, err := domain.ParseCode(raw)
	if err != nil {
		return err
	}
	return o.Registry.Leave(code, id)
}

// EndMeeting ends a meeting on behalf of its host.
func (o *Orchestrator) EndMeeting(raw string, by domain.UserID) error {
	code, err := domain.ParseCode(raw)
	if err != nil {
		return err
	}
	return o.Registry.End(code, by)
}
