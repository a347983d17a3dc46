package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/peer"
	"github.com/jedib0t/go-pretty/v6/table"
)

var (
	primary = lipgloss.Color("#22d3ee")
	success = lipgloss.Color("#10B981")
	warning = lipgloss.Color("#F59E0B")
	danger  = lipgloss.Color("#EF4444")
	muted   = lipgloss.Color("#6B7280")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primary)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(success)
	warningStyle = lipgloss.NewStyle().Foreground(warning)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(danger)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(primary).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func printError(msg string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+msg))
}

func mark(b bool) string {
	if b {
		return "●"
	}
	return "○"
}

// rosterView renders remote peers with their negotiation state and what
// they publish.
func rosterView(peers []peer.PeerInfo) string {
	if len(peers) == 0 {
		return mutedStyle.Render("Nobody else is here yet")
	}
	rows := make([][]string, 0, len(peers))
	for i, p := range peers {
		var packets uint64
		for _, sk := range p.Sinks {
			packets += sk.Packets
		}
		name := p.Name
		if p.IsHost {
			name += " (host)"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			name,
			p.State.String(),
			mark(p.VideoEnabled),
			mark(p.AudioEnabled),
			mark(p.Sharing),
			strconv.FormatUint(packets, 10),
		})
	}
	return ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(primary)).
		Headers("#", "Name", "State", "Video", "Audio", "Screen", "RTP in").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Render()
}

func meetingView(info core.RoomInfo) string {
	t := table.NewWriter()
	t.SetTitle("Meeting " + info.DisplayCode)
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Host", info.HostName},
		{"Active", info.Active},
		{"Participants", info.ParticipantCount},
		{"Created", info.CreatedAt.Local().Format(time.DateTime)},
		{"Max participants", info.Settings.MaxParticipants},
		{"Screen sharing", info.Settings.AllowScreenShare},
	})
	if info.EndedAt != nil {
		t.AppendRow(table.Row{"Ended", info.EndedAt.Local().Format(time.DateTime)})
	}
	return t.Render()
}

func membersView(members []core.MemberDTO) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Name", "Host", "Joined"})
	for _, m := range members {
		t.AppendRow(table.Row{m.ID, m.Name, m.IsHost, m.JoinedAt.Local().Format(time.TimeOnly)})
	}
	t.AppendFooter(table.Row{"", "Total", len(members), ""})
	return t.Render()
}

func statsView(st core.Stats) string {
	t := table.NewWriter()
	t.SetTitle("Server")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Meetings", st.Rooms},
		{"Active meetings", st.ActiveRooms},
		{"Active participants", st.ActiveMembers},
		{"Socket connections", st.SignalSessions},
	})
	return t.Render()
}

func printEvent(ev peer.Event) {
	who := ev.Name
	if who == "" {
		who = string(ev.Peer)
	}
	switch ev.Kind {
	case peer.EventPeerJoined:
		fmt.Println(successStyle.Render("→ " + who + " joined"))
	case peer.EventPeerConnected:
		fmt.Println(successStyle.Render("⇄ connected to " + who))
	case peer.EventPeerLeft:
		fmt.Println(mutedStyle.Render("← " + who + " left"))
	case peer.EventPeerFailed:
		fmt.Println(warningStyle.Render(fmt.Sprintf("✗ %s: %v", who, ev.Err)))
	case peer.EventMediaState:
		fmt.Println(mutedStyle.Render(fmt.Sprintf("%s turned %s %s", who, ev.Track, onOff(ev.Enabled))))
	case peer.EventScreenShare:
		verb := "stopped"
		if ev.Enabled {
			verb = "started"
		}
		fmt.Println(mutedStyle.Render(fmt.Sprintf("%s %s sharing their screen", who, verb)))
	case peer.EventAppMessage:
		var chat struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(ev.Payload, &chat); err == nil && chat.Type == "chat" {
			fmt.Printf("%s %s\n", titleStyle.Render(who+":"), chat.Text)
			return
		}
		fmt.Println(mutedStyle.Render(fmt.Sprintf("%s sent %d bytes", who, len(ev.Payload))))
	case peer.EventMediaDegraded:
		fmt.Println(warningStyle.Render(fmt.Sprintf("⚠ %v, publishing silence and black video", ev.Err)))
	case peer.EventMeetingEnded:
		fmt.Println(titleStyle.Render("Meeting ended by " + ev.EndedBy))
	case peer.EventSignalingError:
		printError(ev.Err.Error())
	case peer.EventSignalingStopped:
		fmt.Println(warningStyle.Render("Signaling connection closed"))
	}
}
