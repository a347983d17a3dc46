package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/Meet/internal/adapters/meetapi"
	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/adapters/wsclient"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/media"
	"github.com/dkeye/Meet/internal/peer"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagName    string
	flagHost    bool
	flagVideo   string
	flagAudio   string
	flagLoop    bool
	flagSTUN    string
	flagTimeout time.Duration
)

var joinCmd = &cobra.Command{
	Use:     "join <code>",
	Aliases: []string{"j"},
	Short:   "Join a meeting",
	Long: `Join a meeting and stay until q, Ctrl-C or the host ends it.

Commands while in the meeting:
  v            toggle camera
  a            toggle microphone
  s <file.ivf> share a video file as screen, s alone stops sharing
  m <text>     send a chat message over the data channels
  r            show the roster
  e            end the meeting (host only)
  q            leave

Examples:
  peer join ABC-123-XYZ --name Bob
  peer join ABC123XYZ --name Bob --video cam.ivf --audio mic.ogg --loop`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := meetapi.New(flagServer)
		if err != nil {
			return err
		}
		if !flagHost {
			if _, err := api.Admit(cmd.Context(), args[0]); err != nil {
				return err
			}
		}
		return runMeeting(cmd.Context(), api, args[0], flagHost)
	},
}

func addMeetingFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name")
	cmd.Flags().StringVar(&flagVideo, "video", "", "IVF file used as camera")
	cmd.Flags().StringVar(&flagAudio, "audio", "", "Ogg/Opus file used as microphone")
	cmd.Flags().BoolVar(&flagLoop, "loop", false, "Loop media files")
	cmd.Flags().StringVar(&flagSTUN, "stun", "", "STUN server URL, replaces ice_servers from the config file")
	cmd.Flags().DurationVar(&flagTimeout, "negotiation-timeout", 0, "Time a peer has to connect (default from the config file)")
	_ = cmd.MarkFlagRequired("name")
}

func init() {
	rootCmd.AddCommand(joinCmd)
	addMeetingFlags(joinCmd)
	joinCmd.Flags().BoolVar(&flagHost, "host", false, "Join as host (requires the token that created the meeting)")
}

// meetingSettings applies the --stun and --negotiation-timeout overrides on
// top of the config file.
func meetingSettings(cfg *config.Config, stun string, timeout time.Duration) (webrtc.Configuration, time.Duration) {
	wc := cfg.WebRTC()
	if len(wc.ICEServers) == 0 {
		wc = rtc.DefaultWebRTCConfig()
	}
	if stun != "" {
		wc.ICEServers = []webrtc.ICEServer{{URLs: []string{stun}}}
	}
	if timeout <= 0 {
		timeout = cfg.NegotiationTimeout
	}
	return wc, timeout
}

func runMeeting(ctx context.Context, api *meetapi.Client, code string, host bool) error {
	wsURL, err := api.SignalURL()
	if err != nil {
		return err
	}
	ws, err := wsclient.Dial(ctx, wsURL, api.Jar())
	if err != nil {
		return err
	}
	wc, timeout := meetingSettings(peerCfg, flagSTUN, flagTimeout)
	s := peer.NewSession(peer.Config{
		Signaler:           ws,
		Transports:         &rtc.Factory{Config: wc},
		Media:              media.StreamConfig{VideoFile: flagVideo, AudioFile: flagAudio, Loop: flagLoop},
		NegotiationTimeout: timeout,
	})
	defer s.Close()

	joinCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	roster, err := s.Join(joinCtx, code, flagName, host)
	cancel()
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("Joined %s as %s", s.Code().Display(), flagName)))
	fmt.Println(rosterView(roster))

	lines := make(chan string)
	go readLines(lines)

	for {
		select {
		case <-ctx.Done():
			return leave(s)
		case ev, ok := <-s.Events():
			if !ok {
				return nil
			}
			printEvent(ev)
			switch ev.Kind {
			case peer.EventMeetingEnded, peer.EventSignalingStopped:
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				return leave(s)
			}
			done, err := command(ctx, api, s, code, line)
			if err != nil {
				printError(err.Error())
			}
			if done {
				return leave(s)
			}
		}
	}
}

func readLines(out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- strings.TrimSpace(sc.Text())
	}
}

func leave(s *peer.Session) error {
	if err := s.Leave(); err != nil {
		log.Debug().Err(err).Msg("leave")
	}
	return nil
}

func command(ctx context.Context, api *meetapi.Client, s *peer.Session, code, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "":
		return false, nil
	case "q":
		return true, nil
	case "v", "a":
		kind := protocol.TrackVideo
		if cmd == "a" {
			kind = protocol.TrackAudio
		}
		on, err := s.ToggleLocalTrack(kind)
		if err != nil {
			return false, err
		}
		fmt.Println(mutedStyle.Render(fmt.Sprintf("%s %s", kind, onOff(on))))
	case "s":
		if arg == "" {
			return false, s.StopScreenShare()
		}
		src, err := media.OpenIVF(arg)
		if err != nil {
			return false, err
		}
		return false, s.ReplaceOutboundVideo(src)
	case "m":
		payload, err := json.Marshal(map[string]string{"type": "chat", "text": arg})
		if err != nil {
			return false, err
		}
		n, err := s.SendAppMessage(payload)
		if err != nil {
			return false, err
		}
		fmt.Println(mutedStyle.Render(fmt.Sprintf("sent to %d peer(s)", n)))
	case "r":
		fmt.Println(rosterView(s.Roster()))
	case "e":
		return false, api.End(ctx, code)
	default:
		return false, errors.New("unknown command, see peer join --help")
	}
	return false, nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
