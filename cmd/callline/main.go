package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/avask/callline/internal/adapter/driven/directory"
	"github.com/avask/callline/internal/adapter/driven/media/pion"
	"github.com/avask/callline/internal/adapter/driven/notify"
	signalws "github.com/avask/callline/internal/adapter/driven/signal/ws"
	"github.com/avask/callline/internal/config"
	"github.com/avask/callline/internal/core/domain"
	"github.com/avask/callline/internal/core/port"
	"github.com/avask/callline/internal/core/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var defaultICEServers = []string{"stun:stun.l.google.com:19302"}

func main() {
	userFlag := flag.String("user", "", "user id (uuid); generated when empty")
	flag.Parse()

	w := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	self := domain.NewUserID()
	if *userFlag != "" {
		self, err = domain.ParseUserID(*userFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -user")
		}
	}

	transport := signalws.NewTransport(cfg.ServerAddr, signalws.Options{
		PollInterval:  cfg.PollInterval,
		PollWindow:    cfg.PollWindow,
		DedupCapacity: cfg.DedupCapacity,
	})
	notifier := notify.New(log.Logger)
	dir := directory.NewStatic()

	// The media session reports to the call session, which does not
	// exist yet; wire through a late-bound observer.
	obs := &lateObserver{}
	media := pion.NewSession(pion.NewSampleSource(), obs, defaultICEServers)

	call := service.NewCallSession(self, transport, media, notifier, dir, cfg.RingTimeout)
	obs.bind(call)

	ctx := context.Background()
	if err := call.Listen(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start listening")
	}
	defer call.Close(ctx)

	fmt.Printf("callline, user %s\n", self)
	fmt.Println("commands: call <user-id> [video] | answer | decline | end | mute | video | status | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "call":
			if len(fields) < 2 {
				fmt.Println("usage: call <user-id> [video]")
				continue
			}
			peer, err := domain.ParseUserID(fields[1])
			if err != nil {
				fmt.Println("invalid user id")
				continue
			}
			callType := domain.CallVoice
			if len(fields) > 2 && fields[2] == "video" {
				callType = domain.CallVideo
			}
			if err := call.StartCall(ctx, domain.NewConversationID(), peer, callType); err != nil {
				fmt.Println("call failed:", err)
			}
		case "answer":
			if err := call.Accept(ctx); err != nil {
				fmt.Println("answer failed:", err)
			}
		case "decline":
			if err := call.Decline(ctx); err != nil {
				fmt.Println("decline failed:", err)
			}
		case "end":
			call.End(ctx)
		case "mute":
			fmt.Println("audio enabled:", call.ToggleAudio())
		case "video":
			fmt.Println("video enabled:", call.ToggleVideo())
		case "status":
			snap := call.Snapshot()
			fmt.Printf("state=%s session=%s peer=%s\n", snap.State, snap.SessionID, snap.Peer.Name)
		case "quit":
			return
		default:
			fmt.Println("unknown command")
		}
	}
}

// lateObserver forwards media events to the call session once it is
// constructed, breaking the construction cycle between the two.
type lateObserver struct {
	call *service.CallSession
}

func (o *lateObserver) bind(call *service.CallSession) {
	o.call = call
}

func (o *lateObserver) ConnStateChanged(session domain.SessionID, state port.ConnState) {
	if o.call != nil {
		o.call.ConnStateChanged(session, state)
	}
}

func (o *lateObserver) LocalCandidate(session domain.SessionID, cand domain.CandidatePayload) {
	if o.call != nil {
		o.call.LocalCandidate(session, cand)
	}
}
