package pion

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/avask/callline/internal/core/domain"
	"github.com/avask/callline/internal/core/port"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// pionTrack is implemented by sources whose tracks wrap a pion local
// track. The bundled SampleSource does; custom sources must too.
type pionTrack interface {
	WebRTC() webrtc.TrackLocal
}

// Session owns exactly one webrtc.PeerConnection and its local media
// for the duration of one call. Implements port.MediaSession.
type Session struct {
	source     port.MediaSource
	observer   port.MediaObserver
	iceServers []string

	mu        sync.Mutex
	pc        *webrtc.PeerConnection
	sessionID domain.SessionID
	tracks    []port.LocalTrack
	remoteSet bool
	pending   []domain.CandidatePayload
}

// NewSession creates a media session backed by source. iceServers may
// be empty for LAN-only use.
func NewSession(source port.MediaSource, observer port.MediaObserver, iceServers []string) *Session {
	return &Session{
		source:     source,
		observer:   observer,
		iceServers: iceServers,
	}
}

func (s *Session) Setup(ctx context.Context, callType domain.CallType, session domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A previous call that failed mid-setup may have left media
	// attached; release it before touching the hardware again.
	s.cleanupLocked()

	tracks, err := s.source.Capture(callType == domain.CallVideo)
	if err != nil {
		return &domain.MediaAccessError{Err: err}
	}

	cfg := webrtc.Configuration{}
	for _, u := range s.iceServers {
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{URLs: []string{u}})
	}
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		for _, t := range tracks {
			t.Close()
		}
		return fmt.Errorf("new peer connection: %w", err)
	}

	for _, t := range tracks {
		pt, ok := t.(pionTrack)
		if !ok {
			pc.Close()
			for _, t := range tracks {
				t.Close()
			}
			return &domain.MediaAccessError{Err: fmt.Errorf("source track %s is not a pion track", t.Kind())}
		}
		if _, err := pc.AddTrack(pt.WebRTC()); err != nil {
			pc.Close()
			for _, t := range tracks {
				t.Close()
			}
			return fmt.Errorf("add %s track: %w", t.Kind(), err)
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		s.observer.LocalCandidate(session, domain.CandidatePayload{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug().Str("session_id", session.String()).Str("state", state.String()).Msg("Peer connection state")
		s.observer.ConnStateChanged(session, mapConnState(state))
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Debug().Str("kind", remote.Kind().String()).Str("session_id", session.String()).Msg("Received remote track")
		if remote.Kind() == webrtc.RTPCodecTypeVideo {
			go s.keyframeLoop(pc, remote)
		}
		go drainTrack(remote)
	})

	s.pc = pc
	s.sessionID = session
	s.tracks = tracks
	s.remoteSet = false
	s.pending = nil
	return nil
}

func (s *Session) CreateOffer(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pc == nil {
		return "", fmt.Errorf("create offer before setup")
	}
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return offer.SDP, nil
}

func (s *Session) HandleOffer(ctx context.Context, remoteSDP string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pc == nil {
		return "", fmt.Errorf("handle offer before setup")
	}
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: remoteSDP}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return "", fmt.Errorf("set remote description: %w", err)
	}
	s.flushCandidatesLocked()

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return answer.SDP, nil
}

func (s *Session) HandleAnswer(ctx context.Context, remoteSDP string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pc == nil {
		return fmt.Errorf("handle answer before setup")
	}
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: remoteSDP}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	s.flushCandidatesLocked()
	return nil
}

// AddCandidate applies a remote candidate. Candidates routinely arrive
// before the answer or offer because signaling paths are independent;
// until the remote description exists they are buffered in arrival
// order.
func (s *Session) AddCandidate(cand domain.CandidatePayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pc == nil || !s.remoteSet {
		s.pending = append(s.pending, cand)
		return nil
	}
	return s.applyCandidateLocked(cand)
}

func (s *Session) flushCandidatesLocked() {
	s.remoteSet = true
	for _, cand := range s.pending {
		if err := s.applyCandidateLocked(cand); err != nil {
			log.Warn().Err(err).Msg("Applying buffered candidate failed")
		}
	}
	s.pending = nil
}

func (s *Session) applyCandidateLocked(cand domain.CandidatePayload) error {
	return s.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	})
}

func (s *Session) ToggleAudio(on *bool) bool {
	return s.toggle("audio", on)
}

func (s *Session) ToggleVideo(on *bool) bool {
	return s.toggle("video", on)
}

func (s *Session) toggle(kind string, on *bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tracks {
		if t.Kind() != kind {
			continue
		}
		enabled := !t.Enabled()
		if on != nil {
			enabled = *on
		}
		t.SetEnabled(enabled)
		return enabled
	}
	return false
}

// Cleanup stops local media and closes the connection. Idempotent and
// safe to call from any state, including before Setup.
func (s *Session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
}

func (s *Session) cleanupLocked() {
	for _, t := range s.tracks {
		if err := t.Close(); err != nil {
			log.Warn().Err(err).Str("kind", t.Kind()).Msg("Closing local track failed")
		}
	}
	s.tracks = nil

	if s.pc != nil {
		if err := s.pc.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing peer connection failed")
		}
		s.pc = nil
	}
	s.remoteSet = false
	s.pending = nil
	s.sessionID = ""
}

// keyframeLoop requests a keyframe for the remote video track
// immediately and then every 3 seconds, so a freshly connected peer
// does not stare at a frozen frame.
func (s *Session) keyframeLoop(pc *webrtc.PeerConnection, remote *webrtc.TrackRemote) {
	sendPLI := func() {
		_ = pc.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(remote.SSRC())},
		})
	}
	sendPLI()

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if pc.ConnectionState() == webrtc.PeerConnectionStateClosed {
			return
		}
		sendPLI()
	}
}

func drainTrack(remote *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := remote.Read(buf); err != nil {
			if err != io.EOF {
				log.Debug().Err(err).Msg("Remote track read ended")
			}
			return
		}
	}
}

func mapConnState(state webrtc.PeerConnectionState) port.ConnState {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		return port.ConnConnected
	case webrtc.PeerConnectionStateFailed:
		return port.ConnFailed
	case webrtc.PeerConnectionStateDisconnected:
		return port.ConnDisconnected
	case webrtc.PeerConnectionStateClosed:
		return port.ConnClosed
	default:
		return port.ConnConnecting
	}
}
