package service

import (
	"context"
	"sync"
	"time"

	"github.com/avask/callline/internal/core/domain"
	"github.com/avask/callline/internal/core/port"
	"github.com/rs/zerolog/log"
)

// CallSession is the single source of truth for the call lifecycle on
// one client. It arbitrates one call at a time, mediates between the
// media session and the signaling transport, and is the only component
// allowed to change externally visible call state.
type CallSession struct {
	self      domain.UserID
	transport port.SignalTransport
	media     port.MediaSession
	notifier  port.CallNotifier
	directory port.Directory

	ringTimeout time.Duration

	mu             sync.Mutex
	state          domain.CallState
	sessionID      domain.SessionID
	conversationID domain.ConversationID
	peer           domain.Participant
	callType       domain.CallType
	isCaller       bool
	mediaReady     bool
	pendingOffer   *domain.SignalMessage
	pending        []domain.SignalMessage
	ringTimer      *time.Timer
}

// Snapshot is the read-only view handed to UI code.
type Snapshot struct {
	State          domain.CallState
	SessionID      domain.SessionID
	ConversationID domain.ConversationID
	Peer           domain.Participant
	CallType       domain.CallType
	IsCaller       bool
}

func NewCallSession(self domain.UserID, transport port.SignalTransport, media port.MediaSession, notifier port.CallNotifier, directory port.Directory, ringTimeout time.Duration) *CallSession {
	return &CallSession{
		self:        self,
		transport:   transport,
		media:       media,
		notifier:    notifier,
		directory:   directory,
		ringTimeout: ringTimeout,
		state:       domain.StateIdle,
	}
}

// Listen subscribes the session to signaling addressed to this user.
// Idempotent, like the transport underneath.
func (s *CallSession) Listen(ctx context.Context) error {
	return s.transport.Start(ctx, s.self, s.HandleSignal)
}

// Close ends any active call and releases the transport subscription.
func (s *CallSession) Close(ctx context.Context) {
	s.End(ctx)
	s.transport.Stop()
}

func (s *CallSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:          s.state,
		SessionID:      s.sessionID,
		ConversationID: s.conversationID,
		Peer:           s.peer,
		CallType:       s.callType,
		IsCaller:       s.isCaller,
	}
}

// StartCall initiates an outgoing call. Fails with domain.ErrBusy when
// a session is already active.
func (s *CallSession) StartCall(ctx context.Context, conv domain.ConversationID, peerID domain.UserID, callType domain.CallType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateIdle {
		return domain.ErrBusy
	}

	s.transition(domain.StateInitiating)
	s.sessionID = domain.NewSessionID()
	s.conversationID = conv
	s.callType = callType
	s.isCaller = true
	s.peer = s.lookup(ctx, peerID)

	if err := s.media.Setup(ctx, callType, s.sessionID); err != nil {
		s.finishLocked(ctx, domain.OutcomeFailed, "Call failed")
		return err
	}
	s.mediaReady = true

	sdp, err := s.media.CreateOffer(ctx)
	if err != nil {
		s.finishLocked(ctx, domain.OutcomeFailed, "Call failed")
		return err
	}

	offer, err := domain.NewOffer(s.self, peerID, conv, s.sessionID, sdp, callType)
	if err != nil {
		s.finishLocked(ctx, domain.OutcomeFailed, "Call failed")
		return err
	}
	if err := s.sendWithRetry(ctx, offer); err != nil {
		s.finishLocked(ctx, domain.OutcomeFailed, "Call failed")
		return err
	}

	s.transition(domain.StateRinging)
	s.armRingTimer()
	s.notifier.Ringing(s.peer)
	return nil
}

// Accept answers the currently ringing incoming call.
func (s *CallSession) Accept(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateRinging || s.isCaller || s.pendingOffer == nil {
		return domain.ErrNotActive
	}

	offer := *s.pendingOffer
	payload, err := offer.DecodeOffer()
	if err != nil {
		s.finishLocked(ctx, domain.OutcomeFailed, "Call failed")
		return err
	}

	s.stopRingTimer()
	s.transition(domain.StateConnecting)

	if err := s.media.Setup(ctx, payload.CallType, s.sessionID); err != nil {
		s.finishLocked(ctx, domain.OutcomeFailed, "Call failed")
		return err
	}
	s.mediaReady = true

	answerSDP, err := s.media.HandleOffer(ctx, payload.SDP)
	if err != nil {
		s.finishLocked(ctx, domain.OutcomeFailed, "Call failed")
		return err
	}

	s.replayPendingLocked(ctx)

	answer, err := domain.NewAnswer(s.self, offer.SenderID, s.conversationID, s.sessionID, answerSDP)
	if err != nil {
		s.finishLocked(ctx, domain.OutcomeFailed, "Call failed")
		return err
	}
	if err := s.sendWithRetry(ctx, answer); err != nil {
		s.finishLocked(ctx, domain.OutcomeFailed, "Call failed")
		return err
	}
	s.pendingOffer = nil
	return nil
}

// Decline rejects the currently ringing incoming call.
func (s *CallSession) Decline(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateRinging || s.isCaller {
		return domain.ErrNotActive
	}

	if msg, err := domain.NewDecline(s.self, s.peer.ID, s.conversationID, s.sessionID); err == nil {
		s.sendBestEffort(ctx, msg)
	}
	s.finishLocked(ctx, domain.OutcomeDeclined, "")
	return nil
}

// End hangs up the active call from any non-idle state. No-op when
// idle.
func (s *CallSession) End(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.StateIdle {
		return
	}

	if msg, err := domain.NewEnd(s.self, s.peer.ID, s.conversationID, s.sessionID); err == nil {
		s.sendBestEffort(ctx, msg)
	}
	outcome := domain.OutcomeEnded
	if s.state == domain.StateConnected {
		outcome = domain.OutcomeCompleted
	}
	s.finishLocked(ctx, outcome, "")
}

// ToggleAudio flips the local audio track and returns the new enabled
// state.
func (s *CallSession) ToggleAudio() bool {
	return s.media.ToggleAudio(nil)
}

// ToggleVideo flips the local video track and returns the new enabled
// state. No-op on voice calls.
func (s *CallSession) ToggleVideo() bool {
	return s.media.ToggleVideo(nil)
}

// HandleSignal processes one inbound signaling message. The transport
// has already deduplicated it; everything else (staleness, busy
// arbitration, ordering) is decided here.
func (s *CallSession) HandleSignal(msg domain.SignalMessage) {
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Expired(time.Now()) {
		log.Debug().Str("message_id", msg.ID.String()).Str("kind", string(msg.Kind)).Msg("Dropping expired signal")
		return
	}

	if msg.Kind == domain.SignalOffer {
		s.handleOfferLocked(ctx, msg)
		return
	}

	if s.state == domain.StateIdle || msg.SessionID != s.sessionID {
		log.Debug().
			Str("message_id", msg.ID.String()).
			Str("kind", string(msg.Kind)).
			Str("session_id", msg.SessionID.String()).
			Msg("Dropping stale signal")
		return
	}

	switch msg.Kind {
	case domain.SignalAnswer:
		s.handleAnswerLocked(ctx, msg)
	case domain.SignalICE:
		s.handleCandidateLocked(msg)
	case domain.SignalDecline:
		s.finishLocked(ctx, domain.OutcomeDeclined, "Call declined")
	case domain.SignalEnd:
		outcome := domain.OutcomeEnded
		if s.state == domain.StateConnected {
			outcome = domain.OutcomeCompleted
		}
		s.finishLocked(ctx, outcome, "")
	}
}

func (s *CallSession) handleOfferLocked(ctx context.Context, msg domain.SignalMessage) {
	if s.state != domain.StateIdle {
		if msg.SessionID == s.sessionID {
			// Redelivery of the offer that started this session.
			return
		}
		// Busy: never interrupt the active call. The remote caller
		// learns via decline (or eventually its ring timeout).
		log.Info().
			Str("session_id", msg.SessionID.String()).
			Str("sender_id", msg.SenderID.String()).
			Msg("Rejecting offer while busy")
		if decline, err := domain.NewDecline(s.self, msg.SenderID, msg.ConversationID, msg.SessionID); err == nil {
			s.sendBestEffort(ctx, decline)
		}
		return
	}

	payload, err := msg.DecodeOffer()
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.ID.String()).Msg("Dropping malformed offer")
		return
	}

	s.transition(domain.StateRinging)
	s.sessionID = msg.SessionID
	s.conversationID = msg.ConversationID
	s.callType = payload.CallType
	s.isCaller = false
	s.pendingOffer = &msg
	s.peer = s.lookup(ctx, msg.SenderID)
	s.armRingTimer()
	s.notifier.IncomingCall(s.peer, payload.CallType)
}

func (s *CallSession) handleAnswerLocked(ctx context.Context, msg domain.SignalMessage) {
	if s.state != domain.StateRinging || !s.isCaller {
		log.Debug().Str("state", string(s.state)).Msg("Ignoring answer outside caller ringing state")
		return
	}

	payload, err := msg.DecodeAnswer()
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.ID.String()).Msg("Dropping malformed answer")
		return
	}

	s.stopRingTimer()
	s.transition(domain.StateConnecting)

	if !s.mediaReady {
		// Media session still being set up; replay once it is.
		s.pending = append(s.pending, msg)
		return
	}
	if err := s.media.HandleAnswer(ctx, payload.SDP); err != nil {
		log.Error().Err(err).Msg("Applying remote answer failed")
		s.finishLocked(ctx, domain.OutcomeFailed, "Call failed")
	}
}

func (s *CallSession) handleCandidateLocked(msg domain.SignalMessage) {
	if !s.mediaReady {
		s.pending = append(s.pending, msg)
		return
	}
	payload, err := msg.DecodeCandidate()
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.ID.String()).Msg("Dropping malformed candidate")
		return
	}
	if err := s.media.AddCandidate(payload); err != nil {
		log.Warn().Err(err).Msg("Applying remote candidate failed")
	}
}

// replayPendingLocked feeds queued messages into the media session,
// answers before candidates, each group in arrival order.
func (s *CallSession) replayPendingLocked(ctx context.Context) {
	queued := s.pending
	s.pending = nil

	for _, msg := range queued {
		if msg.Kind != domain.SignalAnswer {
			continue
		}
		payload, err := msg.DecodeAnswer()
		if err != nil {
			log.Warn().Err(err).Msg("Dropping malformed queued answer")
			continue
		}
		if err := s.media.HandleAnswer(ctx, payload.SDP); err != nil {
			log.Error().Err(err).Msg("Applying queued answer failed")
		}
	}
	for _, msg := range queued {
		if msg.Kind != domain.SignalICE {
			continue
		}
		payload, err := msg.DecodeCandidate()
		if err != nil {
			log.Warn().Err(err).Msg("Dropping malformed queued candidate")
			continue
		}
		if err := s.media.AddCandidate(payload); err != nil {
			log.Warn().Err(err).Msg("Applying queued candidate failed")
		}
	}
}

// ConnStateChanged implements port.MediaObserver.
func (s *CallSession) ConnStateChanged(session domain.SessionID, state port.ConnState) {
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()

	if session != s.sessionID {
		return
	}

	switch state {
	case port.ConnConnected:
		if s.state == domain.StateConnecting {
			s.transition(domain.StateConnected)
			s.notifier.Connected(s.peer)
		}
	case port.ConnFailed:
		if s.state == domain.StateConnecting || s.state == domain.StateConnected {
			log.Error().Str("session_id", session.String()).Msg("Peer connection failed")
			s.finishLocked(ctx, domain.OutcomeFailed, "Call failed")
		}
	case port.ConnDisconnected:
		// Transient; the connection may recover on its own.
		log.Warn().Str("session_id", session.String()).Msg("Peer connection disconnected")
	}
}

// LocalCandidate implements port.MediaObserver. Candidate delivery is
// best effort; a lost candidate degrades connectivity, not
// correctness.
func (s *CallSession) LocalCandidate(session domain.SessionID, cand domain.CandidatePayload) {
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()

	if session != s.sessionID || s.state == domain.StateIdle || s.state == domain.StateEnded {
		return
	}

	msg, err := domain.NewCandidate(s.self, s.peer.ID, s.conversationID, s.sessionID, cand)
	if err != nil {
		log.Warn().Err(err).Msg("Encoding local candidate failed")
		return
	}
	s.sendBestEffort(ctx, msg)
}

func (s *CallSession) armRingTimer() {
	session := s.sessionID
	s.ringTimer = time.AfterFunc(s.ringTimeout, func() {
		s.onRingTimeout(session)
	})
}

func (s *CallSession) stopRingTimer() {
	if s.ringTimer != nil {
		s.ringTimer.Stop()
		s.ringTimer = nil
	}
}

func (s *CallSession) onRingTimeout(session domain.SessionID) {
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()

	if session != s.sessionID {
		return
	}
	if s.state != domain.StateRinging && s.state != domain.StateInitiating {
		return
	}

	log.Info().Str("session_id", session.String()).Msg("Ring timeout")
	if msg, err := domain.NewEnd(s.self, s.peer.ID, s.conversationID, s.sessionID); err == nil {
		s.sendBestEffort(ctx, msg)
	}
	s.finishLocked(ctx, domain.OutcomeNoAnswer, "No answer")
}

// finishLocked tears the session down and resets to idle. Every path
// out of a non-idle state funnels through here so media is always
// released before the next call can start.
func (s *CallSession) finishLocked(ctx context.Context, outcome domain.CallOutcome, userMsg string) {
	s.stopRingTimer()
	s.transition(domain.StateEnded)

	s.media.Cleanup()
	s.mediaReady = false
	s.pending = nil
	s.pendingOffer = nil

	peer := s.peer
	s.notifier.Ended(peer, outcome)
	if outcome == domain.OutcomeFailed && userMsg != "" {
		s.notifier.Failed(userMsg)
	}

	s.transition(domain.StateIdle)
	s.sessionID = ""
	s.conversationID = domain.ConversationID{}
	s.peer = domain.Participant{}
	s.callType = ""
	s.isCaller = false
}

func (s *CallSession) transition(to domain.CallState) {
	if !domain.CanTransition(s.state, to) {
		log.Warn().
			Str("from", string(s.state)).
			Str("to", string(to)).
			Msg("Illegal call state transition")
	}
	log.Debug().Str("from", string(s.state)).Str("to", string(to)).Msg("Call state")
	s.state = to
}

// sendWithRetry delivers a signal the call cannot proceed without,
// retrying once before giving up.
func (s *CallSession) sendWithRetry(ctx context.Context, msg domain.SignalMessage) error {
	err := s.transport.Send(ctx, msg)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Str("kind", string(msg.Kind)).Msg("Signal delivery failed, retrying once")
	return s.transport.Send(ctx, msg)
}

func (s *CallSession) sendBestEffort(ctx context.Context, msg domain.SignalMessage) {
	if err := s.transport.Send(ctx, msg); err != nil {
		log.Warn().Err(err).Str("kind", string(msg.Kind)).Msg("Signal delivery failed")
	}
}

func (s *CallSession) lookup(ctx context.Context, id domain.UserID) domain.Participant {
	p, err := s.directory.Participant(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("user_id", id.String()).Msg("Participant lookup failed")
		return domain.Participant{ID: id, Name: id.String()}
	}
	return p
}
