package pion

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avask/callline/internal/core/port"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// opusSilence is a valid Opus DTX frame; written as a keepalive while
// the track is muted or no real capture backend is attached.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SampleSource is a capture backend producing sample-based local
// tracks. It writes silence on audio so the RTP stream stays alive;
// plugging a real capture pipeline means replacing this type, nothing
// else.
type SampleSource struct{}

func NewSampleSource() *SampleSource {
	return &SampleSource{}
}

// Capture implements port.MediaSource. Audio is always captured; video
// only when asked.
func (s *SampleSource) Capture(video bool) ([]port.LocalTrack, error) {
	streamID := uuid.NewString()

	audio, err := newSampleTrack(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}
	tracks := []port.LocalTrack{audio}
	go audio.silenceLoop()

	if video {
		vt, err := newSampleTrack(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
		if err != nil {
			audio.Close()
			return nil, fmt.Errorf("create video track: %w", err)
		}
		tracks = append(tracks, vt)
	}
	return tracks, nil
}

// sampleTrack wraps a pion sample track with the enable switch the
// toggle operations need.
type sampleTrack struct {
	kind    string
	track   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newSampleTrack(cap webrtc.RTPCodecCapability, kind, streamID string) (*sampleTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(cap, kind+"-"+uuid.NewString(), streamID)
	if err != nil {
		return nil, err
	}
	t := &sampleTrack{
		kind:   kind,
		track:  track,
		closed: make(chan struct{}),
	}
	t.enabled.Store(true)
	return t, nil
}

func (t *sampleTrack) Kind() string { return t.kind }

func (t *sampleTrack) SetEnabled(on bool) { t.enabled.Store(on) }

func (t *sampleTrack) Enabled() bool { return t.enabled.Load() }

func (t *sampleTrack) WebRTC() webrtc.TrackLocal { return t.track }

func (t *sampleTrack) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// silenceLoop writes one 20ms silence frame per tick until the track
// is closed.
func (t *sampleTrack) silenceLoop() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			_ = t.track.WriteSample(media.Sample{Data: opusSilence, Duration: 20 * time.Millisecond})
		}
	}
}
