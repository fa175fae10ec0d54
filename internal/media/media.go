package media

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Reason classifies why local media acquisition failed.
type Reason string

const (
	ReasonPermissionDenied Reason = "permission_denied"
	ReasonDeviceNotFound   Reason = "device_not_found"
	ReasonOther            Reason = "other"
)

// AcquireError is a typed local media acquisition failure. Acquisition
// failure is non-fatal: a session continues without outgoing media.
type AcquireError struct {
	Reason Reason
	Err    error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("media acquisition failed (%s): %v", e.Reason, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// Source is an already-acquired local audio+video source. It is shared
// read-only across peer links: each link attaches its own senders for
// the tracks and must never mutate the source.
type Source interface {
	Tracks() []webrtc.TrackLocal
	Close() error
}

// SampleSource is a synthetic Source backed by static sample tracks.
// Callers push encoded samples; tests and the demo CLI use it in place
// of device capture, which is owned by an external collaborator.
type SampleSource struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample
}

// NewSampleSource creates an Opus audio track and a VP8 video track.
func NewSampleSource() (*SampleSource, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "chillcall")
	if err != nil {
		return nil, &AcquireError{Reason: ReasonOther, Err: err}
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "chillcall")
	if err != nil {
		return nil, &AcquireError{Reason: ReasonOther, Err: err}
	}

	return &SampleSource{audio: audio, video: video}, nil
}

// Tracks returns the local tracks to attach to a peer connection.
func (s *SampleSource) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{s.audio, s.video}
}

// Audio returns the audio track for sample writers.
func (s *SampleSource) Audio() *webrtc.TrackLocalStaticSample { return s.audio }

// Video returns the video track for sample writers.
func (s *SampleSource) Video() *webrtc.TrackLocalStaticSample { return s.video }

// Close releases the source. Static sample tracks hold no resources.
func (s *SampleSource) Close() error { return nil }

// IsAcquireError reports whether err is a typed acquisition failure and
// returns it if so.
func IsAcquireError(err error) (*AcquireError, bool) {
	var ae *AcquireError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
