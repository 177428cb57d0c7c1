package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// State is the recorder lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// Artifact is a finished recording, immutable once produced. Exactly one
// artifact is produced per Start/Stop cycle.
type Artifact struct {
	// Bytes is the complete WAV file (header + PCM).
	Bytes    []byte
	MIMEType string
	Duration time.Duration
}

// Recorder drives the record/stop lifecycle over a capture [Context]. It
// owns the device handle exclusively and releases it on every exit path:
// Stop, Reset, and failed Start.
//
// At most one recording is active at a time; Start during a recording
// returns [ErrAlreadyRecording].
type Recorder struct {
	audio  Context
	device *DeviceInfo
	cfg    Config

	meter         *LevelMeter
	meterInterval time.Duration

	elapsed atomic.Int64 // whole seconds since Start

	mu          sync.Mutex
	state       State
	dev         Device
	artifact    *Artifact
	stopTicker  chan struct{}
	cancelMeter context.CancelFunc

	bufMu sync.Mutex
	buf   []byte
}

// RecorderOption configures a [Recorder].
type RecorderOption func(*Recorder)

// WithDevice selects a specific capture device instead of the system
// default.
func WithDevice(device *DeviceInfo) RecorderOption {
	return func(r *Recorder) { r.device = device }
}

// WithConfig overrides the capture format.
func WithConfig(cfg Config) RecorderOption {
	return func(r *Recorder) { r.cfg = cfg }
}

// WithMeterInterval overrides the level meter polling cadence.
func WithMeterInterval(interval time.Duration) RecorderOption {
	return func(r *Recorder) { r.meterInterval = interval }
}

// NewRecorder creates an idle recorder bound to the given audio context.
func NewRecorder(audio Context, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		audio:         audio,
		cfg:           Config{SampleRate: SampleRate, Channels: Channels},
		meter:         NewLevelMeter(),
		meterInterval: DefaultMeterInterval,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Meter exposes the live loudness meter for display.
func (r *Recorder) Meter() *LevelMeter {
	return r.meter
}

// Elapsed returns the whole seconds recorded so far, updated at 1 Hz.
func (r *Recorder) Elapsed() int {
	return int(r.elapsed.Load())
}

// Artifact returns the artifact from the last completed recording, or nil.
func (r *Recorder) Artifact() *Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.artifact
}

// Start acquires the microphone and begins recording. A failure to open or
// start the device is reported as [ErrPermissionDenied] and leaves the
// recorder idle with no device held.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording {
		return ErrAlreadyRecording
	}

	dev, err := r.audio.NewCapture(r.device, r.cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	r.bufMu.Lock()
	r.buf = r.buf[:0]
	r.bufMu.Unlock()
	r.meter.Reset()

	dev.SetCallback(func(pcm []byte, _ uint32) {
		r.bufMu.Lock()
		r.buf = append(r.buf, pcm...)
		r.bufMu.Unlock()
		r.meter.Feed(pcm)
	})

	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	r.dev = dev
	r.state = StateRecording
	r.elapsed.Store(0)

	r.stopTicker = make(chan struct{})
	go r.tickElapsed(r.stopTicker)

	meterCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancelMeter = cancel
	go r.meter.Run(meterCtx, r.meterInterval)

	return nil
}

// Stop flushes the buffered audio into a single WAV [Artifact], releases the
// device, and returns to idle. Valid only while recording.
func (r *Recorder) Stop() (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return nil, ErrNotRecording
	}
	r.releaseLocked()

	r.bufMu.Lock()
	pcm := r.buf
	r.buf = nil
	r.bufMu.Unlock()

	art := &Artifact{
		Bytes:    EncodeWAV(pcm, int(r.cfg.SampleRate), int(r.cfg.Channels)),
		MIMEType: MIMETypeWAV,
		Duration: PCMDuration(pcm, int(r.cfg.SampleRate), int(r.cfg.Channels)),
	}
	r.artifact = art
	r.state = StateIdle
	return art, nil
}

// Reset discards any held artifact and buffered audio and floors the level
// meter. Valid from any state; an active recording is aborted and its device
// released without producing an artifact.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording {
		r.releaseLocked()
		r.state = StateIdle
	}
	r.bufMu.Lock()
	r.buf = nil
	r.bufMu.Unlock()
	r.artifact = nil
	r.elapsed.Store(0)
	r.meter.Reset()
}

// releaseLocked tears down the device, the elapsed ticker, and the meter
// loop. Caller holds r.mu.
func (r *Recorder) releaseLocked() {
	if r.dev != nil {
		r.dev.ClearCallback()
		r.dev.Stop()
		r.dev.Close()
		r.dev = nil
	}
	if r.stopTicker != nil {
		close(r.stopTicker)
		r.stopTicker = nil
	}
	if r.cancelMeter != nil {
		r.cancelMeter()
		r.cancelMeter = nil
	}
}

func (r *Recorder) tickElapsed(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.elapsed.Add(1)
		}
	}
}
