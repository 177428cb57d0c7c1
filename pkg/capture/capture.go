// Package capture owns the microphone: platform capture backends, the
// record/stop lifecycle, and the live loudness meter. A completed recording
// is handed off as a single immutable [Artifact].
package capture

import "errors"

// Default capture format. 16 kHz mono int16 PCM is what the analysis
// providers expect, so the capture side records in that format directly.
const (
	SampleRate    = 16000
	Channels      = 1
	bitsPerSample = 16
)

var (
	// ErrPermissionDenied reports that the microphone could not be acquired.
	// Callers should surface this as a user-actionable message rather than a
	// generic failure.
	ErrPermissionDenied = errors.New("capture: microphone permission denied")

	// ErrAlreadyRecording is returned by [Recorder.Start] while a recording
	// is in progress.
	ErrAlreadyRecording = errors.New("capture: recording already in progress")

	// ErrNotRecording is returned by [Recorder.Stop] when no recording is in
	// progress.
	ErrNotRecording = errors.New("capture: no recording in progress")
)

// DataCallback receives raw little-endian int16 PCM from a capture device.
type DataCallback func(pcm []byte, frameCount uint32)

// Config selects the capture format requested from the device.
type Config struct {
	SampleRate uint32
	Channels   uint32
}

// DeviceInfo identifies an input device. ID is an opaque platform-specific
// identifier.
type DeviceInfo struct {
	ID   string
	Name string
}

// Context is a handle to the platform audio subsystem.
type Context interface {
	// Devices lists the available capture devices.
	Devices() ([]DeviceInfo, error)
	// NewCapture opens a capture device. A nil device selects the system
	// default input.
	NewCapture(device *DeviceInfo, cfg Config) (Device, error)
	Close()
}

// Device is an open capture stream. Data is delivered through the callback
// set with SetCallback; a nil callback drops frames.
type Device interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}
