package capture_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/petspeakapp/petspeak/pkg/capture"
)

// sinePCM builds n int16 samples of a crude loud waveform.
func sinePCM(n int) []byte {
	pcm := make([]byte, n*2)
	for i := range n {
		v := int16(8000)
		if i%2 == 0 {
			v = -8000
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func TestRecorder_OneArtifactPerCycle(t *testing.T) {
	t.Parallel()
	pcm := sinePCM(capture.SampleRate) // one second of audio
	fake := &capture.FakeContext{PCM: pcm}
	r := capture.NewRecorder(fake)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := r.State(); got != capture.StateRecording {
		t.Fatalf("state = %q, want recording", got)
	}

	art, err := r.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if art.MIMEType != capture.MIMETypeWAV {
		t.Errorf("mime = %q, want %q", art.MIMEType, capture.MIMETypeWAV)
	}
	if len(art.Bytes) != capture.WAVHeaderSize+len(pcm) {
		t.Errorf("artifact size = %d, want %d", len(art.Bytes), capture.WAVHeaderSize+len(pcm))
	}
	if got := art.Duration.Seconds(); got < 0.99 || got > 1.01 {
		t.Errorf("duration = %.3fs, want ~1s", got)
	}
	if string(art.Bytes[0:4]) != "RIFF" || string(art.Bytes[8:12]) != "WAVE" {
		t.Error("artifact is not a WAV file")
	}

	// Stopping again must not mint a second artifact.
	if _, err := r.Stop(); !errors.Is(err, capture.ErrNotRecording) {
		t.Errorf("second stop error = %v, want ErrNotRecording", err)
	}
	if r.Artifact() != art {
		t.Error("held artifact should be the one returned by Stop")
	}
}

func TestRecorder_StartWhileRecording(t *testing.T) {
	t.Parallel()
	fake := &capture.FakeContext{}
	r := capture.NewRecorder(fake)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, capture.ErrAlreadyRecording) {
		t.Errorf("re-entrant start error = %v, want ErrAlreadyRecording", err)
	}
	if _, err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestRecorder_PermissionDenied(t *testing.T) {
	t.Parallel()
	fake := &capture.FakeContext{OpenErr: errors.New("no such device")}
	r := capture.NewRecorder(fake)

	err := r.Start(context.Background())
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("start error = %v, want ErrPermissionDenied", err)
	}
	if got := r.State(); got != capture.StateIdle {
		t.Errorf("state = %q, want idle after denied start", got)
	}
}

func TestRecorder_FailedDeviceStartReleasesDevice(t *testing.T) {
	t.Parallel()
	fake := &capture.FakeContext{StartErr: errors.New("device busy")}
	r := capture.NewRecorder(fake)

	if err := r.Start(context.Background()); !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("start error = %v, want ErrPermissionDenied", err)
	}
	dev := fake.LastDevice()
	if dev == nil {
		t.Fatal("device should have been opened")
	}
	if !dev.Closed() {
		t.Error("device must be closed when Start fails")
	}
}

func TestRecorder_StopReleasesDevice(t *testing.T) {
	t.Parallel()
	fake := &capture.FakeContext{PCM: sinePCM(1024)}
	r := capture.NewRecorder(fake)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !fake.LastDevice().Released() {
		t.Error("device must be stopped and closed after Stop")
	}
}

func TestRecorder_ResetDiscardsArtifactAndReleasesDevice(t *testing.T) {
	t.Parallel()
	fake := &capture.FakeContext{PCM: sinePCM(1024)}
	r := capture.NewRecorder(fake)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.Artifact() == nil {
		t.Fatal("artifact should be held after stop")
	}

	r.Reset()
	if r.Artifact() != nil {
		t.Error("reset should discard the artifact")
	}

	// Reset mid-recording aborts without an artifact and releases the device.
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	r.Reset()
	if got := r.State(); got != capture.StateIdle {
		t.Errorf("state = %q, want idle after reset", got)
	}
	if r.Artifact() != nil {
		t.Error("aborted recording must not produce an artifact")
	}
	if !fake.LastDevice().Released() {
		t.Error("device must be released by mid-recording reset")
	}
}

func TestRecorder_LevelSamplesLengthConstant(t *testing.T) {
	t.Parallel()
	fake := &capture.FakeContext{PCM: sinePCM(4096)}
	r := capture.NewRecorder(fake)

	if got := len(r.Meter().Samples()); got != capture.LevelBuckets {
		t.Fatalf("idle samples length = %d, want %d", got, capture.LevelBuckets)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := len(r.Meter().Samples()); got != capture.LevelBuckets {
		t.Errorf("recording samples length = %d, want %d", got, capture.LevelBuckets)
	}
	if _, err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := len(r.Meter().Samples()); got != capture.LevelBuckets {
		t.Errorf("stopped samples length = %d, want %d", got, capture.LevelBuckets)
	}
}
