package capture

import "sync"

// FakeContext is an in-memory [Context] for tests and headless runs. Each
// NewCapture returns a [FakeDevice] that replays PCM to the callback on
// Start.
type FakeContext struct {
	// PCM is fed to the device callback when the capture starts.
	PCM []byte
	// OpenErr, when set, fails NewCapture.
	OpenErr error
	// StartErr, when set, fails FakeDevice.Start.
	StartErr error
	// DeviceList is returned by Devices.
	DeviceList []DeviceInfo

	mu   sync.Mutex
	last *FakeDevice
}

var _ Context = (*FakeContext)(nil)

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return f.DeviceList, nil
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ Config) (Device, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	d := &FakeDevice{pcm: f.PCM, startErr: f.StartErr}
	f.mu.Lock()
	f.last = d
	f.mu.Unlock()
	return d, nil
}

func (f *FakeContext) Close() {}

// LastDevice returns the most recently opened device, or nil.
func (f *FakeContext) LastDevice() *FakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// FakeDevice replays canned PCM synchronously on Start and records its
// lifecycle for assertions.
type FakeDevice struct {
	pcm      []byte
	startErr error

	mu      sync.Mutex
	cb      DataCallback
	started bool
	stopped bool
	closed  bool
}

var _ Device = (*FakeDevice)(nil)

const fakeChunkBytes = 2048 // 1024 int16 samples

func (d *FakeDevice) Start() error {
	if d.startErr != nil {
		return d.startErr
	}
	d.mu.Lock()
	d.started = true
	cb := d.cb
	d.mu.Unlock()
	if cb == nil {
		return nil
	}
	for pos := 0; pos < len(d.pcm); pos += fakeChunkBytes {
		end := min(pos+fakeChunkBytes, len(d.pcm))
		chunk := make([]byte, end-pos)
		copy(chunk, d.pcm[pos:end])
		cb(chunk, uint32(len(chunk)/2))
	}
	return nil
}

// Feed pushes an extra PCM chunk through the callback, simulating live
// capture after Start returned.
func (d *FakeDevice) Feed(pcm []byte) {
	d.mu.Lock()
	cb := d.cb
	d.mu.Unlock()
	if cb != nil {
		cb(pcm, uint32(len(pcm)/2))
	}
}

func (d *FakeDevice) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}

func (d *FakeDevice) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

func (d *FakeDevice) SetCallback(cb DataCallback) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
}

func (d *FakeDevice) ClearCallback() {
	d.mu.Lock()
	d.cb = nil
	d.mu.Unlock()
}

// Released reports whether the device was both stopped and closed.
func (d *FakeDevice) Released() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped && d.closed
}

// Closed reports whether Close was called.
func (d *FakeDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
