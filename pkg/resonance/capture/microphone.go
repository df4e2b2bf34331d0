// Package capture reads mono frames from an audio input device.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/himanishpuri/resonance/pkg/logger"
	"github.com/himanishpuri/resonance/pkg/resonance/audio"
	"github.com/himanishpuri/resonance/pkg/resonance/pitch"
)

// ErrDeviceNotFound is returned when no input device matches the
// requested name.
var ErrDeviceNotFound = errors.New("capture: input device not found")

type Options struct {
	SampleRate int
	FrameSize  int
	// Device selects an input whose name contains this string. Empty
	// means the system default.
	Device string
	// Buffer is the number of complete frames held for a slow reader.
	// Older frames are dropped when it is full.
	Buffer int
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = audio.DefaultSampleRate
	}
	if o.FrameSize <= 0 {
		o.FrameSize = audio.DefaultFrameSize
	}
	if o.Buffer <= 0 {
		o.Buffer = 2
	}
	return o
}

// Microphone is an audio.FrameSource over a capture device.
type Microphone struct {
	opts   Options
	mctx   *malgo.AllocatedContext
	device *malgo.Device
	frames chan pitch.Frame
	done   chan struct{}
	once   sync.Once
	errMu  sync.Mutex
	err    error

	// touched only on the device callback thread
	framer *audio.Framer
}

var _ audio.FrameSource = (*Microphone)(nil)

// Open initializes the audio backend and starts capturing.
func Open(opts Options) (*Microphone, error) {
	opts = opts.withDefaults()
	log := logger.GetLogger().With("[capture]")

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debugf("malgo: %s", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	m := &Microphone{
		opts:   opts,
		mctx:   mctx,
		frames: make(chan pitch.Frame, opts.Buffer),
		done:   make(chan struct{}),
		framer: audio.NewFramer(opts.FrameSize),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(opts.SampleRate)
	cfg.Alsa.NoMMap = 1

	if opts.Device != "" {
		info, err := findDevice(mctx, opts.Device)
		if err != nil {
			m.freeContext()
			return nil, err
		}
		cfg.Capture.DeviceID = info.ID.Pointer()
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.receive(input)
		},
	})
	if err != nil {
		m.freeContext()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		m.freeContext()
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	m.device = device

	log.Infof("capturing at %d Hz, %d-sample frames", opts.SampleRate, opts.FrameSize)
	return m, nil
}

// receive slices the callback buffer into whole frames.
func (m *Microphone) receive(input []byte) {
	// F32 callbacks always carry whole samples
	frames, _ := m.framer.WriteFloat32LE(input[:len(input)&^3])
	for _, samples := range frames {
		m.deliver(pitch.Frame{Samples: samples, SampleRate: m.opts.SampleRate})
	}
}

// deliver never blocks the audio thread.
func (m *Microphone) deliver(f pitch.Frame) {
	select {
	case m.frames <- f:
	default:
		// drop the oldest so the reader sees recent audio
		select {
		case <-m.frames:
		default:
		}
		select {
		case m.frames <- f:
		default:
		}
	}
}

func (m *Microphone) Next(ctx context.Context) (pitch.Frame, error) {
	select {
	case f := <-m.frames:
		return f, nil
	case <-m.done:
		return pitch.Frame{}, io.EOF
	case <-ctx.Done():
		return pitch.Frame{}, ctx.Err()
	}
}

func (m *Microphone) SampleRate() int { return m.opts.SampleRate }

func (m *Microphone) Close() error {
	m.once.Do(func() {
		close(m.done)
		if m.device != nil {
			if err := m.device.Stop(); err != nil {
				m.setErr(fmt.Errorf("stop capture device: %w", err))
			}
			m.device.Uninit()
		}
		m.freeContext()
	})
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.err
}

func (m *Microphone) freeContext() {
	if err := m.mctx.Uninit(); err != nil {
		m.setErr(fmt.Errorf("release audio context: %w", err))
	}
	m.mctx.Free()
}

func (m *Microphone) setErr(err error) {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	if m.err == nil {
		m.err = err
	}
}

// Device describes one capture device.
type Device struct {
	Name      string
	IsDefault bool
}

// ListDevices enumerates capture devices.
func ListDevices() ([]Device, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("list capture devices: %w", err)
	}
	out := make([]Device, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if name == "" {
			name = "Unknown input"
		}
		out = append(out, Device{Name: name, IsDefault: info.IsDefault != 0})
	}
	return out, nil
}

func findDevice(mctx *malgo.AllocatedContext, name string) (*malgo.DeviceInfo, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("list capture devices: %w", err)
	}
	want := strings.ToLower(name)
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), want) {
			info := infos[i]
			return &info, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}
