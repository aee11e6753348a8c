package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"

	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

// Init initializes the PortAudio library. Must be called once before any
// PortAudioIO is constructed.
func Init() error {
	if err := portaudio.Initialize(); err != nil {
		return errors.Wrap(err, "initialize portaudio")
	}
	return nil
}

// Terminate releases PortAudio's resources.
func Terminate() error {
	return errors.Wrap(portaudio.Terminate(), "terminate portaudio")
}

// PortAudioIO captures mono int16 PCM and plays back mono float32 PCM,
// both at protocol.SampleRate in protocol.ChunkSize-frame buffers, on
// separate half-duplex streams opened against the requested devices (-1
// selects the system default).
type PortAudioIO struct {
	inputStream  *portaudio.Stream
	outputStream *portaudio.Stream
	inputBuf     []int16
	outputBuf    []float32
	mu           sync.Mutex
}

// OpenPortAudioIO opens input and output streams on the given device
// indices (-1 for system default).
func OpenPortAudioIO(inputDevice, outputDevice int) (*PortAudioIO, error) {
	a := &PortAudioIO{
		inputBuf:  make([]int16, protocol.ChunkSize),
		outputBuf: make([]float32, protocol.ChunkSize),
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, errors.Wrap(err, "list audio devices")
	}

	inDev, err := resolveDevice(devices, inputDevice, true)
	if err != nil {
		return nil, errors.Wrap(err, "resolve input device")
	}
	outDev, err := resolveDevice(devices, outputDevice, false)
	if err != nil {
		return nil, errors.Wrap(err, "resolve output device")
	}

	inStream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inDev,
			Channels: 1,
			Latency:  inDev.DefaultLowInputLatency,
		},
		SampleRate:      float64(protocol.SampleRate),
		FramesPerBuffer: protocol.ChunkSize,
	}, a.inputBuf)
	if err != nil {
		return nil, errors.Wrap(err, "open input stream")
	}
	a.inputStream = inStream

	outStream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   outDev,
			Channels: 1,
			Latency:  outDev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(protocol.SampleRate),
		FramesPerBuffer: protocol.ChunkSize,
	}, a.outputBuf)
	if err != nil {
		inStream.Close()
		return nil, errors.Wrap(err, "open output stream")
	}
	a.outputStream = outStream

	if err := a.inputStream.Start(); err != nil {
		return nil, errors.Wrap(err, "start input stream")
	}
	if err := a.outputStream.Start(); err != nil {
		return nil, errors.Wrap(err, "start output stream")
	}

	return a, nil
}

func resolveDevice(devices []*portaudio.DeviceInfo, index int, input bool) (*portaudio.DeviceInfo, error) {
	if index < 0 {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}
	if index >= len(devices) {
		return nil, fmt.Errorf("device index %d out of range (have %d devices)", index, len(devices))
	}
	return devices[index], nil
}

// ReadChunk blocks for one chunk duration (~0.2s) and returns the
// captured int16 samples.
func (a *PortAudioIO) ReadChunk(ctx context.Context) ([]int16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.inputStream.Read(); err != nil {
		return nil, fmt.Errorf("audio: read: %w", err)
	}
	out := make([]int16, len(a.inputBuf))
	copy(out, a.inputBuf)
	return out, nil
}

// WriteSamples writes a buffer of float32 samples in protocol.ChunkSize
// chunks, zero-padding the final partial chunk, blocking until the last
// sample has been played.
func (a *PortAudioIO) WriteSamples(ctx context.Context, samples []float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < len(samples); i += protocol.ChunkSize {
		end := i + protocol.ChunkSize
		if end > len(samples) {
			chunk := make([]float32, protocol.ChunkSize)
			copy(chunk, samples[i:])
			copy(a.outputBuf, chunk)
		} else {
			copy(a.outputBuf, samples[i:end])
		}
		if err := a.outputStream.Write(); err != nil {
			return fmt.Errorf("audio: write: %w", err)
		}
	}
	return nil
}

// Close closes both streams.
func (a *PortAudioIO) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if a.inputStream != nil {
		if err := a.inputStream.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.outputStream != nil {
		if err := a.outputStream.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("audio: close errors: %v", errs)
	}
	return nil
}
