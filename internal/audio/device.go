package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo describes one enumerated PortAudio device.
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefault         bool
}

// ListDevices enumerates every PortAudio device visible on the host. The
// slice index of an entry is the value --device-in/--device-out expect
// (cmd/node's --list-devices prints exactly this ordering).
func ListDevices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("audio: list devices: %w", err)
	}

	defaultIn, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("audio: default input device: %w", err)
	}
	defaultOut, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("audio: default output device: %w", err)
	}

	var infos []DeviceInfo
	for _, d := range devices {
		isDefault := (d.Name == defaultIn.Name) || (d.Name == defaultOut.Name)
		infos = append(infos, DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefault:         isDefault,
		})
	}
	return infos, nil
}

// PrintDevices writes the enumerated devices to stdout, one line per
// index, for the --list-devices CLI flag.
func PrintDevices() error {
	devices, err := ListDevices()
	if err != nil {
		return err
	}
	fmt.Println("Audio Devices:")
	for i, d := range devices {
		defaultTag := ""
		if d.IsDefault {
			defaultTag = " [DEFAULT]"
		}
		fmt.Printf("  %d: %s (in:%d out:%d rate:%.0f)%s\n",
			i, d.Name, d.MaxInputChannels, d.MaxOutputChannels,
			d.DefaultSampleRate, defaultTag)
	}
	return nil
}
