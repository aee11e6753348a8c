// Package config loads the optional Node Config file (SPEC_FULL §6.2,
// C8): per-node static configuration that overrides any CLI default not
// explicitly set on the command line.
package config

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML schema.
type File struct {
	Address      int    `yaml:"address"`
	MessagesFile string `yaml:"messagesFile"`
	SendLog      string `yaml:"sendLog"`
	ReceiveLog   string `yaml:"receiveLog"`
	Timing       Timing `yaml:"timing"`
	Audio        Audio  `yaml:"audio"`
}

// Timing overrides the CSMA/CA constants that spec.md's configuration
// table allows a deployment to tune.
type Timing struct {
	DIFS time.Duration `yaml:"difs"`
	SIFS time.Duration `yaml:"sifs"`
	Slot time.Duration `yaml:"slot"`
}

// Audio selects capture/playback device indices.
type Audio struct {
	InputDevice  int `yaml:"inputDevice"`
	OutputDevice int `yaml:"outputDevice"`
}

// searchLocations mirrors doismellburning-samoyed's deviceid.go: a fixed
// list of candidate paths, current directory checked first, the first
// that opens wins.
func searchLocations(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	return []string{
		"node.yaml",
		"config/node.yaml",
		"/etc/acoustic-mac/node.yaml",
	}
}

// Load searches path (or, if empty, the fixed candidate list) for a Node
// Config file and parses it. A missing file at every candidate location is
// not an error -- it returns a zero-value File, letting CLI defaults
// stand. A *malformed* file that does exist is fatal, per spec.md §7's
// "malformed input is fatal" stance.
func Load(path string) (File, error) {
	var fp *os.File
	for _, loc := range searchLocations(path) {
		f, err := os.Open(loc)
		if err == nil {
			fp = f
			break
		}
	}
	if fp == nil {
		return File{}, nil
	}
	defer fp.Close()

	data, err := io.ReadAll(fp)
	if err != nil {
		return File{}, errors.Wrapf(err, "read config %s", fp.Name())
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return File{}, errors.Wrapf(err, "parse config %s", fp.Name())
	}
	return cfg, nil
}
