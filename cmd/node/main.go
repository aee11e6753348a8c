package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/jeongseonghan/acoustic-mac/internal/audio"
	"github.com/jeongseonghan/acoustic-mac/internal/config"
	"github.com/jeongseonghan/acoustic-mac/internal/monitor"
	"github.com/jeongseonghan/acoustic-mac/internal/node"
	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

func main() {
	address := pflag.IntP("address", "a", 0, "this node's unicast address, 1|2|3")
	configPath := pflag.StringP("config", "c", "", "optional YAML config path")
	messages := pflag.StringP("messages", "m", "messages.txt", "input file for the Transmitter")
	sendLog := pflag.String("send-log", "send.txt", "sent-message log path")
	receiveLog := pflag.String("receive-log", "receive.txt", "received-message log path")
	deviceIn := pflag.Int("device-in", -1, "input device index")
	deviceOut := pflag.Int("device-out", -1, "output device index")
	listDevices := pflag.Bool("list-devices", false, "print audio devices and exit")
	monitorAddr := pflag.String("monitor-addr", "", "optional host:port for the monitor server")
	noConfirm := pflag.Bool("no-confirm", false, "skip the interactive per-line confirmation")
	loopback := pflag.Bool("loopback", false, "use an in-process loopback audio device instead of portaudio")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s --address <1|2|3> [flags]\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *listDevices {
		if err := audio.Init(); err != nil {
			log.Fatalf("initialize audio: %v", err)
		}
		defer audio.Terminate()
		if err := audio.PrintDevices(); err != nil {
			log.Fatalf("list devices: %v", err)
		}
		return
	}

	cfgFile, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	self := resolveAddress(*address, cfgFile)
	if self != protocol.Node01 && self != protocol.Node10 && self != protocol.Node11 {
		pflag.Usage()
		log.Fatalf("invalid --address %d: must be 1, 2 or 3", self)
	}

	cfg := node.Config{
		Self:           self,
		MessagesPath:   resolveString("messages", *messages, cfgFile.MessagesFile),
		SendLogPath:    resolveString("send-log", *sendLog, cfgFile.SendLog),
		ReceiveLogPath: resolveString("receive-log", *receiveLog, cfgFile.ReceiveLog),
		NoConfirm:      *noConfirm,
		DIFS:           cfgFile.Timing.DIFS,
		SIFS:           cfgFile.Timing.SIFS,
		Slot:           cfgFile.Timing.Slot,
	}

	in, out := resolveDevices(*deviceIn, *deviceOut, cfgFile)

	var io audio.IO
	if *loopback {
		io = audio.NewLoopbackIO(protocol.ChunkSize * 64)
	} else {
		if err := audio.Init(); err != nil {
			log.Fatalf("initialize audio: %v", err)
		}
		defer audio.Terminate()

		pa, err := audio.OpenPortAudioIO(in, out)
		if err != nil {
			log.Fatalf("open audio device: %v", err)
		}
		defer pa.Close()
		io = pa
	}

	rt, err := node.New(cfg, io)
	if err != nil {
		log.Fatalf("start node runtime: %v", err)
	}
	defer rt.Close()

	if *monitorAddr != "" {
		mon := monitor.NewServer(*monitorAddr, int(self), rt)
		rt.OnEvent(func(msg string) { mon.Publish("event", msg) })
		go func() {
			if err := mon.Start(); err != nil {
				log.Printf("monitor server stopped: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("node runtime: %v", err)
	}
}

func resolveAddress(flagVal int, cfg config.File) protocol.Address {
	if f := pflag.Lookup("address"); f != nil && !f.Changed && cfg.Address != 0 {
		return protocol.Address(cfg.Address)
	}
	return protocol.Address(flagVal)
}

// resolveString applies Node Config values only when the CLI flag was left
// at its default (not explicitly set), so an explicit flag always wins.
func resolveString(flagName, flagVal, cfgVal string) string {
	if f := pflag.Lookup(flagName); f != nil && !f.Changed && cfgVal != "" {
		return cfgVal
	}
	return flagVal
}

func resolveDevices(flagIn, flagOut int, cfg config.File) (int, int) {
	in, out := flagIn, flagOut
	if f := pflag.Lookup("device-in"); f != nil && !f.Changed && cfg.Audio.InputDevice != 0 {
		in = cfg.Audio.InputDevice
	}
	if f := pflag.Lookup("device-out"); f != nil && !f.Changed && cfg.Audio.OutputDevice != 0 {
		out = cfg.Audio.OutputDevice
	}
	return in, out
}
