package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leandrodaf/midirecorder/internal/logger"
	"github.com/leandrodaf/midirecorder/sdk/contracts"
	"github.com/leandrodaf/midirecorder/sdk/midi"
	"github.com/leandrodaf/midirecorder/sdk/recorder"
	"github.com/leandrodaf/midirecorder/sdk/smf"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type config struct {
	list         bool
	device       int
	outputDevice int
	duration     time.Duration
	outDir       string
	play         bool
	playFile     string
	portable     bool
	logLevel     string
	logFile      string
}

func parseFlags() config {
	var cfg config
	flag.BoolVar(&cfg.list, "list", false, "list MIDI inputs and outputs and exit")
	flag.IntVar(&cfg.device, "device", 0, "MIDI input device to record from")
	flag.IntVar(&cfg.outputDevice, "output-device", 0, "MIDI output device used for playback")
	flag.DurationVar(&cfg.duration, "duration", 0, "stop recording after this long (0 waits for Ctrl+C)")
	flag.StringVar(&cfg.outDir, "out", envOr("MIDIREC_OUT_DIR", "."), "directory for recorded .mid files")
	flag.BoolVar(&cfg.play, "play", false, "play the recording back after saving it")
	flag.StringVar(&cfg.playFile, "play-file", "", "play an existing .mid file instead of recording")
	flag.BoolVar(&cfg.portable, "portable", false, "use the rtmidi driver instead of the native transport")
	flag.StringVar(&cfg.logLevel, "log-level", envOr("MIDIREC_LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.StringVar(&cfg.logFile, "log-file", "", "write logs to this file instead of stderr")
	flag.Parse()
	return cfg
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg := parseFlags()
	log := logger.NewZapLogger()

	level, ok := contracts.ParseLogLevel(cfg.logLevel)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown log level %q\n", cfg.logLevel)
		os.Exit(2)
	}

	opts := []contracts.Option{
		contracts.WithLogger(log),
		contracts.WithLogLevel(level),
	}
	if cfg.logFile != "" {
		opts = append(opts, contracts.WithLogFile(cfg.logFile))
	}
	if cfg.portable {
		opts = append(opts, contracts.WithDriver(drivers.Get()))
	}

	client, err := midi.NewMIDIClient(opts...)
	if err != nil {
		log.Error("Failed to initialize MIDI client", log.Field().Error("error", err))
		os.Exit(1)
	}
	defer client.Stop()

	if err := run(cfg, client, log); err != nil {
		log.Error("midirec failed", log.Field().Error("error", err))
		_ = client.Stop()
		os.Exit(1)
	}
}

func run(cfg config, client contracts.ClientMIDI, log contracts.Logger) error {
	switch {
	case cfg.list:
		return listDevices(client)
	case cfg.playFile != "":
		return playFile(cfg, client, log)
	}

	rec := recorder.NewRecorder(client,
		contracts.WithSessionLogger(log),
		contracts.WithInputDetected(func() { fmt.Println("MIDI input detected") }),
	)
	if err := client.SelectDevice(cfg.device); err != nil {
		return err
	}
	if err := record(cfg, rec); err != nil {
		return err
	}

	if !rec.HasData() {
		log.Warn("Nothing was recorded")
		return nil
	}
	path, err := rec.SaveFile(cfg.outDir, time.Now())
	if err != nil {
		return err
	}
	fmt.Println("Saved", path)

	if cfg.play {
		return play(cfg, client, log, rec.Events())
	}
	return nil
}

func listDevices(client contracts.ClientMIDI) error {
	ins, err := client.ListDevices()
	if err != nil && !errors.Is(err, contracts.ErrNoMIDIDevices) {
		return err
	}
	fmt.Println("Inputs:")
	for _, d := range ins {
		fmt.Printf("  %d: %s (%s)\n", d.ID, d.Name, d.Manufacturer)
	}

	outs, err := client.ListOutputs()
	if err != nil && !errors.Is(err, contracts.ErrNoMIDIDevices) {
		return err
	}
	fmt.Println("Outputs:")
	for _, d := range outs {
		fmt.Printf("  %d: %s (%s)\n", d.ID, d.Name, d.Manufacturer)
	}
	return nil
}

func record(cfg config, rec *recorder.Recorder) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.duration)
		defer cancel()
	}

	if err := rec.StartRecording(); err != nil {
		return err
	}
	fmt.Println("Recording... Press Ctrl+C to stop.")
	<-ctx.Done()
	return rec.StopRecording()
}

func playFile(cfg config, client contracts.ClientMIDI, log contracts.Logger) error {
	f, err := os.Open(cfg.playFile)
	if err != nil {
		return err
	}
	defer f.Close()

	events, err := smf.Decode(f)
	if err != nil {
		return err
	}
	return play(cfg, client, log, events)
}

func play(cfg config, client contracts.ClientMIDI, log contracts.Logger, events []contracts.MidiEvent) error {
	out, err := client.OpenOutput(cfg.outputDevice)
	if err != nil {
		return err
	}
	defer out.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Playing... Press Ctrl+C to stop.")
	err = recorder.NewPlayer(contracts.WithSessionLogger(log)).Play(ctx, events, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
