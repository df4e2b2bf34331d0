package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/resonance/internal/config"
	"github.com/himanishpuri/resonance/pkg/logger"
	"github.com/himanishpuri/resonance/pkg/models"
	"github.com/himanishpuri/resonance/pkg/resonance"
	"github.com/himanishpuri/resonance/pkg/resonance/audio"
	"github.com/himanishpuri/resonance/pkg/resonance/capture"
	"github.com/himanishpuri/resonance/pkg/resonance/note"
	"github.com/himanishpuri/resonance/pkg/resonance/session"
	"github.com/himanishpuri/resonance/pkg/resonance/storage"
	"github.com/himanishpuri/resonance/pkg/resonance/tension"
)

func handleListen(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	profile := fs.String("profile", cfg.Tuning.Profile, "Profile ID or name to tune against")
	length := fs.Float64("length", cfg.Tuning.SpeakingLengthMm, "Speaking length in mm, enables tension readings")
	device := fs.String("device", cfg.Audio.Device, "Capture device name (substring match)")
	duration := fs.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	fs.Parse(args)

	svc, err := createService(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	mic, err := capture.Open(capture.Options{
		SampleRate: cfg.Audio.SampleRate,
		FrameSize:  cfg.Audio.FrameSize,
		Device:     *device,
	})
	if err != nil {
		return fmt.Errorf("failed to open microphone: %w", err)
	}
	defer mic.Close()

	fmt.Printf("🎤 Listening at %d Hz, press Ctrl+C to stop\n\n", mic.SampleRate())

	opts := resonance.ListenOptions{ProfileID: *profile, SpeakingLengthMm: *length}
	stats, err := svc.Listen(ctx, mic, opts, func(r session.Reading) {
		fmt.Printf("\r%-60s", formatReading(r))
	})
	fmt.Println()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	fmt.Printf("\n✅ Session finished: %d frames read, %d analyzed, %d dropped, %d with pitch\n",
		stats.Read, stats.Processed, stats.Dropped, stats.Detected)
	return nil
}

func formatReading(r session.Reading) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%8.2f Hz", r.Estimate.Frequency)
	if n := r.Note; n != nil {
		fmt.Fprintf(&b, "  %-4s %+6.1f¢", n.NoteLabel, n.Cents)
		if n.FromProfile {
			b.WriteString(" (profile)")
		}
	}
	if t := r.Tension; t != nil {
		fmt.Fprintf(&b, "  %.0f MPa %s", t.StressMPa, t.Zone)
	}
	return b.String()
}

func handleAnalyze(ctx context.Context, cfg *config.Config, args []string) error {
	positional, flagArgs := splitArgs(args)
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	profile := fs.String("profile", cfg.Tuning.Profile, "Profile ID or name to tune against")
	length := fs.Float64("length", cfg.Tuning.SpeakingLengthMm, "Speaking length in mm, enables tension readings")
	midiOut := fs.String("midi", "", "Write the detected note sequence to this MIDI file")
	asJSON := fs.Bool("json", false, "Print the analysis as JSON")
	fs.Parse(flagArgs)

	if len(positional) != 1 {
		return errUsage
	}
	path := positional[0]

	svc, err := createService(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	fmt.Fprintf(os.Stderr, "🎵 Analyzing %s...\n", path)
	a, err := svc.AnalyzeFile(ctx, path, resonance.ListenOptions{ProfileID: *profile, SpeakingLengthMm: *length})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if *asJSON {
		a.Readings = nil
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a); err != nil {
			return err
		}
	} else {
		printAnalysis(a)
	}

	if *midiOut != "" {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := resonance.ExportMIDI(*midiOut, a.Segments, name); err != nil {
			return fmt.Errorf("failed to export MIDI: %w", err)
		}
		fmt.Fprintf(os.Stderr, "💾 Wrote %d notes to %s\n", len(a.Segments), *midiOut)
	}
	return nil
}

func printAnalysis(a *resonance.Analysis) {
	fmt.Printf("\n📊 %s: %.1fs at %d Hz, %d frames, %d with pitch\n",
		a.Path, float64(a.DurationMs)/1000, a.SampleRate, a.Frames, a.Detected)

	if len(a.Segments) == 0 {
		fmt.Println("\n📭 No notes detected")
		return
	}

	fmt.Printf("\n🎹 %d note(s):\n\n", len(a.Segments))
	for i, seg := range a.Segments {
		fmt.Printf("%3d. %-4s %8.2f Hz %+6.1f¢   %6dms - %6dms\n",
			i+1, seg.Note, seg.Freq, seg.Cents, seg.StartMs, seg.EndMs)
	}
}

func handleCapture(ctx context.Context, cfg *config.Config, args []string) error {
	positional, flagArgs := splitArgs(args)
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	name := fs.String("name", "", "Profile name (required)")
	kind := fs.String("kind", "inharmonicity", "Profile kind: inharmonicity or reference")
	length := fs.Float64("length", 0, "Speaking length in mm stored with the profile")
	fs.Parse(flagArgs)

	if len(positional) != 1 || strings.TrimSpace(*name) == "" {
		return errUsage
	}
	k, err := models.ParseProfileKind(*kind)
	if err != nil {
		return err
	}

	req := resonance.CaptureRequest{Name: *name, Kind: k}
	if *length > 0 {
		req.SpeakingLengthMm = length
	}

	svc, err := createService(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	fmt.Printf("🎼 Capturing profile %q from %s...\n", *name, positional[0])
	res, err := svc.CaptureProfile(ctx, positional[0], req)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	p := res.Value
	fmt.Println("\n✅ Profile saved!")
	fmt.Printf("   ID:      %s\n", p.ID)
	fmt.Printf("   Name:    %s\n", p.Name)
	fmt.Printf("   Kind:    %s\n", p.Kind)
	fmt.Printf("   Notes:   %d\n", len(p.Data))
	printOrigin(res.Origin, res.RemoteErr)
	return nil
}

func handleNote(ctx context.Context, cfg *config.Config, args []string) error {
	positional, flagArgs := splitArgs(args)
	fs := flag.NewFlagSet("note", flag.ExitOnError)
	profile := fs.String("profile", "", "Profile ID or name to compare against")
	fs.Parse(flagArgs)

	if len(positional) != 1 {
		return errUsage
	}

	// a note name prints its tempered frequency
	if midi, err := note.Parse(positional[0]); err == nil {
		fmt.Printf("%s (MIDI %d) = %.3f Hz\n", note.Label(midi), midi, note.Frequency(midi))
		return nil
	}

	freq, err := strconv.ParseFloat(positional[0], 64)
	if err != nil {
		return fmt.Errorf("%q is neither a frequency nor a note name", positional[0])
	}

	var res note.Result
	var ok bool
	if *profile == "" {
		res, ok = note.Map(freq, note.NoProfile())
	} else {
		svc, err := createService(cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, ok, err = svc.MapFrequency(ctx, freq, *profile)
		if err != nil {
			return err
		}
	}
	if !ok {
		return fmt.Errorf("%v is not a positive frequency", freq)
	}

	fmt.Printf("%.3f Hz → %s (MIDI %d), target %.3f Hz, %+.1f cents\n",
		freq, res.NoteLabel, res.MidiIndex, res.TargetFrequency, res.Cents)
	if res.FromProfile {
		fmt.Println("   target taken from profile")
	}
	return nil
}

func handleTension(_ context.Context, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("tension", flag.ExitOnError)
	length := fs.Float64("length", 0, "Speaking length in mm")
	freq := fs.Float64("freq", 0, "Frequency in Hz")
	fs.Parse(args)

	m, ok := tension.Assess(*length, *freq)
	if !ok {
		return errUsage
	}

	fmt.Printf("%.0f mm at %.2f Hz\n", *length, *freq)
	fmt.Printf("   Stress:   %.1f MPa (%s)\n", m.StressMPa, m.Zone)
	fmt.Printf("   Bar:      %.0f%%\n", m.BarPercent)
	fmt.Printf("   Max safe: %.2f Hz\n", tension.MaxSafeFrequency(*length))
	return nil
}

func handleTone(_ context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("tone", flag.ExitOnError)
	name := fs.String("note", "", "Note name, e.g. A4")
	freq := fs.Float64("freq", 0, "Frequency in Hz, used when --note is empty")
	out := fs.String("out", "", "Output WAV file (required)")
	duration := fs.Duration("duration", 2*time.Second, "Tone length")
	partials := fs.Int("partials", 1, "Number of partials including the fundamental")
	b := fs.Float64("b", 0, "Inharmonicity coefficient")
	fs.Parse(args)

	if *out == "" {
		return errUsage
	}
	if *name != "" {
		midi, err := note.Parse(*name)
		if err != nil {
			return err
		}
		*freq = note.Frequency(midi)
	}
	if !(*freq > 0) {
		return errUsage
	}

	t := audio.Tone{
		Frequency:     *freq,
		Duration:      *duration,
		SampleRate:    cfg.Audio.SampleRate,
		Partials:      *partials,
		Inharmonicity: *b,
	}
	if err := audio.WriteTone(*out, t); err != nil {
		return fmt.Errorf("failed to write tone: %w", err)
	}

	fmt.Printf("🔊 Wrote %.3f Hz tone (%d partials, %s) to %s\n", *freq, *partials, *duration, *out)
	return nil
}

func handleProfiles(ctx context.Context, cfg *config.Config, args []string) error {
	action := "list"
	if len(args) > 0 {
		action = args[0]
	}

	svc, err := createService(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	switch action {
	case "list":
		res, err := svc.ListProfiles(ctx)
		if err != nil {
			return fmt.Errorf("failed to list profiles: %w", err)
		}
		if len(res.Value) == 0 {
			fmt.Println("\n📭 No profiles stored")
			return nil
		}
		fmt.Printf("\n📚 Found %d profile(s):\n\n", len(res.Value))
		for i, p := range res.Value {
			fmt.Printf("%d. %q [%s] %d notes\n", i+1, p.Name, p.Kind, len(p.Data))
			fmt.Printf("   ID: %s  created %s\n\n", p.ID, p.CreatedAt.Local().Format(time.DateTime))
		}
		printOrigin(res.Origin, res.RemoteErr)

	case "show":
		if len(args) != 2 {
			return errUsage
		}
		res, err := svc.FindProfile(ctx, args[1])
		if err != nil {
			return err
		}
		p := res.Value
		fmt.Printf("\n%q [%s]\n", p.Name, p.Kind)
		fmt.Printf("   ID:      %s\n", p.ID)
		if p.SpeakingLengthMm != nil {
			fmt.Printf("   Length:  %.0f mm\n", *p.SpeakingLengthMm)
		}
		fmt.Println()
		for _, f := range p.Data {
			r, _ := note.Map(f, note.NoProfile())
			fmt.Printf("   %-4s %9.3f Hz %+6.1f¢\n", r.NoteLabel, f, r.Cents)
		}
		printOrigin(res.Origin, res.RemoteErr)

	case "delete":
		if len(args) != 2 {
			return errUsage
		}
		found, err := svc.FindProfile(ctx, args[1])
		if err != nil {
			return err
		}
		p := found.Value
		res, err := svc.DeleteProfile(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}
		logger.GetLogger().Infof("Deleted profile %s (%q)", p.ID, p.Name)
		fmt.Printf("\n✅ Deleted profile %q (ID: %s)\n", p.Name, p.ID)
		printOrigin(res.Origin, res.RemoteErr)

	default:
		return errUsage
	}
	return nil
}

func handleDevices(context.Context, *config.Config, []string) error {
	devices, err := capture.ListDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("📭 No capture devices found")
		return nil
	}
	for _, d := range devices {
		mark := " "
		if d.IsDefault {
			mark = "*"
		}
		fmt.Printf(" %s %s\n", mark, d.Name)
	}
	return nil
}

func printOrigin(origin storage.Origin, remoteErr error) {
	if remoteErr != nil && !errors.Is(remoteErr, storage.ErrNotFound) {
		fmt.Printf("   ⚠️  remote store unavailable, used local copy (%s): %v\n", origin, remoteErr)
	}
}
