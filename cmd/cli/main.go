package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/resonance/internal/config"
	"github.com/himanishpuri/resonance/pkg/logger"
	"github.com/himanishpuri/resonance/pkg/resonance"
)

// Global flags
var (
	configPath string
	dbPath     string
	tempDir    string
	sampleRate int
)

func init() {
	// Global flags that can be used with any command
	flag.StringVar(&configPath, "config", os.Getenv("RESONANCE_CONFIG"), "Path to YAML config file")
	flag.StringVar(&dbPath, "db", "", "Path to the SQLite profile database, overrides storage.db_path")
	flag.StringVar(&tempDir, "temp", "", "Directory for temporary audio conversion files")
	flag.IntVar(&sampleRate, "rate", 0, "Capture and conversion sample rate")
}

type command struct {
	usage string
	run   func(ctx context.Context, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"listen":   {"listen [--profile <id|name>] [--length <mm>] [--device <name>]", handleListen},
	"analyze":  {"analyze <audio_file> [--profile <id|name>] [--length <mm>] [--midi <out.mid>] [--json]", handleAnalyze},
	"capture":  {"capture <audio_file> --name <name> [--kind inharmonicity|reference] [--length <mm>]", handleCapture},
	"note":     {"note <freq|name> [--profile <id|name>]", handleNote},
	"tension":  {"tension --length <mm> --freq <hz>", handleTension},
	"tone":     {"tone --note <name> | --freq <hz> --out <file.wav> [--duration 2s] [--partials 6] [--b 0.0004]", handleTone},
	"profiles": {"profiles [list | show <id|name> | delete <id|name>]", handleProfiles},
	"devices":  {"devices", handleDevices},
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Printf("Unknown command: %s\n", name)
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = cmd.run(ctx, cfg, flag.Args()[1:])
	stop()

	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Println("Usage: resonance " + cmd.usage)
		} else {
			fmt.Printf("\n❌ %v\n", err)
		}
		os.Exit(1)
	}
}

// errUsage makes main print the command's usage line.
var errUsage = errors.New("usage")

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if tempDir != "" {
		cfg.Audio.TempDir = tempDir
	}
	if sampleRate > 0 {
		cfg.Audio.SampleRate = sampleRate
	}

	log := logger.GetLogger()
	if lvl, err := logger.ParseLevel(cfg.Server.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if os.Getenv("NO_COLOR") != "" {
		log.SetColorize(false)
	}
	return cfg, nil
}

// createService creates the tuner service from the loaded configuration
func createService(cfg *config.Config) (resonance.Service, error) {
	opts := append(cfg.ServiceOptions(), resonance.WithLogger(logger.GetLogger().With("[service]")))
	svc, err := resonance.NewService(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, nil
}

// splitArgs separates leading positional arguments from the flags that
// follow them, so "analyze take.wav --midi out.mid" parses as expected.
func splitArgs(args []string) (positional, flags []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return positional, args[i:]
		}
		positional = append(positional, arg)
	}
	return positional, nil
}

func printUsage() {
	fmt.Println("Resonance - piano tuning assistant")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --config <path>    YAML config file (env: RESONANCE_CONFIG)")
	fmt.Println("  --db <path>        SQLite profile database (env: RESONANCE_DB_PATH)")
	fmt.Println("  --temp <dir>       Temporary directory for audio conversion")
	fmt.Println("  --rate <hz>        Sample rate for capture and conversion")
	fmt.Println("\nUsage:")
	for _, name := range []string{"listen", "analyze", "capture", "note", "tension", "tone", "profiles", "devices"} {
		fmt.Println("  resonance [global-options] " + commands[name].usage)
	}
	fmt.Println("\nExamples:")
	fmt.Println("  # Tune live against a stored profile, with tension readings for a 380 mm string")
	fmt.Println("  resonance listen --profile \"Steinway B\" --length 380")
	fmt.Println()
	fmt.Println("  # Transcribe a recording and export the note sequence")
	fmt.Println("  resonance analyze scale.wav --midi scale.mid")
	fmt.Println()
	fmt.Println("  # Render a stretched A4 reference tone")
	fmt.Println("  resonance tone --note A4 --partials 8 --b 0.0004 --out a4.wav")
}
