// Command actionrec runs the motion-history action recognition pipeline over
// a labeled clip collection and prints the resulting confusion matrices.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-mhi/images"
	"github.com/nvr-ai/go-mhi/match"
	"github.com/nvr-ai/go-mhi/pipeline"
	"github.com/nvr-ai/go-mhi/video"
)

func main() {
	var (
		configPath   string
		datasetDir   string
		variant      string
		logLevel     string
		workers      int
		snapshotsDir string
	)
	flag.StringVar(&configPath, "config", "dataset.yaml", "Path to dataset configuration file")
	flag.StringVar(&datasetDir, "dataset", "", "Override the clip directory from the config")
	flag.StringVar(&variant, "variant", "scaled", "Moment variant for the hold-out evaluation (central|scaled)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	flag.IntVar(&workers, "workers", 0, "Override worker count from the config")
	flag.StringVar(&snapshotsDir, "snapshots", "", "Directory to save per-clip MHI/MEI images (disabled when empty)")
	flag.Parse()

	initLogger(logLevel)

	if variant != "central" && variant != "scaled" {
		log.Fatal().Str("variant", variant).Msg("variant must be central or scaled")
	}

	cfg, err := pipeline.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	if datasetDir != "" {
		cfg.Dataset.Dir = datasetDir
	}
	if workers > 0 {
		cfg.Dataset.Workers = workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds := pipeline.Dataset{
		Actions:      cfg.Dataset.Actions,
		Participants: cfg.Dataset.Participants,
		Trials:       cfg.Dataset.Trials,
		Defaults:     cfg.Defaults,
		Overrides:    cfg.ParamTable(),
		Workers:      cfg.Dataset.Workers,
		Open: func(key match.Key) (video.Source, error) {
			name := fmt.Sprintf(cfg.Dataset.Pattern, key.Action, key.Participant, key.Trial)
			return video.OpenClip(filepath.Join(cfg.Dataset.Dir, name),
				video.ClipOptions{TargetWidth: cfg.Dataset.TargetWidth})
		},
	}

	if snapshotsDir != "" {
		if err := os.MkdirAll(snapshotsDir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", snapshotsDir).Msg("creating snapshot directory")
		}
		ds.Snapshot = func(key match.Key, mhiGrid, meiGrid *images.Grid) error {
			base := fmt.Sprintf("A%dP%dT%d", key.Action, key.Participant, key.Trial)
			if err := video.SavePNG(filepath.Join(snapshotsDir, "mhi_"+base+".png"), mhiGrid); err != nil {
				return err
			}
			return video.SavePNG(filepath.Join(snapshotsDir, "mei_"+base+".png"), meiGrid)
		}
	}

	start := time.Now()
	log.Info().
		Int("actions", ds.Actions).
		Int("participants", ds.Participants).
		Int("trials", ds.Trials).
		Str("dir", cfg.Dataset.Dir).
		Msg("extracting features")

	features, err := pipeline.ExtractFeatures(ctx, ds)
	if err != nil {
		log.Fatal().Err(err).Msg("feature extraction failed")
	}
	log.Info().Dur("elapsed", time.Since(start)).Int("clips", len(features.Central)).Msg("features ready")

	opts := match.Options{Scale: cfg.Match.Scale, Workers: cfg.Dataset.Workers}
	nActions := cfg.Dataset.Actions

	central, err := pipeline.LeaveOneOut(features.Central, nActions, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("leave-one-out on central moments failed")
	}
	fmt.Println("Confusion matrix (central moments):")
	fmt.Print(formatMatrix(central))

	scaled, err := pipeline.LeaveOneOut(features.Scaled, nActions, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("leave-one-out on scaled moments failed")
	}
	fmt.Println("Confusion matrix (scaled moments):")
	fmt.Print(formatMatrix(scaled))

	holdOutSet := features.Scaled
	if variant == "central" {
		holdOutSet = features.Central
	}
	holdOut, err := pipeline.HoldOutParticipants(holdOutSet, nActions, cfg.Dataset.Participants, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("participant hold-out failed")
	}
	for i, cm := range holdOut.PerParticipant {
		fmt.Printf("Confusion matrix holding out participant %d:\n", i+1)
		fmt.Print(formatMatrix(cm))
	}
	fmt.Println("Average hold-out confusion matrix:")
	fmt.Print(formatMatrix(holdOut.Average))
}

func initLogger(level string) {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006/01/02 15:04:05"}).
		With().
		Timestamp().
		Logger()

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// formatMatrix renders a confusion matrix with one row per true action.
func formatMatrix(m *tensor.Dense) string {
	shape := m.Shape()
	rows, cols := shape[0], shape[1]
	data := m.Data().([]float64)

	var b strings.Builder
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			fmt.Fprintf(&b, "  %.3f", data[r*cols+c])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
