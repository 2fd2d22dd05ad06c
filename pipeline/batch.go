package pipeline

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/nvr-ai/go-mhi/images"
	"github.com/nvr-ai/go-mhi/match"
	"github.com/nvr-ai/go-mhi/mhi"
	"github.com/nvr-ai/go-mhi/moments"
	"github.com/nvr-ai/go-mhi/video"
)

// Dataset enumerates a clip collection and knows how to open each clip.
type Dataset struct {
	// Actions, Participants and Trials bound the key space; every
	// combination in [1..Actions] x [1..Participants] x [1..Trials] names
	// one clip.
	Actions      int
	Participants int
	Trials       int
	// Open produces a frame source for one clip. The pipeline closes it.
	Open func(key match.Key) (video.Source, error)
	// Defaults and Overrides resolve per-clip parameters.
	Defaults  ClipParams
	Overrides ParamTable
	// Snapshot, when non-nil, observes each clip's final MHI and MEI, e.g.
	// to persist them as images. A snapshot error counts as a clip failure.
	Snapshot func(key match.Key, mhiGrid, meiGrid *images.Grid) error
	// Workers bounds concurrent clip processing. Zero or negative means 4;
	// clips are independent so the only shared state is the results map.
	Workers int
}

// Features holds the per-clip descriptors of a completed extraction run, one
// set per moment variant.
type Features struct {
	// Central holds 16-value descriptors built from plain central moments.
	Central match.FeatureSet
	// Scaled holds the scale-invariant variant.
	Scaled match.FeatureSet
}

// ExtractFeatures computes the MHI/MEI moment descriptors for every clip in
// the dataset.
//
// Clips are processed by a bounded pool of workers; each failed clip is
// logged and skipped so one bad file cannot abort a long batch run. The
// error return is reserved for total failure (no clip produced features) and
// context cancellation.
//
// Arguments:
//   - ctx: Cancels the batch between clips.
//   - ds: The clip collection.
//
// Returns:
//   - *Features: Central and scaled descriptor sets keyed by clip identity.
//   - error: If the dataset is misconfigured, the context is cancelled, or
//     every clip failed.
func ExtractFeatures(ctx context.Context, ds Dataset) (*Features, error) {
	if ds.Open == nil {
		return nil, errors.New("pipeline: dataset has no Open function")
	}
	if ds.Actions <= 0 || ds.Participants <= 0 || ds.Trials <= 0 {
		return nil, errors.Errorf("pipeline: dataset bounds must be positive, got %dx%dx%d",
			ds.Actions, ds.Participants, ds.Trials)
	}

	workers := ds.Workers
	if workers <= 0 {
		workers = 4
	}

	features := &Features{
		Central: make(match.FeatureSet),
		Scaled:  make(match.FeatureSet),
	}
	failed := 0

	sem := make(chan struct{}, workers)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for a := 1; a <= ds.Actions; a++ {
		for p := 1; p <= ds.Participants; p++ {
			for t := 1; t <= ds.Trials; t++ {
				key := match.Key{Action: a, Participant: p, Trial: t}

				wg.Add(1)
				go func(key match.Key) {
					defer wg.Done()

					sem <- struct{}{}
					defer func() { <-sem }()

					if ctx.Err() != nil {
						return
					}

					central, scaled, err := extractClip(ctx, ds, key)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						failed++
						log.Error().Err(err).
							Int("action", key.Action).
							Int("participant", key.Participant).
							Int("trial", key.Trial).
							Msg("clip failed, skipping")
						return
					}
					features.Central[key] = central
					features.Scaled[key] = scaled
				}(key)
			}
		}
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "pipeline: batch cancelled")
	}
	if len(features.Central) == 0 {
		return nil, errors.Errorf("pipeline: all %d clips failed", failed)
	}
	if failed > 0 {
		log.Warn().Int("failed", failed).Int("ok", len(features.Central)).Msg("batch finished with failures")
	}
	return features, nil
}

// extractClip runs one clip end to end: MHI construction, MEI derivation,
// and both moment descriptor variants.
func extractClip(ctx context.Context, ds Dataset, key match.Key) (central, scaled []float64, err error) {
	src, err := ds.Open(key)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening clip")
	}
	defer src.Close()

	params := ds.Overrides.Lookup(key, ds.Defaults)

	mhiGrid, err := BuildMHI(ctx, src, params, nil)
	if err != nil {
		return nil, nil, err
	}
	meiGrid := mhi.MEI(mhiGrid)

	if ds.Snapshot != nil {
		if err := ds.Snapshot(key, mhiGrid, meiGrid); err != nil {
			return nil, nil, errors.Wrap(err, "saving snapshot")
		}
	}

	mhiMoments := moments.Compute(mhiGrid)
	meiMoments := moments.Compute(meiGrid)

	log.Debug().
		Int("action", key.Action).
		Int("participant", key.Participant).
		Int("trial", key.Trial).
		Float64("mhi_mass", mhiMoments.Mass).
		Float64("mei_mass", meiMoments.Mass).
		Msg("clip features extracted")

	return moments.Descriptor(mhiMoments, meiMoments, false),
		moments.Descriptor(mhiMoments, meiMoments, true),
		nil
}
