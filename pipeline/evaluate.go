package pipeline

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-mhi/match"
)

// LeaveOneOut matches every clip against all other clips in the same
// feature set and returns the resulting confusion matrix. Self-matches are
// excluded by the matcher's key-equality rule.
func LeaveOneOut(features match.FeatureSet, nActions int, opts match.Options) (*tensor.Dense, error) {
	return match.Match(features, features, nActions, opts)
}

// HoldOutResult carries the per-participant confusion matrices of a
// hold-one-participant-out evaluation along with their average.
type HoldOutResult struct {
	// PerParticipant[i] is the confusion matrix with participant i+1 as the
	// query set and everyone else as the gallery.
	PerParticipant []*tensor.Dense
	// Average is the element-wise mean over PerParticipant.
	Average *tensor.Dense
}

// HoldOutParticipants evaluates generalization across people: each
// participant's clips in turn become the query set, matched against the
// remaining participants' clips.
//
// Arguments:
//   - features: Descriptors for the full collection.
//   - nActions: Number of distinct actions.
//   - nParticipants: Number of participants present in the keys.
//   - opts: Matcher options.
//
// Returns:
//   - *HoldOutResult: Per-participant matrices and their average.
//   - error: If any hold-out split has no features or matching fails.
func HoldOutParticipants(features match.FeatureSet, nActions, nParticipants int, opts match.Options) (*HoldOutResult, error) {
	if nParticipants <= 0 {
		return nil, errors.Errorf("pipeline: nParticipants must be positive, got %d", nParticipants)
	}

	result := &HoldOutResult{
		PerParticipant: make([]*tensor.Dense, 0, nParticipants),
	}
	for p := 1; p <= nParticipants; p++ {
		participant := p
		queries := features.Filter(func(k match.Key) bool { return k.Participant == participant })
		gallery := features.Filter(func(k match.Key) bool { return k.Participant != participant })
		if len(queries) == 0 || len(gallery) == 0 {
			return nil, errors.Errorf("pipeline: hold-out split for participant %d is empty", participant)
		}

		cm, err := match.Match(queries, gallery, nActions, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline: hold-out for participant %d", participant)
		}
		result.PerParticipant = append(result.PerParticipant, cm)
	}

	avg, err := match.Average(result.PerParticipant...)
	if err != nil {
		return nil, err
	}
	result.Average = avg
	return result, nil
}
