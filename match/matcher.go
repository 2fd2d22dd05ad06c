// Package match - nearest-neighbor descriptor matching and confusion matrix
// aggregation.
//
// Clips are identified by an (action, participant, trial) key and described
// by a fixed-length moment vector. The matcher predicts each query clip's
// action as the action of its nearest gallery neighbor under Euclidean
// distance, excluding the query's own key so that a collection can be
// evaluated against itself leave-one-out style. Results accumulate into an
// n_actions x n_actions confusion matrix represented as a tensor, which
// also gives hold-out matrix averaging ordinary tensor arithmetic.
package match

import (
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrEmptyGallery is returned when a whole Match call has no eligible
// gallery entries for any query. A single query with no eligible entries is
// skipped rather than failing the batch.
var ErrEmptyGallery = errors.New("match: no eligible gallery entries")

// Key identifies one clip. Actions, participants and trials are 1-based,
// matching the dataset file naming.
type Key struct {
	Action      int
	Participant int
	Trial       int
}

// Less orders keys by action, then participant, then trial. Map iteration in
// Go is randomized; the matcher sorts keys with Less so tie-breaking is
// deterministic across runs.
func (k Key) Less(o Key) bool {
	if k.Action != o.Action {
		return k.Action < o.Action
	}
	if k.Participant != o.Participant {
		return k.Participant < o.Participant
	}
	return k.Trial < o.Trial
}

// FeatureSet maps clip identities to their descriptor vectors.
type FeatureSet map[Key][]float64

// SortedKeys returns the set's keys in deterministic order.
func (f FeatureSet) SortedKeys() []Key {
	keys := make([]Key, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Filter returns the subset of the feature set whose keys satisfy keep.
func (f FeatureSet) Filter(keep func(Key) bool) FeatureSet {
	out := make(FeatureSet)
	for k, v := range f {
		if keep(k) {
			out[k] = v
		}
	}
	return out
}

// Options configures a Match call.
type Options struct {
	// Scale multiplies every pairwise distance. Relative order is unchanged,
	// so predictions are identical for any positive scale; it exists for
	// parity with externally recorded distances. Zero means 1.
	Scale float64
	// Workers bounds the number of goroutines matching queries in parallel.
	// Zero or one runs sequentially.
	Workers int
}

// Distance computes the Euclidean distance between two descriptor vectors,
// multiplied by scale (scale <= 0 is treated as 1).
//
// Arguments:
//   - a: First descriptor.
//   - b: Second descriptor, must have the same length.
//   - scale: Distance scale factor.
//
// Returns:
//   - float64: The scaled distance.
func Distance(a, b []float64, scale float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	if scale <= 0 {
		scale = 1
	}
	return scale * math.Sqrt(sum)
}

// Match predicts an action for every query descriptor by nearest-neighbor
// search over the gallery and aggregates the outcomes into a row-normalized
// confusion matrix.
//
// Gallery entries sharing a query's exact key are excluded, which makes
// passing the same FeatureSet as both arguments a leave-one-out evaluation.
// Ties resolve to the first minimum in sorted key order. Queries with no
// eligible gallery entry are skipped; rows that end up with no predictions
// are left as zeros rather than normalized.
//
// Arguments:
//   - queries: Descriptors to classify.
//   - gallery: Labeled descriptors to search.
//   - nActions: Number of distinct actions; sizes the confusion matrix.
//   - opts: Distance scale and parallelism settings.
//
// Returns:
//   - *tensor.Dense: Float64 confusion matrix of shape (nActions, nActions);
//     row i holds the predicted-action frequencies for true action i+1.
//   - error: If nActions is not positive, a key's action falls outside
//     [1, nActions], descriptor lengths disagree, or no query found any
//     eligible gallery entry.
func Match(queries, gallery FeatureSet, nActions int, opts Options) (*tensor.Dense, error) {
	if nActions <= 0 {
		return nil, errors.Errorf("match: nActions must be positive, got %d", nActions)
	}
	if err := validate(queries, gallery, nActions); err != nil {
		return nil, err
	}

	queryKeys := queries.SortedKeys()
	galleryKeys := gallery.SortedKeys()
	if len(queryKeys) == 0 {
		return nil, errors.Wrap(ErrEmptyGallery, "no queries to match")
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(queryKeys) {
		workers = len(queryKeys)
	}

	counts := make([]float64, nActions*nActions)
	matched := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	chunk := (len(queryKeys) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(queryKeys) {
			end = len(queryKeys)
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(keys []Key) {
			defer wg.Done()
			local := make([]float64, len(counts))
			found := 0
			for _, qk := range keys {
				best, ok := nearest(queries[qk], qk, gallery, galleryKeys, opts.Scale)
				if !ok {
					continue // no eligible gallery entry for this query
				}
				local[(qk.Action-1)*nActions+(best.Action-1)]++
				found++
			}
			mu.Lock()
			for i, v := range local {
				counts[i] += v
			}
			matched += found
			mu.Unlock()
		}(queryKeys[start:end])
	}
	wg.Wait()

	if matched == 0 {
		return nil, errors.Wrapf(ErrEmptyGallery, "%d queries against %d gallery entries",
			len(queryKeys), len(galleryKeys))
	}

	normalizeRows(counts, nActions)
	return tensor.New(tensor.WithShape(nActions, nActions), tensor.WithBacking(counts)), nil
}

// Average combines confusion matrices element-wise into their mean, e.g. to
// summarize per-participant hold-out runs.
//
// Arguments:
//   - matrices: One or more confusion matrices of identical shape.
//
// Returns:
//   - *tensor.Dense: The element-wise mean.
//   - error: If no matrices are given or shapes disagree.
func Average(matrices ...*tensor.Dense) (*tensor.Dense, error) {
	if len(matrices) == 0 {
		return nil, errors.New("match: no matrices to average")
	}
	sum := matrices[0].Clone().(*tensor.Dense)
	for _, m := range matrices[1:] {
		var err error
		sum, err = sum.Add(m)
		if err != nil {
			return nil, errors.Wrap(err, "match: summing confusion matrices")
		}
	}
	avg, err := sum.DivScalar(float64(len(matrices)), true)
	if err != nil {
		return nil, errors.Wrap(err, "match: averaging confusion matrices")
	}
	return avg, nil
}

// nearest scans the gallery in deterministic order for the closest entry
// with a key different from self. The boolean is false when no entry is
// eligible.
func nearest(query []float64, self Key, gallery FeatureSet, galleryKeys []Key, scale float64) (Key, bool) {
	best := Key{}
	bestDist := math.Inf(1)
	found := false
	for _, gk := range galleryKeys {
		if gk == self {
			continue // never compare a clip with itself
		}
		d := Distance(query, gallery[gk], scale)
		if d < bestDist {
			bestDist = d
			best = gk
			found = true
		}
	}
	return best, found
}

// validate checks key ranges and descriptor length consistency up front so
// worker goroutines cannot fail mid-flight.
func validate(queries, gallery FeatureSet, nActions int) error {
	length := -1
	for _, fs := range []FeatureSet{queries, gallery} {
		for k, v := range fs {
			if k.Action < 1 || k.Action > nActions {
				return errors.Errorf("match: action %d out of range [1, %d]", k.Action, nActions)
			}
			if length == -1 {
				length = len(v)
			} else if len(v) != length {
				return errors.Errorf("match: descriptor length mismatch: %d vs %d", len(v), length)
			}
		}
	}
	return nil
}

// normalizeRows divides each row by its sum, leaving all-zero rows alone.
func normalizeRows(counts []float64, n int) {
	for r := 0; r < n; r++ {
		row := counts[r*n : (r+1)*n]
		var sum float64
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			continue // no predictions recorded for this action
		}
		for i := range row {
			row[i] /= sum
		}
	}
}
