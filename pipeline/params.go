// Package pipeline - batch construction of motion-history descriptors and
// their evaluation across a labeled clip collection.
//
// The pipeline owns everything between "here is a directory of clips" and
// "here are the confusion matrices": per-clip parameter resolution, the
// frame loop with its early-stop contract, bounded-concurrency feature
// extraction, and the leave-one-out / hold-out evaluations.
package pipeline

import "github.com/nvr-ai/go-mhi/match"

// ClipParams are the per-clip tuning knobs for motion history construction.
// Zero-valued fields mean "not set" and fall back to the defaults during
// lookup, so override tables only spell out what actually differs.
type ClipParams struct {
	// Theta is the frame-difference motion threshold.
	Theta float32 `yaml:"theta"`
	// Tau is the decay window length in frames.
	Tau float32 `yaml:"tau"`
	// MHIFrame is the frame index at which to snapshot the MHI, i.e. when
	// the action just ends. Zero or negative means run to the end of the
	// clip.
	MHIFrame int `yaml:"mhi_frame"`
}

// DefaultParams returns the parameters applied when neither the dataset
// configuration nor a per-clip override specifies a value.
func DefaultParams() ClipParams {
	return ClipParams{
		Theta:    10,
		Tau:      30,
		MHIFrame: 60,
	}
}

// mergedOver fills the receiver's unset fields from defaults.
func (p ClipParams) mergedOver(defaults ClipParams) ClipParams {
	if p.Theta <= 0 {
		p.Theta = defaults.Theta
	}
	if p.Tau <= 0 {
		p.Tau = defaults.Tau
	}
	if p.MHIFrame <= 0 {
		p.MHIFrame = defaults.MHIFrame
	}
	return p
}

// ParamTable maps clip identities to their parameter overrides. It replaces
// ad hoc per-clip keyword tables with data passed explicitly into the batch
// entry point; there is no process-wide parameter state.
type ParamTable map[match.Key]ClipParams

// Lookup resolves the effective parameters for a clip: the clip's override
// record merged over the supplied defaults. A missing entry yields the
// defaults unchanged.
//
// Arguments:
//   - key: The clip identity.
//   - defaults: Fallback values for unset override fields.
//
// Returns:
//   - ClipParams: The fully resolved parameters.
func (t ParamTable) Lookup(key match.Key, defaults ClipParams) ClipParams {
	override, ok := t[key]
	if !ok {
		return defaults
	}
	return override.mergedOver(defaults)
}
