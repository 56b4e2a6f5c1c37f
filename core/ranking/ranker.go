package ranking

import (
	"context"
	"errors"
	"log/slog"

	"github.com/siherrmann/hybridrag/helper"
	"github.com/siherrmann/hybridrag/model"
)

// ErrScorerFailure marks a failed secondary signal. The ranker then falls
// back to the fused order.
var ErrScorerFailure = errors.New("secondary scorer failed")

// MetadataKeyNearDuplicateOf marks a backfilled result with the id of the
// selected result it nearly duplicates
const MetadataKeyNearDuplicateOf = "near_duplicate_of"

// DefaultAlpha is the weight of the secondary signal in the final score
const DefaultAlpha = 0.5

// Ranker reorders and truncates the fused candidates.
// Without a scorer and with diversity disabled it only truncates.
type Ranker struct {
	Scorer Scorer
	// Alpha weights the secondary score against the normalized fused score
	Alpha float64
	// DiversityThreshold is the shingle Jaccard similarity at which a snippet
	// counts as a near duplicate of a selected one, 0 disables the check
	DiversityThreshold float64
	logger             *slog.Logger
}

// NewRanker creates a ranker. A nil scorer disables the secondary signal.
func NewRanker(scorer Scorer, alpha float64, diversityThreshold float64, logger *slog.Logger) *Ranker {
	return &Ranker{
		Scorer:             scorer,
		Alpha:              alpha,
		DiversityThreshold: diversityThreshold,
		logger:             helper.OrNop(logger),
	}
}

// Rerank returns min(len(candidates), topK) results. The candidates are not
// modified. With diversity enabled, near duplicates are only used to fill up
// to topK: they follow all distinct results, in score order, marked with
// MetadataKeyNearDuplicateOf. If the scorer fails, the results keep the fused order and the
// returned error matches ErrScorerFailure; any other error is a cancellation.
func (r *Ranker) Rerank(ctx context.Context, candidates []model.RetrievalResult, query string, topK int) ([]model.RetrievalResult, error) {
	if topK <= 0 || len(candidates) == 0 {
		return []model.RetrievalResult{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := make([]model.RetrievalResult, len(candidates))
	copy(ranked, candidates)

	var scorerErr error
	if r.Scorer != nil {
		secondary, err := r.Scorer.Score(ctx, query, ranked)
		if err == nil && len(secondary) != len(ranked) {
			err = errors.New("scorer returned a score count different from the candidate count")
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.logger.Warn("Secondary scorer failed, keeping fused order", slog.String("error", err.Error()))
			scorerErr = helper.NewError("rerank", errors.Join(ErrScorerFailure, err))
		} else {
			ranked = r.blend(ranked, secondary)
		}
	}
	model.SortResults(ranked)

	if r.DiversityThreshold > 0 {
		ranked = r.diversify(ranked, topK)
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	return ranked, scorerErr
}

// blend rescales both signals to [0,1] and mixes them by Alpha
func (r *Ranker) blend(results []model.RetrievalResult, secondary []float64) []model.RetrievalResult {
	alpha := r.Alpha
	if alpha < 0 || alpha > 1 {
		alpha = DefaultAlpha
	}

	primary := make([]float64, len(results))
	for i, res := range results {
		primary[i] = res.Score
	}
	primary = minMax(primary)
	secondary = minMax(secondary)

	blended := make([]model.RetrievalResult, len(results))
	for i, res := range results {
		blended[i] = res.WithScore((1-alpha)*primary[i] + alpha*secondary[i])
	}
	return blended
}

// diversify selects results in order, skipping near duplicates of already
// selected ones. Skipped results backfill the tail if fewer than topK remain.
func (r *Ranker) diversify(results []model.RetrievalResult, topK int) []model.RetrievalResult {
	selected := make([]model.RetrievalResult, 0, topK)
	selectedShingles := make([]map[string]bool, 0, topK)
	var skipped []model.RetrievalResult
	var duplicateOf []string

	for _, res := range results {
		if len(selected) == topK {
			break
		}
		s := shingles(res.Payload.Text)
		duplicate := ""
		for i, other := range selectedShingles {
			if jaccard(s, other) >= r.DiversityThreshold {
				duplicate = selected[i].ID
				break
			}
		}
		if duplicate != "" {
			skipped = append(skipped, res)
			duplicateOf = append(duplicateOf, duplicate)
			continue
		}
		selected = append(selected, res)
		selectedShingles = append(selectedShingles, s)
	}

	for i, res := range skipped {
		if len(selected) == topK {
			break
		}
		res.Payload = res.Payload.Clone()
		if res.Payload.Metadata == nil {
			res.Payload.Metadata = model.Metadata{}
		}
		res.Payload.Metadata[MetadataKeyNearDuplicateOf] = duplicateOf[i]
		selected = append(selected, res)
	}

	if len(skipped) > 0 {
		r.logger.Debug("Diversity filter demoted near duplicates", slog.Int("skipped", len(skipped)))
	}

	return selected
}

// minMax rescales values to [0,1]. Equal values all map to 1.
func minMax(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	scaled := make([]float64, len(values))
	for i, v := range values {
		if hi == lo {
			scaled[i] = 1
			continue
		}
		scaled[i] = (v - lo) / (hi - lo)
	}
	return scaled
}
