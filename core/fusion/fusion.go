package fusion

import (
	"github.com/siherrmann/hybridrag/model"
)

// DefaultK is the reciprocal rank constant. Larger values flatten the
// difference between top and lower ranks.
const DefaultK = 60.0

// MetadataKeyRanks is the payload metadata key holding the per-source ranks
const MetadataKeyRanks = "fusion_ranks"

// Rank is the position and raw score of a result in one source list
type Rank struct {
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

// Fuser merges tagged result lists with weighted reciprocal rank fusion:
// score(id) = sum over sources of weight/(rank+K), rank starting at 1.
type Fuser struct {
	K       float64
	Weights map[model.Source]float64
}

// NewFuser creates a fuser with the given constant and per-source weights.
// A non-positive k falls back to DefaultK, a missing weight counts as 1.
func NewFuser(k float64, weights map[model.Source]float64) *Fuser {
	if k <= 0 {
		k = DefaultK
	}
	w := make(map[model.Source]float64, len(weights))
	for source, weight := range weights {
		w[source] = weight
	}
	return &Fuser{K: k, Weights: w}
}

func (f *Fuser) weight(source model.Source) float64 {
	if w, ok := f.Weights[source]; ok {
		return w
	}
	return 1
}

func (f *Fuser) k() float64 {
	if f.K <= 0 {
		return DefaultK
	}
	return f.K
}

// Fuse merges the vector and graph result lists
func (f *Fuser) Fuse(vector, graph []model.RetrievalResult) []model.RetrievalResult {
	return f.FuseLists(vector, graph)
}

type fused struct {
	best  model.RetrievalResult
	score float64
	ranks map[model.Source]Rank
}

// FuseLists merges any number of result lists. Each list is ranked by its
// own order after sorting, the source of a list is taken from its results.
// An id repeated within one list counts once, at its best rank. Nothing is
// dropped: the output holds every distinct id of the input, sorted by fused
// score, then source priority, then id. Empty inputs give an empty list.
func (f *Fuser) FuseLists(lists ...[]model.RetrievalResult) []model.RetrievalResult {
	merged := make(map[string]*fused)
	order := []string{}
	k := f.k()

	for _, list := range lists {
		ranked := make([]model.RetrievalResult, len(list))
		copy(ranked, list)
		model.SortResults(ranked)

		seen := make(map[string]bool, len(ranked))
		rank := 0
		for _, r := range ranked {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			rank++

			entry, ok := merged[r.ID]
			if !ok {
				entry = &fused{best: r, ranks: make(map[model.Source]Rank)}
				merged[r.ID] = entry
				order = append(order, r.ID)
			} else if r.Source.Priority() < entry.best.Source.Priority() {
				entry.best = r
			}

			// The same source in two lists keeps its better rank only
			if prev, ok := entry.ranks[r.Source]; ok {
				if prev.Rank <= rank {
					continue
				}
				entry.score -= f.weight(r.Source) / (float64(prev.Rank) + k)
			}
			entry.ranks[r.Source] = Rank{Rank: rank, Score: r.Score}
			entry.score += f.weight(r.Source) / (float64(rank) + k)
		}
	}

	results := make([]model.RetrievalResult, 0, len(order))
	for _, id := range order {
		entry := merged[id]
		result := entry.best.WithScore(entry.score)
		if result.Payload.Metadata == nil {
			result.Payload.Metadata = model.Metadata{}
		}
		ranks := make(map[string]interface{}, len(entry.ranks))
		for source, rank := range entry.ranks {
			ranks[string(source)] = rank
		}
		result.Payload.Metadata[MetadataKeyRanks] = ranks
		results = append(results, result)
	}
	model.SortResults(results)

	return results
}
