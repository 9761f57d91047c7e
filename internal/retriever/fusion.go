package retriever

import (
	"sort"

	"github.com/hyperjump/tutor/internal/keyword"
	"github.com/hyperjump/tutor/internal/vector"
)

// FusedResult holds a chunk position and its fused keyword/semantic scores.
type FusedResult struct {
	Position      int
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores normalizes BM25 scores to [0,1] by max.
func NormalizeKeywordScores(hits []keyword.Hit) map[int]float64 {
	normalized := make(map[int]float64, len(hits))
	if len(hits) == 0 {
		return normalized
	}
	maxScore := hits[0].Score
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	for _, h := range hits {
		if maxScore > 0 {
			normalized[h.Position] = h.Score / maxScore
		} else {
			normalized[h.Position] = 0
		}
	}
	return normalized
}

// NormalizeSemanticScores maps cosine similarity to [0,1]; negative similarity counts as 0.
func NormalizeSemanticScores(results []vector.Result) map[int]float64 {
	normalized := make(map[int]float64, len(results))
	for _, r := range results {
		s := r.Score
		if s < 0 {
			s = 0
		}
		normalized[r.Position] = s
	}
	return normalized
}

// Fuse merges keyword and semantic score maps with weights. Results are sorted by fused
// score, ties by position.
func Fuse(keywordScores, semanticScores map[int]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	scoreMap := make(map[int]*FusedResult, len(keywordScores)+len(semanticScores))
	for pos, score := range keywordScores {
		scoreMap[pos] = &FusedResult{Position: pos, KeywordScore: score}
	}
	for pos, score := range semanticScores {
		if result, exists := scoreMap[pos]; exists {
			result.SemanticScore = score
		} else {
			scoreMap[pos] = &FusedResult{Position: pos, SemanticScore: score}
		}
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = (keywordWeight * result.KeywordScore) + (semanticWeight * result.SemanticScore)
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Position < results[j].Position
	})
	return results
}
