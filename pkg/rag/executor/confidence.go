package executor

import (
	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/pkg/rag/citation"
	"ai-plugin-engine/pkg/rag/decision"
)

// scoreConfidence grades an answer. Cited answers are graded by paragraph
// coverage, uncited ones by the best excerpt similarity. Invalid markers and a
// tree walk that halted without an action each lower the grade one level.
func scoreConfidence(mode entity.CitationMode, report citation.Report, chunks []*entity.RetrievedChunk, outcome *decision.Outcome) entity.Confidence {
	if len(chunks) == 0 {
		return entity.ConfidenceLow
	}

	var level entity.Confidence
	if mode == entity.CitationModeMandatory || len(report.Valid) > 0 {
		switch {
		case report.Coverage >= 0.5:
			level = entity.ConfidenceHigh
		case report.Coverage > 0:
			level = entity.ConfidenceMedium
		default:
			level = entity.ConfidenceLow
		}
	} else {
		level = bySimilarity(chunks[0].Similarity)
	}

	if len(report.Invalid) > 0 {
		level = level.Lower()
	}
	if outcome != nil && len(outcome.Path) > 0 && !outcome.Terminal {
		level = level.Lower()
	}
	return level
}

func bySimilarity(similarity float64) entity.Confidence {
	switch {
	case similarity >= 0.75:
		return entity.ConfidenceHigh
	case similarity >= 0.55:
		return entity.ConfidenceMedium
	default:
		return entity.ConfidenceLow
	}
}
