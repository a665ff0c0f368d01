package entity

import "github.com/google/uuid"

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// Lower returns the next level down; low stays low.
func (c Confidence) Lower() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// MinConfidence returns the lowest of the given levels, or low when empty.
func MinConfidence(levels ...Confidence) Confidence {
	if len(levels) == 0 {
		return ConfidenceLow
	}
	min := levels[0]
	for _, l := range levels[1:] {
		if l.rank() < min.rank() {
			min = l
		}
	}
	return min
}

type CitationEntry struct {
	ChunkId      uuid.UUID `json:"chunkId"`
	DocumentId   uuid.UUID `json:"documentId"`
	DocumentName string    `json:"documentName"`
	PageNumber   *int      `json:"pageNumber,omitempty"`
	SectionTitle *string   `json:"sectionTitle,omitempty"`
	Excerpt      string    `json:"excerpt"`
	Similarity   float64   `json:"similarity"`
	Rank         int       `json:"rank"`
}
