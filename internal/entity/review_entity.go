package entity

type AnnotationSeverity string

const (
	AnnotationInfo    AnnotationSeverity = "info"
	AnnotationWarning AnnotationSeverity = "warning"
	AnnotationError   AnnotationSeverity = "error"
)

type Compliance string

const (
	Compliant          Compliance = "compliant"
	PartiallyCompliant Compliance = "partially-compliant"
	NonCompliant       Compliance = "non-compliant"
)

type ReviewAnnotation struct {
	SegmentIndex int                `json:"segmentIndex"`
	LineStart    int                `json:"lineStart"`
	LineEnd      int                `json:"lineEnd"`
	Severity     AnnotationSeverity `json:"severity"`
	Category     string             `json:"category"`
	Issue        string             `json:"issue"`
	SuggestedFix string             `json:"suggestedFix"`
	Citations    []CitationEntry    `json:"citations"`
	Confidence   Confidence         `json:"confidence"`
	CitationGap  bool               `json:"citationGap,omitempty"`
}

type SeverityCounts struct {
	Info    int `json:"info"`
	Warning int `json:"warning"`
	Error   int `json:"error"`
}

type ReviewSummary struct {
	Total      int            `json:"total"`
	BySeverity SeverityCounts `json:"bySeverity"`
	Compliance Compliance     `json:"compliance"`
}

// Summarize counts annotations and classifies compliance:
// any error is non-compliant, warnings without errors are partially compliant.
func Summarize(annotations []ReviewAnnotation) ReviewSummary {
	s := ReviewSummary{Total: len(annotations)}
	for _, a := range annotations {
		switch a.Severity {
		case AnnotationError:
			s.BySeverity.Error++
		case AnnotationWarning:
			s.BySeverity.Warning++
		default:
			s.BySeverity.Info++
		}
	}
	switch {
	case s.BySeverity.Error > 0:
		s.Compliance = NonCompliant
	case s.BySeverity.Warning > 0:
		s.Compliance = PartiallyCompliant
	default:
		s.Compliance = Compliant
	}
	return s
}
