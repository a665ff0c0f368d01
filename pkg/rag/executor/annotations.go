package executor

import (
	"errors"
	"strings"

	"ai-plugin-engine/internal/entity"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errNoJSON = errors.New("reply contains no JSON")

// rawAnnotation is one annotation as the model writes it.
type rawAnnotation struct {
	Severity        string `json:"severity"`
	Category        string `json:"category"`
	Issue           string `json:"issue"`
	SuggestedFix    string `json:"suggestedFix"`
	SuggestedFixAlt string `json:"suggested_fix"`
	Citations       []int  `json:"citations"`
}

// parseAnnotations accepts {"annotations":[...]} or a bare array, optionally
// wrapped in a code fence or surrounded by prose.
func parseAnnotations(reply string) ([]rawAnnotation, error) {
	body := strings.TrimSpace(reply)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")

	open := strings.IndexAny(body, "{[")
	if open < 0 {
		return nil, errNoJSON
	}
	closer := "}"
	if body[open] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(body, closer)
	if end < open {
		return nil, errNoJSON
	}
	body = body[open : end+1]

	var out []rawAnnotation
	if body[0] == '[' {
		if err := json.Unmarshal([]byte(body), &out); err != nil {
			return nil, err
		}
	} else {
		var wrapped struct {
			Annotations *[]rawAnnotation `json:"annotations"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Annotations == nil {
			return nil, errors.New(`reply has no "annotations" field`)
		}
		out = *wrapped.Annotations
	}

	kept := out[:0]
	for _, a := range out {
		if strings.TrimSpace(a.Issue) == "" {
			continue
		}
		if a.SuggestedFix == "" {
			a.SuggestedFix = a.SuggestedFixAlt
		}
		kept = append(kept, a)
	}
	return kept, nil
}

func severityOf(s string) entity.AnnotationSeverity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "critical", "high", "violation":
		return entity.AnnotationError
	case "warning", "warn", "medium", "risk":
		return entity.AnnotationWarning
	default:
		return entity.AnnotationInfo
	}
}

// actionSeverity maps a tree recommendation onto annotation severity.
func actionSeverity(s entity.ActionSeverity) entity.AnnotationSeverity {
	switch s {
	case entity.SeverityCritical:
		return entity.AnnotationError
	case entity.SeverityWarning:
		return entity.AnnotationWarning
	default:
		return entity.AnnotationInfo
	}
}
