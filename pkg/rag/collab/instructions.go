package collab

import (
	"fmt"
	"sort"
	"strings"

	"ai-plugin-engine/internal/entity"
)

const stanceRule = "End your answer with one final line of the form \"STANCE: <your position in one sentence>\"."

func modeRule(mode entity.CollaborationMode) string {
	switch mode {
	case entity.ModeDebate:
		return "Take a clear position from your own field and defend it against the alternatives."
	case entity.ModeReview:
		return "Critically assess the question from your own field: name what holds up, what does not and what is missing."
	default:
		return "Aim for a position that experts from the other fields could accept, while staying true to your own sources."
	}
}

// instructions frames one expert's turn. From round 2 on it carries the
// expert's previous answer and every peer's, ordered by slug.
func instructions(cfg Config, round int, slug string, experts int, previous map[string]entity.ExpertResponse) []string {
	framing := fmt.Sprintf("You are one of %d experts consulted on this question. %s %s", experts, modeRule(cfg.Mode), stanceRule)
	if round == 1 || len(previous) == 0 {
		return []string{framing + " Answer independently."}
	}

	var peers strings.Builder
	fmt.Fprintf(&peers, "Round %d. The other experts answered as follows in the previous round:\n", round)
	slugs := make([]string, 0, len(previous))
	for s := range previous {
		if s != slug {
			slugs = append(slugs, s)
		}
	}
	sort.Strings(slugs)
	for _, s := range slugs {
		p := previous[s]
		fmt.Fprintf(&peers, "\n<expert slug=%q domain=%q confidence=%q>\n%s\n</expert>\n", p.PluginSlug, p.Domain, p.Confidence, strings.TrimSpace(p.Answer))
	}

	parts := []string{framing, peers.String()}
	if own, ok := previous[slug]; ok {
		parts = append(parts, "Your previous answer was:\n"+strings.TrimSpace(own.Answer))
	}
	parts = append(parts, "Start your reply with \"REVISION: <what you changed and why>\" if the other answers change your position, "+
		"or with \"NO REVISION\" if they do not. Then give your full answer.")
	return parts
}
