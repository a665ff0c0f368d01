package collab

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/pkg/rag/stance"
)

const (
	topicExclusion = "expert-exclusion"
	topicLimit     = 120
)

// Synthesize builds the consensus from the final round. exclusions are the
// conflict entries recorded for excluded experts and excluded is their count.
//
// Stances are clustered by token overlap. More than one cluster yields a
// conflict on the query, resolved when one cluster holds a strict majority.
// The answer comes from the largest cluster; agreementLevel is that cluster's
// share of every expert that took part, so it is 1 exactly when no conflict
// was recorded.
func Synthesize(query string, responses []entity.ExpertResponse, exclusions []entity.ConflictEntry, excluded int) entity.ConsensusData {
	out := entity.ConsensusData{
		Citations:           []entity.CitationEntry{},
		Conflicts:           append([]entity.ConflictEntry{}, exclusions...),
		ExpertContributions: []entity.ExpertContribution{},
	}
	if len(responses) == 0 {
		out.Confidence = entity.ConfidenceLow
		return out
	}

	stances := make([]string, len(responses))
	for i, r := range responses {
		stances[i] = r.Stance
		if stances[i] == "" {
			stances[i] = stance.Extract(r.Answer)
		}
	}
	clusters := stance.Cluster(stances)
	winner := pickWinner(clusters, responses)
	members := map[int]bool{}
	for _, i := range winner {
		members[i] = true
	}

	unresolved := false
	if len(clusters) > 1 {
		entry := entity.ConflictEntry{Topic: topic(query)}
		for i, r := range responses {
			entry.Positions = append(entry.Positions, entity.StancePosition{Expert: r.PluginSlug, Stance: stances[i]})
		}
		if 2*len(winner) > len(responses) {
			entry.Resolved = true
			entry.Resolution = "majority: " + stances[winner[0]]
		} else {
			unresolved = true
		}
		out.Conflicts = append(out.Conflicts, entry)
	}

	rep := representative(winner, responses)
	out.Answer = stance.StripStance(responses[rep].Answer)

	total := len(responses) + excluded
	out.AgreementLevel = float64(len(winner)) / float64(total)

	levels := make([]entity.Confidence, 0, len(winner))
	seen := map[string]bool{}
	for _, i := range winner {
		levels = append(levels, responses[i].Confidence)
		for _, c := range responses[i].Citations {
			key := c.ChunkId.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			c.Rank = len(out.Citations) + 1
			out.Citations = append(out.Citations, c)
		}
	}
	out.Confidence = entity.MinConfidence(levels...)
	if unresolved {
		out.Confidence = out.Confidence.Lower()
	}

	for i, r := range responses {
		out.ExpertContributions = append(out.ExpertContributions, entity.ExpertContribution{
			PluginSlug: r.PluginSlug,
			Domain:     r.Domain,
			Confidence: r.Confidence,
			Agrees:     members[i],
			Revised:    r.Revised,
		})
	}
	return out
}

// pickWinner prefers the larger cluster, then the higher summed confidence,
// then the cluster holding the alphabetically first slug.
func pickWinner(clusters [][]int, responses []entity.ExpertResponse) []int {
	ranked := append([][]int{}, clusters...)
	sort.SliceStable(ranked, func(a, b int) bool {
		ca, cb := ranked[a], ranked[b]
		if len(ca) != len(cb) {
			return len(ca) > len(cb)
		}
		sa, sb := confidenceSum(ca, responses), confidenceSum(cb, responses)
		if sa != sb {
			return sa > sb
		}
		return firstSlug(ca, responses) < firstSlug(cb, responses)
	})
	return ranked[0]
}

func confidenceSum(cluster []int, responses []entity.ExpertResponse) int {
	sum := 0
	for _, i := range cluster {
		sum += confidenceScore(responses[i].Confidence)
	}
	return sum
}

func confidenceScore(c entity.Confidence) int {
	switch c {
	case entity.ConfidenceHigh:
		return 3
	case entity.ConfidenceMedium:
		return 2
	default:
		return 1
	}
}

func firstSlug(cluster []int, responses []entity.ExpertResponse) string {
	first := responses[cluster[0]].PluginSlug
	for _, i := range cluster[1:] {
		if responses[i].PluginSlug < first {
			first = responses[i].PluginSlug
		}
	}
	return first
}

// representative is the most confident member, ties going to the first slug.
func representative(cluster []int, responses []entity.ExpertResponse) int {
	best := cluster[0]
	for _, i := range cluster[1:] {
		ci, cb := confidenceScore(responses[i].Confidence), confidenceScore(responses[best].Confidence)
		if ci > cb || (ci == cb && responses[i].PluginSlug < responses[best].PluginSlug) {
			best = i
		}
	}
	return best
}

func topic(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if utf8.RuneCountInString(query) <= topicLimit {
		return query
	}
	return string([]rune(query)[:topicLimit]) + "…"
}

func exclusionEntry(slug string, round int, reason string) entity.ConflictEntry {
	return entity.ConflictEntry{
		Topic:      topicExclusion,
		Positions:  []entity.StancePosition{{Expert: slug, Stance: "no response: " + reason}},
		Resolved:   true,
		Resolution: "excluded from consensus after failing twice in round " + strconv.Itoa(round),
	}
}
