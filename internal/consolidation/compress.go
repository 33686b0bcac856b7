package consolidation

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
)

const consolidationSummaryMaxChars = 500

// runCompression is phase 4: for every cluster past the size threshold,
// write a short statistical-summary memory describing its shared themes,
// leaving every source memory untouched.
func (p *Pipeline) runCompression(ctx context.Context, runID string, clusters clusterOutput) (PhaseResult, error) {
	minSize := p.cfg.CompressionMinSize
	if minSize == 0 {
		minSize = 5
	}
	maxChars := p.cfg.CompressionMaxChars
	if maxChars == 0 {
		maxChars = consolidationSummaryMaxChars
	}

	summaries := 0
	for _, c := range clusters.Clusters {
		if len(c.Hashes) < minSize {
			continue
		}

		var members []*memory.Memory
		for _, h := range c.Hashes {
			if m := clusters.byMemories[h]; m != nil {
				members = append(members, m)
			}
		}
		if len(members) == 0 {
			continue
		}

		sharedTags := sharedTags(members)
		topGrams := topNGrams(members, 5)
		summaryText := buildSummaryText(len(members), sharedTags, topGrams, maxChars)

		tags := append([]string{}, sharedTags...)
		tags = append(tags, fmt.Sprintf("consolidated:%s", runID))

		summary, err := memory.New(summaryText, tags, memory.TypeConsolidationSummary, nil)
		if err != nil {
			return PhaseResult{}, err
		}
		if _, err := p.store.Store(ctx, summary); err != nil {
			return PhaseResult{}, err
		}
		summaries++
	}

	return PhaseResult{Ran: true, Summaries: summaries}, nil
}

// sharedTags returns tags present on every member of the cluster.
func sharedTags(members []*memory.Memory) []string {
	if len(members) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, m := range members {
		for _, t := range m.Tags {
			counts[t]++
		}
	}
	var shared []string
	for tag, n := range counts {
		if n == len(members) {
			shared = append(shared, tag)
		}
	}
	sort.Strings(shared)
	return shared
}

var wordPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9'-]{2,}`)

// topNGrams extracts the n most frequent unigrams across member content,
// a crude but stable proxy for "cluster themes" without an NLP dependency
// in the pack suited to the job.
func topNGrams(members []*memory.Memory, n int) []string {
	counts := make(map[string]int)
	for _, m := range members {
		for _, w := range wordPattern.FindAllString(strings.ToLower(m.Content), -1) {
			counts[w]++
		}
	}
	type wc struct {
		word  string
		count int
	}
	list := make([]wc, 0, len(counts))
	for w, c := range counts {
		list = append(list, wc{w, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].word < list[j].word
	})
	if len(list) > n {
		list = list[:n]
	}
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.word
	}
	return out
}

func buildSummaryText(memberCount int, tags, grams []string, maxChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cluster of %d related memories", memberCount)
	if len(tags) > 0 {
		fmt.Fprintf(&b, ", tagged %s", strings.Join(tags, ", "))
	}
	if len(grams) > 0 {
		fmt.Fprintf(&b, ", themes: %s", strings.Join(grams, ", "))
	}
	b.WriteString(".")

	out := b.String()
	if len(out) > maxChars {
		out = out[:maxChars]
	}
	return out
}
