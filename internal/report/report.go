// Package report builds the plain-text annotation progress report: overall
// verification counts plus per-attribute value frequencies computed over the
// verified output documents.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/roadsight/vannot/internal/schema"
	"github.com/roadsight/vannot/internal/store"
)

// timestampLayout matches the filename-safe format used for exports.
const timestampLayout = "2006-01-02_15-04-05"

// Counts maps attribute key -> value -> occurrences over verified records.
type Counts map[string]map[string]int

// Collect tallies attribute values across all verified output documents.
// Malformed output documents are skipped, not fatal.
func Collect(st *store.Store) (Counts, error) {
	ids, err := st.ListOutputs()
	if err != nil {
		return nil, err
	}

	counts := make(Counts, len(schema.CategoricalKeys))
	for _, key := range schema.CategoricalKeys {
		counts[key] = map[string]int{}
	}
	for _, id := range ids {
		attrs, err := st.LoadOutput(id)
		if err != nil {
			continue
		}
		for _, key := range schema.CategoricalKeys {
			if v, ok := attrs[key]; ok {
				counts[key][fmt.Sprintf("%v", v)]++
			}
		}
	}
	return counts, nil
}

// Generate writes the report body. Attribute sections follow the canonical
// key order; within a section values sort by descending count, then
// alphabetically so output is deterministic.
func Generate(w io.Writer, stats store.Stats, counts Counts, now time.Time) error {
	var b strings.Builder

	b.WriteString("# Vehicle Attribute Annotation Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", now.Format("2006-01-02 15:04:05"))

	b.WriteString("## Verification Progress\n")
	fmt.Fprintf(&b, "Total samples: %d\n", stats.Total)
	fmt.Fprintf(&b, "Verified: %d (%.2f%%)\n", stats.Verified, stats.Percent)
	fmt.Fprintf(&b, "Pending: %d\n\n", stats.Pending)

	b.WriteString("## Attribute Statistics\n")
	for _, key := range schema.CategoricalKeys {
		fmt.Fprintf(&b, "\n### %s\n", titleCase(key))
		for _, vc := range sortedCounts(counts[key]) {
			pct := 0.0
			if stats.Verified > 0 {
				pct = float64(vc.count) / float64(stats.Verified) * 100
			}
			fmt.Fprintf(&b, "- %s: %d (%.2f%%)\n", vc.value, vc.count, pct)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Export writes a timestamped report into the output directory and returns
// its path.
func Export(st *store.Store, prefix string, now time.Time) (string, error) {
	ledger, err := st.LoadLedger()
	if err != nil {
		return "", err
	}
	counts, err := Collect(st)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := Generate(&b, ledger.Stats(), counts, now); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.txt", prefix, now.Format(timestampLayout))
	return st.WriteReport(name, []byte(b.String()))
}

type valueCount struct {
	value string
	count int
}

func sortedCounts(m map[string]int) []valueCount {
	out := make([]valueCount, 0, len(m))
	for v, c := range m {
		out = append(out, valueCount{value: v, count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].value < out[j].value
	})
	return out
}

func titleCase(key string) string {
	if key == "" {
		return key
	}
	return strings.ToUpper(key[:1]) + key[1:]
}
