package report

import (
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadsight/vannot/internal/store"
)

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	fs := memfs.New()
	st := store.New(fs, "input", "output")
	require.NoError(t, st.Bootstrap())
	require.NoError(t, util.WriteFile(fs, "input/a.json", []byte("{}"), 0o644))
	require.NoError(t, util.WriteFile(fs, "input/b.json", []byte("{}"), 0o644))
	require.NoError(t, util.WriteFile(fs, "input/c.json", []byte("{}"), 0o644))
	return st
}

func TestCollect(t *testing.T) {
	st := seedStore(t)
	require.NoError(t, st.SaveOutput("a.json", map[string]any{
		"label": "Car", "vehicle_color": "Red",
	}))
	require.NoError(t, st.SaveOutput("b.json", map[string]any{
		"label": "Car", "vehicle_color": "Blue",
	}))

	counts, err := Collect(st)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["label"]["Car"])
	assert.Equal(t, 1, counts["vehicle_color"]["Red"])
	assert.Equal(t, 1, counts["vehicle_color"]["Blue"])
	assert.Empty(t, counts["brand_name"])
}

func TestCollect_SkipsMalformedOutputs(t *testing.T) {
	st := seedStore(t)
	require.NoError(t, st.SaveOutput("a.json", map[string]any{"label": "Bus"}))
	_, err := st.WriteReport("b.json", []byte("{broken"))
	require.NoError(t, err)

	counts, err := Collect(st)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["label"]["Bus"])
}

func TestGenerate(t *testing.T) {
	stats := store.Stats{Total: 3, Verified: 2, Pending: 1, Percent: 200.0 / 3}
	counts := Counts{
		"label": {"Car": 2},
		"type":  {"Sedan": 1, "SUV": 1},
	}
	now := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)

	var b strings.Builder
	require.NoError(t, Generate(&b, stats, counts, now))
	body := b.String()

	assert.Contains(t, body, "# Vehicle Attribute Annotation Report")
	assert.Contains(t, body, "Generated: 2026-08-29 10:30:00")
	assert.Contains(t, body, "Total samples: 3")
	assert.Contains(t, body, "Verified: 2 (66.67%)")
	assert.Contains(t, body, "Pending: 1")
	assert.Contains(t, body, "### Label")
	assert.Contains(t, body, "- Car: 2 (100.00%)")
	// Equal counts order alphabetically.
	assert.Less(t, strings.Index(body, "- SUV: 1"), strings.Index(body, "- Sedan: 1"))
	// Sections follow the canonical attribute order.
	assert.Less(t, strings.Index(body, "### Label"), strings.Index(body, "### Special_type"))
}

func TestGenerate_DescendingCounts(t *testing.T) {
	stats := store.Stats{Total: 3, Verified: 3, Percent: 100}
	counts := Counts{"vehicle_color": {"Red": 1, "Blue": 2}}

	var b strings.Builder
	require.NoError(t, Generate(&b, stats, counts, time.Now()))
	body := b.String()
	assert.Less(t, strings.Index(body, "- Blue: 2"), strings.Index(body, "- Red: 1"))
}

func TestExport(t *testing.T) {
	st := seedStore(t)
	require.NoError(t, st.SaveOutput("a.json", map[string]any{"label": "Car"}))
	ledger, err := st.LoadLedger()
	require.NoError(t, err)
	ledger.MarkVerified("a.json")
	require.NoError(t, st.SaveLedger(ledger))

	now := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	path, err := Export(st, "annotation_report", now)
	require.NoError(t, err)
	assert.Equal(t, "output/annotation_report_2026-08-29_10-30-00.txt", path)
}
