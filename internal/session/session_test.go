package session

import (
	"strings"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadsight/vannot/internal/schema"
	"github.com/roadsight/vannot/internal/store"
)

// fullDoc carries every metadata and categorical key, so a freshly loaded
// record is clean (no defaulting needed).
const fullDoc = `{
    "img_name": "a.jpg",
    "width": 640,
    "height": 480,
    "label": "Car",
    "orientation": "Front",
    "brand_name": "Honda",
    "vehicle_color": "Red",
    "itype": "LMV",
    "type": "Sedan",
    "special_type": "None of the above"
}`

func seed(t *testing.T, docs map[string]string) (*Session, *store.Store, billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	st := store.New(fs, "input", "output")
	require.NoError(t, st.Bootstrap())
	for name, body := range docs {
		require.NoError(t, util.WriteFile(fs, "input/"+name, []byte(body), 0o644))
	}
	sess, err := New(st, nil)
	require.NoError(t, err)
	return sess, st, fs
}

func TestNew_SelectsFirstRecord(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc, "b.json": fullDoc})
	assert.Equal(t, 0, sess.Index())
	assert.Equal(t, 2, sess.Count())
	assert.Equal(t, "Sample 1/2: a.json", sess.StatusLine())
	assert.False(t, sess.Dirty())
	assert.Empty(t, sess.Issues())
}

func TestNew_EmptyCorpus(t *testing.T) {
	sess, _, _ := seed(t, nil)
	assert.Equal(t, -1, sess.Index())
	assert.Equal(t, "No samples in current view", sess.StatusLine())
	_, ok := sess.CurrentID()
	assert.False(t, ok)
}

func TestReload_DefaultsMissingCategoricals(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{
		"a.json": `{"img_name": "a.jpg", "width": 640, "height": 480}`,
	})
	for _, key := range schema.CategoricalKeys {
		assert.Equal(t, schema.Sentinel, sess.Working()[key], key)
	}
	// Defaulting is a modification; it must survive the next save.
	assert.True(t, sess.Dirty())
}

func TestReload_MalformedSourceYieldsEmptyWorkingCopy(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": "{broken"})
	// No metadata to show, only the defaulted categoricals.
	for _, key := range schema.MetadataKeys {
		assert.NotContains(t, sess.Working(), key)
	}
	assert.Equal(t, schema.Sentinel, sess.Working()["label"])
	assert.Contains(t, sess.Issues(), "Missing required field: img_name")
}

func TestEdit_ValidValue(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})
	status, err := sess.Edit("vehicle_color", "Blue")
	require.NoError(t, err)
	assert.Equal(t, `Updated vehicle_color to "Blue"`, status)
	assert.Equal(t, "Blue", sess.Working()["vehicle_color"])
	assert.True(t, sess.Dirty())
	assert.Empty(t, sess.Issues())
}

func TestEdit_NonStandardValueWarnsButKeeps(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})
	status, err := sess.Edit("brand_name", "Maruthi")
	require.NoError(t, err)
	assert.Contains(t, status, "not a standard brand_name")
	assert.Contains(t, status, "Did you mean")
	assert.Contains(t, status, "Maruti-Suzuki")
	// The value is accepted verbatim, never auto-corrected.
	assert.Equal(t, "Maruthi", sess.Working()["brand_name"])
	assert.Contains(t, sess.Issues(), "Invalid value for brand_name: Maruthi")
}

func TestEdit_NonStandardValueNoSuggestion(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})
	status, err := sess.Edit("brand_name", "Zzz")
	require.NoError(t, err)
	assert.Contains(t, status, "Using custom value")
	assert.Equal(t, "Zzz", sess.Working()["brand_name"])
}

func TestEdit_EmptyValueRemovesKey(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})
	status, err := sess.Edit("type", "")
	require.NoError(t, err)
	assert.Equal(t, "Removed type", status)
	assert.NotContains(t, sess.Working(), "type")
}

func TestEdit_MetadataKeysProtected(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})
	_, err := sess.Edit("img_name", "")
	require.ErrorIs(t, err, ErrProtectedKey)
	// State unchanged on a rejected command.
	assert.Equal(t, "a.jpg", sess.Working()["img_name"])
	assert.False(t, sess.Dirty())
}

func TestEdit_BackfillsMetadataIntoEmptyWorkingCopy(t *testing.T) {
	sess, _, fs := seed(t, map[string]string{"a.json": "{broken"})
	// Repair the source after the session loaded its empty working copy.
	require.NoError(t, util.WriteFile(fs, "input/a.json",
		[]byte(`{"img_name": "a.jpg", "width": 1, "height": 2}`), 0o644))

	// Working copy still carries the defaulted categoricals, so it is not
	// empty; strip them to simulate a truly empty copy.
	for _, key := range schema.CategoricalKeys {
		_, err := sess.Edit(key, "")
		require.NoError(t, err)
	}

	_, err := sess.Edit("label", "Car")
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", sess.Working()["img_name"])
}

func TestSave_CleanRejected(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})
	_, err := sess.Save()
	assert.ErrorIs(t, err, ErrNothingToSave)
}

func TestSave_DoesNotTouchSource(t *testing.T) {
	sess, _, fs := seed(t, map[string]string{"a.json": fullDoc})
	before, err := util.ReadFile(fs, "input/a.json")
	require.NoError(t, err)

	_, err = sess.Edit("vehicle_color", "Blue")
	require.NoError(t, err)
	status, err := sess.Save()
	require.NoError(t, err)
	assert.Contains(t, status, "original file unchanged")
	assert.False(t, sess.Dirty())

	after, err := util.ReadFile(fs, "input/a.json")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSave_SnapshotIsFirstSaveWins(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})

	_, err := sess.Edit("brand_name", "BMW")
	require.NoError(t, err)
	_, err = sess.Save()
	require.NoError(t, err)

	_, err = sess.Edit("brand_name", "Audi")
	require.NoError(t, err)
	_, err = sess.Save()
	require.NoError(t, err)

	// Undo restores the pre-edit original, not the intermediate save.
	_, err = sess.Undo()
	require.NoError(t, err)
	assert.Equal(t, "Honda", sess.Working()["brand_name"])
}

func TestUndo_RoundTrip(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})

	_, err := sess.Edit("vehicle_color", "Blue")
	require.NoError(t, err)
	_, err = sess.Save()
	require.NoError(t, err)
	require.True(t, sess.UndoAvailable())

	status, err := sess.Undo()
	require.NoError(t, err)
	assert.Contains(t, status, "undone")
	assert.Equal(t, "Red", sess.Working()["vehicle_color"])
	// The restoration itself is a pending modification and the snapshot is
	// consumed.
	assert.True(t, sess.Dirty())
	assert.False(t, sess.UndoAvailable())

	_, err = sess.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestUndo_WithoutSnapshot(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})
	_, err := sess.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestReset_DiscardsUnsavedEdits(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})
	_, err := sess.Edit("vehicle_color", "Blue")
	require.NoError(t, err)

	status, err := sess.Reset()
	require.NoError(t, err)
	assert.Equal(t, "Discarded all unsaved changes", status)
	assert.Equal(t, "Red", sess.Working()["vehicle_color"])
	assert.False(t, sess.Dirty())
}

func TestMetadataNonLoss(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})

	checkMetadata := func(step string) {
		for _, key := range schema.MetadataKeys {
			assert.Contains(t, sess.Working(), key, "%s after %s", key, step)
		}
	}

	_, err := sess.Edit("label", "Bus")
	require.NoError(t, err)
	checkMetadata("edit")

	_, err = sess.Save()
	require.NoError(t, err)
	checkMetadata("save")

	_, err = sess.Undo()
	require.NoError(t, err)
	checkMetadata("undo")

	_, err = sess.Reset()
	require.NoError(t, err)
	checkMetadata("reset")

	_, err = sess.Verify()
	require.NoError(t, err)
	checkMetadata("verify")
}

func TestSelect_OutOfRange(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc, "b.json": fullDoc})
	_, err := sess.Select(5)
	require.ErrorIs(t, err, ErrOutOfRange)
	assert.Contains(t, err.Error(), "between 1 and 2")
	assert.Equal(t, 0, sess.Index())

	_, err = sess.Select(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSelect_Valid(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc, "b.json": fullDoc})
	status, err := sess.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "Sample 2/2: b.json", status)
}

func TestNextPrev_ClampAtEnds(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc, "b.json": fullDoc})

	_, err := sess.Prev()
	require.NoError(t, err)
	assert.Equal(t, 0, sess.Index())

	_, err = sess.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Index())

	_, err = sess.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Index())
}

func TestNavigation_ImplicitlySaves(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc, "b.json": fullDoc})

	_, err := sess.Edit("label", "Bus")
	require.NoError(t, err)
	require.True(t, sess.Dirty())

	_, err = sess.Next()
	require.NoError(t, err)
	assert.False(t, sess.Dirty())

	// Navigating back reloads a.json from disk, but the snapshot captured by
	// the implicit save proves the save happened.
	_, err = sess.Prev()
	require.NoError(t, err)
	assert.Equal(t, "Car", sess.Working()["label"])
	assert.True(t, sess.UndoAvailable())
}

func TestVerify_WritesOutputAndLedger(t *testing.T) {
	sess, st, _ := seed(t, map[string]string{"a.json": fullDoc})

	status, err := sess.Verify()
	require.NoError(t, err)
	assert.Contains(t, status, "marked as verified")
	assert.True(t, sess.Verified())
	assert.True(t, st.OutputExists("a.json"))

	ledger, err := st.LoadLedger()
	require.NoError(t, err)
	assert.True(t, ledger.IsVerified("a.json"))
}

func TestVerify_DefaultsAllCategoricals(t *testing.T) {
	sess, st, _ := seed(t, map[string]string{
		"a.json": `{"img_name": "a.jpg", "width": 640, "height": 480, "label": "Car"}`,
	})

	_, err := sess.Verify()
	require.NoError(t, err)

	out, err := st.LoadOutput("a.json")
	require.NoError(t, err)
	assert.Equal(t, "Car", out["label"])
	for _, key := range []string{"orientation", "brand_name", "vehicle_color", "itype", "type", "special_type"} {
		assert.Equal(t, schema.Sentinel, out[key], key)
	}
	assert.Equal(t, "a.jpg", out["img_name"])
}

func TestVerify_ClearsUndoBuffer(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})
	_, err := sess.Edit("label", "Bus")
	require.NoError(t, err)
	_, err = sess.Save()
	require.NoError(t, err)
	require.True(t, sess.UndoAvailable())

	_, err = sess.Verify()
	require.NoError(t, err)
	assert.False(t, sess.UndoAvailable())
}

func TestVerifiedRecord_LoadsFromOutputCopy(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc, "b.json": fullDoc})

	_, err := sess.Edit("brand_name", "BMW")
	require.NoError(t, err)
	_, err = sess.Verify()
	require.NoError(t, err)

	_, err = sess.Next()
	require.NoError(t, err)
	_, err = sess.Prev()
	require.NoError(t, err)

	// The output copy with the correction wins over the raw source.
	assert.True(t, sess.Verified())
	assert.Equal(t, "BMW", sess.Working()["brand_name"])
}

func TestVerifiedRecord_EditResavesOutputImmediately(t *testing.T) {
	sess, st, _ := seed(t, map[string]string{"a.json": fullDoc})
	_, err := sess.Verify()
	require.NoError(t, err)

	status, err := sess.Edit("vehicle_color", "Blue")
	require.NoError(t, err)
	assert.Contains(t, status, "verified output updated")

	out, err := st.LoadOutput("a.json")
	require.NoError(t, err)
	assert.Equal(t, "Blue", out["vehicle_color"])
}

func TestUnverify(t *testing.T) {
	sess, st, fs := seed(t, map[string]string{"a.json": fullDoc})
	before, err := util.ReadFile(fs, "input/a.json")
	require.NoError(t, err)

	_, err = sess.Verify()
	require.NoError(t, err)
	require.True(t, st.OutputExists("a.json"))

	status, err := sess.Unverify()
	require.NoError(t, err)
	assert.Contains(t, status, "unmarked as verified")
	assert.Contains(t, status, "removed from verified output directory")
	assert.False(t, sess.Verified())
	assert.False(t, st.OutputExists("a.json"))

	ledger, err := st.LoadLedger()
	require.NoError(t, err)
	assert.False(t, ledger.IsVerified("a.json"))

	after, err := util.ReadFile(fs, "input/a.json")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUnverify_NotVerified(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})
	_, err := sess.Unverify()
	assert.ErrorIs(t, err, ErrNotVerified)
}

func TestFilter_Partitions(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc, "b.json": fullDoc})
	_, err := sess.Verify()
	require.NoError(t, err)

	status, err := sess.Filter(FilterVerified)
	require.NoError(t, err)
	assert.Equal(t, "Sample 1/1: a.json", status)
	assert.Equal(t, []string{"a.json"}, sess.Records())

	status, err = sess.Filter(FilterPending)
	require.NoError(t, err)
	assert.Equal(t, "Sample 1/1: b.json", status)

	status, err = sess.Filter(FilterAll)
	require.NoError(t, err)
	assert.Equal(t, "Sample 1/2: a.json", status)
	assert.Equal(t, 2, sess.Count())
}

func TestFilter_EmptyPartitionMessages(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})

	status, err := sess.Filter(FilterVerified)
	require.NoError(t, err)
	assert.Equal(t, "No verified samples found. Verify samples to see them here.", status)
	assert.Equal(t, -1, sess.Index())
	assert.Equal(t, "No samples in current view", sess.StatusLine())

	_, err = sess.Filter(FilterAll)
	require.NoError(t, err)
	_, err = sess.Verify()
	require.NoError(t, err)

	status, err = sess.Filter(FilterPending)
	require.NoError(t, err)
	assert.Equal(t, "No pending samples found. All samples have been verified!", status)
}

func TestFilter_EmptyCorpusMessage(t *testing.T) {
	sess, _, _ := seed(t, nil)
	status, err := sess.Filter(FilterAll)
	require.NoError(t, err)
	assert.Equal(t, "No samples found in the input directory.", status)
}

func TestStats(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc, "b.json": fullDoc})
	_, err := sess.Verify()
	require.NoError(t, err)

	stats, err := sess.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Verified)
	assert.Equal(t, 1, stats.Pending)
	assert.InDelta(t, 50.0, stats.Percent, 0.001)
}

func TestImageInfo(t *testing.T) {
	sess, _, fs := seed(t, map[string]string{"a.json": fullDoc})
	path, ok := sess.ImageInfo()
	assert.Equal(t, "input/a.jpg", path)
	assert.False(t, ok)

	require.NoError(t, util.WriteFile(fs, "input/a.jpg", []byte("jpeg"), 0o644))
	_, ok = sess.ImageInfo()
	assert.True(t, ok)
}

func TestFilterMode_String(t *testing.T) {
	assert.Equal(t, "all", FilterAll.String())
	assert.Equal(t, "verified", FilterVerified.String())
	assert.Equal(t, "pending", FilterPending.String())
}

func TestStatusMessages_SingleLine(t *testing.T) {
	sess, _, _ := seed(t, map[string]string{"a.json": fullDoc})
	status, err := sess.Edit("label", "Bus")
	require.NoError(t, err)
	assert.False(t, strings.Contains(status, "\n"))
}
