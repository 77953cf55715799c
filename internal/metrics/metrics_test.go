package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRows(t *testing.T) {
	beforeOK := testutil.ToFloat64(ImportRows.WithLabelValues("success"))
	beforeErr := testutil.ToFloat64(ImportRows.WithLabelValues("error"))

	RecordRows(7, 2)

	assert.Equal(t, beforeOK+7, testutil.ToFloat64(ImportRows.WithLabelValues("success")))
	assert.Equal(t, beforeErr+2, testutil.ToFloat64(ImportRows.WithLabelValues("error")))
}

func TestRecordResolution(t *testing.T) {
	tests := []struct {
		entity   string
		strategy string
	}{
		{"author", "exact"},
		{"author", "folded"},
		{"illustrator", "transliterated"},
		{"book", "ambiguous"},
		{"book", "miss"},
	}

	for _, tt := range tests {
		t.Run(tt.entity+"/"+tt.strategy, func(t *testing.T) {
			c := ResolverOutcomes.WithLabelValues(tt.entity, tt.strategy)
			before := testutil.ToFloat64(c)
			RecordResolution(tt.entity, tt.strategy)
			assert.Equal(t, before+1, testutil.ToFloat64(c))
		})
	}
}

func TestRecordBatchAndValidation(t *testing.T) {
	before := testutil.ToFloat64(ImportBatches.WithLabelValues("rolled_back"))
	RecordBatch("rolled_back", 15*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(ImportBatches.WithLabelValues("rolled_back")))

	beforeInvalid := testutil.ToFloat64(ValidationRuns.WithLabelValues("false"))
	RecordValidation(false)
	assert.Equal(t, beforeInvalid+1, testutil.ToFloat64(ValidationRuns.WithLabelValues("false")))
}

func TestRecordCreated(t *testing.T) {
	c := EntitiesCreated.WithLabelValues("book")
	before := testutil.ToFloat64(c)
	RecordCreated("book", 3)
	RecordCreated("book", 0)
	assert.Equal(t, before+3, testutil.ToFloat64(c))
}

func TestTrackActiveImport(t *testing.T) {
	before := testutil.ToFloat64(ActiveImports)
	TrackActiveImport(true)
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveImports))
	TrackActiveImport(false)
	assert.Equal(t, before, testutil.ToFloat64(ActiveImports))
}

func TestRecordAPIRequest(t *testing.T) {
	c := APIRequestsTotal.WithLabelValues("POST", "/api/import", "202")
	before := testutil.ToFloat64(c)
	RecordAPIRequest("POST", "/api/import", 202, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
