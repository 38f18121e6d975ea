package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/songon-extension/access-server/internal/model"
)

func TestRecordDenied(t *testing.T) {
	before := testutil.ToFloat64(AccessDeniedTotal.WithLabelValues("expired"))
	RecordDenied(model.ReasonExpired)
	assert.Equal(t, before+1, testutil.ToFloat64(AccessDeniedTotal.WithLabelValues("expired")))
}

func TestRecordGranted(t *testing.T) {
	before := testutil.ToFloat64(AccessGrantedTotal.WithLabelValues("download"))
	RecordGranted("download")
	RecordGranted("download")
	assert.Equal(t, before+2, testutil.ToFloat64(AccessGrantedTotal.WithLabelValues("download")))
}

func TestSetCodeCounts(t *testing.T) {
	SetCodeCounts(&model.AccessCodeCounts{Active: 7, Expired: 3, Revoked: 1})

	assert.Equal(t, float64(7), testutil.ToFloat64(AccessCodes.WithLabelValues("active")))
	assert.Equal(t, float64(3), testutil.ToFloat64(AccessCodes.WithLabelValues("expired")))
	assert.Equal(t, float64(1), testutil.ToFloat64(AccessCodes.WithLabelValues("revoked")))
}
