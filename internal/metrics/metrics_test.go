package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
)

func TestObserveFill(t *testing.T) {
	runs := testutil.ToFloat64(FillRuns.WithLabelValues("pdf", OutcomeSuccess))
	filled := testutil.ToFloat64(FieldsFilled.WithLabelValues("pdf"))
	skipped := testutil.ToFloat64(FieldsSkipped.WithLabelValues("pdf"))

	ObserveFill("pdf", &grant.FillReport{FieldsFilled: 3, FieldsSkipped: 2}, nil, time.Second)

	assert.Equal(t, runs+1, testutil.ToFloat64(FillRuns.WithLabelValues("pdf", OutcomeSuccess)))
	assert.Equal(t, filled+3, testutil.ToFloat64(FieldsFilled.WithLabelValues("pdf")))
	assert.Equal(t, skipped+2, testutil.ToFloat64(FieldsSkipped.WithLabelValues("pdf")))
}

func TestObserveFillFailure(t *testing.T) {
	failures := testutil.ToFloat64(FillRuns.WithLabelValues("web", OutcomeFailure))
	filled := testutil.ToFloat64(FieldsFilled.WithLabelValues("web"))

	ObserveFill("web", nil, errors.New("unreachable"), time.Millisecond)

	assert.Equal(t, failures+1, testutil.ToFloat64(FillRuns.WithLabelValues("web", OutcomeFailure)))
	assert.Equal(t, filled, testutil.ToFloat64(FieldsFilled.WithLabelValues("web")))
}

func TestObserveModel(t *testing.T) {
	before := testutil.ToFloat64(ModelRequests.WithLabelValues("drafts", OutcomeFailure))
	ObserveModel("drafts", errors.New("quota"))
	assert.Equal(t, before+1, testutil.ToFloat64(ModelRequests.WithLabelValues("drafts", OutcomeFailure)))
}
