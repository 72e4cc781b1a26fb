package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSubmission(t *testing.T) {
	before := testutil.ToFloat64(QuestionnaireSubmissions.WithLabelValues(OutcomeSuccess))
	RecordSubmission(OutcomeSuccess)
	after := testutil.ToFloat64(QuestionnaireSubmissions.WithLabelValues(OutcomeSuccess))
	assert.Equal(t, before+1, after)
}

func TestRecordBackendRequestLabels(t *testing.T) {
	RecordBackendRequest("apply_test", 0, 10*time.Millisecond)
	RecordBackendRequest("apply_test", 200, 10*time.Millisecond)

	// one series per status label
	assert.GreaterOrEqual(t, testutil.CollectAndCount(BackendRequestDuration), 2)
}
