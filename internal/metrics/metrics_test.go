package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordReply(t *testing.T) {
	before := testutil.ToFloat64(repliesTotal.WithLabelValues("kb"))
	RecordReply("kb", 2*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(repliesTotal.WithLabelValues("kb")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordLearned("saved")
	RecordModelError()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "khaled_learning_pairs_total"))
	assert.True(t, strings.Contains(body, "khaled_model_errors_total"))
}
