package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"checkbook-calc/internal/testutil"
)

func TestRegisterGaugeFuncExposesValueAndReplaces(t *testing.T) {
	if err := RegisterGaugeFunc("checkbook_test_gauge", "test gauge", func() float64 { return 1 }); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := RegisterGaugeFunc("checkbook_test_gauge", "test gauge", func() float64 { return 7 }); err != nil {
		t.Fatalf("second register: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := testutil.ExecuteRequest(r, PrometheusHandler())
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	if !strings.Contains(w.Body.String(), "checkbook_test_gauge 7") {
		t.Fatalf("expected replaced gauge value in metrics output, got:\n%s", w.Body.String())
	}
}
