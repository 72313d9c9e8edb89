package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"github.com/gin-gonic/gin"
)

func testContext(t *testing.T, target string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, w
}

// "all" selects the combined receivable+payable view; the models layer
// expresses that as the empty filter.
func TestEntityTypeParam(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"/analytics/aging", "customer"},
		{"/analytics/aging?entity_type=customer", "customer"},
		{"/analytics/aging?entity_type=vendor", "vendor"},
		{"/analytics/aging?entity_type=all", ""},
		{"/analytics/aging?entity_type=%20vendor%20", "vendor"},
	}
	for _, tc := range cases {
		c, _ := testContext(t, tc.query)
		if got := entityTypeParam(c); got != tc.want {
			t.Errorf("entityTypeParam(%s) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestWriteAnalyticsErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"configuration error", utils.NewConfigurationError("companyGuid"), http.StatusBadRequest},
		{"record not found", utils.ErrorRecordNotFound, http.StatusNotFound},
		{"wrapped record not found", utils.NewSourceUnavailableError("dashboard_metrics", utils.ErrorRecordNotFound), http.StatusNotFound},
		{"store failure", errors.New("mysql gone away"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := testContext(t, "/analytics/dashboard")
			writeAnalyticsError(c, tc.err)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}
