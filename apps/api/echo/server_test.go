package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/roster/tests"
)

func TestHome(t *testing.T) {
	app, _ := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Roster API!", rec.Body.String())
}

func TestMetrics(t *testing.T) {
	app, svc := setup(t)
	testutil.CreateInstructor(t, svc, "Bob", 40, "bob@x.com", "I1")

	for _, body := range []string{
		`{"name": "Alice", "age": 20, "email": "alice@x.com", "id": "S1"}`,
		`{"name": "", "age": 20, "email": "alice@x.com", "id": "S2"}`,
	} {
		req, rec := newRequest(http.MethodPost, "/v1/students", []byte(body))
		app.ServeHTTP(rec, req)
	}

	req, rec := newRequest(http.MethodGet, "/metrics")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	out := rec.Body.String()
	for _, want := range []string{
		`roster_records{kind="student"} 1`,
		`roster_records{kind="instructor"} 1`,
		`roster_records{kind="course"} 0`,
		`roster_http_requests_total{code="201",method="POST",route="/v1/students"} 1`,
		`roster_http_requests_total{code="400",method="POST",route="/v1/students"} 1`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestServer_metricsArePerServer(t *testing.T) {
	// a second server must not panic on duplicate registration
	setup(t)
	setup(t)
}
