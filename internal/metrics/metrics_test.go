package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.NoError(t, err)
	Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestObserveReservation(t *testing.T) {
	Register()
	ObserveReservation("reserve", "reserved", 2)
	IncCASConflict()

	body := scrape(t)
	assert.Contains(t, body, `seat_reservation_outcomes_total{operation="reserve",outcome="reserved"}`)
	assert.Contains(t, body, "seat_cas_conflicts_total")
	assert.Contains(t, body, "seat_cas_attempts_bucket")
}

func TestGinMiddleware(t *testing.T) {
	Register()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/flights/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/flights/42", nil)
	require.NoError(t, err)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, scrape(t), `http_requests_total{code="204",method="GET",route="/flights/:id"}`)
}
