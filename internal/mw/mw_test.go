package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCache_OnlyAttachments(t *testing.T) {
	calls := 0
	r := gin.New()
	r.GET("/report", Cache(cache.New(time.Minute, time.Minute), time.Minute, Attachments), func(c *gin.Context) {
		calls++
		if c.Query("done") == "" {
			c.JSON(http.StatusOK, gin.H{"status": "Running"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="report.csv"`)
		c.Data(http.StatusOK, "text/csv", []byte("a,b\n"))
	})

	get := func(url string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, url, nil)
		r.ServeHTTP(w, req)
		return w
	}

	// Status polls always reach the handler.
	get("/report")
	get("/report")
	assert.Equal(t, 2, calls)

	first := get("/report?done=1")
	second := get("/report?done=1")
	assert.Equal(t, 3, calls)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "text/csv", second.Header().Get("Content-Type"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
}

func TestCache_SkipsNonGet(t *testing.T) {
	calls := 0
	r := gin.New()
	r.POST("/trigger", Cache(cache.New(time.Minute, time.Minute), time.Minute, func(int, http.Header) bool { return true }), func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/trigger", nil)
		r.ServeHTTP(w, req)
	}
	assert.Equal(t, 2, calls)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.POST("/trigger", RateLimiter(rate.Limit(0.001), 2), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/trigger", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own budget.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/trigger", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIPRateLimiter_ReusesLimiter(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1)
	assert.Same(t, l.GetLimiter("1.2.3.4"), l.GetLimiter("1.2.3.4"))
	assert.NotSame(t, l.GetLimiter("1.2.3.4"), l.GetLimiter("5.6.7.8"))
}
