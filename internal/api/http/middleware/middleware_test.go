package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/authgate/internal/testutil"
)

type observation struct {
	method string
	route  string
	status int
}

type observerStub struct {
	mu  sync.Mutex
	obs []observation
}

func (o *observerStub) ObserveRequest(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs = append(o.obs, observation{method, route, status})
}

func TestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("deadline attached", func(t *testing.T) {
		var (
			deadline time.Time
			ok       bool
		)
		engine := gin.New()
		engine.GET("/", Timeout(time.Second), func(c *gin.Context) {
			deadline, ok = c.Request.Context().Deadline()
			c.Status(http.StatusOK)
		})

		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
	})

	t.Run("disabled", func(t *testing.T) {
		var ok bool
		engine := gin.New()
		engine.GET("/", Timeout(0), func(c *gin.Context) {
			_, ok = c.Request.Context().Deadline()
			c.Status(http.StatusOK)
		})

		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		assert.False(t, ok)
	})

	t.Run("expires", func(t *testing.T) {
		var err error
		engine := gin.New()
		engine.GET("/", Timeout(time.Millisecond), func(c *gin.Context) {
			<-c.Request.Context().Done()
			err = c.Request.Context().Err()
			c.Status(http.StatusOK)
		})

		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Error(t, err)
	})
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &observerStub{}

	engine := gin.New()
	engine.Use(Metrics(obs))
	engine.POST("/api/auth/login", func(c *gin.Context) { c.Status(http.StatusUnauthorized) })

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Len(t, obs.obs, 2)
	assert.Equal(t, observation{http.MethodPost, "/api/auth/login", http.StatusUnauthorized}, obs.obs[0])
	assert.Equal(t, observation{http.MethodGet, "unmatched", http.StatusNotFound}, obs.obs[1])
}

func TestLogging_Handle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		status    int
		wantLevel string
		wantMsg   string
	}{
		{http.StatusOK, "level=INFO", "HTTP request completed"},
		{http.StatusUnauthorized, "level=WARN", "HTTP request rejected"},
		{http.StatusInternalServerError, "level=ERROR", "HTTP request failed"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			log, buf := testutil.MakeBufferLogger()
			engine := gin.New()
			engine.Use(NewLogging(log).Handle)
			engine.GET("/x", func(c *gin.Context) { c.Status(tt.status) })

			engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

			out := buf.String()
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, tt.wantMsg)
			assert.Contains(t, out, "path=/x")
		})
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(CORS())
	engine.POST("/x", func(c *gin.Context) { c.JSON(http.StatusCreated, gin.H{"success": true}) })

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
	}{
		{name: "no origin", method: http.MethodPost, wantStatus: http.StatusCreated},
		{name: "with origin", method: http.MethodPost, origin: "https://app.example.com", wantStatus: http.StatusCreated},
		{name: "preflight with origin", method: http.MethodOptions, origin: "https://app.example.com", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/x", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
			assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		})
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, buf := testutil.MakeBufferLogger()

	engine := gin.New()
	engine.Use(Recovery(log))
	engine.GET("/boom", func(*gin.Context) { panic("nil map write") })

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error","success":false}`, rec.Body.String())
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "nil map write")
}
