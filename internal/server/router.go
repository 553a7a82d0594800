package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kvann/sessiond/internal/metrics"
	"github.com/kvann/sessiond/internal/readiness"
	"github.com/kvann/sessiond/internal/supervisor"
)

// Router exposes the supervisor's read-only admin surface.
// Endpoints:
//
//	GET {basePath}/status    supervisor phase + managed process snapshots
//	GET {basePath}/healthz   200 once the display is ready, 503 otherwise
//	GET {basePath}/metrics   Prometheus metrics
//
// The remote-desktop port and the worker's own HTTP API are separate
// surfaces and are not proxied here.
type Router struct {
	sup      *supervisor.Supervisor
	basePath string
}

// NewRouter constructs a Router with a configurable basePath.
// Example basePath "/admin" results in /admin/status etc.
func NewRouter(sup *supervisor.Supervisor, basePath string) *Router {
	return &Router{sup: sup, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, sup *supervisor.Supervisor) (*http.Server, error) {
	r := NewRouter(sup, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.sup.Status())
}

func (r *Router) handleHealthz(c *gin.Context) {
	st := r.sup.Status()
	healthy := st.Readiness == readiness.Ready.String() &&
		st.Phase != supervisor.PhaseShuttingDown &&
		st.Phase != supervisor.PhaseTerminated
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"phase": st.Phase, "readiness": st.Readiness})
}

func sanitizeBase(basePath string) string {
	bp := strings.TrimSpace(basePath)
	if bp == "" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}
