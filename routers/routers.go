package routers

import (
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/ilhamfadhil14/load-test-rtsp-stream/metrics"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/monitor"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/orchestrator"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/publisher"
)

// Service is the slice of the orchestrator the API reads from.
type Service interface {
	RunID() string
	State() orchestrator.RunState
	StartedAt() time.Time
	LastUsage() monitor.Usage
	Snapshots() []publisher.Stats
	StopStream(name string) error
	Report() *orchestrator.Report
}

type APIHandler struct {
	Svc            Service
	HistoryEnabled bool
}

// Init wires the REST surface: stream and stats endpoints, run
// history, the Prometheus scrape point and, in debug mode, pprof.
func Init(svc Service, m *metrics.Metrics, historyEnabled, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	if debug {
		engine.Use(gin.Logger())
		pprof.Register(engine)
	}

	handler := &APIHandler{Svc: svc, HistoryEnabled: historyEnabled}
	api := engine.Group("/api/v1")
	{
		api.GET("/streams", handler.Streams)
		api.GET("/stats", handler.Stats)
		api.GET("/report", handler.FinalReport)
		api.GET("/runs", handler.Runs)
		api.POST("/stream/stop", handler.StopStream)
	}
	if m != nil {
		engine.GET("/metrics", gin.WrapH(m.Handler()))
	}
	return engine
}
