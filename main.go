package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/ilhamfadhil14/load-test-rtsp-stream/config"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/generator"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/log"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/metrics"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/models"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/orchestrator"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/routers"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/utils"
)

var (
	gitCommitCode string
	buildDateTime string
)

type program struct {
	httpPort   int
	httpServer *http.Server
}

func (p *program) StartHTTP(handler http.Handler) (err error) {
	p.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", p.httpPort),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	link := fmt.Sprintf("http://%s:%d", utils.LocalIP(), p.httpPort)
	log.Info("http server start -->", link)
	go func() {
		if err := p.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("start http server error: ", err)
		}
		log.Info("http server end")
	}()
	return
}

func (p *program) StopHTTP() (err error) {
	if p.httpServer == nil {
		err = fmt.Errorf("HTTP Server Not Found")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = p.httpServer.Shutdown(ctx); err != nil {
		return
	}
	return
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		confFile       string
		validateOnly   bool
		generateVideos bool
		skipPrompt     bool
	)
	flag.StringVar(&confFile, "config", "config.yaml", "configure file path")
	flag.StringVar(&confFile, "c", "config.yaml", "configure file path (shorthand)")
	flag.BoolVar(&validateOnly, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&generateVideos, "generate-videos", false, "render the stock test clips and exit")
	flag.BoolVar(&skipPrompt, "skip-prompt", false, "start publishing without asking for confirmation")
	flag.Parse()

	figure.NewFigure("RTSP LoadTest", "", false).Print()
	log.Info("git commit code: ", gitCommitCode)
	log.Info("build date: ", buildDateTime)

	cfg, err := config.Load(confFile)
	if err != nil {
		log.Error(err)
		return 1
	}
	if err := log.SetLevel(cfg.Monitoring.LogLevel); err != nil {
		log.Warn(err)
	}
	if cfg.Monitoring.Enabled && cfg.Monitoring.LogDir != "" {
		if err := utils.EnsureDir(cfg.Monitoring.LogDir); err != nil {
			log.Error("prepare log dir: ", err)
			return 1
		}
		log.TeeToFile(cfg.Monitoring.LogDir)
		log.Debug("log files -->", cfg.Monitoring.LogDir)
	}

	if generateVideos {
		if !utils.CommandExists("ffmpeg") {
			log.Error("ffmpeg not found in PATH")
			return 1
		}
		dir := "videos"
		if cfg.Video != nil && cfg.Video.Path != "" {
			dir = filepath.Dir(cfg.Video.Path)
		}
		if err := generator.Generate(dir); err != nil {
			log.Error(err)
			return 1
		}
		return 0
	}

	if err := orchestrator.ValidateConfig(cfg); err != nil {
		log.Error(err)
		return 1
	}
	if validateOnly {
		log.Info("configuration ok")
		return 0
	}

	if !utils.CommandExists("ffmpeg") {
		log.Error("ffmpeg not found in PATH, install it or use the provided Docker image")
		return 1
	}

	specs := orchestrator.BuildSpecs(cfg)
	log.Info(fmt.Sprintf("about to publish %d streams:", len(specs)))
	for _, spec := range specs {
		log.Info(fmt.Sprintf("  %s <- %s", spec.URL, spec.VideoPath))
	}
	log.Info(fmt.Sprintf("watch one with: vlc %s", specs[0].URL))

	if !skipPrompt {
		question := fmt.Sprintf("Start publishing %d streams to %s? [yes/no]", len(specs), cfg.RTSPServer.BaseURL)
		if !utils.Confirm(os.Stdin, os.Stdout, question) {
			log.Info("aborted. Bring up an RTSP server first, e.g.: docker run --rm -p 8554:8554 bluenviron/mediamtx")
			return 0
		}
	}

	log.Info("********** START **********")
	defer log.Info("********** STOP **********")

	if cfg.History.Enabled {
		if err := models.Init(cfg.History.DBFile); err != nil {
			log.Error("open history database: ", err)
			return 1
		}
		defer models.Close()
	}

	var m *metrics.Metrics
	if cfg.API.Enabled {
		m = metrics.New()
	}
	orc := orchestrator.New(cfg, m)

	if cfg.API.Enabled {
		p := &program{httpPort: cfg.API.Port}
		if err := p.StartHTTP(routers.Init(orc, m, cfg.History.Enabled, cfg.API.Debug)); err != nil {
			log.Error(err)
			return 1
		}
		defer p.StopHTTP()
	}

	// The canceled context triggers one clean shutdown; repeated
	// signals are swallowed until the run finishes.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := orc.Run(ctx)
	if runErr != nil {
		log.Error(runErr)
	}

	if cfg.History.Enabled {
		if report := orc.Report(); report != nil {
			if err := saveHistory(report); err != nil {
				log.Error("persist run history: ", err)
			} else {
				log.Info("run recorded as ", report.ID)
			}
		}
	}

	if runErr != nil {
		return 1
	}
	return 0
}

func saveHistory(r *orchestrator.Report) error {
	run := &models.Run{
		ID:              r.ID,
		StartedAt:       r.StartedAt,
		StopReason:      r.StopReason,
		DurationSeconds: r.TestDurationSeconds,
		TotalStreams:    r.TotalStreams,
	}
	results := make([]models.StreamResult, 0, len(r.Streams))
	for _, s := range r.Streams {
		results = append(results, models.StreamResult{
			Name:          s.Name,
			Endpoint:      s.Endpoint,
			State:         s.State,
			UptimeSeconds: s.UptimeSeconds,
			ErrorCount:    s.ErrorCount,
			Resolution:    s.Resolution,
		})
	}
	return models.SaveRun(run, results)
}
