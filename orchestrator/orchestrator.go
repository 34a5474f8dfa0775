package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/teris-io/shortid"

	"github.com/ilhamfadhil14/load-test-rtsp-stream/config"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/log"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/metrics"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/monitor"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/publisher"
)

const defaultStartStagger = 500 * time.Millisecond

// RunState is the lifecycle position of a run. It only ever moves
// forward: Validating, Running, Stopping, Stopped.
type RunState int

const (
	Validating RunState = iota
	Running
	Stopping
	Stopped
)

func (s RunState) String() string {
	if s < Validating || s > Stopped {
		return "unknown"
	}
	return [...]string{"validating", "running", "stopping", "stopped"}[s]
}

// stream is the slice of a publisher the orchestrator drives.
type stream interface {
	Start() error
	Stop()
	Healthy() bool
	Snapshot() publisher.Stats
}

// Orchestrator owns one load test run: it validates the configuration,
// fans out the publishers, watches stream health and host resources on
// a fixed interval, and tears everything down into a final report.
type Orchestrator struct {
	cfg *config.Config

	lock       sync.RWMutex
	state      RunState
	streams    map[string]stream
	order      []string
	startedAt  time.Time
	lastUsage  monitor.Usage
	stopReason string
	report     *Report

	stopOnce sync.Once
	cancel   context.CancelFunc
	doneCh   chan struct{}

	sampler      monitor.Sampler
	newStream    func(publisher.Spec) stream
	startStagger time.Duration

	runID   string
	metrics *metrics.Metrics
	logger  *log.Logger
}

// New builds an orchestrator for one run. m may be nil when the
// Prometheus endpoint is disabled.
func New(cfg *config.Config, m *metrics.Metrics) *Orchestrator {
	id := shortid.MustGenerate()
	return &Orchestrator{
		cfg:          cfg,
		state:        Validating,
		streams:      make(map[string]stream),
		doneCh:       make(chan struct{}),
		sampler:      monitor.Sample,
		newStream:    func(spec publisher.Spec) stream { return publisher.NewPublisher(spec) },
		startStagger: defaultStartStagger,
		runID:        id,
		metrics:      m,
		logger:       log.NewLogger(id, log.RunId),
	}
}

// Run drives the whole test and blocks until the final report is out.
// Canceling ctx stops the run cleanly. The returned error is a
// *ConfigError when the configuration was rejected.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := ValidateConfig(o.cfg); err != nil {
		o.lock.Lock()
		o.state = Stopped
		o.lock.Unlock()
		close(o.doneCh)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	specs := BuildSpecs(o.cfg)
	o.lock.Lock()
	o.cancel = cancel
	for _, spec := range specs {
		o.streams[spec.Name] = o.newStream(spec)
		o.order = append(o.order, spec.Name)
	}
	o.state = Running
	o.startedAt = time.Now()
	o.lock.Unlock()

	o.logger.Info(fmt.Sprintf("starting %d publishers against %s", len(specs), o.cfg.RTSPServer.BaseURL))

	started := 0
	for _, s := range o.streamList() {
		if runCtx.Err() != nil {
			break
		}
		if err := s.Start(); err != nil {
			o.logger.Error("publisher did not start: ", err)
			continue
		}
		started++
		// Spread the launches out so the encoder startups do not all
		// hit the host at once.
		select {
		case <-runCtx.Done():
		case <-time.After(o.startStagger):
		}
	}

	var runErr error
	switch {
	case started == 0 && runCtx.Err() == nil:
		runErr = fmt.Errorf("none of the %d publishers came up", len(specs))
		o.requestStop("no publishers started")
	case runCtx.Err() == nil:
		o.logger.Info(fmt.Sprintf("%d/%d publishers up", started, len(specs)))
		o.monitorLoop(runCtx)
	}

	o.shutdown()
	return runErr
}

// monitorLoop reports status every report_interval seconds and ends
// the run when the configured duration elapses or a stop comes in.
func (o *Orchestrator) monitorLoop(ctx context.Context) {
	interval := time.Duration(o.cfg.LoadTest.ReportInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var expiry <-chan time.Time
	if d := o.cfg.LoadTest.Duration; d > 0 {
		timer := time.NewTimer(time.Duration(d) * time.Second)
		defer timer.Stop()
		expiry = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-expiry:
			o.logger.Info(fmt.Sprintf("configured duration of %ds reached", o.cfg.LoadTest.Duration))
			o.requestStop("duration reached")
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// tick takes one resource sample, reports stream health and enforces
// the limits. Memory over the limit ends the run; CPU over the limit
// only warns, encoders are expected to be CPU hungry.
func (o *Orchestrator) tick(ctx context.Context) {
	usage, sampleErr := o.sampler(ctx)
	if sampleErr != nil {
		o.logger.Warn("resource sampling failed: ", sampleErr)
	} else {
		o.lock.Lock()
		o.lastUsage = usage
		o.lock.Unlock()
	}

	snaps := o.Snapshots()
	healthy := 0
	for _, s := range snaps {
		if s.Healthy {
			healthy++
		}
	}

	var b strings.Builder
	b.WriteString("\n==================== STATUS REPORT ====================\n")
	fmt.Fprintf(&b, "Elapsed: %s | Streams healthy: %d/%d\n",
		time.Since(o.StartedAt()).Round(time.Second), healthy, len(snaps))
	if sampleErr == nil {
		fmt.Fprintf(&b, "CPU: %.1f%% | Memory: %.1f%% (%s / %s)\n",
			usage.CPUPercent, usage.MemoryPercent,
			formatBytes(usage.MemoryUsed), formatBytes(usage.MemoryTotal))
	}
	for _, s := range snaps {
		mark := "✗"
		if s.Healthy {
			mark = "✓"
		}
		fmt.Fprintf(&b, "  %s %s %s uptime=%.0fs errors=%d\n",
			mark, s.Name, s.URL, s.UptimeSeconds, s.ErrorCount)
	}
	b.WriteString("=======================================================")
	o.logger.Info(b.String())

	if o.metrics != nil {
		if sampleErr == nil {
			o.metrics.ObserveUsage(usage.CPUPercent, usage.MemoryPercent)
		}
		o.metrics.SetStreamCounts(len(snaps), healthy)
		for _, s := range snaps {
			o.metrics.ObserveStream(s.Name, s.Healthy, s.ErrorCount)
		}
	}

	if sampleErr != nil {
		return
	}
	if max := o.cfg.Limits.MaxMemoryPercent; max > 0 && usage.MemoryPercent > max {
		o.logger.Error(fmt.Sprintf("memory usage %.1f%% is over the %.1f%% limit, stopping the test", usage.MemoryPercent, max))
		o.requestStop("memory limit exceeded")
		return
	}
	if max := o.cfg.Limits.MaxCPUPercent; max > 0 && usage.CPUPercent > max {
		o.logger.Warn(fmt.Sprintf("cpu usage %.1f%% is over the %.1f%% limit", usage.CPUPercent, max))
	}
}

// requestStop records the first stop reason, moves the run to Stopping
// and wakes everything waiting on the run context. Later calls are
// no-ops, whoever asks first names the reason.
func (o *Orchestrator) requestStop(reason string) {
	o.stopOnce.Do(func() {
		o.lock.Lock()
		if o.state != Stopped {
			o.state = Stopping
		}
		o.stopReason = reason
		cancel := o.cancel
		o.lock.Unlock()
		o.logger.Info("stop requested: ", reason)
		if cancel != nil {
			cancel()
		}
	})
}

// shutdown stops every publisher, builds the final report and releases
// everyone waiting on the run. It runs exactly once, at the end of Run.
func (o *Orchestrator) shutdown() {
	o.requestStop("interrupted")

	streams := o.streamList()
	o.logger.Info(fmt.Sprintf("stopping %d publishers", len(streams)))
	var wg sync.WaitGroup
	for _, s := range streams {
		wg.Add(1)
		go func(s stream) {
			defer wg.Done()
			s.Stop()
		}(s)
	}
	wg.Wait()

	report := o.buildReport()
	o.lock.Lock()
	o.report = report
	o.state = Stopped
	o.lock.Unlock()

	o.logFinalReport(report)
	if o.cfg.Monitoring.Enabled && o.cfg.Monitoring.MetricsFile != "" {
		if err := report.WriteFile(o.cfg.Monitoring.MetricsFile); err != nil {
			o.logger.Error("could not write the metrics file: ", err)
		} else {
			o.logger.Info("metrics written to ", o.cfg.Monitoring.MetricsFile)
		}
	}
	close(o.doneCh)
}

func (o *Orchestrator) buildReport() *Report {
	o.lock.RLock()
	startedAt := o.startedAt
	reason := o.stopReason
	id := o.runID
	o.lock.RUnlock()

	duration := 0.0
	if !startedAt.IsZero() {
		duration = time.Since(startedAt).Seconds()
	}
	snaps := o.Snapshots()
	streams := make([]StreamReport, 0, len(snaps))
	for _, s := range snaps {
		streams = append(streams, StreamReport{
			Name:          s.Name,
			Endpoint:      s.URL,
			State:         s.State,
			UptimeSeconds: s.UptimeSeconds,
			ErrorCount:    s.ErrorCount,
			Resolution:    s.Resolution,
		})
	}
	return &Report{
		ID:                  id,
		StartedAt:           startedAt,
		StopReason:          reason,
		TestDurationSeconds: duration,
		TotalStreams:        len(streams),
		Streams:             streams,
	}
}

func (o *Orchestrator) logFinalReport(r *Report) {
	var b strings.Builder
	b.WriteString("\n==================== FINAL REPORT =====================\n")
	fmt.Fprintf(&b, "Run: %s | Duration: %.0fs | Streams: %d | Stopped: %s\n",
		r.ID, r.TestDurationSeconds, r.TotalStreams, r.StopReason)
	for _, s := range r.Streams {
		mark := "✓"
		if s.State == publisher.Failed.String() {
			mark = "✗"
		}
		fmt.Fprintf(&b, "  %s %s %s uptime=%.0fs errors=%d resolution=%s\n",
			mark, s.Name, s.Endpoint, s.UptimeSeconds, s.ErrorCount, s.Resolution)
	}
	b.WriteString("=======================================================")
	o.logger.Info(b.String())
}

// Shutdown asks the run to stop and waits for the final report.
func (o *Orchestrator) Shutdown() {
	o.requestStop("operator request")
	<-o.doneCh
}

// Done is closed once the run has fully wound down.
func (o *Orchestrator) Done() <-chan struct{} { return o.doneCh }

// StopStream takes down a single publisher without ending the run.
func (o *Orchestrator) StopStream(name string) error {
	o.lock.RLock()
	s, ok := o.streams[name]
	o.lock.RUnlock()
	if !ok {
		return fmt.Errorf("no such stream: %s", name)
	}
	s.Stop()
	return nil
}

func (o *Orchestrator) State() RunState {
	o.lock.RLock()
	defer o.lock.RUnlock()
	return o.state
}

func (o *Orchestrator) StopReason() string {
	o.lock.RLock()
	defer o.lock.RUnlock()
	return o.stopReason
}

func (o *Orchestrator) RunID() string { return o.runID }

func (o *Orchestrator) StartedAt() time.Time {
	o.lock.RLock()
	defer o.lock.RUnlock()
	return o.startedAt
}

func (o *Orchestrator) LastUsage() monitor.Usage {
	o.lock.RLock()
	defer o.lock.RUnlock()
	return o.lastUsage
}

// Report returns the final report, nil while the run is still going.
func (o *Orchestrator) Report() *Report {
	o.lock.RLock()
	defer o.lock.RUnlock()
	return o.report
}

// Snapshots returns one consistent view per stream, in start order.
func (o *Orchestrator) Snapshots() []publisher.Stats {
	o.lock.RLock()
	streams := make([]stream, 0, len(o.order))
	for _, name := range o.order {
		streams = append(streams, o.streams[name])
	}
	o.lock.RUnlock()

	stats := make([]publisher.Stats, 0, len(streams))
	for _, s := range streams {
		stats = append(stats, s.Snapshot())
	}
	return stats
}

func (o *Orchestrator) streamList() []stream {
	o.lock.RLock()
	defer o.lock.RUnlock()
	streams := make([]stream, 0, len(o.order))
	for _, name := range o.order {
		streams = append(streams, o.streams[name])
	}
	return streams
}

func formatBytes(n uint64) string {
	const (
		mib = 1 << 20
		gib = 1 << 30
	)
	if n >= gib {
		return fmt.Sprintf("%.1f GB", float64(n)/gib)
	}
	return fmt.Sprintf("%.0f MB", float64(n)/mib)
}
