package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ilhamfadhil14/load-test-rtsp-stream/config"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/monitor"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/publisher"
)

// fakeStream stands in for a publisher so the run loop can be driven
// without spawning processes.
type fakeStream struct {
	spec     publisher.Spec
	startErr error
	starts   int32
	stops    int32
}

func (f *fakeStream) Start() error {
	atomic.AddInt32(&f.starts, 1)
	return f.startErr
}

func (f *fakeStream) Stop() {
	atomic.AddInt32(&f.stops, 1)
}

func (f *fakeStream) Healthy() bool {
	return f.startErr == nil &&
		atomic.LoadInt32(&f.starts) > 0 &&
		atomic.LoadInt32(&f.stops) == 0
}

func (f *fakeStream) Snapshot() publisher.Stats {
	state := "running"
	if atomic.LoadInt32(&f.stops) > 0 {
		state = "stopped"
	}
	return publisher.Stats{
		Name:       f.spec.Name,
		URL:        f.spec.URL,
		State:      state,
		Healthy:    f.Healthy(),
		Resolution: "640x480",
	}
}

func (f *fakeStream) stopCount() int32 { return atomic.LoadInt32(&f.stops) }

type fakeSet struct {
	lock    sync.Mutex
	streams map[string]*fakeStream
}

func (fs *fakeSet) get(name string) *fakeStream {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.streams[name]
}

func (fs *fakeSet) all() []*fakeStream {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	out := make([]*fakeStream, 0, len(fs.streams))
	for _, f := range fs.streams {
		out = append(out, f)
	}
	return out
}

func newTestOrchestrator(t *testing.T, cfg *config.Config) (*Orchestrator, *fakeSet) {
	t.Helper()
	o := New(cfg, nil)
	fakes := &fakeSet{streams: make(map[string]*fakeStream)}
	o.newStream = func(spec publisher.Spec) stream {
		f := &fakeStream{spec: spec}
		fakes.lock.Lock()
		fakes.streams[spec.Name] = f
		fakes.lock.Unlock()
		return f
	}
	o.startStagger = time.Millisecond
	o.sampler = func(context.Context) (monitor.Usage, error) {
		return monitor.Usage{CPUPercent: 10, MemoryPercent: 20, MemoryUsed: 1 << 30, MemoryTotal: 4 << 30}, nil
	}
	return o, fakes
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestRunDurationExpiry(t *testing.T) {
	cfg := validConfig(t)
	cfg.LoadTest.Duration = 1
	o, fakes := newTestOrchestrator(t, cfg)

	start := time.Now()
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("run overstayed its duration: %v", elapsed)
	}

	if got := o.State(); got != Stopped {
		t.Errorf("state = %v", got)
	}
	if got := o.StopReason(); got != "duration reached" {
		t.Errorf("stop reason = %q", got)
	}
	report := o.Report()
	if report == nil {
		t.Fatal("no report after the run")
	}
	if report.TotalStreams != 3 || len(report.Streams) != 3 {
		t.Errorf("report streams = %d/%d", report.TotalStreams, len(report.Streams))
	}
	if report.Streams[0].Name != "stream1" || report.Streams[0].Endpoint != "rtsp://localhost:8554/stream1" {
		t.Errorf("report stream identity = %+v", report.Streams[0])
	}
	for _, f := range fakes.all() {
		if got := f.stopCount(); got != 1 {
			t.Errorf("%s stopped %d times", f.spec.Name, got)
		}
	}
}

func TestRunMemoryLimitStopsTheRun(t *testing.T) {
	cfg := validConfig(t)
	o, fakes := newTestOrchestrator(t, cfg)
	o.sampler = func(context.Context) (monitor.Usage, error) {
		return monitor.Usage{CPUPercent: 10, MemoryPercent: 85, MemoryUsed: 3 << 30, MemoryTotal: 4 << 30}, nil
	}

	start := time.Now()
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("memory breach took too long to act: %v", elapsed)
	}
	if got := o.StopReason(); got != "memory limit exceeded" {
		t.Errorf("stop reason = %q", got)
	}
	for _, f := range fakes.all() {
		if got := f.stopCount(); got != 1 {
			t.Errorf("%s stopped %d times", f.spec.Name, got)
		}
	}
}

func TestRunCPUBreachOnlyWarns(t *testing.T) {
	cfg := validConfig(t)
	cfg.LoadTest.Duration = 2
	o, _ := newTestOrchestrator(t, cfg)
	o.sampler = func(context.Context) (monitor.Usage, error) {
		return monitor.Usage{CPUPercent: 95, MemoryPercent: 20, MemoryUsed: 1 << 30, MemoryTotal: 4 << 30}, nil
	}

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The CPU breach on the first tick must not have ended the run.
	if got := o.StopReason(); got != "duration reached" {
		t.Errorf("stop reason = %q", got)
	}
}

func TestRunContextCanceled(t *testing.T) {
	cfg := validConfig(t)
	o, fakes := newTestOrchestrator(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(ctx) }()
	waitFor(t, 5*time.Second, func() bool { return o.State() == Running })

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := o.StopReason(); got != "interrupted" {
		t.Errorf("stop reason = %q", got)
	}
	for _, f := range fakes.all() {
		if got := f.stopCount(); got != 1 {
			t.Errorf("%s stopped %d times", f.spec.Name, got)
		}
	}
}

func TestShutdownConcurrent(t *testing.T) {
	cfg := validConfig(t)
	o, fakes := newTestOrchestrator(t, cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(context.Background()) }()
	waitFor(t, 5*time.Second, func() bool { return o.State() == Running })

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Shutdown()
		}()
	}
	wg.Wait()

	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := o.State(); got != Stopped {
		t.Errorf("state = %v", got)
	}
	if got := o.StopReason(); got != "operator request" {
		t.Errorf("stop reason = %q", got)
	}
	if o.Report() == nil {
		t.Error("no report after shutdown")
	}
	// Concurrent shutdowns must not stop a stream twice.
	for _, f := range fakes.all() {
		if got := f.stopCount(); got != 1 {
			t.Errorf("%s stopped %d times", f.spec.Name, got)
		}
	}
}

func TestRunAbortsWhenNothingStarts(t *testing.T) {
	cfg := validConfig(t)
	o, fakes := newTestOrchestrator(t, cfg)
	inner := o.newStream
	o.newStream = func(spec publisher.Spec) stream {
		s := inner(spec)
		s.(*fakeStream).startErr = errors.New("spawn failed")
		return s
	}

	err := o.Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded with no publisher up")
	}
	if got := o.StopReason(); got != "no publishers started" {
		t.Errorf("stop reason = %q", got)
	}
	if got := o.State(); got != Stopped {
		t.Errorf("state = %v", got)
	}
	if report := o.Report(); report == nil || report.TotalStreams != 3 {
		t.Errorf("report = %+v", report)
	}
	for _, f := range fakes.all() {
		if got := f.stopCount(); got != 1 {
			t.Errorf("%s stopped %d times", f.spec.Name, got)
		}
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.RTSPServer.BaseURL = ""
	o, _ := newTestOrchestrator(t, cfg)

	err := o.Run(context.Background())
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v (%T), want *ConfigError", err, err)
	}
	if got := o.State(); got != Stopped {
		t.Errorf("state = %v", got)
	}
	if o.Report() != nil {
		t.Error("report should be nil for a run that never started")
	}
	select {
	case <-o.Done():
	default:
		t.Error("Done must be closed after a rejected run")
	}
}

func TestStopStream(t *testing.T) {
	cfg := validConfig(t)
	o, fakes := newTestOrchestrator(t, cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(context.Background()) }()
	waitFor(t, 5*time.Second, func() bool { return o.State() == Running })

	if err := o.StopStream("stream2"); err != nil {
		t.Fatalf("StopStream: %v", err)
	}
	if got := fakes.get("stream2").stopCount(); got != 1 {
		t.Errorf("stream2 stopped %d times", got)
	}
	if got := fakes.get("stream1").stopCount(); got != 0 {
		t.Errorf("stream1 stopped %d times without being asked", got)
	}
	if err := o.StopStream("no-such-stream"); err == nil {
		t.Error("StopStream accepted an unknown name")
	}

	o.Shutdown()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The already stopped stream collects one more Stop on shutdown;
	// publishers treat that as a no-op.
	if got := fakes.get("stream1").stopCount(); got != 1 {
		t.Errorf("stream1 stopped %d times total", got)
	}
}

func TestSnapshotsKeepStartOrder(t *testing.T) {
	cfg := validConfig(t)
	o, _ := newTestOrchestrator(t, cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(context.Background()) }()
	waitFor(t, 5*time.Second, func() bool { return o.State() == Running })

	snaps := o.Snapshots()
	if len(snaps) != 3 {
		t.Fatalf("len(snaps) = %d", len(snaps))
	}
	for i, want := range []string{"stream1", "stream2", "stream3"} {
		if snaps[i].Name != want {
			t.Errorf("snaps[%d].Name = %q, want %q", i, snaps[i].Name, want)
		}
	}

	o.Shutdown()
	<-errCh
}

func TestRunStateString(t *testing.T) {
	cases := map[RunState]string{
		Validating:   "validating",
		Running:      "running",
		Stopping:     "stopping",
		Stopped:      "stopped",
		RunState(99): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("RunState(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	if got := formatBytes(512 << 20); got != "512 MB" {
		t.Errorf("formatBytes(512MiB) = %q", got)
	}
	if got := formatBytes(2 << 30); got != "2.0 GB" {
		t.Errorf("formatBytes(2GiB) = %q", got)
	}
}
