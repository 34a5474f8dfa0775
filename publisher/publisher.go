package publisher

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/ilhamfadhil14/load-test-rtsp-stream/log"
)

const (
	// MaxErrors is the crash budget. A publisher whose encoder dies this
	// many times stops respawning and stays Failed.
	MaxErrors = 10

	defaultStopGrace    = 5 * time.Second
	defaultRestartDelay = 2 * time.Second
)

// Spec describes one publisher: where its video comes from, where it
// goes, and how it is encoded. It never changes after construction.
type Spec struct {
	Name        string
	URL         string
	VideoPath   string
	Loop        bool
	FPS         int
	Codec       string
	Preset      string
	Bitrate     string
	PixelFormat string
}

// Stats is a point-in-time view of a publisher, shaped for reports.
type Stats struct {
	Name          string     `json:"name"`
	URL           string     `json:"endpoint"`
	State         string     `json:"state"`
	Healthy       bool       `json:"healthy"`
	UptimeSeconds float64    `json:"uptimeSeconds"`
	ErrorCount    int        `json:"errorCount"`
	LastRestartAt *time.Time `json:"lastRestartAt,omitempty"`
	VideoPath     string     `json:"videoPath"`
	Resolution    string     `json:"lastKnownResolution"`
	FPS           float64    `json:"fps"`
}

// SpawnError reports a publisher whose encoder never came up. It does
// not count against the crash budget; only a started encoder that dies
// does.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("publisher[%s] spawn failed: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Publisher supervises a single ffmpeg process pushing one stream. At
// most one encoder process is alive at any moment; crashes are counted
// and the encoder relaunched until the crash budget runs out.
type Publisher struct {
	spec Spec

	lock        sync.RWMutex
	state       State
	cmd         *exec.Cmd
	errorCount  int
	media       *MediaInfo
	startedAt   time.Time
	stoppedAt   time.Time
	restartedAt time.Time
	launched    bool
	killed      bool

	stopCh chan struct{}
	done   chan struct{}

	restartDelay time.Duration
	stopGrace    time.Duration
	factory      commandFactory
	probe        probeFunc
	stderr       *tailBuffer
	logger       *log.Logger
}

func NewPublisher(spec Spec) *Publisher {
	return &Publisher{
		spec:         spec,
		state:        Created,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
		restartDelay: defaultRestartDelay,
		stopGrace:    defaultStopGrace,
		factory:      ffmpegCommand,
		probe:        probeMediaInfo,
		stderr:       newTailBuffer(4096),
		logger:       log.NewLogger(spec.Name, log.StreamId),
	}
}

func (p *Publisher) Name() string { return p.spec.Name }

func (p *Publisher) URL() string { return p.spec.URL }

// Start probes the source, launches the encoder and hands it to the
// supervision goroutine. A launch that never comes up returns a
// *SpawnError and leaves the publisher Failed.
func (p *Publisher) Start() error {
	p.lock.Lock()
	if p.state != Created {
		state := p.state
		p.lock.Unlock()
		return fmt.Errorf("publisher[%s] cannot start from state %s", p.spec.Name, state)
	}
	p.state = Starting
	p.lock.Unlock()

	// Source metadata is best effort; the stream works without it.
	if info, err := p.probe(p.spec.VideoPath); err != nil {
		p.logger.Warn("could not read video info: ", err)
	} else {
		p.lock.Lock()
		p.media = &info
		p.lock.Unlock()
	}

	cmd, launchErr := p.launch()

	p.lock.Lock()
	select {
	case <-p.stopCh:
		// stopped while still starting
		p.state = Stopped
		p.stoppedAt = time.Now()
		p.lock.Unlock()
		if cmd != nil {
			terminateProc(cmd)
			cmd.Wait()
		}
		return nil
	default:
	}
	if launchErr != nil {
		p.state = Failed
		p.stoppedAt = time.Now()
		p.lock.Unlock()
		return &SpawnError{Name: p.spec.Name, Err: launchErr}
	}
	p.cmd = cmd
	p.state = Running
	p.launched = true
	p.startedAt = time.Now()
	p.lock.Unlock()

	go p.supervise(cmd)
	p.logger.Info(fmt.Sprintf("publishing %s -> %s", p.spec.VideoPath, p.spec.URL))
	return nil
}

// Stop terminates the encoder and waits for supervision to wind down.
// SIGTERM first, SIGKILL after the grace period, at most one force
// kill. Safe to call more than once; only the first call does the work.
func (p *Publisher) Stop() {
	p.lock.Lock()
	switch p.state {
	case Stopping, Stopped, Failed:
		p.lock.Unlock()
		return
	case Created:
		p.state = Stopped
		p.stoppedAt = time.Now()
		close(p.stopCh)
		p.lock.Unlock()
		return
	}
	// Stopping must be visible before the signal goes out so the exit
	// is never taken for a crash.
	p.state = Stopping
	close(p.stopCh)
	launched := p.launched
	cmd := p.cmd
	p.lock.Unlock()

	if launched {
		terminateProc(cmd)
		select {
		case <-p.done:
		case <-time.After(p.stopGrace):
			p.logger.Warn(fmt.Sprintf("encoder ignored SIGTERM for %v, sending SIGKILL", p.stopGrace))
			p.lock.Lock()
			cmd = p.cmd
			alreadyKilled := p.killed
			p.killed = true
			p.lock.Unlock()
			if !alreadyKilled {
				killProc(cmd)
			}
			<-p.done
		}
	}

	p.lock.Lock()
	p.state = Stopped
	p.stoppedAt = time.Now()
	p.lock.Unlock()
	p.logger.Info("stopped")
}

// Healthy reports whether the encoder is up: Running, supervision
// alive, crash budget not exhausted.
func (p *Publisher) Healthy() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.healthyLocked()
}

func (p *Publisher) healthyLocked() bool {
	if p.state != Running || p.errorCount >= MaxErrors {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Snapshot returns one consistent view of the publisher.
func (p *Publisher) Snapshot() Stats {
	p.lock.RLock()
	defer p.lock.RUnlock()
	resolution := "unknown"
	fps := 0.0
	if p.media != nil {
		resolution = p.media.Resolution()
		fps = p.media.FPS
	}
	var lastRestart *time.Time
	if !p.restartedAt.IsZero() {
		at := p.restartedAt
		lastRestart = &at
	}
	return Stats{
		Name:          p.spec.Name,
		URL:           p.spec.URL,
		State:         p.state.String(),
		Healthy:       p.healthyLocked(),
		UptimeSeconds: p.uptimeLocked(),
		ErrorCount:    p.errorCount,
		LastRestartAt: lastRestart,
		VideoPath:     p.spec.VideoPath,
		Resolution:    resolution,
		FPS:           fps,
	}
}

func (p *Publisher) State() State {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.state
}

func (p *Publisher) ErrorCount() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.errorCount
}

// uptime runs from the first successful launch and freezes when the
// publisher stops or fails. Restarts do not reset it.
func (p *Publisher) uptimeLocked() float64 {
	if p.startedAt.IsZero() {
		return 0
	}
	end := p.stoppedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(p.startedAt).Seconds()
}

func (p *Publisher) launch() (*exec.Cmd, error) {
	cmd := p.factory(p.spec)
	p.stderr.Reset()
	cmd.Stderr = p.stderr
	setProcGroup(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// supervise waits on the encoder, counting unexpected exits and
// relaunching until a stop is requested or the crash budget runs out.
// It owns the done channel; Stop joins on it.
func (p *Publisher) supervise(cmd *exec.Cmd) {
	defer close(p.done)
	for {
		var waitErr error
		if cmd != nil {
			waitErr = cmd.Wait()
		}

		p.lock.Lock()
		if p.state == Stopping {
			p.lock.Unlock()
			return
		}
		p.errorCount++
		count := p.errorCount
		p.lock.Unlock()

		if cmd != nil {
			p.logger.Error(fmt.Sprintf("encoder exited unexpectedly (%v), crash %d/%d", waitErr, count, MaxErrors))
			if excerpt := p.stderr.Excerpt(); excerpt != "" {
				p.logger.Error("last encoder output: ", excerpt)
			}
		}

		if count >= MaxErrors {
			p.lock.Lock()
			p.state = Failed
			p.stoppedAt = time.Now()
			p.lock.Unlock()
			p.logger.Error(fmt.Sprintf("crash budget exhausted after %d errors, giving up", count))
			return
		}

		p.lock.Lock()
		p.state = Restarting
		p.lock.Unlock()

		select {
		case <-p.stopCh:
			return
		case <-time.After(p.restartDelay):
		}

		next, err := p.launch()
		if err != nil {
			p.logger.Error("encoder relaunch failed: ", err)
			cmd = nil
			continue
		}

		p.lock.Lock()
		if p.state == Stopping {
			// a stop raced the relaunch; take the fresh process down
			p.lock.Unlock()
			terminateProc(next)
			next.Wait()
			return
		}
		p.cmd = next
		p.state = Running
		p.restartedAt = time.Now()
		p.lock.Unlock()
		p.logger.Info(fmt.Sprintf("encoder restarted after crash %d/%d", count, MaxErrors))
		cmd = next
	}
}
