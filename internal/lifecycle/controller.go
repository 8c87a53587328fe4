// Package lifecycle implements the upload-and-result lifecycle of a single
// browser session: select a video, send it for analysis, keep the returned
// counts and processed video link, and export them.
//
// The controller is an explicit four state machine:
//
//	Idle --select--> Ready --start--> Analyzing --settle--> Complete
//
// Selecting a new video from any state makes it Ready again. Results of the
// last successful analysis stay visible until another analysis succeeds.
package lifecycle

import (
	"context"
	"io"
	"sync"
	"time"

	"trafficanalyzer/internal/analysis"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/metrics"
	"trafficanalyzer/internal/model"
)

// Analyzer sends a video to the analysis service.
type Analyzer interface {
	ProcessVideo(ctx context.Context, fileName string, body io.Reader) (*analysis.Result, error)
}

// Notifier receives state changes and failure alerts.
type Notifier interface {
	Notify(Event)
}

// Recorder is told about every successful analysis.
type Recorder interface {
	RecordAnalysis(fileName string, result *analysis.Result) error
}

// Options configure a Controller. Analyzer is required.
type Options struct {
	Analyzer Analyzer
	Notifier Notifier
	Recorder Recorder
	Logger   *logger.Logger
	// Timeout bounds each request; zero leaves it to the transport.
	Timeout time.Duration
}

// Controller owns the state of one upload lifecycle. It is safe for
// concurrent use.
type Controller struct {
	analyzer Analyzer
	notifier Notifier
	recorder Recorder
	logger   *logger.Logger
	timeout  time.Duration

	mu       sync.Mutex
	state    State
	video    *Video
	counts   model.Counts
	videoURL string
	settled  bool // at least one request has settled
	replaced bool // a new video was selected while a request was in flight
	retired  bool
	lastUsed time.Time

	failures  uint64
	lastError string

	inFlight sync.WaitGroup
}

// NewController returns an Idle controller.
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Controller{
		analyzer: opts.Analyzer,
		notifier: opts.Notifier,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		timeout:  opts.Timeout,
		state:    StateIdle,
		counts:   model.Counts{},
		lastUsed: time.Now(),
	}
}

// SelectVideo replaces the selected video unconditionally and returns the
// one it replaced. A nil video clears the selection. A request already in
// flight is not cancelled; the controller stays Analyzing until it settles.
// A retired controller keeps nothing and hands v straight back.
func (c *Controller) SelectVideo(v *Video) (previous *Video) {
	c.mu.Lock()
	if c.retired {
		c.mu.Unlock()
		return v
	}
	previous = c.video
	c.video = v
	c.lastUsed = time.Now()

	switch {
	case c.state == StateAnalyzing:
		c.replaced = true
	case v != nil:
		c.state = StateReady
	case c.settled:
		c.state = StateComplete
	default:
		c.state = StateIdle
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if v != nil {
		c.logger.Info("Video selected: %s (%d bytes)", v.Name, v.Size)
	}
	c.notify(Event{Type: EventState, State: &snap})
	return previous
}

// StartAnalysis sends the selected video to the analysis service. It returns
// false without touching any state when no video is selected or a request is
// already in flight. Otherwise the request runs in the background and the
// outcome is applied when it settles.
func (c *Controller) StartAnalysis(ctx context.Context) bool {
	c.mu.Lock()
	if c.video == nil || c.state == StateAnalyzing {
		c.mu.Unlock()
		metrics.IgnoredStartsTotal.Inc()
		return false
	}

	video := c.video
	c.state = StateAnalyzing
	c.replaced = false
	c.lastError = ""
	c.lastUsed = time.Now()
	c.inFlight.Add(1)
	body, openErr := video.Open()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	metrics.AnalysesInFlight.Inc()
	c.logger.Info("Starting analysis of %s", video.Name)
	c.notify(Event{Type: EventState, State: &snap})

	if openErr != nil {
		c.settle(video.Name, nil, openErr)
		return true
	}

	go c.run(ctx, video.Name, body)
	return true
}

func (c *Controller) run(ctx context.Context, fileName string, body io.ReadCloser) {
	defer body.Close()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	result, err := c.analyzer.ProcessVideo(ctx, fileName, body)
	c.settle(fileName, result, err)
}

// settle applies the outcome of the in-flight request and clears loading.
func (c *Controller) settle(fileName string, result *analysis.Result, err error) {
	defer c.inFlight.Done()
	defer metrics.AnalysesInFlight.Dec()

	if err == nil && result == nil {
		result = &analysis.Result{}
	}

	// record before publishing so a Complete session always has its report
	if err == nil && c.recorder != nil {
		if recErr := c.recorder.RecordAnalysis(fileName, result); recErr != nil {
			c.logger.Warning("Could not record analysis of %s: %v", fileName, recErr)
		}
	}

	c.mu.Lock()
	if err == nil {
		c.counts = result.Summary.Clone()
		c.videoURL = result.VideoURL
	} else {
		c.failures++
		c.lastError = err.Error()
	}
	c.settled = true
	if c.replaced && c.video != nil {
		c.state = StateReady
	} else {
		c.state = StateComplete
	}
	c.replaced = false
	c.lastUsed = time.Now()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("Analysis of %s failed: %v", fileName, err)
		c.notify(Event{Type: EventAlert, Message: FailureMessage, Detail: err.Error()})
	}
	c.notify(Event{Type: EventState, State: &snap})
}

// Wait blocks until no request is in flight.
func (c *Controller) Wait() {
	c.inFlight.Wait()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:            c.state,
		Loading:          c.state == StateAnalyzing,
		Counts:           c.counts.Clone(),
		VideoURL:         c.videoURL,
		TriggerLabel:     LabelStart,
		CanAnalyze:       c.video != nil && c.state != StateAnalyzing,
		CanExportCSV:     c.counts.Len() > 0,
		CanDownloadVideo: c.videoURL != "",
		Failures:         c.failures,
		LastError:        c.lastError,
	}
	if s.Loading {
		s.TriggerLabel = LabelAnalyzing
	}
	if c.video != nil {
		s.FileName = c.video.Name
		s.FileSize = c.video.Size
	}
	return s
}

// Video returns the selected video, or nil.
func (c *Controller) Video() *Video {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video
}

// Busy reports whether a request is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateAnalyzing
}

// IdleSince returns when the controller was last touched.
func (c *Controller) IdleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Touch marks the controller as used now.
func (c *Controller) Touch() {
	c.mu.Lock()
	c.lastUsed = time.Now()
	c.mu.Unlock()
}

// Expire retires the controller if it has been idle since before cutoff and
// no request is in flight. It returns the selected video, which the caller
// discards, and whether the controller was retired.
func (c *Controller) Expire(cutoff time.Time) (*Video, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAnalyzing || c.lastUsed.After(cutoff) {
		return nil, false
	}
	return c.retireLocked(), true
}

// Retire stops the controller from keeping new videos and returns the
// selected one.
func (c *Controller) Retire() *Video {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retireLocked()
}

func (c *Controller) retireLocked() *Video {
	v := c.video
	c.video = nil
	c.retired = true
	return v
}

func (c *Controller) notify(ev Event) {
	if c.notifier != nil {
		c.notifier.Notify(ev)
	}
}
