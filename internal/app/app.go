// Package app runs fall detection over a frame source and connects the
// decision core to storage, alert plugins and the live dashboard.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/falldetect/internal/capture"
	"github.com/ayusman/falldetect/internal/detector"
	"github.com/ayusman/falldetect/internal/fall"
	"github.com/ayusman/falldetect/internal/overlay"
	"github.com/ayusman/falldetect/internal/plugin"
	"github.com/ayusman/falldetect/internal/server/api"
	"github.com/ayusman/falldetect/internal/store"
	"github.com/ayusman/falldetect/internal/trace"
)

// ErrRunning is returned by Start when a run is already in progress.
var ErrRunning = errors.New("detection already running")

// FrameSink receives annotated frames, e.g. the MJPEG stream buffer.
type FrameSink interface {
	Update(img *gocv.Mat) error
}

// Publisher pushes status updates to live clients.
type Publisher interface {
	Broadcast(v any) error
}

// Config holds the collaborators of an App. Camera and Detector are
// required; everything else is optional.
type Config struct {
	Camera     capture.Camera
	Detector   detector.Detector
	Thresholds fall.Thresholds

	// Source names the session in the store, e.g. "camera:0" or a file path.
	Source string
	// Mirror flips webcam frames. Recorded video is never mirrored.
	Mirror bool

	Store    *store.Store
	Plugins  *plugin.Manager
	Executor *plugin.Executor

	Frames   FrameSink
	Hub      Publisher
	Trace    *trace.Recorder
	Renderer *overlay.Renderer

	// Clock overrides frame timestamps. Nil uses the wall clock for
	// cameras and a FrameClock for video files.
	Clock func() time.Time

	// OnTransition is called after every phase change, outside the App lock.
	OnTransition func(tr fall.Transition, status api.Status)
}

// App is one fall detection session over a camera or video file.
type App struct {
	cfg     Config
	session *fall.Session

	mu        sync.RWMutex
	enabled   bool
	status    api.Status
	last      fall.Result
	lastFrame time.Time
	sessionID string
	openEvent *store.FallEvent
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	alerts sync.WaitGroup

	runMu   sync.Mutex
	stopRun context.CancelFunc
	done    chan struct{}
	runErr  error
}

// New creates an App with detection enabled.
func New(cfg Config) (*App, error) {
	if cfg.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if cfg.Detector == nil {
		return nil, errors.New("app: detector is required")
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if cfg.Executor == nil {
		cfg.Executor = plugin.NewExecutor(plugin.DefaultTimeout)
	}
	if cfg.Renderer == nil {
		cfg.Renderer = overlay.NewRenderer()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:     cfg,
		session: fall.NewSession(cfg.Thresholds),
		enabled: true,
		ctx:     ctx,
		cancel:  cancel,
	}
	a.status = a.statusLocked(fall.Result{State: fall.Reset()}, time.Now())
	return a, nil
}

// Run opens the camera and processes frames until the stream ends, the
// operator quits or ctx is canceled. display may be nil.
func (a *App) Run(ctx context.Context, display Display) error {
	cam := a.cfg.Camera
	if err := cam.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer func() {
		if err := cam.Close(); err != nil {
			log.Printf("Error closing camera: %v", err)
		}
	}()

	if err := a.beginSession(); err != nil {
		return err
	}
	defer a.endSession()

	clock := a.cfg.Clock
	if clock == nil && cam.IsFile() {
		clock = FrameClock(time.Now(), cam.FPS())
	}

	loop := &Loop{
		Camera:  cam,
		Handler: a,
		Display: display,
		Mirror:  a.cfg.Mirror && !cam.IsFile(),
		Clock:   clock,
	}
	log.Printf("Fall detection started (source: %s)", a.cfg.Source)
	err := loop.Run(ctx)
	log.Println("Fall detection stopped")
	return err
}

// Start runs the detection loop headless in the background.
func (a *App) Start() error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.done != nil {
		select {
		case <-a.done:
		default:
			return ErrRunning
		}
	}

	ctx, cancel := context.WithCancel(a.ctx)
	a.stopRun = cancel
	a.done = make(chan struct{})
	a.runErr = nil

	done := a.done
	go func() {
		defer close(done)
		err := a.Run(ctx, nil)
		a.runMu.Lock()
		a.runErr = err
		a.runMu.Unlock()
	}()
	return nil
}

// Stop ends a background run and waits for it to finish.
func (a *App) Stop() {
	a.runMu.Lock()
	stop, done := a.stopRun, a.done
	a.runMu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

// Done is closed when the background run started by Start ends.
func (a *App) Done() <-chan struct{} {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.done
}

// Err returns the error that ended the last background run.
func (a *App) Err() error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.runErr
}

// Close stops any run, waits for in-flight alerts and releases the detector
// and trace recorder.
func (a *App) Close() error {
	a.Stop()

	// Alerts are only added under a.mu, so none can start after this.
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.alerts.Wait()
	a.cancel()

	var errs []error
	if err := a.cfg.Detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}
	if a.cfg.Trace != nil {
		if err := a.cfg.Trace.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trace: %w", err))
		}
	}
	return errors.Join(errs...)
}

// HandleFrame runs one detection tick on frame and annotates it.
func (a *App) HandleFrame(frame *gocv.Mat, now time.Time) error {
	if !a.IsEnabled() {
		a.publishFrame(frame)
		return nil
	}

	lm, err := a.cfg.Detector.Detect(frame)
	if err != nil {
		a.publishFrame(frame)
		return fmt.Errorf("detect pose: %w", err)
	}

	a.mu.Lock()
	res := a.session.Tick(lm, now)
	fps := 0.0
	if !a.lastFrame.IsZero() && now.After(a.lastFrame) {
		fps = 1 / now.Sub(a.lastFrame).Seconds()
	}
	a.lastFrame = now
	a.last = res
	if res.Transition.Changed() {
		a.handleTransitionLocked(res.Transition, res)
	}
	status := a.statusLocked(res, now)
	a.status = status
	a.mu.Unlock()

	if a.cfg.Trace != nil {
		if err := a.cfg.Trace.Record(res, now); err != nil {
			log.Printf("Error recording trace: %v", err)
		}
	}

	a.cfg.Renderer.Draw(frame, lm, res, fps)
	a.publishFrame(frame)
	a.publish(res.Transition, status)
	return nil
}

// Reset clears a suspected or confirmed fall.
func (a *App) Reset() {
	now := time.Now()

	a.mu.Lock()
	tr := a.session.Reset(now)
	a.last.State = a.session.State()
	a.last.Elapsed = 0
	a.last.Transition = tr
	if tr.Changed() {
		a.handleTransitionLocked(tr, a.last)
	}
	status := a.statusLocked(a.last, now)
	a.status = status
	a.mu.Unlock()

	a.publish(tr, status)
}

// SetEnabled pauses or resumes detection. Pausing drops a pending
// suspicion; a confirmed fall stays until reset.
func (a *App) SetEnabled(enabled bool) {
	now := time.Now()

	a.mu.Lock()
	if a.enabled == enabled {
		a.mu.Unlock()
		return
	}
	a.enabled = enabled
	var tr fall.Transition
	if !enabled && a.session.State().Phase == fall.PhaseSuspected {
		tr = a.session.Reset(now)
		a.last.State = a.session.State()
		a.last.Elapsed = 0
		a.handleTransitionLocked(tr, a.last)
	}
	status := a.statusLocked(a.last, now)
	a.status = status
	a.mu.Unlock()

	if enabled {
		log.Println("Fall detection enabled")
	} else {
		log.Println("Fall detection paused")
	}
	a.publish(tr, status)
}

// IsEnabled reports whether frames are being analyzed.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Status returns the status of the latest tick.
func (a *App) Status() api.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Phase returns the current fall phase.
func (a *App) Phase() fall.Phase {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.State().Phase
}

// SessionID returns the store session of the current run, if any.
func (a *App) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

func (a *App) statusLocked(res fall.Result, now time.Time) api.Status {
	st := api.NewStatus(res, now)
	st.Enabled = a.enabled
	st.SessionID = a.sessionID
	return st
}

func (a *App) beginSession() error {
	if a.cfg.Store == nil {
		return nil
	}
	sess := &store.Session{Source: a.cfg.Source, StartedAt: time.Now()}
	if err := a.cfg.Store.Sessions().Create(sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	a.mu.Lock()
	a.sessionID = sess.ID
	a.status.SessionID = sess.ID
	a.mu.Unlock()
	return nil
}

func (a *App) endSession() {
	a.mu.Lock()
	id := a.sessionID
	a.mu.Unlock()

	if a.cfg.Store == nil || id == "" {
		return
	}
	if err := a.cfg.Store.Sessions().End(id, time.Now()); err != nil {
		log.Printf("Error ending session %s: %v", id, err)
	}
}

// handleTransitionLocked logs a phase change, keeps the event table in step
// and fires the matching alerts. a.mu must be held.
func (a *App) handleTransitionLocked(tr fall.Transition, res fall.Result) {
	snap := res.Snapshot
	switch {
	case tr.To == fall.PhaseSuspected:
		log.Printf("Potential fall (velocity=%s, angle=%s, hip=%s)",
			snap.VerticalVelocity.Format(2), snap.TorsoAngle.Format(1), snap.HipHeight.Format(2))
		a.fireAlerts(store.TriggerSuspected, res, nil)

	case tr.To == fall.PhaseConfirmed:
		log.Printf("FALL CONFIRMED after %.1fs", tr.At.Sub(res.State.Since).Seconds())
		ev := &store.FallEvent{
			SessionID:        a.sessionID,
			SuspectedAt:      res.State.Since,
			ConfirmedAt:      tr.At,
			VerticalVelocity: snap.VerticalVelocity.Ptr(),
			TorsoAngle:       snap.TorsoAngle.Ptr(),
			HipHeight:        snap.HipHeight.Ptr(),
		}
		if a.cfg.Store != nil && a.sessionID != "" {
			if err := a.cfg.Store.Events().Create(ev); err != nil {
				log.Printf("Error recording fall event: %v", err)
			}
		}
		a.openEvent = ev
		a.fireAlerts(store.TriggerConfirmed, res, ev)

	case tr.From == fall.PhaseConfirmed:
		log.Println("Fall state reset")
		ev := a.openEvent
		a.openEvent = nil
		if ev != nil {
			ev.ResetAt = &tr.At
			if a.cfg.Store != nil && a.sessionID != "" {
				if err := a.cfg.Store.Events().Resolve(ev.ID, tr.At); err != nil {
					log.Printf("Error resolving fall event %s: %v", ev.ID, err)
				}
			}
		}
		a.fireAlerts(store.TriggerReset, res, ev)

	default:
		log.Println("Potential fall cleared")
	}
}

type alertTarget struct {
	plugin *plugin.Plugin
	action string
	config json.RawMessage
}

// alertTargets resolves the plugins to run for trigger. Configured alerts
// win; without a store every plugin declaring the action runs.
func (a *App) alertTargets(trigger store.Trigger) []alertTarget {
	if a.cfg.Plugins == nil {
		return nil
	}

	if a.cfg.Store == nil {
		var targets []alertTarget
		for _, p := range a.cfg.Plugins.ForAction(trigger.Action()) {
			targets = append(targets, alertTarget{plugin: p, action: trigger.Action()})
		}
		return targets
	}

	alerts, err := a.cfg.Store.Alerts().ListEnabled(trigger)
	if err != nil {
		log.Printf("Error loading alerts: %v", err)
		return nil
	}

	var targets []alertTarget
	for _, al := range alerts {
		p, err := a.cfg.Plugins.Get(al.PluginName)
		if err != nil {
			log.Printf("Alert %s: %v", al.ID, err)
			continue
		}
		action := al.ActionName
		if action == "" {
			action = trigger.Action()
		}
		targets = append(targets, alertTarget{plugin: p, action: action, config: al.Config})
	}
	return targets
}

// fireAlerts runs the alert plugins for trigger in the background. a.mu
// must be held.
func (a *App) fireAlerts(trigger store.Trigger, res fall.Result, ev *store.FallEvent) {
	if a.closed {
		log.Printf("App closed, not sending %s alerts", trigger)
		return
	}
	targets := a.alertTargets(trigger)
	if len(targets) == 0 {
		return
	}

	var event json.RawMessage
	if ev != nil {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("Error encoding fall event: %v", err)
		} else {
			event = data
		}
	}

	at := res.Transition.At
	if at.IsZero() {
		at = time.Now()
	}

	for _, t := range targets {
		req := &plugin.Request{
			Action:    t.action,
			Event:     event,
			Status:    fall.Label(res),
			SessionID: a.sessionID,
			Timestamp: at,
			Config:    t.config,
		}

		a.alerts.Add(1)
		go func(p *plugin.Plugin) {
			defer a.alerts.Done()
			resp, err := a.cfg.Executor.ExecuteContext(a.ctx, p, req)
			switch {
			case err != nil:
				log.Printf("Plugin %s failed for %s: %v", p.Manifest.Name, req.Action, err)
			case !resp.Success:
				log.Printf("Plugin %s returned error for %s: %s", p.Manifest.Name, req.Action, resp.Error)
			default:
				log.Printf("Plugin %s handled %s", p.Manifest.Name, req.Action)
			}
		}(t.plugin)
	}
}

// WaitAlerts blocks until every alert plugin started so far has finished.
func (a *App) WaitAlerts() {
	a.alerts.Wait()
}

func (a *App) publishFrame(frame *gocv.Mat) {
	if a.cfg.Frames == nil {
		return
	}
	if err := a.cfg.Frames.Update(frame); err != nil {
		log.Printf("Error updating stream frame: %v", err)
	}
}

func (a *App) publish(tr fall.Transition, status api.Status) {
	if a.cfg.Hub != nil {
		if err := a.cfg.Hub.Broadcast(status); err != nil {
			log.Printf("Error broadcasting status: %v", err)
		}
	}
	if tr.Changed() && a.cfg.OnTransition != nil {
		a.cfg.OnTransition(tr, status)
	}
}
