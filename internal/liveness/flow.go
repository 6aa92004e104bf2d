package liveness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/kyc-console-go/internal/apiclient"
	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/logger"
	"github.com/anime-shed/kyc-console-go/internal/observer"
)

// Variant selects the challenge family.
type Variant string

const (
	VariantAction Variant = "action"
	VariantRGB    Variant = "rgb"
)

// ParseVariant accepts "action" or "rgb".
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantAction, VariantRGB:
		return Variant(s), nil
	}
	return "", fmt.Errorf("unknown liveness variant %q", s)
}

// State is a liveness flow phase.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateRecording State = "recording"
	StateUploading State = "uploading"
	StateVerifying State = "verifying"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// DefaultStepDuration is how long each challenge prompt is recorded.
const DefaultStepDuration = 2 * time.Second

// ErrBusy is returned when Run is called while a run is in progress.
var ErrBusy = errors.New("liveness flow already running")

// Backend is the liveness session API.
type Backend interface {
	CreateLivenessSession(ctx context.Context, variant string) apiclient.Result
	UploadLiveness(ctx context.Context, variant string, form *apiclient.Multipart) apiclient.Result
	LivenessResult(ctx context.Context, variant, sessionID, uploadID string) apiclient.Result
}

// Challenge is the session issued by the backend.
type Challenge struct {
	SessionID string   `json:"session_id"`
	UploadID  string   `json:"upload_id"`
	TraceID   string   `json:"trace_id"`
	Actions   []string `json:"actions,omitempty"`
	Colors    []string `json:"colors,omitempty"`
	ExpiresAt int64    `json:"expires_at,omitempty"`
}

// Prompts returns the sequence shown to the user while recording.
func (c Challenge) Prompts() []string {
	if len(c.Actions) > 0 {
		return c.Actions
	}
	return c.Colors
}

// Verdict is the terminal answer of a completed flow.
type Verdict struct {
	Passed      bool     `json:"passed"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
	Message     string   `json:"message,omitempty"`
	TraceID     string   `json:"trace_id,omitempty"`
	Attempts    int      `json:"attempts"`
}

type pollAnswer struct {
	Passed      *bool    `json:"passed"`
	ReasonCodes []string `json:"reason_codes"`
	Message     string   `json:"message"`
}

// Flow drives one liveness session from camera to verdict.
type Flow struct {
	backend Backend
	device  MediaDevice
	variant Variant
	poller  Poller
	step    time.Duration
	subject observer.Subject

	running atomic.Bool
	mu      sync.Mutex
	state   State
	history []State
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithPoller overrides the 1s x 30 verdict poller.
func WithPoller(p Poller) FlowOption {
	return func(f *Flow) { f.poller = p }
}

// WithStepDuration sets how long each prompt is recorded.
func WithStepDuration(d time.Duration) FlowOption {
	return func(f *Flow) { f.step = d }
}

// WithSubject publishes state changes to s.
func WithSubject(s observer.Subject) FlowOption {
	return func(f *Flow) { f.subject = s }
}

// NewFlow creates an idle flow.
func NewFlow(backend Backend, device MediaDevice, variant Variant, opts ...FlowOption) *Flow {
	f := &Flow{
		backend: backend,
		device:  device,
		variant: variant,
		poller:  NewPoller(),
		step:    DefaultStepDuration,
		subject: observer.Nop{},
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the current phase.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// History returns every phase entered by the last run, in order.
func (f *Flow) History() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]State(nil), f.history...)
}

// Run performs the whole flow. Failures return an *AppError and leave the flow in StateFailed.
func (f *Flow) Run(ctx context.Context) (Verdict, error) {
	if !f.running.CompareAndSwap(false, true) {
		return Verdict{}, ErrBusy
	}
	defer f.running.Store(false)

	f.mu.Lock()
	f.state = StateIdle
	f.history = []State{StateIdle}
	f.mu.Unlock()

	start := time.Now()
	verdict, outcome, err := f.run(ctx)

	event := observer.ConsoleEvent{
		EventType: observer.LivenessFinished,
		Feature:   "liveness_" + string(f.variant),
		Duration:  time.Since(start),
		Success:   err == nil && verdict.Passed,
		Outcome:   outcome,
		TraceID:   verdict.TraceID,
		Metadata:  map[string]any{"variant": string(f.variant), "attempts": verdict.Attempts},
	}
	if err != nil {
		f.transition(ctx, StateFailed)
		event.Error = err.Error()
	} else {
		f.transition(ctx, StateCompleted)
	}
	f.subject.NotifyObservers(ctx, event)
	return verdict, err
}

func (f *Flow) run(ctx context.Context) (Verdict, string, error) {
	log := logger.WithFields(logrus.Fields{"variant": f.variant})

	f.transition(ctx, StateStarting)
	stream, used, err := Acquire(ctx, f.device, f.variant)
	if err != nil {
		log.WithError(err).Warn("Camera acquisition failed")
		return Verdict{}, "camera_unavailable", apperrors.NewForbiddenError("Camera access is unavailable", err).
			WithDetails("allow camera permission or connect a camera and try again")
	}
	defer stream.Close()
	log.WithField("audio", used.Audio).Debug("Camera acquired")

	res := f.backend.CreateLivenessSession(ctx, string(f.variant))
	if !res.OK() {
		return Verdict{}, outcomeFor(res), res.Err()
	}
	var ch Challenge
	if err := res.Decode(&ch); err != nil {
		return Verdict{}, "error", err
	}
	if ch.SessionID == "" || ch.UploadID == "" {
		return Verdict{}, "error", apperrors.NewInternalError("liveness session is missing identifiers", nil).WithTraceID(res.Meta.RequestID)
	}
	verdict := Verdict{TraceID: ch.TraceID}

	f.transition(ctx, StateRecording)
	for _, prompt := range ch.Prompts() {
		if err := stream.Record(ctx, prompt, f.step); err != nil {
			return verdict, "canceled", apperrors.NewNetworkError("Recording interrupted", err).WithTraceID(ch.TraceID)
		}
	}
	rec, err := stream.Finish()
	if err != nil {
		return verdict, "error", apperrors.NewInternalError("Recording failed", err).WithTraceID(ch.TraceID)
	}

	f.transition(ctx, StateUploading)
	form, err := uploadForm(ch, rec)
	if err != nil {
		return verdict, "error", apperrors.NewInternalError("build upload form", err)
	}
	if res := f.backend.UploadLiveness(ctx, string(f.variant), form); !res.OK() {
		return verdict, outcomeFor(res), res.Err()
	}

	f.transition(ctx, StateVerifying)
	attempts, err := f.poller.Poll(ctx, func(ctx context.Context, attempt int) (bool, error) {
		res := f.backend.LivenessResult(ctx, string(f.variant), ch.SessionID, ch.UploadID)
		if !res.OK() {
			if res.Kind() == apiclient.KindUnauthorized {
				return false, res.Err()
			}
			log.WithFields(logrus.Fields{"attempt": attempt, "status": res.Status}).Debug("Liveness poll failed, retrying")
			return false, nil
		}
		var answer pollAnswer
		if err := res.Decode(&answer); err != nil || answer.Passed == nil {
			return false, nil
		}
		verdict.Passed = *answer.Passed
		verdict.ReasonCodes = answer.ReasonCodes
		verdict.Message = answer.Message
		return true, nil
	})
	verdict.Attempts = attempts
	switch {
	case errors.Is(err, ErrVerificationTimeout):
		return verdict, "timeout", apperrors.NewTimeoutError("Verification timeout", err).WithTraceID(ch.TraceID)
	case err != nil && ctx.Err() != nil:
		return verdict, "canceled", apperrors.NewTimeoutError("Verification canceled", err).WithTraceID(ch.TraceID)
	case err != nil:
		return verdict, "unauthorized", err
	}

	outcome := "rejected"
	if verdict.Passed {
		outcome = "passed"
	}
	log.WithFields(logrus.Fields{"outcome": outcome, "attempts": attempts, "trace_id": ch.TraceID}).Info("Liveness verdict received")
	return verdict, outcome, nil
}

func uploadForm(ch Challenge, rec Recording) (*apiclient.Multipart, error) {
	prompts, err := json.Marshal(ch.Prompts())
	if err != nil {
		return nil, err
	}
	form := apiclient.NewMultipart().
		File("video", rec.Filename, rec.ContentType, rec.Data).
		Field("session_id", ch.SessionID).
		Field("upload_id", ch.UploadID).
		Field("trace_id", ch.TraceID)
	if len(ch.Actions) > 0 {
		form.Field("actions", string(prompts))
	} else {
		form.Field("colors", string(prompts))
	}
	return form, nil
}

func outcomeFor(res apiclient.Result) string {
	switch res.Kind() {
	case apiclient.KindUnauthorized:
		return "unauthorized"
	case apiclient.KindTimeout:
		return "timeout"
	default:
		return "error"
	}
}

func (f *Flow) transition(ctx context.Context, s State) {
	f.mu.Lock()
	f.state = s
	f.history = append(f.history, s)
	f.mu.Unlock()

	f.subject.NotifyObservers(ctx, observer.ConsoleEvent{
		EventType: observer.LivenessStateChanged,
		Feature:   "liveness_" + string(f.variant),
		Outcome:   string(s),
		Metadata:  map[string]any{"variant": string(f.variant)},
	})
}
