// Package playground runs one analysis request at a time against the backend:
// it validates preconditions, submits exactly one multipart call, and turns
// whatever came back into a single Outcome the transport layer can render.
package playground

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/kyc-console-go/internal/analysis"
	"github.com/anime-shed/kyc-console-go/internal/apiclient"
	"github.com/anime-shed/kyc-console-go/internal/capability"
	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/logger"
	"github.com/anime-shed/kyc-console-go/internal/observer"
	"github.com/anime-shed/kyc-console-go/internal/provider"
	"github.com/anime-shed/kyc-console-go/internal/quota"
	"github.com/anime-shed/kyc-console-go/internal/session"
	"github.com/anime-shed/kyc-console-go/internal/strategy"
	"github.com/anime-shed/kyc-console-go/pkg/validation"
)

// ErrBusy is returned when an analysis is already in flight.
var ErrBusy = errors.New("an analysis is already in progress")

// State is the orchestrator phase.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateBlocked    State = "blocked"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
)

// BlockReason says why a request never reached the network.
type BlockReason string

const (
	BlockNoAuth         BlockReason = "no-auth"
	BlockNoInput        BlockReason = "no-input"
	BlockInvalidInput   BlockReason = "invalid-input"
	BlockQuotaExhausted BlockReason = "quota-exhausted"
)

// Form field names for analysis inputs.
const (
	FieldPicture     = "picture"
	FieldSourceImage = "source_image"
	FieldTargetImage = "target_image"
	FieldVideo       = "video"
)

// Backend is the part of the provider the orchestrator calls.
type Backend interface {
	Analyze(ctx context.Context, feature capability.Feature, form *apiclient.Multipart) apiclient.Result
	FaceImage(ctx context.Context, imageID string) (apiclient.Blob, apiclient.Result)
}

// Input is one uploaded file.
type Input struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Request is one playground invocation.
type Request struct {
	Country   string
	FeatureID string
	// Inputs are keyed by form field name.
	Inputs map[string]Input
	// ExpectedText, when set on an OCR call, scores the extracted text against it.
	ExpectedText string
}

// Outcome is the only thing callers see, whatever happened.
type Outcome struct {
	State       State            `json:"state"`
	Success     bool             `json:"success"`
	Feature     string           `json:"feature"`
	Country     string           `json:"country"`
	BlockReason BlockReason      `json:"block_reason,omitempty"`
	Kind        apiclient.Kind   `json:"kind,omitempty"`
	Status      int              `json:"status,omitempty"`
	Banner      *Banner          `json:"banner,omitempty"`
	Result      *analysis.Result `json:"result,omitempty"`
	View        *strategy.View   `json:"view,omitempty"`
	Quota       *quota.Entry     `json:"quota,omitempty"`
	TraceID     string           `json:"trace_id,omitempty"`
	Duration    time.Duration    `json:"duration_ns"`
}

// Orchestrator is safe for concurrent use but admits one analysis at a time.
type Orchestrator struct {
	backend  Backend
	creds    *session.Credentials
	table    *capability.Table
	quota    *quota.Tracker
	uploads  *validation.UploadValidator
	renderer *strategy.RenderContext
	pool     *WorkerPool
	subject  observer.Subject
	copy     BannerCopy
	now      func() time.Time

	flight  sync.Mutex
	stateMu sync.Mutex
	state   State
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithSubject(s observer.Subject) Option {
	return func(o *Orchestrator) { o.subject = s }
}

func WithUploadValidator(v *validation.UploadValidator) Option {
	return func(o *Orchestrator) { o.uploads = v }
}

func WithRenderer(r *strategy.RenderContext) Option {
	return func(o *Orchestrator) { o.renderer = r }
}

// WithFetchWorkers bounds concurrent candidate image fetches.
func WithFetchWorkers(n int) Option {
	return func(o *Orchestrator) { o.pool = NewWorkerPool(n) }
}

// WithUpgradeURL is mentioned in the quota banner.
func WithUpgradeURL(u string) Option {
	return func(o *Orchestrator) { o.copy.UpgradeURL = u }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New wires an orchestrator. Call Close to stop its fetch workers.
func New(backend Backend, creds *session.Credentials, table *capability.Table, tracker *quota.Tracker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:  backend,
		creds:    creds,
		table:    table,
		quota:    tracker,
		uploads:  validation.NewUploadValidator(validation.DefaultMaxUploadBytes),
		renderer: strategy.NewRenderContext(),
		pool:     NewWorkerPool(4),
		subject:  observer.Nop{},
		now:      time.Now,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.pool.Start()
	return o
}

// Close releases the fetch workers.
func (o *Orchestrator) Close() {
	o.pool.Close()
}

// FetchPoolStats reports the candidate image fetch pool counters.
func (o *Orchestrator) FetchPoolStats() PoolStats {
	return o.pool.GetStats()
}

// State returns the phase of the current or last run.
func (o *Orchestrator) State() State {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
}

// RequiredFields lists the form fields a feature's input mode needs.
func RequiredFields(mode capability.InputMode) []string {
	switch mode {
	case capability.InputDualImage:
		return []string{FieldSourceImage, FieldTargetImage}
	case capability.InputVideo:
		return []string{FieldVideo}
	default:
		return []string{FieldPicture}
	}
}

// Select resolves a feature for a region and refreshes quota, as a feature
// or region switch does.
func (o *Orchestrator) Select(ctx context.Context, country, featureID string) (*capability.Selection, capability.Feature, error) {
	sel := capability.Resolve(o.table, country)
	if sel == nil {
		return nil, capability.Feature{}, apperrors.NewValidationError("Select a region first", capability.ErrNoCountry)
	}
	feature, err := sel.Select(featureID)
	if err != nil {
		return sel, capability.Feature{}, apperrors.NewValidationError(
			fmt.Sprintf("%s is not available in %s", featureID, sel.Country), err)
	}
	if o.creds.Authenticated(o.now()) {
		_ = o.quota.Refresh(ctx)
	}
	return sel, feature, nil
}

// Run executes one analysis. The returned error is non-nil only for ErrBusy
// and for requests naming a region or feature that does not exist; every
// other failure is reported inside the Outcome.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Outcome, error) {
	if !o.flight.TryLock() {
		return Outcome{}, ErrBusy
	}
	defer o.flight.Unlock()

	sel := capability.Resolve(o.table, req.Country)
	if sel == nil {
		return Outcome{}, apperrors.NewValidationError("Select a region first", capability.ErrNoCountry)
	}
	feature, err := sel.Select(req.FeatureID)
	if err != nil {
		return Outcome{}, apperrors.NewValidationError(
			fmt.Sprintf("%s is not available in %s", req.FeatureID, sel.Country), err)
	}

	start := o.now()
	out := Outcome{Feature: feature.ID, Country: sel.Country}

	o.setState(StateValidating)
	inputs, blocked := o.validate(req, feature, &out)
	if blocked {
		o.setState(StateBlocked)
		out.State = StateBlocked
		o.subject.NotifyObservers(ctx, observer.ConsoleEvent{
			EventType: observer.AnalysisBlocked,
			Feature:   feature.ID,
			Country:   sel.Country,
			Reason:    string(out.BlockReason),
		})
		return out, nil
	}

	o.setState(StateSubmitting)
	form := buildForm(feature, sel, inputs)
	o.subject.NotifyObservers(ctx, observer.ConsoleEvent{EventType: observer.AnalysisStarted, Feature: feature.ID, Country: sel.Country})

	// a caller going away does not abort a submitted analysis; the client deadline still applies
	callCtx := context.WithoutCancel(ctx)
	res := o.backend.Analyze(callCtx, feature, form)

	o.complete(callCtx, req, feature, res, &out)
	out.Duration = o.now().Sub(start)
	o.setState(StateCompleted)

	event := observer.ConsoleEvent{
		Feature:  feature.ID,
		Country:  sel.Country,
		Duration: out.Duration,
		Success:  out.Success,
		TraceID:  out.TraceID,
	}
	if out.Success {
		event.EventType = observer.AnalysisCompleted
		event.Outcome = "success"
		event.Metadata = map[string]any{"result_kind": string(out.Result.Kind)}
	} else {
		event.EventType = observer.AnalysisFailed
		event.Outcome = string(out.Kind)
		event.Error = res.Error
	}
	o.subject.NotifyObservers(ctx, event)
	return out, nil
}

// validate applies auth, token, input and quota checks in that order.
func (o *Orchestrator) validate(req Request, feature capability.Feature, out *Outcome) (map[string]Input, bool) {
	snap := o.creds.Snapshot()
	if snap.Token == "" {
		out.BlockReason = BlockNoAuth
		out.Banner = o.copy.SignIn()
		return nil, true
	}
	if !o.creds.Authenticated(o.now()) {
		out.BlockReason = BlockNoAuth
		out.Banner = o.copy.SessionExpired()
		return nil, true
	}

	inputs := make(map[string]Input, 2)
	for _, field := range RequiredFields(feature.InputMode) {
		in, ok := req.Inputs[field]
		if !ok || len(in.Data) == 0 {
			out.BlockReason = BlockNoInput
			out.Banner = o.copy.MissingInput(field)
			return nil, true
		}
		kind := validation.MediaImage
		if field == FieldVideo {
			kind = validation.MediaVideo
		}
		ct, err := o.uploads.Validate(kind, in.Filename, in.ContentType, in.Data)
		if err != nil {
			out.BlockReason = BlockInvalidInput
			out.Banner = o.copy.InvalidInput(err)
			return nil, true
		}
		in.ContentType = ct
		if in.Filename == "" {
			in.Filename = field
		}
		inputs[field] = in
	}

	entry, err := o.quota.Check(feature)
	out.Quota = entry
	if err != nil {
		out.BlockReason = BlockQuotaExhausted
		out.Banner = o.copy.QuotaExceeded(feature, entry)
		return nil, true
	}
	return inputs, false
}

func buildForm(feature capability.Feature, sel *capability.Selection, inputs map[string]Input) *apiclient.Multipart {
	form := apiclient.NewMultipart()
	for _, field := range RequiredFields(feature.InputMode) {
		in := inputs[field]
		form.File(field, in.Filename, in.ContentType, in.Data)
	}
	if feature.Category == capability.CategoryOCR {
		form.Field("type", feature.DocumentType).
			Field("country", sel.Country).
			Field("language", sel.Language)
	}
	return form
}

// complete classifies res: transport, HTTP, business, then success.
func (o *Orchestrator) complete(ctx context.Context, req Request, feature capability.Feature, res apiclient.Result, out *Outcome) {
	out.State = StateCompleted
	out.Status = res.Status
	out.TraceID = res.Meta.RequestID
	out.Kind = res.Kind()

	log := logger.WithFields(logrus.Fields{
		"feature":  feature.ID,
		"kind":     out.Kind,
		"status":   res.Status,
		"trace_id": out.TraceID,
	})

	switch out.Kind {
	case apiclient.KindNetworkError:
		out.Banner = o.copy.Connectivity(res)
	case apiclient.KindTimeout:
		out.Banner = o.copy.Timeout(res)
	case apiclient.KindUnauthorized:
		out.Banner = o.copy.SessionExpired()
		out.Banner.TraceID = out.TraceID
	case apiclient.KindHTTPError:
		out.Banner = o.copy.RequestFailed(res)
	case apiclient.KindBusinessError:
		if res.Meta.BusinessCode != nil && *res.Meta.BusinessCode == provider.CodeQuotaExceeded {
			out.Banner = o.copy.QuotaExceeded(feature, nil)
			out.Banner.TraceID = out.TraceID
		} else {
			out.Banner = o.copy.Rejected(res)
		}
		o.refreshQuota(ctx, feature, out)
	case apiclient.KindSuccess:
		out.Success = true
		result := analysis.Adapt(res.Data)
		if req.ExpectedText != "" {
			result.ApplyExpectedText(req.ExpectedText)
		}
		if result.Kind == analysis.KindSearch {
			o.fetchCandidates(ctx, feature, result.Search)
		}
		view := o.renderer.Render(result)
		out.Result = &result
		out.View = &view
		o.refreshQuota(ctx, feature, out)
	}

	if out.Success {
		log.Info("Analysis succeeded")
	} else {
		log.WithField("error", res.Error).Warn("Analysis failed")
	}
}

func (o *Orchestrator) refreshQuota(ctx context.Context, feature capability.Feature, out *Outcome) {
	if err := o.quota.Refresh(ctx); err != nil {
		return
	}
	out.Quota = o.quota.Lookup(feature)
}

// fetchCandidates loads every referenced candidate image. A failed fetch
// only marks that candidate unavailable.
func (o *Orchestrator) fetchCandidates(ctx context.Context, feature capability.Feature, search *analysis.Search) {
	if search == nil {
		return
	}
	// runs are single-flight, so every job in the pool belongs to this search
	for i := range search.Candidates {
		c := &search.Candidates[i]
		if c.ImageID == "" {
			c.ImageStatus = analysis.ImageNone
			continue
		}
		if !o.pool.Submit(func() { o.fetchCandidate(ctx, feature, c) }) {
			c.ImageStatus = analysis.ImageUnavailable
		}
	}
	o.pool.Wait()
}

func (o *Orchestrator) fetchCandidate(ctx context.Context, feature capability.Feature, c *analysis.Candidate) {
	blob, res := o.backend.FaceImage(ctx, c.ImageID)
	event := observer.ConsoleEvent{
		Feature:  feature.ID,
		TraceID:  res.Meta.RequestID,
		Metadata: map[string]any{"image_id": c.ImageID},
	}
	if res.OK() && len(blob.Data) > 0 {
		c.ImageStatus = analysis.ImageAvailable
		c.Image = blob.Data
		c.ContentType = blob.ContentType
		event.EventType = observer.CandidateImageFetched
		event.Success = true
	} else {
		c.ImageStatus = analysis.ImageUnavailable
		event.EventType = observer.CandidateImageFailed
		event.Error = res.Error
	}
	o.subject.NotifyObservers(ctx, event)
}
