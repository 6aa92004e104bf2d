package playground

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/kyc-console-go/internal/analysis"
	"github.com/anime-shed/kyc-console-go/internal/apiclient"
	"github.com/anime-shed/kyc-console-go/internal/capability"
	"github.com/anime-shed/kyc-console-go/internal/observer"
	"github.com/anime-shed/kyc-console-go/internal/provider"
	"github.com/anime-shed/kyc-console-go/internal/quota"
	"github.com/anime-shed/kyc-console-go/internal/session"
)

var (
	jpeg = Input{Filename: "card.jpg", ContentType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}}
	webm = Input{Filename: "clip.webm", ContentType: "video/webm", Data: []byte{0x1A, 0x45, 0xDF, 0xA3}}
)

// recordingBackend captures the submitted form before delegating.
type recordingBackend struct {
	Backend
	mu    sync.Mutex
	forms []*apiclient.Multipart
}

func (r *recordingBackend) Analyze(ctx context.Context, f capability.Feature, form *apiclient.Multipart) apiclient.Result {
	r.mu.Lock()
	r.forms = append(r.forms, form)
	r.mu.Unlock()
	return r.Backend.Analyze(ctx, f, form)
}

// stubBackend answers every analysis with a fixed result.
type stubBackend struct {
	result apiclient.Result
	calls  int
}

func (s *stubBackend) Analyze(ctx context.Context, f capability.Feature, form *apiclient.Multipart) apiclient.Result {
	s.calls++
	return s.result
}

func (s *stubBackend) FaceImage(ctx context.Context, id string) (apiclient.Blob, apiclient.Result) {
	return apiclient.Blob{}, apiclient.Failure("not found", 404, apiclient.Meta{})
}

type fixture struct {
	fake    *provider.Fake
	creds   *session.Credentials
	tracker *quota.Tracker
	orch    *Orchestrator
	events  *eventLog
}

func newFixture(t *testing.T, backend Backend, fake *provider.Fake, token string) *fixture {
	t.Helper()
	table, err := capability.Default()
	require.NoError(t, err)
	creds, err := session.New("https://api.example.com")
	require.NoError(t, err)
	if token != "" {
		require.NoError(t, creds.SetToken(token))
	}
	if backend == nil {
		backend = fake
	}
	tracker := quota.NewTracker(fake)
	events := &eventLog{}
	pub := observer.NewEventPublisher()
	pub.Subscribe(events)

	orch := New(backend, creds, table, tracker, WithSubject(pub), WithFetchWorkers(2))
	t.Cleanup(orch.Close)
	return &fixture{fake: fake, creds: creds, tracker: tracker, orch: orch, events: events}
}

type eventLog struct {
	mu     sync.Mutex
	events []observer.ConsoleEvent
}

func (l *eventLog) OnEvent(ctx context.Context, e observer.ConsoleEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) GetObserverName() string { return "event_log" }

func (l *eventLog) types() []observer.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]observer.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.EventType)
	}
	return out
}

func TestRun_OCRSubmitsOneMultipartAndRefreshesQuota(t *testing.T) {
	fake := provider.NewFake()
	rec := &recordingBackend{Backend: fake}
	fx := newFixture(t, rec, fake, "opaque-token")

	out, err := fx.orch.Run(context.Background(), Request{
		Country:   "th",
		FeatureID: "id_card_ocr",
		Inputs:    map[string]Input{FieldPicture: jpeg},
	})
	require.NoError(t, err)

	require.Len(t, rec.forms, 1)
	form := rec.forms[0]
	assert.Equal(t, []string{"picture", "type", "country", "language"}, form.Fields())
	assert.Equal(t, "id_card", form.Value("type"))
	assert.Equal(t, "th", form.Value("country"))
	assert.Equal(t, "th", form.Value("language"))
	assert.Equal(t, 1, fake.Calls("/kyc/ocr/id-card"))

	assert.True(t, out.Success)
	assert.Equal(t, StateCompleted, out.State)
	require.NotNil(t, out.Result)
	assert.Equal(t, analysis.KindParsing, out.Result.Kind)
	assert.NotEmpty(t, out.Result.Parsing.Fields)
	assert.Equal(t, "parsing", out.View.Strategy)
	assert.NotEmpty(t, out.TraceID)

	assert.Equal(t, 1, fake.Calls(provider.PathQuota), "quota is re-fetched after success")
	require.NotNil(t, out.Quota)
	assert.Equal(t, int64(99), out.Quota.Remaining)
	assert.Equal(t, []observer.EventType{observer.AnalysisStarted, observer.AnalysisCompleted}, fx.events.types())
}

func TestRun_ExhaustedQuotaBlocksBeforeNetwork(t *testing.T) {
	fake := provider.NewFake(provider.WithFakeQuota(quota.Snapshot{
		"id_card_ocr": {Limit: 10, Used: 10, Remaining: 0},
	}))
	fx := newFixture(t, nil, fake, "opaque-token")
	require.NoError(t, fx.tracker.Refresh(context.Background()))

	out, err := fx.orch.Run(context.Background(), Request{
		Country:   "th",
		FeatureID: "id_card_ocr",
		Inputs:    map[string]Input{FieldPicture: jpeg},
	})
	require.NoError(t, err)

	assert.Equal(t, StateBlocked, out.State)
	assert.Equal(t, BlockQuotaExhausted, out.BlockReason)
	require.NotNil(t, out.Banner)
	assert.Equal(t, "Quota Exceeded", out.Banner.Title)
	assert.Equal(t, ActionUpgrade, out.Banner.Action)
	assert.Equal(t, 0, fake.Calls("/kyc/ocr/id-card"))
	assert.Equal(t, []observer.EventType{observer.AnalysisBlocked}, fx.events.types())
}

func TestRun_FaceComparisonScalesSimilarity(t *testing.T) {
	fake := provider.NewFake()
	fx := newFixture(t, nil, fake, "opaque-token")

	out, err := fx.orch.Run(context.Background(), Request{
		Country:   "th",
		FeatureID: "face_comparison",
		Inputs:    map[string]Input{FieldSourceImage: jpeg, FieldTargetImage: jpeg},
	})
	require.NoError(t, err)
	require.True(t, out.Success)
	require.Equal(t, analysis.KindComparison, out.Result.Kind)
	assert.Equal(t, 96.5, out.Result.Comparison.Similarity)
}

func TestRun_FaceSearchDegradesMissingCandidates(t *testing.T) {
	fake := provider.NewFake()
	fx := newFixture(t, nil, fake, "opaque-token")

	out, err := fx.orch.Run(context.Background(), Request{
		Country:   "th",
		FeatureID: "face_search",
		Inputs:    map[string]Input{FieldPicture: jpeg},
	})
	require.NoError(t, err)
	require.True(t, out.Success, "one broken image never fails the result")
	require.Equal(t, analysis.KindSearch, out.Result.Kind)

	status := map[string]analysis.ImageStatus{}
	for _, c := range out.Result.Search.Candidates {
		status[c.ImageID] = c.ImageStatus
	}
	assert.Equal(t, analysis.ImageAvailable, status["img-001"])
	assert.Equal(t, analysis.ImageAvailable, status["img-002"])
	assert.Equal(t, analysis.ImageUnavailable, status["img-404"])
	assert.Equal(t, 1, fake.Calls(provider.PathFaceImages+"img-404"))

	stats := fx.orch.FetchPoolStats()
	assert.Equal(t, int64(3), stats.TotalJobs)
	assert.Equal(t, int64(3), stats.CompletedJobs)
	assert.Equal(t, int64(0), stats.ActiveWorkers)
}

func TestRun_ValidationOrder(t *testing.T) {
	exhausted := quota.Snapshot{"ocr": {Limit: 1, Remaining: 0}}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		inputs     map[string]Input
		wantReason BlockReason
		wantTitle  string
		wantAction Action
	}{
		{"no session wins over everything", "", nil, BlockNoAuth, "Sign in required", ActionLogin},
		{"expired token", expired, nil, BlockNoAuth, "Session expired", ActionLogin},
		{"missing input before quota", "opaque-token", nil, BlockNoInput, "Upload required", ActionUpload},
		{"wrong media type", "opaque-token", map[string]Input{FieldPicture: webm}, BlockInvalidInput, "Unsupported file", ActionUpload},
		{"quota last", "opaque-token", map[string]Input{FieldPicture: jpeg}, BlockQuotaExhausted, "Quota Exceeded", ActionUpgrade},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := provider.NewFake(provider.WithFakeQuota(exhausted))
			fx := newFixture(t, nil, fake, tt.token)
			require.NoError(t, fx.tracker.Refresh(context.Background()))

			out, err := fx.orch.Run(context.Background(), Request{Country: "th", FeatureID: "passport_ocr", Inputs: tt.inputs})
			require.NoError(t, err)
			assert.Equal(t, tt.wantReason, out.BlockReason)
			assert.Equal(t, tt.wantTitle, out.Banner.Title)
			assert.Equal(t, tt.wantAction, out.Banner.Action)
			assert.Equal(t, 0, fake.Calls("/kyc/ocr/passport"))
		})
	}
}

func TestRun_FailureClassification(t *testing.T) {
	code := provider.CodeQuotaExceeded
	otherCode := 1001
	tests := []struct {
		name        string
		result      apiclient.Result
		wantKind    apiclient.Kind
		wantAction  Action
		wantRefresh int
	}{
		{"network", apiclient.Failure("dial tcp: connection refused", 0, apiclient.Meta{}), apiclient.KindNetworkError, ActionCheckConnectivity, 0},
		{"timeout", apiclient.Failure("Request Timeout", 408, apiclient.Meta{RequestID: "r-1"}), apiclient.KindTimeout, ActionRetry, 0},
		{"unauthorized", apiclient.Failure("Unauthorized", 401, apiclient.Meta{}), apiclient.KindUnauthorized, ActionLogin, 0},
		{"http", apiclient.Failure("bad image", 422, apiclient.Meta{}), apiclient.KindHTTPError, ActionRetry, 0},
		{"business", apiclient.Failure("blurry", 200, apiclient.Meta{BusinessCode: &otherCode}), apiclient.KindBusinessError, ActionRetry, 1},
		{"business quota", apiclient.Failure("Quota exceeded", 200, apiclient.Meta{BusinessCode: &code}), apiclient.KindBusinessError, ActionUpgrade, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := provider.NewFake()
			stub := &stubBackend{result: tt.result}
			fx := newFixture(t, stub, fake, "opaque-token")

			out, err := fx.orch.Run(context.Background(), Request{
				Country:   "vn",
				FeatureID: "id_card_ocr",
				Inputs:    map[string]Input{FieldPicture: jpeg},
			})
			require.NoError(t, err)
			assert.Equal(t, 1, stub.calls, "exactly one call, never retried")
			assert.False(t, out.Success)
			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantAction, out.Banner.Action)
			assert.Equal(t, tt.wantRefresh, fake.Calls(provider.PathQuota))
			assert.Equal(t, StateCompleted, out.State)
		})
	}
}

func TestRun_RequestErrors(t *testing.T) {
	fx := newFixture(t, nil, provider.NewFake(), "opaque-token")

	_, err := fx.orch.Run(context.Background(), Request{FeatureID: "id_card_ocr"})
	assert.True(t, errors.Is(err, capability.ErrNoCountry))

	_, err = fx.orch.Run(context.Background(), Request{Country: "vn", FeatureID: "video_liveness"})
	assert.True(t, errors.Is(err, capability.ErrFeatureNotOffered))
}

func TestRun_SingleFlight(t *testing.T) {
	fx := newFixture(t, nil, provider.NewFake(), "opaque-token")
	fx.orch.flight.Lock()
	defer fx.orch.flight.Unlock()

	_, err := fx.orch.Run(context.Background(), Request{Country: "th", FeatureID: "id_card_ocr"})
	assert.ErrorIs(t, err, ErrBusy)
}

func TestRun_CanceledCallerStillCompletes(t *testing.T) {
	fake := provider.NewFake()
	fx := newFixture(t, nil, fake, "opaque-token")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := fx.orch.Run(ctx, Request{
		Country:   "th",
		FeatureID: "video_liveness",
		Inputs:    map[string]Input{FieldVideo: webm},
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, analysis.KindLiveness, out.Result.Kind)
}

func TestSelect_RefreshesQuota(t *testing.T) {
	fake := provider.NewFake()
	fx := newFixture(t, nil, fake, "opaque-token")

	sel, feature, err := fx.orch.Select(context.Background(), "th", "face_detection")
	require.NoError(t, err)
	assert.Equal(t, "th", sel.Country)
	assert.Equal(t, "/kyc/face/detect", feature.Endpoint)
	assert.Equal(t, 1, fake.Calls(provider.PathQuota))
	assert.NotNil(t, fx.tracker.Lookup(feature))
}

func TestRun_ExpectedTextScoring(t *testing.T) {
	fx := newFixture(t, nil, provider.NewFake(), "opaque-token")

	out, err := fx.orch.Run(context.Background(), Request{
		Country:      "th",
		FeatureID:    "id_card_ocr",
		Inputs:       map[string]Input{FieldPicture: jpeg},
		ExpectedText: "something else entirely",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Result.Parsing.Match)
	assert.Less(t, out.Result.Parsing.Match.Accuracy, 100.0)
}
