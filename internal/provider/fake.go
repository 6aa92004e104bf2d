package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/anime-shed/kyc-console-go/internal/apiclient"
	"github.com/anime-shed/kyc-console-go/internal/authz"
	"github.com/anime-shed/kyc-console-go/internal/capability"
	"github.com/anime-shed/kyc-console-go/internal/quota"

	"github.com/google/uuid"
)

// CodeQuotaExceeded is the business code the fake answers under HTTP 200
// once a quota key is used up.
const CodeQuotaExceeded = 4029

// Fake is an in-memory backend. It speaks the same envelope as the real one and
// decrements its own quota on every accepted analysis.
type Fake struct {
	mu        sync.Mutex
	quota     quota.Snapshot
	principal authz.Principal
	images    map[string][]byte
	sessions  map[string]*fakeSession
	// polls that answer "processing" before a liveness verdict; < 0 never settles
	readyAfter int
	admin      *fakeAdmin
	calls      map[string]int
	now        func() time.Time
}

type fakeSession struct {
	variant  string
	uploadID string
	uploaded bool
	polls    int
}

// FakeOption configures a Fake.
type FakeOption func(*Fake)

// WithFakeQuota replaces the initial quota snapshot.
func WithFakeQuota(s quota.Snapshot) FakeOption {
	return func(f *Fake) { f.quota = s.Clone() }
}

// WithFakePrincipal sets the user returned by /console/me.
func WithFakePrincipal(p authz.Principal) FakeOption {
	return func(f *Fake) { f.principal = p }
}

// WithLivenessReadyAfter sets how many polls answer "processing" first.
func WithLivenessReadyAfter(n int) FakeOption {
	return func(f *Fake) { f.readyAfter = n }
}

// WithFakeImage registers a stored face image.
func WithFakeImage(id string, data []byte) FakeOption {
	return func(f *Fake) { f.images[id] = data }
}

// NewFake builds a fake seeded with demo data.
func NewFake(opts ...FakeOption) *Fake {
	reset := time.Now().UTC().AddDate(0, 1, 0).Truncate(24 * time.Hour)
	f := &Fake{
		quota: quota.Snapshot{
			string(capability.CategoryOCR):      {Limit: 100, Remaining: 100, ResetAt: &reset},
			string(capability.CategoryFace):     {Limit: 100, Remaining: 100, ResetAt: &reset},
			string(capability.CategoryLiveness): {Limit: 50, Remaining: 50, ResetAt: &reset},
		},
		principal: authz.Principal{
			UserID:      "demo-user",
			Email:       "demo@example.com",
			Role:        "owner",
			Permissions: []string{authz.Wildcard},
		},
		images: map[string][]byte{
			"img-001": pngStub,
			"img-002": pngStub,
		},
		sessions:   make(map[string]*fakeSession),
		readyAfter: 2,
		calls:      make(map[string]int),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.admin = newFakeAdmin(f.now)
	return f
}

// Calls reports how many times path was requested.
func (f *Fake) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *Fake) Analyze(ctx context.Context, feature capability.Feature, form *apiclient.Multipart) apiclient.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[feature.Endpoint]++

	fields := fieldSet(form.Fields())
	for _, required := range requiredFields(feature.InputMode) {
		if !fields[required] {
			return respondError(http.StatusBadRequest, required+" is required")
		}
	}

	key := feature.ID
	entry, ok := f.quota[key]
	if !ok {
		key = string(feature.Category)
		entry, ok = f.quota[key]
	}
	if ok {
		if entry.Remaining <= 0 {
			return respond(http.StatusOK, CodeQuotaExceeded, "Quota exceeded", nil)
		}
		entry.Used++
		entry.Remaining--
		f.quota[key] = entry
	}
	return respond(http.StatusOK, 0, "success", synthesize(feature))
}

func (f *Fake) FaceImage(ctx context.Context, imageID string) (apiclient.Blob, apiclient.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[PathFaceImages+imageID]++
	data, ok := f.images[imageID]
	if !ok {
		return apiclient.Blob{}, respondError(http.StatusNotFound, "image not found")
	}
	return apiclient.Blob{Data: append([]byte(nil), data...), ContentType: "image/png"},
		apiclient.Success(nil, http.StatusOK, apiclient.Meta{RequestID: uuid.NewString()})
}

func (f *Fake) FetchQuota(ctx context.Context) (quota.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[PathQuota]++
	return f.quota.Clone(), nil
}

func (f *Fake) Principal(ctx context.Context) (authz.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[PathMe]++
	p := f.principal
	p.Permissions = append([]string(nil), p.Permissions...)
	return p, nil
}

func (f *Fake) CreateLivenessSession(ctx context.Context, variant string) apiclient.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[livenessPath(variant, "session")]++

	sessionID, uploadID := uuid.NewString(), uuid.NewString()
	f.sessions[sessionID] = &fakeSession{variant: variant, uploadID: uploadID}
	data := map[string]any{
		"session_id": sessionID,
		"upload_id":  uploadID,
		"trace_id":   uuid.NewString(),
		"expires_at": f.now().Add(5 * time.Minute).Unix(),
	}
	if variant == "rgb" {
		data["colors"] = []string{"#FF0000", "#00FF00", "#0000FF"}
	} else {
		data["actions"] = []string{"blink", "turn_left", "smile"}
	}
	return respond(http.StatusOK, 0, "session created", data)
}

func (f *Fake) UploadLiveness(ctx context.Context, variant string, form *apiclient.Multipart) apiclient.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[livenessPath(variant, "upload")]++

	if !fieldSet(form.Fields())["video"] {
		return respondError(http.StatusBadRequest, "video is required")
	}
	s, ok := f.sessions[form.Value("session_id")]
	if !ok || s.variant != variant || s.uploadID != form.Value("upload_id") {
		return respondError(http.StatusNotFound, "session not found")
	}
	s.uploaded = true
	return respond(http.StatusOK, 0, "upload accepted", map[string]any{"status": "processing"})
}

func (f *Fake) LivenessResult(ctx context.Context, variant, sessionID, uploadID string) apiclient.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[livenessPath(variant, "result")]++

	s, ok := f.sessions[sessionID]
	if !ok || s.uploadID != uploadID {
		return respondError(http.StatusNotFound, "session not found")
	}
	s.polls++
	if f.readyAfter < 0 || s.polls <= f.readyAfter || !s.uploaded {
		return respond(http.StatusOK, 0, "processing", map[string]any{"status": "processing"})
	}
	return respond(http.StatusOK, 0, "verified", map[string]any{
		"passed":       true,
		"reason_codes": []string{},
		"message":      "live person detected",
	})
}

func (f *Fake) Get(ctx context.Context, path string, query url.Values) apiclient.Result {
	switch path {
	case PathQuota:
		snap, _ := f.FetchQuota(ctx)
		return respond(http.StatusOK, 0, "success", snap)
	case PathMe:
		p, _ := f.Principal(ctx)
		return respond(http.StatusOK, 0, "success", p)
	}

	f.mu.Lock()
	f.calls[path]++
	f.mu.Unlock()

	data, status, msg := f.admin.get(path, query)
	if status != http.StatusOK {
		return respondError(status, msg)
	}
	return respond(status, 0, "success", data)
}

func (f *Fake) PostJSON(ctx context.Context, path string, body any) apiclient.Result {
	f.mu.Lock()
	f.calls[path]++
	actor := f.principal.Email
	f.mu.Unlock()

	raw, err := json.Marshal(body)
	if err != nil {
		return respondError(http.StatusBadRequest, "invalid body")
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return respondError(http.StatusBadRequest, "body must be an object")
	}
	data, status, msg := f.admin.create(path, payload, actor)
	if status != http.StatusCreated {
		return respondError(status, msg)
	}
	return respond(status, 0, "created", data)
}

func (f *Fake) Delete(ctx context.Context, path string) apiclient.Result {
	f.mu.Lock()
	f.calls[path]++
	actor := f.principal.Email
	f.mu.Unlock()

	status, msg := f.admin.remove(path, actor)
	if status != http.StatusOK {
		return respondError(status, msg)
	}
	return respond(status, 0, "deleted", nil)
}

// respond runs a synthesized envelope through the same normalizer as real traffic.
func respond(status, code int, message string, data any) apiclient.Result {
	env := map[string]any{
		"code":       code,
		"message":    message,
		"timestamp":  time.Now().Unix(),
		"request_id": uuid.NewString(),
	}
	if data != nil {
		env["data"] = data
	}
	body, _ := json.Marshal(env)
	return apiclient.Normalize(apiclient.RawResponse{
		StatusCode: status,
		StatusText: http.StatusText(status),
		Header:     http.Header{},
		Body:       body,
	}, nil)
}

func respondError(status int, msg string) apiclient.Result {
	body, _ := json.Marshal(map[string]any{
		"code":       status,
		"message":    http.StatusText(status),
		"error":      msg,
		"timestamp":  time.Now().Unix(),
		"request_id": uuid.NewString(),
	})
	return apiclient.Normalize(apiclient.RawResponse{
		StatusCode: status,
		StatusText: http.StatusText(status),
		Header:     http.Header{},
		Body:       body,
	}, nil)
}

func requiredFields(mode capability.InputMode) []string {
	switch mode {
	case capability.InputDualImage:
		return []string{"source_image", "target_image"}
	case capability.InputVideo:
		return []string{"video"}
	default:
		return []string{"picture"}
	}
}

func fieldSet(fields []string) map[string]bool {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func synthesize(feature capability.Feature) map[string]any {
	switch feature.Category {
	case capability.CategoryOCR:
		return map[string]any{"parsing_results": ocrFields(feature.DocumentType)}
	case capability.CategoryLiveness:
		return map[string]any{"liveness_results": map[string]any{"is_live": true, "score": 0.97}}
	}
	if feature.InputMode == capability.InputDualImage {
		return map[string]any{"comparison_results": map[string]any{
			"confidence": 0.965, "is_match": true, "threshold": 0.8,
		}}
	}
	if strings.Contains(feature.Endpoint, "search") {
		return map[string]any{"search_results": map[string]any{"candidates": []map[string]any{
			{"face_id": "face-001", "image_id": "img-001", "similarity": 0.94, "name": "Demo Person A"},
			{"face_id": "face-002", "image_id": "img-002", "similarity": 0.81, "name": "Demo Person B"},
			{"face_id": "face-003", "image_id": "img-404", "similarity": 0.62, "name": "Demo Person C"},
		}}}
	}
	return map[string]any{"detection_results": map[string]any{
		"faces":      []map[string]any{{"bbox": []int{120, 80, 220, 260}, "confidence": 0.998}},
		"face_count": 1,
	}}
}

func ocrFields(docType string) map[string]any {
	switch docType {
	case "passport":
		return map[string]any{
			"document_type": "passport", "passport_no": "AA1234567", "surname": "DOE",
			"given_names": "JANE", "nationality": "THA", "date_of_expiry": "2031-05-01",
		}
	case "driver_license":
		return map[string]any{
			"document_type": "driver_license", "license_no": "12345678", "name": "JANE DOE",
			"class": "B", "date_of_expiry": "2029-12-31",
		}
	default:
		return map[string]any{
			"document_type": "id_card", "id_number": "1101700203451", "name_en": "JANE DOE",
			"date_of_birth": "1990-01-01", "address": "99 Demo Road, Bangkok",
		}
	}
}

// 1x1 transparent PNG
var pngStub = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, 0x89, 0x00, 0x00, 0x00,
	0x0A, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82,
}
