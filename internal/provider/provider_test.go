package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anime-shed/kyc-console-go/internal/apiclient"
	"github.com/anime-shed/kyc-console-go/internal/capability"
	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/quota"
	"github.com/anime-shed/kyc-console-go/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	idCardOCR = capability.Feature{ID: "id_card_ocr", Category: capability.CategoryOCR, Endpoint: "/kyc/ocr/id-card", InputMode: capability.InputSingleImage, DocumentType: "id_card"}
	faceCmp   = capability.Feature{ID: "face_comparison", Category: capability.CategoryFace, Endpoint: "/kyc/face/compare", InputMode: capability.InputDualImage}
	faceSrch  = capability.Feature{ID: "face_search", Category: capability.CategoryFace, Endpoint: "/kyc/face/search", InputMode: capability.InputSingleImage}
)

func picture() *apiclient.Multipart {
	return apiclient.NewMultipart().File("picture", "a.jpg", "image/jpeg", []byte{0xFF, 0xD8})
}

func TestFake_AnalyzeDecrementsQuota(t *testing.T) {
	f := NewFake(WithFakeQuota(quota.Snapshot{"id_card_ocr": {Limit: 2, Remaining: 2}}))
	ctx := context.Background()

	res := f.Analyze(ctx, idCardOCR, picture())
	require.True(t, res.OK(), res.String())
	assert.Contains(t, string(res.Data), "parsing_results")

	snap, err := f.FetchQuota(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap["id_card_ocr"].Remaining)
	assert.Equal(t, int64(1), snap["id_card_ocr"].Used)

	require.True(t, f.Analyze(ctx, idCardOCR, picture()).OK())
	res = f.Analyze(ctx, idCardOCR, picture())
	assert.False(t, res.OK())
	assert.Equal(t, apiclient.KindBusinessError, res.Kind())
	require.NotNil(t, res.Meta.BusinessCode)
	assert.Equal(t, CodeQuotaExceeded, *res.Meta.BusinessCode)
	assert.Equal(t, 3, f.Calls(idCardOCR.Endpoint))
}

func TestFake_AnalyzeFallsBackToCategoryQuota(t *testing.T) {
	f := NewFake(WithFakeQuota(quota.Snapshot{"face": {Remaining: 5}}))
	form := apiclient.NewMultipart().
		File("source_image", "s.jpg", "image/jpeg", []byte{1}).
		File("target_image", "t.jpg", "image/jpeg", []byte{2})

	res := f.Analyze(context.Background(), faceCmp, form)
	require.True(t, res.OK())
	assert.Contains(t, string(res.Data), "comparison_results")

	snap, _ := f.FetchQuota(context.Background())
	assert.Equal(t, int64(4), snap["face"].Remaining)
}

func TestFake_AnalyzeRequiresInputs(t *testing.T) {
	f := NewFake()
	res := f.Analyze(context.Background(), faceCmp, picture())
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "source_image is required", res.Error)
}

func TestFake_FaceImages(t *testing.T) {
	f := NewFake()
	res := f.Analyze(context.Background(), faceSrch, picture())
	require.True(t, res.OK())

	blob, r := f.FaceImage(context.Background(), "img-001")
	require.True(t, r.OK())
	assert.Equal(t, "image/png", blob.ContentType)
	assert.NotEmpty(t, blob.Data)

	_, r = f.FaceImage(context.Background(), "img-404")
	assert.Equal(t, http.StatusNotFound, r.Status)
}

func TestFake_LivenessSession(t *testing.T) {
	f := NewFake(WithLivenessReadyAfter(1))
	ctx := context.Background()

	res := f.CreateLivenessSession(ctx, "action")
	require.True(t, res.OK())
	var sess struct {
		SessionID string   `json:"session_id"`
		UploadID  string   `json:"upload_id"`
		Actions   []string `json:"actions"`
	}
	require.NoError(t, res.Decode(&sess))
	assert.NotEmpty(t, sess.Actions)

	form := apiclient.NewMultipart().
		File("video", "v.webm", "video/webm", []byte{1, 2}).
		Field("session_id", sess.SessionID).
		Field("upload_id", sess.UploadID)
	require.True(t, f.UploadLiveness(ctx, "action", form).OK())

	first := f.LivenessResult(ctx, "action", sess.SessionID, sess.UploadID)
	require.True(t, first.OK())
	assert.NotContains(t, string(first.Data), "passed")

	second := f.LivenessResult(ctx, "action", sess.SessionID, sess.UploadID)
	require.True(t, second.OK())
	assert.Contains(t, string(second.Data), `"passed":true`)

	assert.Equal(t, http.StatusNotFound, f.LivenessResult(ctx, "action", "nope", "nope").Status)
}

func TestFake_AdminCollections(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	created := f.PostJSON(ctx, "/console/api-keys", map[string]string{"name": "ci"})
	require.True(t, created.OK(), created.String())
	assert.Equal(t, http.StatusCreated, created.Status)
	var key struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	require.NoError(t, created.Decode(&key))
	assert.NotEmpty(t, key.Key)

	list := f.Get(ctx, "/console/api-keys", nil)
	require.True(t, list.OK())
	assert.NotContains(t, string(list.Data), key.Key, "secret is shown only once")

	assert.Equal(t, http.StatusBadRequest, f.PostJSON(ctx, "/console/api-keys", map[string]string{}).Status)
	assert.Equal(t, http.StatusBadRequest, f.PostJSON(ctx, "/console/webhooks", map[string]string{"url": "ftp://x"}).Status)

	require.True(t, f.Delete(ctx, "/console/api-keys/"+key.ID).OK())
	assert.Equal(t, http.StatusNotFound, f.Delete(ctx, "/console/api-keys/"+key.ID).Status)

	audit := f.Get(ctx, "/console/audit-logs", map[string][]string{"limit": {"1"}})
	require.True(t, audit.OK())
	var page struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
	}
	require.NoError(t, audit.Decode(&page))
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "api-keys.delete", page.Items[0]["action"])

	assert.True(t, f.Get(ctx, "/console/roles", nil).OK())
	assert.True(t, f.Get(ctx, "/console/organizations", nil).OK())
	assert.Equal(t, http.StatusNotFound, f.Get(ctx, "/console/unknown", nil).Status)
}

func newRemote(t *testing.T, handler http.HandlerFunc) *Remote {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	creds, err := session.New(server.URL)
	require.NoError(t, err)
	return NewRemote(apiclient.New(creds))
}

func TestRemote_FetchQuota(t *testing.T) {
	r := newRemote(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, PathQuota, req.URL.Path)
		_, _ = io.WriteString(w, `{"code":0,"data":{"ocr":{"limit":10,"used":10,"remaining":0,"reset_at":null}}}`)
	})
	snap, err := r.FetchQuota(context.Background())
	require.NoError(t, err)
	assert.True(t, quota.IsExhausted(quota.Resolve(snap, idCardOCR)))
}

func TestRemote_FetchQuotaFailure(t *testing.T) {
	r := newRemote(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := r.FetchQuota(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeHTTP))
}

func TestRemote_PrincipalAndLiveness(t *testing.T) {
	r := newRemote(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case PathMe:
			_, _ = io.WriteString(w, `{"code":0,"data":{"user_id":"u1","permissions":["oauth.*"]}}`)
		case "/kyc/liveness/rgb/result":
			assert.Equal(t, "s1", req.URL.Query().Get("session_id"))
			assert.Equal(t, "u1", req.URL.Query().Get("upload_id"))
			_, _ = io.WriteString(w, `{"code":0,"data":{"passed":false}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	p, err := r.Principal(context.Background())
	require.NoError(t, err)
	assert.True(t, p.Can("oauth.write"))

	res := r.LivenessResult(context.Background(), "rgb", "s1", "u1")
	assert.True(t, res.OK())
}
