package provider

import (
	"context"
	"fmt"
	"net/url"

	"github.com/anime-shed/kyc-console-go/internal/apiclient"
	"github.com/anime-shed/kyc-console-go/internal/authz"
	"github.com/anime-shed/kyc-console-go/internal/capability"
	"github.com/anime-shed/kyc-console-go/internal/quota"
)

// Remote forwards every call to the backend through the shared API client.
type Remote struct {
	client *apiclient.Client
}

func NewRemote(client *apiclient.Client) *Remote {
	return &Remote{client: client}
}

func (r *Remote) Analyze(ctx context.Context, feature capability.Feature, form *apiclient.Multipart) apiclient.Result {
	return r.client.PostMultipart(ctx, feature.Endpoint, form)
}

func (r *Remote) FaceImage(ctx context.Context, imageID string) (apiclient.Blob, apiclient.Result) {
	return r.client.GetBlob(ctx, PathFaceImages+url.PathEscape(imageID))
}

func (r *Remote) FetchQuota(ctx context.Context) (quota.Snapshot, error) {
	res := r.client.Get(ctx, PathQuota, nil)
	var snap quota.Snapshot
	if err := res.Decode(&snap); err != nil {
		return nil, err
	}
	if snap == nil {
		snap = quota.Snapshot{}
	}
	return snap, nil
}

func (r *Remote) Principal(ctx context.Context) (authz.Principal, error) {
	var p authz.Principal
	if err := r.client.Get(ctx, PathMe, nil).Decode(&p); err != nil {
		return authz.Principal{}, err
	}
	return p, nil
}

func (r *Remote) CreateLivenessSession(ctx context.Context, variant string) apiclient.Result {
	return r.client.PostJSON(ctx, livenessPath(variant, "session"), struct{}{})
}

func (r *Remote) UploadLiveness(ctx context.Context, variant string, form *apiclient.Multipart) apiclient.Result {
	return r.client.PostMultipart(ctx, livenessPath(variant, "upload"), form)
}

func (r *Remote) LivenessResult(ctx context.Context, variant, sessionID, uploadID string) apiclient.Result {
	q := url.Values{}
	q.Set("session_id", sessionID)
	q.Set("upload_id", uploadID)
	return r.client.Get(ctx, livenessPath(variant, "result"), q)
}

func (r *Remote) Get(ctx context.Context, path string, query url.Values) apiclient.Result {
	return r.client.Get(ctx, path, query)
}

func (r *Remote) PostJSON(ctx context.Context, path string, body any) apiclient.Result {
	return r.client.PostJSON(ctx, path, body)
}

func (r *Remote) Delete(ctx context.Context, path string) apiclient.Result {
	return r.client.Delete(ctx, path)
}

func livenessPath(variant, step string) string {
	return fmt.Sprintf(PathLivenessFmt, variant, step)
}
