// Package provider is the seam between the console core and the e-KYC backend.
// Remote talks HTTP; Fake answers from memory for mock mode and tests.
// One of them is chosen at startup; call sites never branch on the mode.
package provider

import (
	"context"
	"net/url"

	"github.com/anime-shed/kyc-console-go/internal/apiclient"
	"github.com/anime-shed/kyc-console-go/internal/authz"
	"github.com/anime-shed/kyc-console-go/internal/capability"
	"github.com/anime-shed/kyc-console-go/internal/quota"
)

// Backend endpoints outside the capability table.
const (
	PathQuota       = "/console/quota"
	PathMe          = "/console/me"
	PathFaceImages  = "/kyc/face/images/"
	PathLivenessFmt = "/kyc/liveness/%s/%s"
)

// Provider covers every backend capability the console uses.
type Provider interface {
	// Analyze submits one analysis request. Exactly one backend call is made.
	Analyze(ctx context.Context, feature capability.Feature, form *apiclient.Multipart) apiclient.Result
	// FaceImage fetches a stored face image referenced by a search candidate.
	FaceImage(ctx context.Context, imageID string) (apiclient.Blob, apiclient.Result)
	FetchQuota(ctx context.Context) (quota.Snapshot, error)
	Principal(ctx context.Context) (authz.Principal, error)

	CreateLivenessSession(ctx context.Context, variant string) apiclient.Result
	UploadLiveness(ctx context.Context, variant string, form *apiclient.Multipart) apiclient.Result
	LivenessResult(ctx context.Context, variant, sessionID, uploadID string) apiclient.Result

	// Generic calls used by the administrative surfaces.
	Get(ctx context.Context, path string, query url.Values) apiclient.Result
	PostJSON(ctx context.Context, path string, body any) apiclient.Result
	Delete(ctx context.Context, path string) apiclient.Result
}

var (
	_ Provider              = (*Remote)(nil)
	_ Provider              = (*Fake)(nil)
	_ quota.Source          = (*Remote)(nil)
	_ authz.PrincipalSource = (*Remote)(nil)
)
