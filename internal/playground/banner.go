package playground

import (
	"errors"
	"fmt"

	"github.com/anime-shed/kyc-console-go/internal/apiclient"
	"github.com/anime-shed/kyc-console-go/internal/capability"
	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/quota"
)

// Action is the recovery step a banner offers.
type Action string

const (
	ActionLogin             Action = "login"
	ActionUpload            Action = "upload"
	ActionUpgrade           Action = "upgrade"
	ActionRetry             Action = "retry"
	ActionCheckConnectivity Action = "check_connectivity"
)

// Banner is the user-facing message for a blocked or failed run.
type Banner struct {
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	TraceID string `json:"trace_id,omitempty"`
	Action  Action `json:"action,omitempty"`
}

// BannerCopy renders banners. Only one is shown per outcome.
type BannerCopy struct {
	UpgradeURL string
}

func (BannerCopy) SignIn() *Banner {
	return &Banner{Title: "Sign in required", Detail: "Log in to run analyses in the playground.", Action: ActionLogin}
}

func (BannerCopy) SessionExpired() *Banner {
	return &Banner{Title: "Session expired", Detail: "Your session has ended. Sign in again to continue.", Action: ActionLogin}
}

func (BannerCopy) MissingInput(field string) *Banner {
	return &Banner{Title: "Upload required", Detail: fmt.Sprintf("Provide a file for %s.", field), Action: ActionUpload}
}

func (BannerCopy) InvalidInput(err error) *Banner {
	detail := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		detail = appErr.Message
	}
	return &Banner{Title: "Unsupported file", Detail: detail, Action: ActionUpload}
}

func (c BannerCopy) QuotaExceeded(feature capability.Feature, entry *quota.Entry) *Banner {
	detail := fmt.Sprintf("You have used your allowance for %s.", featureLabel(feature))
	if entry != nil && entry.Limit > 0 {
		detail = fmt.Sprintf("You have used all %d requests for %s.", entry.Limit, featureLabel(feature))
	}
	if entry != nil && entry.ResetAt != nil {
		detail += " It resets " + entry.ResetAt.UTC().Format("2006-01-02 15:04 MST") + "."
	}
	if c.UpgradeURL != "" {
		detail += " Upgrade your plan at " + c.UpgradeURL + "."
	} else {
		detail += " Upgrade your plan to continue."
	}
	return &Banner{Title: "Quota Exceeded", Detail: detail, Action: ActionUpgrade}
}

func (BannerCopy) Connectivity(res apiclient.Result) *Banner {
	return &Banner{
		Title:   "Cannot reach the service",
		Detail:  nonEmpty(res.Error, "The request did not complete. Check your connection."),
		TraceID: res.Meta.RequestID,
		Action:  ActionCheckConnectivity,
	}
}

func (BannerCopy) Timeout(res apiclient.Result) *Banner {
	return &Banner{
		Title:   "Request timed out",
		Detail:  "The service took too long to answer. Try again.",
		TraceID: res.Meta.RequestID,
		Action:  ActionRetry,
	}
}

func (BannerCopy) RequestFailed(res apiclient.Result) *Banner {
	return &Banner{
		Title:   fmt.Sprintf("Request failed (%d)", res.Status),
		Detail:  res.Error,
		TraceID: res.Meta.RequestID,
		Action:  ActionRetry,
	}
}

func (BannerCopy) Rejected(res apiclient.Result) *Banner {
	title := "Request rejected"
	if res.Meta.BusinessCode != nil {
		title = fmt.Sprintf("Request rejected (code %d)", *res.Meta.BusinessCode)
	}
	return &Banner{Title: title, Detail: res.Error, TraceID: res.Meta.RequestID, Action: ActionRetry}
}

func featureLabel(f capability.Feature) string {
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
