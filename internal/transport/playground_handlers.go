package transport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/kyc-console-go/internal/capability"
	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/liveness"
	"github.com/anime-shed/kyc-console-go/internal/logger"
	"github.com/anime-shed/kyc-console-go/internal/playground"
	"github.com/anime-shed/kyc-console-go/pkg/models"
	"github.com/anime-shed/kyc-console-go/pkg/validation"
)

var inputFields = []string{
	playground.FieldPicture,
	playground.FieldSourceImage,
	playground.FieldTargetImage,
	playground.FieldVideo,
}

func (h *handler) listCountries(c *gin.Context) {
	c.JSON(http.StatusOK, models.CountriesResponse{Countries: h.Table.Countries()})
}

func (h *handler) countryCapabilities(c *gin.Context) {
	sel := capability.Resolve(h.Table, c.Param("country"))
	if sel == nil {
		respondAppError(c, "no region selected", apperrors.NewValidationError("Select a region first", capability.ErrNoCountry))
		return
	}
	c.JSON(http.StatusOK, models.CapabilitiesResponse{Selection: *sel, Groups: sel.Categorize()})
}

func (h *handler) getQuota(c *gin.Context) {
	if !h.Creds.Authenticated(h.now()) {
		respondAppError(c, "quota unavailable", apperrors.NewUnauthorizedError("Sign in to view quota", nil))
		return
	}
	if err := h.Quota.Refresh(c.Request.Context()); err != nil {
		respondAppError(c, "quota unavailable", err)
		return
	}
	resp := models.QuotaResponse{Quota: h.Quota.Snapshot()}
	if at := h.Quota.FetchedAt(); !at.IsZero() {
		resp.FetchedAt = at.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) selectFeature(c *gin.Context) {
	_, feature, err := h.Playground.Select(c.Request.Context(), c.Param("country"), c.Param("feature"))
	if err != nil {
		respondAppError(c, "feature unavailable", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"feature":         feature,
		"required_fields": playground.RequiredFields(feature.InputMode),
		"quota":           h.Quota.Lookup(feature),
	})
}

func (h *handler) analyze(c *gin.Context) {
	req := playground.Request{
		Country:   c.Param("country"),
		FeatureID: c.Param("feature"),
		Inputs:    map[string]playground.Input{},
	}

	var err error
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		err = h.readUploads(c, &req)
	} else {
		err = h.loadSources(c, &req)
	}
	if err != nil {
		respondAppError(c, "invalid playground input", err)
		return
	}

	out, err := h.Playground.Run(c.Request.Context(), req)
	switch {
	case errors.Is(err, playground.ErrBusy):
		respondError(c, http.StatusConflict, "analysis rejected", err)
		return
	case err != nil:
		respondAppError(c, "analysis rejected", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// readUploads takes every known input field present in the multipart form.
func (h *handler) readUploads(c *gin.Context, req *playground.Request) error {
	req.ExpectedText = c.PostForm("expected_text")
	for _, field := range inputFields {
		fh, err := c.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return apperrors.NewValidationError("Could not read upload", err)
		}
		f, err := fh.Open()
		if err != nil {
			return apperrors.NewValidationError("Could not read upload", err)
		}
		// one byte over the limit is enough for the validator to reject it
		data, err := io.ReadAll(io.LimitReader(f, h.Uploads.MaxBytes()+1))
		f.Close()
		if err != nil {
			return apperrors.NewValidationError("Could not read upload", err)
		}
		req.Inputs[field] = playground.Input{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		}
	}
	return nil
}

// loadSources fetches inputs named by URL through the input repository.
func (h *handler) loadSources(c *gin.Context, req *playground.Request) error {
	var body models.AnalyzeSourcesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return apperrors.NewValidationError("Invalid request format", err)
	}
	req.ExpectedText = body.ExpectedText
	known := make(map[string]bool, len(inputFields))
	for _, f := range inputFields {
		known[f] = true
	}
	for field, location := range body.Sources {
		if !known[field] {
			return apperrors.NewValidationError(fmt.Sprintf("Unknown input field %q", field), nil)
		}
		obj, err := h.Inputs.Load(c.Request.Context(), location)
		if err != nil {
			return err
		}
		req.Inputs[field] = playground.Input{Filename: obj.Name, ContentType: obj.ContentType, Data: obj.Data}
	}
	return nil
}

func (h *handler) runLiveness(c *gin.Context) {
	variant, err := liveness.ParseVariant(c.Param("variant"))
	if err != nil {
		respondAppError(c, "liveness rejected", apperrors.NewValidationError("Unknown liveness variant", err))
		return
	}
	if !h.Creds.Authenticated(h.now()) {
		respondAppError(c, "liveness rejected", apperrors.NewUnauthorizedError("Sign in to run liveness", nil))
		return
	}

	fh, err := c.FormFile(playground.FieldVideo)
	if err != nil {
		respondAppError(c, "liveness rejected", apperrors.NewValidationError("A video recording is required", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondAppError(c, "liveness rejected", apperrors.NewValidationError("Could not read upload", err))
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, h.Uploads.MaxBytes()+1))
	f.Close()
	if err != nil {
		respondAppError(c, "liveness rejected", apperrors.NewValidationError("Could not read upload", err))
		return
	}
	ct, err := h.Uploads.Validate(validation.MediaVideo, fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		respondAppError(c, "liveness rejected", err)
		return
	}

	if !h.liveness.TryLock() {
		respondError(c, http.StatusConflict, "liveness rejected", liveness.ErrBusy)
		return
	}
	defer h.liveness.Unlock()

	clip := liveness.Recording{Filename: fh.Filename, ContentType: ct, Data: data}
	opts := []liveness.FlowOption{liveness.WithSubject(h.Publisher), liveness.WithStepDuration(0)}
	if h.LivenessPoller != nil {
		opts = append(opts, liveness.WithPoller(*h.LivenessPoller))
	}
	flow := liveness.NewFlow(h.Provider, liveness.ClipDevice{Clip: clip}, variant, opts...)
	verdict, err := flow.Run(c.Request.Context())
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"variant":  variant,
			"attempts": verdict.Attempts,
		}).Warn("Liveness flow failed")
		respondAppError(c, "liveness failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"verdict": verdict,
		"state":   flow.State(),
		"history": flow.History(),
	})
}
