package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/anime-shed/kyc-console-go/internal/capability"
	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/liveness"
	"github.com/anime-shed/kyc-console-go/internal/playground"
	"github.com/anime-shed/kyc-console-go/internal/quota"
)

type capabilitiesView struct {
	capability.Selection
	Groups capability.Groups `json:"groups"`
}

func (v capabilitiesView) Table() Table {
	t := Table{Headers: []string{"FEATURE", "NAME", "CATEGORY", "INPUT"}}
	for _, f := range v.Features {
		t.Rows = append(t.Rows, []string{f.ID, f.Name, string(f.Category), string(f.InputMode)})
	}
	return t
}

type countriesView []string

func (v countriesView) Table() Table {
	t := Table{Headers: []string{"COUNTRY"}}
	for _, c := range v {
		t.Rows = append(t.Rows, []string{c})
	}
	return t
}

func (a *app) capabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities [country]",
		Short: "List regions, or the features a region offers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.printer.Print(countriesView(a.c.Capabilities().Countries()))
			}
			sel := capability.Resolve(a.c.Capabilities(), args[0])
			if sel == nil {
				return apperrors.NewValidationError("Select a region first", capability.ErrNoCountry)
			}
			return a.printer.Print(capabilitiesView{Selection: *sel, Groups: sel.Categorize()})
		},
	}
}

type quotaView quota.Snapshot

func (v quotaView) Table() Table {
	t := Table{Headers: []string{"SERVICE", "USED", "LIMIT", "REMAINING", "RESETS"}}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		e := v[k]
		reset := "-"
		if e.ResetAt != nil {
			reset = e.ResetAt.UTC().Format(time.RFC3339)
		}
		t.Rows = append(t.Rows, []string{
			k,
			strconv.FormatInt(e.Used, 10),
			strconv.FormatInt(e.Limit, 10),
			strconv.FormatInt(e.Remaining, 10),
			reset,
		})
	}
	return t
}

func (a *app) quotaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show the remaining allowance per service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.c.Credentials().Authenticated(time.Now()) {
				return apperrors.NewUnauthorizedError("Sign in to view quota", nil)
			}
			if err := a.c.Quota().Refresh(cmd.Context()); err != nil {
				return err
			}
			return a.printer.Print(quotaView(a.c.Quota().Snapshot()))
		},
	}
}

type outcomeView playground.Outcome

func (v outcomeView) Table() Table {
	t := Table{Headers: []string{"FIELD", "VALUE"}}
	add := func(k, val string) {
		if val != "" {
			t.Rows = append(t.Rows, []string{k, val})
		}
	}
	add("feature", v.Feature)
	add("country", v.Country)
	add("state", string(v.State))
	add("success", yesNo(v.Success))
	if v.Banner != nil {
		add("title", v.Banner.Title)
		add("detail", v.Banner.Detail)
		add("action", string(v.Banner.Action))
	}
	if v.View != nil {
		add("result", v.View.Title)
		add("summary", v.View.Summary)
		for _, r := range v.View.Rows {
			add(r.Label, r.Value)
		}
	}
	if v.Quota != nil {
		add("quota remaining", strconv.FormatInt(v.Quota.Remaining, 10))
	}
	add("trace id", v.TraceID)
	return t
}

func (a *app) analyzeCmd() *cobra.Command {
	inputs := map[string]*string{}
	var expected string
	cmd := &cobra.Command{
		Use:   "analyze <country> <feature>",
		Short: "Run one playground analysis",
		Long: "Runs one playground analysis. Inputs are local paths, http(s) URLs or, when Azure\n" +
			"credentials are configured, blob URLs.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := playground.Request{
				Country:      args[0],
				FeatureID:    args[1],
				Inputs:       map[string]playground.Input{},
				ExpectedText: expected,
			}
			for field, location := range inputs {
				if *location == "" {
					continue
				}
				obj, err := a.c.Inputs().Load(cmd.Context(), *location)
				if err != nil {
					return err
				}
				req.Inputs[field] = playground.Input{Filename: obj.Name, ContentType: obj.ContentType, Data: obj.Data}
			}
			out, err := a.c.Playground().Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := a.printer.Print(outcomeView(out)); err != nil {
				return err
			}
			if !out.Success {
				return fmt.Errorf("analysis did not succeed: %s", outcomeReason(out))
			}
			return nil
		},
	}
	for _, field := range []string{playground.FieldPicture, playground.FieldSourceImage, playground.FieldTargetImage, playground.FieldVideo} {
		inputs[field] = cmd.Flags().String(strings.ReplaceAll(field, "_", "-"), "", field+" input location")
	}
	cmd.Flags().StringVar(&expected, "expected-text", "", "score OCR output against this text")
	return cmd
}

func outcomeReason(out playground.Outcome) string {
	if out.BlockReason != "" {
		return string(out.BlockReason)
	}
	if out.Banner != nil {
		return out.Banner.Title
	}
	return string(out.Kind)
}

type verdictView liveness.Verdict

func (v verdictView) Table() Table {
	return Table{
		Headers: []string{"PASSED", "ATTEMPTS", "REASONS", "MESSAGE", "TRACE ID"},
		Rows: [][]string{{
			yesNo(v.Passed),
			strconv.Itoa(v.Attempts),
			dash(strings.Join(v.ReasonCodes, ",")),
			dash(v.Message),
			dash(v.TraceID),
		}},
	}
}

func (a *app) livenessCmd() *cobra.Command {
	var video string
	var pace bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "liveness <action|rgb>",
		Short: "Run a liveness check with a recorded clip standing in for the camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variant, err := liveness.ParseVariant(args[0])
			if err != nil {
				return apperrors.NewValidationError("Unknown liveness variant", err)
			}
			if !a.c.Credentials().Authenticated(time.Now()) {
				return apperrors.NewUnauthorizedError("Sign in to run liveness", nil)
			}
			if video == "" {
				return apperrors.NewValidationError("a recording is required", nil).WithDetails("pass --video")
			}
			poller := liveness.NewPoller()
			if interval > 0 {
				poller.Interval = interval
			}
			flow := liveness.NewFlow(a.c.Provider(), liveness.FileDevice{Path: video, Pace: pace}, variant,
				liveness.WithSubject(a.c.Publisher()),
				liveness.WithPoller(poller),
			)
			verdict, err := flow.Run(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.Print(verdictView(verdict))
		},
	}
	cmd.Flags().StringVar(&video, "video", "", "recorded clip (mp4, webm or mov)")
	cmd.Flags().BoolVar(&pace, "pace", false, "hold each prompt for its full duration")
	cmd.Flags().DurationVar(&interval, "poll-interval", 0, "verdict poll interval")
	_ = cmd.Flags().MarkHidden("poll-interval")
	return cmd
}
