package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/anime-shed/kyc-console-go/internal/admin"
	"github.com/anime-shed/kyc-console-go/internal/authz"
	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/logger"
	"github.com/anime-shed/kyc-console-go/internal/session"
)

type sessionView struct {
	Authenticated  bool             `json:"authenticated"`
	Subject        string           `json:"subject,omitempty"`
	OrganizationID string           `json:"organization_id,omitempty"`
	BaseURL        string           `json:"base_url"`
	User           *authz.Principal `json:"user,omitempty"`
}

func (s sessionView) Table() Table {
	user := "-"
	if s.User != nil {
		user = s.User.Email
	}
	return Table{
		Headers: []string{"AUTHENTICATED", "SUBJECT", "ORGANIZATION", "USER", "BACKEND"},
		Rows:    [][]string{{yesNo(s.Authenticated), dash(s.Subject), dash(s.OrganizationID), user, s.BaseURL}},
	}
}

func (a *app) sessionView() sessionView {
	creds := a.c.Credentials()
	snap := creds.Snapshot()
	return sessionView{
		Authenticated:  creds.Authenticated(time.Now()),
		Subject:        session.TokenSubject(snap.Token),
		OrganizationID: snap.OrganizationID,
		BaseURL:        snap.BaseURL,
	}
}

func (a *app) loginCmd() *cobra.Command {
	var token, org string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = a.v.GetString("token")
			}
			if token == "" {
				return apperrors.NewValidationError("a token is required", nil).WithDetails("pass --token or set KYCCTL_TOKEN")
			}
			if !session.TokenUsable(token, time.Now()) {
				return apperrors.NewUnauthorizedError("Token has expired", nil)
			}
			creds := a.c.Credentials()
			if err := creds.SetToken(token); err != nil {
				return fmt.Errorf("store session: %w", err)
			}
			if org != "" {
				if err := creds.SetOrganizationID(org); err != nil {
					return fmt.Errorf("store organization: %w", err)
				}
			}
			if err := a.c.Quota().Refresh(cmd.Context()); err != nil {
				logger.WithError(err).Warn("Quota refresh after login failed")
			}
			return a.printer.Print(a.sessionView())
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token or API key")
	cmd.Flags().StringVar(&org, "org", "", "organization id to act in")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token and organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.c.Credentials().ClearToken(); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			return a.printer.Print(a.sessionView())
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session and the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view := a.sessionView()
			if view.Authenticated {
				p, err := a.c.Admin().Principal(cmd.Context())
				if err != nil {
					return err
				}
				view.User = &p
			}
			return a.printer.Print(view)
		},
	}
}

type orgList []admin.Organization

func (l orgList) Table() Table {
	t := Table{Headers: []string{"ID", "NAME", "PLAN"}}
	for _, o := range l {
		t.Rows = append(t.Rows, []string{o.ID, o.Name, dash(o.Plan)})
	}
	return t
}

func (a *app) orgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "List organizations or switch the active one",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List organizations you belong to",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.requirePermission(cmd, authz.PermOrgRead); err != nil {
					return err
				}
				orgs, err := a.c.Admin().Organizations(cmd.Context())
				if err != nil {
					return err
				}
				return a.printer.Print(orgList(orgs))
			},
		},
		&cobra.Command{
			Use:   "use <organization-id>",
			Short: "Act in another organization",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.c.Credentials().SetOrganizationID(args[0]); err != nil {
					return fmt.Errorf("store organization: %w", err)
				}
				return a.printer.Print(a.sessionView())
			},
		},
	)
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
