package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/anime-shed/kyc-console-go/internal/admin"
	"github.com/anime-shed/kyc-console-go/internal/authz"
)

type apiKeyList []admin.APIKey

func (l apiKeyList) Table() Table {
	t := Table{Headers: []string{"ID", "NAME", "PREFIX", "SCOPES", "CREATED", "LAST USED"}}
	for _, k := range l {
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.UTC().Format(time.RFC3339)
		}
		t.Rows = append(t.Rows, []string{k.ID, k.Name, dash(k.Prefix), dash(strings.Join(k.Scopes, ",")), k.CreatedAt.UTC().Format(time.RFC3339), lastUsed})
	}
	return t
}

type createdKey admin.APIKey

func (k createdKey) Table() Table {
	return Table{
		Headers: []string{"ID", "NAME", "KEY"},
		Rows:    [][]string{{k.ID, k.Name, k.Key}},
	}
}

func (a *app) keysCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "keys", Short: "Manage API keys"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePermission(cmd, authz.PermAPIKeyRead); err != nil {
				return err
			}
			keys, err := a.c.Admin().ListAPIKeys(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.Print(apiKeyList(keys))
		},
	}

	var in admin.CreateAPIKeyInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key. The secret is shown once.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePermission(cmd, authz.PermAPIKeyWrite); err != nil {
				return err
			}
			key, err := a.c.Admin().CreateAPIKey(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.printer.Print(createdKey(key))
		},
	}
	create.Flags().StringVar(&in.Name, "name", "", "key name")
	create.Flags().StringSliceVar(&in.Scopes, "scope", nil, "scope granted to the key (repeatable)")

	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePermission(cmd, authz.PermAPIKeyWrite); err != nil {
				return err
			}
			if err := a.c.Admin().RevokeAPIKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("revoked %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, revoke)
	return cmd
}

type webhookList []admin.Webhook

func (l webhookList) Table() Table {
	t := Table{Headers: []string{"ID", "NAME", "URL", "EVENTS", "CREATED"}}
	for _, w := range l {
		t.Rows = append(t.Rows, []string{w.ID, dash(w.Name), w.URL, dash(strings.Join(w.Events, ",")), w.CreatedAt.UTC().Format(time.RFC3339)})
	}
	return t
}

func (a *app) webhooksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "webhooks", Short: "Manage webhook endpoints"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List webhooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePermission(cmd, authz.PermWebhookRead); err != nil {
				return err
			}
			hooks, err := a.c.Admin().ListWebhooks(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.Print(webhookList(hooks))
		},
	}

	var in admin.CreateWebhookInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a webhook endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePermission(cmd, authz.PermWebhookWrite); err != nil {
				return err
			}
			hook, err := a.c.Admin().CreateWebhook(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.printer.Print(hook)
		},
	}
	create.Flags().StringVar(&in.Name, "name", "", "display name")
	create.Flags().StringVar(&in.URL, "url", "", "endpoint receiving events")
	create.Flags().StringSliceVar(&in.Events, "event", nil, "event to subscribe to (repeatable)")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePermission(cmd, authz.PermWebhookWrite); err != nil {
				return err
			}
			if err := a.c.Admin().DeleteWebhook(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}

type oauthList []admin.OAuthClient

func (l oauthList) Table() Table {
	t := Table{Headers: []string{"ID", "NAME", "CLIENT ID", "REDIRECT URIS"}}
	for _, c := range l {
		t.Rows = append(t.Rows, []string{c.ID, c.Name, c.ClientID, dash(strings.Join(c.RedirectURIs, ","))})
	}
	return t
}

func (a *app) oauthCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "oauth-clients", Short: "Manage OAuth clients"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List OAuth clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePermission(cmd, authz.PermOAuthRead); err != nil {
				return err
			}
			clients, err := a.c.Admin().ListOAuthClients(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.Print(oauthList(clients))
		},
	}

	var in admin.CreateOAuthClientInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an OAuth client. The secret is shown once.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePermission(cmd, authz.PermOAuthWrite); err != nil {
				return err
			}
			client, err := a.c.Admin().CreateOAuthClient(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.printer.Print(client)
		},
	}
	create.Flags().StringVar(&in.Name, "name", "", "client name")
	create.Flags().StringSliceVar(&in.RedirectURIs, "redirect-uri", nil, "allowed redirect URI (repeatable)")
	create.Flags().StringSliceVar(&in.Scopes, "scope", nil, "scope (repeatable)")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an OAuth client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePermission(cmd, authz.PermOAuthWrite); err != nil {
				return err
			}
			if err := a.c.Admin().DeleteOAuthClient(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}

type auditView admin.AuditPage

func (p auditView) Table() Table {
	t := Table{Headers: []string{"TIME", "ACTOR", "ACTION", "TARGET"}}
	for _, e := range p.Items {
		t.Rows = append(t.Rows, []string{e.CreatedAt.UTC().Format(time.RFC3339), e.Actor, e.Action, dash(e.Target)})
	}
	if p.Total > len(p.Items) {
		t.Rows = append(t.Rows, []string{"", "", "page " + strconv.Itoa(p.Page), strconv.Itoa(p.Total) + " total"})
	}
	return t
}

func (a *app) auditCmd() *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requirePermission(cmd, authz.PermAuditRead); err != nil {
				return err
			}
			out, err := a.c.Admin().AuditLogs(cmd.Context(), page, limit)
			if err != nil {
				return err
			}
			return a.printer.Print(auditView(out))
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&limit, "limit", 20, "entries per page")
	return cmd
}
