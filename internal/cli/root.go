// Package cli is the kycctl command tree. Every command goes through the same
// container the HTTP console uses, with local file inputs enabled.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anime-shed/kyc-console-go/internal/config"
	"github.com/anime-shed/kyc-console-go/internal/container"
	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/logger"
)

const envPrefix = "KYCCTL"

type app struct {
	v       *viper.Viper
	out     io.Writer
	opts    []container.Option
	c       *container.Container
	printer *Printer
}

// NewRootCommand builds the command tree. Extra container options are applied
// after the CLI defaults.
func NewRootCommand(out io.Writer, opts ...container.Option) *cobra.Command {
	a := &app{v: viper.New(), out: out, opts: opts}

	root := &cobra.Command{
		Use:           "kycctl",
		Short:         "Command line console for the e-KYC platform",
		Long:          "kycctl signs in, runs playground analyses and liveness checks, and manages API keys, webhooks and OAuth clients.",
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.c != nil {
				a.c.Close()
			}
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.kycctl.yaml)")
	flags.String("api-url", "", "backend base URL (overrides API_BASE_URL)")
	flags.Bool("mock", false, "answer from the in-memory backend")
	flags.String("state-file", "", "where the session is stored")
	flags.StringP("output", "o", "table", "output format (table, json, yaml)")
	flags.Duration("timeout", 0, "per request timeout")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlags(flags)

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.orgCmd(),
		a.capabilitiesCmd(),
		a.quotaCmd(),
		a.analyzeCmd(),
		a.livenessCmd(),
		a.keysCmd(),
		a.webhooksCmd(),
		a.oauthCmd(),
		a.auditCmd(),
	)
	return root
}

// setup reads the config file, builds the configuration and the container.
func (a *app) setup() error {
	if err := a.readConfigFile(); err != nil {
		return err
	}

	logger.UseTextFormatter()
	logger.SetLevel(a.v.GetString("log-level"))

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if u := a.v.GetString("api-url"); u != "" {
		cfg.APIBaseURL = strings.TrimRight(u, "/")
	}
	if a.v.GetBool("mock") {
		cfg.MockMode = true
	}
	if p := a.v.GetString("state-file"); p != "" {
		cfg.StateFile = p
	}
	if d := a.v.GetDuration("timeout"); d > 0 {
		cfg.RequestTimeout = d
	}
	// each invocation is a new process, so the session lives in the state file
	cfg.PersistToken = true
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.printer, err = NewPrinter(a.out, a.v.GetString("output"))
	if err != nil {
		return err
	}
	opts := append([]container.Option{container.WithLocalInputs()}, a.opts...)
	a.c, err = container.NewContainer(cfg, opts...)
	return err
}

func (a *app) readConfigFile() error {
	if file := a.v.GetString("config"); file != "" {
		a.v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		a.v.AddConfigPath(home)
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".kycctl")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", filepath.Base(a.v.ConfigFileUsed()), err)
	}
	logger.WithField("file", a.v.ConfigFileUsed()).Debug("Using config file")
	return nil
}

// requirePermission mirrors the console's Access Denied gate before an admin call.
func (a *app) requirePermission(cmd *cobra.Command, permission string) error {
	p, err := a.c.Admin().Principal(cmd.Context())
	if err != nil {
		return err
	}
	if !p.Can(permission) {
		return apperrors.NewForbiddenError("Access Denied", nil).
			WithDetails(fmt.Sprintf("%s requires the %s permission", cmd.CommandPath(), permission))
	}
	return nil
}

// UserMessage turns an error into the single line printed by main.
func UserMessage(err error) string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	msg := appErr.Message
	if appErr.Details != "" {
		msg += ": " + appErr.Details
	}
	if appErr.TraceID != "" {
		msg += " (trace " + appErr.TraceID + ")"
	}
	if appErr.Type == apperrors.ErrorTypeUnauthorized {
		msg += ". Run `kycctl login` to sign in again"
	}
	return msg
}
