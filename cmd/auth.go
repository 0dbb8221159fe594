package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spiffcs/gqlc/internal/auth"
	"github.com/spiffcs/gqlc/internal/format"
	"github.com/spiffcs/gqlc/internal/output"
)

// NewCmdAuth creates the auth command.
func NewCmdAuth(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect the bearer token gqlc sends",
	}
	cmd.AddCommand(newCmdAuthStatus(opts))
	return cmd
}

// newCmdAuthStatus creates the auth status subcommand.
func newCmdAuthStatus(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the token comes from and what it claims",
		Long: `Resolves the bearer token the same way requests do and describes it. JWT
claims are decoded without verifying the signature. The token itself is
never printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuthStatus(cmd, opts)
		},
	}
}

func runAuthStatus(cmd *cobra.Command, opts *Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	provider, source := tokenProvider(cmd.Context(), cfg)
	t := output.NewTable("Authentication:").Add("Source", source)

	token, ok := provider.AuthorizationToken()
	if !ok {
		t.AddTone("Token", "absent, requests are sent without Authorization", output.ToneWarn)
		return t.Render(cmd.OutOrStdout())
	}
	t.AddTone("Token", "present", output.ToneOK)

	info, err := auth.Inspect(token)
	if errors.Is(err, auth.ErrNotJWT) {
		t.Add("Format", "opaque")
		return t.Render(cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}

	t.Add("Format", "JWT (signature not verified)")
	if info.Subject != "" {
		t.Add("Subject", info.Subject)
	}
	if info.Issuer != "" {
		t.Add("Issuer", info.Issuer)
	}
	if len(info.Audience) > 0 {
		t.Add("Audience", strings.Join(info.Audience, ", "))
	}
	switch {
	case info.ExpiresAt.IsZero():
		t.Add("Expires", "never")
	case info.Expired():
		t.AddTone("Expires", "expired "+info.ExpiresAt.Format("2006-01-02 15:04:05"), output.ToneError)
	default:
		t.AddTone("Expires", format.FormatUntil(info.ExpiresAt), output.ToneOK)
	}
	return t.Render(cmd.OutOrStdout())
}
