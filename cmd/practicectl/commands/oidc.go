package commands

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/models"
	"github.com/benvon/practice-queue/internal/services/oidc"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newOIDCCmd groups the provider settings subcommands
func newOIDCCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oidc",
		Short: "Manage OIDC providers",
		Long:  "Configure the identity providers whose tokens the API accepts. Provider names are free-form ('cognito', 'okta').",
	}
	cmd.AddCommand(newOIDCSetCmd(open))
	cmd.AddCommand(newOIDCListCmd(open))
	cmd.AddCommand(newOIDCDeleteCmd(open))
	cmd.AddCommand(newOIDCTestCmd(open))
	return cmd
}

type oidcFlags struct {
	issuer       string
	domain       string
	clientID     string
	clientSecret string
	redirectURI  string
	jwksURL      string
}

// oidcConfigFromFlags validates flags and builds the stored configuration.
// Empty optional flags are stored as NULL.
func oidcConfigFromFlags(provider string, f oidcFlags) (*models.OIDCConfig, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, errors.New("provider name cannot be empty")
	}
	if f.issuer == "" || f.clientID == "" || f.redirectURI == "" {
		return nil, errors.New("required flags: --issuer, --client-id, --redirect-uri (--client-secret is optional for public clients)")
	}
	for name, raw := range map[string]string{"--issuer": f.issuer, "--redirect-uri": f.redirectURI, "--jwks-url": f.jwksURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
			return nil, fmt.Errorf("%s must be an absolute http(s) URL", name)
		}
	}

	config := &models.OIDCConfig{
		ID:          uuid.New(),
		Provider:    provider,
		Issuer:      strings.TrimSuffix(f.issuer, "/"),
		ClientID:    f.clientID,
		RedirectURI: f.redirectURI,
	}
	if f.domain != "" {
		config.Domain = &f.domain
	}
	if f.clientSecret != "" {
		config.ClientSecret = &f.clientSecret
	}
	if f.jwksURL != "" {
		config.JWKSUrl = &f.jwksURL
	}
	return config, nil
}

func newOIDCSetCmd(open opener) *cobra.Command {
	var f oidcFlags

	cmd := &cobra.Command{
		Use:   "set <provider-name>",
		Short: "Create or replace an OIDC provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := oidcConfigFromFlags(args[0], f)
			if err != nil {
				return err
			}

			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := database.NewOIDCConfigRepository(s.db).Upsert(cmd.Context(), config); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved OIDC configuration for provider: %s\n", config.Provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.issuer, "issuer", "", "OIDC issuer URL (required)")
	cmd.Flags().StringVar(&f.domain, "domain", "", "Hosted login domain, e.g. a Cognito custom domain")
	cmd.Flags().StringVar(&f.clientID, "client-id", "", "OAuth2 client ID (required)")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", "", "OAuth2 client secret (omit for public clients)")
	cmd.Flags().StringVar(&f.redirectURI, "redirect-uri", "", "OAuth2 redirect URI (required)")
	cmd.Flags().StringVar(&f.jwksURL, "jwks-url", "", "JWKS URL (discovered from the issuer when omitted)")

	return cmd
}

func newOIDCListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured OIDC providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			configs, err := database.NewOIDCConfigRepository(s.db).List(cmd.Context())
			if err != nil {
				return err
			}
			writeOIDCConfigs(cmd.OutOrStdout(), configs)
			return nil
		},
	}
}

func writeOIDCConfigs(out io.Writer, configs []*models.OIDCConfig) {
	if len(configs) == 0 {
		fmt.Fprintln(out, "No OIDC providers configured")
		return
	}

	fmt.Fprintln(out, "Configured OIDC providers:")
	for _, c := range configs {
		fmt.Fprintf(out, "  - Provider: %s\n", c.Provider)
		fmt.Fprintf(out, "    Issuer: %s\n", c.Issuer)
		fmt.Fprintf(out, "    Client ID: %s\n", c.ClientID)
		fmt.Fprintf(out, "    Redirect URI: %s\n", c.RedirectURI)
		if c.Domain != nil {
			fmt.Fprintf(out, "    Domain: %s\n", *c.Domain)
		}
		if c.JWKSUrl != nil {
			fmt.Fprintf(out, "    JWKS URL: %s\n", *c.JWKSUrl)
		}
		fmt.Fprintf(out, "    Public client: %v\n", c.IsPublicClient())
	}
}

func newOIDCDeleteCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider-name>",
		Short: "Delete an OIDC provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			err = database.NewOIDCConfigRepository(s.db).Delete(cmd.Context(), args[0])
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("provider %s is not configured", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted OIDC configuration for provider: %s\n", args[0])
			return nil
		},
	}
}

func newOIDCTestCmd(open opener) *cobra.Command {
	var code, verifier string

	cmd := &cobra.Command{
		Use:   "test <provider-name>",
		Short: "Check that a provider's endpoints and signing keys are reachable",
		Long: "Resolve the provider's endpoints, fetch its signing keys and print a PKCE login URL.\n" +
			"After logging in, pass the returned --code with the printed --verifier to exchange it\n" +
			"and verify the ID token the way the API does.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (code == "") != (verifier == "") {
				return errors.New("--code and --verifier must be given together")
			}

			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			provider := oidc.NewProvider(database.NewOIDCConfigRepository(s.db))
			config, err := provider.GetConfig(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Testing OIDC configuration for provider: %s\n", config.Provider)
			fmt.Fprintf(out, "Issuer: %s\n", config.Issuer)

			endpoints := provider.Endpoints(ctx, config)
			fmt.Fprintf(out, "Authorization endpoint: %s\n", endpoints.Authorization)
			fmt.Fprintf(out, "Token endpoint: %s\n", endpoints.Token)
			fmt.Fprintf(out, "JWKS endpoint: %s\n", endpoints.JWKS)

			jwks := oidc.NewJWKSManager(oidc.DefaultJWKSTTL)
			keys, err := jwks.GetJWKS(ctx, endpoints.JWKS)
			if err != nil {
				return err
			}
			if keys.Len() == 0 {
				return fmt.Errorf("JWKS endpoint %s published no keys", endpoints.JWKS)
			}
			fmt.Fprintf(out, "✓ JWKS endpoint published %d keys\n", keys.Len())

			client := oidc.NewClient(config, endpoints)
			if code == "" {
				login := client.Login(uuid.NewString())
				fmt.Fprintf(out, "\nLogin URL: %s\n", login.URL)
				fmt.Fprintf(out, "Verifier: %s\n", login.Verifier)
				fmt.Fprintln(out, "\n✓ OIDC configuration test passed")
				return nil
			}

			idToken, err := client.Exchange(ctx, code, verifier)
			if err != nil {
				return err
			}
			claims, err := oidc.NewVerifier(jwks, config.Issuer).Verify(ctx, idToken, endpoints.JWKS)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ ID token verified for subject %s (email %s, verified %v)\n", claims.Sub, claims.Email, claims.EmailVerified)
			fmt.Fprintf(out, "Bearer token:\n%s\n", idToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code returned to the redirect URI")
	cmd.Flags().StringVar(&verifier, "verifier", "", "PKCE verifier printed by a previous run")

	return cmd
}
