package commands

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/middleware"
	"github.com/benvon/practice-queue/internal/models"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
)

func newCorsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "Show or update the allowed origins. Running servers pick up changes within a minute.",
	}
	cmd.AddCommand(newCorsGetCmd(open))
	cmd.AddCommand(newCorsSetCmd(open))
	return cmd
}

func newCorsGetCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			out := cmd.OutOrStdout()

			c, err := database.NewCorsConfigRepository(s.db).Get(cmd.Context())
			if errors.Is(err, database.ErrNotFound) {
				fmt.Fprintf(out, "No CORS configuration stored; servers allow FRONTEND_URL (%s).\n", s.cfg.FrontendURL)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "CORS configuration:")
			fmt.Fprintf(out, "  Allowed origins: %s\n", strings.Join(database.AllowedOriginsSlice(c.AllowedOrigins), ", "))
			fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
			fmt.Fprintf(out, "  Max-Age: %d\n", c.MaxAge)
			return nil
		},
	}
}

// normalizeOrigins checks a comma-separated origin list and returns it in stored form
func normalizeOrigins(raw string) (string, error) {
	origins := database.AllowedOriginsSlice(raw)
	if len(origins) == 0 {
		return "", errors.New("--origins is required (comma-separated list)")
	}
	for _, origin := range origins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") || (u.Path != "" && u.Path != "/") {
			return "", fmt.Errorf("invalid origin %q: expected scheme://host[:port]", origin)
		}
	}
	return strings.Join(origins, ","), nil
}

func newCorsSetCmd(open opener) *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, err := normalizeOrigins(origins)
			if err != nil {
				return err
			}
			if maxAge < 0 {
				return errors.New("--max-age cannot be negative")
			}

			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			c := &models.CorsConfig{
				AllowedOrigins:   normalized,
				AllowCredentials: allowCreds,
				MaxAge:           maxAge,
			}
			if err := database.NewCorsConfigRepository(s.db).Set(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "CORS configuration updated.")
			return nil
		},
	}

	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", 86400, "Access-Control-Max-Age (seconds)")

	return cmd
}

func newRatelimitCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage the API rate limit",
		Long:  "Show or update the per-client rate (e.g. 5-S, 100-M, 1000-H).",
	}
	cmd.AddCommand(newRatelimitGetCmd(open))
	cmd.AddCommand(newRatelimitSetCmd(open))
	return cmd
}

func newRatelimitGetCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the rate limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			c, err := database.NewRatelimitConfigRepository(s.db).Get(cmd.Context())
			if errors.Is(err, database.ErrNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "No rate limit stored; servers use %s.\n", middleware.DefaultRatelimitRate)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rate: %s\n", c.Rate)
			return nil
		},
	}
}

// validateRate accepts the limiter's "<limit>-<period>" format
func validateRate(rate string) (string, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return "", errors.New("--rate is required (e.g. 5-S, 100-M)")
	}
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return "", fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	return rate, nil
}

func newRatelimitSetCmd(open opener) *cobra.Command {
	var rate string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the rate limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, err := validateRate(rate)
			if err != nil {
				return err
			}

			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := database.NewRatelimitConfigRepository(s.db).Set(cmd.Context(), &models.RatelimitConfig{Rate: normalized}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Rate limit updated.")
			return nil
		},
	}

	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")

	return cmd
}
