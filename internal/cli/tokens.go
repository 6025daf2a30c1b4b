package cli

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/IsraelRub/EveryTriv-sub000"
)

func (a *app) newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage stored access and refresh tokens",
	}

	var access, refresh string
	set := &cobra.Command{
		Use:   "set",
		Short: "Store tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if access == "" && refresh == "" {
				return errors.New("at least one of --access or --refresh is required")
			}
			ctx := cmd.Context()
			if access != "" {
				if err := a.store.Set(ctx, everytriv.AccessTokenKey, access); err != nil {
					return err
				}
			}
			if refresh != "" {
				if err := a.store.Set(ctx, everytriv.RefreshTokenKey, refresh); err != nil {
					return err
				}
			}
			cmd.Println("Tokens stored in", a.cfg.Auth.TokenFile)
			return nil
		},
	}
	set.Flags().StringVar(&access, "access", "", "Access token")
	set.Flags().StringVar(&refresh, "refresh", "", "Refresh token")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, key := range []string{everytriv.AccessTokenKey, everytriv.RefreshTokenKey} {
				if err := a.store.Delete(cmd.Context(), key); err != nil {
					return err
				}
			}
			cmd.Println("Tokens cleared")
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show stored tokens, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, key := range []string{everytriv.AccessTokenKey, everytriv.RefreshTokenKey} {
				v, err := a.store.GetString(cmd.Context(), key)
				switch {
				case errors.Is(err, everytriv.ErrTokenNotFound):
					cmd.Printf("%s: <none>\n", key)
				case err != nil:
					return err
				default:
					cmd.Printf("%s: %s\n", key, mask(v))
				}
			}
			return nil
		},
	}

	cmd.AddCommand(set, clearCmd, show)
	return cmd
}

// mask keeps the first and last four characters.
func mask(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration %q", s)
	}
	if d <= 0 {
		return 0, errors.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}
