package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	signup "github.com/goliatone/go-signup"
	"github.com/goliatone/go-signup/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	apiURL     string
	storage    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "signup",
		Short:        "Terminal client for the signup demo",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				return app.router.Navigate(ctx, PathHome)
			})
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the config file")
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api", "", "account service base URL")
	cmd.PersistentFlags().StringVar(&opts.storage, "storage", "", "device storage file")

	cmd.AddCommand(
		newOpenCmd(opts),
		newSignUpCmd(opts),
		newLogOutCmd(opts),
		newWhoAmICmd(opts),
		newCheckEmailCmd(opts),
		newScenariosCmd(opts),
		newThemeCmd(opts),
	)

	return cmd
}

func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, app *App) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.apiURL != "" {
		cfg.Client.BaseURL = opts.apiURL
	}
	if opts.storage != "" {
		cfg.Client.StoragePath = opts.storage
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := NewApp(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}

func newOpenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Navigate to a page, running its guards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				return app.router.Navigate(ctx, args[0])
			})
		},
	}
}

func newSignUpCmd(opts *rootOptions) *cobra.Command {
	var (
		email         string
		password      string
		announcements bool
	)

	cmd := &cobra.Command{
		Use:   "sign-up",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				app.input.email = email
				app.input.password = password
				if cmd.Flags().Changed("announcements") {
					app.input.announcements = &announcements
				}
				return app.router.Navigate(ctx, PathSignUp)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	cmd.Flags().BoolVar(&announcements, "announcements", false, "subscribe to announcements")

	return cmd
}

func newLogOutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log-out",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if err := app.sessions.LogOut(ctx); err != nil {
					return err
				}
				return app.router.Navigate(ctx, PathHome)
			})
		},
	}
}

func newWhoAmICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				session, err := app.sessions.Session(ctx)
				if err != nil {
					return err
				}
				if !session.IsLoggedIn() {
					fmt.Fprintln(app.out, session.State)
					return nil
				}
				fmt.Fprintf(app.out, "%s %s (id %d, since %s)\n",
					session.State, session.User.Email, session.User.ID, session.User.CreatedAt.Format("2006-01-02"))
				return nil
			})
		},
	}
}

func newCheckEmailCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-email <email>",
		Short: "Ask the account service whether an email is free",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if app.validator.CheckAvailable(ctx, args[0], signup.NewFlag()) {
					fmt.Fprintf(app.out, "%s is available\n", args[0])
					return nil
				}
				fmt.Fprintf(app.out, "%s is already taken\n", args[0])
				return nil
			})
		},
	}
}

func newScenariosCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "Print the testing scenario flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				return app.router.Navigate(ctx, PathScenarios)
			})
		},
	}
}

func newThemeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [auto|dark|light]",
		Short:     "Print or change the theme preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(signup.ThemeAuto), string(signup.ThemeDark), string(signup.ThemeLight)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if len(args) == 1 {
					theme, err := signup.ParseTheme(args[0])
					if err != nil {
						return err
					}
					if err := app.settings.SetTheme(ctx, theme); err != nil {
						return err
					}
				}
				fmt.Fprintf(app.out, "%s (%s)\n", app.settings.ThemePreference(ctx), app.settings.EffectiveTheme(ctx))
				return nil
			})
		},
	}
}
