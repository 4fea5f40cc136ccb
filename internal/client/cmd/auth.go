package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bixapp/bix/internal/auth"
	"github.com/bixapp/bix/internal/session"
)

func newSessionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show who is signed in on this device",
		Args:  cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			ctx, cancel := e.context(cmd)
			defer cancel()

			resolver, id, err := e.resolve(ctx)
			if err != nil {
				return err
			}
			defer resolver.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kind:    %s\n", id.Kind)
			if id.ID != "" {
				fmt.Fprintf(out, "id:      %s\n", id.ID)
			}
			if id.DisplayName != "" {
				fmt.Fprintf(out, "name:    %s\n", id.DisplayName)
			}
			if id.Email != "" {
				fmt.Fprintf(out, "email:   %s\n", id.Email)
			}
			if id.AvatarURL != "" {
				fmt.Fprintf(out, "avatar:  %s\n", id.AvatarURL)
			}
			return nil
		}),
	}
}

func newLoginCmd(e *env) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			return e.signIn(cmd, email, func(email, password string) (session.AuthUser, error) {
				ctx, cancel := e.context(cmd)
				defer cancel()
				return e.auth.SignIn(ctx, email, password)
			})
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted when empty)")
	return cmd
}

func newSignupCmd(e *env) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			return e.signIn(cmd, email, func(email, password string) (session.AuthUser, error) {
				ctx, cancel := e.context(cmd)
				defer cancel()
				return e.auth.SignUp(ctx, email, password, name)
			})
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted when empty)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

// signIn prompts for missing credentials, runs authenticate and then drops any
// persisted guest so the account is what the next resolution adopts.
func (e *env) signIn(cmd *cobra.Command, email string, authenticate func(email, password string) (session.AuthUser, error)) error {
	var err error
	if email == "" {
		if email, err = e.prompt(cmd, "Email: "); err != nil {
			return err
		}
	}
	password, err := e.promptPassword(cmd, "Password: ")
	if err != nil {
		return err
	}

	user, err := authenticate(email, password)
	if err != nil {
		e.logger.Warn("authentication failed", "error", err)
		return errors.New(auth.Classify(err).Message())
	}

	if err := e.storage.Remove(session.GuestKey); err != nil {
		e.logger.Warn("remove guest record", "error", err)
	}
	e.logger.Info("signed in", "user_id", user.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", describe(session.Identity{
		Kind:        session.KindAuthenticated,
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}))
	return nil
}

func newGuestCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "guest",
		Short: "Continue as a guest on this device",
		Args:  cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			resolver := session.NewResolver(e.storage, e.auth, session.WithLogger(e.logger))
			defer resolver.Close()

			id, err := resolver.ContinueAsGuest()
			if err != nil {
				return fmt.Errorf("save guest session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Browsing as %s\n", describe(id))
			return nil
		}),
	}
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of the current session",
		Args:  cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			ctx, cancel := e.context(cmd)
			defer cancel()

			resolver, id, err := e.resolve(ctx)
			if err != nil {
				return err
			}
			defer resolver.Close()

			if !id.SignedIn() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if err := resolver.SignOut(ctx); err != nil {
				var authErr *auth.Error
				if errors.As(err, &authErr) {
					return errors.New(authErr.Category.Message())
				}
				return fmt.Errorf("sign out: %w", err)
			}

			next, err := waitSignedIn(ctx, resolver)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Signed out of %s\n", describe(id))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out of %s, now browsing as %s\n", describe(id), describe(next))
			return nil
		}),
	}
}
