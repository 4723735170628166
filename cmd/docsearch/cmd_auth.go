package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	docsearch "github.com/haowjy/docsearch-go"
	"github.com/haowjy/docsearch-go/session"
)

var (
	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Exchange a Google identity for a backend session",
		Long: `Signs in to the backend. Pass an existing Google id_token with --id-token,
an authorization code with --code, or use --google to run the browser
sign-in flow with the configured OAuth client.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
	loginIDToken string
	loginCode    string
	loginGoogle  bool

	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user, verifying the stored session",
		Long: `Shows the signed-in user. With --follow, keeps running and reports the
session again whenever another process signs in or out.`,
		Args: cobra.NoArgs,
		RunE: runWhoami,
	}
	whoamiFollow bool

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			current.manager.ClearSession()
			fmt.Fprintln(cmd.OutOrStdout(), success("✓"), "signed out")
			return nil
		},
	}
)

func init() {
	loginCmd.Flags().StringVar(&loginIDToken, "id-token", "", "Google id_token to exchange")
	loginCmd.Flags().StringVar(&loginCode, "code", "", "authorization code to exchange")
	loginCmd.Flags().BoolVar(&loginGoogle, "google", false, "sign in with Google in the browser")
	loginCmd.MarkFlagsMutuallyExclusive("id-token", "code", "google")
	loginCmd.MarkFlagsOneRequired("id-token", "code", "google")

	whoamiCmd.Flags().BoolVarP(&whoamiFollow, "follow", "f", false, "report session changes until interrupted")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a := current
	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()

	req := docsearch.LoginRequest{IDToken: loginIDToken, Code: loginCode}
	if loginGoogle {
		idToken, err := googleSignIn(cmd)
		if err != nil {
			return err
		}
		req = docsearch.LoginRequest{IDToken: idToken}
	}

	user, err := a.manager.ExchangeForToken(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s signed in as %s\n", success("✓"), bold(user.DisplayName()))
	return nil
}

// googleSignIn runs the OAuth code flow in the user's browser and returns
// the resulting id_token.
func googleSignIn(cmd *cobra.Command) (string, error) {
	g := current.cfg.Google
	if g.ClientID == "" || g.ClientSecret == "" {
		return "", errors.New("google sign-in needs GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}
	conf := session.GoogleOAuthConfig(g.ClientID, g.ClientSecret, g.RedirectURL)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Open this URL to sign in:\n\n  %s\n\n", cyan(conf.AuthCodeURL(uuid.NewString())))
	fmt.Fprint(out, "Paste the authorization code: ")

	code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && code == "" {
		return "", fmt.Errorf("failed to read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errors.New("no authorization code entered")
	}

	ctx, cancel := current.requestContext(cmd.Context())
	defer cancel()
	federated, err := session.ExchangeCode(ctx, conf, code)
	if err != nil {
		return "", err
	}
	idToken, err := federated.IDToken(ctx)
	if err != nil {
		return "", err
	}
	if idToken == "" {
		return "", errors.New("google did not return an id_token")
	}
	return idToken, nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	if err := printWhoami(cmd); err != nil {
		return err
	}
	if !whoamiFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changed := make(chan struct{}, 1)
	err := current.store.Watch(ctx, func(string) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			fmt.Fprintln(cmd.OutOrStdout(), faint("session changed"))
			if err := printWhoami(cmd); err != nil {
				printError(err)
			}
		}
	}
}

func printWhoami(cmd *cobra.Command) error {
	a := current
	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()

	res, err := a.manager.Resolve(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !res.Authenticated() {
		fmt.Fprintln(out, yellow("not signed in"))
		return nil
	}

	fmt.Fprintf(out, "%s %s\n", bold(res.User.DisplayName()), faint("<"+res.User.Email+">"))
	if exp, ok := a.manager.TokenExpiry(); ok {
		fmt.Fprintf(out, "%s %s\n", faint("session expires"), exp.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
