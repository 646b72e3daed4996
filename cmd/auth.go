package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/streetmix/sx/internal/config"
	"github.com/streetmix/sx/internal/cookiejar"
	"github.com/streetmix/sx/internal/mode"
	"github.com/streetmix/sx/internal/output"
)

// signInProviders are offered by the SIGN_IN dialog, in display order.
var signInProviders = []struct {
	label string
	path  string
}{
	{"Google", "google"},
	{"GitHub", "github"},
	{"Twitter", "twitter"},
	{"Email", "email"},
}

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Sign in to and out of the street-design service",
	GroupID: "account",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the browser",
	Long: `Opens the sign-in flow and waits for the service to redirect back to a
loopback listener, which stores the one-shot sign-in cookies. The next
bootstrap consumes them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(appOptions{mode: mode.SignOut})
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if _, err := a.session.LoadSignIn(ctx); err != nil {
			slog.Debug("auth: login bootstrap", "err", err)
		}
		if a.session.IsSignedIn() {
			a.Close()
			output.Info("Already signed in as %s.", a.session.GetSignInData().UserID)
			return nil
		}

		signInURL := a.session.DoSignIn()
		jar := a.jar
		if signInURL == "" {
			// AUTHENTICATION_V2: the sign-in dialog was requested.
			signInURL, err = runSignInDialog()
			if err != nil {
				a.Close()
				output.Error("%v", err)
				return err
			}
		}
		a.Close()

		if err := waitForHandoff(ctx, jar, signInURL); err != nil {
			output.Error("%v", err)
			return err
		}

		b, err := newApp(appOptions{mode: mode.JustSignedIn})
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer b.Close()
		if _, err := b.session.LoadSignIn(ctx); err != nil {
			output.Warning("%v", err)
		}
		if !b.session.IsSignedIn() {
			if fatal, ok := b.store.FatalError(); ok {
				output.Error("%s", output.FormatAppError(fatal))
				return fatal
			}
			return errors.New("sign-in was not accepted")
		}
		output.Success("Signed in as %s", b.session.GetSignInData().UserID)
		return printReport(b, false)
	},
}

// runSignInDialog shows the SIGN_IN provider picker and returns the chosen
// provider's sign-in URL.
func runSignInDialog() (string, error) {
	if !output.IsInteractive() {
		return "", errors.New("the sign-in dialog needs an interactive terminal")
	}

	options := make([]huh.Option[string], len(signInProviders))
	for i, p := range signInProviders {
		options[i] = huh.NewOption(p.label, p.path)
	}
	var provider string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Sign in with").
			Options(options...).
			Value(&provider),
	))
	form.WithTheme(huh.ThemeDracula())
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("sign-in dialog: %w", err)
	}
	return providerURL(config.GetAPIURL(), provider), nil
}

// providerURL returns the sign-in entry for provider, a sibling of the API
// root: http://host/api/ -> http://host/services/auth/<provider>.
func providerURL(apiURL, provider string) string {
	return strings.TrimSuffix(apiURL, "api/") + "services/auth/" + provider
}

// waitForHandoff serves the loopback redirect target until the sign-in
// cookies arrive, ctx is done, or the handoff window expires.
func waitForHandoff(ctx context.Context, jar *cookiejar.Jar, signInURL string) error {
	ln, err := net.Listen("tcp", config.GetCallbackAddr())
	if err != nil {
		return fmt.Errorf("listen for sign-in redirect: %w", err)
	}

	handoff := cookiejar.NewHandoff(jar)
	mux := http.NewServeMux()
	mux.Handle("/callback", handoff)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("auth: callback server", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	callback := "http://" + ln.Addr().String() + "/callback"
	fmt.Printf("Open this URL to sign in:\n\n  %s\n\nWaiting for the redirect to %s ...\n", withRedirect(signInURL, callback), callback)

	select {
	case <-handoff.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cookiejar.HandoffTTL):
		return errors.New("timed out waiting for sign-in")
	}
}

func withRedirect(signInURL, callback string) string {
	u, err := url.Parse(signInURL)
	if err != nil {
		return signInURL
	}
	q := u.Query()
	q.Set("redirect_uri", callback)
	u.RawQuery = q.Encode()
	return u.String()
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and revoke the login token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{mode: mode.SignOut})
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()

		ctx := context.Background()
		if _, err := a.session.LoadSignIn(ctx); err != nil {
			slog.Debug("auth: logout bootstrap", "err", err)
		}
		if !a.session.IsSignedIn() {
			output.Info("Not signed in.")
			return nil
		}

		a.session.OnSignOutClick(ctx)
		notices := a.store.Notices()
		if len(notices) == 0 {
			output.Warning("signed out locally; the server did not confirm")
			return nil
		}
		for _, n := range notices {
			output.Success("%s", n)
		}
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{mode: mode.SignOut})
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()

		if _, err := a.session.LoadSignIn(context.Background()); err != nil {
			output.Warning("%v", err)
		}

		data := a.session.GetSignInData()
		if !a.session.IsSignedIn() {
			fmt.Println(output.FormatSignIn(false, "", ""))
		} else {
			displayName := ""
			if data.Details != nil {
				displayName = data.Details.DisplayName
			}
			fmt.Println(output.FormatSignIn(true, data.UserID, displayName))
			if data.Details != nil && len(data.Details.Roles) > 0 {
				fmt.Printf("Roles:  %s\n", strings.Join(data.Details.Roles, ", "))
			}
			token := a.session.GetAuthToken()
			if len(token) > 12 {
				token = token[:12] + "..."
			}
			fmt.Printf("Token:  %s\n", token)
		}
		fmt.Printf("Server: %s\n", config.GetAPIURL())

		for _, e := range a.store.Errors() {
			fmt.Println(output.FormatAppError(e))
		}
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
