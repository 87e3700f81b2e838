package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pickoala/pickoala-cli/internal/api"
	"github.com/pickoala/pickoala-cli/internal/session"
	"github.com/pickoala/pickoala-cli/internal/timefmt"
)

// Login and register flags.
var (
	flagUsername    string
	flagEmail       string
	flagOAuthCode   string
	flagOAuthState  string
	flagRedirectURL string
)

// stdinReader is shared by prompts so buffered input is not lost between
// successive reads from a pipe.
var stdinReader = bufio.NewReader(os.Stdin)

// readSecret reads a password. Tests replace it.
var readSecret = promptSecret

// readLine reads one line of input. Tests replace it.
var readLine = promptLine

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with username and password",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}

	cmd.Flags().StringVarP(&flagUsername, "username", "u", "", "username or email (prompted if omitted)")
	cmd.AddCommand(newLoginOAuthCmd())

	return cmd
}

func newLoginOAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth <provider>",
		Short: "Finish a third-party sign-in with the code from the provider redirect",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoginOAuth,
	}

	cmd.Flags().StringVar(&flagOAuthCode, "code", "", "authorization code from the provider redirect")
	cmd.Flags().StringVar(&flagOAuthState, "state", "", "state value from the provider redirect")
	cmd.Flags().StringVar(&flagRedirectURL, "redirect-url", "", "redirect URL registered with the provider")

	if err := cmd.MarkFlagRequired("code"); err != nil {
		panic(err)
	}

	return cmd
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE:  runRegister,
	}

	cmd.Flags().StringVarP(&flagUsername, "username", "u", "", "username (prompted if omitted)")
	cmd.Flags().StringVar(&flagEmail, "email", "", "email address (prompted if omitted)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved session",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the signed-in user",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cc, err := newCLIContext(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	username := flagUsername
	if username == "" {
		if username, err = readLine("Username: "); err != nil {
			return err
		}
	}

	password, err := readSecret("Password: ")
	if err != nil {
		return err
	}

	if _, err := cc.Store.Login(ctx, username, password); err != nil {
		return err
	}

	return reportLogin(cc)
}

func runLoginOAuth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cc, err := newCLIContext(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	if _, err := cc.Store.LoginWithOAuth(ctx, args[0], flagOAuthCode, flagOAuthState, flagRedirectURL); err != nil {
		return err
	}

	return reportLogin(cc)
}

// errLoginProfile is returned when the credentials were accepted but the
// profile fetch that follows failed, which clears the session again.
var errLoginProfile = errors.New("login succeeded but the profile could not be loaded; session cleared, try again")

func reportLogin(cc *CLIContext) error {
	u := cc.Store.User()
	if u == nil || !cc.Store.IsLoggedIn() {
		return errLoginProfile
	}

	cc.Logger.Info("login successful", "username", u.Username)
	cc.Statusf("Logged in as %s.\n", u.Username)

	return nil
}

func runRegister(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cc, err := newCLIContext(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	username, email := flagUsername, flagEmail

	if username == "" {
		if username, err = readLine("Username: "); err != nil {
			return err
		}
	}

	if email == "" {
		if email, err = readLine("Email: "); err != nil {
			return err
		}
	}

	password, err := readSecret("Password: ")
	if err != nil {
		return err
	}

	confirm, err := readSecret("Confirm password: ")
	if err != nil {
		return err
	}

	if password != confirm {
		return errors.New("passwords do not match")
	}

	u, err := cc.Store.Register(ctx, username, email, password)
	if err != nil {
		return err
	}

	cc.Statusf("Account %s created. Run 'pickoala login' to sign in.\n", u.Username)

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc, err := newCLIContext(cmd.Context())
	if err != nil {
		return err
	}
	defer cc.Close()

	cc.Store.Logout()
	cc.Statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
	VIP           bool   `json:"vip"`
	VIPExpireAt   string `json:"vip_expire_at,omitempty"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc, err := newCLIContext(cmd.Context())
	if err != nil {
		return err
	}
	defer cc.Close()

	if err := cc.requireLogin(); err != nil {
		return err
	}

	return printWhoami(os.Stdout, cc.Store)
}

func printWhoami(w io.Writer, store *session.Store) error {
	u := store.User()

	out := whoamiOutput{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		VIP:           store.IsVIP(),
	}

	if exp := u.VIPExpiry(); !exp.IsZero() {
		out.VIPExpireAt = exp.UTC().Format("2006-01-02T15:04:05Z")
	}

	if flagJSON {
		return printJSON(w, out)
	}

	fmt.Fprintf(w, "User:  %s (%s)\n", u.Username, u.Email)
	fmt.Fprintf(w, "ID:    %d\n", u.ID)
	fmt.Fprintf(w, "Role:  %s\n", u.Role)
	fmt.Fprintf(w, "VIP:   %s\n", vipLabel(u, out.VIP))

	return nil
}

func vipLabel(u *api.User, vip bool) string {
	switch {
	case u.Role == api.RoleAdmin:
		return "yes (admin)"
	case vip:
		return "until " + timefmt.FormatDateTime(u.VIPExpiry(), resolvedTimezone())
	default:
		return "no"
	}
}

// resolvedTimezone returns the configured display zone, "" for the default.
func resolvedTimezone() string {
	if resolvedCfg == nil {
		return ""
	}

	return resolvedCfg.Timezone
}

func promptSecret(prompt string) (string, error) {
	if !stdinIsTerminal() {
		return promptLine("")
	}

	fmt.Fprint(os.Stderr, prompt)

	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return string(b), nil
}

func promptLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(os.Stderr, prompt)
	}

	line, err := stdinReader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}
