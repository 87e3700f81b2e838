package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pickoala/pickoala-cli/internal/api"
)

func newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show the server's public site settings",
		Long: `Show the server's public site settings merged over built-in defaults.

The upload limit shown applies to the current session's tier (guest, user,
or VIP).`,
		Args: cobra.NoArgs,
		RunE: runSettings,
	}
}

func runSettings(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cc, err := newCLIContext(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	settings := cc.Client.SiteSettings(ctx)

	if flagJSON {
		return printJSON(os.Stdout, settings)
	}

	printSettings(os.Stdout, settings, cc.Store.IsLoggedIn(), cc.Store.IsVIP())

	return nil
}

func printSettings(w io.Writer, s api.SiteSettings, loggedIn, vip bool) {
	tier := "guest"

	switch {
	case vip:
		tier = "vip"
	case loggedIn:
		tier = "user"
	}

	fmt.Fprintf(w, "Site:         %s\n", s.String("site_name"))
	fmt.Fprintf(w, "Timezone:     %s\n", s.Timezone())
	fmt.Fprintf(w, "Upload limit: %s (%s)\n", formatSize(s.MaxUploadSize(loggedIn, vip)), tier)
	fmt.Fprintf(w, "Registration: %s\n", enabledLabel(s.Bool("enable_registration")))
	fmt.Fprintf(w, "Guest upload: %s\n", enabledLabel(s.Bool("enable_guest_upload")))
	fmt.Fprintln(w)

	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, settingValue(s[k])})
	}

	printTable(w, []string{"KEY", "VALUE"}, rows)
}

func enabledLabel(b bool) string {
	if b {
		return "enabled"
	}

	return "disabled"
}

// settingValue renders a decoded JSON value compactly. Whole numbers print
// without a decimal point.
func settingValue(v any) string {
	switch val := v.(type) {
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}

		return fmt.Sprintf("%g", val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = settingValue(item)
		}

		return strings.Join(parts, ",")
	case nil:
		return "-"
	default:
		return fmt.Sprint(val)
	}
}
