package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/scrape/internal/auth"
	"github.com/law-makers/scrape/internal/ui"
)

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved authentication sessions",
	Long: `List, view, and delete saved authentication sessions.

Sessions are stored securely in your OS keyring and contain cookies
and authentication data for accessing protected content.`,
	Example: `  # List all saved sessions
  $ scrape sessions list

  # View details of a specific session
  $ scrape sessions view github-session

  # Delete a session
  $ scrape sessions delete old-session`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved sessions",
	RunE:  runSessionsList,
}

var sessionsViewCmd = &cobra.Command{
	Use:   "view <session-name>",
	Short: "View details of a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsView,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-name>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var deleteYes bool

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsViewCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	sessionsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := auth.NewStore()
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintf(w, "No saved sessions in %s.\n", store.Location())
		fmt.Fprintln(w, "Create one with 'scrape sessions login' or 'scrape sessions import'.")
		return nil
	}

	fmt.Fprintf(w, "%s (%d, %s)\n", ui.Bold("Sessions"), len(names), store.Location())
	now := time.Now()
	for _, name := range names {
		data, err := store.Load(name)
		if err != nil && !errors.Is(err, auth.ErrSessionExpired) {
			fmt.Fprintf(w, "  %-20s %s\n", name, ui.Error("unreadable: "+err.Error()))
			continue
		}
		fmt.Fprintf(w, "  %-20s %-12s %2d cookies  %s\n",
			name, sessionStatus(data, now), len(data.Cookies), data.URL)
	}
	return nil
}

func runSessionsView(cmd *cobra.Command, args []string) error {
	name := args[0]

	store, err := auth.NewStore()
	if err != nil {
		return err
	}
	data, err := store.Load(name)
	if err != nil && !errors.Is(err, auth.ErrSessionExpired) {
		return fmt.Errorf("failed to load session '%s': %w", name, err)
	}

	printSession(cmd.OutOrStdout(), data, time.Now())
	return nil
}

// sessionStatus summarizes a session's expiry in one word or two.
func sessionStatus(data *auth.SessionData, now time.Time) string {
	switch {
	case data.Expired(now):
		return ui.Error("expired")
	case data.ExpiresAt.IsZero():
		return "no expiry"
	default:
		return ui.Success("valid " + data.ExpiresAt.Sub(now).Round(time.Hour).String())
	}
}

// printSession writes a session's details. Cookie values are never shown.
func printSession(w io.Writer, data *auth.SessionData, now time.Time) {
	fmt.Fprintf(w, "%s %s\n", ui.Bold("Session"), data.Name)
	fmt.Fprintf(w, "  URL:      %s\n", data.URL)
	fmt.Fprintf(w, "  Created:  %s\n", data.CreatedAt.Format(time.RFC1123))
	fmt.Fprintf(w, "  Status:   %s\n", sessionStatus(data, now))
	if !data.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "  Expires:  %s\n", data.ExpiresAt.Format(time.RFC1123))
	}
	if first := auth.EarliestExpiry(data.Cookies); !first.IsZero() && !first.Equal(data.ExpiresAt) {
		fmt.Fprintf(w, "  First cookie expiry: %s\n", first.Format(time.RFC1123))
	}

	fmt.Fprintf(w, "  Cookies (%d):\n", len(data.Cookies))
	for _, c := range data.HTTPCookies() {
		var flags []string
		if c.HttpOnly {
			flags = append(flags, "httponly")
		}
		if c.Secure {
			flags = append(flags, "secure")
		}
		if c.Expires.IsZero() {
			flags = append(flags, "session")
		} else if c.Expires.Before(now) {
			flags = append(flags, "expired")
		}
		fmt.Fprintf(w, "    %s  %s%s  %s\n", c.Name, c.Domain, c.Path, strings.Join(flags, ","))
	}

	if len(data.Headers) > 0 {
		keys := slices.Sorted(maps.Keys(data.Headers))
		fmt.Fprintf(w, "  Headers (%d):\n", len(keys))
		for _, k := range keys {
			fmt.Fprintf(w, "    %s: %s\n", k, data.Headers[k])
		}
	}
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	w := cmd.OutOrStdout()

	store, err := auth.NewStore()
	if err != nil {
		return err
	}
	if _, err := store.Load(name); err != nil && !errors.Is(err, auth.ErrSessionExpired) {
		return fmt.Errorf("failed to load session '%s': %w", name, err)
	}

	if !deleteYes {
		fmt.Fprintf(w, "Delete session '%s' from %s? [y/N]: ", name, store.Location())
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	if err := store.Delete(name); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Fprintf(w, "%s Session '%s' deleted.\n", ui.Success("✓"), name)
	return nil
}
