package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/scrape/internal/auth"
	urlutil "github.com/law-makers/scrape/internal/utils/url"
)

var (
	importURL    string
	importFormat string
)

// sessionsImportCmd represents the sessions import command
var sessionsImportCmd = &cobra.Command{
	Use:   "import <session-name>",
	Short: "Import cookies from your browser to create a session",
	Long: `Import cookies from your browser's developer tools to create an authenticated session.

This is useful in headless environments (Codespaces, dev containers) where the
interactive login browser cannot be shown.`,
	Example: `  # Import cookies interactively
  scrape sessions import shop --url=https://shop.example.com

  # Import from Netscape/curl format file
  scrape sessions import shop --url=https://shop.example.com --format=netscape < cookies.txt

  # Import from JSON
  scrape sessions import shop --url=https://shop.example.com --format=json < cookies.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsImport,
}

func init() {
	sessionsCmd.AddCommand(sessionsImportCmd)

	sessionsImportCmd.Flags().StringVar(&importURL, "url", "", "Website URL for this session (required)")
	sessionsImportCmd.Flags().StringVar(&importFormat, "format", "interactive", "Import format: interactive, json, netscape")
	_ = sessionsImportCmd.MarkFlagRequired("url")
}

func runSessionsImport(cmd *cobra.Command, args []string) error {
	sessionName := args[0]
	if err := urlutil.ValidateURL(importURL); err != nil {
		return err
	}

	var cookies []auth.Cookie
	var err error
	switch importFormat {
	case "interactive":
		cookies, err = importInteractive(os.Stdin, os.Stdout, auth.CookieDomain(importURL))
	case "json":
		cookies, err = auth.ParseJSON(os.Stdin)
	case "netscape":
		cookies, err = auth.ParseNetscape(os.Stdin)
	default:
		return fmt.Errorf("unsupported format: %s (use: interactive, json, netscape)", importFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("no cookies imported")
	}

	session := &auth.SessionData{
		Name:      sessionName,
		URL:       importURL,
		Cookies:   cookies,
		CreatedAt: time.Now(),
		ExpiresAt: auth.EarliestExpiry(cookies),
	}
	return saveSession(session)
}

func saveSession(session *auth.SessionData) error {
	store, err := auth.NewStore()
	if err != nil {
		return err
	}
	if err := store.Save(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Printf("\n✅ Session '%s' saved\n", session.Name)
	fmt.Printf("   Cookies: %d\n", len(session.Cookies))
	if !session.ExpiresAt.IsZero() {
		fmt.Printf("   Expires: %s\n", session.ExpiresAt.Format(time.RFC1123))
	}
	fmt.Printf("\nUse with:\n  scrape run <plugin> --session=%s\n\n", session.Name)
	return nil
}

// importInteractive prompts for name/value pairs until an empty name.
func importInteractive(in io.Reader, out io.Writer, domain string) ([]auth.Cookie, error) {
	fmt.Fprintln(out, "📋 Open DevTools (F12) → Application → Cookies and copy each cookie's name and value.")

	var cookies []auth.Cookie
	scanner := bufio.NewScanner(in)
	prompt := func(label string) (string, bool) {
		fmt.Fprint(out, label)
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	for {
		name, ok := prompt("\nCookie Name (or press Enter to finish): ")
		if !ok || name == "" {
			break
		}
		value, ok := prompt("Cookie Value: ")
		if !ok {
			break
		}
		if value == "" {
			fmt.Fprintln(out, "⚠️  Skipping cookie with empty value")
			continue
		}
		cookieDomain, ok := prompt(fmt.Sprintf("Domain [%s]: ", domain))
		if !ok {
			break
		}
		if cookieDomain == "" {
			cookieDomain = domain
		}

		cookies = append(cookies, auth.Cookie{
			Name:     name,
			Value:    value,
			Domain:   cookieDomain,
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
		})
		fmt.Fprintf(out, "✅ Added: %s (domain: %s)\n", name, cookieDomain)
	}
	return cookies, scanner.Err()
}
