package cli

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/scrape/internal/auth"
	"github.com/law-makers/scrape/internal/utils/headers"
)

var (
	loginURL            string
	waitSelector        string
	loginTimeout        time.Duration
	loginHeaders        []string
	remoteDebuggingPort int
)

var sessionsLoginCmd = &cobra.Command{
	Use:   "login <session-name>",
	Short: "Log in with a visible browser and save the session",
	Long: `Opens a visible Chrome window on --url. Log in manually; once the --wait
selector appears (or you press Enter) the cookies are captured and saved.`,
	Example: `  # Wait for the account menu to appear
  scrape sessions login shop --url=https://shop.example.com/login --wait="#account"

  # In a dev container, inspect the browser through a forwarded port
  scrape sessions login shop --url=https://shop.example.com/login --remote-debug=9222`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsLogin,
}

func init() {
	sessionsCmd.AddCommand(sessionsLoginCmd)

	sessionsLoginCmd.Flags().StringVar(&loginURL, "url", "", "Login page URL (required)")
	sessionsLoginCmd.Flags().StringVarP(&waitSelector, "wait", "w", "", "CSS selector that appears once logged in")
	sessionsLoginCmd.Flags().DurationVar(&loginTimeout, "login-timeout", 5*time.Minute, "Timeout for the login process")
	sessionsLoginCmd.Flags().StringArrayVarP(&loginHeaders, "header", "H", nil, "Header to store with the session (repeatable)")
	sessionsLoginCmd.Flags().IntVar(&remoteDebuggingPort, "remote-debug", 0, "Enable Chrome remote debugging on this port (e.g., 9222)")
	_ = sessionsLoginCmd.MarkFlagRequired("url")
}

func runSessionsLogin(cmd *cobra.Command, args []string) error {
	var chromePath string
	if a := GetAppFromCmd(cmd); a != nil {
		chromePath = a.Config.ChromePath
	}

	session, err := auth.InteractiveLogin(cmd.Context(), auth.LoginOptions{
		SessionName:         args[0],
		URL:                 loginURL,
		WaitSelector:        waitSelector,
		Timeout:             loginTimeout,
		Headers:             headers.ParseHeaders(loginHeaders),
		ChromePath:          chromePath,
		RemoteDebuggingPort: remoteDebuggingPort,
		Confirm: func() error {
			fmt.Println("\n   Press Enter once you have completed login...")
			_, err := bufio.NewReader(os.Stdin).ReadString('\n')
			return err
		},
	})
	if err != nil {
		return err
	}
	return saveSession(session)
}
