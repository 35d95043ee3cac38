package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/law-makers/scrape/internal/ui"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List registered scraper plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetAppFromCmd(cmd)
		if a == nil {
			return fmt.Errorf("application not initialized")
		}
		names := a.Registry.Names()
		if len(names) == 0 {
			fmt.Println("No plugins registered.")
			return nil
		}
		for _, name := range names {
			fmt.Printf("  %s\n", ui.Bold(name))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}
