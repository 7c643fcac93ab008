package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shikenmatrix/reporter/internal/permission"
)

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Inspect and request OS permissions",
}

var permissionsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check accessibility and media permissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Accessibility: %t\n", permission.Default.CheckAccessibility())
		fmt.Printf("Media:         %t (%s)\n",
			permission.Default.CheckMedia(), permission.Default.MediaVerdict())
		return nil
	},
}

var permissionsRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Request accessibility permission",
	Long: `Trigger the OS accessibility permission prompt if not already granted.
Blocks until the prompt flow completes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if permission.Default.RequestAccessibility() {
			fmt.Println("Accessibility permission granted")
			return nil
		}
		return fmt.Errorf("accessibility permission not granted")
	},
}

var permissionsResetCmd = &cobra.Command{
	Use:   "reset-media",
	Short: "Clear the cached media-blocked verdict",
	Long: `Clear the sticky blocked marker recorded when the media probe timed out.
Run this after re-authorizing the library in the system settings so the
next check probes again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		permission.Default.ResetMediaCheck()
		fmt.Println("Media permission check reset")
		return nil
	},
}

func init() {
	permissionsCmd.AddCommand(permissionsCheckCmd)
	permissionsCmd.AddCommand(permissionsRequestCmd)
	permissionsCmd.AddCommand(permissionsResetCmd)
	rootCmd.AddCommand(permissionsCmd)
}
