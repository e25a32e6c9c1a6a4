package cli

import (
	"fmt"
	"strings"

	"github.com/mrcode/glucose-share/internal/autostart"
	"github.com/spf13/cobra"
)

var autostartArgs string

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Start glucose-share when you log in",
}

var autostartEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Register glucose-share to start at login",
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := autostartEntry()
		if err != nil {
			return err
		}
		if err := entry.Enable(); err != nil {
			return fmt.Errorf("enabling autostart: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Autostart enabled: %s %s\n", entry.Executable, strings.Join(entry.Args, " "))
		return nil
	},
}

var autostartDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Remove the login entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := autostartEntry()
		if err != nil {
			return err
		}
		if err := entry.Disable(); err != nil {
			return fmt.Errorf("disabling autostart: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Autostart disabled")
		return nil
	},
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the login entry exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := autostartEntry()
		if err != nil {
			return err
		}
		enabled, err := entry.IsEnabled()
		if err != nil {
			return err
		}
		if enabled {
			fmt.Fprintln(cmd.OutOrStdout(), "enabled")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "disabled")
		}
		return nil
	},
}

func init() {
	autostartCmd.PersistentFlags().StringVar(&autostartArgs, "args", "serve", "Arguments passed to glucose-share at login")

	autostartCmd.AddCommand(autostartEnableCmd)
	autostartCmd.AddCommand(autostartDisableCmd)
	autostartCmd.AddCommand(autostartStatusCmd)
}

func autostartEntry() (*autostart.Entry, error) {
	args := strings.Fields(autostartArgs)
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return autostart.NewEntry(args...)
}
