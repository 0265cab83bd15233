package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/shortcut"
	"github.com/muurk/mdnshelper/internal/ui"
	"github.com/muurk/mdnshelper/internal/urls"
)

var (
	shortcutLabel  string
	shortcutDomain string
	printOnly      bool
)

func init() {
	shortcutCmd.AddCommand(shortcutPinCmd)
	shortcutCmd.AddCommand(shortcutListCmd)
	shortcutCmd.AddCommand(shortcutLaunchCmd)
	shortcutCmd.AddCommand(shortcutRemoveCmd)

	shortcutPinCmd.Flags().StringVar(&shortcutLabel, "label", "", "Display name (default: the service name)")
	shortcutPinCmd.Flags().StringVar(&shortcutDomain, "domain", "", "mDNS domain (default: local.)")
	shortcutLaunchCmd.Flags().BoolVar(&printOnly, "print", false, "Print the URL instead of opening it")

	rootCmd.AddCommand(shortcutCmd)
}

var shortcutCmd = &cobra.Command{
	Use:   "shortcut",
	Short: "Manage pinned shortcuts",
	Long: `Shortcuts pin a service by type and name so it can be opened without a
scan. Launching a shortcut resolves the service directly and opens its URL
in the preferred browser.`,
}

// shortcutID accepts either "<id>" or "<type> <name>"
func shortcutID(args []string) string {
	if len(args) == 2 {
		return config.ShortcutID(args[0], args[1])
	}
	return args[0]
}

var shortcutPinCmd = &cobra.Command{
	Use:     "pin <type> <name>",
	Short:   "Pin a service as a shortcut",
	Example: `  mdnshelper shortcut pin _http._tcp "Living Room NAS" --label nas`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		a, err := newApp(0, "")
		if err != nil {
			return err
		}
		defer a.Close()

		sc, err := a.Launcher.Pin(args[0], args[1], shortcutDomain, shortcutLabel)
		if err != nil {
			return fmt.Errorf("failed to pin shortcut: %w", err)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Shortcut pinned",
			ui.Detail{Key: "ID", Value: sc.ID()},
			ui.Detail{Key: "Label", Value: sc.DisplayName()},
			ui.Detail{Key: "Domain", Value: sc.Domain})
		return nil
	},
}

var shortcutListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pinned shortcuts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		store, err := loadStore()
		if err != nil {
			return err
		}
		p := ui.NewPrinter(cmd.OutOrStdout())
		p.PrintHeader("Shortcuts", "mdnshelper shortcut list")
		p.Println(ui.RenderShortcuts(store.Shortcuts()))
		return nil
	},
}

var shortcutLaunchCmd = &cobra.Command{
	Use:   "launch <id> | <type> <name>",
	Short: "Resolve a shortcut and open it",
	Example: `  # Open by id
  mdnshelper shortcut launch "_http._tcp/Living Room NAS"

  # Open by type and name, printing the URL only
  mdnshelper shortcut launch _http._tcp "Living Room NAS" --print`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runShortcutLaunch,
}

func runShortcutLaunch(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	a, err := newApp(0, "")
	if err != nil {
		return err
	}
	defer a.Close()

	id := shortcutID(args)
	prefs := a.Store.Preferences()
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Shortcut Launch", "mdnshelper shortcut launch",
		ui.Param{Key: "Shortcut", Value: id},
		ui.Param{Key: "Timeout", Value: prefs.ShortcutDuration().String()})

	ctx, stop := signalContext(cmd)
	defer stop()

	res, err := a.Launcher.Launch(ctx, id)
	if err != nil {
		tips := ui.DiscoveryTroubleshooting
		if errors.Is(err, shortcut.ErrInvalidShortcut) {
			tips = []string{"List shortcuts: mdnshelper shortcut list"}
		}
		p.PrintError("Shortcut launch failed", err, tips)
		return err
	}

	p.PrintSuccess("Shortcut resolved",
		ui.Detail{Key: "Service", Value: res.Service.ServiceName},
		ui.Detail{Key: "Address", Value: res.Service.Address()},
		ui.Detail{Key: "URL", Value: res.URL})

	if printOnly {
		return nil
	}
	opener := urls.NewOpener(prefs.PreferredBrowser, func(u string) { p.Println(u) })
	if err := opener.Open(ctx, res.URL); err != nil {
		return fmt.Errorf("failed to open %s: %w", res.URL, err)
	}
	return nil
}

var shortcutRemoveCmd = &cobra.Command{
	Use:   "remove <id> | <type> <name>",
	Short: "Remove a pinned shortcut",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		a, err := newApp(0, "")
		if err != nil {
			return err
		}
		defer a.Close()

		id := shortcutID(args)
		if err := a.Launcher.Unpin(id); err != nil {
			return fmt.Errorf("failed to remove shortcut: %w", err)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Shortcut removed",
			ui.Detail{Key: "ID", Value: id})
		return nil
	},
}
