package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/ui"
)

var (
	bookmarkCheck bool
	assumeYes     bool
)

func init() {
	bookmarkCmd.AddCommand(bookmarkAddCmd)
	bookmarkCmd.AddCommand(bookmarkRemoveCmd)
	bookmarkCmd.AddCommand(bookmarkListCmd)
	bookmarkCmd.AddCommand(bookmarkClearCmd)

	bookmarkListCmd.Flags().BoolVar(&bookmarkCheck, "check", false, "Run a scan and mark bookmarks that are not available")
	bookmarkClearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(bookmarkCmd)
}

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark",
	Short: "Manage bookmarked services",
	Long: `Bookmarks mark services by type and name. Bookmarked services are
highlighted in scans and in the browser, and 'bookmark list --check' reports
the bookmarks that are currently not answering.`,
}

var bookmarkAddCmd = &cobra.Command{
	Use:     "add <type> <name>",
	Short:   "Bookmark a service",
	Example: `  mdnshelper bookmark add _http._tcp "Living Room NAS"`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		store, err := loadStore()
		if err != nil {
			return err
		}
		if err := store.Update(func(r *config.Registry) error {
			r.AddBookmark(args[0], args[1])
			return nil
		}); err != nil {
			return fmt.Errorf("failed to save bookmark: %w", err)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Bookmark added",
			ui.Detail{Key: "Type", Value: args[0]},
			ui.Detail{Key: "Name", Value: args[1]})
		return nil
	},
}

var bookmarkRemoveCmd = &cobra.Command{
	Use:   "remove <type> <name>",
	Short: "Remove a bookmark",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		store, err := loadStore()
		if err != nil {
			return err
		}
		var removed bool
		if err := store.Update(func(r *config.Registry) error {
			removed = r.RemoveBookmark(args[0], args[1])
			return nil
		}); err != nil {
			return fmt.Errorf("failed to save bookmarks: %w", err)
		}
		if !removed {
			return fmt.Errorf("no bookmark for %s %q", args[0], args[1])
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Bookmark removed",
			ui.Detail{Key: "Type", Value: args[0]},
			ui.Detail{Key: "Name", Value: args[1]})
		return nil
	},
}

var bookmarkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookmarks",
	Example: `  # List bookmarks
  mdnshelper bookmark list

  # Scan first and mark the bookmarks that did not answer
  mdnshelper bookmark list --check`,
	RunE: runBookmarkList,
}

func runBookmarkList(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	p := ui.NewPrinter(cmd.OutOrStdout())

	if !bookmarkCheck {
		store, err := loadStore()
		if err != nil {
			return err
		}
		p.PrintHeader("Bookmarks", "mdnshelper bookmark list")
		p.Println(ui.RenderBookmarks(store.Bookmarks(), nil))
		return nil
	}

	a, err := newApp(0, "")
	if err != nil {
		return err
	}
	defer a.Close()

	prefs := a.Store.Preferences()
	p.PrintHeader("Bookmarks", "mdnshelper bookmark list --check",
		ui.Param{Key: "Backends", Value: a.Backends()},
		ui.Param{Key: "Timeout", Value: prefs.ScanDuration().String()})

	ctx, stop := signalContext(cmd)
	defer stop()

	if err := runSession(ctx, a, nil, nil); err != nil {
		p.PrintError("Bookmark check failed", err, ui.DiscoveryTroubleshooting)
		return fmt.Errorf("scan failed: %w", err)
	}
	resolved := a.Manager.Services()
	p.Println(ui.RenderBookmarks(a.Store.Bookmarks(), a.Store.UnavailableBookmarks(resolved)))
	return nil
}

var bookmarkClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every bookmark",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		store, err := loadStore()
		if err != nil {
			return err
		}
		n := len(store.Bookmarks())
		if n == 0 {
			ui.NewPrinter(cmd.OutOrStdout()).Println(ui.RenderBookmarks(nil, nil))
			return nil
		}
		if !assumeYes && !ui.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Clear bookmarks",
			[]string{fmt.Sprintf("%d bookmark(s) will be removed", n), "This cannot be undone"}) {
			return nil
		}
		if err := store.Update(func(r *config.Registry) error {
			r.Bookmarks = nil
			return nil
		}); err != nil {
			return fmt.Errorf("failed to save bookmarks: %w", err)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Bookmarks cleared",
			ui.Detail{Key: "Removed", Value: fmt.Sprint(n)})
		return nil
	},
}
