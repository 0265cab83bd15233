package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/service"
	"github.com/muurk/mdnshelper/internal/ui"
)

var prefsJSON bool

func init() {
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	prefsCmd.AddCommand(prefsResetCmd)

	prefsShowCmd.Flags().BoolVar(&prefsJSON, "json", false, "Print the preferences as JSON")
	prefsResetCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(prefsCmd)
}

// preferenceKeys lists the keys accepted by 'prefs set', in display order
var preferenceKeys = []string{
	"discover_backend",
	"resolve_backend",
	"preferred_browser",
	"scan_timeout",
	"resolve_window",
	"shortcut_timeout",
	"browse_type",
	"domain",
	"native_resolve_mode",
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		store, err := loadStore()
		if err != nil {
			return err
		}
		prefs := store.Preferences()
		if prefsJSON {
			return writeJSON(cmd.OutOrStdout(), preferenceValues(prefs))
		}

		params := make([]ui.Param, 0, len(preferenceKeys)+1)
		values := preferenceValues(prefs)
		for _, k := range preferenceKeys {
			params = append(params, ui.Param{Key: k, Value: values[k]})
		}
		supported := make([]string, 0, 2)
		for _, b := range service.Supported(prefs.DiscoverBackend) {
			supported = append(supported, b.String())
		}
		params = append(params, ui.Param{Key: "supported_resolvers", Value: strings.Join(supported, ", ")})

		path, err := configFilePath()
		if err != nil {
			path = "(unknown)"
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintHeader("Preferences", path, params...)
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a preference",
	Long: `Change a stored preference.

Keys:
  discover_backend     native or bonjour
  resolve_backend      native or bonjour (bonjour discovery needs bonjour)
  preferred_browser    default, print or a command ("%s" is replaced by the URL)
  scan_timeout         live scan duration in seconds
  resolve_window       per-resolution window in seconds
  shortcut_timeout     shortcut launch timeout in seconds
  browse_type          type browsed by a scan
  domain               browse domain
  native_resolve_mode  continuous or oneshot`,
	Example: `  mdnshelper prefs set discover_backend native
  mdnshelper prefs set preferred_browser "firefox --new-tab %s"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		store, err := loadStore()
		if err != nil {
			return err
		}
		if err := store.Update(func(r *config.Registry) error {
			return applyPreference(r, args[0], args[1])
		}); err != nil {
			return err
		}
		values := preferenceValues(store.Preferences())
		details := []ui.Detail{{Key: args[0], Value: values[strings.ToLower(args[0])]}}
		if strings.EqualFold(args[0], "discover_backend") {
			// switching discovery can switch the resolver too
			details = append(details, ui.Detail{Key: "resolve_backend", Value: values["resolve_backend"]})
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Preference saved", details...)
		return nil
	},
}

var prefsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		store, err := loadStore()
		if err != nil {
			return err
		}
		if !assumeYes && !ui.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Reset preferences",
			[]string{"Every preference returns to its default", "Bookmarks and shortcuts are kept"}) {
			return nil
		}
		if err := store.Update(func(r *config.Registry) error {
			r.Preferences = config.DefaultPreferences()
			return nil
		}); err != nil {
			return fmt.Errorf("failed to save preferences: %w", err)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Preferences reset")
		return nil
	},
}

func configFilePath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

// preferenceValues renders the preferences keyed like 'prefs set'
func preferenceValues(p config.Preferences) map[string]string {
	return map[string]string{
		"discover_backend":    p.DiscoverBackend.String(),
		"resolve_backend":     service.EffectiveResolver(p.DiscoverBackend, p.ResolveBackend).String(),
		"preferred_browser":   p.PreferredBrowser,
		"scan_timeout":        strconv.Itoa(p.ScanTimeout),
		"resolve_window":      strconv.Itoa(p.ResolveWindow),
		"shortcut_timeout":    strconv.Itoa(p.ShortcutTimeout),
		"browse_type":         p.BrowseType,
		"domain":              p.Domain,
		"native_resolve_mode": p.NativeResolve,
	}
}

// applyPreference validates value and stores it under key
func applyPreference(r *config.Registry, key, value string) error {
	if r.Preferences == nil {
		r.Preferences = config.DefaultPreferences()
	}
	p := r.Preferences
	value = strings.TrimSpace(value)

	switch strings.ToLower(key) {
	case "discover_backend":
		b, err := service.ParseBackend(value)
		if err != nil {
			return err
		}
		r.SetDiscoverBackend(b)
	case "resolve_backend":
		b, err := service.ParseBackend(value)
		if err != nil {
			return err
		}
		return r.SetResolveBackend(b)
	case "preferred_browser":
		if value == "" {
			return fmt.Errorf("preferred_browser cannot be empty")
		}
		p.PreferredBrowser = value
	case "scan_timeout", "resolve_window", "shortcut_timeout":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive number of seconds, got %q", key, value)
		}
		switch strings.ToLower(key) {
		case "scan_timeout":
			p.ScanTimeout = n
		case "resolve_window":
			p.ResolveWindow = n
		default:
			p.ShortcutTimeout = n
		}
	case "browse_type":
		if !strings.HasPrefix(value, "_") {
			return fmt.Errorf("browse_type must be a service type such as _http._tcp, got %q", value)
		}
		p.BrowseType = value
	case "domain":
		if value == "" {
			return fmt.Errorf("domain cannot be empty")
		}
		if !strings.HasSuffix(value, ".") {
			value += "."
		}
		p.Domain = value
	case "native_resolve_mode":
		switch value {
		case config.NativeResolveContinuous, config.NativeResolveOneShot:
			p.NativeResolve = value
		default:
			return fmt.Errorf("native_resolve_mode must be %s or %s", config.NativeResolveContinuous, config.NativeResolveOneShot)
		}
	default:
		return fmt.Errorf("unknown preference %q (known: %s)", key, strings.Join(preferenceKeys, ", "))
	}
	return nil
}
