// Package config provides user configuration management for mdnshelper.
//
// This package manages a YAML-based configuration file that stores backend
// preferences, bookmarked services and pinned shortcuts. The configuration
// follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/mdnshelper/config.yaml or $HOME/.config/mdnshelper/config.yaml
//   - macOS: $HOME/.config/mdnshelper/config.yaml
//   - Windows: %LOCALAPPDATA%\mdnshelper\config.yaml
//
// MDNSHELPER_CONFIG overrides the location with an explicit file path.
//
// # Backend Preferences
//
// The discovery and resolving backends are stored as a pair. Selecting a
// discovery backend silently replaces an incompatible resolving backend with
// the first supported one; selecting an incompatible resolving backend is an
// error.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.SetDiscoverBackend(service.BackendNative)
//	registry.AddBookmark("_http._tcp", "Living Room NAS")
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// Long running processes wrap the registry in a Store, which serialises
// access and satisfies the discovery manager's Preferences and Bookmarks
// interfaces.
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
// A Registry itself is not safe for concurrent use; use a Store.
package config
