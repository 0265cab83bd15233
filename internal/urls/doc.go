// Package urls composes service endpoint URLs and opens them in a browser.
//
// A resolved service is reached at http://<host address>:<port>. How the URL
// is opened follows the preferred_browser setting:
//
//   - "default" uses the OS opener (xdg-open, open or rundll32)
//   - "print" only prints the URL
//   - anything else is treated as a command line, with "%s" replaced by the URL
//
// Usage:
//
//	url := urls.ServiceURL(resolved)
//	opener := urls.NewOpener(prefs.PreferredBrowser, func(u string) { fmt.Println(u) })
//	if err := opener.Open(ctx, url); err != nil {
//	    return err
//	}
//
// The package also holds the documentation links printed in help text.
package urls
