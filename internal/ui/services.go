package ui

import (
	"strings"
	"time"

	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/service"
	"github.com/muurk/mdnshelper/internal/urls"
)

// ServiceLine renders one resolved service on a single line:
// marker, name, type and address.
func ServiceLine(r service.Resolved) string {
	marker := "  "
	if r.Bookmarked {
		marker = BookmarkMarkerStyle.Render(BookmarkMarker) + " "
	}
	name := r.ServiceName
	if name == "" {
		name = r.Identity.String()
	}
	line := marker + ServiceNameStyle.Render(name) + "  " + ServiceTypeStyle.Render(r.ServiceType)
	if r.HasAddress() {
		line += "  " + AddressStyle.Render(r.Address())
	} else {
		line += "  " + NoteStyle.Render("(no address)")
	}
	return line
}

// RenderServiceList renders services one per line, in the given order.
func RenderServiceList(services []service.Resolved) string {
	if len(services) == 0 {
		return EventMutedStyle.Render("  No services found")
	}
	lines := make([]string, len(services))
	for i, r := range services {
		lines[i] = ServiceLine(r)
	}
	return strings.Join(lines, "\n")
}

// ServiceDetails returns the detail lines shown for a single resolved
// service, TXT entries last in announcement order.
func ServiceDetails(r service.Resolved) []Detail {
	details := []Detail{
		{Key: "Name", Value: r.ServiceName},
		{Key: "Type", Value: r.ServiceType},
		{Key: "Domain", Value: r.Domain},
	}
	if r.HostName != "" {
		details = append(details, Detail{Key: "Host", Value: r.HostName})
	}
	if r.HasAddress() {
		details = append(details,
			Detail{Key: "Address", Value: r.Address()},
			Detail{Key: "URL", Value: urls.ServiceURL(r)})
	}
	if r.Bookmarked {
		details = append(details, Detail{Key: "Bookmarked", Value: "yes"})
	}
	for _, k := range r.Extra.Keys() {
		v, _ := r.Extra.Get(k)
		details = append(details, Detail{Key: "TXT " + k, Value: v})
	}
	return details
}

// RenderBookmarks lists bookmarks, marking those not currently resolved.
func RenderBookmarks(marks []config.Bookmark, unavailable []config.Bookmark) string {
	if len(marks) == 0 {
		return EventMutedStyle.Render("  No bookmarks")
	}
	missing := make(map[service.Key]bool, len(unavailable))
	for _, b := range unavailable {
		missing[b.Key()] = true
	}
	lines := make([]string, len(marks))
	for i, b := range marks {
		line := BookmarkMarkerStyle.Render(BookmarkMarker) + " " +
			ServiceNameStyle.Render(b.Name) + "  " + ServiceTypeStyle.Render(b.Type)
		if missing[b.Key()] {
			line += "  " + NoteStyle.Render("(unavailable)")
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// RenderShortcuts lists pinned shortcuts with their last known address.
func RenderShortcuts(list []config.Shortcut) string {
	if len(list) == 0 {
		return EventMutedStyle.Render("  No shortcuts")
	}
	lines := make([]string, len(list))
	for i, sc := range list {
		line := "  " + ServiceNameStyle.Render(sc.DisplayName()) + "  " +
			ServiceTypeStyle.Render(sc.Type) + "  " + NoteStyle.Render(sc.ID())
		if addr := urls.AddressAsURL(sc.LastHost, sc.LastPort); addr != "" {
			line += "  " + AddressStyle.Render(addr)
		}
		if !sc.LastUsed.IsZero() {
			line += "  " + NoteStyle.Render("last used "+sc.LastUsed.Format(time.RFC3339))
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// Elapsed formats a duration for result boxes.
func Elapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
