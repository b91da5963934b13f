package streams

import "fmt"

// BotName is the brand used in go-live announcements.
const BotName = "LuminBot"

// StatusText renders the presence line, e.g. "3 streams | 150 viewers".
func StatusText(s Snapshot) string {
	return fmt.Sprintf("%d streams | %d viewers", s.LiveChannelCount(), s.TotalViewerCount())
}

// AnnouncementText renders the go-live message for a record.
func AnnouncementText(r Record) string {
	return fmt.Sprintf("%s has gone live using **%s**! Watch here: %s", r.User.Name, BotName, WatchURL(r.User.Name))
}

// WatchURL is the Twitch channel URL for a login name.
func WatchURL(name string) string {
	return "https://twitch.tv/" + name
}
