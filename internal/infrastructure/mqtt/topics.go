package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes. The hierarchy is flat and publish-only:
// hearthview/{category}/{...}.
const (
	// TopicPrefix is the base for all published topics.
	TopicPrefix = "hearthview"

	// TopicPrefixSystem is the base for service status topics.
	TopicPrefixSystem = "hearthview/system"
)

// Topics provides builders for published topic names.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// StateChange returns the topic for one entity's state transitions.
//
// Example: hearthview/state/lights/kitchen-light
func (Topics) StateChange(category, entity string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, slug(category), slug(entity))
}

// SystemStatus returns the topic for service online/offline status.
//
// Example: hearthview/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// PollStats returns the topic for periodic cache performance snapshots.
//
// Example: hearthview/system/poll_stats
func (Topics) PollStats() string {
	return TopicPrefixSystem + "/poll_stats"
}

// slug lowercases a display name and collapses spaces and slashes so device
// names like "Kitchen Light" become stable topic segments.
func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.Join(strings.Fields(s), "-")
	if s == "" {
		return "unknown"
	}
	return s
}
