// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package models

import "strings"

// topicStripper removes characters that are structurally significant in MQTT
// topic names: the level separator, both wildcards, and the $-prefix marker.
var topicStripper = strings.NewReplacer(
	"/", "",
	"+", "",
	"#", "",
	"$", "",
)

// SanitizeTopicSegment makes a user or device label safe to embed as one
// MQTT topic level: spaces become underscores, topic-structural characters
// are stripped. Deterministic and idempotent.
func SanitizeTopicSegment(raw string) string {
	s := strings.ReplaceAll(raw, " ", "_")
	return topicStripper.Replace(s)
}
