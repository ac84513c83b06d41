// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package bridge

import (
	"github.com/tomtom215/nuntius/internal/models"
)

// Topic routing strategies. Unrecognized values route like TopicSingle.
const (
	// TopicSingle publishes every session to the base topic.
	TopicSingle = "single"

	// TopicPerUser publishes to base/<user>.
	TopicPerUser = "per_user"

	// TopicPerDevice publishes to base/session_<key>, one topic per
	// concurrent stream.
	TopicPerDevice = "per_device"

	// TopicHierarchical publishes to base/<user>/session_<key>.
	TopicHierarchical = "hierarchical"

	// TopicUserDeviceTrack publishes to base/<user>/<device>/DATA. The
	// literal DATA leaf carries the payload, leaving sibling leaves free
	// for consumers that fan out attributes.
	TopicUserDeviceTrack = "user_device_track"
)

// RouteTopic maps a session to its destination topic under base according to
// the configured strategy. User and device segments pass through the same
// sanitization as device names, so the result is always a valid topic.
func RouteTopic(base, strategy string, sess *models.Session) string {
	switch strategy {
	case TopicPerUser:
		return base + "/" + models.SanitizeTopicSegment(sess.User)
	case TopicPerDevice:
		return base + "/" + sessionSegment(sess)
	case TopicHierarchical:
		return base + "/" + models.SanitizeTopicSegment(sess.User) + "/" + sessionSegment(sess)
	case TopicUserDeviceTrack:
		return base + "/" + models.SanitizeTopicSegment(sess.User) + "/" + models.SanitizeTopicSegment(sess.Device) + "/DATA"
	default:
		return base
	}
}

// sessionSegment names one stream by its source-assigned session key.
func sessionSegment(sess *models.Session) string {
	key := sess.SessionKey
	if key == "" {
		key = "unknown"
	}
	return "session_" + models.SanitizeTopicSegment(key)
}
