// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package plex

// Plex API response structures for the endpoints Nuntius polls.
// Based on Plex Media Server API: /status/sessions and /identity

// Media types returned in session metadata.
const (
	TypeTrack   = "track"
	TypeMovie   = "movie"
	TypeEpisode = "episode"
)

// SessionsResponse represents the top-level response from /status/sessions
type SessionsResponse struct {
	MediaContainer SessionsContainer `json:"MediaContainer"`
}

// SessionsContainer wraps the active sessions array
type SessionsContainer struct {
	Size     int       `json:"size"`     // Number of active sessions
	Metadata []Session `json:"Metadata"` // Array of active session metadata
}

// Session represents a single active playback session as reported by the
// server. Only the fields Nuntius reads are modeled; the server sends more.
type Session struct {
	// Session identification
	SessionKey string `json:"sessionKey"` // Unique session identifier
	RatingKey  string `json:"ratingKey"`  // Plex content identifier
	Key        string `json:"key"`        // Metadata key path

	// Content information
	Type             string `json:"type"`                       // "movie", "episode", "track"
	Title            string `json:"title"`                      // Track title
	GrandparentTitle string `json:"grandparentTitle,omitempty"` // Artist name
	ParentTitle      string `json:"parentTitle,omitempty"`      // Album name

	// Track numbering and release metadata
	Index       int    `json:"index,omitempty"`       // Track number on the album
	ParentIndex int    `json:"parentIndex,omitempty"` // Disc number
	Year        int    `json:"year,omitempty"`
	Thumb       string `json:"thumb,omitempty"` // Thumbnail path (relative)
	Art         string `json:"art,omitempty"`   // Artwork path (relative)

	// Playback state
	ViewOffset int64 `json:"viewOffset"` // Current position (milliseconds)
	Duration   int64 `json:"duration"`   // Total duration (milliseconds)

	// User and player
	User   *User   `json:"User,omitempty"`
	Player *Player `json:"Player,omitempty"`

	// Flattened player hints some server builds place on the session itself.
	PlayerTitle string `json:"playerTitle,omitempty"`
	Device      string `json:"device,omitempty"`

	// Media information (source quality)
	Media []Media `json:"Media,omitempty"`
}

// User represents user information in active sessions
type User struct {
	ID    int    `json:"id"`
	Title string `json:"title"` // Username
	Thumb string `json:"thumb"` // Avatar URL
}

// Player represents device/client information
type Player struct {
	Address   string `json:"address"` // Client IP address
	Device    string `json:"device"`  // Device name (e.g., "iPhone", "Chrome")
	MachineID string `json:"machineIdentifier"`
	Model     string `json:"model"`    // Device model
	Platform  string `json:"platform"` // Platform (e.g., "Windows", "iOS")
	Product   string `json:"product"`  // Client app (e.g., "Plex for iOS")
	State     string `json:"state"`    // Player state ("playing", "paused", "buffering")
	Title     string `json:"title"`    // Device friendly name
	Version   string `json:"version"`  // Client version
	Local     bool   `json:"local"`    // Local network connection
}

// Media represents media information (quality, codecs)
type Media struct {
	ID            int    `json:"id"`
	Duration      int64  `json:"duration"`
	Bitrate       int    `json:"bitrate"` // Kbps
	AudioChannels int    `json:"audioChannels"`
	AudioCodec    string `json:"audioCodec"`
	Container     string `json:"container"`
}

// IdentityResponse represents the response from /identity endpoint
type IdentityResponse struct {
	MediaContainer IdentityContainer `json:"MediaContainer"`
}

// IdentityContainer wraps server identity information
type IdentityContainer struct {
	MachineIdentifier string `json:"machineIdentifier"`
	Version           string `json:"version"`
	Platform          string `json:"platform"`
}

// Tracks returns only the music sessions from the response, preserving
// batch order. Plex reports all media types on /status/sessions; Nuntius
// only bridges tracks.
func (r *SessionsResponse) Tracks() []Session {
	if r == nil || len(r.MediaContainer.Metadata) == 0 {
		return nil
	}
	tracks := make([]Session, 0, len(r.MediaContainer.Metadata))
	for _, s := range r.MediaContainer.Metadata {
		if s.Type == TypeTrack {
			tracks = append(tracks, s)
		}
	}
	return tracks
}
