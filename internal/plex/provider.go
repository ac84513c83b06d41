// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package plex

import (
	"context"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/models"
)

// Provider composes the circuit-broken API client and the extractor into the
// session source the bridge polls each cycle.
type Provider struct {
	client    *BreakerClient
	extractor *Extractor
}

// NewProvider builds a session provider from Plex configuration.
func NewProvider(cfg *config.PlexConfig) *Provider {
	return &Provider{
		client:    NewBreakerClient(cfg),
		extractor: NewExtractor(cfg),
	}
}

// ActiveSessions fetches the current sessions and normalizes the audio
// tracks among them. Records that fail extraction are logged and skipped
// inside ExtractBatch, never failing the batch.
func (p *Provider) ActiveSessions(ctx context.Context) ([]models.Session, error) {
	resp, err := p.client.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	return p.extractor.ExtractBatch(resp.Tracks()), nil
}

// Ping verifies server connectivity for the startup check and the status API.
func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
