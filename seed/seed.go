// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package seed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/tallyhall/models"
)

// File is the top-level seed document.
type File struct {
	Runs []Run `yaml:"runs"`
}

// Run groups the participants and sessions of one run.
type Run struct {
	ID           string               `yaml:"id"`
	Participants []models.Participant `yaml:"participants"`
	Sessions     []Session            `yaml:"sessions"`
}

// Session is a session config plus whether to start voting right away.
type Session struct {
	models.SessionConfig `yaml:",inline"`
	Start                bool `yaml:"start"`
}

// Manager is the subset of session.Manager the seeder drives.
type Manager interface {
	RegisterParticipant(ctx context.Context, p models.Participant) (models.Participant, error)
	ListSessions(ctx context.Context, runID string) ([]models.VoteSession, error)
	CreateSession(ctx context.Context, cfg models.SessionConfig, actorID string) (models.VoteSession, error)
	StartVoting(ctx context.Context, sessionID string) (models.VoteSession, error)
}

// Parse decodes a seed document. Unknown fields are rejected so typos in
// session configs surface at startup.
func Parse(data []byte) (File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return File{}, fmt.Errorf("seed: document is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("seed: decode: %w", err)
	}
	for i, r := range f.Runs {
		if strings.TrimSpace(r.ID) == "" {
			return File{}, fmt.Errorf("seed: run %d has no id", i)
		}
	}
	return f, nil
}

// Load reads and parses the seed file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Apply registers every participant and creates every session that does not
// exist yet. Sessions are created by actorID and validated like any other.
func Apply(ctx context.Context, mgr Manager, f File, actorID string) error {
	for _, run := range f.Runs {
		runID := strings.TrimSpace(run.ID)

		for _, p := range run.Participants {
			p.RunID = runID
			if _, err := mgr.RegisterParticipant(ctx, p); err != nil {
				return fmt.Errorf("seed: run %s: participant %q: %w", runID, p.VoterID, err)
			}
		}

		existing, err := mgr.ListSessions(ctx, runID)
		if err != nil {
			return fmt.Errorf("seed: run %s: %w", runID, err)
		}

		created := 0
		for i, s := range run.Sessions {
			cfg := s.SessionConfig
			cfg.RunID = runID
			if seeded(existing, cfg) {
				continue
			}

			vs, err := mgr.CreateSession(ctx, cfg, actorID)
			if err != nil {
				return fmt.Errorf("seed: run %s: session %d (%s): %w", runID, i, cfg.Title, err)
			}
			if s.Start {
				if _, err := mgr.StartVoting(ctx, vs.ID); err != nil {
					return fmt.Errorf("seed: run %s: start session %s: %w", runID, vs.ID, err)
				}
			}
			existing = append(existing, vs)
			created++
		}

		slog.Info("seed applied",
			"run_id", runID,
			"participants", len(run.Participants),
			"sessions_created", created,
			"sessions_skipped", len(run.Sessions)-created,
		)
	}
	return nil
}

func seeded(existing []models.VoteSession, cfg models.SessionConfig) bool {
	for _, vs := range existing {
		if vs.PhaseID == strings.TrimSpace(cfg.PhaseID) && vs.Title == cfg.Title && vs.ParentSessionID == "" {
			return true
		}
	}
	return false
}
