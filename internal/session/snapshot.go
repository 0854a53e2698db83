package session

import (
	"encoding/json"
	"fmt"

	"github.com/wheelhouse/wheelhouse/internal/authz"
	"github.com/wheelhouse/wheelhouse/internal/identity"
)

// SnapshotSchemaVersion is bumped whenever the persisted layout changes;
// snapshots with any other version are purged on restore.
const SnapshotSchemaVersion = 1

// snapshot is the persisted form of a session. Only the explicit grants
// are stored; the effective set is recomputed against the current catalog
// on restore, so catalog changes never desynchronize stored identities
// from role defaults.
type snapshot struct {
	SchemaVersion int            `json:"schemaVersion"`
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	Name          string         `json:"name"`
	Role          string         `json:"role"`
	Grants        []string       `json:"grants"`
	Scope         identity.Scope `json:"scope"`
}

func encodeSnapshot(s *Session) ([]byte, error) {
	snap := snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		ID:            s.ID,
		Email:         s.Email,
		Name:          s.Name,
		Role:          string(s.Role),
		Grants:        make([]string, 0, len(s.Grants)),
		Scope:         s.Scope,
	}
	for _, p := range s.Grants {
		snap.Grants = append(snap.Grants, string(p))
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*snapshot, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCorrupted, err)
	}
	if snap.SchemaVersion != SnapshotSchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d",
			ErrSnapshotVersion, snap.SchemaVersion, SnapshotSchemaVersion)
	}
	if snap.ID == "" || snap.Role == "" {
		return nil, fmt.Errorf("%w: missing identity fields", ErrSessionCorrupted)
	}
	return &snap, nil
}

func (s *snapshot) grants() []authz.Permission {
	perms := make([]authz.Permission, 0, len(s.Grants))
	for _, p := range s.Grants {
		perms = append(perms, authz.Permission(p))
	}
	return perms
}
