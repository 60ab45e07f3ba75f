package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/repgraph/internal/ir"
)

// ReadPackets returns every packet sent to a follower, ordered by
// to_version ASC, id ASC COLLATE BINARY. Payloads are decompressed.
//
// Returns an empty slice (not nil) if the follower has no packets.
func (s *Store) ReadPackets(ctx context.Context, followerID string) ([]ir.PacketRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, follower_id, from_version, to_version, payload
		FROM packets
		WHERE follower_id = ?
		ORDER BY to_version ASC, id COLLATE BINARY ASC
	`, followerID)
	if err != nil {
		return nil, fmt.Errorf("query packets: %w", err)
	}
	defer rows.Close()

	packets := []ir.PacketRecord{}
	for rows.Next() {
		var rec ir.PacketRecord
		var blob []byte
		if err := rows.Scan(&rec.ID, &rec.FollowerID, &rec.FromVersion, &rec.ToVersion, &blob); err != nil {
			return nil, fmt.Errorf("scan packet: %w", err)
		}
		rec.Payload, err = decompressPayload(blob)
		if err != nil {
			return nil, fmt.Errorf("packet %s: %w", rec.ID, err)
		}
		packets = append(packets, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packets: %w", err)
	}
	return packets, nil
}

// ReadFollowers returns every follower with at least one packet or ack,
// ordered by ID.
func (s *Store) ReadFollowers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT follower_id FROM packets
		UNION
		SELECT follower_id FROM acks
		ORDER BY follower_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query followers: %w", err)
	}
	defer rows.Close()

	followers := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follower: %w", err)
		}
		followers = append(followers, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followers: %w", err)
	}
	return followers, nil
}

// ReadAck returns a follower's acknowledged version. The boolean is false if
// the follower never acknowledged anything.
func (s *Store) ReadAck(ctx context.Context, followerID string) (int64, bool, error) {
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM acks WHERE follower_id = ?`, followerID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read ack: %w", err)
	}
	return version, true, nil
}

// ReadEntities returns the entity registry ordered by spawned_at ASC,
// id ASC COLLATE BINARY.
func (s *Store) ReadEntities(ctx context.Context) ([]ir.EntityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, class, spawned_at, despawned_at
		FROM entities
		ORDER BY spawned_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	entities := []ir.EntityRecord{}
	for rows.Next() {
		var rec ir.EntityRecord
		if err := rows.Scan(&rec.ID, &rec.Class, &rec.SpawnedAt, &rec.DespawnedAt); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// ReadSchemaHash returns the schema hash recorded with the log.
func (s *Store) ReadSchemaHash(ctx context.Context) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_hash'`).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read schema hash: %w", err)
	}
	return hash, true, nil
}
