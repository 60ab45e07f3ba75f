package store

import (
	"context"
	"fmt"

	"github.com/roach88/repgraph/internal/ir"
)

// AppendPacket inserts a packet record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: the ID is a content hash,
// so a duplicate ID is the same packet.
func (s *Store) AppendPacket(ctx context.Context, rec ir.PacketRecord) error {
	if rec.ID == "" {
		rec.ID = ir.PacketID(rec.FollowerID, rec.Payload)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO packets (id, follower_id, from_version, to_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.FollowerID,
		rec.FromVersion,
		rec.ToVersion,
		compressPayload(rec.Payload),
	)
	if err != nil {
		return fmt.Errorf("append packet: %w", err)
	}
	return nil
}

// WriteAck records a follower acknowledgement. A lower version than the one
// stored is ignored.
func (s *Store) WriteAck(ctx context.Context, followerID string, version int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO acks (follower_id, version) VALUES (?, ?)
		ON CONFLICT(follower_id) DO UPDATE SET version = MAX(version, excluded.version)
	`, followerID, version)
	if err != nil {
		return fmt.Errorf("write ack: %w", err)
	}
	return nil
}

// WriteEntity registers a spawned entity.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteEntity(ctx context.Context, rec ir.EntityRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (id, class, spawned_at, despawned_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.Class, rec.SpawnedAt, rec.DespawnedAt)
	if err != nil {
		return fmt.Errorf("write entity: %w", err)
	}
	return nil
}

// MarkDespawned stamps an entity's despawn version. Returns an error if the
// entity was never registered.
func (s *Store) MarkDespawned(ctx context.Context, id string, version int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entities SET despawned_at = ? WHERE id = ?
	`, version, id)
	if err != nil {
		return fmt.Errorf("mark despawned: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark despawned: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark despawned: entity %s not found", id)
	}
	return nil
}

// WriteSchemaHash records the schema hash the log is produced with. A log
// keeps the first hash written; a different hash is an error.
func (s *Store) WriteSchemaHash(ctx context.Context, hash string) error {
	existing, ok, err := s.ReadSchemaHash(ctx)
	if err != nil {
		return err
	}
	if ok {
		if existing != hash {
			return fmt.Errorf("write schema hash: log was produced with schema %s, not %s", existing, hash)
		}
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('schema_hash', ?)`, hash); err != nil {
		return fmt.Errorf("write schema hash: %w", err)
	}
	return nil
}
