package graph

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/archgraph-io/archgraph/pkg/apperror"
	"github.com/archgraph-io/archgraph/pkg/logger"
)

// Repository is the write side of the graph store. Mutations go through
// here; reads issued by the loader subsystem go through Executor.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new graph repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("graph.repo")),
	}
}

// GetNode returns a node by id, excluding soft-deleted rows.
func (r *Repository) GetNode(ctx context.Context, id uuid.UUID) (*GraphNode, error) {
	node := new(GraphNode)
	err := r.db.NewSelect().
		Model(node).
		Where("gn.id = ?", id).
		Where("gn.deleted_at IS NULL").
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return node, nil
}

// CreateNode inserts a new node and returns it with generated fields set.
func (r *Repository) CreateNode(ctx context.Context, node *GraphNode) error {
	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}
	now := time.Now()
	node.CreatedAt = now
	node.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(node).Exec(ctx); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	r.log.Debug("node created",
		slog.String("id", node.ID.String()),
		slog.String("type", node.Type),
	)
	return nil
}

// UpdateNodeProperties replaces a node's properties map and bumps updated_at.
func (r *Repository) UpdateNodeProperties(ctx context.Context, id uuid.UUID, properties map[string]any) (*GraphNode, error) {
	node := new(GraphNode)
	res, err := r.db.NewUpdate().
		Model(node).
		Set("properties = ?", properties).
		Set("updated_at = now()").
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperror.ErrNotFound
	}
	return node, nil
}

// SoftDeleteNode marks a node deleted and soft-deletes its edges in the
// same transaction so no dangling edges survive the node.
func (r *Repository) SoftDeleteNode(ctx context.Context, id uuid.UUID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*GraphNode)(nil)).
			Set("deleted_at = now()").
			Where("id = ?", id).
			Where("deleted_at IS NULL").
			Exec(ctx)
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.ErrNotFound
		}

		_, err = tx.NewUpdate().
			Model((*GraphEdge)(nil)).
			Set("deleted_at = now()").
			Where("deleted_at IS NULL").
			WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
				return q.WhereOr("src_id = ?", id).WhereOr("dst_id = ?", id)
			}).
			Exec(ctx)
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		return nil
	})
}

// CreateEdge inserts a typed edge between two existing nodes.
func (r *Repository) CreateEdge(ctx context.Context, edge *GraphEdge) error {
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}
	edge.CreatedAt = time.Now()

	if _, err := r.db.NewInsert().Model(edge).Exec(ctx); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	r.log.Debug("edge created",
		slog.String("type", edge.Type),
		slog.String("src", edge.SrcID.String()),
		slog.String("dst", edge.DstID.String()),
	)
	return nil
}

// SoftDeleteEdge marks the edge of the given type between src and dst
// deleted, in either direction.
func (r *Repository) SoftDeleteEdge(ctx context.Context, edgeType string, srcID, dstID uuid.UUID) error {
	res, err := r.db.NewUpdate().
		Model((*GraphEdge)(nil)).
		Set("deleted_at = now()").
		Where("type = ?", edgeType).
		Where("deleted_at IS NULL").
		Where("((src_id = ? AND dst_id = ?) OR (src_id = ? AND dst_id = ?))",
			srcID, dstID, dstID, srcID).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

// PurgeDeleted hard-deletes rows that were soft-deleted more than
// retention ago. Edges go first to satisfy foreign keys.
func (r *Repository) PurgeDeleted(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	var purged int64
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*GraphEdge)(nil)).
			Where("deleted_at IS NOT NULL").
			Where("deleted_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		purged += n

		res, err = tx.NewDelete().
			Model((*GraphNode)(nil)).
			Where("deleted_at IS NOT NULL").
			Where("deleted_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		purged += n
		return nil
	})
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return purged, nil
}
