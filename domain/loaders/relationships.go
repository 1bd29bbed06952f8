package loaders

import (
	"context"
	"log/slog"
	"sync"

	"github.com/uptrace/bun/dialect/pgdialect"
	"golang.org/x/sync/errgroup"

	"github.com/archgraph-io/archgraph/domain/arch"
	"github.com/archgraph-io/archgraph/domain/graph"
)

// The relationship loader resolves raw edges for composite keys of the form
// nodeID|TYPE|direction. One batch can mix types and directions; keys are
// grouped by (type, direction) and each group is fetched concurrently with
// its own query.

const relationshipsOutQuery = `
SELECT e.src_id::text AS for_id, e.id::text AS id, e.type,
       e.src_id::text AS source_id, e.dst_id::text AS target_id,
       e.properties, e.created_at
FROM kb.graph_edges e
WHERE e.type = ? AND e.deleted_at IS NULL
  AND e.src_id::text = ANY(?)
ORDER BY e.created_at`

const relationshipsInQuery = `
SELECT e.dst_id::text AS for_id, e.id::text AS id, e.type,
       e.src_id::text AS source_id, e.dst_id::text AS target_id,
       e.properties, e.created_at
FROM kb.graph_edges e
WHERE e.type = ? AND e.deleted_at IS NULL
  AND e.dst_id::text = ANY(?)
ORDER BY e.created_at`

const relationshipsBothQuery = `
SELECT x.for_id, e.id::text AS id, e.type,
       e.src_id::text AS source_id, e.dst_id::text AS target_id,
       e.properties, e.created_at
FROM (
    SELECT e.id, e.src_id::text AS for_id
    FROM kb.graph_edges e
    WHERE e.type = ? AND e.deleted_at IS NULL
      AND e.src_id::text = ANY(?)
    UNION ALL
    SELECT e.id, e.dst_id::text
    FROM kb.graph_edges e
    WHERE e.type = ? AND e.deleted_at IS NULL
      AND e.dst_id::text = ANY(?)
) x
JOIN kb.graph_edges e ON e.id = x.id
ORDER BY e.created_at`

// NewRelationshipsLoader loads raw edges by composite key. Keys that fail
// to parse resolve individually to the parse error; valid keys in the same
// batch are unaffected.
func NewRelationshipsLoader(exec graph.Executor, metrics *Collector, log *slog.Logger, cfg Config) (*Loader[[]*arch.Relationship], error) {
	fetch := func(ctx context.Context, keys []string) ([]Result[[]*arch.Relationship], error) {
		type groupID struct {
			relType   string
			direction string
		}

		results := make([]Result[[]*arch.Relationship], len(keys))
		groups := make(map[groupID][]string)
		for i, key := range keys {
			parsed, err := ParseRelationshipKey(key)
			if err != nil {
				results[i] = Result[[]*arch.Relationship]{Err: err}
				continue
			}
			gid := groupID{relType: parsed.Type, direction: parsed.Direction}
			groups[gid] = append(groups[gid], parsed.NodeID)
		}

		var mu sync.Mutex
		byNode := make(map[groupID]map[string][]*arch.Relationship, len(groups))

		g, gctx := errgroup.WithContext(ctx)
		for gid, nodeIDs := range groups {
			g.Go(func() error {
				var rows []graph.Row
				var err error
				switch gid.direction {
				case DirectionOut:
					rows, err = exec.ExecuteQuery(gctx, relationshipsOutQuery,
						gid.relType, pgdialect.Array(nodeIDs))
				case DirectionIn:
					rows, err = exec.ExecuteQuery(gctx, relationshipsInQuery,
						gid.relType, pgdialect.Array(nodeIDs))
				default:
					rows, err = exec.ExecuteQuery(gctx, relationshipsBothQuery,
						gid.relType, pgdialect.Array(nodeIDs),
						gid.relType, pgdialect.Array(nodeIDs))
				}
				if err != nil {
					return err
				}

				grouped := make(map[string][]*arch.Relationship, len(nodeIDs))
				for _, row := range rows {
					forID, rel, err := mapRelationship(row)
					if err != nil {
						return err
					}
					grouped[forID] = append(grouped[forID], rel)
				}

				mu.Lock()
				byNode[gid] = grouped
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i, key := range keys {
			if results[i].Err != nil {
				continue
			}
			parsed, _ := ParseRelationshipKey(key)
			gid := groupID{relType: parsed.Type, direction: parsed.Direction}
			rels := byNode[gid][parsed.NodeID]
			if rels == nil {
				rels = []*arch.Relationship{}
			}
			results[i] = Result[[]*arch.Relationship]{Value: rels}
		}
		return results, nil
	}
	return New(cfg, fetch, metrics, log)
}

func mapRelationship(row graph.Row) (string, *arch.Relationship, error) {
	forID, err := rowString(row, "for_id")
	if err != nil {
		return "", nil, err
	}
	id, err := rowString(row, "id")
	if err != nil {
		return "", nil, err
	}
	relType, err := rowString(row, "type")
	if err != nil {
		return "", nil, err
	}
	sourceID, err := rowString(row, "source_id")
	if err != nil {
		return "", nil, err
	}
	targetID, err := rowString(row, "target_id")
	if err != nil {
		return "", nil, err
	}
	props, err := rowProps(row, "properties")
	if err != nil {
		return "", nil, err
	}
	createdAt, err := rowTime(row, "created_at")
	if err != nil {
		return "", nil, err
	}

	return forID, &arch.Relationship{
		ID:         id,
		Type:       relType,
		SourceID:   sourceID,
		TargetID:   targetID,
		Properties: props,
		CreatedAt:  createdAt,
	}, nil
}
