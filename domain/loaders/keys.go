package loaders

import (
	"fmt"
	"strings"
)

// Edge traversal directions, as seen from the queried node.
const (
	DirectionOut  = "out"
	DirectionIn   = "in"
	DirectionBoth = "both"
)

// RelationshipKey addresses one node's edges of one type in one direction.
// It round-trips through the string cache key "nodeID|TYPE|direction", which
// is what ClearWhere prefix matching relies on during invalidation.
type RelationshipKey struct {
	NodeID    string
	Type      string
	Direction string
}

func (k RelationshipKey) String() string {
	return k.NodeID + "|" + k.Type + "|" + k.Direction
}

// ParseRelationshipKey parses a composite cache key. Node ids are UUIDs and
// edge types are upper-snake identifiers, so "|" never appears in either.
func ParseRelationshipKey(s string) (RelationshipKey, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return RelationshipKey{}, fmt.Errorf("relationship key %q: want nodeID|TYPE|direction", s)
	}
	k := RelationshipKey{NodeID: parts[0], Type: parts[1], Direction: parts[2]}
	if k.NodeID == "" || k.Type == "" {
		return RelationshipKey{}, fmt.Errorf("relationship key %q: empty node id or type", s)
	}
	switch k.Direction {
	case DirectionOut, DirectionIn, DirectionBoth:
		return k, nil
	default:
		return RelationshipKey{}, fmt.Errorf("relationship key %q: unknown direction %q", s, k.Direction)
	}
}
