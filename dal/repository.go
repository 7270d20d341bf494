package dal

import (
	"context"

	"github.com/ARPA-Network/randcast-node/core"
)

// Repository is the persistence capability the core assumes as an external
// collaborator (§6): durable storage of Node, Group and RandomnessTask rows,
// and one randomness-result table per relayed chain with a committed_times
// counter, indexed on request_id / group_index / assignment_block_height.
// The in-memory caches in this package are the authoritative runtime state;
// Repository exists so that state survives a restart.
type Repository interface {
	SaveNode(ctx context.Context, n *core.Node) error
	GetNode(ctx context.Context, addr core.Address) (*core.Node, error)

	SaveGroup(ctx context.Context, g *core.Group) error
	GetGroup(ctx context.Context, index uint32) (*core.Group, error)
	ListGroups(ctx context.Context) ([]*core.Group, error)

	SaveRandomnessTask(ctx context.Context, t *core.RandomnessTask) error
	GetRandomnessTask(ctx context.Context, id core.RequestID) (*core.RandomnessTask, error)
	ListRandomnessTasksByGroup(ctx context.Context, groupIndex uint32) ([]*core.RandomnessTask, error)

	SaveRandomnessResult(ctx context.Context, chainID uint32, r *core.RandomnessResultCache) error
	GetRandomnessResult(ctx context.Context, chainID uint32, id core.RequestID) (*core.RandomnessResultCache, error)
	DeleteRandomnessResult(ctx context.Context, chainID uint32, id core.RequestID) error

	Close() error
}
