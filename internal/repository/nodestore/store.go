// Package nodestore reads CMS-mirrored node snapshots from Redis JSON
// documents and adapts them to the indexer's content-tree contracts.
package nodestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/treedex/treedex/internal/domain"
)

// Config holds connection parameters for the Redis node mirror.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Store resolves node variants from Redis JSON snapshots. Keys follow
// <prefix>:node:<workspace>:<dimension-hash>:<identifier>; the dimension
// combinations on offer live under <prefix>:dimensions.
type Store struct {
	client rueidis.Client
	prefix string
}

// New creates a node mirror client.
func New(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "treedex"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &Store{client: client, prefix: prefix}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the mirror responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for node mirror: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// nodeDTO is the JSON snapshot shape written by the CMS mirror.
type nodeDTO struct {
	Identifier string         `json:"identifier"`
	Path       string         `json:"path"`
	Type       string         `json:"type"`
	ParentID   string         `json:"parentIdentifier"`
	Removed    bool           `json:"removed"`
	Hidden     bool           `json:"hidden"`
	Properties map[string]any `json:"properties"`
}

func (s *Store) nodeKey(identifier, workspace string, dims domain.DimensionCombination) string {
	return s.prefix + ":node:" + workspace + ":" + dims.Hash() + ":" + identifier
}

// Resolve returns the node's variant in the given workspace and dimension
// combination, hidden variants included. Returns domain.ErrNodeNotFound when
// no snapshot exists in that scope.
func (s *Store) Resolve(ctx context.Context, identifier, workspace string, dims domain.DimensionCombination) (*domain.Node, error) {
	key := s.nodeKey(identifier, workspace, dims)
	cmd := s.client.B().Arbitrary("JSON.GET").Keys(key).Build()
	raw, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, domain.ErrNodeNotFound
		}
		return nil, fmt.Errorf("resolve node %s: %w", identifier, err)
	}
	if raw == "" {
		return nil, domain.ErrNodeNotFound
	}
	return decodeNode([]byte(raw), workspace, dims)
}

// Parent resolves the node's parent within the same scope.
func (s *Store) Parent(ctx context.Context, node *domain.Node) (*domain.Node, error) {
	if node.ParentID == "" {
		return nil, domain.ErrNodeNotFound
	}
	return s.Resolve(ctx, node.ParentID, node.Workspace, node.Dimensions)
}

// Put writes a node snapshot into its scope. Used by the mirror feed.
func (s *Store) Put(ctx context.Context, node *domain.Node) error {
	dto := nodeDTO{
		Identifier: node.Identifier,
		Path:       node.Path,
		Type:       node.Type,
		ParentID:   node.ParentID,
		Removed:    node.Removed,
		Hidden:     node.Hidden,
		Properties: node.Properties,
	}
	data, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("marshal node %s: %w", node.Identifier, err)
	}
	key := s.nodeKey(node.Identifier, node.Workspace, node.Dimensions)
	cmd := s.client.B().Arbitrary("JSON.SET").Keys(key).Args("$", string(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("put node %s: %w", node.Identifier, err)
	}
	return nil
}

// Delete drops a node snapshot from its scope.
func (s *Store) Delete(ctx context.Context, identifier, workspace string, dims domain.DimensionCombination) error {
	key := s.nodeKey(identifier, workspace, dims)
	cmd := s.client.B().Del().Key(key).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("delete node %s: %w", identifier, err)
	}
	return nil
}

// Combinations returns the configured dimension combinations from the
// mirror's <prefix>:dimensions document. A missing document means the
// deployment runs without content dimensions.
func (s *Store) Combinations(ctx context.Context) ([]domain.DimensionCombination, error) {
	key := s.prefix + ":dimensions"
	cmd := s.client.B().Arbitrary("JSON.GET").Keys(key).Build()
	raw, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load dimension combinations: %w", err)
	}
	if raw == "" {
		return nil, nil
	}

	var combos []map[string][]string
	if err := json.Unmarshal([]byte(raw), &combos); err != nil {
		return nil, fmt.Errorf("parse dimension combinations: %w", err)
	}
	out := make([]domain.DimensionCombination, 0, len(combos))
	for _, c := range combos {
		out = append(out, domain.DimensionCombination(c))
	}
	return out, nil
}

// decodeNode maps a snapshot onto a domain node. Workspace and dimensions
// come from the lookup scope, not from the stored document.
func decodeNode(raw []byte, workspace string, dims domain.DimensionCombination) (*domain.Node, error) {
	var dto nodeDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("parse node snapshot: %w", err)
	}
	if dto.Identifier == "" {
		return nil, fmt.Errorf("node snapshot without identifier")
	}
	return &domain.Node{
		Identifier: dto.Identifier,
		Path:       dto.Path,
		Workspace:  workspace,
		Dimensions: dims,
		Type:       dto.Type,
		ParentID:   dto.ParentID,
		Removed:    dto.Removed,
		Hidden:     dto.Hidden,
		Properties: dto.Properties,
	}, nil
}
