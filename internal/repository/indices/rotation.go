// Package indices manages physical index generations behind a logical alias.
package indices

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/treedex/treedex/internal/db"
	"github.com/treedex/treedex/internal/domain"
	"github.com/treedex/treedex/internal/metrics"
)

// store is the consumer interface for alias and index management (ISP).
type store interface {
	AliasIndices(ctx context.Context, alias string) ([]string, error)
	UpdateAliases(ctx context.Context, actions []db.AliasAction) error
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string) error
	DeleteIndex(ctx context.Context, name string) error
	DeleteIndices(ctx context.Context, names []string) error
	ListIndices(ctx context.Context) ([]string, error)
}

// Manager rotates a logical alias across physical index generations named
// "<alias>-<generation>".
type Manager struct {
	store  store
	logger *zap.Logger
}

// New creates an index rotation manager.
func New(s store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: s, logger: logger}
}

// PhysicalName returns the physical index name for a generation postfix.
func PhysicalName(alias, postfix string) string {
	if postfix == "" {
		return alias
	}
	return alias + "-" + postfix
}

// CreateGeneration creates a fresh physical index for a rebuild and returns
// its name. Fails when no postfix distinguishes it from the alias.
func (m *Manager) CreateGeneration(ctx context.Context, alias, postfix string) (string, error) {
	physical := PhysicalName(alias, postfix)
	if physical == alias {
		return "", fmt.Errorf("create generation for %q: %w", alias, domain.ErrAliasMissingPostfix)
	}
	if err := m.store.CreateIndex(ctx, physical); err != nil {
		return "", fmt.Errorf("create index %q: %w", physical, err)
	}
	m.logger.Info("Created index generation", zap.String("index", physical))
	return physical, nil
}

// UpdateAlias atomically repoints the alias at the physical index for the
// given generation postfix. The previous generation's index is unbound but
// not deleted; RemoveStaleIndices garbage-collects it later.
func (m *Manager) UpdateAlias(ctx context.Context, alias, postfix string) error {
	physical := PhysicalName(alias, postfix)
	if physical == alias {
		metrics.AliasRotationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("update alias %q: %w", alias, domain.ErrAliasMissingPostfix)
	}

	exists, err := m.store.IndexExists(ctx, physical)
	if err != nil {
		metrics.AliasRotationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("check index %q: %w", physical, err)
	}
	if !exists {
		metrics.AliasRotationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("rotation target %q: %w", physical, domain.ErrIndexNotFound)
	}

	// A missing alias is a valid first rotation; other probe failures
	// propagate.
	bound, err := m.store.AliasIndices(ctx, alias)
	if err != nil {
		metrics.AliasRotationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("probe alias %q: %w", alias, err)
	}

	// A plain index squatting on the alias name blocks the alias binding.
	if len(bound) == 0 {
		plainExists, err := m.store.IndexExists(ctx, alias)
		if err != nil {
			metrics.AliasRotationsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("check plain index %q: %w", alias, err)
		}
		if plainExists {
			m.logger.Warn("Deleting plain index occupying alias name", zap.String("index", alias))
			if err := m.store.DeleteIndex(ctx, alias); err != nil {
				metrics.AliasRotationsTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("delete plain index %q: %w", alias, err)
			}
		}
	}

	actions := make([]db.AliasAction, 0, len(bound)+1)
	for _, index := range bound {
		actions = append(actions, db.AliasAction{Alias: alias, Index: index})
	}
	actions = append(actions, db.AliasAction{Add: true, Alias: alias, Index: physical})

	if err := m.store.UpdateAliases(ctx, actions); err != nil {
		metrics.AliasRotationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("rotate alias %q to %q: %w", alias, physical, err)
	}

	metrics.AliasRotationsTotal.WithLabelValues("ok").Inc()
	m.logger.Info("Rotated alias",
		zap.String("alias", alias),
		zap.String("index", physical),
		zap.Strings("unbound", bound),
	)
	return nil
}

// RemoveStaleIndices deletes all "<alias>-*" physical indices no longer
// bound to the alias and returns the removed names. Bound indices are never
// deleted.
func (m *Manager) RemoveStaleIndices(ctx context.Context, alias string) ([]string, error) {
	all, err := m.store.ListIndices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}

	bound, err := m.store.AliasIndices(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("probe alias %q: %w", alias, err)
	}
	boundSet := make(map[string]bool, len(bound))
	for _, index := range bound {
		boundSet[index] = true
	}

	var stale []string
	for _, index := range all {
		if strings.HasPrefix(index, alias+"-") && !boundSet[index] {
			stale = append(stale, index)
		}
	}
	if len(stale) == 0 {
		return nil, nil
	}

	if err := m.store.DeleteIndices(ctx, stale); err != nil {
		return nil, fmt.Errorf("delete stale indices: %w", err)
	}
	metrics.StaleIndicesRemovedTotal.Add(float64(len(stale)))
	m.logger.Info("Removed stale index generations",
		zap.String("alias", alias),
		zap.Strings("indices", stale),
	)
	return stale, nil
}
