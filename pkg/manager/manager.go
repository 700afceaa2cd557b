// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"github.com/nimbusdata/branchroll/internal/corelog"
	"github.com/nimbusdata/branchroll/internal/registry"
	"github.com/nimbusdata/branchroll/pkg/catalog"
	"github.com/nimbusdata/branchroll/pkg/provider"
	"github.com/nimbusdata/branchroll/pkg/provider/selector"
	"github.com/nimbusdata/branchroll/pkg/state"
)

// SelectFunc is the Strategy Selector's shape, injected so tests can
// substitute fakes without the real drivers.
type SelectFunc func(provider.Tag) (provider.Strategy, error)

// Manager is the orchestrator tying together the registry, the state store,
// and the catalog. It holds no per-branch state of its own; everything
// persisted lives in Store, and everything about a branch's identity lives
// in Registry.
type Manager struct {
	registry registry.Registry
	store    state.Store
	catalog  *catalog.Catalog
	select_  SelectFunc
	log      corelog.Logger
}

// New builds a Manager using the real Strategy Selector.
func New(reg registry.Registry, store state.Store, cat *catalog.Catalog, log corelog.Logger) *Manager {
	return &Manager{registry: reg, store: store, catalog: cat, select_: selector.Select, log: log}
}

// NewWithSelector builds a Manager with an injected Strategy Selector, for
// tests that substitute a fake Strategy.
func NewWithSelector(reg registry.Registry, store state.Store, cat *catalog.Catalog, log corelog.Logger, sel SelectFunc) *Manager {
	return &Manager{registry: reg, store: store, catalog: cat, select_: sel, log: log}
}
