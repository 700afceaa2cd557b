// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"sort"
)

// FakeRegistry is an in-memory Registry for tests.
type FakeRegistry struct {
	Branches map[string]Branch
}

func NewFakeRegistry(branches ...Branch) *FakeRegistry {
	m := make(map[string]Branch, len(branches))
	for _, b := range branches {
		m[b.ID] = b
	}
	return &FakeRegistry{Branches: m}
}

func (f *FakeRegistry) Get(ctx context.Context, branchID string) (Branch, error) {
	b, ok := f.Branches[branchID]
	if !ok {
		return Branch{}, ErrBranchNotFound
	}
	return b, nil
}

func (f *FakeRegistry) ListActive(ctx context.Context) ([]Branch, error) {
	var out []Branch
	for _, b := range f.Branches {
		if b.Active {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
