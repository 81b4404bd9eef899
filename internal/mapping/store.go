package mapping

import (
	"context"
	"sort"
	"sync"
)

// Store persists rules. Put replaces the rule with the same key.
type Store interface {
	Get(ctx context.Context, key Key) (Rule, bool, error)
	Put(ctx context.Context, rule Rule) error
	List(ctx context.Context) ([]Rule, error)
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	rules map[Key]*Rule
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{rules: make(map[Key]*Rule)}
}

// Get returns a copy of the rule stored under key.
func (m *Memory) Get(_ context.Context, key Key) (Rule, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[key]
	if !ok {
		return Rule{}, false, nil
	}
	return r.clone(), true, nil
}

// Put stores a copy of rule.
func (m *Memory) Put(_ context.Context, rule Rule) error {
	c := rule.clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.Key()] = &c
	return nil
}

// List returns copies of all rules in key order.
func (m *Memory) List(_ context.Context) ([]Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Rule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r.clone())
	}
	sortRules(out)
	return out, nil
}

// sortRules orders by integration, then KeyOrder precedence, then value.
func sortRules(rules []Rule) {
	rank := make(map[FieldType]int, len(KeyOrder))
	for i, t := range KeyOrder {
		rank[t] = i
	}
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.IntegrationID != b.IntegrationID {
			return a.IntegrationID < b.IntegrationID
		}
		if a.SourceFieldType != b.SourceFieldType {
			return rank[a.SourceFieldType] < rank[b.SourceFieldType]
		}
		return a.SourceFieldValue < b.SourceFieldValue
	})
}
