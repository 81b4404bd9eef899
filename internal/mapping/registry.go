package mapping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/logging"
	"github.com/rshade/ghgfocus/internal/validation"
)

// Integration is the registry's view of a connected external system.
type Integration struct {
	ID        string
	CompanyID string
	Connected bool
}

// Directory looks up integrations by id.
type Directory interface {
	Integration(ctx context.Context, id string) (Integration, bool)
}

// StaticDirectory is a Directory over a fixed set of integrations.
type StaticDirectory map[string]Integration

// Integration returns the integration with the given id.
func (d StaticDirectory) Integration(_ context.Context, id string) (Integration, bool) {
	in, ok := d[id]
	return in, ok
}

// Caller identifies who is changing rules and for which organization.
// An empty CompanyID is a system caller allowed to manage every integration.
type Caller struct {
	CompanyID string
	Actor     string
}

// Group is the active rule set of one integration.
type Group struct {
	IntegrationID string
	Rules         []Rule
}

// UpsertResult reports which rules were applied and which were rejected.
// A rejected rule never prevents the others from being applied.
type UpsertResult struct {
	Applied []Rule
	Errors  []*RuleError
}

// Registry resolves and maintains mapping rules on top of a Store.
type Registry struct {
	store Store
	dir   Directory
	now   func() time.Time
}

// NewRegistry returns a Registry. A nil dir accepts no integrations.
func NewRegistry(store Store, dir Directory) *Registry {
	if dir == nil {
		dir = StaticDirectory{}
	}
	return &Registry{store: store, dir: dir, now: time.Now}
}

// Resolve returns the active rule for an exact key match.
// A missing or deactivated rule yields an error wrapping ghg.ErrMappingNotFound.
func (r *Registry) Resolve(ctx context.Context, fieldType FieldType, value, integrationID string) (Rule, error) {
	key := Key{IntegrationID: integrationID, FieldType: fieldType, Value: value}
	rule, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return Rule{}, fmt.Errorf("resolving %s: %w", key, err)
	}
	if !ok || !rule.Active {
		return Rule{}, fmt.Errorf("%w: %s", ghg.ErrMappingNotFound, key)
	}
	return rule, nil
}

// Upsert creates or updates each rule keyed on (integration, field type, value).
//
// Each rule is applied on its own: invalid or unauthorized rules are reported in
// the result and the rest still apply. Upserting a rule identical to the active
// one changes nothing, history included. Upsert always leaves the rule active.
// The returned error is reserved for store failures.
func (r *Registry) Upsert(ctx context.Context, caller Caller, rules []Rule) (UpsertResult, error) {
	logger := logging.FromContext(ctx).With().
		Str("component", "mapping").
		Str("operation", "upsert").
		Logger()

	var result UpsertResult
	for i := range rules {
		in := rules[i]
		applied, err := r.upsertOne(ctx, caller, in)
		if err != nil {
			var storeErr *storeError
			if errors.As(err, &storeErr) {
				return result, storeErr.err
			}
			logger.Warn().Err(err).Str("rule", in.Key().String()).Msg("rejected mapping rule")
			result.Errors = append(result.Errors, &RuleError{Index: i, Key: in.Key(), Err: err})
			continue
		}
		logger.Debug().Str("rule", in.Key().String()).Msg("applied mapping rule")
		result.Applied = append(result.Applied, applied)
	}
	return result, nil
}

// storeError marks failures that abort an Upsert batch.
type storeError struct{ err error }

func (e *storeError) Error() string { return e.err.Error() }

func (r *Registry) upsertOne(ctx context.Context, caller Caller, in Rule) (Rule, error) {
	in.Active = true
	if err := validation.Struct(&in); err != nil {
		return Rule{}, fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}
	if in.UnitConversion != nil && in.UnitConversion.Factor.IsNegative() {
		return Rule{}, fmt.Errorf("%w: negative conversion factor", ErrInvalidRule)
	}
	if err := ghg.ValidateCategory(in.TargetScope, in.TargetCategory); err != nil {
		return Rule{}, fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}
	if in.TargetScope == ghg.Scope2 && in.CalculationMethod == "" {
		in.CalculationMethod = ghg.MethodLocationBased
	}
	if in.TargetScope != ghg.Scope2 && in.CalculationMethod != "" {
		return Rule{}, fmt.Errorf("%w: only scope 2 rules carry a calculation method", ErrInvalidRule)
	}
	if err := r.authorize(ctx, caller, in.IntegrationID); err != nil {
		return Rule{}, err
	}

	existing, found, err := r.store.Get(ctx, in.Key())
	if err != nil {
		return Rule{}, &storeError{err: fmt.Errorf("loading rule %s: %w", in.Key(), err)}
	}

	now := r.now()
	switch {
	case !found:
		in.CreatedAt = now
		in.UpdatedAt = now
		in.History = []Event{{Action: ActionCreated, Actor: caller.Actor, Timestamp: now}}
	case existing.Active && existing.sameTarget(&in):
		return existing, nil
	default:
		action := ActionUpdated
		if !existing.Active {
			action = ActionReactivated
		}
		in.CreatedAt = existing.CreatedAt
		in.UpdatedAt = now
		in.History = append(existing.History, Event{Action: action, Actor: caller.Actor, Timestamp: now})
	}

	if err := r.store.Put(ctx, in); err != nil {
		return Rule{}, &storeError{err: fmt.Errorf("saving rule %s: %w", in.Key(), err)}
	}
	return in.clone(), nil
}

// Deactivate soft-deletes a rule by clearing Active. The rule and its history
// stay in the store. Deactivating an inactive rule is a no-op.
func (r *Registry) Deactivate(ctx context.Context, caller Caller, key Key) (Rule, error) {
	if err := r.authorize(ctx, caller, key.IntegrationID); err != nil {
		return Rule{}, err
	}
	rule, found, err := r.store.Get(ctx, key)
	if err != nil {
		return Rule{}, fmt.Errorf("loading rule %s: %w", key, err)
	}
	if !found {
		return Rule{}, fmt.Errorf("%w: %s", ghg.ErrMappingNotFound, key)
	}
	if !rule.Active {
		return rule, nil
	}

	now := r.now()
	rule.Active = false
	rule.UpdatedAt = now
	rule.History = append(rule.History, Event{Action: ActionDeactivated, Actor: caller.Actor, Timestamp: now})
	if putErr := r.store.Put(ctx, rule); putErr != nil {
		return Rule{}, fmt.Errorf("saving rule %s: %w", key, putErr)
	}

	logging.FromContext(ctx).Info().
		Str("component", "mapping").
		Str("rule", key.String()).
		Msg("deactivated mapping rule")
	return rule, nil
}

// ListActive returns active rules grouped by integration, in integration id
// order. A non-empty integrationID restricts the result to that integration.
func (r *Registry) ListActive(ctx context.Context, integrationID string) ([]Group, error) {
	return r.list(ctx, integrationID, false)
}

// ListAll is ListActive including deactivated rules.
func (r *Registry) ListAll(ctx context.Context, integrationID string) ([]Group, error) {
	return r.list(ctx, integrationID, true)
}

func (r *Registry) list(ctx context.Context, integrationID string, includeInactive bool) ([]Group, error) {
	rules, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}

	byIntegration := make(map[string][]Rule)
	for _, rule := range rules {
		if integrationID != "" && rule.IntegrationID != integrationID {
			continue
		}
		if !rule.Active && !includeInactive {
			continue
		}
		byIntegration[rule.IntegrationID] = append(byIntegration[rule.IntegrationID], rule)
	}

	groups := make([]Group, 0, len(byIntegration))
	for id, rs := range byIntegration {
		sortRules(rs)
		groups = append(groups, Group{IntegrationID: id, Rules: rs})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].IntegrationID < groups[j].IntegrationID })
	return groups, nil
}

func (r *Registry) authorize(ctx context.Context, caller Caller, integrationID string) error {
	in, ok := r.dir.Integration(ctx, integrationID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownIntegration, integrationID)
	}
	if caller.CompanyID != "" && in.CompanyID != caller.CompanyID {
		return fmt.Errorf("%w: %q belongs to %q", ErrUnauthorized, integrationID, in.CompanyID)
	}
	return nil
}
