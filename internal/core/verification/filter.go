package verification

import (
	"sort"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// Blacklist excludes suites ("suite") or single tests ("suite.test") from
// running, globally or for specific entity ids. Matching is exact.
// A nil *Blacklist blacklists nothing.
type Blacklist struct {
	global    map[string]struct{}
	perEntity map[domain.EntityID]map[string]struct{}
}

// NewBlacklist builds a blacklist from global names and names per entity id.
func NewBlacklist(global []string, perEntity map[string][]string) *Blacklist {
	b := &Blacklist{
		global:    toSet(global),
		perEntity: make(map[domain.EntityID]map[string]struct{}, len(perEntity)),
	}
	for id, names := range perEntity {
		b.perEntity[domain.EntityID(id)] = toSet(names)
	}
	return b
}

// IsBlacklisted reports whether name is excluded for entity.
func (b *Blacklist) IsBlacklisted(entity domain.Entity, name string) bool {
	if b == nil {
		return false
	}
	if _, ok := b.global[name]; ok {
		return true
	}
	if names, ok := b.perEntity[entity.ID]; ok {
		if _, ok := names[name]; ok {
			return true
		}
	}
	return false
}

// SuiteWhitelist lists the suites eligible to run at all. Suites are looked
// up by their canonical name as resolved by the Registry.
type SuiteWhitelist struct {
	registry *Registry
	names    map[string]struct{}
}

// NewSuiteWhitelist creates a whitelist of canonical suite names.
func NewSuiteWhitelist(registry *Registry, names ...string) *SuiteWhitelist {
	return &SuiteWhitelist{registry: registry, names: toSet(names)}
}

// Contains reports whether the suite's canonical name is whitelisted.
// Suites unknown to the registry are never contained.
func (w *SuiteWhitelist) Contains(s *Suite) bool {
	name, ok := w.registry.CanonicalName(s)
	if !ok {
		return false
	}
	return w.ContainsName(name)
}

// ContainsName reports whether the canonical name is whitelisted.
func (w *SuiteWhitelist) ContainsName(name string) bool {
	_, ok := w.names[name]
	return ok
}

// Names returns the whitelisted names, sorted.
func (w *SuiteWhitelist) Names() []string {
	out := make([]string, 0, len(w.names))
	for n := range w.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
