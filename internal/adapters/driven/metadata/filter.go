package metadata

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// applyFiltersAndCollectFailures applies all configured filters and
// collects which filters would reduce the entity set to zero.
func applyFiltersAndCollectFailures(entities []domain.EntityMetadata, o *metadataOptions) ([]domain.EntityMetadata, []string) {
	var failures []string

	if len(o.entityTypes) > 0 {
		filtered := filterEntityTypes(entities, o.entityTypes)
		if len(filtered) == 0 {
			failures = append(failures, fmt.Sprintf("entity types %v", keys(o.entityTypes)))
		} else {
			entities = filtered
		}
	}

	if o.entityFilter != "" {
		filtered := filterEntities(entities, o.entityFilter)
		if len(filtered) == 0 {
			failures = append(failures, fmt.Sprintf("filter pattern %q", o.entityFilter))
		} else {
			entities = filtered
		}
	}

	if o.registrationAuthorityFilter != "" {
		filtered := FilterByRegistrationAuthority(entities, o.registrationAuthorityFilter)
		if len(filtered) == 0 {
			failures = append(failures, fmt.Sprintf("registration authority filter %q", o.registrationAuthorityFilter))
		} else {
			entities = filtered
		}
	}

	return entities, failures
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func filterEntityTypes(entities []domain.EntityMetadata, types map[string]bool) []domain.EntityMetadata {
	var filtered []domain.EntityMetadata
	for _, e := range entities {
		if types[string(e.Type)] {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// filterEntities returns only entities whose entity ID matches the pattern.
func filterEntities(entities []domain.EntityMetadata, pattern string) []domain.EntityMetadata {
	var filtered []domain.EntityMetadata
	for _, e := range entities {
		if domain.MatchesEntityIDPattern(e.EntityID, pattern) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// FilterByRegistrationAuthority returns only entities whose registration
// authority matches one of the comma-separated patterns. Entities without a
// registration authority are excluded when a filter is active.
func FilterByRegistrationAuthority(entities []domain.EntityMetadata, pattern string) []domain.EntityMetadata {
	if strings.TrimSpace(pattern) == "" {
		return entities
	}

	var patterns []string
	for _, p := range strings.Split(pattern, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}

	var filtered []domain.EntityMetadata
	for _, e := range entities {
		if e.RegistrationAuthority == "" {
			continue
		}
		for _, p := range patterns {
			if domain.MatchesEntityIDPattern(e.RegistrationAuthority, p) {
				filtered = append(filtered, e)
				break
			}
		}
	}
	return filtered
}

// resolveMetadataURLs fills MetadataURL: configured override first, then
// AdditionalMetadataLocation, then the entity ID when it is an https URL.
func resolveMetadataURLs(entities []domain.EntityMetadata, overrides map[string]string) {
	for i := range entities {
		e := &entities[i]
		if u, ok := overrides[e.EntityID]; ok && u != "" {
			e.MetadataURL = u
			continue
		}
		if e.MetadataURL != "" {
			continue
		}
		if u, err := url.Parse(e.EntityID); err == nil && strings.EqualFold(u.Scheme, "https") && u.Host != "" {
			e.MetadataURL = e.EntityID
		}
	}
}
