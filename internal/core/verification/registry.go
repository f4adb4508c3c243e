package verification

import (
	"fmt"
	"sync"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// TestFactory constructs a test instance.
type TestFactory func() Test

type testEntry struct {
	name    string
	factory TestFactory
}

// Registry maps canonical names to test factories and built suites back to
// their canonical names. Registration happens once at startup; lookups are
// safe for concurrent use afterwards.
type Registry struct {
	mu         sync.RWMutex
	suiteOrder []string
	tests      map[string][]testEntry
	qualified  map[string]bool
	instances  map[*Suite]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tests:     make(map[string][]testEntry),
		qualified: make(map[string]bool),
		instances: make(map[*Suite]string),
	}
}

// Register adds a test factory under suite.test. Suites are created on first
// use and keep registration order, as do tests within a suite. Registering
// the same qualified name twice, or an invalid name, panics.
func (r *Registry) Register(suite, test string, factory TestFactory) {
	if err := validateName(suite); err != nil {
		panic(domain.Violation("register suite: %v", err))
	}
	if err := validateName(test); err != nil {
		panic(domain.Violation("register test in %s: %v", suite, err))
	}
	if factory == nil {
		panic(domain.Violation("register %s: nil factory", QualifiedName(suite, test)))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	q := QualifiedName(suite, test)
	if r.qualified[q] {
		panic(domain.Violation("test %s registered twice", q))
	}
	if _, ok := r.tests[suite]; !ok {
		r.suiteOrder = append(r.suiteOrder, suite)
	}
	r.tests[suite] = append(r.tests[suite], testEntry{name: test, factory: factory})
	r.qualified[q] = true
}

// SuiteNames returns canonical suite names in registration order.
func (r *Registry) SuiteNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.suiteOrder...)
}

// TestNames returns the qualified test names of a suite in registration order.
func (r *Registry) TestNames(suite string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.tests[suite]
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = QualifiedName(suite, e.name)
	}
	return out
}

// HasName reports whether name is a registered suite or qualified test name.
func (r *Registry) HasName(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.tests[name]; ok {
		return true
	}
	return r.qualified[name]
}

// BuildSuite constructs a fresh suite instance for a registered suite name.
func (r *Registry) BuildSuite(name string) (*Suite, error) {
	r.mu.RLock()
	entries, ok := r.tests[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown suite %q", name)
	}

	tests := make([]Test, 0, len(entries))
	for _, e := range entries {
		t := e.factory()
		if t == nil {
			return nil, fmt.Errorf("factory for %s returned nil", QualifiedName(name, e.name))
		}
		if t.Name() != e.name {
			return nil, fmt.Errorf("factory for %s built test named %q", QualifiedName(name, e.name), t.Name())
		}
		tests = append(tests, t)
	}

	suite := NewSuite(name, tests...)
	r.mu.Lock()
	r.instances[suite] = name
	r.mu.Unlock()
	return suite, nil
}

// BuildAll constructs every registered suite in registration order.
func (r *Registry) BuildAll() ([]*Suite, error) {
	var suites []*Suite
	for _, name := range r.SuiteNames() {
		s, err := r.BuildSuite(name)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// Build constructs the whitelisted suites in registration order. A
// whitelisted name the registry does not know is an error.
func (r *Registry) Build(w *SuiteWhitelist) ([]*Suite, error) {
	r.mu.RLock()
	for _, name := range w.Names() {
		if _, ok := r.tests[name]; !ok {
			r.mu.RUnlock()
			return nil, fmt.Errorf("unknown suite %q", name)
		}
	}
	r.mu.RUnlock()
	var suites []*Suite
	for _, name := range r.SuiteNames() {
		if !w.ContainsName(name) {
			continue
		}
		s, err := r.BuildSuite(name)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// CanonicalName resolves a suite built by this registry to its name.
func (r *Registry) CanonicalName(s *Suite) (string, bool) {
	if s == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.instances[s]
	return name, ok
}

// CanonicalTestName resolves a test of a suite built by this registry to
// its qualified name.
func (r *Registry) CanonicalTestName(s *Suite, t Test) (string, bool) {
	name, ok := r.CanonicalName(s)
	if !ok || t == nil {
		return "", false
	}
	q := QualifiedName(name, t.Name())
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.qualified[q] {
		return "", false
	}
	return q, true
}
