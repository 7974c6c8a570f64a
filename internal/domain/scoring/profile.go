// Package scoring implements the synergy scoring engine: use-case profiles
// that declare feature weights, synergy and anti-synergy combinations, hard
// requirements and disqualifiers; and the scorer that turns a feature record
// plus a profile into a bounded utilization score with an explainable term
// breakdown.
package scoring

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// Synergy declares a feature combination and the bonus applied when every
// named feature is truthy on the record.  A negative bonus expresses an
// anti-synergy (conflicting combination).
type Synergy struct {
	Features []string
	Bonus    float64
}

// Name renders the canonical term name for the combination, e.g.
// "coastal+industrial_zone".
func (s Synergy) Name() string {
	return strings.Join(s.Features, "+")
}

// Profile is a use-case scoring profile.  Weights apply per feature; synergies
// fire when all their features are truthy; requirements subtract a fixed
// penalty when absent; any truthy disqualifier forces the minimum score.
type Profile struct {
	Name        string
	Title       string
	Description string

	Weights       map[string]float64
	Synergies     []Synergy
	AntiSynergies []Synergy
	Requirements  []string
	Disqualifiers []string

	// Domains overrides the normalization cap for numeric features, keyed by
	// feature name.  Absent keys fall back to the schema domain.
	Domains map[string]float64
}

// Validate checks the structural invariants of a profile.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New(errors.ErrCodeProfileInvalid, "profile name must not be empty")
	}
	for _, s := range p.Synergies {
		if len(s.Features) < 2 {
			return errors.New(errors.ErrCodeProfileInvalid,
				fmt.Sprintf("profile %s: synergy %q needs at least two features", p.Name, s.Name()))
		}
	}
	for _, s := range p.AntiSynergies {
		if len(s.Features) < 2 {
			return errors.New(errors.ErrCodeProfileInvalid,
				fmt.Sprintf("profile %s: anti-synergy %q needs at least two features", p.Name, s.Name()))
		}
		if s.Bonus > 0 {
			return errors.New(errors.ErrCodeProfileInvalid,
				fmt.Sprintf("profile %s: anti-synergy %q must carry a non-positive bonus", p.Name, s.Name()))
		}
	}
	for key, d := range p.Domains {
		if d <= 0 {
			return errors.New(errors.ErrCodeProfileInvalid,
				fmt.Sprintf("profile %s: normalization domain for %q must be > 0, got %g", p.Name, key, d))
		}
	}
	return nil
}

// domainFor resolves the normalization cap for a numeric feature: profile
// override first, then the schema default.
func (p *Profile) domainFor(key string) float64 {
	if d, ok := p.Domains[key]; ok && d > 0 {
		return d
	}
	return feature.DomainFor(key)
}

// Registry holds the named profiles available to the scorer.  It is populated
// with the built-in profiles at construction and may be extended or overridden
// from configuration at startup.  All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewRegistry returns a Registry pre-loaded with the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]*Profile)}
	for _, p := range builtinProfiles() {
		r.profiles[p.Name] = p
	}
	return r
}

// Register validates and installs a profile, replacing any same-named entry.
// Registering over a built-in name overrides the built-in.
func (r *Registry) Register(p *Profile) error {
	if p == nil {
		return errors.New(errors.ErrCodeProfileInvalid, "profile must not be nil")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.profiles[p.Name] = p
	r.mu.Unlock()
	return nil
}

// Get returns the profile registered under name.  Unknown names are a
// configuration error per the platform error taxonomy.
func (r *Registry) Get(name string) (*Profile, error) {
	r.mu.RLock()
	p, ok := r.profiles[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeProfileUnknown,
			fmt.Sprintf("unknown scoring profile %q", name))
	}
	return p, nil
}

// Names returns every registered profile name in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns every registered profile ordered by name.
func (r *Registry) List() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
