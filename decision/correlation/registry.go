// Package correlation holds the log-quadratic purchased-cost correlations
// log10(Cp) = K1 + K2*log10(S) + K3*log10(S)^2, one per category and subtype.
package correlation

import (
	"math"
	"sort"
	"sync"

	"process-capex/pkg/equipment"
	costerrors "process-capex/pkg/errors"
)

// SizeBasis is the unit of the sizing variable S.
type SizeBasis string

const (
	BasisKilowatt    SizeBasis = "kW"
	BasisHorsepower  SizeBasis = "hp"
	BasisCubicMPerS  SizeBasis = "m3/s"
	BasisSquareMeter SizeBasis = "m2"
)

// Coefficients of one correlation.
type Coefficients struct {
	K1        float64   `json:"k1"`
	K2        float64   `json:"k2"`
	K3        float64   `json:"k3"`
	SizeBasis SizeBasis `json:"size_basis"`
}

// PurchasedCost evaluates the correlation at size s (in SizeBasis units) and
// returns the purchased cost at the correlation's base index.
func (c Coefficients) PurchasedCost(s float64) (float64, error) {
	if !(s > 0) || math.IsInf(s, 0) {
		return 0, costerrors.NewInputValidationError("correlation size must be strictly positive, got %g %s", s, c.SizeBasis)
	}
	l := math.Log10(s)
	return math.Pow(10, c.K1+c.K2*l+c.K3*l*l), nil
}

// Limits is the validated size range in SizeBasis units. Zero means unbounded.
type Limits struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Entry is one registered correlation.
type Entry struct {
	Category     equipment.Category `json:"category"`
	Subtype      equipment.Subtype  `json:"subtype"`
	Coefficients Coefficients       `json:"coefficients"`
	Limits       Limits             `json:"limits"`
}

type key struct {
	category equipment.Category
	subtype  equipment.Subtype
}

// Registry maps category/subtype to correlations. It is filled at startup
// and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[key]Entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[key]Entry)}
}

// NewDefaultRegistry creates a registry holding the published correlation table
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// Register adds or replaces the coefficients for a category/subtype.
// Existing limits are kept.
func (r *Registry) Register(category equipment.Category, subtype equipment.Subtype, coeff Coefficients) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{category, subtype}
	e := r.entries[k]
	e.Category, e.Subtype, e.Coefficients = category, subtype, coeff
	r.entries[k] = e
}

// SetLimits records the validated size range of a registered correlation.
func (r *Registry) SetLimits(category equipment.Category, subtype equipment.Subtype, lim Limits) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{category, subtype}
	e, ok := r.entries[k]
	if !ok {
		return costerrors.NewNotRegisteredError(string(category), string(subtype), nil)
	}
	e.Limits = lim
	r.entries[k] = e
	return nil
}

// Lookup returns the coefficients for a category/subtype. A missing entry is
// a NOT_REGISTERED error listing the subtypes that do exist.
func (r *Registry) Lookup(category equipment.Category, subtype equipment.Subtype) (Coefficients, error) {
	e, err := r.Entry(category, subtype)
	if err != nil {
		return Coefficients{}, err
	}
	return e.Coefficients, nil
}

// Entry returns the full registration for a category/subtype.
func (r *Registry) Entry(category equipment.Category, subtype equipment.Subtype) (Entry, error) {
	r.mu.RLock()
	e, ok := r.entries[key{category, subtype}]
	r.mu.RUnlock()
	if !ok {
		var avail []string
		for _, s := range r.Subtypes(category) {
			avail = append(avail, string(s))
		}
		return Entry{}, costerrors.NewNotRegisteredError(string(category), string(subtype), avail)
	}
	return e, nil
}

// Subtypes lists the registered subtypes of a category, sorted.
func (r *Registry) Subtypes(category equipment.Category) []equipment.Subtype {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []equipment.Subtype
	for k := range r.entries {
		if k.category == category {
			out = append(out, k.subtype)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Entries returns every registration ordered by category then subtype.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Subtype < out[j].Subtype
	})
	return out
}
