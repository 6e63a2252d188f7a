package accumulate

import (
	"fmt"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
)

// Accumulator folds a stream of field values into one summary value.
//
// Instances are stateful and must not be reused across folds; the aggregator
// constructs a fresh instance per field per fold via a Factory. Get is
// idempotent and side-effect free, and may be called at any time.
type Accumulator interface {
	Accumulate(v any) error
	Get() (any, error)
}

// Factory constructs a fresh accumulator instance.
type Factory func() Accumulator

// Sum ignores nil values and sums the rest. Without an explicit seed an
// all-nil input yields nil, not zero.
type Sum struct {
	total  float64
	seeded bool
}

// NewSum creates a sum accumulator. A seed, when given, is the starting total.
func NewSum(seed ...float64) *Sum {
	s := &Sum{}
	if len(seed) > 0 {
		s.total = seed[0]
		s.seeded = true
	}
	return s
}

func (s *Sum) Accumulate(v any) error {
	if v == nil {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return fmt.Errorf("sum of non-numeric %T: %w", v, domain.ErrAccumulator)
	}
	s.total += f
	s.seeded = true
	return nil
}

func (s *Sum) Get() (any, error) {
	if !s.seeded {
		return nil, nil
	}
	return s.total, nil
}

// Set deduplicates values and returns them sorted, nil last. Growth stops at
// maxSize: the first maxSize distinct values win, later distinct values are
// dropped.
type Set struct {
	maxSize int
	keys    map[string]struct{}
	values  []any
}

// NewSet creates a bounded set accumulator.
func NewSet(maxSize int) *Set {
	return &Set{maxSize: maxSize, keys: make(map[string]struct{})}
}

// Add incorporates one value and reports whether the set changed. Dependent
// accumulators use the report to gate their own state.
func (s *Set) Add(v any) bool {
	key := canonicalKey(v)
	if _, seen := s.keys[key]; seen {
		return false
	}
	if len(s.values) >= s.maxSize {
		return false
	}
	s.keys[key] = struct{}{}
	s.values = append(s.values, v)
	return true
}

// Accumulate incorporates a scalar, or every element of a slice value.
// Whole-structure membership is SetOfDict's job.
func (s *Set) Accumulate(v any) error {
	for _, e := range flatten(v) {
		s.Add(e)
	}
	return nil
}

func (s *Set) Get() (any, error) {
	out := make([]any, len(s.values))
	copy(out, s.values)
	sortValues(out)
	return out, nil
}

// SetOfDict is a Set whose members are nested dicts or lists. Membership is
// decided on a canonical frozen form; Get hands back thawed (deep-copied)
// mutable values.
type SetOfDict struct {
	set *Set
}

// NewSetOfDict creates a bounded set accumulator for structured values.
func NewSetOfDict(maxSize int) *SetOfDict {
	return &SetOfDict{set: NewSet(maxSize)}
}

func (s *SetOfDict) Accumulate(v any) error {
	s.set.Add(deepCopy(v))
	return nil
}

func (s *SetOfDict) Get() (any, error) {
	vs, _ := s.set.Get()
	out := vs.([]any)
	for i, v := range out {
		out[i] = deepCopy(v)
	}
	return out, nil
}

// List appends every value, flattening slice inputs, capped at maxSize.
// Get returns a sorted copy.
type List struct {
	maxSize int
	values  []any
}

// NewList creates a bounded list accumulator.
func NewList(maxSize int) *List {
	return &List{maxSize: maxSize}
}

func (l *List) Accumulate(v any) error {
	for _, e := range flatten(v) {
		if len(l.values) >= l.maxSize {
			break
		}
		l.values = append(l.values, e)
	}
	return nil
}

func (l *List) Get() (any, error) {
	out := make([]any, len(l.values))
	copy(out, l.values)
	sortValues(out)
	return out, nil
}

// KeyFunc derives a retention key from a value.
type KeyFunc func(v any) (string, error)

// Dict retains one value per derived key, a generalized Set. A second value
// under an already-seen key must equal the first; anything else is an
// invariant violation. Capped at maxSize distinct keys.
type Dict struct {
	maxSize int
	keyOf   KeyFunc
	values  map[string]any
	byKey   map[string]string
}

// NewDict creates a bounded keyed accumulator.
func NewDict(maxSize int, keyOf KeyFunc) *Dict {
	return &Dict{
		maxSize: maxSize,
		keyOf:   keyOf,
		values:  make(map[string]any),
		byKey:   make(map[string]string),
	}
}

func (d *Dict) Accumulate(v any) error {
	key, err := d.keyOf(v)
	if err != nil {
		return err
	}
	if prev, seen := d.byKey[key]; seen {
		if prev != canonicalKey(v) {
			return fmt.Errorf("conflicting values for key %q: %w", key, domain.ErrAccumulator)
		}
		return nil
	}
	if len(d.values) >= d.maxSize {
		return nil
	}
	d.byKey[key] = canonicalKey(v)
	d.values[key] = v
	return nil
}

func (d *Dict) Get() (any, error) {
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out, nil
}

// FrequencyRanked counts occurrences, flattening slice inputs, and returns
// the maxSize most frequent distinct values. Ties break by insertion order.
type FrequencyRanked struct {
	maxSize int
	counts  map[string]int
	order   []string
	samples map[string]any
}

// NewFrequencyRanked creates a frequency-ranked accumulator.
func NewFrequencyRanked(maxSize int) *FrequencyRanked {
	return &FrequencyRanked{
		maxSize: maxSize,
		counts:  make(map[string]int),
		samples: make(map[string]any),
	}
}

func (f *FrequencyRanked) Accumulate(v any) error {
	for _, e := range flatten(v) {
		key := canonicalKey(e)
		if _, seen := f.counts[key]; !seen {
			f.order = append(f.order, key)
			f.samples[key] = e
		}
		f.counts[key]++
	}
	return nil
}

func (f *FrequencyRanked) Get() (any, error) {
	ranked := make([]string, len(f.order))
	copy(ranked, f.order)
	// stable by construction: equal counts keep insertion order
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && f.counts[ranked[j]] > f.counts[ranked[j-1]]; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	n := len(ranked)
	if n > f.maxSize {
		n = f.maxSize
	}
	out := make([]any, 0, n)
	for _, key := range ranked[:n] {
		out = append(out, f.samples[key])
	}
	return out, nil
}

// LastValue retains the most recently accumulated value, unconditionally.
type LastValue struct {
	value any
}

// NewLastValue creates a last-value accumulator.
func NewLastValue() *LastValue { return &LastValue{} }

func (l *LastValue) Accumulate(v any) error {
	l.value = v
	return nil
}

func (l *LastValue) Get() (any, error) { return l.value, nil }

// SingleValue is a LastValue that rejects any accumulated value differing
// from the first, where contributions must agree.
type SingleValue struct {
	value any
	seen  bool
}

// NewSingleValue creates a single-value accumulator.
func NewSingleValue() *SingleValue { return &SingleValue{} }

func (s *SingleValue) Accumulate(v any) error {
	if s.seen {
		if canonicalKey(s.value) != canonicalKey(v) {
			return fmt.Errorf("conflicting single values %v and %v: %w",
				s.value, v, domain.ErrAccumulator)
		}
		return nil
	}
	s.value, s.seen = v, true
	return nil
}

func (s *SingleValue) Get() (any, error) { return s.value, nil }

// OptionalValue accepts at most one value; any second accumulation is an
// invariant violation.
type OptionalValue struct {
	value any
	seen  bool
}

// NewOptionalValue creates an optional-value accumulator.
func NewOptionalValue() *OptionalValue { return &OptionalValue{} }

func (o *OptionalValue) Accumulate(v any) error {
	if o.seen {
		return fmt.Errorf("second value %v for optional field: %w", v, domain.ErrAccumulator)
	}
	o.value, o.seen = v, true
	return nil
}

func (o *OptionalValue) Get() (any, error) { return o.value, nil }

// MandatoryValue is an OptionalValue whose Get fails when no value was ever
// accumulated.
type MandatoryValue struct {
	OptionalValue
}

// NewMandatoryValue creates a mandatory-value accumulator.
func NewMandatoryValue() *MandatoryValue { return &MandatoryValue{} }

func (m *MandatoryValue) Get() (any, error) {
	if !m.seen {
		return nil, fmt.Errorf("mandatory value never accumulated: %w", domain.ErrAccumulator)
	}
	return m.value, nil
}

// Prioritized pairs a value with its priority for PriorityOptionalValue.
type Prioritized struct {
	Priority float64
	Value    any
}

// PriorityOptionalValue retains the value with the highest priority seen so
// far, discarding lower-priority state when a higher priority arrives. The
// first value at the winning priority sticks.
type PriorityOptionalValue struct {
	priority float64
	value    any
	seen     bool
}

// NewPriorityOptionalValue creates a priority-ranked optional-value accumulator.
func NewPriorityOptionalValue() *PriorityOptionalValue { return &PriorityOptionalValue{} }

func (p *PriorityOptionalValue) Accumulate(v any) error {
	pv, ok := v.(Prioritized)
	if !ok {
		return fmt.Errorf("expected Prioritized, got %T: %w", v, domain.ErrAccumulator)
	}
	if !p.seen || pv.Priority > p.priority {
		p.priority, p.value, p.seen = pv.Priority, pv.Value, true
	}
	return nil
}

func (p *PriorityOptionalValue) Get() (any, error) { return p.value, nil }

// Min tracks the smallest non-nil value seen.
type Min struct {
	value any
	seen  bool
}

// NewMin creates a minimum accumulator.
func NewMin() *Min { return &Min{} }

func (m *Min) Accumulate(v any) error {
	if v == nil {
		return nil
	}
	if !m.seen || compareValues(v, m.value) < 0 {
		m.value, m.seen = v, true
	}
	return nil
}

func (m *Min) Get() (any, error) { return m.value, nil }

// Max tracks the largest non-nil value seen.
type Max struct {
	value any
	seen  bool
}

// NewMax creates a maximum accumulator.
func NewMax() *Max { return &Max{} }

func (m *Max) Accumulate(v any) error {
	if v == nil {
		return nil
	}
	if !m.seen || compareValues(v, m.value) > 0 {
		m.value, m.seen = v, true
	}
	return nil
}

func (m *Max) Get() (any, error) { return m.value, nil }

// DistinctByKey forwards only the first value seen for each derived key into
// an inner accumulator. Its own key set is bounded; values whose key falls
// outside the cap are dropped.
type DistinctByKey struct {
	keys  *Set
	keyOf KeyFunc
	inner Accumulator
}

// NewDistinctByKey creates a key-deduplicating wrapper around inner.
func NewDistinctByKey(maxKeys int, keyOf KeyFunc, inner Accumulator) *DistinctByKey {
	return &DistinctByKey{keys: NewSet(maxKeys), keyOf: keyOf, inner: inner}
}

func (d *DistinctByKey) Accumulate(v any) error {
	key, err := d.keyOf(v)
	if err != nil {
		return err
	}
	if !d.keys.Add(key) {
		return nil
	}
	return d.inner.Accumulate(v)
}

func (d *DistinctByKey) Get() (any, error) { return d.inner.Get() }

// UniqueValueCount reports the cardinality of the distinct values seen.
type UniqueValueCount struct {
	set *Set
}

// NewUniqueValueCount creates a distinct-value counter.
func NewUniqueValueCount(maxSize int) *UniqueValueCount {
	return &UniqueValueCount{set: NewSet(maxSize)}
}

func (u *UniqueValueCount) Accumulate(v any) error {
	return u.set.Accumulate(v)
}

func (u *UniqueValueCount) Get() (any, error) {
	vs, _ := u.set.Get()
	return len(vs.([]any)), nil
}
