package rendercache

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// MaxAge is the number of seconds a value stays valid after it was stored.
// Permanent means valid until one of its tags is invalidated; 0 means never cacheable.
type MaxAge int64

const (
	Permanent   MaxAge = -1
	Uncacheable MaxAge = 0
)

// MaxSeconds is the largest bounded max-age; longer ones do not fit a time.Duration.
// Use Permanent for "until invalidated".
const MaxSeconds MaxAge = MaxAge(math.MaxInt64 / int64(time.Second))

// NewMaxAge validates seconds. Negative values other than Permanent and values above
// MaxSeconds are rejected.
func NewMaxAge(seconds int64) (MaxAge, error) {
	m := MaxAge(seconds)
	if err := m.validate(); err != nil {
		return 0, err
	}
	return m, nil
}

func (m MaxAge) validate() error {
	if m < 0 && m != Permanent {
		return &ValidationError{Field: "max-age", Value: strconv.FormatInt(int64(m), 10), Reason: "negative max-age"}
	}
	if m > MaxSeconds {
		return &ValidationError{Field: "max-age", Value: strconv.FormatInt(int64(m), 10), Reason: "max-age too large, use Permanent"}
	}
	return nil
}

func (m MaxAge) IsPermanent() bool { return m == Permanent }

// Cacheable reports whether a value with this max-age may be stored at all.
func (m MaxAge) Cacheable() bool { return m != Uncacheable }

// Duration converts to a provider TTL. Permanent maps to 0 (no expiry).
func (m MaxAge) Duration() time.Duration {
	if m <= 0 {
		return 0
	}
	return time.Duration(m) * time.Second
}

func (m MaxAge) String() string {
	if m == Permanent {
		return "permanent"
	}
	return strconv.FormatInt(int64(m), 10)
}

// MergeMaxAge returns the stricter of a and b: Permanent compares as +inf and 0 absorbs.
func MergeMaxAge(a, b MaxAge) MaxAge {
	switch {
	case a == Permanent:
		return b
	case b == Permanent:
		return a
	case a < b:
		return a
	default:
		return b
	}
}

// Metadata describes how long a value is valid (max-age), what invalidates it (tags)
// and which request dimensions it varies by (contexts).
//
// The zero value is permanent with no tags and no contexts. Metadata is a value type;
// every method returns a new Metadata and never mutates the receiver's sets.
type Metadata struct {
	// bounded is false for the zero value so that Metadata{} reads as Permanent.
	bounded  bool
	maxAge   MaxAge
	tags     []string
	contexts []string
}

// NewMetadata builds validated metadata. Tags and contexts are de-duplicated and sorted.
func NewMetadata(maxAge MaxAge, tags, contexts []string) (Metadata, error) {
	if err := maxAge.validate(); err != nil {
		return Metadata{}, err
	}
	t, err := normalize("tag", tags)
	if err != nil {
		return Metadata{}, err
	}
	cx, err := normalize("context", contexts)
	if err != nil {
		return Metadata{}, err
	}
	m := Metadata{tags: t, contexts: cx}
	m.setMaxAge(maxAge)
	return m, nil
}

// MustMetadata is like NewMetadata but panics on invalid input.
// Meant for static declarations.
func MustMetadata(maxAge MaxAge, tags, contexts []string) Metadata {
	m, err := NewMetadata(maxAge, tags, contexts)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metadata) setMaxAge(a MaxAge) {
	m.bounded = a != Permanent
	m.maxAge = a
}

func (m Metadata) MaxAge() MaxAge {
	if !m.bounded {
		return Permanent
	}
	return m.maxAge
}

// Tags returns a copy of the sorted tag set.
func (m Metadata) Tags() []string { return clone(m.tags) }

// Contexts returns a copy of the sorted context set.
func (m Metadata) Contexts() []string { return clone(m.contexts) }

func (m Metadata) Cacheable() bool { return m.MaxAge().Cacheable() }

// WithMaxAge returns m with its max-age replaced.
func (m Metadata) WithMaxAge(a MaxAge) (Metadata, error) {
	if err := a.validate(); err != nil {
		return Metadata{}, err
	}
	out := m.copy()
	out.setMaxAge(a)
	return out, nil
}

// AddTags returns m with tags added to its tag set.
func (m Metadata) AddTags(tags ...string) (Metadata, error) {
	t, err := normalize("tag", tags)
	if err != nil {
		return Metadata{}, err
	}
	out := m.copy()
	out.tags = union(m.tags, t)
	return out, nil
}

// AddContexts returns m with contexts added to its context set.
func (m Metadata) AddContexts(contexts ...string) (Metadata, error) {
	cx, err := normalize("context", contexts)
	if err != nil {
		return Metadata{}, err
	}
	out := m.copy()
	out.contexts = union(m.contexts, cx)
	return out, nil
}

// Merge combines m with o: the stricter max-age and the union of tags and contexts.
func (m Metadata) Merge(o Metadata) Metadata {
	out := Metadata{
		tags:     union(m.tags, o.tags),
		contexts: union(m.contexts, o.contexts),
	}
	out.setMaxAge(MergeMaxAge(m.MaxAge(), o.MaxAge()))
	return out
}

// Merge folds all of ms into one Metadata. Merging nothing yields the zero value.
func Merge(ms ...Metadata) Metadata {
	var out Metadata
	for _, m := range ms {
		out = out.Merge(m)
	}
	return out
}

func (m Metadata) Equal(o Metadata) bool {
	return m.MaxAge() == o.MaxAge() && equalSets(m.tags, o.tags) && equalSets(m.contexts, o.contexts)
}

func (m Metadata) copy() Metadata {
	return Metadata{bounded: m.bounded, maxAge: m.maxAge, tags: clone(m.tags), contexts: clone(m.contexts)}
}

func normalize(field string, in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			return nil, &ValidationError{Field: field, Reason: "empty " + field}
		}
		out = append(out, s)
	}
	sort.Strings(out)
	return dedupSorted(out), nil
}

func dedupSorted(s []string) []string {
	if len(s) < 2 {
		return s
	}
	w := 1
	for i := 1; i < len(s); i++ {
		if s[i] != s[w-1] {
			s[w] = s[i]
			w++
		}
	}
	return s[:w]
}

// union merges two sorted, de-duplicated sets.
func union(a, b []string) []string {
	if len(a) == 0 {
		return clone(b)
	}
	if len(b) == 0 {
		return clone(a)
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func clone(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
