// Package attrset synthesizes the attribute set that marks user-authored
// functions in a textual LLVM IR module.
package attrset

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultVersion names DefaultBody. Bump it whenever the body changes so
// run records can tell which payload a module was tagged with.
const DefaultVersion = "x86-64-generic/1"

// DefaultBody is the attribute payload the Wingspan passes select on.
const DefaultBody = `{ nounwind uwtable "min-legal-vector-width"="0" "no-trapping-math"="true" "stack-protector-buffer-size"="8" "target-cpu"="x86-64" "target-features"="+cmov,+cx8,+fxsr,+mmx,+sse,+sse2,+x87" "tune-cpu"="generic" }`

// Profile is a versioned attribute-set body.
type Profile struct {
	Version string `yaml:"version" json:"version"`
	Body    string `yaml:"body" json:"body"`
}

// DefaultProfile returns the built-in profile.
func DefaultProfile() Profile {
	return Profile{Version: DefaultVersion, Body: DefaultBody}
}

// Validate checks that the body fits the single-line
// `attributes #N = { ... }` form.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Version) == "" {
		return errors.New("attribute profile: empty version")
	}
	body := strings.TrimSpace(p.Body)
	if body != p.Body {
		return errors.Newf("attribute profile %s: body has surrounding whitespace", p.Version)
	}
	if strings.ContainsAny(body, "\r\n") {
		return errors.Newf("attribute profile %s: body must be a single line", p.Version)
	}
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		return errors.Newf("attribute profile %s: body must be enclosed in braces", p.Version)
	}
	return nil
}

// MaxIndex is the largest attribute-set index observed in a module, or
// none when Valid is false.
type MaxIndex struct {
	Value int
	Valid bool
}

// NoIndex is the "none observed" sentinel.
var NoIndex = MaxIndex{}

// IndexOf wraps an observed index.
func IndexOf(v int) MaxIndex {
	return MaxIndex{Value: v, Valid: true}
}

func (m MaxIndex) String() string {
	if !m.Valid {
		return "none"
	}
	return fmt.Sprintf("#%d", m.Value)
}

// Set is a synthesized attribute set ready to be declared in a module.
type Set struct {
	Index   int
	Body    string
	Version string
}

// Ref renders the reference used on define lines.
func (s Set) Ref() string {
	return fmt.Sprintf("#%d", s.Index)
}

// Declaration renders the module-level declaration line, without a line
// terminator.
func (s Set) Declaration() string {
	return fmt.Sprintf("attributes #%d = %s", s.Index, s.Body)
}

// Synthesizer hands out attribute sets carrying one fixed profile.
type Synthesizer struct {
	profile Profile
}

// NewSynthesizer validates the profile and returns a synthesizer bound to it.
func NewSynthesizer(p Profile) (*Synthesizer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Synthesizer{profile: p}, nil
}

// Profile returns the profile every synthesized set carries.
func (s *Synthesizer) Profile() Profile {
	return s.profile
}

// Synthesize returns a set whose index is strictly greater than observed,
// or 0 when no index was observed.
func (s *Synthesizer) Synthesize(observed MaxIndex) Set {
	index := 0
	if observed.Valid {
		index = observed.Value + 1
	}
	return Set{Index: index, Body: s.profile.Body, Version: s.profile.Version}
}
