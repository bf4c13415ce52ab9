package domain

import "fmt"

// Party is a registered list running in the election. The ballot letter
// code is its identity; Name is display metadata only.
type Party struct {
	// Name is the human-readable party name.
	Name string `json:"name" validate:"required"`

	// Code is the ballot letter code printed on the party's slips. It is the
	// canonical key for every per-party mapping in the system.
	Code string `json:"code" validate:"required"`
}

// String renders the party the way operators see it in the console,
// e.g. "Labor (AMT)".
func (p Party) String() string { return fmt.Sprintf("%s (%s)", p.Name, p.Code) }

// PartyRegistry is the immutable set of known parties keyed by letter code.
// It remembers registry order, which is used as the deterministic tie-break
// wherever parties are listed.
type PartyRegistry struct {
	parties []Party
	index   map[string]int
}

// NewPartyRegistry builds a registry from parties in input order.
// It fails with a *DuplicateKeyError if a letter code repeats and with a
// *ValidationError if any entry has an empty name or code.
func NewPartyRegistry(parties []Party) (*PartyRegistry, error) {
	verr := NewValidationError("PartyRegistry")
	r := &PartyRegistry{
		parties: make([]Party, 0, len(parties)),
		index:   make(map[string]int, len(parties)),
	}

	for i, p := range parties {
		if p.Code == "" {
			verr.AddError(fmt.Sprintf("entry %d (%q) has an empty letter code", i, p.Name))
			continue
		}
		if p.Name == "" {
			verr.AddError(fmt.Sprintf("entry %d (%q) has an empty name", i, p.Code))
			continue
		}
		if j, ok := r.index[p.Code]; ok {
			return nil, &DuplicateKeyError{Code: p.Code, First: r.parties[j], Second: p}
		}
		r.index[p.Code] = len(r.parties)
		r.parties = append(r.parties, p)
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return r, nil
}

// Len returns the number of registered parties.
func (r *PartyRegistry) Len() int { return len(r.parties) }

// Lookup returns the party registered under code.
func (r *PartyRegistry) Lookup(code string) (Party, bool) {
	i, ok := r.index[code]
	if !ok {
		return Party{}, false
	}
	return r.parties[i], true
}

// Name returns the display name for code, falling back to the code itself
// for unregistered codes.
func (r *PartyRegistry) Name(code string) string {
	if p, ok := r.Lookup(code); ok {
		return p.Name
	}
	return code
}

// Position returns the registry order of code, or -1 if unknown.
func (r *PartyRegistry) Position(code string) int {
	if i, ok := r.index[code]; ok {
		return i
	}
	return -1
}

// Parties returns a copy of the registered parties in registry order.
func (r *PartyRegistry) Parties() []Party {
	out := make([]Party, len(r.parties))
	copy(out, r.parties)
	return out
}

// Codes returns the registered letter codes in registry order.
func (r *PartyRegistry) Codes() []string {
	out := make([]string, len(r.parties))
	for i, p := range r.parties {
		out[i] = p.Code
	}
	return out
}

// ValidateCoverage checks that every observed letter code has a registry
// entry. It returns a *MissingPartyError naming the first unknown code.
// Call it before any aggregation so schema drift fails fast.
func (r *PartyRegistry) ValidateCoverage(observed []string) error {
	for _, code := range observed {
		if _, ok := r.index[code]; !ok {
			return &MissingPartyError{Code: code}
		}
	}
	return nil
}
