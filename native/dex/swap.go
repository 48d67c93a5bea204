package dex

import "fmt"

// Leg is one staged step of a swap. Validate must not mutate state; Apply
// performs the mutation.
type Leg struct {
	Name     string
	Validate func() error
	Apply    func() error
}

// Swap executes a group of legs as one unit: every leg validates before any
// applies. A validation failure is returned with its own classification and
// leaves state untouched. An apply failure is reported as a
// *SwapAbortedError; the caller owns the state snapshot that rolls earlier
// legs back.
type Swap struct {
	legs []Leg
}

// NewSwap returns a swap over legs in execution order.
func NewSwap(legs ...Leg) *Swap {
	return &Swap{legs: append([]Leg(nil), legs...)}
}

// Add appends a leg.
func (s *Swap) Add(name string, validate, apply func() error) *Swap {
	s.legs = append(s.legs, Leg{Name: name, Validate: validate, Apply: apply})
	return s
}

// Legs returns the names of the staged legs.
func (s *Swap) Legs() []string {
	names := make([]string, len(s.legs))
	for i, leg := range s.legs {
		names[i] = leg.Name
	}
	return names
}

// Execute validates then applies every leg.
func (s *Swap) Execute() error {
	for _, leg := range s.legs {
		if leg.Validate == nil {
			continue
		}
		if err := leg.Validate(); err != nil {
			return fmt.Errorf("%s leg: %w", leg.Name, err)
		}
	}
	for _, leg := range s.legs {
		if leg.Apply == nil {
			continue
		}
		if err := leg.Apply(); err != nil {
			return &SwapAbortedError{Leg: leg.Name, Err: err}
		}
	}
	return nil
}
