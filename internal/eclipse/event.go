// Package eclipse coalesces raw occultation intervals into total events and
// writes the eclipse report.
package eclipse

import (
	"fmt"
	"strings"

	"github.com/star/trajevent/internal/fault"
)

// Kind is the occultation class of a raw event.
type Kind int

const (
	Umbra Kind = iota
	Penumbra
	Antumbra
)

var kindNames = [...]string{"Umbra", "Penumbra", "Antumbra"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind parses a kind name, ignoring case.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(strings.TrimSpace(s), n) {
			return Kind(i), nil
		}
	}
	return Umbra, fmt.Errorf("unknown eclipse kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("invalid eclipse kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// RawEvent is one occultation interval found by the geometry search.
// Start and End are epochs in modified Julian days.
type RawEvent struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Kind  Kind    `json:"kind" yaml:"kind"`
	Body  string  `json:"body" yaml:"body"`
}

// Duration returns End - Start.
func (e RawEvent) Duration() float64 {
	return e.End - e.Start
}

// TotalEvent is a maximal run of overlapping or touching raw events.
type TotalEvent struct {
	Start   float64    `json:"start"`
	End     float64    `json:"end"`
	Index   int        `json:"index"`
	Members []RawEvent `json:"members"`
}

// Duration returns End - Start.
func (t TotalEvent) Duration() float64 {
	return t.End - t.Start
}

// NumberOfEvents returns the number of member raw events.
func (t TotalEvent) NumberOfEvents() int {
	return len(t.Members)
}

// Member returns the i-th member raw event.
func (t TotalEvent) Member(i int) (RawEvent, error) {
	if i < 0 || i >= len(t.Members) {
		return RawEvent{}, fault.New(fault.IndexOutOfRange, "eclipse.TotalEvent.Member",
			"index %d out of range [0, %d)", i, len(t.Members))
	}
	return t.Members[i], nil
}
