package flow

import (
	"fmt"
	"math"
)

// Kind is the tagged category of a graph vertex.
type Kind string

const (
	KindStart     Kind = "start"
	KindSendEmail Kind = "sendEmail"
	KindWait      Kind = "wait"
	KindCondition Kind = "condition"
	KindEnd       Kind = "end"
)

// Kinds lists every node kind in palette order.
var Kinds = []Kind{KindStart, KindSendEmail, KindWait, KindCondition, KindEnd}

// ParseKind converts a wire value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown node type %q", s)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindStart, KindSendEmail, KindWait, KindCondition, KindEnd:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// Handles returns the output handles a node of this kind offers. Condition
// nodes branch through "yes" and "no"; every other kind has the single
// default handle.
func (k Kind) Handles() []Handle {
	if k == KindCondition {
		return []Handle{HandleYes, HandleNo}
	}
	return []Handle{HandleDefault}
}

// HasHandle reports whether h is an output handle of this kind.
func (k Kind) HasHandle(h Handle) bool {
	for _, candidate := range k.Handles() {
		if candidate == h {
			return true
		}
	}
	return false
}

// Handle names an output port on a node.
type Handle string

const (
	HandleDefault Handle = ""
	HandleYes     Handle = "yes"
	HandleNo      Handle = "no"
)

// String renders the handle for messages; the default handle has no name.
func (h Handle) String() string {
	if h == HandleDefault {
		return "default"
	}
	return string(h)
}

// Unit is the time unit of a wait duration or a condition timeout.
type Unit string

const (
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
	UnitDays    Unit = "days"
)

// Valid reports whether u is a selectable unit. The empty unit is "not
// selected yet" and is not valid.
func (u Unit) Valid() bool {
	switch u {
	case UnitMinutes, UnitHours, UnitDays:
		return true
	}
	return false
}

// Minutes returns how many minutes one u is worth, or 0 for an invalid unit.
func (u Unit) Minutes() int {
	switch u {
	case UnitMinutes:
		return 1
	case UnitHours:
		return 60
	case UnitDays:
		return 1440
	}
	return 0
}

// MaxMinutes caps every duration expressed in minutes, a little over four
// thousand years.
const MaxMinutes = math.MaxInt32

// ToMinutes converts n units of u to minutes. Results above MaxMinutes are
// clamped to it and reported as out of range. Non-positive n and invalid
// units give 0.
func (u Unit) ToMinutes(n int) (int, bool) {
	per := u.Minutes()
	if n <= 0 || per == 0 {
		return 0, true
	}
	if n > MaxMinutes/per {
		return MaxMinutes, false
	}
	return n * per, true
}

// AddMinutes sums two non-negative minute counts, clamping at MaxMinutes.
func AddMinutes(a, b int) int {
	if b > MaxMinutes-a {
		return MaxMinutes
	}
	return a + b
}

// ConditionType selects which recipient event a condition waits for.
type ConditionType string

const (
	ConditionOpened      ConditionType = "opened"
	ConditionLinkClicked ConditionType = "linkClicked"
)

// Valid reports whether t is a selectable condition type.
func (t ConditionType) Valid() bool {
	return t == ConditionOpened || t == ConditionLinkClicked
}
