package domain

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// RotationSchedule is the ordered list of recipients of a cash round and the
// cursor pointing at whoever receives the pool in the current cycle.
//
// Invariants: Order has no duplicates, every entry is an active member of the
// round at the time it was validated, and 0 <= Cursor < len(Order) whenever
// Order is not empty.
type RotationSchedule struct {
	RoundID   uint
	Order     []string
	Cursor    int
	IsActive  bool
	StartDate time.Time
	EndDate   *time.Time
}

// NewRotationSchedule validates order against the round's active members and
// returns a schedule positioned at the first recipient.
func NewRotationSchedule(roundID uint, order, activeMembers []string, startDate time.Time) (*RotationSchedule, error) {
	if err := ValidateOrder(order, activeMembers); err != nil {
		return nil, err
	}
	return &RotationSchedule{
		RoundID:   roundID,
		Order:     slices.Clone(order),
		Cursor:    0,
		IsActive:  true,
		StartDate: startDate,
	}, nil
}

// ValidateOrder checks that order is a permutation of activeMembers.
func ValidateOrder(order, activeMembers []string) error {
	if len(order) == 0 {
		return fmt.Errorf("%w: order is empty", ErrInvalidOrder)
	}

	active := make(map[string]struct{}, len(activeMembers))
	for _, m := range activeMembers {
		active[m] = struct{}{}
	}

	seen := make(map[string]struct{}, len(order))
	for _, m := range order {
		if _, dup := seen[m]; dup {
			return fmt.Errorf("%w: member %s appears more than once", ErrInvalidOrder, m)
		}
		seen[m] = struct{}{}
		if _, ok := active[m]; !ok {
			return fmt.Errorf("%w: member %s is not an active member of the round", ErrInvalidOrder, m)
		}
	}

	for m := range active {
		if _, ok := seen[m]; !ok {
			return fmt.Errorf("%w: active member %s is missing from the order", ErrInvalidOrder, m)
		}
	}
	return nil
}

// Size returns the number of members in the rotation.
func (s *RotationSchedule) Size() int {
	return len(s.Order)
}

// Reorder replaces the rotation order. The cursor keeps its index unless it
// falls outside the new order, in which case it goes back to 0. The returned
// bool reports whether that reset happened.
func (s *RotationSchedule) Reorder(newOrder, activeMembers []string) (bool, error) {
	if err := ValidateOrder(newOrder, activeMembers); err != nil {
		return false, err
	}
	s.Order = slices.Clone(newOrder)
	if s.Cursor >= len(s.Order) {
		s.Cursor = 0
		return true, nil
	}
	return false, nil
}

// CurrentRecipient returns the member at the cursor.
func (s *RotationSchedule) CurrentRecipient() (string, error) {
	if len(s.Order) == 0 {
		return "", ErrEmptySchedule
	}
	return s.Order[s.Cursor], nil
}

// NextRecipient returns who would receive after the current recipient.
func (s *RotationSchedule) NextRecipient() (string, error) {
	if len(s.Order) == 0 {
		return "", ErrEmptySchedule
	}
	return s.Order[(s.Cursor+1)%len(s.Order)], nil
}

// Advance moves the cursor one step, wrapping around at the end.
func (s *RotationSchedule) Advance() error {
	if len(s.Order) == 0 {
		return ErrEmptySchedule
	}
	s.Cursor = (s.Cursor + 1) % len(s.Order)
	return nil
}

// AdvancePast moves the cursor to the member after membNo. Finalizing a
// cycle uses it so a reorder made while the cycle was open cannot hand the
// same recipient two cycles in a row. A member no longer in the order falls
// back to Advance.
func (s *RotationSchedule) AdvancePast(membNo string) error {
	if len(s.Order) == 0 {
		return ErrEmptySchedule
	}
	idx := slices.Index(s.Order, membNo)
	if idx < 0 {
		return s.Advance()
	}
	s.Cursor = (idx + 1) % len(s.Order)
	return nil
}

// RecipientAt returns the member at an arbitrary position.
func (s *RotationSchedule) RecipientAt(pos int) (string, error) {
	if len(s.Order) == 0 {
		return "", ErrEmptySchedule
	}
	if pos < 0 || pos >= len(s.Order) {
		return "", fmt.Errorf("%w: position %d out of range [0,%d)", ErrInvalidInput, pos, len(s.Order))
	}
	return s.Order[pos], nil
}

// AppendMember puts a newly joined member at the end of the queue.
func (s *RotationSchedule) AppendMember(membNo string) error {
	if slices.Contains(s.Order, membNo) {
		return fmt.Errorf("%w: member %s already in rotation", ErrInvalidOrder, membNo)
	}
	s.Order = append(s.Order, membNo)
	return nil
}

// RemoveMember drops a member from the rotation. The cursor keeps pointing at
// the same recipient when the removed member sat before it.
func (s *RotationSchedule) RemoveMember(membNo string) error {
	idx := slices.Index(s.Order, membNo)
	if idx < 0 {
		return fmt.Errorf("%w: member %s not in rotation", ErrInvalidOrder, membNo)
	}
	if len(s.Order) == 1 {
		return fmt.Errorf("%w: cannot remove the last member %s", ErrEmptySchedule, membNo)
	}

	s.Order = slices.Delete(slices.Clone(s.Order), idx, idx+1)
	if idx < s.Cursor {
		s.Cursor--
	}
	if s.Cursor >= len(s.Order) {
		s.Cursor = 0
	}
	return nil
}

// PositionHint is the seeding input taken from round memberships.
type PositionHint struct {
	MembNo   string
	Hint     int
	JoinedAt time.Time
}

// SeedOrder derives an initial rotation order from position hints.
// Members with a positive hint come first in ascending hint order, the rest
// follow by join time. Ties break on member number.
func SeedOrder(hints []PositionHint) []string {
	sorted := slices.Clone(hints)
	slices.SortStableFunc(sorted, func(a, b PositionHint) int {
		aHinted, bHinted := a.Hint > 0, b.Hint > 0
		if aHinted != bHinted {
			if aHinted {
				return -1
			}
			return 1
		}
		if aHinted {
			if c := cmp.Compare(a.Hint, b.Hint); c != 0 {
				return c
			}
		}
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.MembNo, b.MembNo)
	})

	order := make([]string, 0, len(sorted))
	for _, h := range sorted {
		order = append(order, h.MembNo)
	}
	return order
}
