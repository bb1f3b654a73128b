package ownerSet

import (
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	// DefaultMaxOwners bounds the size of a single account's owner set.
	DefaultMaxOwners = 64

	// MaxOwnerWeight is the largest weight a single owner may carry.
	MaxOwnerWeight uint64 = 1_000_000
)

// OwnerSet is an ordered, duplicate-free collection of owners belonging to one account.
// Owners are enumerated in insertion order. An OwnerSet is not safe for concurrent
// mutation; callers serialize writers per account.
type OwnerSet struct {
	owners    []common.Address
	weights   map[common.Address]uint64
	maxOwners int
}

// New returns an empty set. maxOwners <= 0 selects DefaultMaxOwners.
func New(maxOwners int) *OwnerSet {
	if maxOwners <= 0 {
		maxOwners = DefaultMaxOwners
	}
	return &OwnerSet{
		owners:    make([]common.Address, 0),
		weights:   make(map[common.Address]uint64),
		maxOwners: maxOwners,
	}
}

// FromOwners rebuilds a set from a persisted snapshot, applying the same checks as Add.
func FromOwners(owners []types.Owner, maxOwners int) (*OwnerSet, error) {
	s := New(maxOwners)
	if len(owners) == 0 {
		return s, nil
	}
	if err := s.Add(owners); err != nil {
		return nil, err
	}
	return s, nil
}

// IsEmpty reports whether the set has no owners.
func (s *OwnerSet) IsEmpty() bool {
	return len(s.owners) == 0
}

// Contains reports whether addr is an owner.
func (s *OwnerSet) Contains(addr common.Address) bool {
	_, ok := s.weights[addr]
	return ok
}

// WeightOf returns the weight of addr and whether it is an owner.
func (s *OwnerSet) WeightOf(addr common.Address) (uint64, bool) {
	w, ok := s.weights[addr]
	return w, ok
}

// TotalWeight sums the weight of all owners.
func (s *OwnerSet) TotalWeight() uint64 {
	var total uint64
	for _, w := range s.weights {
		total += w
	}
	return total
}

// Owners enumerates the set in insertion order. The returned slice is a copy.
func (s *OwnerSet) Owners() []types.Owner {
	out := make([]types.Owner, 0, len(s.owners))
	for _, addr := range s.owners {
		out = append(out, types.Owner{Address: addr, Weight: s.weights[addr]})
	}
	return out
}

// Add inserts all owners or none of them.
func (s *OwnerSet) Add(owners []types.Owner) error {
	if len(owners) == 0 {
		return types.ErrZeroOwnersInputNotAllowed
	}

	seen := make(map[common.Address]struct{}, len(owners))
	for _, o := range owners {
		if o.Address == (common.Address{}) {
			return errors.Wrap(types.ErrInvalidOwner, "zero address is reserved")
		}
		if o.Weight == 0 || o.Weight > MaxOwnerWeight {
			return errors.Wrapf(types.ErrInvalidOwner, "owner %s has weight %d, must be within [1, %d]", o.Address.Hex(), o.Weight, MaxOwnerWeight)
		}
		if _, dup := seen[o.Address]; dup {
			return errors.Wrapf(types.ErrDuplicateOwner, "owner %s repeated in input", o.Address.Hex())
		}
		if s.Contains(o.Address) {
			return errors.Wrapf(types.ErrDuplicateOwner, "owner %s already present", o.Address.Hex())
		}
		seen[o.Address] = struct{}{}
	}

	if len(s.owners)+len(owners) > s.maxOwners {
		return errors.Wrapf(types.ErrTooManyOwners, "%d owners would exceed the maximum of %d", len(s.owners)+len(owners), s.maxOwners)
	}

	for _, o := range owners {
		s.owners = append(s.owners, o.Address)
		s.weights[o.Address] = o.Weight
	}
	return nil
}

// Remove deletes all given owners or none of them. When keepActive is set the set may not
// become empty.
func (s *OwnerSet) Remove(owners []common.Address, keepActive bool) error {
	if len(owners) == 0 {
		return types.ErrZeroOwnersInputNotAllowed
	}

	removing := make(map[common.Address]struct{}, len(owners))
	for _, addr := range owners {
		if _, dup := removing[addr]; dup {
			return errors.Wrapf(types.ErrDuplicateOwner, "owner %s repeated in input", addr.Hex())
		}
		if !s.Contains(addr) {
			return errors.Wrapf(types.ErrOwnerDoesNotExist, "owner %s", addr.Hex())
		}
		removing[addr] = struct{}{}
	}

	if keepActive && len(removing) == len(s.owners) {
		return types.ErrEmptyOwnersNotAllowed
	}

	survivors := make([]common.Address, 0, len(s.owners)-len(removing))
	for _, addr := range s.owners {
		if _, gone := removing[addr]; gone {
			delete(s.weights, addr)
			continue
		}
		survivors = append(survivors, addr)
	}
	s.owners = survivors
	return nil
}
