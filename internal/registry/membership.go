package registry

import (
	"fmt"
	"github.com/MintBay/market-engine/internal/entity"
	"sync"
)

// MembershipRegistry tracks the tiered membership tokens driving fee lookup.
// Staking escrows VIP units through Transfer like any other holder.
type MembershipRegistry interface {
	BalanceOf(holder string, tier entity.MembershipTier) uint64
	Transfer(from, to string, tier entity.MembershipTier, quantity uint64) error
}

type MemoryMembershipRegistry struct {
	mu       sync.RWMutex
	balances map[string]uint64
}

func NewMemoryMembershipRegistry() *MemoryMembershipRegistry {
	return &MemoryMembershipRegistry{balances: make(map[string]uint64)}
}

func (r *MemoryMembershipRegistry) Issue(holder string, tier entity.MembershipTier, quantity uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.balances[membershipKey(holder, tier)] += quantity
}

func (r *MemoryMembershipRegistry) BalanceOf(holder string, tier entity.MembershipTier) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.balances[membershipKey(holder, tier)]
}

func (r *MemoryMembershipRegistry) Transfer(from, to string, tier entity.MembershipTier, quantity uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.balances[membershipKey(from, tier)] < quantity {
		return ErrInsufficientBalance
	}
	r.balances[membershipKey(from, tier)] -= quantity
	r.balances[membershipKey(to, tier)] += quantity

	return nil
}

func membershipKey(holder string, tier entity.MembershipTier) string {
	return fmt.Sprintf("%s-%d", holder, tier)
}
