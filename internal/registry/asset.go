package registry

import (
	"errors"
	"fmt"
	"github.com/MintBay/market-engine/internal/entity"
	"sync"
)

var (
	ErrUnknownCollection   = errors.New("unknown collection")
	ErrUnknownToken        = errors.New("unknown token")
	ErrNotTokenOwner       = errors.New("not token owner")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// AssetRegistry is the external custodian of NFT ownership. The engines only
// ever move assets through it and never hold ownership state themselves.
type AssetRegistry interface {
	Standard(collection string) (entity.TokenStandard, error)
	OwnerOf(collection string, tokenId uint64) (string, error)
	BalanceOf(collection string, tokenId uint64, holder string) uint64
	Transfer(collection, from, to string, tokenId, quantity uint64) error
	TokenRoyalty(collection string, tokenId uint64) (string, uint64, error)
}

type MemoryAssetRegistry struct {
	mu        sync.RWMutex
	standards map[string]entity.TokenStandard
	owners    map[string]string
	balances  map[string]uint64
	royalties map[string]entity.Royalty
}

func NewMemoryAssetRegistry() *MemoryAssetRegistry {
	return &MemoryAssetRegistry{
		standards: make(map[string]entity.TokenStandard),
		owners:    make(map[string]string),
		balances:  make(map[string]uint64),
		royalties: make(map[string]entity.Royalty),
	}
}

func (r *MemoryAssetRegistry) RegisterCollection(collection string, standard entity.TokenStandard) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.standards[collection] = standard
}

func (r *MemoryAssetRegistry) Mint(collection string, tokenId uint64, owner string, quantity uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.standards[collection] {
	case entity.SingleOwner:
		r.owners[tokenKey(collection, tokenId)] = owner
	case entity.MultiBalance:
		r.balances[balanceKey(collection, tokenId, owner)] += quantity
	}
}

func (r *MemoryAssetRegistry) SetTokenRoyalty(collection string, tokenId uint64, recipient string, bps uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.royalties[tokenKey(collection, tokenId)] = entity.Royalty{Collection: collection, Recipient: recipient, Bps: bps}
}

func (r *MemoryAssetRegistry) Standard(collection string) (entity.TokenStandard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	standard, ok := r.standards[collection]
	if !ok {
		return "", ErrUnknownCollection
	}

	return standard, nil
}

func (r *MemoryAssetRegistry) OwnerOf(collection string, tokenId uint64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[tokenKey(collection, tokenId)]
	if !ok {
		return "", ErrUnknownToken
	}

	return owner, nil
}

func (r *MemoryAssetRegistry) BalanceOf(collection string, tokenId uint64, holder string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.standards[collection] == entity.SingleOwner {
		if r.owners[tokenKey(collection, tokenId)] == holder {
			return 1
		}
		return 0
	}

	return r.balances[balanceKey(collection, tokenId, holder)]
}

func (r *MemoryAssetRegistry) Transfer(collection, from, to string, tokenId, quantity uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	standard, ok := r.standards[collection]
	if !ok {
		return ErrUnknownCollection
	}

	if standard == entity.SingleOwner {
		if r.owners[tokenKey(collection, tokenId)] != from {
			return ErrNotTokenOwner
		}
		r.owners[tokenKey(collection, tokenId)] = to
		return nil
	}

	if r.balances[balanceKey(collection, tokenId, from)] < quantity {
		return ErrInsufficientBalance
	}
	r.balances[balanceKey(collection, tokenId, from)] -= quantity
	r.balances[balanceKey(collection, tokenId, to)] += quantity

	return nil
}

func (r *MemoryAssetRegistry) TokenRoyalty(collection string, tokenId uint64) (string, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	royalty, ok := r.royalties[tokenKey(collection, tokenId)]
	if !ok {
		return "", 0, nil
	}

	return royalty.Recipient, royalty.Bps, nil
}

func tokenKey(collection string, tokenId uint64) string {
	return fmt.Sprintf("%s-%d", collection, tokenId)
}

func balanceKey(collection string, tokenId uint64, holder string) string {
	return fmt.Sprintf("%s-%d-%s", collection, tokenId, holder)
}
