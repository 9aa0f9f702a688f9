package fees

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/MintBay/market-engine/internal/access"
	"github.com/MintBay/market-engine/internal/entity"
	"github.com/MintBay/market-engine/internal/escrow"
	"github.com/MintBay/market-engine/internal/event"
	"github.com/MintBay/market-engine/internal/factory"
	"github.com/MintBay/market-engine/internal/registry"
	"go.uber.org/zap"
)

var (
	ErrNotAdmin      = errors.New("caller is not the admin")
	ErrNotStaff      = errors.New("caller is not staff")
	ErrInvalidTiers  = errors.New("invalid fee tiers")
	ErrInvalidAmount = errors.New("invalid amount")
)

// StakerPool is the optional staking collaborator. When unset the platform
// retains the full fee and stake weight no longer improves a seller's tier.
type StakerPool interface {
	Deposit(amount *big.Int) error
	StakedBy(identity string) uint64
}

// Split is the exact decomposition of a sale amount. Seller + Royalty +
// Platform + Staking always equals the gross amount.
type Split struct {
	Seller           *big.Int
	Royalty          *big.Int
	RoyaltyRecipient string
	Platform         *big.Int
	Staking          *big.Int
	FeeBps           uint64
}

func (s Split) Fee() *big.Int {
	return new(big.Int).Add(s.Platform, s.Staking)
}

type Engine interface {
	Fee(seller string) uint64
	UpdateFees(caller string, high, mid, low uint64) error
	RegisterRoyalty(caller, collection, recipient string, bps uint64) error
	RemoveRoyalty(caller, collection string) error
	Royalty(collection string, tokenId uint64) (string, uint64)
	SettleSale(seller, collection string, tokenId uint64, amount *big.Int) (Split, error)
	SettleBid(winner, seller string, amount *big.Int) (Split, error)
	SetStaker(caller string, pool StakerPool) error
	Staker() StakerPool
	PlatformAccount() string
}

type engine struct {
	mu          sync.Mutex
	access      access.Control
	memberships registry.MembershipRegistry
	assets      registry.AssetRegistry
	ledger      escrow.Ledger
	staker      StakerPool
	platform    string
	clock       func() time.Time

	highBps uint64
	midBps  uint64
	lowBps  uint64

	royalties map[string]entity.Royalty
}

func NewEngine(
	ac access.Control,
	memberships registry.MembershipRegistry,
	assets registry.AssetRegistry,
	ledger escrow.Ledger,
	cfg Config,
	platform string,
	clock func() time.Time,
) Engine {
	return &engine{
		access:      ac,
		memberships: memberships,
		assets:      assets,
		ledger:      ledger,
		platform:    platform,
		clock:       clock,
		highBps:     cfg.HighBps,
		midBps:      cfg.MidBps,
		lowBps:      cfg.LowBps,
		royalties:   make(map[string]entity.Royalty),
	}
}

type Config struct {
	HighBps uint64
	MidBps  uint64
	LowBps  uint64
}

// Fee returns the lowest tier the seller qualifies for. Staked units count
// as VIP-equivalent holdings.
func (e *engine) Fee(seller string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.fee(seller)
}

func (e *engine) fee(seller string) uint64 {
	vip := e.memberships.BalanceOf(seller, entity.VipTier)
	var staked uint64
	if e.staker != nil {
		staked = e.staker.StakedBy(seller)
	}

	if e.memberships.BalanceOf(seller, entity.VvipTier) > 0 || vip+staked >= 3 {
		return 0
	}
	if vip+staked >= 1 {
		return e.lowBps
	}
	if e.memberships.BalanceOf(seller, entity.FounderTier) > 0 {
		return e.midBps
	}

	return e.highBps
}

func (e *engine) UpdateFees(caller string, high, mid, low uint64) error {
	if !e.access.Has(caller, entity.AdminRole) {
		return ErrNotAdmin
	}
	if high < mid || mid < low {
		return ErrInvalidTiers
	}

	e.mu.Lock()
	e.highBps, e.midBps, e.lowBps = high, mid, low
	e.mu.Unlock()

	zap.L().With(
		zap.Uint64("high", high),
		zap.Uint64("mid", mid),
		zap.Uint64("low", low),
	).Info("Fees: Tiers updated")
	event.EmitEvent(event.FeesUpdateEvent, factory.CreateFeesUpdateAction(caller, high, mid, low, e.clock()))

	return nil
}

func (e *engine) RegisterRoyalty(caller, collection, recipient string, bps uint64) error {
	if !e.access.Has(caller, entity.StaffRole) {
		return ErrNotStaff
	}

	royalty := entity.Royalty{Collection: collection, Recipient: recipient, Bps: bps}

	e.mu.Lock()
	e.royalties[collection] = royalty
	e.mu.Unlock()

	event.EmitEvent(event.RoyaltyChangedEvent, factory.CreateRoyaltyChangeAction(caller, royalty, e.clock()))

	return nil
}

func (e *engine) RemoveRoyalty(caller, collection string) error {
	if !e.access.Has(caller, entity.StaffRole) {
		return ErrNotStaff
	}

	e.mu.Lock()
	delete(e.royalties, collection)
	e.mu.Unlock()

	event.EmitEvent(event.RoyaltyRemovedEvent, factory.CreateRoyaltyRemoveAction(caller, collection, e.clock()))

	return nil
}

// Royalty resolves the registered collection royalty, falling back to the
// registry's per-token royalty standard when none is registered.
func (e *engine) Royalty(collection string, tokenId uint64) (string, uint64) {
	e.mu.Lock()
	royalty, ok := e.royalties[collection]
	e.mu.Unlock()

	if ok {
		return royalty.Recipient, royalty.Bps
	}

	recipient, bps, err := e.assets.TokenRoyalty(collection, tokenId)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("collection", collection)).Warn("Fees: Token royalty lookup failed")
		return "", 0
	}

	return recipient, bps
}

// SettleSale splits a sale and commits every leg: seller and royalty are
// credited on the ledger, half the fee is credited to the platform and the
// other half deposited with the staking pool. Fee and royalty are both
// computed on the gross amount.
func (e *engine) SettleSale(seller, collection string, tokenId uint64, amount *big.Int) (Split, error) {
	if amount == nil || amount.Sign() <= 0 {
		return Split{}, ErrInvalidAmount
	}

	recipient, royaltyBps := e.Royalty(collection, tokenId)

	e.mu.Lock()
	split := e.split(seller, amount, recipient, royaltyBps)
	staker := e.staker
	e.mu.Unlock()

	e.ledger.Credit(seller, split.Seller)
	if split.Royalty.Sign() > 0 {
		e.ledger.Credit(split.RoyaltyRecipient, split.Royalty)
	}
	e.ledger.Credit(e.platform, split.Platform)
	if staker != nil && split.Staking.Sign() > 0 {
		if err := staker.Deposit(split.Staking); err != nil {
			return Split{}, err
		}
	}

	return split, nil
}

// SettleBid settles an auction: the fee tier is resolved against the winning
// bidder and no royalty applies.
func (e *engine) SettleBid(winner, seller string, amount *big.Int) (Split, error) {
	if amount == nil || amount.Sign() <= 0 {
		return Split{}, ErrInvalidAmount
	}

	e.mu.Lock()
	split := e.split(winner, amount, "", 0)
	staker := e.staker
	e.mu.Unlock()

	e.ledger.Credit(seller, split.Seller)
	e.ledger.Credit(e.platform, split.Platform)
	if staker != nil && split.Staking.Sign() > 0 {
		if err := staker.Deposit(split.Staking); err != nil {
			return Split{}, err
		}
	}

	return split, nil
}

func (e *engine) split(feeIdentity string, amount *big.Int, royaltyRecipient string, royaltyBps uint64) Split {
	feeBps := e.fee(feeIdentity)

	feeAmt := mulBps(amount, feeBps)
	royaltyAmt := mulBps(amount, royaltyBps)

	sellerAmt := new(big.Int).Sub(amount, feeAmt)
	sellerAmt.Sub(sellerAmt, royaltyAmt)

	staking := big.NewInt(0)
	platform := new(big.Int).Set(feeAmt)
	if e.staker != nil {
		staking = new(big.Int).Rsh(feeAmt, 1)
		platform.Sub(feeAmt, staking)
	}

	return Split{
		Seller:           sellerAmt,
		Royalty:          royaltyAmt,
		RoyaltyRecipient: royaltyRecipient,
		Platform:         platform,
		Staking:          staking,
		FeeBps:           feeBps,
	}
}

func (e *engine) SetStaker(caller string, pool StakerPool) error {
	if !e.access.Has(caller, entity.AdminRole) {
		return ErrNotAdmin
	}

	e.mu.Lock()
	e.staker = pool
	e.mu.Unlock()

	staker := ""
	if pool != nil {
		staker = "staking-pool"
	}
	event.EmitEvent(event.StakerUpdatedEvent, factory.CreateStakerUpdateAction(caller, staker, e.clock()))

	return nil
}

func (e *engine) Staker() StakerPool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.staker
}

func (e *engine) PlatformAccount() string {
	return e.platform
}

func mulBps(amount *big.Int, bps uint64) *big.Int {
	result := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return result.Div(result, big.NewInt(10000))
}
