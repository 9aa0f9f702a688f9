package listing

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
	"github.com/MintBay/market-engine/internal/fees"
	"github.com/MintBay/market-engine/internal/registry"
	"go.uber.org/zap"
)

var (
	ErrNotEnoughFunds      = errors.New("not enough funds")
	ErrNotLister           = errors.New("not lister")
	ErrNotOwner            = errors.New("not owner of token")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrListingNotFound     = errors.New("listing not found")
	ErrListingNotActive    = errors.New("listing not active")
	ErrNotAdmin            = errors.New("caller is not the admin")
	ErrInvalidPrice        = errors.New("invalid price")
)

// CustodyAccount holds listed assets until they are sold or delisted.
const CustodyAccount = "market.custody"

type Registry interface {
	MakeListing(caller, collection string, tokenId, quantity uint64, price *big.Int) (uint64, error)
	MakePurchase(buyer string, listingId uint64, paid *big.Int) error
	CancelListing(caller string, listingId uint64) error
	TransferToken(caller string, listingId uint64, collection, from, to string, tokenId, quantity uint64) error
	Withdraw(caller string) (*big.Int, error)
	Get(listingId uint64) (entity.Listing, error)
	PagedActive(page, size int) ([]entity.Listing, int)
	TotalActive() int
	TotalComplete() int
}

type listing struct {
	id         uint64
	collection string
	tokenId    uint64
	quantity   uint64
	price      *big.Int
	lister     string
	status     entity.ListingStatus
	listedAt   time.Time
	closedAt   *time.Time
}

type marketRegistry struct {
	mu       sync.Mutex
	assets   registry.AssetRegistry
	fees     fees.Engine
	ledger   escrow.Ledger
	access   access.Control
	clock    func() time.Time
	listings []*listing
}

func NewRegistry(assets registry.AssetRegistry, feeEngine fees.Engine, ledger escrow.Ledger, ac access.Control, clock func() time.Time) Registry {
	return &marketRegistry{
		assets:   assets,
		fees:     feeEngine,
		ledger:   ledger,
		access:   ac,
		clock:    clock,
		listings: make([]*listing, 0),
	}
}

func (r *marketRegistry) MakeListing(caller, collection string, tokenId, quantity uint64, price *big.Int) (uint64, error) {
	if price == nil || price.Sign() <= 0 {
		return 0, ErrInvalidPrice
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	standard, err := r.assets.Standard(collection)
	if err != nil {
		return 0, err
	}

	if standard == entity.SingleOwner {
		quantity = 1
		owner, err := r.assets.OwnerOf(collection, tokenId)
		if err != nil || owner != caller {
			return 0, ErrNotOwner
		}
	} else {
		if quantity == 0 {
			quantity = 1
		}
		if r.assets.BalanceOf(collection, tokenId, caller) < quantity {
			return 0, ErrInsufficientBalance
		}
	}

	if err := r.assets.Transfer(collection, caller, CustodyAccount, tokenId, quantity); err != nil {
		return 0, err
	}

	l := &listing{
		id:         uint64(len(r.listings)),
		collection: collection,
		tokenId:    tokenId,
		quantity:   quantity,
		price:      new(big.Int).Set(price),
		lister:     caller,
		status:     entity.ListingActive,
		listedAt:   r.clock(),
	}
	r.listings = append(r.listings, l)

	zap.L().With(
		zap.Uint64("listingId", l.id),
		zap.String("collection", collection),
		zap.Uint64("tokenId", tokenId),
		zap.String("price", price.String()),
	).Info("Listing: Listed")
	event.EmitEvent(event.ListedEvent, factory.CreateListedAction(l.view()))

	return l.id, nil
}

func (r *marketRegistry) MakePurchase(buyer string, listingId uint64, paid *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.active(listingId)
	if err != nil {
		return err
	}

	if paid == nil || paid.Cmp(l.price) < 0 {
		return ErrNotEnoughFunds
	}

	// The asset leaves custody before any funds move, so a failed transfer
	// leaves the ledger untouched.
	if err := r.assets.Transfer(l.collection, CustodyAccount, buyer, l.tokenId, l.quantity); err != nil {
		return err
	}

	// Overpayment is treated as paid; the split applies to the full amount.
	split, err := r.fees.SettleSale(l.lister, l.collection, l.tokenId, paid)
	if err != nil {
		return err
	}

	now := r.clock()
	l.status = entity.ListingSold
	l.closedAt = &now

	zap.L().With(
		zap.Uint64("listingId", l.id),
		zap.String("buyer", buyer),
		zap.String("paid", paid.String()),
	).Info("Listing: Sold")
	event.EmitEvent(event.SoldEvent, factory.CreateSoldAction(l.view(), buyer, paid, split.Fee(), split.Royalty, now))

	return nil
}

func (r *marketRegistry) CancelListing(caller string, listingId uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.active(listingId)
	if err != nil {
		return err
	}

	if l.lister != caller {
		return ErrNotLister
	}

	if err := r.assets.Transfer(l.collection, CustodyAccount, l.lister, l.tokenId, l.quantity); err != nil {
		return err
	}

	now := r.clock()
	l.status = entity.ListingCancelled
	l.closedAt = &now

	event.EmitEvent(event.CancelledEvent, factory.CreateDelistedAction(l.view(), now))

	return nil
}

// TransferToken is the Server-role escape hatch for moving a listed asset
// without a purchase.
func (r *marketRegistry) TransferToken(caller string, listingId uint64, collection, from, to string, tokenId, quantity uint64) error {
	if !r.access.Has(caller, entity.ServerRole) {
		return ErrNotLister
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if listingId >= uint64(len(r.listings)) {
		return ErrListingNotFound
	}

	return r.assets.Transfer(collection, from, to, tokenId, quantity)
}

// Withdraw pays the platform's accumulated fee balance out to the admin.
func (r *marketRegistry) Withdraw(caller string) (*big.Int, error) {
	if !r.access.Has(caller, entity.AdminRole) {
		return nil, ErrNotAdmin
	}

	amount, err := r.ledger.WithdrawTo(r.fees.PlatformAccount(), caller)
	if err != nil {
		return nil, err
	}

	event.EmitEvent(event.AdminWithdrawEvent, factory.CreateAdminWithdrawAction(caller, amount, r.clock()))

	return amount, nil
}

func (r *marketRegistry) Get(listingId uint64) (entity.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if listingId >= uint64(len(r.listings)) {
		return entity.Listing{}, ErrListingNotFound
	}

	return r.listings[listingId].view(), nil
}

// PagedActive returns one page of active listings, oldest first, along with
// the total number of active listings. Pages start at 1.
func (r *marketRegistry) PagedActive(page, size int) ([]entity.Listing, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]entity.Listing, 0)
	for _, l := range r.listings {
		if l.status == entity.ListingActive {
			active = append(active, l.view())
		}
	}

	total := len(active)
	if page < 1 || size < 1 {
		return []entity.Listing{}, total
	}

	from := (page - 1) * size
	if from >= total {
		return []entity.Listing{}, total
	}
	to := from + size
	if to > total {
		to = total
	}

	return active[from:to], total
}

func (r *marketRegistry) TotalActive() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.countByStatus(entity.ListingActive)
}

func (r *marketRegistry) TotalComplete() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.countByStatus(entity.ListingSold)
}

func (r *marketRegistry) countByStatus(status entity.ListingStatus) int {
	count := 0
	for _, l := range r.listings {
		if l.status == status {
			count++
		}
	}

	return count
}

func (r *marketRegistry) active(listingId uint64) (*listing, error) {
	if listingId >= uint64(len(r.listings)) {
		return nil, ErrListingNotFound
	}

	l := r.listings[listingId]
	if l.status != entity.ListingActive {
		return nil, ErrListingNotActive
	}

	return l, nil
}

func (l *listing) view() entity.Listing {
	return entity.Listing{
		Id:         l.id,
		Collection: l.collection,
		TokenId:    l.tokenId,
		Quantity:   l.quantity,
		Price:      l.price.String(),
		Lister:     l.lister,
		Status:     l.status,
		ListedAt:   l.listedAt,
		ClosedAt:   l.closedAt,
	}
}
