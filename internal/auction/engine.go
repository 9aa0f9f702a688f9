package auction

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
	ErrNotMinimumBid       = errors.New("not miniumbid")
	ErrEnded               = errors.New("ended")
	ErrSellerBid           = errors.New("not available for token seller")
	ErrNotAvailable        = errors.New("auction not available")
	ErrTimePassed          = errors.New("time passed")
	ErrNoBidder            = errors.New("no bidder exist")
	ErrHighestBidder       = errors.New("not available for highest bidder")
	ErrNoBuyNow            = errors.New("unavailable buy now")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrNotSeller           = errors.New("not seller")
	ErrNotAdmin            = errors.New("caller is not the admin")
	ErrNotOwner            = errors.New("not owner of token")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// CustodyAccount holds auctioned assets until the auction settles.
const CustodyAccount = "auction.custody"

type Engine interface {
	CreateAuction(seller, collection string, tokenId, quantity uint64, startingBid, buyNowPrice *big.Int, endTime time.Time) (entity.Auction, error)
	MinimumBid(key string, index int) (*big.Int, error)
	Bid(bidder, key string, index int, amount *big.Int) (entity.Auction, error)
	Accept(caller, key string, index int) error
	Cancel(caller, key string, index int) error
	Withdraw(bidder, key string, index int) (*big.Int, error)
	BuyNow(buyer, key string, index int, paid *big.Int) error
	ReturnBids(caller, key string, index int, identities []string) error
	Get(key string, index int) (entity.Auction, error)
	ByKey(key string) []entity.Auction
	BidderBalance(key string, index int, bidder string) *big.Int
}

type auctionEntry struct {
	collection    string
	tokenId       uint64
	quantity      uint64
	seller        string
	startingBid   *big.Int
	buyNowPrice   *big.Int
	endTime       time.Time
	highestBid    *big.Int
	highestBidder string
	accepted      bool
	cancelled     bool
	createdAt     time.Time

	balances map[string]*big.Int
	bidders  []string
}

type engine struct {
	mu     sync.Mutex
	assets registry.AssetRegistry
	fees   fees.Engine
	payer  escrow.Payer
	access access.Control
	clock  func() time.Time

	antiSnipe    time.Duration
	cancelWindow time.Duration

	arena map[string][]*auctionEntry
}

func NewEngine(
	assets registry.AssetRegistry,
	feeEngine fees.Engine,
	payer escrow.Payer,
	ac access.Control,
	antiSnipe, cancelWindow time.Duration,
	clock func() time.Time,
) Engine {
	return &engine{
		assets:       assets,
		fees:         feeEngine,
		payer:        payer,
		access:       ac,
		clock:        clock,
		antiSnipe:    antiSnipe,
		cancelWindow: cancelWindow,
		arena:        make(map[string][]*auctionEntry),
	}
}

func (e *engine) CreateAuction(seller, collection string, tokenId, quantity uint64, startingBid, buyNowPrice *big.Int, endTime time.Time) (entity.Auction, error) {
	if startingBid == nil || startingBid.Sign() <= 0 {
		return entity.Auction{}, ErrInvalidPrice
	}
	if buyNowPrice != nil && buyNowPrice.Cmp(startingBid) < 0 {
		return entity.Auction{}, ErrInvalidPrice
	}

	e.mu.Lock()

	now := e.clock()
	if !endTime.After(now) {
		e.mu.Unlock()
		return entity.Auction{}, ErrTimePassed
	}

	standard, err := e.assets.Standard(collection)
	if err != nil {
		e.mu.Unlock()
		return entity.Auction{}, err
	}

	if standard == entity.SingleOwner {
		quantity = 1
		owner, err := e.assets.OwnerOf(collection, tokenId)
		if err != nil || owner != seller {
			e.mu.Unlock()
			return entity.Auction{}, ErrNotOwner
		}
	} else {
		if quantity == 0 {
			quantity = 1
		}
		if e.assets.BalanceOf(collection, tokenId, seller) < quantity {
			e.mu.Unlock()
			return entity.Auction{}, ErrInsufficientBalance
		}
	}

	if err := e.assets.Transfer(collection, seller, CustodyAccount, tokenId, quantity); err != nil {
		e.mu.Unlock()
		return entity.Auction{}, err
	}

	entry := &auctionEntry{
		collection:  collection,
		tokenId:     tokenId,
		quantity:    quantity,
		seller:      seller,
		startingBid: new(big.Int).Set(startingBid),
		endTime:     endTime,
		highestBid:  big.NewInt(0),
		createdAt:   now,
		balances:    make(map[string]*big.Int),
	}
	if buyNowPrice != nil {
		entry.buyNowPrice = new(big.Int).Set(buyNowPrice)
	}

	key := entity.CreateAuctionKey(seller, collection, tokenId, quantity)
	e.arena[key] = append(e.arena[key], entry)
	view := e.view(key, len(e.arena[key])-1, entry)
	e.mu.Unlock()

	zap.L().With(
		zap.String("key", key),
		zap.String("seller", seller),
		zap.String("startingBid", startingBid.String()),
		zap.Time("endTime", endTime),
	).Info("Auction: Created")
	event.EmitEvent(event.AuctionCreatedEvent, factory.CreateAuctionAction(entity.AuctionCreatedAction, view, seller, startingBid, now))

	return view, nil
}

// MinimumBid is the lowest total a new bid must reach: the starting bid while
// no bids exist, otherwise the highest bid plus a bracketed increment.
func (e *engine) MinimumBid(key string, index int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.entry(key, index)
	if err != nil {
		return nil, err
	}

	return minimumBid(entry), nil
}

func minimumBid(entry *auctionEntry) *big.Int {
	if entry.highestBidder == "" {
		return new(big.Int).Set(entry.startingBid)
	}

	highest := entry.highestBid
	var step int64
	switch {
	case highest.Cmp(big.NewInt(100)) < 0:
		step = 10
	case highest.Cmp(big.NewInt(1000)) < 0:
		step = 50
	case highest.Cmp(big.NewInt(5000)) <= 0:
		step = 100
	case highest.Cmp(big.NewInt(10000)) <= 0:
		step = 250
	default:
		step = 500
	}

	return new(big.Int).Add(highest, big.NewInt(step))
}

// Bid adds funds on top of the bidder's previous balance for this auction;
// the resulting total is the bid and must reach the minimum.
func (e *engine) Bid(bidder, key string, index int, amount *big.Int) (entity.Auction, error) {
	if amount == nil || amount.Sign() <= 0 {
		return entity.Auction{}, ErrInvalidPrice
	}

	e.mu.Lock()

	entry, err := e.live(key, index)
	if err != nil {
		e.mu.Unlock()
		return entity.Auction{}, err
	}

	now := e.clock()
	if now.After(entry.endTime) {
		e.mu.Unlock()
		return entity.Auction{}, ErrEnded
	}
	if bidder == entry.seller {
		e.mu.Unlock()
		return entity.Auction{}, ErrSellerBid
	}

	total := new(big.Int).Set(amount)
	prior, returning := entry.balances[bidder]
	if returning {
		total.Add(total, prior)
	}

	if total.Cmp(minimumBid(entry)) < 0 {
		e.mu.Unlock()
		return entity.Auction{}, ErrNotMinimumBid
	}

	if !returning {
		entry.bidders = append(entry.bidders, bidder)
	}
	entry.balances[bidder] = total
	entry.highestBid = new(big.Int).Set(total)
	entry.highestBidder = bidder

	extended := false
	if entry.endTime.Sub(now) < e.antiSnipe {
		entry.endTime = now.Add(e.antiSnipe)
		extended = true
	}

	view := e.view(key, index, entry)
	e.mu.Unlock()

	zap.L().With(
		zap.String("key", key),
		zap.Int("index", index),
		zap.String("bidder", bidder),
		zap.String("total", total.String()),
	).Info("Auction: Bid")
	event.EmitEvent(event.BidEvent, factory.CreateAuctionAction(entity.BidAction, view, bidder, total, now))
	if extended {
		event.EmitEvent(event.TimeIncreasedEvent, factory.CreateAuctionAction(entity.TimeIncreasedAction, view, bidder, total, now))
	}

	return view, nil
}

// Accept settles an ended auction on the highest bid. The winning bidder's
// tier drives the fee and their balance is consumed by the settlement.
func (e *engine) Accept(caller, key string, index int) error {
	e.mu.Lock()

	entry, err := e.live(key, index)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	if caller != entry.seller && !e.access.Has(caller, entity.AdminRole) {
		e.mu.Unlock()
		return ErrNotSeller
	}

	now := e.clock()
	if !now.After(entry.endTime) {
		e.mu.Unlock()
		return ErrTimePassed
	}
	if entry.highestBidder == "" {
		e.mu.Unlock()
		return ErrNoBidder
	}

	winner := entry.highestBidder
	amount := new(big.Int).Set(entry.highestBid)

	if _, err := e.fees.SettleBid(winner, entry.seller, amount); err != nil {
		e.mu.Unlock()
		return err
	}

	if err := e.assets.Transfer(entry.collection, CustodyAccount, winner, entry.tokenId, entry.quantity); err != nil {
		e.mu.Unlock()
		return err
	}

	entry.balances[winner] = big.NewInt(0)
	entry.accepted = true
	view := e.view(key, index, entry)
	e.mu.Unlock()

	zap.L().With(
		zap.String("key", key),
		zap.Int("index", index),
		zap.String("winner", winner),
		zap.String("amount", amount.String()),
	).Info("Auction: Accepted")
	event.EmitEvent(event.AuctionAcceptedEvent, factory.CreateAuctionAction(entity.AuctionAcceptedAction, view, winner, amount, now))

	return nil
}

// Cancel returns the asset to the seller. It closes the cancellation window
// once the end time is near so late cancels cannot strand serious bidders.
func (e *engine) Cancel(caller, key string, index int) error {
	e.mu.Lock()

	entry, err := e.live(key, index)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if caller != entry.seller {
		e.mu.Unlock()
		return ErrNotSeller
	}

	now := e.clock()
	if entry.endTime.Sub(now) <= e.cancelWindow {
		e.mu.Unlock()
		return ErrTimePassed
	}

	if err := e.assets.Transfer(entry.collection, CustodyAccount, entry.seller, entry.tokenId, entry.quantity); err != nil {
		e.mu.Unlock()
		return err
	}

	entry.cancelled = true
	view := e.view(key, index, entry)
	e.mu.Unlock()

	event.EmitEvent(event.AuctionCancelledEvent, factory.CreateAuctionAction(entity.AuctionCancelledAction, view, caller, nil, now))

	return nil
}

// Withdraw returns a bidder's outbid balance. The highest bidder is locked in
// while the auction can still settle on their bid.
func (e *engine) Withdraw(bidder, key string, index int) (*big.Int, error) {
	e.mu.Lock()

	entry, err := e.entry(key, index)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	if bidder == entry.highestBidder && !entry.cancelled && !entry.accepted {
		e.mu.Unlock()
		return nil, ErrHighestBidder
	}

	balance, ok := entry.balances[bidder]
	if !ok || balance.Sign() == 0 {
		e.mu.Unlock()
		return nil, escrow.ErrNoFunds
	}

	amount := new(big.Int).Set(balance)
	entry.balances[bidder] = big.NewInt(0)
	view := e.view(key, index, entry)
	e.mu.Unlock()

	if err := e.payer.Pay(bidder, amount); err != nil {
		e.mu.Lock()
		entry.balances[bidder] = amount
		e.mu.Unlock()
		return nil, err
	}

	event.EmitEvent(event.BidWithdrawnEvent, factory.CreateAuctionAction(entity.BidWithdrawnAction, view, bidder, amount, e.clock()))

	return amount, nil
}

// BuyNow ends the auction immediately at the posted price. Earlier bid
// balances are untouched and stay withdrawable, the highest included.
func (e *engine) BuyNow(buyer, key string, index int, paid *big.Int) error {
	e.mu.Lock()

	entry, err := e.live(key, index)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if entry.buyNowPrice == nil {
		e.mu.Unlock()
		return ErrNoBuyNow
	}

	now := e.clock()
	if now.After(entry.endTime) {
		e.mu.Unlock()
		return ErrEnded
	}
	if buyer == entry.seller {
		e.mu.Unlock()
		return ErrSellerBid
	}
	if paid == nil || paid.Cmp(entry.buyNowPrice) < 0 {
		e.mu.Unlock()
		return ErrInvalidPrice
	}

	if _, err := e.fees.SettleBid(buyer, entry.seller, paid); err != nil {
		e.mu.Unlock()
		return err
	}

	if err := e.assets.Transfer(entry.collection, CustodyAccount, buyer, entry.tokenId, entry.quantity); err != nil {
		e.mu.Unlock()
		return err
	}

	entry.accepted = true
	view := e.view(key, index, entry)
	e.mu.Unlock()

	zap.L().With(
		zap.String("key", key),
		zap.Int("index", index),
		zap.String("buyer", buyer),
		zap.String("paid", paid.String()),
	).Info("Auction: Buy now")
	event.EmitEvent(event.BuyNowEvent, factory.CreateAuctionAction(entity.BuyNowAction, view, buyer, paid, now))

	return nil
}

// ReturnBids sweeps refundable balances back to their bidders. An empty
// identity list means every bidder on the entry. Safe to run repeatedly;
// already-refunded and winning balances are skipped.
func (e *engine) ReturnBids(caller, key string, index int, identities []string) error {
	if !e.access.Has(caller, entity.AdminRole) {
		return ErrNotAdmin
	}

	e.mu.Lock()

	entry, err := e.entry(key, index)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	if len(identities) == 0 {
		identities = entry.bidders
	}

	type refund struct {
		bidder string
		amount *big.Int
	}
	refunds := make([]refund, 0, len(identities))
	for _, bidder := range identities {
		if bidder == entry.highestBidder && !entry.cancelled {
			continue
		}
		balance := entry.balances[bidder]
		if balance == nil || balance.Sign() == 0 {
			continue
		}
		refunds = append(refunds, refund{bidder: bidder, amount: new(big.Int).Set(balance)})
		entry.balances[bidder] = big.NewInt(0)
	}
	view := e.view(key, index, entry)
	e.mu.Unlock()

	for _, r := range refunds {
		if err := e.payer.Pay(r.bidder, r.amount); err != nil {
			e.mu.Lock()
			entry.balances[r.bidder] = r.amount
			e.mu.Unlock()
			return err
		}
		event.EmitEvent(event.BidWithdrawnEvent, factory.CreateAuctionAction(entity.BidWithdrawnAction, view, r.bidder, r.amount, e.clock()))
	}

	zap.L().With(zap.String("key", key), zap.Int("index", index), zap.Int("refunds", len(refunds))).Info("Auction: Bids returned")

	return nil
}

func (e *engine) Get(key string, index int) (entity.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.entry(key, index)
	if err != nil {
		return entity.Auction{}, err
	}

	return e.view(key, index, entry), nil
}

func (e *engine) ByKey(key string) []entity.Auction {
	e.mu.Lock()
	defer e.mu.Unlock()

	views := make([]entity.Auction, 0, len(e.arena[key]))
	for i, entry := range e.arena[key] {
		views = append(views, e.view(key, i, entry))
	}

	return views
}

func (e *engine) BidderBalance(key string, index int, bidder string) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.entry(key, index)
	if err != nil {
		return big.NewInt(0)
	}
	balance, ok := entry.balances[bidder]
	if !ok {
		return big.NewInt(0)
	}

	return new(big.Int).Set(balance)
}

func (e *engine) entry(key string, index int) (*auctionEntry, error) {
	entries, ok := e.arena[key]
	if !ok || index < 0 || index >= len(entries) {
		return nil, ErrNotAvailable
	}

	return entries[index], nil
}

func (e *engine) live(key string, index int) (*auctionEntry, error) {
	entry, err := e.entry(key, index)
	if err != nil {
		return nil, err
	}
	if entry.accepted {
		return nil, ErrEnded
	}
	if entry.cancelled {
		return nil, ErrNotAvailable
	}

	return entry, nil
}

func (e *engine) view(key string, index int, entry *auctionEntry) entity.Auction {
	view := entity.Auction{
		Key:           key,
		Index:         index,
		Collection:    entry.collection,
		TokenId:       entry.tokenId,
		Quantity:      entry.quantity,
		Seller:        entry.seller,
		StartingBid:   entry.startingBid.String(),
		EndTime:       entry.endTime,
		HighestBid:    entry.highestBid.String(),
		HighestBidder: entry.highestBidder,
		Accepted:      entry.accepted,
		Cancelled:     entry.cancelled,
		CreatedAt:     entry.createdAt,
	}
	if entry.buyNowPrice != nil {
		view.BuyNowPrice = entry.buyNowPrice.String()
	}

	return view
}
