package offer

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
	ErrUnsupportedType  = errors.New("unsupported type")
	ErrOfferNotFound    = errors.New("offer not exist")
	ErrOfferNotOpen     = errors.New("offer is not opened")
	ErrNotOfferOwner    = errors.New("not offer owner")
	ErrIncorrectBuyer   = errors.New("incorrect buyer")
	ErrNotTokenOwner    = errors.New("not nft owner")
	ErrNotHolder        = errors.New("not token owner")
	ErrNotEnoughBalance = errors.New("not enough balance for token")
	ErrInvalidAmount    = errors.New("invalid amount")
)

// Engine keeps an append-only history of offers per key. Terminal entries
// are never rewritten; updating rotates the open entry into a new one.
type Engine interface {
	MakeOffer(buyer, collection string, tokenId uint64, amount *big.Int) (entity.Offer, error)
	MakeCollectionOffer(buyer, collection string, amount *big.Int) (entity.Offer, error)
	UpdateOffer(buyer, key string, index int, added *big.Int) (entity.Offer, error)
	CancelOffer(caller, key string, index int) error
	RejectOffer(caller, key string, index int) error
	AcceptOffer(caller, key string, index int) error
	AcceptCollectionOffer(caller, collection string, index int, tokenId uint64) error
	Get(key string, index int) (entity.Offer, error)
	History(key string) []entity.Offer
	OpenOffer(key, buyer string) (entity.Offer, bool)
}

type offerEntry struct {
	collection      string
	tokenId         uint64
	buyer           string
	amount          *big.Int
	status          entity.OfferStatus
	collectionOffer bool
	createdAt       time.Time
}

type engine struct {
	mu     sync.Mutex
	assets registry.AssetRegistry
	fees   fees.Engine
	payer  escrow.Payer
	access access.Control
	clock  func() time.Time
	arena  map[string][]*offerEntry
}

func NewEngine(assets registry.AssetRegistry, feeEngine fees.Engine, payer escrow.Payer, ac access.Control, clock func() time.Time) Engine {
	return &engine{
		assets: assets,
		fees:   feeEngine,
		payer:  payer,
		access: ac,
		clock:  clock,
		arena:  make(map[string][]*offerEntry),
	}
}

func (e *engine) MakeOffer(buyer, collection string, tokenId uint64, amount *big.Int) (entity.Offer, error) {
	if _, err := e.assets.Standard(collection); err != nil {
		return entity.Offer{}, ErrUnsupportedType
	}

	key := entity.CreateOfferKey(collection, tokenId)

	return e.place(buyer, key, collection, tokenId, amount, false)
}

func (e *engine) MakeCollectionOffer(buyer, collection string, amount *big.Int) (entity.Offer, error) {
	if _, err := e.assets.Standard(collection); err != nil {
		return entity.Offer{}, ErrUnsupportedType
	}

	key := entity.CreateCollectionOfferKey(collection)

	return e.place(buyer, key, collection, 0, amount, true)
}

// place appends a new open entry, or rotates the buyer's existing open entry
// by folding the new funds into a replacement.
func (e *engine) place(buyer, key, collection string, tokenId uint64, amount *big.Int, collectionOffer bool) (entity.Offer, error) {
	if amount == nil || amount.Sign() <= 0 {
		return entity.Offer{}, ErrInvalidAmount
	}

	e.mu.Lock()

	total := new(big.Int).Set(amount)
	updated := false
	for _, entry := range e.arena[key] {
		if entry.buyer == buyer && entry.status == entity.OfferOpen {
			entry.status = entity.OfferUpdated
			total.Add(total, entry.amount)
			updated = true
			break
		}
	}

	entry := &offerEntry{
		collection:      collection,
		tokenId:         tokenId,
		buyer:           buyer,
		amount:          total,
		status:          entity.OfferOpen,
		collectionOffer: collectionOffer,
		createdAt:       e.clock(),
	}
	e.arena[key] = append(e.arena[key], entry)
	view := e.view(key, len(e.arena[key])-1, entry)
	e.mu.Unlock()

	zap.L().With(
		zap.String("key", key),
		zap.String("buyer", buyer),
		zap.String("amount", total.String()),
		zap.Bool("updated", updated),
	).Info("Offer: Placed")

	if updated {
		e.emit(entity.OfferUpdatedAction, view)
	} else {
		e.emit(entity.OfferMadeAction, view)
	}

	return view, nil
}

func (e *engine) UpdateOffer(buyer, key string, index int, added *big.Int) (entity.Offer, error) {
	if added == nil || added.Sign() <= 0 {
		return entity.Offer{}, ErrInvalidAmount
	}

	e.mu.Lock()

	entry, err := e.entry(key, index)
	if err != nil {
		e.mu.Unlock()
		return entity.Offer{}, err
	}
	if entry.buyer != buyer {
		e.mu.Unlock()
		return entity.Offer{}, ErrNotOfferOwner
	}
	if entry.status != entity.OfferOpen {
		e.mu.Unlock()
		return entity.Offer{}, ErrOfferNotOpen
	}

	entry.status = entity.OfferUpdated

	replacement := &offerEntry{
		collection:      entry.collection,
		tokenId:         entry.tokenId,
		buyer:           buyer,
		amount:          new(big.Int).Add(entry.amount, added),
		status:          entity.OfferOpen,
		collectionOffer: entry.collectionOffer,
		createdAt:       e.clock(),
	}
	e.arena[key] = append(e.arena[key], replacement)
	view := e.view(key, len(e.arena[key])-1, replacement)
	e.mu.Unlock()

	e.emit(entity.OfferUpdatedAction, view)

	return view, nil
}

func (e *engine) CancelOffer(caller, key string, index int) error {
	e.mu.Lock()

	entry, err := e.entry(key, index)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if entry.buyer != caller && !e.access.Has(caller, entity.StaffRole) {
		e.mu.Unlock()
		return ErrIncorrectBuyer
	}
	if entry.status != entity.OfferOpen {
		e.mu.Unlock()
		return ErrOfferNotOpen
	}

	entry.status = entity.OfferCancelled
	refund := new(big.Int).Set(entry.amount)
	view := e.view(key, index, entry)
	e.mu.Unlock()

	if err := e.payer.Pay(entry.buyer, refund); err != nil {
		return err
	}

	e.emit(entity.OfferCancelledAction, view)

	return nil
}

// RejectOffer may be called by anyone holding the asset side of the deal;
// it refunds the buyer in full.
func (e *engine) RejectOffer(caller, key string, index int) error {
	e.mu.Lock()

	entry, err := e.entry(key, index)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if entry.status != entity.OfferOpen {
		e.mu.Unlock()
		return ErrOfferNotOpen
	}

	entry.status = entity.OfferRejected
	refund := new(big.Int).Set(entry.amount)
	view := e.view(key, index, entry)
	e.mu.Unlock()

	if err := e.payer.Pay(entry.buyer, refund); err != nil {
		return err
	}

	zap.L().With(zap.String("key", key), zap.Int("index", index), zap.String("caller", caller)).Info("Offer: Rejected")
	e.emit(entity.OfferRejectedAction, view)

	return nil
}

func (e *engine) AcceptOffer(caller, key string, index int) error {
	return e.accept(caller, key, index, nil)
}

// AcceptCollectionOffer accepts a collection-wide offer against the specific
// token the accepter chooses to deliver.
func (e *engine) AcceptCollectionOffer(caller, collection string, index int, tokenId uint64) error {
	key := entity.CreateCollectionOfferKey(collection)
	return e.accept(caller, key, index, &tokenId)
}

func (e *engine) accept(caller, key string, index int, collectionTokenId *uint64) error {
	e.mu.Lock()

	entry, err := e.entry(key, index)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if entry.status != entity.OfferOpen {
		e.mu.Unlock()
		return ErrOfferNotOpen
	}

	tokenId := entry.tokenId
	if entry.collectionOffer {
		if collectionTokenId == nil {
			e.mu.Unlock()
			return ErrOfferNotFound
		}
		tokenId = *collectionTokenId
	}

	standard, err := e.assets.Standard(entry.collection)
	if err != nil {
		e.mu.Unlock()
		return ErrUnsupportedType
	}

	if standard == entity.SingleOwner {
		owner, err := e.assets.OwnerOf(entry.collection, tokenId)
		if err != nil || owner != caller {
			e.mu.Unlock()
			if entry.collectionOffer {
				return ErrNotHolder
			}
			return ErrNotTokenOwner
		}
	} else if e.assets.BalanceOf(entry.collection, tokenId, caller) < 1 {
		e.mu.Unlock()
		return ErrNotEnoughBalance
	}

	if _, err := e.fees.SettleSale(caller, entry.collection, tokenId, entry.amount); err != nil {
		e.mu.Unlock()
		return err
	}

	if err := e.assets.Transfer(entry.collection, caller, entry.buyer, tokenId, 1); err != nil {
		e.mu.Unlock()
		return err
	}

	entry.status = entity.OfferAccepted
	view := e.view(key, index, entry)
	view.TokenId = tokenId
	e.mu.Unlock()

	zap.L().With(
		zap.String("key", key),
		zap.Int("index", index),
		zap.String("seller", caller),
		zap.String("buyer", entry.buyer),
	).Info("Offer: Accepted")
	e.emit(entity.OfferAcceptedAction, view)

	return nil
}

func (e *engine) Get(key string, index int) (entity.Offer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.entry(key, index)
	if err != nil {
		return entity.Offer{}, err
	}

	return e.view(key, index, entry), nil
}

func (e *engine) History(key string) []entity.Offer {
	e.mu.Lock()
	defer e.mu.Unlock()

	history := make([]entity.Offer, 0, len(e.arena[key]))
	for i, entry := range e.arena[key] {
		history = append(history, e.view(key, i, entry))
	}

	return history
}

func (e *engine) OpenOffer(key, buyer string) (entity.Offer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, entry := range e.arena[key] {
		if entry.buyer == buyer && entry.status == entity.OfferOpen {
			return e.view(key, i, entry), true
		}
	}

	return entity.Offer{}, false
}

func (e *engine) entry(key string, index int) (*offerEntry, error) {
	entries, ok := e.arena[key]
	if !ok || index < 0 || index >= len(entries) {
		return nil, ErrOfferNotFound
	}

	return entries[index], nil
}

func (e *engine) view(key string, index int, entry *offerEntry) entity.Offer {
	return entity.Offer{
		Key:             key,
		Index:           index,
		Collection:      entry.collection,
		TokenId:         entry.tokenId,
		Buyer:           entry.buyer,
		Amount:          entry.amount.String(),
		Status:          entry.status,
		CollectionOffer: entry.collectionOffer,
		CreatedAt:       entry.createdAt,
	}
}

func (e *engine) emit(action entity.ActionType, view entity.Offer) {
	eventType := offerEventType(action, view.CollectionOffer)
	event.EmitEvent(eventType, factory.CreateOfferAction(action, view, e.clock()))
}

func offerEventType(action entity.ActionType, collectionOffer bool) event.Type {
	if collectionOffer {
		switch action {
		case entity.OfferCancelledAction:
			return event.CollectionOfferCancelledEvent
		case entity.OfferRejectedAction:
			return event.CollectionOfferRejectedEvent
		case entity.OfferAcceptedAction:
			return event.CollectionOfferAcceptedEvent
		case entity.OfferUpdatedAction:
			return event.CollectionOfferUpdatedEvent
		default:
			return event.CollectionOfferMadeEvent
		}
	}

	switch action {
	case entity.OfferCancelledAction:
		return event.OfferCancelledEvent
	case entity.OfferRejectedAction:
		return event.OfferRejectedEvent
	case entity.OfferAcceptedAction:
		return event.OfferAcceptedEvent
	case entity.OfferUpdatedAction:
		return event.OfferUpdatedEvent
	default:
		return event.OfferMadeEvent
	}
}
