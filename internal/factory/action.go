package factory

import (
	"github.com/MintBay/market-engine/internal/entity"
	"math/big"
	"time"
)

func CreateListedAction(listing entity.Listing) entity.MarketAction {
	return entity.MarketAction{
		Action:     entity.ListedAction,
		Collection: listing.Collection,
		TokenId:    listing.TokenId,
		ListingId:  listing.Id,
		Actor:      listing.Lister,
		Amount:     listing.Price,
		Timestamp:  listing.ListedAt,
	}
}

func CreateSoldAction(listing entity.Listing, buyer string, paid, fee, royalty *big.Int, at time.Time) entity.MarketAction {
	return entity.MarketAction{
		Action:       entity.SoldAction,
		Collection:   listing.Collection,
		TokenId:      listing.TokenId,
		ListingId:    listing.Id,
		Actor:        buyer,
		Counterparty: listing.Lister,
		Amount:       entity.FormatAmount(paid),
		Fee:          entity.FormatAmount(fee),
		Royalty:      entity.FormatAmount(royalty),
		Timestamp:    at,
	}
}

func CreateDelistedAction(listing entity.Listing, at time.Time) entity.MarketAction {
	return entity.MarketAction{
		Action:     entity.DelistedAction,
		Collection: listing.Collection,
		TokenId:    listing.TokenId,
		ListingId:  listing.Id,
		Actor:      listing.Lister,
		Timestamp:  at,
	}
}

func CreateFeesUpdateAction(caller string, high, mid, low uint64, at time.Time) entity.MarketAction {
	return entity.MarketAction{
		Action:    entity.FeesUpdateAction,
		Actor:     caller,
		Amount:    entity.FormatAmount(new(big.Int).SetUint64(high)),
		Fee:       entity.FormatAmount(new(big.Int).SetUint64(mid)),
		Royalty:   entity.FormatAmount(new(big.Int).SetUint64(low)),
		Timestamp: at,
	}
}

func CreateAdminWithdrawAction(admin string, amount *big.Int, at time.Time) entity.MarketAction {
	return entity.MarketAction{
		Action:    entity.AdminWithdrawAction,
		Actor:     admin,
		Amount:    entity.FormatAmount(amount),
		Timestamp: at,
	}
}

func CreateRoyaltyChangeAction(caller string, royalty entity.Royalty, at time.Time) entity.MarketAction {
	return entity.MarketAction{
		Action:       entity.RoyaltyChangeAction,
		Collection:   royalty.Collection,
		Actor:        caller,
		Counterparty: royalty.Recipient,
		Royalty:      entity.FormatAmount(new(big.Int).SetUint64(royalty.Bps)),
		Timestamp:    at,
	}
}

func CreateRoyaltyRemoveAction(caller, collection string, at time.Time) entity.MarketAction {
	return entity.MarketAction{
		Action:     entity.RoyaltyRemoveAction,
		Collection: collection,
		Actor:      caller,
		Timestamp:  at,
	}
}

func CreateStakerUpdateAction(admin, staker string, at time.Time) entity.MarketAction {
	return entity.MarketAction{
		Action:       entity.StakerUpdateAction,
		Actor:        admin,
		Counterparty: staker,
		Timestamp:    at,
	}
}

func CreateOfferAction(action entity.ActionType, offer entity.Offer, at time.Time) entity.MarketAction {
	return entity.MarketAction{
		Action:     action,
		Collection: offer.Collection,
		TokenId:    offer.TokenId,
		Key:        offer.Key,
		Sequence:   offer.Index,
		Actor:      offer.Buyer,
		Amount:     offer.Amount,
		Timestamp:  at,
	}
}

func CreateAuctionAction(action entity.ActionType, auction entity.Auction, actor string, amount *big.Int, at time.Time) entity.MarketAction {
	return entity.MarketAction{
		Action:       action,
		Collection:   auction.Collection,
		TokenId:      auction.TokenId,
		Key:          auction.Key,
		Sequence:     auction.Index,
		Actor:        actor,
		Counterparty: auction.Seller,
		Amount:       entity.FormatAmount(amount),
		Timestamp:    at,
	}
}

func CreateStakeAction(action entity.ActionType, staker string, newTotal uint64, at time.Time) entity.MarketAction {
	return entity.MarketAction{
		Action:    action,
		Actor:     staker,
		Amount:    entity.FormatAmount(new(big.Int).SetUint64(newTotal)),
		Timestamp: at,
	}
}
