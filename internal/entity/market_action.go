package entity

import (
	"crypto/md5"
	"fmt"
	"time"
)

type MarketAction struct {
	Action       ActionType `json:"action"`
	Collection   string     `json:"collection,omitempty"`
	TokenId      uint64     `json:"tokenId,omitempty"`
	Key          string     `json:"key,omitempty"`
	Sequence     int        `json:"sequence"`
	ListingId    uint64     `json:"listingId,omitempty"`
	Actor        string     `json:"actor"`
	Counterparty string     `json:"counterparty,omitempty"`
	Amount       string     `json:"amount,omitempty"`
	Fee          string     `json:"fee,omitempty"`
	Royalty      string     `json:"royalty,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

type ActionType string

const (
	ListedAction        ActionType = "listed"
	SoldAction          ActionType = "sold"
	DelistedAction      ActionType = "delisted"
	FeesUpdateAction    ActionType = "feesUpdate"
	AdminWithdrawAction ActionType = "adminWithdraw"
	RoyaltyChangeAction ActionType = "royaltyChange"
	RoyaltyRemoveAction ActionType = "royaltyRemove"
	StakerUpdateAction  ActionType = "stakerUpdate"

	OfferMadeAction      ActionType = "offerMade"
	OfferCancelledAction ActionType = "offerCancelled"
	OfferRejectedAction  ActionType = "offerRejected"
	OfferAcceptedAction  ActionType = "offerAccepted"
	OfferUpdatedAction   ActionType = "offerUpdated"

	AuctionCreatedAction   ActionType = "auctionCreated"
	BidAction              ActionType = "bid"
	TimeIncreasedAction    ActionType = "timeIncreased"
	AuctionAcceptedAction  ActionType = "auctionAccepted"
	AuctionCancelledAction ActionType = "auctionCancelled"
	BidWithdrawnAction     ActionType = "bidWithdrawn"
	BuyNowAction           ActionType = "buyNow"

	StakedAction   ActionType = "staked"
	UnstakedAction ActionType = "unstaked"
	HarvestAction  ActionType = "harvest"
)

func (a MarketAction) Slug() string {
	data := []byte(fmt.Sprintf("action-%s-%s-%d-%s-%d", a.Action, a.Collection, a.TokenId, a.Actor, a.Timestamp.UnixNano()))
	return fmt.Sprintf("%x", md5.Sum(data))
}
