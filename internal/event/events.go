package event

type Type string

const (
	ListedEvent        Type = "ListedEvent"
	SoldEvent          Type = "SoldEvent"
	CancelledEvent     Type = "CancelledEvent"
	FeesUpdateEvent    Type = "FeesUpdateEvent"
	AdminWithdrawEvent Type = "AdminWithdrawEvent"
	RoyaltyChangedEvent Type = "RoyaltyChangedEvent"
	RoyaltyRemovedEvent Type = "RoyaltyRemovedEvent"
	StakerUpdatedEvent  Type = "StakerUpdatedEvent"

	OfferMadeEvent      Type = "OfferMadeEvent"
	OfferCancelledEvent Type = "OfferCancelledEvent"
	OfferRejectedEvent  Type = "OfferRejectedEvent"
	OfferAcceptedEvent  Type = "OfferAcceptedEvent"
	OfferUpdatedEvent   Type = "OfferUpdatedEvent"

	CollectionOfferMadeEvent      Type = "CollectionOfferMadeEvent"
	CollectionOfferCancelledEvent Type = "CollectionOfferCancelledEvent"
	CollectionOfferRejectedEvent  Type = "CollectionOfferRejectedEvent"
	CollectionOfferAcceptedEvent  Type = "CollectionOfferAcceptedEvent"
	CollectionOfferUpdatedEvent   Type = "CollectionOfferUpdatedEvent"

	AuctionCreatedEvent   Type = "AuctionCreatedEvent"
	BidEvent              Type = "BidEvent"
	TimeIncreasedEvent    Type = "TimeIncreasedEvent"
	AuctionAcceptedEvent  Type = "AuctionAcceptedEvent"
	AuctionCancelledEvent Type = "AuctionCancelledEvent"
	BidWithdrawnEvent     Type = "BidWithdrawnEvent"
	BuyNowEvent           Type = "BuyNowEvent"

	MembershipStakedEvent   Type = "MembershipStakedEvent"
	MembershipUnstakedEvent Type = "MembershipUnstakedEvent"

	ActionIndexedEvent Type = "ActionIndexedEvent"
)
