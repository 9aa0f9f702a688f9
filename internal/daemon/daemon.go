package daemon

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MintBay/market-engine/internal/config"
	"github.com/MintBay/market-engine/internal/config/di"
	"github.com/MintBay/market-engine/internal/dev"
	"github.com/MintBay/market-engine/internal/elastic_search"
	"github.com/MintBay/market-engine/internal/entity"
	"github.com/MintBay/market-engine/internal/event"
	"github.com/MintBay/market-engine/internal/messenger"
	"go.uber.org/zap"
)

var container *di.Container

var actionEvents = []event.Type{
	event.ListedEvent,
	event.SoldEvent,
	event.CancelledEvent,
	event.FeesUpdateEvent,
	event.AdminWithdrawEvent,
	event.RoyaltyChangedEvent,
	event.RoyaltyRemovedEvent,
	event.StakerUpdatedEvent,
	event.OfferMadeEvent,
	event.OfferCancelledEvent,
	event.OfferRejectedEvent,
	event.OfferAcceptedEvent,
	event.OfferUpdatedEvent,
	event.CollectionOfferMadeEvent,
	event.CollectionOfferCancelledEvent,
	event.CollectionOfferRejectedEvent,
	event.CollectionOfferAcceptedEvent,
	event.CollectionOfferUpdatedEvent,
	event.AuctionCreatedEvent,
	event.BidEvent,
	event.TimeIncreasedEvent,
	event.AuctionAcceptedEvent,
	event.AuctionCancelledEvent,
	event.BidWithdrawnEvent,
	event.BuyNowEvent,
	event.MembershipStakedEvent,
	event.MembershipUnstakedEvent,
}

func Execute() {
	initialize()

	container.GetElastic().InstallMappings()

	bootstrap()
	registerListeners()

	go flush()

	serve()
}

func initialize() {
	config.Init()

	var err error
	container, err = di.NewContainer()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}

	zap.L().Info("Market Engine Started")
}

// bootstrap hands the staking pool to the fee engine so sale fees start
// flowing into the reward pool.
func bootstrap() {
	admin := config.Get().Admin

	if err := container.GetFees().SetStaker(admin, container.GetStaking()); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to attach staking pool")
	}
}

func registerListeners() {
	for _, eventType := range actionEvents {
		event.AddEventListener(eventType, indexAction)
	}
}

func indexAction(msg interface{}) {
	action, ok := msg.(entity.MarketAction)
	if !ok {
		zap.L().Warn("Daemon: Unexpected event payload")
		return
	}

	container.GetElastic().AddIndexRequest(elastic_search.MarketActionIndex.Get(), action)

	switch action.Action {
	case entity.ListedAction, entity.SoldAction, entity.DelistedAction:
		if l, err := container.GetListings().Get(action.ListingId); err == nil {
			container.GetElastic().AddIndexRequest(elastic_search.ListingIndex.Get(), l)
		}
	}

	container.GetElastic().BatchPersist()

	publish(action)
}

func publish(action entity.MarketAction) {
	body, err := json.Marshal(action)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Daemon: Failed to marshal action")
		return
	}

	if err := container.GetMessenger().SendMessage(messenger.MarketActions, body, false); err != nil {
		zap.L().With(zap.Error(err), zap.String("action", string(action.Action))).
			Error("Daemon: Failed to publish action")
		container.GetElastic().AddIndexRequest(elastic_search.ErrorIndex.Get(), dev.NewError(
			"daemon", "publish", err, map[string]interface{}{"action": action.Action},
		))
	}

	event.EmitEvent(event.ActionIndexedEvent, action)
}

func flush() {
	for {
		time.Sleep(10 * time.Second)
		container.GetElastic().Persist()
	}
}

func serve() {
	port := config.Get().ApiPort
	zap.L().With(zap.String("port", port)).Info("Api Started")

	if err := http.ListenAndServe(":"+port, container.GetApiServer().Router()); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to start api")
	}
}
