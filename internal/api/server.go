package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/MintBay/market-engine/internal/auction"
	"github.com/MintBay/market-engine/internal/entity"
	"github.com/MintBay/market-engine/internal/escrow"
	"github.com/MintBay/market-engine/internal/fees"
	"github.com/MintBay/market-engine/internal/listing"
	"github.com/MintBay/market-engine/internal/offer"
	"github.com/MintBay/market-engine/internal/repository"
	"github.com/MintBay/market-engine/internal/staking"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Server struct {
	listings   listing.Registry
	offers     offer.Engine
	auctions   auction.Engine
	feeEngine  fees.Engine
	ledger     escrow.Ledger
	pool       staking.Pool
	actionRepo repository.MarketActionRepository
}

func NewServer(
	listings listing.Registry,
	offers offer.Engine,
	auctions auction.Engine,
	feeEngine fees.Engine,
	ledger escrow.Ledger,
	pool staking.Pool,
	actionRepo repository.MarketActionRepository,
) Server {
	return Server{listings, offers, auctions, feeEngine, ledger, pool, actionRepo}
}

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleHomepage).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	r.HandleFunc("/listings", s.handleGetListings).Methods("GET")
	r.HandleFunc("/listings/totals", s.handleGetListingTotals).Methods("GET")
	r.HandleFunc("/listings/{listingId}", s.handleGetListing).Methods("GET")

	r.HandleFunc("/royalty/{collection}/{tokenId}", s.handleGetRoyalty).Methods("GET")
	r.HandleFunc("/fees/{identity}", s.handleGetFee).Methods("GET")
	r.HandleFunc("/escrow/{account}", s.handleGetEscrowBalance).Methods("GET")

	r.HandleFunc("/staking", s.handleGetStaking).Methods("GET")
	r.HandleFunc("/staking/{account}", s.handleGetStakePosition).Methods("GET")

	r.HandleFunc("/offers/{key}", s.handleGetOffers).Methods("GET")
	r.HandleFunc("/auctions/{key}", s.handleGetAuctions).Methods("GET")
	r.HandleFunc("/auctions/{key}/{index}/minimum", s.handleGetMinimumBid).Methods("GET")

	r.HandleFunc("/actions", s.handleGetActions).Methods("GET")
	r.HandleFunc("/actions/{key}", s.handleGetActionsByKey).Methods("GET")

	r.NotFoundHandler = notFoundHandler()

	return r
}

func (s Server) handleHomepage(w http.ResponseWriter, r *http.Request) {
	_, _ = fmt.Fprintf(w, "MintBay Market Engine")
}

func (s Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

func (s Server) handleGetListings(w http.ResponseWriter, r *http.Request) {
	page, size := pagination(r)

	listings, total := s.listings.PagedActive(page, size)

	writeJson(w, map[string]interface{}{
		"listings": listings,
		"total":    total,
	})
}

func (s Server) handleGetListingTotals(w http.ResponseWriter, r *http.Request) {
	writeJson(w, map[string]interface{}{
		"active":   s.listings.TotalActive(),
		"complete": s.listings.TotalComplete(),
	})
}

func (s Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	listingId, err := strconv.ParseUint(mux.Vars(r)["listingId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid listing id", http.StatusBadRequest)
		return
	}

	got, err := s.listings.Get(listingId)
	if err != nil {
		http.Error(w, "Listing not available", http.StatusNotFound)
		return
	}

	writeJson(w, got)
}

func (s Server) handleGetRoyalty(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	tokenId, err := getTokenId(r)
	if err != nil {
		http.Error(w, "Invalid token id", http.StatusBadRequest)
		return
	}

	recipient, bps := s.feeEngine.Royalty(collection, tokenId)

	writeJson(w, entity.Royalty{Collection: collection, Recipient: recipient, Bps: bps})
}

func (s Server) handleGetFee(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]

	writeJson(w, map[string]interface{}{
		"identity": identity,
		"feeBps":   s.feeEngine.Fee(identity),
	})
}

func (s Server) handleGetEscrowBalance(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	writeJson(w, map[string]interface{}{
		"account": account,
		"balance": entity.FormatAmount(s.ledger.BalanceOf(account)),
	})
}

func (s Server) handleGetStaking(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"totalStaked": s.pool.TotalStaked(),
	}

	if epochPool, ok := s.pool.(staking.EpochPool); ok {
		response["currentPool"] = epochPool.CurrentPool()
		if completed, exists := epochPool.CompletedPool(); exists {
			response["completedPool"] = completed
		}
	}

	writeJson(w, response)
}

func (s Server) handleGetStakePosition(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	response := map[string]interface{}{
		"staker": account,
		"staked": s.pool.StakedBy(account),
	}

	if accumulator, ok := s.pool.(staking.AccumulatorPool); ok {
		response["pending"] = entity.FormatAmount(accumulator.Reward(account))
		response["released"] = entity.FormatAmount(accumulator.ReleasedReward(account))
	}

	writeJson(w, response)
}

func (s Server) handleGetOffers(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	writeJson(w, s.offers.History(key))
}

func (s Server) handleGetAuctions(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	writeJson(w, s.auctions.ByKey(key))
}

func (s Server) handleGetMinimumBid(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "Invalid auction index", http.StatusBadRequest)
		return
	}

	minimum, err := s.auctions.MinimumBid(key, index)
	if err != nil {
		http.Error(w, "Auction not available", http.StatusNotFound)
		return
	}

	writeJson(w, map[string]interface{}{
		"key":        key,
		"index":      index,
		"minimumBid": entity.FormatAmount(minimum),
	})
}

func (s Server) handleGetActions(w http.ResponseWriter, r *http.Request) {
	page, size := pagination(r)

	actions, total, err := s.actionRepo.GetActions(page, size)
	if err != nil {
		zap.L().With(zap.Error(err)).Warn("Api: Failed to get actions")
		http.Error(w, "Actions not available", http.StatusInternalServerError)
		return
	}

	writeJson(w, map[string]interface{}{
		"actions": actions,
		"total":   total,
	})
}

func (s Server) handleGetActionsByKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	actions, err := s.actionRepo.GetActionsByKey(key)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("key", key)).Warn("Api: Failed to get actions")
		http.Error(w, "Actions not available", http.StatusInternalServerError)
		return
	}

	writeJson(w, actions)
}

func getTokenId(r *http.Request) (uint64, error) {
	tokenId, ok := mux.Vars(r)["tokenId"]
	if !ok {
		return 0, errors.New("invalid parameters")
	}

	return strconv.ParseUint(tokenId, 10, 64)
}

func pagination(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size < 1 || size > 100 {
		size = 20
	}

	return page, size
}

func writeJson(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().With(zap.Error(err)).Error("Api: Failed to encode response")
	}
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		_, _ = fmt.Fprintf(w, "Page not found")
	})
}
