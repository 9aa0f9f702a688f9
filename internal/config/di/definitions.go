package di

import (
	"time"

	"github.com/MintBay/market-engine/internal/access"
	"github.com/MintBay/market-engine/internal/api"
	"github.com/MintBay/market-engine/internal/auction"
	"github.com/MintBay/market-engine/internal/config"
	"github.com/MintBay/market-engine/internal/elastic_search"
	"github.com/MintBay/market-engine/internal/escrow"
	"github.com/MintBay/market-engine/internal/fees"
	"github.com/MintBay/market-engine/internal/listing"
	"github.com/MintBay/market-engine/internal/messenger"
	"github.com/MintBay/market-engine/internal/offer"
	"github.com/MintBay/market-engine/internal/registry"
	"github.com/MintBay/market-engine/internal/repository"
	"github.com/MintBay/market-engine/internal/staking"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/patrickmn/go-cache"
	"github.com/sarulabs/di/v2"
	"go.uber.org/zap"
)

type Container struct {
	ctn di.Container
}

func NewContainer() (*Container, error) {
	builder, err := di.NewBuilder()
	if err != nil {
		return nil, err
	}

	if err := builder.Add(definitions...); err != nil {
		return nil, err
	}

	return &Container{ctn: builder.Build()}, nil
}

func (c *Container) GetAccess() access.Control {
	return c.ctn.Get("access").(access.Control)
}

func (c *Container) GetPayer() *escrow.MemoryPayer {
	return c.ctn.Get("payer").(*escrow.MemoryPayer)
}

func (c *Container) GetLedger() escrow.Ledger {
	return c.ctn.Get("ledger").(escrow.Ledger)
}

func (c *Container) GetAssets() registry.AssetRegistry {
	return c.ctn.Get("assets").(registry.AssetRegistry)
}

func (c *Container) GetMemberships() registry.MembershipRegistry {
	return c.ctn.Get("memberships").(registry.MembershipRegistry)
}

func (c *Container) GetStaking() staking.Pool {
	return c.ctn.Get("staking").(staking.Pool)
}

func (c *Container) GetFees() fees.Engine {
	return c.ctn.Get("fees").(fees.Engine)
}

func (c *Container) GetListings() listing.Registry {
	return c.ctn.Get("listings").(listing.Registry)
}

func (c *Container) GetOffers() offer.Engine {
	return c.ctn.Get("offers").(offer.Engine)
}

func (c *Container) GetAuctions() auction.Engine {
	return c.ctn.Get("auctions").(auction.Engine)
}

func (c *Container) GetElastic() elastic_search.Index {
	return c.ctn.Get("elastic").(elastic_search.Index)
}

func (c *Container) GetMessenger() messenger.MessageService {
	return c.ctn.Get("messenger").(messenger.MessageService)
}

func (c *Container) GetActionRepo() repository.MarketActionRepository {
	return c.ctn.Get("action.repo").(repository.MarketActionRepository)
}

func (c *Container) GetListingRepo() repository.ListingRepository {
	return c.ctn.Get("listing.repo").(repository.ListingRepository)
}

func (c *Container) GetApiServer() api.Server {
	return c.ctn.Get("api").(api.Server)
}

var definitions = []di.Def{
	{
		Name: "access",
		Build: func(ctn di.Container) (interface{}, error) {
			return access.New(config.Get().Admin), nil
		},
	},
	{
		Name: "payer",
		Build: func(ctn di.Container) (interface{}, error) {
			return escrow.NewMemoryPayer(), nil
		},
	},
	{
		Name: "ledger",
		Build: func(ctn di.Container) (interface{}, error) {
			return escrow.NewLedger(ctn.Get("payer").(*escrow.MemoryPayer)), nil
		},
	},
	{
		Name: "memberships",
		Build: func(ctn di.Container) (interface{}, error) {
			return registry.NewMemoryMembershipRegistry(), nil
		},
	},
	{
		Name: "assets",
		Build: func(ctn di.Container) (interface{}, error) {
			mirrorUrl := config.Get().Registry.MirrorUrl
			if mirrorUrl == "" {
				return registry.NewMemoryAssetRegistry(), nil
			}

			client := retryablehttp.NewClient()
			client.HTTPClient.Timeout = time.Duration(config.Get().Registry.Timeout) * time.Second
			client.Logger = nil

			return registry.NewMirrorClient(client, mirrorUrl, cache.New(5*time.Minute, 10*time.Minute)), nil
		},
	},
	{
		Name: "staking",
		Build: func(ctn di.Container) (interface{}, error) {
			ac := ctn.Get("access").(access.Control)
			memberships := ctn.Get("memberships").(registry.MembershipRegistry)
			payer := ctn.Get("payer").(*escrow.MemoryPayer)

			if config.Get().Staking.Model == "epoch" {
				epoch := time.Duration(config.Get().Staking.EpochSeconds) * time.Second
				return staking.NewEpochPool(ac, memberships, payer, epoch, time.Now), nil
			}

			return staking.NewAccumulatorPool(ac, memberships, payer, config.Get().Staking.RewardScale, time.Now), nil
		},
	},
	{
		Name: "fees",
		Build: func(ctn di.Container) (interface{}, error) {
			return fees.NewEngine(
				ctn.Get("access").(access.Control),
				ctn.Get("memberships").(registry.MembershipRegistry),
				ctn.Get("assets").(registry.AssetRegistry),
				ctn.Get("ledger").(escrow.Ledger),
				fees.Config{
					HighBps: config.Get().Fees.HighBps,
					MidBps:  config.Get().Fees.MidBps,
					LowBps:  config.Get().Fees.LowBps,
				},
				config.Get().Platform,
				time.Now,
			), nil
		},
	},
	{
		Name: "listings",
		Build: func(ctn di.Container) (interface{}, error) {
			return listing.NewRegistry(
				ctn.Get("assets").(registry.AssetRegistry),
				ctn.Get("fees").(fees.Engine),
				ctn.Get("ledger").(escrow.Ledger),
				ctn.Get("access").(access.Control),
				time.Now,
			), nil
		},
	},
	{
		Name: "offers",
		Build: func(ctn di.Container) (interface{}, error) {
			return offer.NewEngine(
				ctn.Get("assets").(registry.AssetRegistry),
				ctn.Get("fees").(fees.Engine),
				ctn.Get("payer").(*escrow.MemoryPayer),
				ctn.Get("access").(access.Control),
				time.Now,
			), nil
		},
	},
	{
		Name: "auctions",
		Build: func(ctn di.Container) (interface{}, error) {
			return auction.NewEngine(
				ctn.Get("assets").(registry.AssetRegistry),
				ctn.Get("fees").(fees.Engine),
				ctn.Get("payer").(*escrow.MemoryPayer),
				ctn.Get("access").(access.Control),
				time.Duration(config.Get().Market.AntiSnipeMinutes)*time.Minute,
				time.Duration(config.Get().Market.CancelWindowHours)*time.Hour,
				time.Now,
			), nil
		},
	},
	{
		Name: "elastic",
		Build: func(ctn di.Container) (interface{}, error) {
			elastic, err := elastic_search.New()
			if err != nil {
				zap.L().With(zap.Error(err)).Fatal("Failed to start ES")
			}

			return elastic, nil
		},
	},
	{
		Name: "messenger",
		Build: func(ctn di.Container) (interface{}, error) {
			return messenger.NewMessenger(config.Get().AmqpUri), nil
		},
	},
	{
		Name: "action.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			return repository.NewMarketActionRepository(ctn.Get("elastic").(elastic_search.Index)), nil
		},
	},
	{
		Name: "listing.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			return repository.NewListingRepository(ctn.Get("elastic").(elastic_search.Index)), nil
		},
	},
	{
		Name: "api",
		Build: func(ctn di.Container) (interface{}, error) {
			return api.NewServer(
				ctn.Get("listings").(listing.Registry),
				ctn.Get("offers").(offer.Engine),
				ctn.Get("auctions").(auction.Engine),
				ctn.Get("fees").(fees.Engine),
				ctn.Get("ledger").(escrow.Ledger),
				ctn.Get("staking").(staking.Pool),
				ctn.Get("action.repo").(repository.MarketActionRepository),
			), nil
		},
	},
}
