package main

import (
	"os"
	"strconv"

	"github.com/MintBay/market-engine/internal/config"
	"github.com/MintBay/market-engine/internal/config/di"
	"github.com/MintBay/market-engine/internal/entity"
	"github.com/MintBay/market-engine/internal/staking"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var container *di.Container

func main() {
	config.Init()

	var err error
	container, err = di.NewContainer()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}

	app := &cli.App{
		Commands: []*cli.Command{
			{
				Name:   "updateFees",
				Usage:  "Update the fee tiers (high mid low, in basis points)",
				Action: updateFees,
			},
			{
				Name:   "registerRoyalty",
				Usage:  "Register a collection royalty (collection recipient bps)",
				Action: registerRoyalty,
			},
			{
				Name:   "removeRoyalty",
				Usage:  "Remove a collection royalty (collection)",
				Action: removeRoyalty,
			},
			{
				Name:   "withdraw",
				Usage:  "Withdraw the platform fee balance to the admin",
				Action: withdraw,
			},
			{
				Name:   "endInit",
				Usage:  "End the staking pool init period",
				Action: endInit,
			},
			{
				Name:   "rollPool",
				Usage:  "Roll the epoch reward pool forward if due",
				Action: rollPool,
			},
			{
				Name:   "sweepBids",
				Usage:  "Return outbid balances for an auction (key index)",
				Action: sweepBids,
			},
			{
				Name:   "grant",
				Usage:  "Grant a role to an identity (identity role)",
				Action: grant,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to start CLI")
	}
}

func updateFees(c *cli.Context) error {
	high, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
	if err != nil {
		zap.L().Error("Invalid high tier")
		return nil
	}
	mid, err := strconv.ParseUint(c.Args().Get(1), 10, 64)
	if err != nil {
		zap.L().Error("Invalid mid tier")
		return nil
	}
	low, err := strconv.ParseUint(c.Args().Get(2), 10, 64)
	if err != nil {
		zap.L().Error("Invalid low tier")
		return nil
	}

	if err := container.GetFees().UpdateFees(config.Get().Admin, high, mid, low); err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to update fees")
		return err
	}
	zap.L().Info("Fees updated")

	return nil
}

func registerRoyalty(c *cli.Context) error {
	collection := c.Args().Get(0)
	recipient := c.Args().Get(1)
	bps, err := strconv.ParseUint(c.Args().Get(2), 10, 64)
	if err != nil || collection == "" || recipient == "" {
		zap.L().Error("Usage: registerRoyalty <collection> <recipient> <bps>")
		return nil
	}

	if err := container.GetFees().RegisterRoyalty(config.Get().Admin, collection, recipient, bps); err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to register royalty")
		return err
	}
	zap.S().Infof("Royalty registered for %s", collection)

	return nil
}

func removeRoyalty(c *cli.Context) error {
	collection := c.Args().First()
	if collection == "" {
		zap.L().Error("No collection provided")
		return nil
	}

	if err := container.GetFees().RemoveRoyalty(config.Get().Admin, collection); err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to remove royalty")
		return err
	}
	zap.S().Infof("Royalty removed for %s", collection)

	return nil
}

func withdraw(c *cli.Context) error {
	amount, err := container.GetListings().Withdraw(config.Get().Admin)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to withdraw")
		return err
	}
	zap.S().Infof("Withdrew %s to %s", amount.String(), config.Get().Admin)

	return nil
}

func endInit(c *cli.Context) error {
	if err := container.GetStaking().EndInitPeriod(config.Get().Admin); err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to end init period")
		return err
	}
	zap.L().Info("Init period ended")

	return nil
}

func rollPool(c *cli.Context) error {
	pool, ok := container.GetStaking().(staking.EpochPool)
	if !ok {
		zap.L().Error("Staking model is not epoch based")
		return nil
	}

	pool.UpdatePool()
	current := pool.CurrentPool()
	zap.S().Infof("Current pool %d holds %s", current.Id, current.Balance)

	return nil
}

func sweepBids(c *cli.Context) error {
	key := c.Args().Get(0)
	index, err := strconv.Atoi(c.Args().Get(1))
	if key == "" || err != nil {
		zap.L().Error("Usage: sweepBids <key> <index>")
		return nil
	}

	identities := c.Args().Slice()[2:]

	if err := container.GetAuctions().ReturnBids(config.Get().Admin, key, index, identities); err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to return bids")
		return err
	}
	zap.L().Info("Bids returned")

	return nil
}

func grant(c *cli.Context) error {
	identity := c.Args().Get(0)
	role := c.Args().Get(1)
	if identity == "" || role == "" {
		zap.L().Error("Usage: grant <identity> <role>")
		return nil
	}

	if err := container.GetAccess().Grant(config.Get().Admin, identity, entity.Role(role)); err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to grant role")
		return err
	}
	zap.S().Infof("Granted %s to %s", role, identity)

	return nil
}
