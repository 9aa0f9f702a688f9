package repository

import (
	"encoding/json"
	"errors"

	"github.com/MintBay/market-engine/internal/elastic_search"
	"github.com/MintBay/market-engine/internal/entity"
	"github.com/olivere/elastic/v7"
)

var (
	ErrActionNotFound = errors.New("market action not found")
)

type MarketActionRepository interface {
	GetActions(page, size int) ([]entity.MarketAction, int64, error)
	GetActionsByCollection(collection string, page, size int) ([]entity.MarketAction, int64, error)
	GetActionsByKey(key string) ([]entity.MarketAction, error)
	GetLatestAction(collection string, tokenId uint64) (*entity.MarketAction, error)
}

type marketActionRepository struct {
	elastic elastic_search.Index
}

func NewMarketActionRepository(elastic elastic_search.Index) MarketActionRepository {
	return marketActionRepository{elastic}
}

func (r marketActionRepository) GetActions(page, size int) ([]entity.MarketAction, int64, error) {
	result, err := search(r.elastic.GetClient().
		Search(elastic_search.MarketActionIndex.Get()).
		Query(elastic.NewMatchAllQuery()).
		Sort("timestamp", false).
		From((page - 1) * size).
		Size(size))

	return r.findMany(result, err)
}

func (r marketActionRepository) GetActionsByCollection(collection string, page, size int) ([]entity.MarketAction, int64, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("collection.keyword", collection),
	)

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.MarketActionIndex.Get()).
		Query(query).
		Sort("timestamp", false).
		From((page - 1) * size).
		Size(size))

	return r.findMany(result, err)
}

func (r marketActionRepository) GetActionsByKey(key string) ([]entity.MarketAction, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("key.keyword", key),
	)

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.MarketActionIndex.Get()).
		Query(query).
		Sort("sequence", true).
		Size(100))

	actions, _, err := r.findMany(result, err)

	return actions, err
}

func (r marketActionRepository) GetLatestAction(collection string, tokenId uint64) (*entity.MarketAction, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("collection.keyword", collection),
		elastic.NewTermQuery("tokenId", tokenId),
	)

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.MarketActionIndex.Get()).
		Query(query).
		Sort("timestamp", false).
		Size(1))

	return r.findOne(result, err)
}

func (r marketActionRepository) findOne(results *elastic.SearchResult, err error) (*entity.MarketAction, error) {
	if err != nil {
		return nil, err
	}

	if len(results.Hits.Hits) == 0 {
		return nil, ErrActionNotFound
	}

	var action entity.MarketAction
	hit := results.Hits.Hits[0]
	err = json.Unmarshal(hit.Source, &action)

	return &action, err
}

func (r marketActionRepository) findMany(results *elastic.SearchResult, err error) ([]entity.MarketAction, int64, error) {
	actions := make([]entity.MarketAction, 0)

	if err != nil {
		return actions, 0, err
	}

	for _, hit := range results.Hits.Hits {
		var action entity.MarketAction
		if err := json.Unmarshal(hit.Source, &action); err == nil {
			actions = append(actions, action)
		}
	}

	return actions, results.TotalHits(), nil
}
