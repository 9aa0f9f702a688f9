package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/MintBay/market-engine/internal/entity"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"net/url"
)

// mirrorClient reads ownership and royalty data from a remote registry
// mirror. Transfers are posted back to the mirror; the engines treat it the
// same as the in-memory registry.
type mirrorClient struct {
	client  *retryablehttp.Client
	baseUrl string
	cache   *cache.Cache
}

type mirrorCollection struct {
	Standard string `json:"standard"`
}

type mirrorOwner struct {
	Owner string `json:"owner"`
}

type mirrorBalance struct {
	Balance uint64 `json:"balance"`
}

type mirrorRoyalty struct {
	Recipient string `json:"recipient"`
	Bps       uint64 `json:"bps"`
}

type mirrorTransfer struct {
	From     string `json:"from"`
	To       string `json:"to"`
	TokenId  uint64 `json:"tokenId"`
	Quantity uint64 `json:"quantity"`
}

func NewMirrorClient(client *retryablehttp.Client, baseUrl string, c *cache.Cache) AssetRegistry {
	return mirrorClient{client, baseUrl, c}
}

func (m mirrorClient) Standard(collection string) (entity.TokenStandard, error) {
	cacheKey := fmt.Sprintf("standard-%s", collection)
	if cached, found := m.cache.Get(cacheKey); found {
		return cached.(entity.TokenStandard), nil
	}

	var resp mirrorCollection
	if err := m.get(fmt.Sprintf("collections/%s", url.PathEscape(collection)), &resp); err != nil {
		return "", ErrUnknownCollection
	}

	standard := entity.TokenStandard(resp.Standard)
	m.cache.Set(cacheKey, standard, cache.DefaultExpiration)

	return standard, nil
}

func (m mirrorClient) OwnerOf(collection string, tokenId uint64) (string, error) {
	var resp mirrorOwner
	if err := m.get(fmt.Sprintf("collections/%s/tokens/%d/owner", url.PathEscape(collection), tokenId), &resp); err != nil {
		return "", ErrUnknownToken
	}

	return resp.Owner, nil
}

func (m mirrorClient) BalanceOf(collection string, tokenId uint64, holder string) uint64 {
	var resp mirrorBalance
	if err := m.get(fmt.Sprintf("collections/%s/tokens/%d/balances/%s", url.PathEscape(collection), tokenId, url.PathEscape(holder)), &resp); err != nil {
		return 0
	}

	return resp.Balance
}

func (m mirrorClient) Transfer(collection, from, to string, tokenId, quantity uint64) error {
	body, err := json.Marshal(mirrorTransfer{From: from, To: to, TokenId: tokenId, Quantity: quantity})
	if err != nil {
		return err
	}

	resp, err := m.client.Post(fmt.Sprintf("%s/collections/%s/transfers", m.baseUrl, url.PathEscape(collection)), "application/json", body)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("collection", collection)).Error("Registry: transfer failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return errors.New(resp.Status)
	}

	return nil
}

func (m mirrorClient) TokenRoyalty(collection string, tokenId uint64) (string, uint64, error) {
	cacheKey := fmt.Sprintf("royalty-%s-%d", collection, tokenId)
	if cached, found := m.cache.Get(cacheKey); found {
		royalty := cached.(mirrorRoyalty)
		return royalty.Recipient, royalty.Bps, nil
	}

	var resp mirrorRoyalty
	if err := m.get(fmt.Sprintf("collections/%s/tokens/%d/royalty", url.PathEscape(collection), tokenId), &resp); err != nil {
		return "", 0, nil
	}

	m.cache.Set(cacheKey, resp, cache.DefaultExpiration)

	return resp.Recipient, resp.Bps, nil
}

func (m mirrorClient) get(path string, target interface{}) error {
	resp, err := m.client.Get(fmt.Sprintf("%s/%s", m.baseUrl, path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return errors.New(resp.Status)
	}

	buf := new(bytes.Buffer)
	if _, err = buf.ReadFrom(resp.Body); err != nil {
		return err
	}

	return json.Unmarshal(buf.Bytes(), target)
}
