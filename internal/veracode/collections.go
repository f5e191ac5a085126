package veracode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Collection struct {
	GUID string `json:"guid"`
	Name string `json:"name"`
}

// CollectionSpec is the body of a collection create or update
type CollectionSpec struct {
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	BusinessUnit *Ref          `json:"business_unit,omitempty"`
	CustomFields []CustomField `json:"custom_fields,omitempty"`
	AssetInfos   []Asset       `json:"asset_infos"`
}

type Asset struct {
	GUID string `json:"guid"`
	Type string `json:"type"`
}

// ApplicationAsset returns the collection member for an application
func ApplicationAsset(guid string) Asset {
	return Asset{GUID: guid, Type: "APPLICATION"}
}

func (c *Client) CollectionByName(ctx context.Context, name string) (Collection, error) {
	name = strings.TrimSpace(name)
	var found *Collection
	err := c.getAll(ctx, "appsec/v1/collections", url.Values{"name": {name}}, func(raw []byte) error {
		var resp struct {
			Embedded struct {
				Collections []Collection `json:"collections"`
			} `json:"_embedded"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return err
		}
		for _, col := range resp.Embedded.Collections {
			if found == nil && col.Name == name {
				found = &col
			}
		}
		return nil
	})
	if err != nil {
		return Collection{}, err
	}
	if found == nil {
		return Collection{}, fmt.Errorf("collection %q: %w", name, ErrNotFound)
	}
	return *found, nil
}

func (c *Client) CreateCollection(ctx context.Context, spec CollectionSpec) (Collection, error) {
	var col Collection
	err := c.doJSON(ctx, http.MethodPost, "appsec/v1/collections", nil, spec, &col)
	return col, err
}

func (c *Client) UpdateCollection(ctx context.Context, guid string, spec CollectionSpec) (Collection, error) {
	var col Collection
	err := c.doJSON(ctx, http.MethodPut, "appsec/v1/collections/"+url.PathEscape(guid), nil, spec, &col)
	return col, err
}
