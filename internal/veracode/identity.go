package veracode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Team struct {
	ID       string `json:"team_id"`
	LegacyID int    `json:"team_legacy_id"`
	Name     string `json:"team_name"`
}

type BusinessUnit struct {
	ID   string `json:"bu_id"`
	Name string `json:"bu_name"`
}

func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var ret []Team
	err := c.getAll(ctx, "api/authn/v2/teams", url.Values{"all_for_org": {"true"}}, func(raw []byte) error {
		var resp struct {
			Embedded struct {
				Teams []Team `json:"teams"`
			} `json:"_embedded"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return err
		}
		ret = append(ret, resp.Embedded.Teams...)
		return nil
	})
	return ret, err
}

// TeamByName returns ErrNotFound if no team has exactly the name.
func (c *Client) TeamByName(ctx context.Context, name string) (Team, error) {
	teams, err := c.Teams(ctx)
	if err != nil {
		return Team{}, err
	}
	name = strings.TrimSpace(name)
	for _, t := range teams {
		if t.Name == name {
			return t, nil
		}
	}
	return Team{}, fmt.Errorf("team %q: %w", name, ErrNotFound)
}

func (c *Client) CreateTeam(ctx context.Context, name string) (Team, error) {
	var team Team
	err := c.doJSON(ctx, http.MethodPost, "api/authn/v2/teams", nil, map[string]any{"team_name": name}, &team)
	return team, err
}

func (c *Client) BusinessUnitByName(ctx context.Context, name string) (BusinessUnit, error) {
	name = strings.TrimSpace(name)
	var found *BusinessUnit
	err := c.getAll(ctx, "api/authn/v2/business_units", nil, func(raw []byte) error {
		var resp struct {
			Embedded struct {
				BusinessUnits []BusinessUnit `json:"business_units"`
			} `json:"_embedded"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return err
		}
		for _, bu := range resp.Embedded.BusinessUnits {
			if found == nil && bu.Name == name {
				found = &bu
			}
		}
		return nil
	})
	if err != nil {
		return BusinessUnit{}, err
	}
	if found == nil {
		return BusinessUnit{}, fmt.Errorf("business unit %q: %w", name, ErrNotFound)
	}
	return *found, nil
}

// CreateBusinessUnit creates the business unit and assigns the teams to it
func (c *Client) CreateBusinessUnit(ctx context.Context, name string, teamIDs []string) (BusinessUnit, error) {
	teams := make([]map[string]string, len(teamIDs))
	for i, id := range teamIDs {
		teams[i] = map[string]string{"team_id": id}
	}
	var bu BusinessUnit
	err := c.doJSON(ctx, http.MethodPost, "api/authn/v2/business_units", nil, map[string]any{
		"bu_name": name,
		"teams":   teams,
	}, &bu)
	return bu, err
}
