package veracode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Application struct {
	GUID    string  `json:"guid"`
	ID      int     `json:"id"`
	Profile Profile `json:"profile"`
	Links   struct {
		Policy struct {
			Href string `json:"href"`
		} `json:"policy"`
	} `json:"_links"`
}

type Profile struct {
	Name                string         `json:"name"`
	BusinessCriticality string         `json:"business_criticality,omitempty"`
	Description         string         `json:"description,omitempty"`
	GitRepoURL          string         `json:"git_repo_url,omitempty"`
	BusinessUnit        *Ref           `json:"business_unit,omitempty"`
	Teams               []Ref          `json:"teams,omitempty"`
	CustomFields        []CustomField  `json:"custom_fields,omitempty"`
	BusinessOwners      []Owner        `json:"business_owners,omitempty"`
	CustomKMSAlias      string         `json:"custom_kms_alias,omitempty"`
	Settings            map[string]any `json:"settings,omitempty"`
}

type Ref struct {
	GUID string `json:"guid"`
}

type CustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Owner struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// PolicyGUID returns the GUID from the policy link of the application
func (a Application) PolicyGUID() string {
	_, guid, ok := strings.Cut(a.Links.Policy.Href, "/policies/")
	if !ok {
		return ""
	}
	guid, _, _ = strings.Cut(guid, "?")
	return strings.Trim(guid, "/")
}

// ApplicationByName returns the application with exactly the given name
// or ErrNotFound. The API search matches substrings.
func (c *Client) ApplicationByName(ctx context.Context, name string) (Application, error) {
	name = strings.TrimSpace(name)
	var found *Application
	err := c.getAll(ctx, "appsec/v1/applications", url.Values{"name": {name}}, func(raw []byte) error {
		var resp struct {
			Embedded struct {
				Applications []Application `json:"applications"`
			} `json:"_embedded"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return err
		}
		for _, app := range resp.Embedded.Applications {
			if found == nil && app.Profile.Name == name {
				found = &app
			}
		}
		return nil
	})
	if err != nil {
		return Application{}, err
	}
	if found == nil {
		return Application{}, fmt.Errorf("application %q: %w", name, ErrNotFound)
	}
	return *found, nil
}

func (c *Client) Application(ctx context.Context, guid string) (Application, error) {
	var app Application
	err := c.doJSON(ctx, http.MethodGet, "appsec/v1/applications/"+url.PathEscape(guid), nil, nil, &app)
	return app, err
}

func (c *Client) CreateApplication(ctx context.Context, profile Profile) (Application, error) {
	var app Application
	err := c.doJSON(ctx, http.MethodPost, "appsec/v1/applications", nil, map[string]any{"profile": profile}, &app)
	return app, err
}

func (c *Client) UpdateApplication(ctx context.Context, guid string, profile Profile) (Application, error) {
	var app Application
	err := c.doJSON(ctx, http.MethodPut, "appsec/v1/applications/"+url.PathEscape(guid), nil, map[string]any{"profile": profile}, &app)
	return app, err
}

// PolicyName returns the name of the policy assigned to the application.
func (c *Client) PolicyName(ctx context.Context, appGUID string) (string, error) {
	app, err := c.Application(ctx, appGUID)
	if err != nil {
		return "", err
	}
	policyGUID := app.PolicyGUID()
	if policyGUID == "" {
		return "", fmt.Errorf("policy of application %s: %w", appGUID, ErrNotFound)
	}
	var policy struct {
		Name string `json:"name"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "appsec/v1/policies/"+url.PathEscape(policyGUID), nil, nil, &policy); err != nil {
		return "", err
	}
	return policy.Name, nil
}
