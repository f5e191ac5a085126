package veracode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Agent is a composition analysis agent registered in a workspace. Its
// token is valid until the agent is deleted.
type Agent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token struct {
		AccessToken string `json:"access_token"`
	} `json:"token"`
}

type SCAScan struct {
	ID   string `json:"id"`
	Date string `json:"date"`
}

type Project struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LastScanDate string `json:"last_scan_date"`
}

func (c *Client) WorkspaceByName(ctx context.Context, name string) (Workspace, error) {
	name = strings.TrimSpace(name)
	var found *Workspace
	err := c.getAll(ctx, "srcclr/v3/workspaces", url.Values{"filter[workspace]": {name}}, func(raw []byte) error {
		var resp struct {
			Embedded struct {
				Workspaces []Workspace `json:"workspaces"`
			} `json:"_embedded"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return err
		}
		for _, ws := range resp.Embedded.Workspaces {
			if found == nil && ws.Name == name {
				found = &ws
			}
		}
		return nil
	})
	if err != nil {
		return Workspace{}, err
	}
	if found == nil {
		return Workspace{}, fmt.Errorf("workspace %q: %w", name, ErrNotFound)
	}
	return *found, nil
}

// CreateWorkspace returns the ID of the new workspace. The API reports it
// in the Location header.
func (c *Client) CreateWorkspace(ctx context.Context, name string) (string, error) {
	resp, raw, err := c.do(ctx, http.MethodPost, "srcclr/v3/workspaces", nil, map[string]string{"name": name})
	if err != nil {
		return "", err
	}
	if loc := resp.Header.Get("Location"); loc != "" {
		return path.Base(strings.TrimRight(loc, "/")), nil
	}
	var ws Workspace
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ws); err != nil {
			return "", fmt.Errorf("decoding json response of POST srcclr/v3/workspaces: %w", err)
		}
	}
	if ws.ID == "" {
		return "", fmt.Errorf("workspace %q: created without an id", name)
	}
	return ws.ID, nil
}

func (c *Client) AddTeamToWorkspace(ctx context.Context, workspaceID string, teamLegacyID string) error {
	p := fmt.Sprintf("srcclr/v3/workspaces/%s/teams/%s", url.PathEscape(workspaceID), url.PathEscape(teamLegacyID))
	return c.doJSON(ctx, http.MethodPut, p, nil, nil, nil)
}

func (c *Client) CreateAgent(ctx context.Context, workspaceID, name string) (Agent, error) {
	var agent Agent
	p := fmt.Sprintf("srcclr/v3/workspaces/%s/agents", url.PathEscape(workspaceID))
	err := c.doJSON(ctx, http.MethodPost, p, nil, map[string]string{
		"agent_type": "CLI",
		"name":       name,
	}, &agent)
	if err == nil && agent.Token.AccessToken == "" {
		err = fmt.Errorf("agent %q: created without a token", name)
	}
	return agent, err
}

// DeleteAgent expires the token of the agent.
func (c *Client) DeleteAgent(ctx context.Context, workspaceID, agentID string) error {
	p := fmt.Sprintf("srcclr/v3/workspaces/%s/agents/%s", url.PathEscape(workspaceID), url.PathEscape(agentID))
	return c.doJSON(ctx, http.MethodDelete, p, nil, nil, nil)
}

func (c *Client) Scan(ctx context.Context, scanID string) (SCAScan, error) {
	var scan SCAScan
	err := c.doJSON(ctx, http.MethodGet, "srcclr/v3/scans/"+url.PathEscape(scanID), nil, nil, &scan)
	return scan, err
}

func (c *Client) Projects(ctx context.Context, workspaceID string) ([]Project, error) {
	var ret []Project
	p := fmt.Sprintf("srcclr/v3/workspaces/%s/projects", url.PathEscape(workspaceID))
	err := c.getAll(ctx, p, nil, func(raw []byte) error {
		var resp struct {
			Embedded struct {
				Projects []Project `json:"projects"`
			} `json:"_embedded"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return err
		}
		ret = append(ret, resp.Embedded.Projects...)
		return nil
	})
	return ret, err
}

// ProjectForScan finds the workspace project last scanned by the scan.
// Dates are compared as instants, the API formats them inconsistently.
func (c *Client) ProjectForScan(ctx context.Context, workspaceID, scanID string) (string, error) {
	scan, err := c.Scan(ctx, scanID)
	if err != nil {
		return "", err
	}
	scanDate, err := parseDate(scan.Date)
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", scanID, err)
	}
	projects, err := c.Projects(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	for _, p := range projects {
		d, err := parseDate(p.LastScanDate)
		if err != nil {
			continue
		}
		if d.Equal(scanDate) {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("project of scan %s: %w", scanID, ErrNotFound)
}

func (c *Client) LinkProject(ctx context.Context, appGUID, projectID string) error {
	p := fmt.Sprintf("srcclr/v3/applications/%s/projects/%s", url.PathEscape(appGUID), url.PathEscape(projectID))
	return c.doJSON(ctx, http.MethodPut, p, nil, nil, nil)
}

// SBOM downloads the bill of materials of a project in the given format
// (CYCLONEDX or SPDX).
func (c *Client) SBOM(ctx context.Context, projectID, format string) ([]byte, error) {
	p := fmt.Sprintf("srcclr/sbom/v1/targets/%s/%s", url.PathEscape(projectID), strings.ToLower(format))
	_, raw, err := c.do(ctx, http.MethodGet, p, url.Values{"type": {"agent"}}, nil)
	return raw, err
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date %q", s)
}
