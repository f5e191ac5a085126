// Package prescan prepares the platform for a scan: it finds or creates
// the application and every organizational object the scan is reported
// under, and registers the composition analysis agent.
package prescan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/veracode"
)

// API is the part of the platform REST API used before a scan.
type API interface {
	ApplicationByName(ctx context.Context, name string) (veracode.Application, error)
	Application(ctx context.Context, guid string) (veracode.Application, error)
	CreateApplication(ctx context.Context, profile veracode.Profile) (veracode.Application, error)
	UpdateApplication(ctx context.Context, guid string, profile veracode.Profile) (veracode.Application, error)
	PolicyName(ctx context.Context, appGUID string) (string, error)

	TeamByName(ctx context.Context, name string) (veracode.Team, error)
	CreateTeam(ctx context.Context, name string) (veracode.Team, error)
	BusinessUnitByName(ctx context.Context, name string) (veracode.BusinessUnit, error)
	CreateBusinessUnit(ctx context.Context, name string, teamIDs []string) (veracode.BusinessUnit, error)

	CollectionByName(ctx context.Context, name string) (veracode.Collection, error)
	CreateCollection(ctx context.Context, spec veracode.CollectionSpec) (veracode.Collection, error)
	UpdateCollection(ctx context.Context, guid string, spec veracode.CollectionSpec) (veracode.Collection, error)

	WorkspaceByName(ctx context.Context, name string) (veracode.Workspace, error)
	CreateWorkspace(ctx context.Context, name string) (string, error)
	AddTeamToWorkspace(ctx context.Context, workspaceID, teamLegacyID string) error
	CreateAgent(ctx context.Context, workspaceID, name string) (veracode.Agent, error)
}

// Resolve returns the identifiers the scans are reported under. Missing
// teams, business unit, application, collection and workspace are created,
// existing application and collection are updated. Any failure aborts.
func Resolve(ctx context.Context, api API, cfg model.Config) (model.Organization, error) {
	var org model.Organization

	app, err := findApplication(ctx, api, cfg.Application)
	if err != nil {
		return org, err
	}
	if app.GUID != "" && cfg.Application.KeyAlias != "" {
		slog.WarnContext(ctx, "application already exists, key alias will be ignored", "application", app.Profile.Name)
	}

	org.Teams, err = resolveTeams(ctx, api, cfg.Application.Teams)
	if err != nil {
		return org, err
	}

	if name := cfg.Application.BusinessUnit; name != "" {
		bu, err := api.BusinessUnitByName(ctx, name)
		switch {
		case errors.Is(err, veracode.ErrNotFound):
			bu, err = api.CreateBusinessUnit(ctx, name, teamGUIDs(org.Teams))
			if err != nil {
				return org, fmt.Errorf("creating business unit %q: %w", name, err)
			}
			slog.InfoContext(ctx, "business unit created", "name", name, "guid", bu.ID)
		case err != nil:
			return org, fmt.Errorf("looking up business unit %q: %w", name, err)
		}
		org.BusinessUnitGUID = bu.ID
	}

	profile, err := applicationProfile(cfg.Application, org)
	if err != nil {
		return org, err
	}
	if profile.Name == "" {
		profile.Name = app.Profile.Name
	}
	if app.GUID == "" {
		profile.CustomKMSAlias = cfg.Application.KeyAlias
		app, err = api.CreateApplication(ctx, profile)
		if err != nil {
			return org, fmt.Errorf("creating application %q: %w", profile.Name, err)
		}
		slog.InfoContext(ctx, "application created", "name", profile.Name, "guid", app.GUID)
	} else {
		if _, err := api.UpdateApplication(ctx, app.GUID, profile); err != nil {
			return org, fmt.Errorf("updating application %q: %w", profile.Name, err)
		}
	}
	org.ApplicationName = profile.Name
	org.ApplicationGUID = app.GUID
	org.ApplicationLegacyID = strconv.Itoa(app.ID)

	if cfg.Scan.Pipeline {
		org.PolicyName, err = api.PolicyName(ctx, org.ApplicationGUID)
		if err != nil {
			return org, fmt.Errorf("getting policy of application %q: %w", org.ApplicationName, err)
		}
	}

	if cfg.Collection.Name != "" {
		org.CollectionGUID, err = resolveCollection(ctx, api, cfg.Collection, org)
		if err != nil {
			return org, err
		}
	}

	if cfg.Agent.Workspace != "" {
		if err := resolveWorkspace(ctx, api, cfg, &org); err != nil {
			return org, err
		}
	}
	return org, nil
}

// findApplication returns an application without GUID when a named
// application does not exist yet.
func findApplication(ctx context.Context, api API, cfg model.Application) (veracode.Application, error) {
	if cfg.Name != "" {
		app, err := api.ApplicationByName(ctx, cfg.Name)
		if errors.Is(err, veracode.ErrNotFound) {
			return veracode.Application{Profile: veracode.Profile{Name: cfg.Name}}, nil
		}
		if err != nil {
			return app, fmt.Errorf("looking up application %q: %w", cfg.Name, err)
		}
		return app, nil
	}

	app, err := api.Application(ctx, cfg.GUID)
	if errors.Is(err, veracode.ErrNotFound) {
		return app, fmt.Errorf("no application found for GUID %s", cfg.GUID)
	}
	if err != nil {
		return app, fmt.Errorf("looking up application %s: %w", cfg.GUID, err)
	}
	return app, nil
}

func resolveTeams(ctx context.Context, api API, names []string) ([]model.Team, error) {
	teams := make([]model.Team, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		team, err := api.TeamByName(ctx, name)
		switch {
		case errors.Is(err, veracode.ErrNotFound):
			team, err = api.CreateTeam(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("creating team %q: %w", name, err)
			}
			slog.InfoContext(ctx, "team created", "name", name, "guid", team.ID)
		case err != nil:
			return nil, fmt.Errorf("looking up team %q: %w", name, err)
		}
		teams = append(teams, model.Team{
			Name:     name,
			GUID:     team.ID,
			LegacyID: strconv.Itoa(team.LegacyID),
		})
	}
	return teams, nil
}

func teamGUIDs(teams []model.Team) []string {
	ret := make([]string, len(teams))
	for i, t := range teams {
		ret[i] = t.GUID
	}
	return ret
}

func customFields(fields []string) ([]veracode.CustomField, error) {
	var ret []veracode.CustomField
	for _, f := range fields {
		cf, err := model.ParseCustomField(f)
		if err != nil {
			return nil, err
		}
		ret = append(ret, veracode.CustomField{Name: cf.Name, Value: cf.Value})
	}
	return ret, nil
}

func applicationProfile(cfg model.Application, org model.Organization) (veracode.Profile, error) {
	fields, err := customFields(cfg.CustomFields)
	if err != nil {
		return veracode.Profile{}, err
	}
	p := veracode.Profile{
		Name:                cfg.Name,
		BusinessCriticality: cfg.CriticalityValue(),
		Description:         cfg.Description,
		GitRepoURL:          cfg.GitRepoURL,
		CustomFields:        fields,
	}
	for _, guid := range teamGUIDs(org.Teams) {
		p.Teams = append(p.Teams, veracode.Ref{GUID: guid})
	}
	if org.BusinessUnitGUID != "" {
		p.BusinessUnit = &veracode.Ref{GUID: org.BusinessUnitGUID}
	}
	if cfg.BusinessOwner != "" || cfg.BusinessOwnerEmail != "" {
		p.BusinessOwners = []veracode.Owner{{Name: cfg.BusinessOwner, Email: cfg.BusinessOwnerEmail}}
	}
	return p, nil
}

func resolveCollection(ctx context.Context, api API, cfg model.Collection, org model.Organization) (string, error) {
	fields, err := customFields(cfg.CustomFields)
	if err != nil {
		return "", err
	}
	spec := veracode.CollectionSpec{
		Name:         cfg.Name,
		Description:  cfg.Description,
		CustomFields: fields,
		AssetInfos:   []veracode.Asset{veracode.ApplicationAsset(org.ApplicationGUID)},
	}
	if org.BusinessUnitGUID != "" {
		spec.BusinessUnit = &veracode.Ref{GUID: org.BusinessUnitGUID}
	}

	col, err := api.CollectionByName(ctx, cfg.Name)
	switch {
	case errors.Is(err, veracode.ErrNotFound):
		col, err = api.CreateCollection(ctx, spec)
		if err != nil {
			return "", fmt.Errorf("creating collection %q: %w", cfg.Name, err)
		}
		slog.InfoContext(ctx, "collection created", "name", cfg.Name, "guid", col.GUID)
		return col.GUID, nil
	case err != nil:
		return "", fmt.Errorf("looking up collection %q: %w", cfg.Name, err)
	}
	if _, err := api.UpdateCollection(ctx, col.GUID, spec); err != nil {
		return "", fmt.Errorf("updating collection %q: %w", cfg.Name, err)
	}
	return col.GUID, nil
}

func resolveWorkspace(ctx context.Context, api API, cfg model.Config, org *model.Organization) error {
	name := cfg.Agent.Workspace
	ws, err := api.WorkspaceByName(ctx, name)
	switch {
	case errors.Is(err, veracode.ErrNotFound):
		ws.ID, err = api.CreateWorkspace(ctx, name)
		if err != nil {
			return fmt.Errorf("creating workspace %q: %w", name, err)
		}
		slog.InfoContext(ctx, "workspace created", "name", name, "id", ws.ID)
	case err != nil:
		return fmt.Errorf("looking up workspace %q: %w", name, err)
	}
	org.WorkspaceGUID = ws.ID

	for _, team := range org.Teams {
		if err := api.AddTeamToWorkspace(ctx, ws.ID, team.LegacyID); err != nil {
			return fmt.Errorf("adding team %q to workspace %q: %w", team.Name, name, err)
		}
	}

	agent, err := api.CreateAgent(ctx, ws.ID, AgentName(time.Now()))
	if err != nil {
		return fmt.Errorf("creating agent in workspace %q: %w", name, err)
	}
	org.AgentID = agent.ID
	org.AgentToken = agent.Token.AccessToken
	org.AgentAPIURL = veracode.RegionOf(cfg.Credentials.ID).SCAURL()
	return nil
}

// AgentName is unique per run, the agent is deleted when the run ends.
func AgentName(now time.Time) string {
	return "verascan-" + strings.ReplaceAll(now.UTC().Format("20060102150405.000000"), ".", "")
}
