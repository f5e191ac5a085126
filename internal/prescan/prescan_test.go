package prescan_test

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/prescan"
	"github.com/CZERTAINLY/verascan/internal/veracode"
	"github.com/CZERTAINLY/verascan/internal/veracode/veracodetest"

	"github.com/stretchr/testify/require"
)

func config() model.Config {
	return model.Config{
		Credentials: model.Credentials{ID: "vera01ei-0123456789abcdef", Secret: "secret"},
		Application: model.Application{
			Name:         "payments",
			Criticality:  "VERY HIGH",
			Teams:        []string{"blue", "red"},
			BusinessUnit: "fintech",
			CustomFields: []string{"Owner:ops"},
		},
		Scan: model.Scan{Pipeline: true},
	}
}

func TestResolve_CreateEverything(t *testing.T) {
	t.Parallel()
	fake := veracodetest.New(t)
	fake.Teams = []veracode.Team{{ID: "blue-guid", LegacyID: 7, Name: "blue"}}

	cfg := config()
	cfg.Collection = model.Collection{Name: "release", CustomFields: []string{"Stage:prod"}}
	cfg.Agent.Workspace = "ws"

	org, err := prescan.Resolve(t.Context(), fake.Client(t), cfg)
	require.NoError(t, err)

	require.Equal(t, "payments", org.ApplicationName)
	require.NotEmpty(t, org.ApplicationGUID)
	app := fake.Applications[org.ApplicationGUID]
	require.Equal(t, strconv.Itoa(app.ID), org.ApplicationLegacyID)
	require.Equal(t, "VERY_HIGH", app.Profile.BusinessCriticality)
	require.Equal(t, []veracode.CustomField{{Name: "Owner", Value: "ops"}}, app.Profile.CustomFields)
	require.Len(t, app.Profile.Teams, 2)
	require.Equal(t, org.BusinessUnitGUID, app.Profile.BusinessUnit.GUID)

	require.Len(t, org.Teams, 2)
	require.Equal(t, model.Team{Name: "blue", GUID: "blue-guid", LegacyID: "7"}, org.Teams[0])
	require.Len(t, fake.Teams, 2)

	require.Equal(t, veracodetest.DefaultPolicy, org.PolicyName)

	col := fake.Collections[org.CollectionGUID]
	require.NotNil(t, col)
	require.Equal(t, []veracode.Asset{veracode.ApplicationAsset(org.ApplicationGUID)}, col.AssetInfos)

	require.NotEmpty(t, org.WorkspaceGUID)
	require.Equal(t, []string{"7", org.Teams[1].LegacyID}, fake.WorkspaceTeam[org.WorkspaceGUID])
	require.True(t, org.AgentEnabled())
	require.Contains(t, fake.Agents, org.AgentID)
	require.Equal(t, "https://sca-api.veracode.eu", org.AgentAPIURL)
}

func TestResolve_UpdateExisting(t *testing.T) {
	t.Parallel()
	fake := veracodetest.New(t)
	existing := fake.AddApplication("payments", "Strict")
	fake.Teams = []veracode.Team{
		{ID: "blue-guid", LegacyID: 7, Name: "blue"},
		{ID: "red-guid", LegacyID: 8, Name: "red"},
	}
	fake.BusinessUnits = []veracode.BusinessUnit{{ID: "bu-guid", Name: "fintech"}}

	cfg := config()
	cfg.Application.Description = "new description"
	cfg.Application.KeyAlias = "ignored"
	cfg.Scan.Pipeline = false

	org, err := prescan.Resolve(t.Context(), fake.Client(t), cfg)
	require.NoError(t, err)
	require.Equal(t, existing.GUID, org.ApplicationGUID)
	require.Equal(t, "bu-guid", org.BusinessUnitGUID)
	require.Empty(t, org.PolicyName)
	require.False(t, org.AgentEnabled())
	require.Len(t, fake.Applications, 1)
	require.Equal(t, "new description", fake.Applications[existing.GUID].Profile.Description)
	require.Empty(t, fake.Applications[existing.GUID].Profile.CustomKMSAlias)
}

func TestResolve_ByGUID(t *testing.T) {
	t.Parallel()
	fake := veracodetest.New(t)
	existing := fake.AddApplication("payments", "Strict")

	cfg := config()
	cfg.Application.Name = ""
	cfg.Application.GUID = existing.GUID
	cfg.Application.BusinessUnit = ""

	org, err := prescan.Resolve(t.Context(), fake.Client(t), cfg)
	require.NoError(t, err)
	require.Equal(t, "payments", org.ApplicationName)
	require.Equal(t, "Strict", org.PolicyName)
	require.Equal(t, "payments", fake.Applications[existing.GUID].Profile.Name)

	cfg.Application.GUID = "unknown"
	_, err = prescan.Resolve(t.Context(), fake.Client(t), cfg)
	require.EqualError(t, err, "no application found for GUID unknown")
}

func TestResolve_Failure(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    string
	}{
		{"teams", "GET /api/authn/v2/teams"},
		{"application", "POST /appsec/v1/applications"},
		{"workspace", "POST /srcclr/v3/workspaces"},
	}
	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			fake := veracodetest.New(t)
			fake.Fail[tc.given] = http.StatusInternalServerError
			cfg := config()
			cfg.Agent.Workspace = "ws"

			_, err := prescan.Resolve(t.Context(), fake.Client(t), cfg)
			var apiErr *veracode.APIError
			require.ErrorAs(t, err, &apiErr)
			require.Empty(t, fake.Agents)
		})
	}
}

func TestAgentName(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 3, 1, 10, 4, 5, 123456000, time.UTC)
	require.Equal(t, "verascan-20250301100405123456", prescan.AgentName(now))
}
