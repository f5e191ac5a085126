package veracode_test

import (
	"net/http"
	"testing"

	"github.com/CZERTAINLY/verascan/internal/veracode"
	"github.com/CZERTAINLY/verascan/internal/veracode/veracodetest"

	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Parallel()
	_, err := veracode.NewClient(veracode.Credentials{})
	require.Error(t, err)

	c, err := veracode.NewClient(veracode.Credentials{ID: "vera01es-a", Secret: "vera01es-ab"})
	require.NoError(t, err)
	require.Equal(t, veracode.RegionFedRAMP, c.Region())
}

func TestApplications(t *testing.T) {
	t.Parallel()
	fake := veracodetest.New(t)
	c := fake.Client(t)
	ctx := t.Context()

	existing := fake.AddApplication("payments", "Strict + Policy")
	fake.AddApplication("payments-legacy", "Other")

	app, err := c.ApplicationByName(ctx, " payments ")
	require.NoError(t, err)
	require.Equal(t, existing.GUID, app.GUID)

	_, err = c.ApplicationByName(ctx, "pay")
	require.ErrorIs(t, err, veracode.ErrNotFound)

	_, err = c.Application(ctx, "does-not-exist")
	require.ErrorIs(t, err, veracode.ErrNotFound)
	var apiErr *veracode.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)

	name, err := c.PolicyName(ctx, existing.GUID)
	require.NoError(t, err)
	require.Equal(t, "Strict + Policy", name)

	created, err := c.CreateApplication(ctx, veracode.Profile{
		Name:                "orders",
		BusinessCriticality: "VERY_HIGH",
		Teams:               []veracode.Ref{{GUID: "t1"}},
		CustomFields:        []veracode.CustomField{{Name: "Owner", Value: "ops"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.GUID)
	require.NotZero(t, created.ID)

	updated, err := c.UpdateApplication(ctx, created.GUID, veracode.Profile{Name: "orders", Description: "d"})
	require.NoError(t, err)
	require.Equal(t, "d", updated.Profile.Description)

	name, err = c.PolicyName(ctx, created.GUID)
	require.NoError(t, err)
	require.Equal(t, veracodetest.DefaultPolicy, name)
}

func TestIdentity(t *testing.T) {
	t.Parallel()
	fake := veracodetest.New(t)
	c := fake.Client(t)
	ctx := t.Context()

	_, err := c.TeamByName(ctx, "blue")
	require.ErrorIs(t, err, veracode.ErrNotFound)

	team, err := c.CreateTeam(ctx, "blue")
	require.NoError(t, err)
	found, err := c.TeamByName(ctx, "blue")
	require.NoError(t, err)
	require.Equal(t, team, found)

	_, err = c.BusinessUnitByName(ctx, "bu")
	require.ErrorIs(t, err, veracode.ErrNotFound)
	bu, err := c.CreateBusinessUnit(ctx, "bu", []string{team.ID})
	require.NoError(t, err)
	foundBU, err := c.BusinessUnitByName(ctx, "bu")
	require.NoError(t, err)
	require.Equal(t, bu, foundBU)
}

func TestCollections(t *testing.T) {
	t.Parallel()
	fake := veracodetest.New(t)
	c := fake.Client(t)
	ctx := t.Context()

	spec := veracode.CollectionSpec{
		Name:       "release",
		AssetInfos: []veracode.Asset{veracode.ApplicationAsset("app-guid")},
	}
	col, err := c.CreateCollection(ctx, spec)
	require.NoError(t, err)

	found, err := c.CollectionByName(ctx, "release")
	require.NoError(t, err)
	require.Equal(t, col.GUID, found.GUID)

	spec.Description = "updated"
	_, err = c.UpdateCollection(ctx, col.GUID, spec)
	require.NoError(t, err)
	require.Equal(t, "updated", fake.Collections[col.GUID].Description)
	require.Equal(t, "APPLICATION", fake.Collections[col.GUID].AssetInfos[0].Type)
}

func TestWorkspaces(t *testing.T) {
	t.Parallel()
	fake := veracodetest.New(t)
	c := fake.Client(t)
	ctx := t.Context()

	id, err := c.CreateWorkspace(ctx, "ws")
	require.NoError(t, err)
	ws, err := c.WorkspaceByName(ctx, "ws")
	require.NoError(t, err)
	require.Equal(t, id, ws.ID)

	require.NoError(t, c.AddTeamToWorkspace(ctx, id, "101"))
	require.Equal(t, []string{"101"}, fake.WorkspaceTeam[id])

	agent, err := c.CreateAgent(ctx, id, "agent")
	require.NoError(t, err)
	require.NotEmpty(t, agent.Token.AccessToken)
	require.NoError(t, c.DeleteAgent(ctx, id, agent.ID))
	require.Empty(t, fake.Agents)
	require.ErrorIs(t, c.DeleteAgent(ctx, id, agent.ID), veracode.ErrNotFound)
}

func TestProjectForScan(t *testing.T) {
	t.Parallel()
	fake := veracodetest.New(t)
	c := fake.Client(t)
	ctx := t.Context()

	fake.Scans["scan-1"] = veracode.SCAScan{ID: "scan-1", Date: "2025-03-01T10:00:00.000+00:00"}
	fake.Scans["scan-2"] = veracode.SCAScan{ID: "scan-2", Date: "2025-03-02T10:00:00Z"}
	fake.Projects["ws"] = []veracode.Project{
		{ID: "p0", LastScanDate: "garbage"},
		{ID: "p1", LastScanDate: "2025-03-01T11:00:00+01:00"},
	}

	project, err := c.ProjectForScan(ctx, "ws", "scan-1")
	require.NoError(t, err)
	require.Equal(t, "p1", project)

	_, err = c.ProjectForScan(ctx, "ws", "scan-2")
	require.ErrorIs(t, err, veracode.ErrNotFound)

	require.NoError(t, c.LinkProject(ctx, "app", project))
	require.Equal(t, "p1", fake.Links["app"])
}

func TestSBOM(t *testing.T) {
	t.Parallel()
	fake := veracodetest.New(t)
	c := fake.Client(t)

	fake.SBOMs["p1/cyclonedx"] = []byte(`{"bomFormat":"CycloneDX"}`)
	raw, err := c.SBOM(t.Context(), "p1", "CYCLONEDX")
	require.NoError(t, err)
	require.JSONEq(t, `{"bomFormat":"CycloneDX"}`, string(raw))

	_, err = c.SBOM(t.Context(), "p1", "SPDX")
	require.ErrorIs(t, err, veracode.ErrNotFound)
}

func TestInjectedFailure(t *testing.T) {
	t.Parallel()
	fake := veracodetest.New(t)
	c := fake.Client(t)
	fake.Fail["GET /api/authn/v2/teams"] = http.StatusInternalServerError

	_, err := c.Teams(t.Context())
	var apiErr *veracode.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.NotErrorIs(t, err, veracode.ErrNotFound)
}
