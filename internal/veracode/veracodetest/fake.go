// Package veracodetest provides an in-memory platform REST API for tests.
package veracodetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/CZERTAINLY/verascan/internal/veracode"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DefaultPolicy is assigned to the applications created through the API
const DefaultPolicy = "Veracode Recommended Medium + SCA"

// Fake is the state of the fake platform. Tests seed it directly and
// inspect it after the code under test ran. Lock Mx for access while
// the server is running.
type Fake struct {
	Mx sync.Mutex

	Applications  map[string]*veracode.Application // by guid
	Policies      map[string]string                // guid -> name
	Teams         []veracode.Team
	BusinessUnits []veracode.BusinessUnit
	Collections   map[string]*veracode.CollectionSpec // by guid
	Workspaces    []veracode.Workspace
	WorkspaceTeam map[string][]string // workspace -> team legacy ids
	Agents        map[string]veracode.Agent
	Scans         map[string]veracode.SCAScan
	Projects      map[string][]veracode.Project // by workspace
	Links         map[string]string             // application -> project
	SBOMs         map[string][]byte             // project/format -> document

	// Fail maps "METHOD /path" to the status code returned instead of the answer
	Fail map[string]int

	Server *httptest.Server
}

// New starts the fake server. It is closed when the test ends.
func New(t testing.TB) *Fake {
	t.Helper()
	f := &Fake{
		Applications:  map[string]*veracode.Application{},
		Policies:      map[string]string{},
		Collections:   map[string]*veracode.CollectionSpec{},
		WorkspaceTeam: map[string][]string{},
		Agents:        map[string]veracode.Agent{},
		Scans:         map[string]veracode.SCAScan{},
		Projects:      map[string][]veracode.Project{},
		Links:         map[string]string{},
		SBOMs:         map[string][]byte{},
		Fail:          map[string]int{},
	}
	f.Server = httptest.NewServer(f.router())
	t.Cleanup(f.Server.Close)
	return f
}

// URL to be passed to veracode.WithBaseURL
func (f *Fake) URL() *url.URL {
	u, err := url.Parse(f.Server.URL)
	if err != nil {
		panic(err)
	}
	return u
}

// Client returns a client talking to the fake.
func (f *Fake) Client(t testing.TB) *veracode.Client {
	t.Helper()
	c, err := veracode.NewClient(veracode.Credentials{
		ID:     "vera01ei-0123456789abcdef",
		Secret: "vera01ei-00112233445566778899aabbccddeeff",
	}, veracode.WithBaseURL(f.URL()))
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return c
}

func (f *Fake) router() http.Handler {
	r := chi.NewRouter()
	r.Use(f.auth, f.failures)

	r.Get("/appsec/v1/applications", f.listApplications)
	r.Post("/appsec/v1/applications", f.createApplication)
	r.Get("/appsec/v1/applications/{guid}", f.getApplication)
	r.Put("/appsec/v1/applications/{guid}", f.updateApplication)
	r.Get("/appsec/v1/policies/{guid}", f.getPolicy)

	r.Get("/appsec/v1/collections", f.listCollections)
	r.Post("/appsec/v1/collections", f.createCollection)
	r.Put("/appsec/v1/collections/{guid}", f.updateCollection)

	r.Get("/api/authn/v2/teams", f.listTeams)
	r.Post("/api/authn/v2/teams", f.createTeam)
	r.Get("/api/authn/v2/business_units", f.listBusinessUnits)
	r.Post("/api/authn/v2/business_units", f.createBusinessUnit)

	r.Route("/srcclr/v3", func(r chi.Router) {
		r.Get("/workspaces", f.listWorkspaces)
		r.Post("/workspaces", f.createWorkspace)
		r.Put("/workspaces/{ws}/teams/{team}", f.addTeam)
		r.Post("/workspaces/{ws}/agents", f.createAgent)
		r.Delete("/workspaces/{ws}/agents/{agent}", f.deleteAgent)
		r.Get("/workspaces/{ws}/projects", f.listProjects)
		r.Get("/scans/{id}", f.getScan)
		r.Put("/applications/{app}/projects/{project}", f.linkProject)
	})
	r.Get("/srcclr/sbom/v1/targets/{project}/{format}", f.getSBOM)
	return r
}

func (f *Fake) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), veracode.AuthScheme+" id=0123456789abcdef,ts=") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *Fake) failures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.Mx.Lock()
		code, ok := f.Fail[r.Method+" "+r.URL.Path]
		f.Mx.Unlock()
		if ok {
			http.Error(w, "injected failure", code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func embedded(key string, items any) map[string]any {
	return map[string]any{
		"_embedded": map[string]any{key: items},
		"page":      map[string]any{"number": 0, "total_pages": 1},
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (f *Fake) listApplications(w http.ResponseWriter, r *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	name := r.URL.Query().Get("name")
	var ret []veracode.Application
	for _, app := range f.Applications {
		if strings.Contains(app.Profile.Name, name) {
			ret = append(ret, *app)
		}
	}
	writeJSON(w, http.StatusOK, embedded("applications", ret))
}

func (f *Fake) getApplication(w http.ResponseWriter, r *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	app, ok := f.Applications[chi.URLParam(r, "guid")]
	if !ok {
		http.Error(w, "no such application", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (f *Fake) createApplication(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Profile veracode.Profile `json:"profile"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.Mx.Lock()
	defer f.Mx.Unlock()
	app := &veracode.Application{
		GUID:    uuid.NewString(),
		ID:      len(f.Applications) + 1000,
		Profile: body.Profile,
	}
	policyGUID := uuid.NewString()
	f.Policies[policyGUID] = DefaultPolicy
	app.Links.Policy.Href = f.Server.URL + "/appsec/v1/policies/" + policyGUID
	f.Applications[app.GUID] = app
	writeJSON(w, http.StatusOK, app)
}

func (f *Fake) updateApplication(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Profile veracode.Profile `json:"profile"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.Mx.Lock()
	defer f.Mx.Unlock()
	app, ok := f.Applications[chi.URLParam(r, "guid")]
	if !ok {
		http.Error(w, "no such application", http.StatusNotFound)
		return
	}
	app.Profile = body.Profile
	writeJSON(w, http.StatusOK, app)
}

func (f *Fake) getPolicy(w http.ResponseWriter, r *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	name, ok := f.Policies[chi.URLParam(r, "guid")]
	if !ok {
		http.Error(w, "no such policy", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"guid": chi.URLParam(r, "guid"), "name": name})
}

func (f *Fake) listCollections(w http.ResponseWriter, r *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	name := r.URL.Query().Get("name")
	var ret []veracode.Collection
	for guid, col := range f.Collections {
		if strings.Contains(col.Name, name) {
			ret = append(ret, veracode.Collection{GUID: guid, Name: col.Name})
		}
	}
	writeJSON(w, http.StatusOK, embedded("collections", ret))
}

func (f *Fake) createCollection(w http.ResponseWriter, r *http.Request) {
	var spec veracode.CollectionSpec
	if !decode(w, r, &spec) {
		return
	}
	f.Mx.Lock()
	defer f.Mx.Unlock()
	guid := uuid.NewString()
	f.Collections[guid] = &spec
	writeJSON(w, http.StatusOK, veracode.Collection{GUID: guid, Name: spec.Name})
}

func (f *Fake) updateCollection(w http.ResponseWriter, r *http.Request) {
	var spec veracode.CollectionSpec
	if !decode(w, r, &spec) {
		return
	}
	f.Mx.Lock()
	defer f.Mx.Unlock()
	guid := chi.URLParam(r, "guid")
	if _, ok := f.Collections[guid]; !ok {
		http.Error(w, "no such collection", http.StatusNotFound)
		return
	}
	f.Collections[guid] = &spec
	writeJSON(w, http.StatusOK, veracode.Collection{GUID: guid, Name: spec.Name})
}

func (f *Fake) listTeams(w http.ResponseWriter, _ *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	writeJSON(w, http.StatusOK, embedded("teams", f.Teams))
}

func (f *Fake) createTeam(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"team_name"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.Mx.Lock()
	defer f.Mx.Unlock()
	team := veracode.Team{ID: uuid.NewString(), LegacyID: len(f.Teams) + 100, Name: body.Name}
	f.Teams = append(f.Teams, team)
	writeJSON(w, http.StatusOK, team)
}

func (f *Fake) listBusinessUnits(w http.ResponseWriter, _ *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	writeJSON(w, http.StatusOK, embedded("business_units", f.BusinessUnits))
}

func (f *Fake) createBusinessUnit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"bu_name"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.Mx.Lock()
	defer f.Mx.Unlock()
	bu := veracode.BusinessUnit{ID: uuid.NewString(), Name: body.Name}
	f.BusinessUnits = append(f.BusinessUnits, bu)
	writeJSON(w, http.StatusOK, bu)
}

func (f *Fake) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	name := r.URL.Query().Get("filter[workspace]")
	var ret []veracode.Workspace
	for _, ws := range f.Workspaces {
		if strings.Contains(ws.Name, name) {
			ret = append(ret, ws)
		}
	}
	writeJSON(w, http.StatusOK, embedded("workspaces", ret))
}

func (f *Fake) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.Mx.Lock()
	defer f.Mx.Unlock()
	ws := veracode.Workspace{ID: uuid.NewString(), Name: body.Name}
	f.Workspaces = append(f.Workspaces, ws)
	w.Header().Set("Location", "/srcclr/v3/workspaces/"+ws.ID)
	w.WriteHeader(http.StatusCreated)
}

func (f *Fake) addTeam(w http.ResponseWriter, r *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	ws := chi.URLParam(r, "ws")
	f.WorkspaceTeam[ws] = append(f.WorkspaceTeam[ws], chi.URLParam(r, "team"))
	w.WriteHeader(http.StatusNoContent)
}

func (f *Fake) createAgent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.Mx.Lock()
	defer f.Mx.Unlock()
	var agent veracode.Agent
	agent.ID = uuid.NewString()
	agent.Name = body.Name
	agent.Token.AccessToken = "token-" + strconv.Itoa(len(f.Agents)+1)
	f.Agents[agent.ID] = agent
	writeJSON(w, http.StatusOK, agent)
}

func (f *Fake) deleteAgent(w http.ResponseWriter, r *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	id := chi.URLParam(r, "agent")
	if _, ok := f.Agents[id]; !ok {
		http.Error(w, "no such agent", http.StatusNotFound)
		return
	}
	delete(f.Agents, id)
	w.WriteHeader(http.StatusNoContent)
}

func (f *Fake) listProjects(w http.ResponseWriter, r *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	writeJSON(w, http.StatusOK, embedded("projects", f.Projects[chi.URLParam(r, "ws")]))
}

func (f *Fake) getScan(w http.ResponseWriter, r *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	scan, ok := f.Scans[chi.URLParam(r, "id")]
	if !ok {
		http.Error(w, "no such scan", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (f *Fake) linkProject(w http.ResponseWriter, r *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	f.Links[chi.URLParam(r, "app")] = chi.URLParam(r, "project")
	w.WriteHeader(http.StatusNoContent)
}

func (f *Fake) getSBOM(w http.ResponseWriter, r *http.Request) {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	if r.URL.Query().Get("type") != "agent" {
		http.Error(w, "unsupported type", http.StatusBadRequest)
		return
	}
	key := fmt.Sprintf("%s/%s", chi.URLParam(r, "project"), chi.URLParam(r, "format"))
	doc, ok := f.SBOMs[key]
	if !ok {
		http.Error(w, "no such sbom", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

// AddApplication seeds an application with a policy.
func (f *Fake) AddApplication(name, policyName string) veracode.Application {
	f.Mx.Lock()
	defer f.Mx.Unlock()
	policyGUID := uuid.NewString()
	f.Policies[policyGUID] = policyName
	app := &veracode.Application{
		GUID:    uuid.NewString(),
		ID:      len(f.Applications) + 1,
		Profile: veracode.Profile{Name: name},
	}
	app.Links.Policy.Href = f.Server.URL + "/appsec/v1/policies/" + policyGUID
	f.Applications[app.GUID] = app
	return *app
}
