package submit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/specialistvlad/dripflow/internal/flow"
	"github.com/specialistvlad/dripflow/internal/rules"
	"github.com/specialistvlad/dripflow/internal/snapshot"
	"github.com/specialistvlad/dripflow/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFlow(t *testing.T) *flow.Graph {
	t.Helper()
	g := flow.New()
	for _, n := range []flow.Node{
		{ID: "start", Kind: flow.KindStart, Label: "Start"},
		{ID: "mail", Kind: flow.KindSendEmail, Label: "Welcome", Config: flow.SendEmailConfig{
			Subject: "Hi", Body: "Hello", Links: []flow.Link{{Text: "Go", URL: "https://example.com"}},
		}},
		{ID: "cond", Kind: flow.KindCondition, Label: "Clicked?", Config: flow.ConditionConfig{ConditionType: flow.ConditionLinkClicked}},
		{ID: "wait", Kind: flow.KindWait, Label: "Pause", Config: flow.WaitConfig{Duration: 3, Unit: flow.UnitHours}},
		{ID: "done", Kind: flow.KindEnd, Label: "Done"},
		{ID: "lost", Kind: flow.KindEnd, Label: "Lost"},
	} {
		require.NoError(t, g.AddNode(n))
	}
	for _, e := range []flow.Edge{
		{ID: "e1", Source: "start", Target: "mail"},
		{ID: "e2", Source: "mail", Target: "cond"},
		{ID: "e3", Source: "cond", Target: "done", SourceHandle: flow.HandleYes},
		{ID: "e4", Source: "cond", Target: "wait", SourceHandle: flow.HandleNo},
		{ID: "e5", Source: "wait", Target: "lost"},
	} {
		require.NoError(t, g.AddEdgeRaw(e))
	}
	return g
}

func TestBuild(t *testing.T) {
	g := validFlow(t)
	res := validate.Validate(g, true, rules.DefaultTable())
	require.True(t, res.IsValid, res.Errors)

	contacts := NewContactFile(snapshot.Descriptor{Name: "c.csv", Size: 20, Type: "text/csv", LastModified: 7}, []byte("email\na@b.c\n"))
	created := time.Date(2024, 5, 1, 12, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	req, err := Build(g, res, contacts, Options{CampaignID: "camp-1", Name: "Onboarding", Now: func() time.Time { return created }})
	require.NoError(t, err)

	assert.Equal(t, Campaign{ID: "camp-1", Name: "Onboarding", Status: StatusReady, CreatedAt: "2024-05-01T10:30:00Z"}, req.Campaign)
	assert.Equal(t, Workflow{StartNode: "start", TotalNodes: 6, TotalConnections: 5}, req.Workflow)
	assert.Same(t, contacts, req.ContactFile)
	assert.Equal(t, "email\na@b.c\n", req.ContactFile.Content)

	want := []Connection{
		{ID: "e1", FromNode: "start", ToNode: "mail", ConnectionType: "default"},
		{ID: "e2", FromNode: "mail", ToNode: "cond", ConnectionType: "default"},
		{ID: "e3", FromNode: "cond", ToNode: "done", ConnectionType: "yes"},
		{ID: "e4", FromNode: "cond", ToNode: "wait", ConnectionType: "no"},
		{ID: "e5", FromNode: "wait", ToNode: "lost", ConnectionType: "default"},
	}
	if diff := cmp.Diff(want, req.Connections); diff != "" {
		t.Errorf("connections mismatch (-want +got):\n%s", diff)
	}

	configs := map[string]map[string]any{}
	for _, n := range req.Nodes {
		configs[n.ID] = n.Configuration
	}
	assert.Equal(t, map[string]any{"waitDuration": 3, "waitUnit": "hours"}, configs["wait"])
	assert.Equal(t, map[string]any{"conditionType": "linkClicked"}, configs["cond"])
	assert.Equal(t, map[string]any{
		"subject": "Hi",
		"body":    "Hello",
		"links":   []map[string]string{{"text": "Go", "url": "https://example.com"}},
	}, configs["mail"])
	assert.Equal(t, map[string]any{}, configs["done"])

	t.Run("condition timeout uses the backend names", func(t *testing.T) {
		require.NoError(t, g.UpdateNodeConfig("cond", flow.ConfigPatch{"timeout": 2, "timeoutUnit": "days"}))
		req, err := Build(g, res, contacts, Options{})
		require.NoError(t, err)
		for _, n := range req.Nodes {
			if n.ID == "cond" {
				assert.Equal(t, map[string]any{"conditionType": "linkClicked", "timeout": 2, "unit": "days"}, n.Configuration)
			}
		}
	})

	t.Run("defaults", func(t *testing.T) {
		req, err := Build(g, res, nil, Options{})
		require.NoError(t, err)
		_, err = uuid.Parse(req.Campaign.ID)
		assert.NoError(t, err)
		assert.Equal(t, "Email Campaign Flow", req.Campaign.Name)
		assert.Nil(t, req.ContactFile)
	})
}

func TestBuild_Refusals(t *testing.T) {
	t.Run("invalid flow", func(t *testing.T) {
		g := validFlow(t)
		res := validate.Validate(g, false, rules.DefaultTable())
		_, err := Build(g, res, nil, Options{})
		assert.True(t, errors.Is(err, ErrInvalidFlow))
		assert.ErrorContains(t, err, validate.MissingDataMessage)
	})

	t.Run("loop with an exit", func(t *testing.T) {
		g := validFlow(t)
		require.NoError(t, g.AddEdgeRaw(flow.Edge{ID: "back", Source: "lost", Target: "mail"}))
		res := validate.Validate(g, true, rules.DefaultTable())
		require.True(t, res.IsValid, res.Errors)

		_, err := Build(g, res, nil, Options{})
		assert.True(t, errors.Is(err, ErrLoop))
		assert.ErrorContains(t, err, `involving node "mail"`)
	})

	t.Run("contact file without content", func(t *testing.T) {
		g := validFlow(t)
		res := validate.Validate(g, true, rules.DefaultTable())
		_, err := Build(g, res, NewContactFile(snapshot.Descriptor{Name: "empty.csv"}, nil), Options{})
		assert.ErrorContains(t, err, "invalid campaign request")
	})
}

func TestClient_Submit(t *testing.T) {
	g := validFlow(t)
	res := validate.Validate(g, true, rules.DefaultTable())
	req, err := Build(g, res, nil, Options{CampaignID: "camp-1"})
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		var got Request
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, CampaignsPath, r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			assert.NoError(t, json.Unmarshal(body, &got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"message":"Campaign created successfully","campaign_id":"camp-1","campaign_data":{}}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL+"/", srv.Client())
		defer client.Close()
		out, err := client.Submit(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, Response{Message: "Campaign created successfully", CampaignID: "camp-1"}, out)
		assert.Equal(t, "camp-1", got.Campaign.ID)
		assert.Len(t, got.Connections, 5)
	})

	t.Run("backend error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"Error creating campaign"}`, http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, srv.Client()).Submit(context.Background(), req)
		assert.ErrorContains(t, err, "backend rejected campaign: 500 Internal Server Error")
		assert.ErrorContains(t, err, "Error creating campaign")
	})

	t.Run("malformed response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, nil).Submit(context.Background(), req)
		assert.ErrorContains(t, err, "failed to decode response")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewClient("http://127.0.0.1:1", nil).Submit(ctx, req)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
