package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/specialistvlad/dripflow/internal/hclflow"
	"github.com/specialistvlad/dripflow/internal/snapshot"
	"github.com/specialistvlad/dripflow/internal/submit"
	"github.com/specialistvlad/dripflow/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validFlow = `
node "start" "start" {
  label = "Start"
  next  = "hello"
}

node "sendEmail" "hello" {
  label   = "Hello"
  subject = "Hi"
  body    = "Welcome aboard"
  next    = "bye"
}

node "end" "bye" {
  label = "Done"
}
`

const invalidFlow = `
node "start" "start" {
  label = "Start"
  next  = "pause"
}

node "wait" "pause" {
  label = "Pause"
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "missing flow", cfg: Config{}, wantErr: "FlowPath is a required"},
		{name: "bad report", cfg: Config{FlowPath: "f", ReportFormat: "xml"}, wantErr: "invalid report format"},
		{name: "bad conversion", cfg: Config{FlowPath: "f", ConvertTo: "yaml"}, wantErr: "invalid conversion target"},
		{name: "bad policy", cfg: Config{FlowPath: "f", ConditionFeeders: "loose"}, wantErr: "unknown condition feeder policy"},
		{name: "bad log format", cfg: Config{FlowPath: "f", LogFormat: "xml"}, wantErr: "invalid log format"},
		{name: "bad log level", cfg: Config{FlowPath: "f", LogLevel: "trace"}, wantErr: "invalid log level"},
		{name: "bad port", cfg: Config{FlowPath: "f", HealthcheckPort: 70000}, wantErr: "invalid healthcheck port"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	t.Run("defaults", func(t *testing.T) {
		cfg, err := NewConfig(Config{FlowPath: "f"})
		require.NoError(t, err)
		assert.Equal(t, FormatText, cfg.ReportFormat)
		assert.Equal(t, FormatText, cfg.LogFormat)
		assert.Equal(t, "chained", cfg.ConditionFeeders)
		assert.Positive(t, cfg.SubmitTimeout)
	})
}

func TestRun_ValidFlow(t *testing.T) {
	dir := t.TempDir()
	flowPath := writeFile(t, dir, "flow.hcl", validFlow)
	dataPath := writeFile(t, dir, "contacts.csv", "email\na@example.com\n")

	a, out, logs := SetupAppTest(t, Config{FlowPath: flowPath, DataPath: dataPath})
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, "Flow is valid.\n", out.String())
	assert.Contains(t, logs.String(), "Flow loaded.")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics().ValidationsTotal.WithLabelValues("valid")))
}

func TestRun_InvalidFlow(t *testing.T) {
	flowPath := writeFile(t, t.TempDir(), "flow.hcl", invalidFlow)

	a, out, _ := SetupAppTest(t, Config{FlowPath: flowPath})
	err := a.Run(context.Background())

	require.ErrorIs(t, err, ErrFlowInvalid)
	assert.Contains(t, out.String(), "Flow is invalid:")
	assert.Contains(t, out.String(), "[PreconditionError] "+validate.MissingDataMessage)
	assert.Contains(t, out.String(), "Pause: wait duration must be greater than zero")
}

func TestRun_JSONReport(t *testing.T) {
	flowPath := writeFile(t, t.TempDir(), "flow.hcl", invalidFlow)

	a, out, _ := SetupAppTest(t, Config{FlowPath: flowPath, ReportFormat: FormatJSON})
	require.ErrorIs(t, a.Run(context.Background()), ErrFlowInvalid)

	var res validate.Result
	require.NoError(t, json.Unmarshal([]byte(out.String()), &res))
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, validate.MissingDataMessage)
}

func TestRun_JSONFlowFile(t *testing.T) {
	dir := t.TempDir()
	g, _, err := hclflow.Parse(context.Background(), "flow.hcl", []byte(validFlow))
	require.NoError(t, err)
	p, err := snapshot.Export(g, &snapshot.Descriptor{Name: "contacts.csv", Size: 10, Type: CSVType})
	require.NoError(t, err)
	f, err := os.Create(filepath.Join(dir, "flow.json"))
	require.NoError(t, err)
	require.NoError(t, snapshot.Encode(f, p))
	require.NoError(t, f.Close())

	a, out, _ := SetupAppTest(t, Config{FlowPath: f.Name()})
	require.NoError(t, a.Run(context.Background()), "the embedded descriptor satisfies the precondition")
	assert.Equal(t, "Flow is valid.\n", out.String())
}

func TestRun_Convert(t *testing.T) {
	dir := t.TempDir()
	flowPath := writeFile(t, dir, "flow.hcl", validFlow)
	dataPath := writeFile(t, dir, "contacts.csv", "email\n")

	t.Run("json", func(t *testing.T) {
		a, out, logs := SetupAppTest(t, Config{FlowPath: flowPath, DataPath: dataPath, ConvertTo: FormatJSON})
		require.NoError(t, a.Run(context.Background()))

		p, err := snapshot.Decode(strings.NewReader(out.String()))
		require.NoError(t, err, "stdout must hold only the converted flow")
		assert.Len(t, p.Nodes, 3)
		assert.Len(t, p.Edges, 2)
		require.NotNil(t, p.ExternalDataDescriptor)
		assert.Equal(t, "contacts.csv", p.ExternalDataDescriptor.Name)
		assert.Contains(t, logs.String(), "Flow is valid.")
	})

	t.Run("json of an invalid flow", func(t *testing.T) {
		a, out, logs := SetupAppTest(t, Config{FlowPath: writeFile(t, dir, "broken.hcl", invalidFlow), ConvertTo: FormatJSON})
		require.ErrorIs(t, a.Run(context.Background()), ErrFlowInvalid)

		p, err := snapshot.Decode(strings.NewReader(out.String()))
		require.NoError(t, err)
		assert.Len(t, p.Nodes, 2)
		assert.Contains(t, logs.String(), "Flow is invalid:")
		assert.NotContains(t, out.String(), "Flow is invalid")
	})

	t.Run("hcl", func(t *testing.T) {
		a, out, logs := SetupAppTest(t, Config{FlowPath: flowPath, ConvertTo: FormatHCL})
		require.ErrorIs(t, a.Run(context.Background()), ErrFlowInvalid)

		g, _, err := hclflow.Parse(context.Background(), "converted.hcl", []byte(out.String()))
		require.NoError(t, err)
		assert.Equal(t, 3, g.Len())
		assert.Contains(t, logs.String(), validate.MissingDataMessage)
	})
}

func TestRun_LoadErrors(t *testing.T) {
	dir, empty := t.TempDir(), t.TempDir()
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing json", cfg: Config{FlowPath: filepath.Join(dir, "nope.json")}},
		{name: "no hcl files", cfg: Config{FlowPath: empty}},
		{name: "malformed json", cfg: Config{FlowPath: writeFile(t, dir, "bad.json", "{")}},
		{name: "missing data", cfg: Config{FlowPath: writeFile(t, dir, "flow.hcl", validFlow), DataPath: filepath.Join(dir, "none.csv")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, _, _ := SetupAppTest(t, tc.cfg)
			err := a.Run(context.Background())
			require.Error(t, err)
			assert.False(t, errors.Is(err, ErrFlowInvalid))
		})
	}
}

func TestRun_Submit(t *testing.T) {
	var received submit.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, submit.CampaignsPath, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"message":"Campaign created","campaign_id":"c-1"}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	flowPath := writeFile(t, dir, "flow.hcl", validFlow)
	dataPath := writeFile(t, dir, "contacts.csv", "email\na@example.com\n")

	a, out, _ := SetupAppTest(t, Config{FlowPath: flowPath, DataPath: dataPath, SubmitURL: srv.URL, CampaignName: "Onboarding"})
	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), "Campaign c-1 submitted: Campaign created")
	assert.Equal(t, "Onboarding", received.Campaign.Name)
	assert.Equal(t, "start", received.Workflow.StartNode)
	require.NotNil(t, received.ContactFile)
	assert.Equal(t, "email\na@example.com\n", received.ContactFile.Content)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics().SubmissionsTotal.WithLabelValues("success")))
}

func TestRun_SubmitSkippedForInvalidFlow(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	flowPath := writeFile(t, t.TempDir(), "flow.hcl", invalidFlow)
	a, _, logs := SetupAppTest(t, Config{FlowPath: flowPath, SubmitURL: srv.URL})

	require.ErrorIs(t, a.Run(context.Background()), ErrFlowInvalid)
	assert.False(t, called)
	assert.Contains(t, logs.String(), "Submission skipped")
}

func TestRun_SubmitFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	flowPath := writeFile(t, dir, "flow.hcl", validFlow)
	dataPath := writeFile(t, dir, "contacts.csv", "email\n")

	a, _, _ := SetupAppTest(t, Config{FlowPath: flowPath, DataPath: dataPath, SubmitURL: srv.URL})
	err := a.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to submit campaign")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics().SubmissionsTotal.WithLabelValues("error")))
}

func TestRun_EditorURLMustBeAbsolute(t *testing.T) {
	flowPath := writeFile(t, t.TempDir(), "flow.hcl", validFlow)
	a, _, _ := SetupAppTest(t, Config{FlowPath: flowPath, EditorURL: "canvas"})

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to editor")
}

func TestHealthMux(t *testing.T) {
	a, _, _ := SetupAppTest(t, Config{FlowPath: "unused.hcl"})
	a.metrics.RecordSubmission(true)

	srv := httptest.NewServer(a.healthMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK\n", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "dripflow_submit_requests_total")
}

func TestHealthCheckServerDisabled(t *testing.T) {
	a, _, _ := SetupAppTest(t, Config{FlowPath: "unused.hcl"})
	require.NoError(t, a.startHealthCheckServer(context.Background()))
	assert.Nil(t, a.httpServer)
	assert.NoError(t, a.closeHealthCheckServer(context.Background()))
}

func TestDescribeData(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.csv", "email\n")

	d, err := describeData(path)
	require.NoError(t, err)
	assert.Equal(t, "people.csv", d.Name)
	assert.Equal(t, int64(6), d.Size)
	assert.Equal(t, CSVType, d.Type)
	assert.Positive(t, d.LastModified)

	_, err = describeData(dir)
	assert.Error(t, err)
}
