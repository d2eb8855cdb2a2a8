package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/graphtriple/pkg/graph"
	"github.com/matzehuels/graphtriple/pkg/graph/memory"
	gtio "github.com/matzehuels/graphtriple/pkg/io"
	"github.com/matzehuels/graphtriple/pkg/observability"
	"github.com/matzehuels/graphtriple/pkg/triple"
	"github.com/matzehuels/graphtriple/pkg/visibility"
)

const (
	person = "http://example.org#person"
	knows  = "http://example.org#knows"
)

func concept(id string) string {
	return "<" + id + "> <" + triple.RDFType + "> <" + person + ">"
}

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })
	logger := log.New(io.Discard)
	imp := gtio.NewImporter(store, visibility.NewDirectTranslator("system"), gtio.WithLogger(logger))
	base := []Option{WithLogger(logger), WithAuthorizations(visibility.NewAuthorizations("system"))}
	srv := httptest.NewServer(New(store, imp, append(base, opts...)...))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string, header ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(b)
}

func TestImportThenExport(t *testing.T) {
	srv := newTestServer(t)
	body := strings.Join([]string{
		concept("v1"),
		concept("v2"),
		"<v1> <" + knows + "> <v2>",
		"<v1> <http://example.org#name> \"Joe\"",
		"<v1> <http://example.org#age> \"old\"^^<" + triple.TypeInteger + ">",
	}, "\n")

	resp, out := do(t, http.MethodPost, srv.URL+"/import?source=api.nt", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /import = %d: %s", resp.StatusCode, out)
	}
	var ir ImportResponse
	if err := json.Unmarshal([]byte(out), &ir); err != nil {
		t.Fatal(err)
	}
	if ir.Imported != 4 || ir.Failed != 1 || ir.Elements != 3 || len(ir.Errors) != 1 {
		t.Fatalf("import response = %+v", ir)
	}
	if ir.RunID == "" {
		t.Error("import response has no run id")
	}
	if f := ir.Errors[0]; f.Line != 5 || f.Code != "INVALID_LITERAL" {
		t.Errorf("failure = %+v", f)
	}

	resp, out = do(t, http.MethodGet, srv.URL+"/export/vertex/v1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /export/vertex/v1 = %d: %s", resp.StatusCode, out)
	}
	runMeta := graph.ImportRunMetadata + "> \"" + ir.RunID + "\"\n"
	for _, want := range []string{"# Vertex: v1\n", concept("v1") + "\n", "\"Joe\"\n", runMeta} {
		if !strings.Contains(out, want) {
			t.Errorf("export lacks %q:\n%s", want, out)
		}
	}

	_, out = do(t, http.MethodGet, srv.URL+"/export", "")
	if !strings.Contains(out, "<v1> <"+knows+"> <v2>\n") {
		t.Errorf("graph export lacks the edge:\n%s", out)
	}
}

func TestImportFailFast(t *testing.T) {
	srv := newTestServer(t)
	body := concept("v1") + "\n<v1> <" + knows + "> <nope>\n" + concept("v2")

	resp, out := do(t, http.MethodPost, srv.URL+"/import?failFast=true", body)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", resp.StatusCode, out)
	}
	var ir ImportResponse
	if err := json.Unmarshal([]byte(out), &ir); err != nil {
		t.Fatal(err)
	}
	if ir.Imported != 1 || len(ir.Errors) != 1 || ir.Errors[0].Code != "ELEMENT_NOT_FOUND" || ir.Errors[0].Line != 2 {
		t.Errorf("import response = %+v", ir)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/import?failFast=maybe", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad failFast status = %d", resp.StatusCode)
	}
}

func TestExportAuthorizations(t *testing.T) {
	srv := newTestServer(t)
	body := "<v1[secret]> <" + triple.RDFType + "> <" + person + ">"
	if resp, out := do(t, http.MethodPost, srv.URL+"/import", body); resp.StatusCode != http.StatusOK {
		t.Fatalf("import = %d: %s", resp.StatusCode, out)
	}

	tests := []struct {
		name   string
		auths  string
		status int
	}{
		{"server default", "", http.StatusOK},
		{"holding the token", "secret", http.StatusOK},
		{"lacking the token", "public", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hdr []string
			if tt.auths != "" {
				hdr = []string{AuthorizationsHeader, tt.auths}
			}
			resp, out := do(t, http.MethodGet, srv.URL+"/export/vertex/v1", "", hdr...)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.status, out)
			}
		})
	}
}

func TestExportElementErrors(t *testing.T) {
	srv := newTestServer(t)

	resp, out := do(t, http.MethodGet, srv.URL+"/export/node/v1", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad type status = %d", resp.StatusCode)
	}
	resp, out = do(t, http.MethodGet, srv.URL+"/export/edge/e1", "")
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(out, "ELEMENT_NOT_FOUND") {
		t.Errorf("missing edge = %d: %s", resp.StatusCode, out)
	}
}

func TestRenderDOT(t *testing.T) {
	srv := newTestServer(t)
	do(t, http.MethodPost, srv.URL+"/import", concept("v1")+"\n"+concept("v2")+"\n<v1> <"+knows+"> <v2>")

	resp, out := do(t, http.MethodGet, srv.URL+"/render?format=dot", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, out)
	}
	if !strings.Contains(out, `"v1" -> "v2" [label="knows"];`) {
		t.Errorf("DOT lacks the edge:\n%s", out)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/render?format=gif", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad format status = %d", resp.StatusCode)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewPrometheus(reg).Install()
	defer observability.Reset()

	srv := newTestServer(t, WithGatherer(reg))
	do(t, http.MethodPost, srv.URL+"/import", concept("v1"))

	resp, out := do(t, http.MethodGet, srv.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(out, `graphtriple_import_lines_total{kind="concept_type",result="ok"} 1`) {
		t.Errorf("metrics lack the import counter:\n%s", out)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, out := do(t, http.MethodGet, srv.URL+"/health", "")
	if resp.StatusCode != http.StatusOK || out != "OK" {
		t.Errorf("GET /health = %d %q", resp.StatusCode, out)
	}
}
