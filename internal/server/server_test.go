package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/config"
	"hermes/internal/db"
	"hermes/internal/engine"
	"hermes/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, mutate ...func(*Config)) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err, "open db")
	require.NoError(t, migrate.Migrate(conn), "migrate")
	cfg := config.Default()
	cfg.Diary.Timezone = "UTC"
	e := engine.New(conn, cfg, zerolog.Nop())
	e.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	scfg := Config{Engine: e, BasePath: "/v0", Logger: zerolog.Nop()}
	for _, m := range mutate {
		m(&scfg)
	}
	handler, err := New(scfg)
	require.NoError(t, err, "build handler")
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err, "listen")
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err, "marshal body")
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err, "new request")
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	require.NoError(t, err, "do request")
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err, "read body")
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

var sampleImport = map[string]any{
	"tasks": []map[string]any{
		{"id": "task_with_docs", "titulo": "Ação Com Docs", "data_criacao": "2023-01-01",
			"acompanhamento": []map[string]any{{"data": "2023-01-01T10:00:00.000Z", "nota": "Primeiro registro"}}},
		{"id": "task_empty", "titulo": "Ação Sem Docs", "data_criacao": "2023-01-01"},
	},
	"items": []map[string]any{
		{"id": "doc_1", "titulo": "Doc da ação.pdf", "tipo_arquivo": "pdf", "data_criacao": "2023-01-01",
			"origem": map[string]any{"modulo": "tarefas", "id_origem": "task_with_docs"}},
		{"id": "health_1", "titulo": "Exame sangue.pdf", "tipo_arquivo": "pdf", "categoria": "Saúde"},
	},
}

func importSample(t *testing.T, srv *testServer) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/import", sampleImport, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, engine.ImportResult{Items: 2, Tasks: 2}, decode[engine.ImportResult](t, data))
}

func nodeIDs(nodes []NodeResponse) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestHealthAndDocs(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotContains(t, string(data), "bearerAuth")
	assert.Contains(t, string(data), "/v0/nodes")

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/docs", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "/v0/openapi.json")
}

func TestBrowseAfterImport(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/nodes", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	top := decode[NodesResponse](t, data)
	assert.Equal(t, []string{"root::acoes", "root::saude", "root::projetos"}, nodeIDs(top.Items))
	for _, n := range top.Items {
		assert.Equal(t, "root", n.Kind)
		assert.True(t, n.Virtual)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/nodes?parent=root::acoes", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	actions := decode[NodesResponse](t, data)
	assert.Equal(t, []string{"acao::task_with_docs"}, nodeIDs(actions.Items))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/nodes?parent=acao::task_with_docs", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	inside := decode[NodesResponse](t, data)
	assert.ElementsMatch(t, []string{"doc_1", "diario::task_with_docs"}, nodeIDs(inside.Items))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/folders", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, decode[[]NodeResponse](t, data), 4)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/categories", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"Saúde"}, decode[[]string](t, data))
}

func TestSearchReturnsExpandedAncestors(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/nodes?q="+url.QueryEscape("primeiro registro"), nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	found := decode[NodesResponse](t, data)
	assert.Equal(t, []string{"diario::task_with_docs"}, nodeIDs(found.Items))
	assert.Equal(t, []string{"acao::task_with_docs", "root::acoes"}, found.Expand)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/nodes?q=exame&mode=folders", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Empty(t, decode[NodesResponse](t, data).Items)

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/nodes?q=exame&mode=everything", nil, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestNodeBreadcrumbAndDiary(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/nodes/doc_1/breadcrumb", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, []string{"root::acoes", "acao::task_with_docs", "doc_1"}, nodeIDs(decode[[]NodeResponse](t, data)))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/nodes/diario::task_with_docs", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	node := decode[NodeResponse](t, data)
	assert.Equal(t, "diary", node.Kind)
	assert.Contains(t, node.Text, "Primeiro registro")

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks/task_empty/diary", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, "Ação Sem Docs.txt", decode[NodeResponse](t, data).Title)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/nodes/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.Equal(t, "not_found", envelope.Error.Code)
}

func TestItemAndTaskMutations(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/items", map[string]any{
		"titulo": "Obra", "is_folder": true,
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	folder := decode[ItemResponse](t, data)
	assert.Equal(t, "projetos", folder.Domain)
	assert.NotEmpty(t, folder.Item.ID)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/links", map[string]any{
		"url": "example.com/planta", "parent_id": folder.Item.ID,
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	link := decode[ItemResponse](t, data)
	assert.Equal(t, "https://example.com/planta", link.Item.URL)

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/items/doc_1", map[string]any{"titulo": "Contrato"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, "Contrato.pdf", decode[ItemResponse](t, data).Item.Title)

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/items/"+folder.Item.ID, nil, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/task_with_docs/notes", map[string]any{
		"kind": "link", "name": "Portal", "value": "portal.gov.br",
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	assert.Contains(t, decode[DiaryEntryResponse](t, data).Note, "https://portal.gov.br")

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/task_with_docs/notes", map[string]any{
		"nota": "x", "kind": "LINK", "value": "a.com",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/tasks/task_with_docs", nil, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/orphans/task_with_docs/title", map[string]any{"titulo": "Reforma"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, int64(1), decode[OrphanTitleResponse](t, data).Items)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/nodes/acao::task_with_docs", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	orphan := decode[NodeResponse](t, data)
	assert.Equal(t, "orphan_action_folder", orphan.Kind)
	assert.Equal(t, "Reforma", orphan.Title)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?entity_kind=task&entity_id=task_with_docs", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	evts := decode[[]EventResponse](t, data)
	require.NotEmpty(t, evts)
	assert.Equal(t, "local-user", evts[0].ActorID)
}

func TestItemsUnderVirtualFolders(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/items", map[string]any{
		"titulo": "Exame.pdf", "parent_id": "root::saude",
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	exam := decode[ItemResponse](t, data)
	assert.Equal(t, "saude", exam.Domain)
	assert.Nil(t, exam.Item.ParentID)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/nodes?parent=root::saude", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Contains(t, nodeIDs(decode[NodesResponse](t, data).Items), exam.Item.ID)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/links", map[string]any{
		"url": "example.com/recibo", "parent_id": "acao::task_empty",
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	link := decode[ItemResponse](t, data)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/nodes?parent=acao::task_empty", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Contains(t, nodeIDs(decode[NodesResponse](t, data).Items), link.Item.ID)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/items", map[string]any{
		"titulo": "Solto.pdf", "parent_id": "root::acoes",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
}

func TestValidationErrorsUseEnvelope(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/items", map[string]any{"titulo": "  "}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Contains(t, string(data), `"code":"bad_request"`)

	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks/nope/notes", map[string]any{"nota": "oi"}, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestJWTAuth(t *testing.T) {
	srv := newTestServer(t, func(c *Config) { c.Auth = AuthConfig{JWTSecret: "s3cret"} })
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/nodes", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "bearerAuth")

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/nodes", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{"actor_id": "ana"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	token := decode[DevLoginResponse](t, data).Token
	require.NotEmpty(t, token)
	authz := map[string]string{"Authorization": "Bearer " + token}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"titulo": "Nova"}, authz)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?entity_kind=task", nil, authz)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	evts := decode[[]EventResponse](t, data)
	require.Len(t, evts, 1)
	assert.Equal(t, "ana", evts[0].ActorID)
}

func TestDevLoginDisabledWithoutSecret(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{"actor_id": "ana"}, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, func(c *Config) { c.CORSOrigins = []string{"http://localhost:5173"} })
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, "http://localhost:5173", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestSignDevToken(t *testing.T) {
	now := time.Now()
	token, err := signDevToken("k", "bob", now)
	require.NoError(t, err)
	p, err := authenticateJWT(token, "k")
	require.NoError(t, err)
	assert.Equal(t, Principal{ActorID: "bob", Source: "jwt"}, p)

	_, err = authenticateJWT(token, "other")
	assert.Error(t, err)
	_, err = signDevToken(" ", "bob", now)
	assert.Error(t, err)
}
