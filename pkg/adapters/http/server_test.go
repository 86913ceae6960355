package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/ruleflow/pkg/adapters/memory"
	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRules serves "echo" (copies data.name to greeting) and "broken"
// (always fails).
func newRules(t *testing.T) *memory.Rules {
	t.Helper()

	echo := dsl.New("echo")
	start, end := echo.Start(), echo.End()
	greet := echo.Single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		body, _ := data["data"].(map[string]any)
		data["greeting"] = "hello " + body["name"].(string)
		done.Default()
	}))
	start.Go(greet)
	greet.Go(end)

	broken := dsl.New("broken")
	bStart, bEnd := broken.Start(), broken.End()
	fail := broken.Single(domain.OnContext(func(_ domain.Context, done *domain.Done) {
		done.Fail(errors.New("boom"))
	}))
	bStart.Go(fail)
	fail.Go(bEnd)

	p1, err := echo.Build()
	require.NoError(t, err)
	p2, err := broken.Build()
	require.NoError(t, err)
	rules, err := memory.NewRules(p1, p2)
	require.NoError(t, err)
	return rules
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestExecuteRule(t *testing.T) {
	h := NewHandler(newRules(t))

	w := do(t, h, "POST", "/rules/echo?lang=en", `{"name": "ada"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RunIDHeader))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	result := decode[map[string]any](t, w)
	assert.Equal(t, "hello ada", result["greeting"])
	request := result["request"].(map[string]any)
	assert.Equal(t, "POST", request["method"])
	assert.Equal(t, "/rules/echo", request["path"])
	assert.Equal(t, map[string]any{"lang": "en"}, request["query"])
}

func TestExecuteRule_Errors(t *testing.T) {
	h := NewHandler(newRules(t))

	t.Run("not found", func(t *testing.T) {
		w := do(t, h, "POST", "/rules/ghost", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Rule 'ghost' not found", decode[errorBody](t, w).Error)
	})

	t.Run("bad body", func(t *testing.T) {
		w := do(t, h, "POST", "/rules/echo", `[1, 2]`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("execute error", func(t *testing.T) {
		w := do(t, h, "POST", "/rules/broken", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode[errorBody](t, w)
		assert.Equal(t, "Rule 'broken' execute error", body.Error)
		assert.Contains(t, body.Cause, "boom")
		assert.Equal(t, w.Header().Get(RunIDHeader), body.RunID)
	})
}

func TestExecuteRule_ContextFactory(t *testing.T) {
	h := NewHandler(newRules(t), WithContextFactory(func(r *http.Request, body map[string]any) (domain.Context, error) {
		return domain.Context{"data": map[string]any{"name": r.Header.Get("X-User")}}, nil
	}))

	req := httptest.NewRequest("POST", "/rules/echo", nil)
	req.Header.Set("X-User", "grace")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[map[string]any](t, w)
	assert.Equal(t, "hello grace", result["greeting"])
	assert.NotContains(t, result, "request")
}

func TestRuns(t *testing.T) {
	store := memory.NewStore()
	h := NewHandler(newRules(t), WithStore(store))

	ok := do(t, h, "POST", "/rules/echo", `{"name": "ada"}`)
	require.Equal(t, http.StatusOK, ok.Code)
	failed := do(t, h, "POST", "/rules/broken", "")
	require.Equal(t, http.StatusInternalServerError, failed.Code)

	w := do(t, h, "GET", "/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []string{ok.Header().Get(RunIDHeader), failed.Header().Get(RunIDHeader)}, decode[[]string](t, w))

	w = do(t, h, "GET", "/runs/"+failed.Header().Get(RunIDHeader), "")
	require.Equal(t, http.StatusOK, w.Code)
	run := decode[domain.RunRecord](t, w)
	assert.Equal(t, "broken", run.Rule)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.Trace)

	w = do(t, h, "GET", "/runs/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRuns_Disabled(t *testing.T) {
	h := NewHandler(newRules(t))
	assert.Equal(t, http.StatusNotImplemented, do(t, h, "GET", "/runs", "").Code)
	assert.Equal(t, http.StatusNotImplemented, do(t, h, "GET", "/runs/x", "").Code)
}

func TestListRules(t *testing.T) {
	w := do(t, NewHandler(newRules(t)), "GET", "/rules", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"broken", "echo"}, decode[[]string](t, w))
}

func TestDebug(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rules := newRules(t)
	h := NewHandler(rules, WithDebug(logger))

	w := do(t, h, "POST", "/rules/echo", `{"name": "ada"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, logs.String(), `"msg":"start execute"`)
	assert.Contains(t, logs.String(), `"logger":"http"`)
	assert.Contains(t, logs.String(), `"run":"`+w.Header().Get(RunIDHeader)+`"`)

	// The subscriber is gone once the request is done.
	logs.Reset()
	p, err := rules.Get("echo")
	require.NoError(t, err)
	_, err = p.Execute(t.Context(), domain.Context{"data": map[string]any{"name": "x"}})
	require.NoError(t, err)
	assert.Empty(t, logs.String())
}

func TestOpenAPI(t *testing.T) {
	doc, err := Spec()
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/rules/{id}"))

	h := NewHandler(newRules(t))
	w := do(t, h, "GET", "/openapi.yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "operationId: executeRule")

	info := decode[map[string]string](t, do(t, h, "GET", "/info", ""))
	assert.Equal(t, doc.Info.Version, info["api_version"])

	w = do(t, h, "OPTIONS", "/rules/echo", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), RunIDHeader)
}
