package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/bridge"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (http.Handler, *lattice.Studio) {
	t.Helper()
	studio := lattice.New(memory.NewStore(), lattice.WithIDGenerator(testutils.SequentialIDs("n")))
	t.Cleanup(func() { _ = studio.Close(context.Background()) })

	handler, err := NewHandler(studio, WithGatherer(prometheus.NewRegistry()))
	require.NoError(t, err)
	return handler, studio
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func postMessage(t *testing.T, h http.Handler, projectID string, msg bridge.Message) (int, bridge.Result) {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	w := do(t, h, http.MethodPost, "/projects/"+projectID+"/messages", "application/json", string(body))

	var result bridge.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result), w.Body.String())
	return w.Code, result
}

func TestHealthAndInfo(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "1.0.0", info["api_version"])
	assert.Equal(t, strings.TrimSpace(lattice.Version), info["version"])
}

func TestOpenAPISpec(t *testing.T) {
	doc, err := LoadSpec(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/projects/{id}/messages"))

	h, _ := newTestHandler(t)
	w := do(t, h, http.MethodGet, "/openapi.yaml", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")
}

func TestPostMessage_Commands(t *testing.T) {
	h, _ := newTestHandler(t)

	code, res := postMessage(t, h, "site", bridge.Message{Type: bridge.MsgPaletteDrop, Kind: "heading", ParentID: domain.RootID})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, res.OK)
	assert.Equal(t, "n1", res.NodeID)

	code, res = postMessage(t, h, "site", bridge.Message{Type: bridge.MsgElementTextChanged, ID: "n1", Text: "Hello"})
	require.Equal(t, http.StatusOK, code, res.Error)

	w := do(t, h, http.MethodGet, "/projects/site", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var project domain.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &project))
	tree, err := project.Document()
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	assert.Equal(t, "Hello", tree.Roots[0].Text)
}

func TestPostMessage_ErrorStatus(t *testing.T) {
	h, _ := newTestHandler(t)
	_, res := postMessage(t, h, "site", bridge.Message{Type: bridge.MsgPaletteDrop, Kind: "paragraph", ParentID: domain.RootID})
	require.True(t, res.OK)

	code, res := postMessage(t, h, "site", bridge.Message{Type: bridge.MsgElementDelete, ID: "ghost"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, bridge.CodeNotFound, res.Code)

	code, res = postMessage(t, h, "site", bridge.Message{Type: bridge.MsgElementMoveUp, ID: "n1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, bridge.CodeInvalidPosition, res.Code)

	code, _ = postMessage(t, h, "site", bridge.Message{Type: "onTeleport", ID: "n1"})
	assert.Equal(t, http.StatusBadRequest, code, "unknown message types are rejected by the API description")
}

func TestPostMessage_MalformedDocumentKeepsTree(t *testing.T) {
	h, _ := newTestHandler(t)
	_, res := postMessage(t, h, "site", bridge.Message{Type: bridge.MsgPaletteDrop, Kind: "paragraph", ParentID: domain.RootID})
	require.True(t, res.OK)

	w := do(t, h, http.MethodPost, "/projects/site/messages", "application/json",
		`{"type":"onDomUpdated","document":"{not json"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/projects/site/export?format=json", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"n1"`)
}

func TestProjectLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodPut, "/projects/landing?name=Landing", "application/json",
		`[{"id":"h","tag":"h1","text":"Title","children":[]},{"id":"p","tag":"p","text":"Body"}]`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/projects", "", "")
	assert.JSONEq(t, `["landing"]`, w.Body.String())

	w = do(t, h, http.MethodGet, "/projects/landing/export", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<title>Landing</title>")
	assert.Contains(t, w.Body.String(), "<h1>Title</h1>")

	w = do(t, h, http.MethodGet, "/projects/landing/export?format=markdown", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# Title")

	w = do(t, h, http.MethodGet, "/projects/landing/export?format=pdf", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodDelete, "/projects/landing", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/projects/landing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutProject_Malformed(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(t, h, http.MethodPut, "/projects/x", "application/json", `[{"id":"a","tag":"p"},{"id":"a","tag":"p"}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportProject(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodPost, "/projects/imported/import", "text/html",
		`<section><h2>From markup</h2><p style="color: red">text</p></section>`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/projects/imported", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var project domain.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &project))
	tree, err := project.Document()
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	assert.Equal(t, "section", tree.Roots[0].Tag)
	assert.Equal(t, "red", tree.Roots[0].Children[1].Styles["color"])
}

func TestRejectsInvalidProjectIDs(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(t, h, http.MethodGet, "/projects/bad%20id", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPalette(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(t, h, http.MethodGet, "/palette", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var templates []domain.Template
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &templates))
	kinds := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		kinds = append(kinds, tmpl.Kind)
	}
	assert.Contains(t, kinds, "heading")
	assert.Contains(t, kinds, "section")
}

func TestGetStatus(t *testing.T) {
	h, studio := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/projects/site/status", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	sess, err := studio.Open(context.Background(), "site", nil)
	require.NoError(t, err)
	defer studio.Release(context.Background(), sess)

	w = do(t, h, http.MethodGet, "/projects/site/status", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status bridge.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "site", status.ProjectID)
	assert.False(t, status.Ready)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	studio := lattice.New(memory.NewStore())
	h, err := NewHandler(studio, WithGatherer(reg))
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lattice_test_total 1")
}

func TestSubscribeEvents(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/projects/live/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				lines <- data
			}
		}
	}()
	require.Equal(t, "connected", <-lines)

	body, _ := json.Marshal(bridge.Message{Type: bridge.MsgReady})
	post, err := http.Post(srv.URL+"/projects/live/messages", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	io.Copy(io.Discard, post.Body)
	post.Body.Close()
	require.Equal(t, http.StatusOK, post.StatusCode)

	var events []Event
	timeout := time.After(5 * time.Second)
	for len(events) < 2 {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed early")
			var ev Event
			require.NoError(t, json.Unmarshal([]byte(line), &ev))
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, EventFrame, events[0].Type)
	require.NotNil(t, events[0].Frame)
	assert.Equal(t, uint64(1), events[0].Frame.Seq)
	assert.Equal(t, EventResult, events[1].Type)
	assert.True(t, events[1].Result.OK)
}

func TestWebSocket(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/projects/ws-site/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() Event {
		t.Helper()
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	require.NoError(t, conn.WriteJSON(bridge.Message{Type: bridge.MsgReady}))
	ev := read()
	require.Equal(t, EventFrame, ev.Type)
	assert.Empty(t, ev.Frame.Markup)
	assert.True(t, read().Result.OK)

	require.NoError(t, conn.WriteJSON(bridge.Message{Type: bridge.MsgPaletteDrop, Kind: "button", ParentID: domain.RootID}))
	ev = read()
	require.Equal(t, EventFrame, ev.Type)
	assert.Contains(t, ev.Frame.Markup, "Click Me")
	res := read().Result
	assert.Equal(t, "n1", res.NodeID)

	require.NoError(t, conn.WriteJSON(bridge.Message{Type: bridge.MsgElementDelete, ID: "ghost"}))
	ev = read()
	require.Equal(t, EventNotice, ev.Type)
	assert.Equal(t, domain.NoticeError, ev.Notice.Level)
	assert.Equal(t, bridge.CodeNotFound, read().Result.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	assert.Equal(t, bridge.CodeMalformed, read().Result.Code)
}

func TestWebSocket_ResultsGoToSender(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/projects/shared/ws"
	dial := func() *websocket.Conn {
		t.Helper()
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		return conn
	}
	read := func(conn *websocket.Conn) Event {
		t.Helper()
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	a := dial()
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{nope")))
	assert.Equal(t, bridge.CodeMalformed, read(a).Result.Code)

	b := dial()
	require.NoError(t, b.WriteJSON(bridge.Message{Type: bridge.MsgReady}))
	assert.Equal(t, EventFrame, read(b).Type)
	assert.Equal(t, EventResult, read(b).Type)

	require.NoError(t, a.WriteJSON(bridge.Message{Type: bridge.MsgReady}))
	assert.Equal(t, EventFrame, read(a).Type, "frames reach every client")
	assert.Equal(t, EventFrame, read(a).Type, "b's result is not sent to a")
	ev := read(a)
	require.Equal(t, EventResult, ev.Type)
	assert.True(t, ev.Result.OK)
}
