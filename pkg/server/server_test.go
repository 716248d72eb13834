package server

import (
	"html"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/export"
	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/testutil"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, *model.Table) {
	t.Helper()
	tbl := testutil.NewDefault().Table(80)
	opts := dashboard.DefaultOptions()
	opts.Speed = 0
	s := New(tbl, "abc123", "survey.csv", Options{
		Dashboard:     opts,
		FrameInterval: 10 * time.Millisecond,
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts, tbl
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPageHasMountsAndSocket(t *testing.T) {
	_, ts, _ := newTestServer(t)
	resp := get(t, ts.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range dashboard.Mounts {
		if doc.Find("#"+id+" .surface svg").Length() != 1 {
			t.Errorf("mount %s should hold one svg", id)
		}
	}
	if !strings.Contains(doc.Find("script").Text(), "/ws") {
		t.Error("page script should connect to /ws")
	}
}

func TestPageBasicHasNoControls(t *testing.T) {
	_, ts, _ := newTestServer(t)
	doc, err := goquery.NewDocumentFromReader(get(t, ts.URL+"/?basic=true").Body)
	if err != nil {
		t.Fatal(err)
	}
	if n := doc.Find("select").Length(); n != 0 {
		t.Errorf("basic page has %d selects", n)
	}
	if doc.Find("script").Length() != 0 {
		t.Error("basic page should not open a socket")
	}
}

func TestSVGRouteAppliesQuery(t *testing.T) {
	_, ts, tbl := newTestServer(t)
	genre := tbl.Genres()[0]
	resp := get(t, ts.URL+"/svg/sankey-diagram?sankey="+url.QueryEscape(strings.ToLower(genre)))
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `data-key="node/`+html.EscapeString(genre)+`"`) {
		t.Errorf("svg lacks node for %s", genre)
	}
	for _, other := range tbl.Genres()[1:] {
		if strings.Contains(string(body), `data-key="node/`+html.EscapeString(other)+`"`) {
			t.Errorf("filtered svg still draws %s", other)
		}
	}
}

func TestSVGRouteErrors(t *testing.T) {
	_, ts, tbl := newTestServer(t)
	genre := tbl.Genres()[0]
	typo := genre[:len(genre)-1]

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"unknown mount", "/svg/pie-chart", http.StatusNotFound, "unknown mount"},
		{"bad sort", "/svg/bar-chart?sort=random", http.StatusBadRequest, "unknown sort"},
		{"genre typo", "/svg/scatter-plot?scatter=" + url.QueryEscape(typo), http.StatusBadRequest, "did you mean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, ts.URL+tt.path)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			body, _ := io.ReadAll(resp.Body)
			if !strings.Contains(string(body), tt.body) {
				t.Errorf("body %q lacks %q", body, tt.body)
			}
		})
	}
}

func TestPNGRoute(t *testing.T) {
	_, ts, _ := newTestServer(t)
	resp := get(t, ts.URL+"/png/bar-chart")
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	g := chart.BarGeometry()
	if b := img.Bounds(); b.Dx() != int(g.Width) || b.Dy() != int(g.Height) {
		t.Errorf("png size = %v", b)
	}
}

func TestSummaryRoute(t *testing.T) {
	_, ts, tbl := newTestServer(t)
	resp := get(t, ts.URL+"/api/summary?sort=descending")
	var sum export.Summary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.DataHash != "abc123" || sum.Source != "survey.csv" {
		t.Errorf("provenance = %q %q", sum.DataHash, sum.Source)
	}
	if sum.Records != tbl.Len() {
		t.Errorf("records = %d, want %d", sum.Records, tbl.Len())
	}
	if sum.Bar.Sort != string(chart.SortDescending) {
		t.Errorf("sort = %q", sum.Bar.Sort)
	}
}

func TestGenresRoute(t *testing.T) {
	_, ts, tbl := newTestServer(t)
	var got GenresResponse
	if err := json.NewDecoder(get(t, ts.URL+"/api/genres").Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Genres) != len(tbl.Genres()) || got.Records != tbl.Len() {
		t.Errorf("genres response = %+v", got)
	}
}

func TestClientMessageEvent(t *testing.T) {
	tests := []struct {
		name    string
		msg     ClientMessage
		kind    dashboard.EventKind
		wantErr bool
	}{
		{"select", ClientMessage{Type: "select", Mount: dashboard.MountBar, Control: chart.BarControlSort, Values: []string{"ascending"}}, dashboard.EventSelect, false},
		{"pointer", ClientMessage{Type: "pointer", Mount: dashboard.MountScatter, Kind: "down", X: 10, Y: 20}, dashboard.EventPointer, false},
		{"bad pointer", ClientMessage{Type: "pointer", Kind: "wiggle"}, 0, true},
		{"bad type", ClientMessage{Type: "scroll"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := tt.msg.Event()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && ev.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", ev.Kind, tt.kind)
			}
		})
	}
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(ServerMessage) bool) ServerMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestWebsocketSession(t *testing.T) {
	s, ts, _ := newTestServer(t)
	conn := dial(t, ts)

	hello := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MessageHello })
	if hello.Session == "" {
		t.Fatal("hello without session id")
	}

	seen := map[string]bool{}
	readUntil(t, conn, func(m ServerMessage) bool {
		if m.Type == MessageFrame {
			seen[m.Mount] = true
		}
		return len(seen) == len(dashboard.Mounts)
	})

	if err := conn.WriteJSON(ClientMessage{
		Type: "select", Mount: dashboard.MountBar, Control: chart.BarControlSort, Values: []string{"descending"},
	}); err != nil {
		t.Fatal(err)
	}
	frame := readUntil(t, conn, func(m ServerMessage) bool {
		return m.Type == MessageFrame && m.Mount == dashboard.MountBar &&
			len(m.Controls) == 1 && m.Controls[0].IsSelected("descending")
	})
	if !strings.Contains(frame.SVG, "<svg") {
		t.Error("frame without svg")
	}

	if _, ok := s.Hub().Get(hello.Session); !ok {
		t.Error("session not registered with the hub")
	}
}

func TestWebsocketRejectsBadMessages(t *testing.T) {
	_, ts, _ := newTestServer(t)
	conn := dial(t, ts)
	readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MessageHello })

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(m ServerMessage) bool {
		return m.Type == MessageError && strings.Contains(m.Error, "invalid message")
	})

	if err := conn.WriteJSON(ClientMessage{Type: "pointer", Mount: "pie-chart", Kind: "move"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(m ServerMessage) bool {
		return m.Type == MessageError && strings.Contains(m.Error, "unknown mount")
	})
}

func TestSetTableAsksPagesToReload(t *testing.T) {
	s, ts, _ := newTestServer(t)
	conn := dial(t, ts)
	readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MessageHello })

	// registration is asynchronous
	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	next := testutil.NewDefault().Table(10)
	s.SetTable(next, "def456", "reloaded.csv")
	readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MessageReload })

	var got GenresResponse
	if err := json.NewDecoder(get(t, ts.URL+"/api/genres").Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Records != next.Len() {
		t.Errorf("records after reload = %d, want %d", got.Records, next.Len())
	}
}

func TestSessionUnregistersOnClose(t *testing.T) {
	s, ts, _ := newTestServer(t)
	conn := dial(t, ts)
	readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MessageHello })
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := s.Hub().Count(); n != 0 {
		t.Errorf("sessions after close = %d", n)
	}
}
