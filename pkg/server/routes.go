package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/export"
	"github.com/vanderheijden86/mxmh/pkg/model"
)

// registerRoutes wires every route onto r.
func (s *Server) registerRoutes(r *mux.Router) {
	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/svg/{mount}", s.handleSVG).Methods(http.MethodGet)
	r.HandleFunc("/png/{mount}", s.handlePNG).Methods(http.MethodGet)
	r.HandleFunc("/api/summary", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/genres", s.handleGenres).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
}

// queryError is a bad filter in a snapshot URL.
type queryError struct {
	param, value, suggestion string
}

func (e *queryError) Error() string {
	msg := fmt.Sprintf("unknown %s %q", e.param, e.value)
	if e.suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.suggestion)
	}
	return msg
}

// snapshotDashboard binds a dashboard for one request and applies the
// selections named in the query: sort, scatter (one genre) and sankey (any
// number of genres). It returns settled.
func (s *Server) snapshotDashboard(r *http.Request) (*dashboard.Dashboard, error) {
	t, _, _ := s.data()
	q := r.URL.Query()
	opts := s.opts.Dashboard
	opts.OnUpdate = nil
	if basic, err := strconv.ParseBool(q.Get("basic")); err == nil {
		opts.Basic = basic
	}
	d, err := dashboard.Bind(dashboard.AllMounts(), t, opts)
	if err != nil {
		return nil, err
	}

	var events []dashboard.Event
	if v := q.Get("sort"); v != "" {
		if _, err := chart.ParseSortMode(v); err != nil {
			return nil, &queryError{param: "sort", value: v}
		}
		events = append(events, dashboard.Select(dashboard.MountBar, chart.BarControlSort, v))
	}
	if v := q.Get("scatter"); v != "" {
		g, err := resolve(t, "scatter", v)
		if err != nil {
			return nil, err
		}
		events = append(events, dashboard.Select(dashboard.MountScatter, chart.ScatterControlGenre, g))
	}
	if vs := q["sankey"]; len(vs) > 0 {
		var genres []string
		for _, v := range vs {
			g, err := resolve(t, "sankey", v)
			if err != nil {
				return nil, err
			}
			genres = append(genres, g)
		}
		events = append(events, dashboard.Select(dashboard.MountSankey, chart.SankeyControlGenre, genres...))
	}
	for _, ev := range events {
		if _, err := d.Dispatch(ev); err != nil {
			return nil, err
		}
	}
	d.Settle()
	return d, nil
}

func resolve(t *model.Table, param, value string) (string, error) {
	g, suggestion, ok := t.ResolveGenre(value)
	if !ok {
		return "", &queryError{param: param, value: value, suggestion: suggestion}
	}
	return g, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var qe *queryError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &qe):
		status = http.StatusBadRequest
	case errors.Is(err, dashboard.ErrUnknownMount):
		status = http.StatusNotFound
	}
	log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	http.Error(w, err.Error(), status)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	d, err := s.snapshotDashboard(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	frames, err := export.Frames(d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	opts := export.PageOptions{Title: s.opts.Title, Basic: d.Basic()}
	if !d.Basic() {
		opts.Controls = export.ControlsOf(d)
		opts.Socket = "/ws"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := export.WritePage(w, frames, opts); err != nil {
		log.Printf("Error writing page: %v", err)
	}
}

func (s *Server) frame(w http.ResponseWriter, r *http.Request) (*dashboard.Dashboard, string, bool) {
	mount := mux.Vars(r)["mount"]
	d, err := s.snapshotDashboard(r)
	if err != nil {
		s.fail(w, r, err)
		return nil, "", false
	}
	if _, ok := d.View(mount); !ok {
		s.fail(w, r, fmt.Errorf("mount %q: %w", mount, dashboard.ErrUnknownMount))
		return nil, "", false
	}
	return d, mount, true
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	d, mount, ok := s.frame(w, r)
	if !ok {
		return
	}
	f, err := d.Frame(mount, s.opts.Dashboard.Clock())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := export.RenderSVG(w, f, mount+"-svg"); err != nil {
		log.Printf("Error rendering %s: %v", mount, err)
	}
}

func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	d, mount, ok := s.frame(w, r)
	if !ok {
		return
	}
	f, err := d.Frame(mount, s.opts.Dashboard.Clock())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := export.RenderPNG(w, f); err != nil {
		log.Printf("Error rendering %s: %v", mount, err)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	d, err := s.snapshotDashboard(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	_, hash, source := s.data()
	w.Header().Set("Content-Type", "application/json")
	if err := export.WriteSummary(w, export.BuildSummary(d, hash, source)); err != nil {
		log.Printf("Error writing summary: %v", err)
	}
}

// GenresResponse lists the genre universe in first-seen order.
type GenresResponse struct {
	Genres  []string `json:"genres"`
	Records int      `json:"records"`
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	t, _, _ := s.data()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GenresResponse{Genres: t.Genres(), Records: t.Len()})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	t, _, _ := s.data()
	opts := s.opts.Dashboard
	opts.Basic = false
	sess, err := newSession(s.baseCtx, conn, t, opts)
	if err != nil {
		log.Printf("WebSocket session error: %v", err)
		conn.Close()
		return
	}
	log.Printf("Session %s connected from %s", sess.ID, r.RemoteAddr)
	sess.serve(s.hub, s.opts.FrameInterval)
	log.Printf("Session %s closed", sess.ID)
}
