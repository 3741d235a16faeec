package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	platformerrors "github.com/louisbranch/tablesync/internal/platform/errors"
	"github.com/louisbranch/tablesync/internal/platform/errors/i18n"
	"github.com/louisbranch/tablesync/internal/platform/timeouts"
	"github.com/louisbranch/tablesync/internal/services/table/domain/movement"
	"github.com/louisbranch/tablesync/internal/services/table/domain/state"
)

// StateSource exposes the latest client state.
type StateSource interface {
	State() state.GameState
}

// Inspector serves a read-only JSON view of the client state.
type Inspector struct {
	addr    string
	source  StateSource
	catalog *i18n.Catalog
}

// NewInspector builds an inspector. Error text is rendered with catalog.
func NewInspector(addr string, source StateSource, catalog *i18n.Catalog) *Inspector {
	if catalog == nil {
		catalog = i18n.GetCatalog("")
	}
	return &Inspector{addr: addr, source: source, catalog: catalog}
}

// Handler returns the inspector routes.
func (i *Inspector) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(newStateView(i.source.State(), i.catalog)); err != nil {
			log.Printf("inspect: encode state err=%v", err)
		}
	})
	return r
}

// ListenAndServe serves until ctx ends.
func (i *Inspector) ListenAndServe(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	listener, err := net.Listen("tcp", i.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", i.addr, err)
	}
	httpServer := &http.Server{
		Handler:           i.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("inspect: listening addr=%s", listener.Addr())
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown inspector: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve inspector: %w", err)
	}
}

type stateView struct {
	Phase  string       `json:"phase"`
	User   string       `json:"user"`
	Admin  bool         `json:"admin"`
	Error  *errorView   `json:"error,omitempty"`
	Map    *mapView     `json:"map,omitempty"`
	Roster []rosterView `json:"roster,omitempty"`
	Log    []string     `json:"log,omitempty"`
}

type errorView struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type mapView struct {
	MapID          string          `json:"mapId"`
	Image          string          `json:"image,omitempty"`
	Scale          float64         `json:"scale"`
	Turn           string          `json:"turn,omitempty"`
	MyTurn         bool            `json:"myTurn"`
	RemainingSpeed float64         `json:"remainingSpeed"`
	Ruler          bool            `json:"rulerMode"`
	Ping           bool            `json:"pingMode"`
	Sprint         bool            `json:"sprint"`
	GMView         bool            `json:"gmView"`
	Selected       string          `json:"selected,omitempty"`
	Preview        *pathView       `json:"preview,omitempty"`
	Measure        *pathView       `json:"ruler,omitempty"`
	Characters     []characterView `json:"characters"`
	Pings          []pointView     `json:"pings,omitempty"`
	Banner         *errorView      `json:"banner,omitempty"`
}

type characterView struct {
	CMID  string  `json:"cmId"`
	ID    string  `json:"characterId"`
	Owner string  `json:"owner,omitempty"`
	Name  string  `json:"name"`
	Color string  `json:"color,omitempty"`
	Speed float64 `json:"speed"`
	X     int     `json:"x"`
	Y     int     `json:"y"`
}

type rosterView struct {
	CMID  string `json:"cmId"`
	Name  string `json:"name"`
	Label string `json:"label"`
	Turn  bool   `json:"turn,omitempty"`
}

type pointView struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type pathView struct {
	Points   []pointView `json:"points"`
	Distance float64     `json:"distance"`
	Stop     *pointView  `json:"stop,omitempty"`
}

func newStateView(s state.GameState, catalog *i18n.Catalog) stateView {
	view := stateView{
		Phase: s.Phase.String(),
		User:  s.Viewer.User,
		Admin: s.Viewer.Admin,
		Error: newErrorView(s.Err, catalog),
	}
	if s.Phase != state.PhaseActive {
		return view
	}

	m := s.Map
	mv := &mapView{
		MapID:          m.MapID,
		Image:          m.ImageRef,
		Scale:          m.Scale,
		Turn:           m.TurnCMID,
		MyTurn:         m.MyTurn,
		RemainingSpeed: m.RemainingSpeed,
		Ruler:          m.Toggles.Ruler,
		Ping:           m.Toggles.Ping,
		Sprint:         m.Toggles.Sprint,
		GMView:         m.Toggles.GMView,
		Selected:       m.Selected,
		Characters:     make([]characterView, 0, len(m.Characters)),
		Banner:         newErrorView(m.Banner, catalog),
	}
	if m.Preview.Started() {
		mv.Preview = newPathView(m.Preview.Reachable, m.Preview.TotalDistance, m.Preview.UnreachableStop)
	}
	if m.Ruler.Started() {
		mv.Measure = newPathView(m.Ruler.Reachable, m.Ruler.TotalDistance, m.Ruler.UnreachableStop)
	}
	for _, c := range m.Characters {
		mv.Characters = append(mv.Characters, characterView{
			CMID: c.CMID, ID: c.ID, Owner: c.Owner, Name: c.Name,
			Color: c.Color, Speed: c.Speed, X: c.X, Y: c.Y,
		})
	}
	for _, p := range m.Pings {
		mv.Pings = append(mv.Pings, pointView{X: p.X, Y: p.Y})
	}
	view.Map = mv

	for _, r := range s.HUD.Roster {
		view.Roster = append(view.Roster, rosterView{CMID: r.CMID, Name: r.Name, Label: r.Label, Turn: r.Turn})
	}
	for _, entry := range s.HUD.Log {
		view.Log = append(view.Log, entry.Text)
	}
	return view
}

func newPathView(points []movement.Point, distance float64, stop *movement.Point) *pathView {
	view := &pathView{Points: make([]pointView, 0, len(points)), Distance: distance}
	for _, p := range points {
		view.Points = append(view.Points, newPointView(p))
	}
	if stop != nil {
		s := newPointView(*stop)
		view.Stop = &s
	}
	return view
}

func newPointView(p movement.Point) pointView {
	x, y := p.Pixel()
	return pointView{X: x, Y: y}
}

func newErrorView(err *platformerrors.Error, catalog *i18n.Catalog) *errorView {
	if err == nil {
		return nil
	}
	return &errorView{
		Kind:    string(err.Kind),
		Code:    string(err.Code),
		Message: catalog.Format(err.MessageKey()),
	}
}
