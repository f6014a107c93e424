// Package web serves a small read-only status UI for the operator:
// last-known availability per city, the current appointment date, and
// queue depth. All state mutation happens in the tracker; this surface
// only observes.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/example/visa-checker/internal/auth"
	"github.com/example/visa-checker/internal/city"
	"github.com/example/visa-checker/internal/dateutil"
	"github.com/example/visa-checker/internal/db"
	"github.com/example/visa-checker/internal/queue"
	"github.com/example/visa-checker/internal/store"
)

//go:embed templates/*.html
var fs embed.FS

type Server struct {
	Auth   *auth.Store
	Store  *store.Store
	Queue  *queue.Queue
	Cities city.List
	Log    *zap.Logger
}

type cityStatus struct {
	City  city.City
	Dates []string
}

type homeData struct {
	Title           string
	Flash           string
	AppointmentDate string
	QueueDepth      int
	Cities          []cityStatus
}

type historyData struct {
	Title   string
	City    city.City
	Records []store.AvailabilityRecord
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome)))
	mux.Handle("/history", s.Auth.RequireAuth(http.HandlerFunc(s.handleHistory)))

	return mux
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, "templates/login.html", homeData{Title: "Login"})
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	id, err := s.Auth.Authenticate(r.Context(), r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		s.render(w, "templates/login.html", homeData{Title: "Login", Flash: "Invalid username or password"})
		return
	}
	if err := s.Auth.SetSession(w, r, id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := homeData{Title: "Visa Checker", QueueDepth: s.Queue.Len()}

	current, err := s.Store.CurrentAppointmentDate(ctx)
	switch {
	case err == nil:
		data.AppointmentDate = current.Format(dateutil.Layout)
	case errors.Is(err, db.ErrNotFound):
		data.AppointmentDate = "unknown"
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for _, c := range s.Cities {
		known, err := s.Store.LastKnownDates(ctx, c.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		cs := cityStatus{City: c}
		for d := range known {
			cs.Dates = append(cs.Dates, d)
		}
		sort.Strings(cs.Dates)
		data.Cities = append(data.Cities, cs)
	}

	s.render(w, "templates/home.html", data)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("city")
	c, ok := s.Cities.ByID(id)
	if !ok {
		http.Error(w, "unknown city", http.StatusNotFound)
		return
	}
	records, err := s.Store.History(r.Context(), c.ID, 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/history.html", historyData{Title: c.Name + " history", City: c, Records: records})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	t, err := template.ParseFS(fs, "templates/layout.html", name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		s.Log.Warn("template render failed", zap.String("template", name), zap.Error(err))
	}
}

// Start runs the HTTP server until ctx is cancelled.
func Start(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}
