package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labelforge-io/labelforge/internal/api/middleware"
	"github.com/labelforge-io/labelforge/internal/product"
	"github.com/labelforge-io/labelforge/internal/session"
)

const (
	// SessionHeader carries the session identity. Clients echo it back on
	// subsequent requests; the server always sets it on responses.
	SessionHeader = "X-Session-ID"

	// sessionCookie is the fallback identity source for browser clients.
	sessionCookie = "labelforge_session"
)

// resolveSessionID picks the session identity for a request: the
// X-Session-ID header, else the labelforge_session cookie, else a fresh
// UUID. The resolved ID is always echoed on the response header so clients
// without one can adopt it.
func (s *Server) resolveSessionID(w http.ResponseWriter, r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))

	if id == "" {
		if cookie, err := r.Cookie(sessionCookie); err == nil {
			id = strings.TrimSpace(cookie.Value)
		}
	}

	if id == "" {
		id = session.NewID()
	}

	w.Header().Set(SessionHeader, id)

	return id
}

// sessionState resolves the request's session and loads its selection state.
func (s *Server) sessionState(w http.ResponseWriter, r *http.Request) (string, *session.State, *APIError) {
	id := s.resolveSessionID(w, r)

	state, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("Failed to load session state",
			slog.String("session_id", id),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)

		return "", nil, InternalServerError()
	}

	return id, state, nil
}

// saveSession persists mutated selection state back to the store.
func (s *Server) saveSession(r *http.Request, id string, state *session.State) *APIError {
	if err := s.sessions.Save(r.Context(), id, state); err != nil {
		s.logger.Error("Failed to save session state",
			slog.String("session_id", id),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)

		return InternalServerError()
	}

	return nil
}

// tagUniverse returns every product name the system currently knows: the
// loaded table's rows first, then catalog names not already present,
// deduplicated case-folded. Catalog read failures degrade to the table
// alone with a logged warning.
func (s *Server) tagUniverse(r *http.Request) []string {
	names := s.table.TagNames()

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		seen[product.FoldName(name)] = struct{}{}
	}

	if s.catalog != nil {
		rows, err := s.catalog.AllProducts(r.Context())
		if err != nil {
			s.logger.Warn("Catalog unavailable for tag universe, serving table only",
				slog.String("error", err.Error()),
			)
		} else {
			for i := range rows {
				key := product.FoldName(rows[i].Name)
				if _, ok := seen[key]; ok {
					continue
				}

				seen[key] = struct{}{}

				names = append(names, rows[i].Name)
			}
		}
	}

	return names
}

// modeUniverse narrows the universe to the session's filter mode: in
// json_matched mode only names produced by the last JSON match are served.
func modeUniverse(state *session.State, universe []string) []string {
	if state.Mode() != session.FilterModeJSONMatched {
		return universe
	}

	matched := make(map[string]struct{}, len(state.JSONMatched))
	for _, name := range state.JSONMatched {
		matched[product.FoldName(name)] = struct{}{}
	}

	narrowed := make([]string, 0, len(matched))

	for _, name := range universe {
		if _, ok := matched[product.FoldName(name)]; ok {
			narrowed = append(narrowed, name)
		}
	}

	return narrowed
}


