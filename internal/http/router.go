package http

import (
	"net/http"
	"strings"
)

// RouterConfig wires the handlers and middleware into the API router.
// SessionGuard protects every route except login, logout and refresh; the
// outer Middleware chain (request logging) applies to all routes.
type RouterConfig struct {
	Auth         *AuthHandler
	Requests     *RequestHandler
	Users        *UserHandler
	Departments  *DepartmentHandler
	Calendar     *CalendarHandler
	SessionGuard func(http.Handler) http.Handler
	Middleware   []func(http.Handler) http.Handler
}

// NewRouter assembles the API endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	guard := func(h http.HandlerFunc) http.Handler {
		if cfg.SessionGuard == nil {
			return h
		}
		return cfg.SessionGuard(h)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Login(w, r)
		})
		mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Logout(w, r)
		})
		mux.HandleFunc("/sessions/refresh", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Refresh(w, r)
		})
	}

	if cfg.Requests != nil {
		mux.Handle("/requests", guard(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Requests.List(w, r)
			case http.MethodPost:
				cfg.Requests.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/requests/recurring", guard(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Requests.CreateRecurring(w, r)
		}))
		mux.Handle("/requests/", guard(func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/requests/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}

			id, action := rest, ""
			if idx := strings.IndexByte(rest, '/'); idx >= 0 {
				id, action = rest[:idx], rest[idx+1:]
			}
			r = r.WithContext(ContextWithRequestID(r.Context(), id))

			switch action {
			case "":
				switch r.Method {
				case http.MethodGet:
					cfg.Requests.Get(w, r)
				case http.MethodDelete:
					cfg.Requests.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodDelete)
				}
			case "approve":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Requests.Approve(w, r)
			case "reject":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Requests.Reject(w, r)
			case "cancel":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Requests.Cancel(w, r)
			default:
				http.NotFound(w, r)
			}
		}))
		mux.Handle("/availability", guard(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Requests.Availability(w, r)
		}))
	}

	if cfg.Departments != nil {
		mux.Handle("/departments", guard(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Departments.List(w, r)
			case http.MethodPost:
				cfg.Departments.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/departments/", guard(func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/departments/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}

			id, action := rest, ""
			if idx := strings.IndexByte(rest, '/'); idx >= 0 {
				id, action = rest[:idx], rest[idx+1:]
			}
			r = r.WithContext(ContextWithDepartmentID(r.Context(), id))

			switch action {
			case "":
				switch r.Method {
				case http.MethodPut:
					cfg.Departments.Update(w, r)
				case http.MethodDelete:
					cfg.Departments.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodPut, http.MethodDelete)
				}
			case "quota":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Departments.Quota(w, r)
			default:
				http.NotFound(w, r)
			}
		}))
	}

	if cfg.Users != nil {
		mux.Handle("/users", guard(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Users.List(w, r)
			case http.MethodPost:
				cfg.Users.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/users/", guard(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/users/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithUserID(r.Context(), id))
			switch r.Method {
			case http.MethodPut:
				cfg.Users.Update(w, r)
			case http.MethodDelete:
				cfg.Users.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodPut, http.MethodDelete)
			}
		}))
	}

	if cfg.Calendar != nil {
		mux.Handle("/closed-dates", guard(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Calendar.List(w, r)
			case http.MethodPost:
				cfg.Calendar.Close(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/closed-dates/", guard(func(w http.ResponseWriter, r *http.Request) {
			date := strings.TrimPrefix(r.URL.Path, "/closed-dates/")
			if date == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			r = r.WithContext(ContextWithClosedDate(r.Context(), date))
			cfg.Calendar.Reopen(w, r)
		}))
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
