package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookclub/internal/api"
	"bookclub/internal/bookclub"
	"bookclub/internal/catalog"
	"bookclub/internal/config"
	"bookclub/internal/interaction"
	"bookclub/internal/logging"
	"bookclub/internal/metrics"
	"bookclub/internal/services"
	"bookclub/internal/store"
	"bookclub/internal/validation"
)

const (
	readerHeader = "X-Reader-ID"
	maxBodyBytes = 1 << 20
	maxPageLimit = 100
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	svc     *bookclub.Services
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		svc:    d.svc,
	}
	srv.handler = srv.routes(cfg)
	return srv
}

func (s *apiServer) routes(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestContext)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.API.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", readerHeader},
		MaxAge:         300,
	}))
	r.Use(s.instrument)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(cfg.Paths.APIToken))

			r.Get("/status", s.handleStatus)
			r.Post("/notify/test", s.handleNotifyTest)

			r.Route("/books", func(r chi.Router) {
				r.Get("/", s.handleListBooks)
				r.Post("/", s.handleAddBook)
				r.Get("/almost-ready", s.handleAlmostReady)
				r.Get("/{bookID}", s.handleGetBook)
			})

			r.Route("/readers", func(r chi.Router) {
				r.Post("/", s.handleRegisterReader)
				r.Get("/{readerID}", s.handleGetReader)
				r.Get("/{readerID}/stats", s.handleReaderStats)
			})

			r.Route("/queue", func(r chi.Router) {
				r.Use(s.readerMiddleware)
				r.Get("/", s.handleListQueue)
				r.Post("/", s.handleEnqueue)
				r.Delete("/{bookID}", s.handleDequeue)
			})

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", s.handleListGroups)
				r.Post("/", s.handleCreateGroup)
				r.Get("/reader/{readerID}", s.handleReaderGroups)
				r.With(s.readerMiddleware).Get("/current", s.handleCurrentGroup)

				r.Route("/{groupID}", func(r chi.Router) {
					r.Post("/activate", s.handleActivate)
					r.Post("/complete", s.handleComplete)
					r.Post("/disband", s.handleDisband)
					r.Post("/members", s.handleAddMember)
					r.Delete("/members/{readerID}", s.handleRemoveMember)

					r.Group(func(r chi.Router) {
						r.Use(s.readerMiddleware)
						r.Get("/", s.handleGetGroup)
						r.Post("/messages", s.handlePostMessage)
						r.Get("/messages", s.handleListMessages)
						r.Put("/progress", s.handleUpdateProgress)
						r.Get("/progress", s.handleListProgress)
						r.Post("/leave", s.handleLeave)
						r.Put("/discussions/{week}/complete", s.handleCompleteDiscussion)
					})
				})
			})
		})
	})

	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api server disabled; no bind address configured")
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

// requestContext copies chi's request id into the services context so log
// lines carry it as correlation_id.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(services.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.RecordAPIRequest(r.Method, route, status, elapsed)
		s.logger.Debug("api request",
			logging.String("method", r.Method),
			logging.String("route", route),
			logging.Int("status", status),
			logging.Duration("elapsed", elapsed),
		)
	})
}

// Responses

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := api.StatusForError(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_error",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	writeJSON(w, status, api.NewErrorResponse(err))
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return api.BadRequest("invalid request body: " + err.Error())
	}
	return validation.Struct(dst)
}

// Request parsing helpers

func readerID(r *http.Request) string {
	id, _ := services.ReaderIDFromContext(r.Context())
	return id
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, api.BadRequest(key + " must be a non-negative integer")
	}
	return n, nil
}

// pagination reads page (1-based) and limit, clamping limit to maxPageLimit.
func pagination(r *http.Request, defaultLimit int) (page, limit int, err error) {
	if page, err = queryInt(r, "page", 1); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(r, "limit", defaultLimit); err != nil {
		return 0, 0, err
	}
	page = max(page, 1)
	if limit <= 0 {
		limit = defaultLimit
	}
	return page, min(limit, maxPageLimit), nil
}

// System

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{Status: "ok", Timestamp: api.FormatTime(time.Now())}
	if err := s.svc.Store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check ping failed", logging.Error(err))
		resp.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	groups := make(map[string]int, len(status.Groups))
	for st, n := range status.Groups {
		groups[string(st)] = n
	}
	writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Bind:         status.Bind,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		StartedAt:    api.FormatTime(status.StartedAt),
		Groups:       groups,
		Migrations:   api.FromMigrations(status.Migrations),
	})
}

func (s *apiServer) handleNotifyTest(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.logger.Warn("test notification failed", logging.Error(err))
		message = message + ": " + err.Error()
	}
	writeJSON(w, http.StatusOK, api.NotifyTestResponse{Sent: sent, Message: message})
}

// Books

func (s *apiServer) handleListBooks(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pagination(r, s.svc.Catalog.PageSize())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sort := store.BookSort(strings.TrimSpace(r.URL.Query().Get("sort")))
	switch sort {
	case "", store.SortByDemand, store.SortByReads, store.SortByNewest, store.SortByTitle:
	default:
		s.writeError(w, r, api.BadRequest("unknown sort "+strconv.Quote(string(sort))))
		return
	}
	books, total, err := s.svc.Catalog.ListBooks(r.Context(), store.BookFilter{
		Genre:  r.URL.Query().Get("genre"),
		Sort:   sort,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.BookListResponse{
		Books:       api.FromBooks(books),
		TotalBooks:  total,
		CurrentPage: page,
		TotalPages:  api.TotalPages(total, limit),
	})
}

func (s *apiServer) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req api.AddBookRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	book, err := s.svc.Catalog.AddBook(r.Context(), catalog.NewBook{
		Title:     req.Title,
		Author:    req.Author,
		Genre:     req.Genre,
		PageCount: req.PageCount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromBook(book))
}

func (s *apiServer) handleAlmostReady(w http.ResponseWriter, r *http.Request) {
	books, err := s.svc.Catalog.AlmostReady(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AlmostReadyResponse{Books: api.FromBooks(books)})
}

func (s *apiServer) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.svc.Catalog.Book(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromBook(book))
}

// Readers

func (s *apiServer) handleRegisterReader(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterReaderRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reader, err := s.svc.Catalog.RegisterReader(r.Context(), catalog.NewReader{DisplayName: req.DisplayName})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromReader(reader))
}

func (s *apiServer) handleGetReader(w http.ResponseWriter, r *http.Request) {
	profile, err := s.svc.Catalog.Reader(r.Context(), chi.URLParam(r, "readerID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromProfile(profile))
}

func (s *apiServer) handleReaderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Catalog.Stats(r.Context(), chi.URLParam(r, "readerID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromStats(stats))
}

// Queue

func (s *apiServer) handleListQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Queue.List(r.Context(), readerID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromQueue(entries))
}

func (s *apiServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.Queue.Enqueue(r.Context(), readerID(r), req.BookID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromEnqueue(result))
}

func (s *apiServer) handleDequeue(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Queue.Dequeue(r.Context(), readerID(r), chi.URLParam(r, "bookID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.DequeueResponse{Removed: result.Removed, WaitingReaders: result.Demand})
}

// Groups

func (s *apiServer) handleListGroups(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pagination(r, s.svc.Catalog.PageSize())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter := store.GroupFilter{Offset: (page - 1) * limit, Limit: limit}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := store.ParseGroupStatus(raw)
		if !ok {
			s.writeError(w, r, api.BadRequest("unknown group status "+strconv.Quote(raw)))
			return
		}
		filter.Status = status
	}
	groups, total, err := s.svc.Groups.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.GroupListResponse{
		Groups:      api.FromGroups(groups),
		Total:       total,
		CurrentPage: page,
		TotalPages:  api.TotalPages(total, limit),
	})
}

func (s *apiServer) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req api.CreateGroupRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	group, err := s.svc.Groups.CreateManual(r.Context(), req.BookID, req.ReaderIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromGroup(group))
}

func (s *apiServer) handleReaderGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.svc.Groups.ReaderGroups(r.Context(), chi.URLParam(r, "readerID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.GroupListResponse{
		Groups:      api.FromGroups(groups),
		Total:       len(groups),
		CurrentPage: 1,
		TotalPages:  api.TotalPages(len(groups), max(len(groups), 1)),
	})
}

func (s *apiServer) handleCurrentGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.svc.Groups.Current(r.Context(), readerID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := api.CurrentGroupResponse{}
	if group != nil {
		dto := api.FromGroup(group)
		resp.CurrentGroup = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetGroup shows a group to readers who have belonged to it.
func (s *apiServer) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.svc.Groups.Get(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, ok := group.Member(readerID(r)); !ok {
		s.writeError(w, r, services.Wrap(services.ErrNotMember, "api", "get group", "reader is not a member of this group", nil))
		return
	}
	writeJSON(w, http.StatusOK, api.FromGroup(group))
}

func (s *apiServer) handleActivate(w http.ResponseWriter, r *http.Request) {
	s.respondGroup(w, r, http.StatusOK)(s.svc.Groups.Activate(r.Context(), chi.URLParam(r, "groupID")))
}

func (s *apiServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.respondGroup(w, r, http.StatusOK)(s.svc.Groups.Complete(r.Context(), chi.URLParam(r, "groupID")))
}

func (s *apiServer) handleDisband(w http.ResponseWriter, r *http.Request) {
	s.respondGroup(w, r, http.StatusOK)(s.svc.Groups.Disband(r.Context(), chi.URLParam(r, "groupID")))
}

func (s *apiServer) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req api.MemberRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondGroup(w, r, http.StatusOK)(s.svc.Groups.AddMember(r.Context(), chi.URLParam(r, "groupID"), req.ReaderID))
}

func (s *apiServer) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	s.respondGroup(w, r, http.StatusOK)(s.svc.Groups.RemoveMember(r.Context(), chi.URLParam(r, "groupID"), chi.URLParam(r, "readerID")))
}

func (s *apiServer) handleLeave(w http.ResponseWriter, r *http.Request) {
	s.respondGroup(w, r, http.StatusOK)(s.svc.Groups.Leave(r.Context(), chi.URLParam(r, "groupID"), readerID(r)))
}

func (s *apiServer) handleCompleteDiscussion(w http.ResponseWriter, r *http.Request) {
	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil {
		s.writeError(w, r, api.BadRequest("week must be an integer"))
		return
	}
	s.respondGroup(w, r, http.StatusOK)(s.svc.Groups.MarkDiscussionComplete(r.Context(), chi.URLParam(r, "groupID"), week, readerID(r)))
}

// respondGroup writes the result of a group mutation.
func (s *apiServer) respondGroup(w http.ResponseWriter, r *http.Request, status int) func(*store.Group, error) {
	return func(group *store.Group, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, status, api.FromGroup(group))
	}
}

// Interaction

func (s *apiServer) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req api.PostMessageRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := s.svc.Interaction.PostMessage(r.Context(), chi.URLParam(r, "groupID"), readerID(r), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromMessage(*msg))
}

func (s *apiServer) handleListMessages(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.svc.Interaction.ListMessages(r.Context(), chi.URLParam(r, "groupID"), offset, min(limit, maxPageLimit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.MessageListResponse{
		Messages: api.FromMessages(page.Messages),
		Total:    page.Total,
		Offset:   page.Offset,
		Limit:    page.Limit,
	})
}

func (s *apiServer) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req api.ProgressRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	progress, err := s.svc.Interaction.UpdateProgress(r.Context(), chi.URLParam(r, "groupID"), readerID(r), interaction.ProgressUpdate{
		CurrentPage: req.CurrentPage,
		Percentage:  req.Percentage,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromProgress(*progress))
}

func (s *apiServer) handleListProgress(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.Interaction.Progress(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ProgressListResponse{Progress: api.FromProgressRows(rows)})
}
