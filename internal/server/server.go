// Package server implements evlogd's TCP front door: one goroutine per
// connection, authenticating against a shared token and dispatching
// Publish/Subscribe requests against a Store. Grounded on the teacher's
// internal/server.Server (Start/graceful-shutdown shape, inboxLimiter's
// per-origin concurrency-cap idea — adapted here to a flat per-connection
// cap via golang.org/x/net/netutil.LimitListener) and
// internal/nostr/relay.go's Publisher (rate.Limiter-guarded send path,
// adapted from per-relay outbound publishing to per-connection inbound
// Publish throttling).
package server

import (
	"bufio"
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/klppl/evlogd/internal/audit"
	"github.com/klppl/evlogd/internal/config"
	"github.com/klppl/evlogd/internal/store"
)

// Server is evlogd's TCP + admin HTTP front door.
type Server struct {
	cfg       config.ServerConfig
	store     *store.Store
	audit     *audit.Log
	logs      *LogBroadcaster
	tokenHash []byte // bcrypt hash of cfg.AuthToken; nil when AuthToken is empty (auth disabled)
	admin     *chi.Mux
	startedAt time.Time

	publishRate  rate.Limit
	publishBurst int
}

// New builds a Server. audit and logs may both be nil (admin actions simply
// aren't recorded; /admin/logs returns an empty list). If cfg.AuthToken is
// empty, Connect never fails authentication — matching the teacher's
// narrower WEB_ADMIN-unset-disables-admin-UI posture rather than failing
// closed on a missing config value.
func New(cfg config.ServerConfig, st *store.Store, auditLog *audit.Log, logs *LogBroadcaster) *Server {
	s := &Server{
		cfg:          cfg,
		store:        st,
		audit:        auditLog,
		logs:         logs,
		startedAt:    time.Now(),
		publishRate:  rate.Limit(cfg.PublishRatePerSecond),
		publishBurst: cfg.PublishRateBurst,
	}
	if cfg.AuthToken != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AuthToken), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("failed to hash auth token, authentication will reject everything", "error", err)
		} else {
			s.tokenHash = hash
		}
	}
	s.admin = s.buildAdminRouter()
	return s
}

// authenticate reports whether token is the configured shared secret. A
// constant-time bcrypt compare either way, mirroring the teacher's
// subtle.ConstantTimeCompare admin-auth posture but against a hash rather
// than a compile-time-known-length plaintext.
func (s *Server) authenticate(token string) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword(s.tokenHash, []byte(token)) == nil
}

// Run accepts TCP connections on cfg.Addr, capped at cfg.MaxConnections
// concurrently, until ctx is cancelled. It blocks until the listener is
// closed.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	ln = netutil.LimitListener(ln, s.cfg.MaxConnections)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("evlogd TCP server listening", "addr", s.cfg.Addr, "max_connections", s.cfg.MaxConnections)

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("accept failed", "error", err)
				continue
			}
		}
		go s.handleConn(nc)
	}
}

// RunAdmin serves the admin HTTP API on addr until ctx is cancelled.
func (s *Server) RunAdmin(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.admin,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutCtx); err != nil {
			slog.Error("admin server shutdown error", "error", err)
		}
	}()

	slog.Info("evlogd admin HTTP server listening", "addr", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleConn(nc net.Conn) {
	connID := uuid.NewString()
	log := slog.With("conn_id", connID, "remote_addr", nc.RemoteAddr().String())
	log.Info("connection accepted")
	defer func() {
		nc.Close()
		log.Info("connection closed")
	}()

	c := &conn{
		id:      connID,
		nc:      nc,
		w:       bufio.NewWriter(nc),
		srv:     s,
		limiter: rate.NewLimiter(s.publishRate, s.publishBurst),
		log:     log,
	}
	c.serve()
}

func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		_, pass, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.AuthToken)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="evlogd admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) buildAdminRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.adminAuth)
		r.Get("/collections", s.handleListCollections)
		r.Post("/collections/{name}/truncate", s.handleTruncateCollection)
		r.Delete("/collections/{name}", s.handleDropCollection)
		r.Get("/audit", s.handleAuditLog)
		r.Get("/logs", s.handleRecentLogs)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}
