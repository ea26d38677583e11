// Package patch is the HTTP side of the stack: the auth-login endpoint
// the client hits before any socket connection, the shard list, and the
// update-check endpoints the launcher polls.
package patch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/drazisil/mcos-sub001/internal/config"
	"github.com/drazisil/mcos-sub001/internal/db"
)

// Service serves the HTTP endpoints on the patch port.
type Service struct {
	cfg      config.Server
	users    db.UserRepository
	sessions db.SessionRepository
	engine   *gin.Engine
}

// NewService builds the gin engine with all routes registered.
func NewService(cfg config.Server, users db.UserRepository, sessions db.SessionRepository) *Service {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLog())

	s := &Service{cfg: cfg, users: users, sessions: sessions, engine: engine}

	engine.GET("/AuthLogin", s.authLogin)
	engine.GET("/ShardList/", s.shardList)

	// Launcher update checks. The client only looks at the status code
	// and a tiny fixed body.
	updates := engine.Group("/games/EA_Seattle/MotorCity")
	updates.GET("/UpdateInfo", s.castanetReply)
	updates.GET("/NPS", s.castanetReply)
	updates.GET("/MCO", s.castanetReply)

	return s
}

// Handler exposes the router for tests.
func (s *Service) Handler() http.Handler { return s.engine }

// Run serves HTTP until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.PatchPort),
		Handler:      s.engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("patch service listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// authLogin validates username/password and hands back the ticket the
// client presents over the login socket as its context id. The response
// format is the legacy key=value body, not JSON.
func (s *Service) authLogin(c *gin.Context) {
	username := c.Query("username")
	password := c.Query("password")

	user, err := s.users.FindUserByCredentials(c.Request.Context(), username, password)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			slog.Warn("auth login refused", "username", username, "remote", c.ClientIP())
			c.String(http.StatusOK,
				"reasoncode=INV-100\nreasontext=Opps!\nreasonurl=https://winehq.com")
			return
		}
		slog.Error("auth login lookup failed", "username", username, "error", err)
		c.String(http.StatusInternalServerError, "reasoncode=INV-200\nreasontext=Server error\nreasonurl=")
		return
	}

	ticket := newTicket(user.CustomerID)
	if err := s.sessions.UpsertSession(c.Request.Context(), ticket, user.CustomerID, 0); err != nil {
		slog.Error("auth login session store failed", "customer", user.CustomerID, "error", err)
		c.String(http.StatusInternalServerError, "reasoncode=INV-200\nreasontext=Server error\nreasonurl=")
		return
	}

	slog.Info("auth login issued", "customer", user.CustomerID, "remote", c.ClientIP())
	c.String(http.StatusOK, "Valid=TRUE\nTicket=%s", ticket)
}

// shardList renders the ini-style shard roster. Every socket port points
// at the external host from the config.
func (s *Service) shardList(c *gin.Context) {
	var b strings.Builder
	for _, shard := range s.cfg.Shards {
		fmt.Fprintf(&b, "[%s]\n", shard.Name)
		fmt.Fprintf(&b, "\tDescription=%s\n", shard.Description)
		fmt.Fprintf(&b, "\tShardId=%d\n", shard.ID)
		fmt.Fprintf(&b, "\tLoginServerIP=%s\n", s.cfg.ExternalHost)
		fmt.Fprintf(&b, "\tLoginServerPort=%d\n", s.cfg.LoginPort)
		fmt.Fprintf(&b, "\tLobbyServerIP=%s\n", s.cfg.ExternalHost)
		fmt.Fprintf(&b, "\tLobbyServerPort=%d\n", s.cfg.LobbyPort)
		fmt.Fprintf(&b, "\tMCOTSServerIP=%s\n", s.cfg.ExternalHost)
		fmt.Fprintf(&b, "\tStatusId=0\n")
		fmt.Fprintf(&b, "\tStatus_Reason=\n")
		fmt.Fprintf(&b, "\tServerGroup_Name=Group-1\n")
		fmt.Fprintf(&b, "\tPopulation=%d\n", shard.Population)
		fmt.Fprintf(&b, "\tMaxPersonasPerUser=%d\n", shard.MaxPersonas)
		fmt.Fprintf(&b, "\tDiagnosticServerHost=%s\n", s.cfg.ExternalHost)
		fmt.Fprintf(&b, "\tDiagnosticServerPort=80\n")
	}
	c.String(http.StatusOK, b.String())
}

// castanetReply answers the launcher's update probes with an empty
// castanet response so the client skips patching.
func (s *Service) castanetReply(c *gin.Context) {
	c.Header("Content-Type", "application/octet-stream")
	c.String(http.StatusOK, "")
}

// newTicket derives a stable-length hex ticket. The value only needs to
// be unguessable for the lifetime of one login handshake.
func newTicket(customerID uint32) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d", customerID, time.Now().UnixNano())))
	return hex.EncodeToString(sum[:16])
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
