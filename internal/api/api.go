package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc/codes"

	"github.com/victornm/turntally/internal/catalog"
	"github.com/victornm/turntally/internal/domain"
	"github.com/victornm/turntally/internal/errors"
	"github.com/victornm/turntally/internal/event"
	"github.com/victornm/turntally/internal/leaderboard"
	"github.com/victornm/turntally/internal/session"
	"github.com/victornm/turntally/internal/stats"
)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Catalog      *catalog.Service
	Session      *session.Service
	Stats        *stats.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

// Redis publishes notifications. A nil Redis disables them.
type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	cs  *catalog.Service
	ss  *session.Service
	sts *stats.Service
	ls  *leaderboard.Service

	hub *Hub

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		cs:     c.Catalog,
		ss:     c.Session,
		sts:    c.Stats,
		ls:     c.Leaderboard,
		hub:    NewHub(),
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	a.routes(c.Router)

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})
	c.EventBus.Subscribe(domain.EventNameSessionEnded, func(ctx context.Context, e event.Event) error {
		return a.PublishSessionEnded(ctx, e.(domain.EventSessionEnded))
	})
	c.EventBus.Subscribe(domain.EventNameTimerTicked, func(ctx context.Context, e event.Event) error {
		return a.BroadcastTick(ctx, e.(domain.EventTimerTicked))
	})
	c.EventBus.Subscribe(domain.EventNameTurnRecorded, func(ctx context.Context, e event.Event) error {
		return a.BroadcastTurn(ctx, e.(domain.EventTurnRecorded))
	})

	return a
}

func (a *API) routes(r gin.IRouter) {
	v1 := r.Group("/v1")

	v1.GET("/games", a.ListGames)
	v1.POST("/games", a.AddGame)
	v1.GET("/players", a.ListPlayers)
	v1.POST("/players", a.AddPlayer)

	s := v1.Group("/session")
	s.POST("", a.CreateSession)
	s.GET("", a.GetSession)
	s.DELETE("", a.AbandonSession)
	s.POST("/start", a.StartSession)
	s.POST("/pause", a.PauseSession)
	s.POST("/resume", a.ResumeSession)
	s.POST("/next", a.NextTurn)
	s.POST("/scrap", a.ScrapTurn)
	s.POST("/end", a.EndSession)
	s.PUT("/players", a.SetPlayers)
	s.POST("/notes", a.AddNote)
	s.GET("/live", a.Live)

	v1.GET("/sessions", a.ListSessions)
	v1.DELETE("/sessions/:id", a.DeleteSession)

	v1.GET("/stats/players", a.PlayerStats)
	v1.GET("/stats/games", a.GameStats)
	v1.GET("/stats/overview", a.Overview)

	v1.GET("/leaderboards", a.GetLeaderboards)
	v1.GET("/leaderboards/:category", a.GetLeaderboard)

	v1.GET("/quickstart", a.QuickStart)
}

// Close disconnects live clients.
func (a *API) Close() {
	a.hub.Close()
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *API) fail(c *gin.Context, err error) {
	e := errors.Convert(err)

	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), errorResponse{
		Code:    codes.Code(e.Code).String(),
		Message: e.Message,
	})
}

func (a *API) badRequest(c *gin.Context, err error) {
	a.fail(c, errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef("invalid request: %v", err),
		errors.WithCause(err),
	))
}

func (a *API) ok(c *gin.Context, v any) {
	c.JSON(http.StatusOK, v)
}
