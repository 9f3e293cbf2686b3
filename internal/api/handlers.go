package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/turntally/internal/catalog"
	"github.com/victornm/turntally/internal/domain"
	"github.com/victornm/turntally/internal/leaderboard"
	"github.com/victornm/turntally/internal/session"
)

type (
	AddGameRequest struct {
		Title       string `json:"title" binding:"required"`
		Avatar      string `json:"avatar"`
		Thumbnail   string `json:"thumbnail"`
		Description string `json:"description"`
	}

	AddPlayerRequest struct {
		Name   string `json:"name" binding:"required"`
		Avatar string `json:"avatar"`
	}

	CreateSessionRequest struct {
		GameID    string   `json:"gameId" binding:"required"`
		PlayerIDs []string `json:"playerIds" binding:"required"`
	}

	SetPlayersRequest struct {
		PlayerIDs []string `json:"playerIds" binding:"required"`
	}

	AddNoteRequest struct {
		Note     string `json:"note" binding:"required"`
		PlayerID string `json:"playerId"`
	}

	LeaderboardsResponse struct {
		Categories   []leaderboard.Category               `json:"categories"`
		Leaderboards map[string][]domain.LeaderboardEntry `json:"leaderboards"`
	}
)

func (a *API) ListGames(c *gin.Context) {
	games, err := a.cs.Games(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, games)
}

func (a *API) AddGame(c *gin.Context) {
	var req AddGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}

	g, err := a.cs.AddGame(c.Request.Context(), catalog.AddGameRequest{
		Title:       req.Title,
		Avatar:      req.Avatar,
		Thumbnail:   req.Thumbnail,
		Description: req.Description,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (a *API) ListPlayers(c *gin.Context) {
	players, err := a.cs.Players(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, players)
}

func (a *API) AddPlayer(c *gin.Context) {
	var req AddPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}

	p, err := a.cs.AddPlayer(c.Request.Context(), catalog.AddPlayerRequest{
		Name:   req.Name,
		Avatar: req.Avatar,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (a *API) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}

	ss, err := a.ss.Create(c.Request.Context(), session.CreateRequest{
		GameID:    req.GameID,
		PlayerIDs: req.PlayerIDs,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ss)
}

func (a *API) GetSession(c *gin.Context) {
	snap, err := a.ss.Snapshot(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, snap)
}

func (a *API) AbandonSession(c *gin.Context) {
	if err := a.ss.Abandon(c.Request.Context()); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) StartSession(c *gin.Context) {
	a.respond(c, a.ss.Start)
}

func (a *API) PauseSession(c *gin.Context) {
	a.respond(c, a.ss.Pause)
}

func (a *API) ResumeSession(c *gin.Context) {
	a.respond(c, a.ss.Resume)
}

func (a *API) EndSession(c *gin.Context) {
	a.respond(c, a.ss.End)
}

func (a *API) NextTurn(c *gin.Context) {
	ss, err := a.ss.AdvanceTurn(c.Request.Context(), true)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, ss)
}

func (a *API) ScrapTurn(c *gin.Context) {
	ss, err := a.ss.AdvanceTurn(c.Request.Context(), false)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, ss)
}

func (a *API) SetPlayers(c *gin.Context) {
	var req SetPlayersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}

	ss, err := a.ss.ApplyPlayerSet(c.Request.Context(), req.PlayerIDs)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, ss)
}

func (a *API) AddNote(c *gin.Context) {
	var req AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}

	ss, err := a.ss.AddNote(c.Request.Context(), req.Note, req.PlayerID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ss)
}

func (a *API) ListSessions(c *gin.Context) {
	history, err := a.sts.History(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, history)
}

func (a *API) DeleteSession(c *gin.Context) {
	if err := a.sts.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) PlayerStats(c *gin.Context) {
	out, err := a.sts.Players(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, out)
}

func (a *API) GameStats(c *gin.Context) {
	out, err := a.sts.Games(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, out)
}

func (a *API) Overview(c *gin.Context) {
	out, err := a.sts.Overview(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, out)
}

func (a *API) GetLeaderboards(c *gin.Context) {
	boards, err := a.ls.GetLeaderboards(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, LeaderboardsResponse{
		Categories:   leaderboard.Categories,
		Leaderboards: boards,
	})
}

func (a *API) GetLeaderboard(c *gin.Context) {
	entries, err := a.ls.GetLeaderboard(c.Request.Context(), c.Param("category"))
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, entries)
}

func (a *API) QuickStart(c *gin.Context) {
	qs, err := a.ss.QuickStart(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, qs)
}

func (a *API) respond(c *gin.Context, op func(ctx context.Context) (*domain.Session, error)) {
	ss, err := op(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.ok(c, ss)
}
