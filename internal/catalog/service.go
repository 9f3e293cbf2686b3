// Package catalog keeps the games and players that sessions refer to.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/victornm/turntally/internal/domain"
	"github.com/victornm/turntally/internal/errors"
	"github.com/victornm/turntally/internal/store"
)

const defaultGameAvatar = "🎲"

type Config struct {
	Store  *store.Store
	IDFunc func() string
}

type Service struct {
	store *store.Store
	newID func() string
}

func NewService(c Config) *Service {
	s := &Service{
		store: c.Store,
		newID: c.IDFunc,
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	return s
}

type AddGameRequest struct {
	Title       string
	Avatar      string
	Thumbnail   string
	Description string
}

func (s *Service) AddGame(ctx context.Context, req AddGameRequest) (*domain.Game, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errors.Newf(errors.CodeInvalidArgument, "game title is empty")
	}

	games, err := s.store.Games(ctx)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}
	for _, g := range games {
		if strings.EqualFold(g.Title, title) {
			return nil, errors.Newf(errors.CodeAlreadyExists, "game %q already exists", title)
		}
	}

	g := domain.Game{
		ID:          s.newID(),
		Title:       title,
		Avatar:      req.Avatar,
		Thumbnail:   req.Thumbnail,
		Description: req.Description,
	}
	if g.Avatar == "" {
		g.Avatar = defaultGameAvatar
	}

	if err := s.store.ReplaceGames(ctx, append(games, g)); err != nil {
		return nil, fmt.Errorf("save games: %w", err)
	}

	slog.InfoContext(ctx, "catalog: game added", "game", g.ID, "title", g.Title)
	return &g, nil
}

func (s *Service) Games(ctx context.Context) ([]domain.Game, error) {
	return s.store.Games(ctx)
}

type AddPlayerRequest struct {
	Name   string
	Avatar string
}

func (s *Service) AddPlayer(ctx context.Context, req AddPlayerRequest) (*domain.Player, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Newf(errors.CodeInvalidArgument, "player name is empty")
	}

	players, err := s.store.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	for _, p := range players {
		if strings.EqualFold(p.Name, name) {
			return nil, errors.Newf(errors.CodeAlreadyExists, "player %q already exists", name)
		}
	}

	p := domain.Player{
		ID:     s.newID(),
		Name:   name,
		Avatar: req.Avatar,
		Games:  []domain.PlayerGameStats{},
	}

	if err := s.store.ReplacePlayers(ctx, append(players, p)); err != nil {
		return nil, fmt.Errorf("save players: %w", err)
	}

	slog.InfoContext(ctx, "catalog: player added", "player", p.ID, "name", p.Name)
	return &p, nil
}

func (s *Service) Players(ctx context.Context) ([]domain.Player, error) {
	return s.store.Players(ctx)
}
