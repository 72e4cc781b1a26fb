package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kkogteva6/ReadingPlatform/internal/logging"
	"github.com/kkogteva6/ReadingPlatform/internal/model"
	"github.com/kkogteva6/ReadingPlatform/internal/validation"
)

// AdminBackend is the catalogue maintenance side of the backend
type AdminBackend interface {
	ListBooks(ctx context.Context) ([]model.Book, error)
	AddBook(ctx context.Context, book model.Book) (*model.AdminResult, error)
	RebuildWorks(ctx context.Context) (*model.AdminResult, error)
	ImportWorksNeo4j(ctx context.Context) (*model.AdminResult, error)
	Publish(ctx context.Context) (*model.AdminResult, error)
}

type AdminService struct {
	backend AdminBackend
	log     zerolog.Logger
}

func NewAdminService(backend AdminBackend) *AdminService {
	return &AdminService{backend: backend, log: logging.Component("admin")}
}

func (s *AdminService) ListBooks(ctx context.Context) ([]model.Book, error) {
	books, err := s.backend.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []model.Book{}
	}
	return books, nil
}

// AddBook validates and forwards a catalogue entry
func (s *AdminService) AddBook(ctx context.Context, book model.Book) (*model.AdminResult, error) {
	book.ID = strings.TrimSpace(book.ID)
	book.Title = strings.TrimSpace(book.Title)
	book.Author = strings.TrimSpace(book.Author)
	if err := validation.Struct(book); err != nil {
		return nil, err
	}

	res, err := s.backend.AddBook(ctx, book)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("book", book.ID).Msg("book added")
	return res, nil
}

func (s *AdminService) RebuildWorks(ctx context.Context) (*model.AdminResult, error) {
	return s.run(ctx, "rebuild_works", s.backend.RebuildWorks)
}

func (s *AdminService) ImportWorks(ctx context.Context) (*model.AdminResult, error) {
	return s.run(ctx, "import_works", s.backend.ImportWorksNeo4j)
}

// Publish rebuilds the works file and imports it into the graph in one step
func (s *AdminService) Publish(ctx context.Context) (*model.AdminResult, error) {
	return s.run(ctx, "publish", s.backend.Publish)
}

func (s *AdminService) run(ctx context.Context, action string, fn func(context.Context) (*model.AdminResult, error)) (*model.AdminResult, error) {
	res, err := fn(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("action", action).Msg("admin action failed")
		return nil, err
	}
	s.log.Info().Str("action", action).Bool("ok", res.OK).Msg("admin action done")
	return res, nil
}
