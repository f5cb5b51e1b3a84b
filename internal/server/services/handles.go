package services

import (
	"context"

	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/handles"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
	"github.com/dmitrijs2005/handlewatch/internal/server/export"
	"github.com/dmitrijs2005/handlewatch/internal/server/storage"
)

type HandleStore interface {
	AddBulk(ctx context.Context, names []string) (storage.AddResult, error)
	Remove(ctx context.Context, name string) (bool, error)
	Clear(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]handles.Handle, error)
	Stats(ctx context.Context) (storage.Stats, error)
	History(ctx context.Context, name string, limit int) ([]storage.StatusChange, error)
	Free(ctx context.Context) ([]string, error)
}

type Exporter interface {
	Export(ctx context.Context) (export.Result, error)
}

type HandleService struct {
	store    HandleStore
	exporter Exporter
	log      logging.Logger
}

func NewHandleService(store HandleStore, exporter Exporter, log logging.Logger) *HandleService {
	return &HandleService{store: store, exporter: exporter, log: log.With("module", "handles")}
}

// Add stores names after normalization. Empty input fails with
// common.ErrEmptyInput.
func (s *HandleService) Add(ctx context.Context, names []string) (storage.AddResult, error) {
	if unique, _ := handles.Dedupe(names); len(unique) == 0 {
		return storage.AddResult{}, common.ErrEmptyInput
	}
	res, err := s.store.AddBulk(ctx, names)
	if err != nil {
		return storage.AddResult{}, err
	}
	s.log.Info(ctx, "handles added", "added", res.Added, "skipped", res.Skipped)
	return res, nil
}

// Import parses a plain text or CSV handle list and adds it.
func (s *HandleService) Import(ctx context.Context, text string) (storage.AddResult, error) {
	names := handles.ParseList(text)
	if len(names) == 0 {
		return storage.AddResult{}, common.ErrEmptyInput
	}
	return s.Add(ctx, names)
}

func (s *HandleService) Remove(ctx context.Context, name string) error {
	if handles.Normalize(name) == "" {
		return common.ErrEmptyInput
	}
	ok, err := s.store.Remove(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}

func (s *HandleService) Clear(ctx context.Context) (int64, error) {
	n, err := s.store.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "handles cleared", "removed", n)
	return n, nil
}

func (s *HandleService) List(ctx context.Context) ([]handles.Handle, error) {
	return s.store.List(ctx)
}

func (s *HandleService) Stats(ctx context.Context) (storage.Stats, error) {
	return s.store.Stats(ctx)
}

func (s *HandleService) Free(ctx context.Context) ([]string, error) {
	return s.store.Free(ctx)
}

func (s *HandleService) History(ctx context.Context, name string, limit int) ([]storage.StatusChange, error) {
	if handles.Normalize(name) == "" {
		return nil, common.ErrEmptyInput
	}
	return s.store.History(ctx, name, limit)
}

func (s *HandleService) Export(ctx context.Context) (export.Result, error) {
	res, err := s.exporter.Export(ctx)
	if err != nil {
		return export.Result{}, err
	}
	s.log.Info(ctx, "handles exported", "count", res.Count, "path", res.Path, "key", res.Key)
	return res, nil
}
