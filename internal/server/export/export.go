// Package export renders the handle list as CSV and stores it on local disk
// or in an S3-compatible bucket.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/handles"
)

// TimeLayout formats last-check timestamps in exported rows.
const TimeLayout = "2006-01-02 15:04:05"

// Source lists the handles to export.
type Source interface {
	List(ctx context.Context) ([]handles.Handle, error)
}

// Destination persists a rendered export.
type Destination interface {
	Store(ctx context.Context, data []byte) (Result, error)
}

// Result describes where an export went. Path is set for local files, Key
// and URL for object storage.
type Result struct {
	Count int
	Path  string
	Key   string
	URL   string
	Data  []byte
}

// Render writes one "@name,status,last_check" row per handle; handles never
// checked get "never".
func Render(hs []handles.Handle) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, h := range hs {
		last := "never"
		if h.LastChecked != nil {
			last = h.LastChecked.UTC().Format(TimeLayout)
		}
		if err := w.Write([]string{handles.Format(h.Name), string(h.Status), last}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type Service struct {
	src  Source
	dest Destination
}

func NewService(src Source, dest Destination) *Service {
	return &Service{src: src, dest: dest}
}

// Export renders every stored handle and stores the result. An empty list
// yields common.ErrorNotFound.
func (s *Service) Export(ctx context.Context) (Result, error) {
	hs, err := s.src.List(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(hs) == 0 {
		return Result{}, common.ErrorNotFound
	}
	data, err := Render(hs)
	if err != nil {
		return Result{}, fmt.Errorf("render export: %w", err)
	}
	res, err := s.dest.Store(ctx, data)
	if err != nil {
		return Result{}, err
	}
	res.Count = len(hs)
	res.Data = data
	return res, nil
}

func fileStamp(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}
