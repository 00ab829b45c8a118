// Package reconcile aligns the local upload ledger with the remote listing.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/fileio-go/internal/logger"
	"github.com/samvad-hq/fileio-go/internal/storage"
	"github.com/samvad-hq/fileio-go/pkg/fileio"
	"github.com/samvad-hq/fileio-go/pkg/publishers"
)

// DefaultPageSize is the listing page size used while reconciling.
const DefaultPageSize = 100

// Report summarizes one reconcile pass.
type Report struct {
	Local     int `json:"local"`
	Remote    int `json:"remote"`
	Refreshed int `json:"refreshed"`
	Removed   int `json:"removed"`
	Kept      int `json:"kept"`
	Published int `json:"published"`
}

// Service coordinates a reconcile pass.
type Service struct {
	lister   Lister
	ledger   storage.Store
	events   EventPublisher
	log      logger.Logger
	pageSize int
	now      func() time.Time
}

// NewService wires a reconciler. events may be nil.
func NewService(lister Lister, ledger storage.Store, events EventPublisher, log logger.Logger) *Service {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Service{
		lister:   lister,
		ledger:   ledger,
		events:   events,
		log:      log,
		pageSize: DefaultPageSize,
		now:      time.Now,
	}
}

// Run drops ledger records whose files no longer exist remotely and
// refreshes the rest. Nothing is dropped when the listing fails.
// Anonymous uploads never appear in the account listing, so they are kept
// until their known expiry passes.
func (s *Service) Run(ctx context.Context) (Report, error) {
	if s == nil || s.lister == nil || s.ledger == nil {
		return Report{}, fmt.Errorf("reconcile service is not initialized")
	}

	records, err := s.ledger.List()
	if err != nil {
		return Report{}, fmt.Errorf("list ledger: %w", err)
	}
	report := Report{Local: len(records)}
	if len(records) == 0 {
		return report, nil
	}

	remote, err := s.remoteNodes(ctx)
	if err != nil {
		return report, err
	}
	report.Remote = len(remote)

	now := s.now()
	var errs []error
	for _, rec := range records {
		if node, ok := remote[rec.Key]; ok {
			if err := s.ledger.Put(rec.Refresh(node, now)); err != nil {
				errs = append(errs, fmt.Errorf("refresh %s: %w", rec.Key, err))
				continue
			}
			report.Refreshed++
			continue
		}
		if rec.Anonymous && !rec.Expired(now) {
			report.Kept++
			continue
		}

		if err := s.ledger.Delete(rec.Key); err != nil {
			errs = append(errs, fmt.Errorf("drop %s: %w", rec.Key, err))
			continue
		}
		report.Removed++
		report.Published += s.publish(ctx, publishers.NewEvent(publishers.EventExpired, rec))
	}

	s.log.InfoObj("reconcile completed", "reconcile_report", report)
	return report, errors.Join(errs...)
}

// remoteNodes collects every remote file keyed by its file key.
func (s *Service) remoteNodes(ctx context.Context) (map[string]fileio.Node, error) {
	nodes := make(map[string]fileio.Node)
	for offset := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.lister.List(ctx, fileio.ListParams{Offset: offset, Limit: s.pageSize})
		if err != nil {
			return nil, fmt.Errorf("list remote files: %w", err)
		}
		if !res.Success {
			return nil, fmt.Errorf("list remote files: status %d %s: %s", res.Status, res.Code, res.Message)
		}
		before := len(nodes)
		for _, n := range res.Nodes {
			nodes[n.Key] = n
		}
		if len(res.Nodes) < s.pageSize || len(nodes) == before {
			return nodes, nil
		}
		offset += len(res.Nodes)
	}
}

func (s *Service) publish(ctx context.Context, evt publishers.Event) int {
	if s.events == nil {
		return 0
	}
	n, err := s.events.Publish(ctx, evt)
	if err != nil {
		s.log.WarnObj("event publish failed", "publish_error", map[string]any{
			"event_type": evt.Type,
			"key":        evt.Key,
			"error":      err.Error(),
		})
	}
	return n
}
