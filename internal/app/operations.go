package app

import (
	"context"
	"fmt"

	"github.com/samvad-hq/fileio-go/internal/batch"
	"github.com/samvad-hq/fileio-go/internal/domain"
	"github.com/samvad-hq/fileio-go/internal/reconcile"
	"github.com/samvad-hq/fileio-go/pkg/fileio"
	"github.com/samvad-hq/fileio-go/pkg/publishers"
)

// Upload sends every path concurrently under the configured rate limit.
// Results keep the order of paths; a nil entry marks a local failure
// reported in the joined error.
func (a *App) Upload(ctx context.Context, paths []string, p fileio.UploadParams, anonymous bool) ([]*fileio.Result, error) {
	client := a.clientFor(anonymous)
	return batch.Run(ctx, a.runner, len(paths), func(ctx context.Context, i int) (*fileio.Result, error) {
		res, err := client.Upload(ctx, paths[i], p)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", paths[i], err)
		}
		if res.Success {
			a.recordUpload(ctx, client, paths[i], res)
		}
		return res, nil
	})
}

// recordUpload tracks a successful upload. Anonymous uploads are flagged
// because the account listing never contains them.
func (a *App) recordUpload(ctx context.Context, client *fileio.Client, source string, res *fileio.Result) {
	rec := domain.RecordFromNode(nodeOf(res), source, a.now())
	if rec.Key == "" {
		return
	}
	rec.Anonymous = !client.Authenticated()
	if err := a.store.Put(rec); err != nil {
		a.log.WarnObj("ledger write failed", "ledger_error", map[string]any{
			"key":   rec.Key,
			"error": err.Error(),
		})
	}
	a.publish(ctx, publishers.NewEvent(publishers.EventUploaded, rec))
}

// List returns one page of the account listing.
func (a *App) List(ctx context.Context, p fileio.ListParams) (*fileio.Result, error) {
	return a.client.List(ctx, p)
}

// Me returns the account details.
func (a *App) Me(ctx context.Context) (*fileio.Result, error) {
	return a.client.Me(ctx)
}

// Download fetches key into dest.
func (a *App) Download(ctx context.Context, key, dest string, anonymous bool) (*fileio.Result, error) {
	return a.clientFor(anonymous).Download(ctx, key, dest)
}

// Delete removes every key concurrently under the configured rate limit.
func (a *App) Delete(ctx context.Context, keys []string) ([]*fileio.Result, error) {
	return batch.Run(ctx, a.runner, len(keys), func(ctx context.Context, i int) (*fileio.Result, error) {
		res, err := a.client.Delete(ctx, keys[i])
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", keys[i], err)
		}
		if res.Success {
			a.forget(ctx, keys[i])
		}
		return res, nil
	})
}

func (a *App) forget(ctx context.Context, key string) {
	rec, ok, err := a.store.Get(key)
	if err != nil || !ok {
		rec = domain.FileRecord{Key: key}
	}
	if err := a.store.Delete(key); err != nil {
		a.log.WarnObj("ledger delete failed", "ledger_error", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
	}
	a.publish(ctx, publishers.NewEvent(publishers.EventDeleted, rec))
}

// DeleteAll removes every file of the account.
func (a *App) DeleteAll(ctx context.Context) ([]*fileio.Result, error) {
	keys, err := a.remoteKeys(ctx)
	if err != nil {
		return nil, err
	}
	return a.Delete(ctx, keys)
}

func (a *App) remoteKeys(ctx context.Context) ([]string, error) {
	var keys []string
	seen := make(map[string]struct{})
	for offset := 0; ; {
		res, err := a.client.List(ctx, fileio.ListParams{Offset: offset, Limit: reconcile.DefaultPageSize})
		if err != nil {
			return nil, err
		}
		if !res.Success {
			return nil, fmt.Errorf("list remote files: status %d %s: %s", res.Status, res.Code, res.Message)
		}
		added := 0
		for _, n := range res.Nodes {
			if _, dup := seen[n.Key]; dup {
				continue
			}
			seen[n.Key] = struct{}{}
			keys = append(keys, n.Key)
			added++
		}
		if len(res.Nodes) < reconcile.DefaultPageSize || added == 0 {
			return keys, nil
		}
		offset += len(res.Nodes)
	}
}

// Update changes key and refreshes its ledger record.
func (a *App) Update(ctx context.Context, key string, p fileio.UpdateParams) (*fileio.Result, error) {
	res, err := a.client.Update(ctx, key, p)
	if err != nil || !res.Success {
		return res, err
	}

	node := nodeOf(res)
	if node.Key == "" {
		node.Key = key
	}
	rec, ok, err := a.store.Get(key)
	switch {
	case err != nil:
		a.log.WarnObj("ledger read failed", "ledger_error", map[string]any{"key": key, "error": err.Error()})
		rec = domain.RecordFromNode(node, "", a.now())
	case ok:
		rec = rec.Refresh(node, a.now())
	default:
		rec = domain.RecordFromNode(node, "", a.now())
	}
	if src, set := p.File.Get(); set {
		rec.Source = src
	}
	if err := a.store.Put(rec); err != nil {
		a.log.WarnObj("ledger write failed", "ledger_error", map[string]any{"key": key, "error": err.Error()})
	}
	a.publish(ctx, publishers.NewEvent(publishers.EventUpdated, rec))
	return res, nil
}

// Ledger returns the locally tracked uploads.
func (a *App) Ledger() ([]domain.FileRecord, error) {
	return a.store.List()
}

// Reconcile aligns the ledger with the remote listing.
func (a *App) Reconcile(ctx context.Context) (reconcile.Report, error) {
	return a.reconciler.Run(ctx)
}
