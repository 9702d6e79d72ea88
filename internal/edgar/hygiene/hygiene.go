// Package hygiene implements the three repeatable sweeps of §4.7: rate-limit
// sentinel repair, zero-byte object repair, and access-denied object
// removal. Each sweep scans a CIK-scoped or store-wide prefix, classifies
// every matching artifact, and repairs or deletes it; nothing here depends
// on the catalogue, since the defect lives entirely in the object store.
package hygiene

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edgarctl/edgar-ingest/internal/edgar/blobstore"
	"github.com/edgarctl/edgar-ingest/internal/edgar/client"
)

// Sweeper repairs corrupted or policy-rejected artifacts under the blob
// store's edgar/ prefix.
type Sweeper struct {
	EDGAR *client.Client
	Store blobstore.Store

	// Concurrency bounds how many artifacts are inspected/repaired at
	// once; defaults to 5 (matching the fan-out width used elsewhere in
	// this codebase for bounded EDGAR-facing work).
	Concurrency int
}

// Report summarizes one sweep's outcome.
type Report struct {
	Scanned int
	Fixed   int
	Deleted int
	Skipped int
}

// Scope narrows a sweep to a single CIK's tree (edgar/data/<cik>/) when
// non-empty, or the entire edgar/data/ tree otherwise.
func Scope(cik string) string {
	if cik == "" {
		return "edgar/data/"
	}
	return "edgar/data/" + cik + "/"
}

// SweepRateLimited replaces every object under prefix whose body looks like
// a captured rate-limit error page with a fresh fetch from EDGAR, per the
// exact-size-then-substring heuristic of §4.2/§4.7.
func (s *Sweeper) SweepRateLimited(ctx context.Context, prefix string) (Report, error) {
	return s.sweep(ctx, prefix, client.IsRateLimitedBody, repairByRefetch)
}

// SweepZeroByte replaces every zero-length object under prefix with a fresh
// fetch from EDGAR.
func (s *Sweeper) SweepZeroByte(ctx context.Context, prefix string) (Report, error) {
	return s.sweep(ctx, prefix, func(body []byte) bool { return len(body) == 0 }, repairByRefetch)
}

// SweepAccessDenied deletes every object under prefix whose body is a
// captured access-denied page; these are not repaired by re-fetch, since an
// access-denied response from the storage backend proxy will recur.
func (s *Sweeper) SweepAccessDenied(ctx context.Context, prefix string) (Report, error) {
	return s.sweep(ctx, prefix, client.IsAccessDeniedBody, repairByDelete)
}

type repairKind int

const (
	repairByRefetch repairKind = iota
	repairByDelete
)

func (s *Sweeper) sweep(ctx context.Context, prefix string, matches func([]byte) bool, repair repairKind) (Report, error) {
	log := zap.L().With(zap.String("component", "edgar.hygiene"), zap.String("prefix", prefix))

	keys, err := s.Store.List(ctx, prefix)
	if err != nil {
		return Report{}, eris.Wrapf(err, "hygiene: list %q", prefix)
	}

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	var scanned, fixed, deleted, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, key := range keys {
		key := key
		g.Go(func() error {
			scanned.Add(1)

			body, err := s.Store.Get(gctx, key, false)
			if err != nil {
				log.Warn("hygiene: failed to read object, skipping", zap.String("key", key), zap.Error(err))
				skipped.Add(1)
				return nil
			}

			if !matches(body) {
				return nil
			}

			switch repair {
			case repairByDelete:
				if err := s.Store.Delete(gctx, key); err != nil {
					log.Error("hygiene: failed to delete", zap.String("key", key), zap.Error(err))
					skipped.Add(1)
					return nil
				}
				deleted.Add(1)
				log.Info("deleted access-denied artifact", zap.String("key", key))

			case repairByRefetch:
				edgarPath := toEdgarPath(key)
				fresh, _, err := s.EDGAR.GetBuffer(gctx, edgarPath)
				if err != nil {
					log.Error("hygiene: refetch failed", zap.String("key", key), zap.Error(err))
					skipped.Add(1)
					return nil
				}
				if len(fresh) == 0 {
					log.Warn("hygiene: refetch returned empty body, leaving artifact in place", zap.String("key", key))
					skipped.Add(1)
					return nil
				}
				if err := s.Store.Put(gctx, key, fresh, false); err != nil {
					log.Error("hygiene: re-upload failed", zap.String("key", key), zap.Error(err))
					skipped.Add(1)
					return nil
				}
				fixed.Add(1)
				log.Info("repaired artifact via refetch", zap.String("key", key))
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	return Report{
		Scanned: int(scanned.Load()),
		Fixed:   int(fixed.Load()),
		Deleted: int(deleted.Load()),
		Skipped: int(skipped.Load()),
	}, nil
}

// toEdgarPath reverses the canonical object layout's edgar/… store path
// back into the /Archives/… path EDGAR serves it under.
func toEdgarPath(storePath string) string {
	return "/Archives/" + strings.TrimPrefix(storePath, "/")
}
