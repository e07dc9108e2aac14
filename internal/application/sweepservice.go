package application

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cloudmesh/cloudmesh/internal/domain/port/driven"
)

// refreshRequest represents a manual revalidation trigger.
type refreshRequest struct {
	credentialID uuid.UUID
	done         chan error
}

// SweepService periodically revalidates every stored credential so
// stale or revoked secrets surface as INVALID without waiting for an
// owner to trigger a check.
type SweepService struct {
	creds       driven.CredentialStore
	service     *CredentialService
	interval    time.Duration
	concurrency int
	refreshCh   chan refreshRequest
	logger      *slog.Logger
}

// NewSweepService creates a SweepService. concurrency bounds the number
// of credentials validated at once; values below 1 are raised to 1.
func NewSweepService(
	creds driven.CredentialStore,
	service *CredentialService,
	interval time.Duration,
	concurrency int,
	logger *slog.Logger,
) *SweepService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SweepService{
		creds:       creds,
		service:     service,
		interval:    interval,
		concurrency: concurrency,
		refreshCh:   make(chan refreshRequest),
		logger:      logger,
	}
}

// Start begins the sweep loop. It runs an immediate sweep, then sweeps
// on the configured interval, and listens for manual refresh requests.
// Start blocks until the context is canceled.
func (s *SweepService) Start(ctx context.Context) {
	s.sweepAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep service stopped")
			return
		case <-ticker.C:
			s.sweepAll(ctx)
		case req := <-s.refreshCh:
			req.done <- s.handleRefresh(ctx, req)
		}
	}
}

// RefreshCredential triggers a revalidation of one credential,
// bypassing the sweep interval. It blocks until the validation
// completes or the context is canceled.
func (s *SweepService) RefreshCredential(ctx context.Context, credentialID uuid.UUID) error {
	done := make(chan error, 1)
	req := refreshRequest{credentialID: credentialID, done: done}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SweepService) handleRefresh(ctx context.Context, req refreshRequest) error {
	cred, err := s.creds.GetByID(ctx, req.credentialID)
	if err != nil {
		return err
	}
	_, err = s.service.ValidateCredential(ctx, cred.ID, cred.OwnerID)
	return err
}

// sweepAll revalidates every stored credential with bounded
// concurrency. Individual failures are counted and logged; they never
// stop the sweep.
func (s *SweepService) sweepAll(ctx context.Context) {
	started := time.Now()

	creds, err := s.creds.ListAll(ctx)
	if err != nil {
		s.logger.Error("sweep failed to list credentials", slog.Any("error", err))
		return
	}
	if len(creds) == 0 {
		return
	}

	var failures atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range creds {
		cred := creds[i]
		g.Go(func() error {
			res, err := s.service.ValidateCredential(gctx, cred.ID, cred.OwnerID)
			if err != nil {
				failures.Add(1)
				s.logger.Warn("sweep validation errored",
					slog.String("credential_id", cred.ID.String()), slog.Any("error", err))
				return nil
			}
			if !res.Valid {
				failures.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("credential sweep complete",
		slog.Int("total", len(creds)),
		slog.Int64("failed", failures.Load()),
		slog.Duration("elapsed", time.Since(started)))
}
