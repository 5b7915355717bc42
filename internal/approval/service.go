// Package approval moves reviewed datasets from the staging catalog to the
// production catalog.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	accountdomain "github.com/smallbiznis/ndpcatalog/internal/account/domain"
	auditdomain "github.com/smallbiznis/ndpcatalog/internal/audit/domain"
	"github.com/smallbiznis/ndpcatalog/internal/config"
	datasetdomain "github.com/smallbiznis/ndpcatalog/internal/dataset/domain"
	obslogger "github.com/smallbiznis/ndpcatalog/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/ndpcatalog/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/ndpcatalog/internal/organization/domain"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultLockTTL = 2 * time.Minute

	// Worst case remote round trips while the lock is held: user, org and
	// member lookups plus token revoke retry once, the creates never do.
	maxRemoteAttempts = 12
	lockTTLMargin     = 30 * time.Second
)

var systemContext = datasetdomain.ActionContext{IgnoreAuth: true}

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Gate     *Gate
	Locker   Locker
	Accounts accountdomain.Service
	Orgs     orgdomain.Service
	Datasets datasetdomain.Service
	Remote   remotecatalog.API
	Audit    auditdomain.Service        `optional:"true"`
	Metrics  *obsmetrics.ApprovalMetrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	gate     *Gate
	locker   Locker
	lockTTL  time.Duration
	accounts accountdomain.Service
	orgs     orgdomain.Service
	datasets datasetdomain.Service
	remote   remotecatalog.API
	audit    auditdomain.Service
	metrics  *obsmetrics.ApprovalMetrics
}

func NewService(p Params) *Service {
	log := p.Log.Named("approval.service")
	floor := minLockTTL(p.Cfg.Remote.Timeout)
	ttl := p.Cfg.Approval.LockTTL
	switch {
	case ttl <= 0 && floor > 0:
		ttl = floor
	case ttl <= 0:
		ttl = defaultLockTTL
	case ttl < floor:
		log.Warn("approval lock ttl is shorter than the remote call budget, raising it",
			zap.Duration("configured", ttl),
			zap.Duration("effective", floor),
		)
		ttl = floor
	}
	return &Service{
		log:      log,
		gate:     p.Gate,
		locker:   p.Locker,
		lockTTL:  ttl,
		accounts: p.Accounts,
		orgs:     p.Orgs,
		datasets: p.Datasets,
		remote:   p.Remote,
		audit:    p.Audit,
		metrics:  p.Metrics,
	}
}

// Approve copies the dataset, its creator and its organization into the
// production catalog, then purges the staging copy.
func (s *Service) Approve(ctx context.Context, datasetID string, actor *accountdomain.Account) (map[string]any, error) {
	start := time.Now()
	attemptID := ulid.Make().String()
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("dataset_id", datasetID),
		zap.String("attempt_id", attemptID),
	)

	created, err := s.approve(ctx, log, datasetID, actor)
	if err != nil {
		reason := failureReason(err)
		s.metrics.ApprovalFailed(reason)
		if !errors.Is(err, ErrNotAuthorized) && !errors.Is(err, ErrApprovalInProgress) {
			s.record(ctx, actor, auditdomain.ActionDatasetApprovalFailed, datasetID, map[string]any{
				"attempt_id": attemptID,
				"reason":     reason,
			})
		}
		log.Warn("dataset approval failed", zap.String("reason", reason), zap.Error(err))
		return nil, err
	}

	s.metrics.ApprovalSucceeded(time.Since(start).Seconds())
	s.record(ctx, actor, auditdomain.ActionDatasetApproved, datasetID, map[string]any{
		"attempt_id": attemptID,
		"remote_id":  fmt.Sprint(created["id"]),
	})
	log.Info("dataset approved", zap.Any("remote_id", created["id"]))
	return created, nil
}

func (s *Service) approve(ctx context.Context, log *zap.Logger, datasetID string, actor *accountdomain.Account) (map[string]any, error) {
	if err := s.gate.Authorize(actor, ObjectDataset, ActionApprove); err != nil {
		return nil, err
	}

	datasetID, err := s.canonicalID(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	defer release()

	// re-read under the lock, a previous holder may have purged it
	local, err := s.datasets.Show(ctx, systemContext, datasetID)
	if err != nil {
		return nil, err
	}
	if state, _ := local["state"].(string); state == datasetdomain.StateDeleted {
		return nil, ErrAlreadyDeleted
	}

	remoteUser, err := s.resolveCreator(ctx, local)
	if err != nil {
		return nil, err
	}

	remoteOrgID := ""
	if ref, _ := local["owner_org"].(string); ref != "" {
		org, err := s.orgs.FindByIDOrName(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("%w: owner organization: %w", datasetdomain.ErrLocalAction, err)
		}
		remoteOrg, err := s.orgs.EnsureRemote(ctx, remoteUser, org)
		if err != nil {
			return nil, err
		}
		remoteOrgID = remoteOrg.ID
	}

	created, err := s.publish(ctx, log, datasetID, remoteUser, BuildPayload(local, remoteOrgID))
	if err != nil {
		return nil, err
	}

	if err := s.datasets.Purge(ctx, systemContext, datasetID); err != nil {
		cleanupErr := &PostMigrationCleanupError{
			DatasetID: datasetID,
			RemoteID:  fmt.Sprint(created["id"]),
			Err:       err,
		}
		log.Error("dataset exists in staging and production after approval",
			zap.String("remote_id", cleanupErr.RemoteID),
			zap.Error(err),
		)
		s.metrics.CleanupFailed()
		s.record(ctx, actor, auditdomain.ActionMigrationCleanupFailed, datasetID, map[string]any{
			"remote_id": cleanupErr.RemoteID,
			"error":     err.Error(),
		})
		return nil, cleanupErr
	}

	return created, nil
}

func (s *Service) resolveCreator(ctx context.Context, local map[string]any) (*remotecatalog.User, error) {
	raw, _ := local["creator_user_id"].(string)
	creatorID, err := snowflake.ParseString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: creator id %q: %w", datasetdomain.ErrLocalAction, raw, err)
	}
	creator, err := s.accounts.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("%w: creator account: %w", datasetdomain.ErrLocalAction, err)
	}
	return s.accounts.ResolveRemote(ctx, creator.Name, creator.Email, creator.Fullname)
}

// publish creates the remote dataset with a scoped token that is revoked on
// every exit path.
func (s *Service) publish(ctx context.Context, log *zap.Logger, datasetID string, user *remotecatalog.User, payload map[string]any) (map[string]any, error) {
	token, err := s.remote.IssueToken(ctx, user.Name)
	if err != nil {
		return nil, remotecatalog.Classify(remotecatalog.ErrRemoteToken, err)
	}
	defer func() {
		revokeCtx := context.WithoutCancel(ctx)
		if err := s.remote.RevokeToken(revokeCtx, token); err != nil {
			log.Error("failed to revoke scoped token", zap.String("remote_user", user.Name), zap.Error(err))
			s.metrics.TokenRevokeFailed()
			s.record(revokeCtx, nil, auditdomain.ActionTokenRevokeFailed, datasetID, map[string]any{
				"remote_user": user.Name,
				"token":       token,
				"error":       err.Error(),
			})
		}
	}()

	created, err := s.remote.CreateDataset(ctx, token, payload)
	if err != nil {
		return nil, remotecatalog.Classify(remotecatalog.ErrRemoteDatasetCreate, err)
	}
	return created, nil
}

// Reject purges a submitted dataset without touching the production catalog.
func (s *Service) Reject(ctx context.Context, datasetID string, actor *accountdomain.Account) error {
	log := obslogger.WithContext(ctx, s.log).With(zap.String("dataset_id", datasetID))

	err := s.reject(ctx, datasetID, actor)
	switch {
	case err == nil:
		s.metrics.Rejection(obsmetrics.OutcomeSuccess)
		s.record(ctx, actor, auditdomain.ActionDatasetRejected, datasetID, nil)
		log.Info("dataset rejected")
		return nil
	case errors.Is(err, ErrNotAuthorized):
		s.metrics.Rejection(obsmetrics.OutcomeDenied)
	default:
		s.metrics.Rejection(obsmetrics.OutcomeFailure)
	}
	log.Warn("dataset rejection failed", zap.Error(err))
	return err
}

func (s *Service) reject(ctx context.Context, datasetID string, actor *accountdomain.Account) error {
	if err := s.gate.Authorize(actor, ObjectDataset, ActionReject); err != nil {
		return err
	}

	datasetID, err := s.canonicalID(ctx, datasetID)
	if err != nil {
		return err
	}

	release, err := s.lock(ctx, datasetID)
	if err != nil {
		return err
	}
	defer release()

	return s.datasets.Purge(ctx, systemContext, datasetID)
}

// canonicalID resolves a dataset id or name to the id approvals lock on.
func (s *Service) canonicalID(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", datasetdomain.ErrInvalidID
	}
	local, err := s.datasets.Show(ctx, systemContext, ref)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(local["id"]), nil
}

func minLockTTL(remoteTimeout time.Duration) time.Duration {
	if remoteTimeout <= 0 {
		return 0
	}
	return remoteTimeout*maxRemoteAttempts + lockTTLMargin
}

func (s *Service) lock(ctx context.Context, datasetID string) (func(), error) {
	key := lockKey(datasetID)
	token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire approval lock: %w", err)
	}
	if !ok {
		return nil, ErrApprovalInProgress
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("failed to release approval lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (s *Service) record(ctx context.Context, actor *accountdomain.Account, action, datasetID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	actorType := string(auditdomain.ActorTypeSystem)
	var actorID *string
	if actor != nil {
		actorType = string(auditdomain.ActorTypeAccount)
		name := actor.Name
		actorID = &name
	}
	// write failures are logged by the audit service
	_ = s.audit.AuditLog(ctx, actorType, actorID, action, auditdomain.TargetDataset, &datasetID, metadata)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrApprovalInProgress):
		return "in_progress"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyDeleted):
		return "already_deleted"
	case errors.Is(err, ErrPostMigrationCleanup):
		return "post_migration_cleanup"
	case errors.Is(err, remotecatalog.ErrRemoteTimeout):
		return "remote_timeout"
	case errors.Is(err, remotecatalog.ErrRemoteLookup):
		return "remote_lookup"
	case errors.Is(err, remotecatalog.ErrRemoteCreate):
		return "remote_create"
	case errors.Is(err, remotecatalog.ErrRemoteMembership):
		return "remote_membership"
	case errors.Is(err, remotecatalog.ErrRemoteToken):
		return "remote_token"
	case errors.Is(err, remotecatalog.ErrRemoteDatasetCreate):
		return "remote_dataset_create"
	default:
		return "internal"
	}
}
