package approval

import (
	_ "embed"
	"fmt"
	"sync/atomic"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	accountdomain "github.com/smallbiznis/ndpcatalog/internal/account/domain"
	"github.com/smallbiznis/ndpcatalog/internal/config"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

const (
	ObjectDataset  = "dataset"
	ObjectAuditLog = "audit_log"

	ActionApprove      = "dataset.approve"
	ActionReject       = "dataset.reject"
	ActionAuditLogView = "audit_log.view"

	roleSysadmin = "role:sysadmin"
	roleReviewer = "role:reviewer"
)

var policies = [][]string{
	{roleReviewer, ObjectDataset, ActionApprove},
	{roleReviewer, ObjectDataset, ActionReject},
	{roleReviewer, ObjectAuditLog, ActionAuditLogView},

	{roleSysadmin, ObjectDataset, ActionApprove},
	{roleSysadmin, ObjectDataset, ActionReject},
	{roleSysadmin, ObjectAuditLog, ActionAuditLogView},
}

// Gate decides which accounts may review submissions. The enforcer is rebuilt
// from the reviewer roster on every reload.
type Gate struct {
	log      *zap.Logger
	enforcer atomic.Pointer[casbin.SyncedEnforcer]
}

func NewGate(roster *config.ReviewerRoster, log *zap.Logger) (*Gate, error) {
	g := &Gate{log: log.Named("approval.gate")}
	if err := g.rebuild(roster.Get()); err != nil {
		return nil, err
	}
	roster.OnChange(func(names []string) {
		if err := g.rebuild(names); err != nil {
			g.log.Error("failed to rebuild reviewer policy, keeping previous roster", zap.Error(err))
			return
		}
		g.log.Info("reviewer policy rebuilt", zap.Int("reviewers", len(names)))
	})
	return g, nil
}

func (g *Gate) rebuild(reviewers []string) error {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return err
	}
	for _, p := range policies {
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return err
		}
	}
	for _, name := range reviewers {
		if _, err := enforcer.AddGroupingPolicy(subject(name), roleReviewer); err != nil {
			return err
		}
	}
	g.enforcer.Store(enforcer)
	return nil
}

// CanReview reports whether account may approve or reject datasets.
func (g *Gate) CanReview(account *accountdomain.Account) bool {
	return g.Authorize(account, ObjectDataset, ActionApprove) == nil
}

func (g *Gate) Authorize(account *accountdomain.Account, object, action string) error {
	if account == nil || account.Name == "" {
		return ErrNotAuthorized
	}
	sub := subject(account.Name)
	if account.Sysadmin {
		sub = roleSysadmin
	}

	allowed, err := g.enforcer.Load().Enforce(sub, object, action)
	if err != nil {
		return fmt.Errorf("enforce %s: %w", action, err)
	}
	if !allowed {
		return ErrNotAuthorized
	}
	return nil
}

func subject(name string) string {
	return "account:" + name
}
