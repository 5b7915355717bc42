package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ndpcatalog/internal/account/domain"
	"github.com/smallbiznis/ndpcatalog/internal/account/password"
	"github.com/smallbiznis/ndpcatalog/internal/identity"
	obslogger "github.com/smallbiznis/ndpcatalog/internal/observability/logger"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog"
	"github.com/smallbiznis/ndpcatalog/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	Verifier identity.Verifier
	Remote   remotecatalog.API
	GenID    *snowflake.Node
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	verifier identity.Verifier
	remote   remotecatalog.API
	genID    *snowflake.Node
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("account.service"),
		repo:     p.Repo,
		verifier: p.Verifier,
		remote:   p.Remote,
		genID:    p.GenID,
	}
}

func (s *Service) ResolveLocal(ctx context.Context, authorization string) (*domain.Account, error) {
	token, err := identity.ExtractBearerToken(authorization)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}

	id, err := s.verifier.Verify(ctx, token)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Info("identity verification failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}

	name := domain.DeriveHandle(id.Username)
	if name == "" {
		return nil, domain.ErrAuthentication
	}

	account, err := s.repo.FindByName(ctx, name)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	return s.createLocal(ctx, name, id)
}

func (s *Service) createLocal(ctx context.Context, name string, id identity.Identity) (*domain.Account, error) {
	secret, err := password.Generate(password.GeneratedLength)
	if err != nil {
		return nil, err
	}
	hash, err := password.Hash(secret)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:           s.genID.Generate(),
		Name:         name,
		Email:        strings.TrimSpace(id.Email),
		Fullname:     strings.TrimSpace(id.Name),
		PasswordHash: hash,
		State:        domain.StateActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, account)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// lost a concurrent first login; the winner's row is authoritative
			return s.repo.FindByName(ctx, name)
		}
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("provisioned account",
		zap.String("account_id", account.ID.String()),
		zap.String("name", account.Name),
	)
	return account, nil
}

func (s *Service) ResolveRemote(ctx context.Context, name, email, fullname string) (*remotecatalog.User, error) {
	user, err := s.remote.ShowUser(ctx, name)
	if err == nil {
		return user, nil
	}
	if !remotecatalog.IsNotFound(err) {
		return nil, remotecatalog.Classify(remotecatalog.ErrRemoteLookup, err)
	}

	secret, err := password.Generate(password.GeneratedLength)
	if err != nil {
		return nil, err
	}
	user, err = s.remote.CreateUser(ctx, remotecatalog.CreateUserRequest{
		Name:     name,
		Email:    email,
		Fullname: fullname,
		Password: secret,
	})
	if err != nil {
		return nil, remotecatalog.Classify(remotecatalog.ErrRemoteCreate, err)
	}

	obslogger.WithContext(ctx, s.log).Info("provisioned remote user",
		zap.String("name", name),
		zap.String("remote_id", user.ID),
	)
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Account, error) {
	if id == 0 {
		return nil, domain.ErrInvalidAccount
	}
	return s.repo.FindByID(ctx, id)
}
