package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ndpcatalog/internal/account/domain"
	"github.com/smallbiznis/ndpcatalog/internal/account/password"
	"github.com/smallbiznis/ndpcatalog/internal/account/repository"
	"github.com/smallbiznis/ndpcatalog/internal/identity"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog/remotecatalogtest"
	"github.com/smallbiznis/ndpcatalog/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubVerifier map[string]identity.Identity

func (v stubVerifier) Verify(_ context.Context, token string) (identity.Identity, error) {
	id, ok := v[token]
	if !ok {
		return identity.Identity{}, identity.ErrUnauthorized
	}
	return id, nil
}

func newTestService(t *testing.T, remote *remotecatalogtest.Server) *Service {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&domain.Account{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	var api remotecatalog.API
	if remote != nil {
		api = remotecatalog.New(remotecatalog.Config{BaseURL: remote.URL, APIKey: remotecatalogtest.ServiceKey}, zap.NewNop(), nil)
	}

	return NewService(Params{
		DB:   dbConn,
		Log:  zap.NewNop(),
		Repo: repository.New(dbConn),
		Verifier: stubVerifier{
			"alice-token": {Username: "alice@example.com", Email: "alice@example.com", Name: "Alice"},
		},
		Remote: api,
		GenID:  node,
	}).(*Service)
}

func TestDeriveHandle(t *testing.T) {
	assert.Equal(t, "alice_example_com", domain.DeriveHandle("alice@example.com"))
	assert.Equal(t, "klin_sdsc_edu", domain.DeriveHandle("klin@sdsc.edu"))
	assert.Equal(t, "plain", domain.DeriveHandle(" plain "))
}

func TestResolveLocalCreatesOnce(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.ResolveLocal(ctx, "Bearer alice-token")
	require.NoError(t, err)
	assert.Equal(t, "alice_example_com", first.Name)
	assert.Equal(t, domain.StateActive, first.State)
	assert.True(t, strings.HasPrefix(first.PasswordHash, "$argon2id$"))

	second, err := svc.ResolveLocal(ctx, "bearer alice-token")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, svc.db.Model(&domain.Account{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestResolveLocalRejectsBadHeaders(t *testing.T) {
	svc := newTestService(t, nil)

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer unknown"} {
		_, err := svc.ResolveLocal(context.Background(), header)
		assert.ErrorIs(t, err, domain.ErrAuthentication, header)
	}
}

func TestCreateLocalReturnsExistingOnDuplicate(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	existing, err := svc.ResolveLocal(ctx, "Bearer alice-token")
	require.NoError(t, err)

	again, err := svc.createLocal(ctx, "alice_example_com", identity.Identity{Username: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, again.ID)
}

func TestResolveLocalConcurrentFirstLogin(t *testing.T) {
	svc := newTestService(t, nil)

	var wg sync.WaitGroup
	ids := make([]snowflake.ID, 4)
	errs := make([]error, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc, err := svc.ResolveLocal(context.Background(), "Bearer alice-token")
			errs[i] = err
			if acc != nil {
				ids[i] = acc.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestResolveRemoteFindsOrCreates(t *testing.T) {
	remote := remotecatalogtest.NewServer()
	defer remote.Close()
	remote.SeedUser("klin_sdsc_edu", "klin@sdsc.edu")

	svc := newTestService(t, remote)
	ctx := context.Background()

	existing, err := svc.ResolveRemote(ctx, "klin_sdsc_edu", "klin@sdsc.edu", "K Lin")
	require.NoError(t, err)
	assert.Equal(t, "klin_sdsc_edu", existing.Name)
	assert.Equal(t, 0, remote.CallCount("user_create"))

	created, err := svc.ResolveRemote(ctx, "alice_example_com", "alice@example.com", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice_example_com", created.Name)
	assert.True(t, remote.HasUser("alice_example_com"))

	var sent string
	for _, call := range remote.Calls() {
		if call.Action == "user_create" {
			sent, _ = call.Body["password"].(string)
		}
	}
	assert.Len(t, sent, password.GeneratedLength)
}

func TestResolveRemoteFailures(t *testing.T) {
	remote := remotecatalogtest.NewServer()
	defer remote.Close()
	svc := newTestService(t, remote)

	remote.FailAction("user_create", http.StatusConflict)
	_, err := svc.ResolveRemote(context.Background(), "bob", "bob@example.com", "Bob")
	assert.ErrorIs(t, err, remotecatalog.ErrRemoteCreate)

	remote.FailAction("user_show", http.StatusForbidden)
	_, err = svc.ResolveRemote(context.Background(), "bob", "bob@example.com", "Bob")
	assert.ErrorIs(t, err, remotecatalog.ErrRemoteLookup)
	assert.False(t, errors.Is(err, remotecatalog.ErrRemoteCreate))
}
