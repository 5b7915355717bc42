package service

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/ndpcatalog/internal/account/domain"
	"github.com/smallbiznis/ndpcatalog/internal/organization/domain"
	"github.com/smallbiznis/ndpcatalog/internal/organization/repository"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog/remotecatalogtest"
	"github.com/smallbiznis/ndpcatalog/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, remote *remotecatalogtest.Server) (domain.Service, *gorm.DB) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&domain.Organization{}, &domain.Member{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	var api remotecatalog.API
	if remote != nil {
		api = remotecatalog.New(remotecatalog.Config{BaseURL: remote.URL, APIKey: remotecatalogtest.ServiceKey}, zap.NewNop(), nil)
	}

	return NewService(Params{
		DB:     dbConn,
		Log:    zap.NewNop(),
		Repo:   repository.NewRepository(dbConn),
		Remote: api,
		GenID:  node,
	}), dbConn
}

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Research Group", "research-group"},
		{"research-group", "research-group"},
		{"  Ocean Lab 2024 ", "ocean-lab-2024"},
		{"a", "a_"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domain.Slugify(tc.in), tc.in)
	}

	assert.Len(t, domain.Slugify("x "+strings.Repeat("y", 150)), 100)
}

func TestEnsureLocalIsIdempotent(t *testing.T) {
	svc, dbConn := newTestService(t, nil)
	ctx := context.Background()
	account := &accountdomain.Account{ID: 42, Name: "alice_example_com"}

	first, err := svc.EnsureLocal(ctx, account, "Research Group")
	require.NoError(t, err)
	assert.Equal(t, "research-group", first.Name)
	assert.Equal(t, "Research Group", first.Title)
	assert.Equal(t, domain.AutoDescription, first.Description)
	assert.True(t, first.IsOrganization)

	second, err := svc.EnsureLocal(ctx, account, "research-group")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Research Group", second.Title)

	var members int64
	require.NoError(t, dbConn.Model(&domain.Member{}).Count(&members).Error)
	assert.EqualValues(t, 1, members)

	editor, err := svc.IsEditor(ctx, first.ID, account.ID)
	require.NoError(t, err)
	assert.True(t, editor)

	member, err := svc.IsMember(ctx, first.ID, 7)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestEnsureLocalRejectsEmptyTitle(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.EnsureLocal(context.Background(), &accountdomain.Account{ID: 1}, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.EnsureLocal(context.Background(), nil, "Research Group")
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)
}

func TestFindByIDOrName(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	org, err := svc.EnsureLocal(ctx, &accountdomain.Account{ID: 1}, "Ocean Lab")
	require.NoError(t, err)

	byID, err := svc.FindByIDOrName(ctx, org.ID.String())
	require.NoError(t, err)
	assert.Equal(t, org.Name, byID.Name)

	byName, err := svc.FindByIDOrName(ctx, "ocean-lab")
	require.NoError(t, err)
	assert.Equal(t, org.ID, byName.ID)

	_, err = svc.FindByIDOrName(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
}

func TestEnsureRemoteCreatesAndAddsEditor(t *testing.T) {
	remote := remotecatalogtest.NewServer()
	defer remote.Close()
	svc, _ := newTestService(t, remote)

	org := &domain.Organization{Name: "research-group", Title: "Research Group", Description: domain.AutoDescription}
	user := &remotecatalog.User{ID: "user-9", Name: "klin_sdsc_edu"}

	remoteOrg, err := svc.EnsureRemote(context.Background(), user, org)
	require.NoError(t, err)
	assert.NotEmpty(t, remoteOrg.ID)

	created, ok := remote.Organization("research-group")
	require.True(t, ok)
	assert.Equal(t, "Research Group", created["title"])

	_, err = svc.EnsureRemote(context.Background(), user, org)
	require.NoError(t, err)
	assert.Equal(t, 1, remote.CallCount("organization_create"))
	assert.Equal(t, []remotecatalogtest.Member{{OrgID: remoteOrg.ID, Username: "klin_sdsc_edu", Role: "editor"}}, remote.Members())
}

func TestEnsureRemoteFailures(t *testing.T) {
	remote := remotecatalogtest.NewServer()
	defer remote.Close()
	svc, _ := newTestService(t, remote)

	org := &domain.Organization{Name: "research-group", Title: "Research Group"}
	user := &remotecatalog.User{Name: "klin_sdsc_edu"}

	remote.FailAction("organization_member_create", http.StatusForbidden)
	_, err := svc.EnsureRemote(context.Background(), user, org)
	assert.ErrorIs(t, err, remotecatalog.ErrRemoteMembership)

	remote.FailAction("organization_show", http.StatusForbidden)
	_, err = svc.EnsureRemote(context.Background(), user, org)
	assert.ErrorIs(t, err, remotecatalog.ErrRemoteLookup)
	assert.Equal(t, 1, remote.CallCount("organization_create"))
}

func TestEnsureLocalAcceptsOrganizationID(t *testing.T) {
	svc, dbConn := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.EnsureLocal(ctx, &accountdomain.Account{ID: 42}, "Research Group")
	require.NoError(t, err)

	again, err := svc.EnsureLocal(ctx, &accountdomain.Account{ID: 43}, first.ID.String())
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "research-group", again.Name)

	var orgs int64
	require.NoError(t, dbConn.Model(&domain.Organization{}).Count(&orgs).Error)
	assert.EqualValues(t, 1, orgs)

	editor, err := svc.IsEditor(ctx, first.ID, 43)
	require.NoError(t, err)
	assert.True(t, editor)
}
