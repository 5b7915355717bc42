package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/ndpcatalog/internal/account/domain"
	"github.com/smallbiznis/ndpcatalog/internal/dataset/domain"
	"github.com/smallbiznis/ndpcatalog/internal/dataset/repository"
	orgdomain "github.com/smallbiznis/ndpcatalog/internal/organization/domain"
	orgrepository "github.com/smallbiznis/ndpcatalog/internal/organization/repository"
	orgservice "github.com/smallbiznis/ndpcatalog/internal/organization/service"
	"github.com/smallbiznis/ndpcatalog/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc   domain.Service
	orgs  orgdomain.Service
	alice *accountdomain.Account
	bob   *accountdomain.Account
	admin *accountdomain.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.Member{},
		&domain.Dataset{},
		&domain.Resource{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	orgs := orgservice.NewService(orgservice.Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		Repo:  orgrepository.NewRepository(dbConn),
		GenID: node,
	})

	return &fixture{
		svc: NewService(Params{
			DB:    dbConn,
			Log:   zap.NewNop(),
			Repo:  repository.NewRepository(dbConn),
			Orgs:  orgs,
			GenID: node,
		}),
		orgs:  orgs,
		alice: &accountdomain.Account{ID: 101, Name: "alice_example_com"},
		bob:   &accountdomain.Account{ID: 102, Name: "bob_example_com"},
		admin: &accountdomain.Account{ID: 103, Name: "root", Sysadmin: true},
	}
}

func as(acc *accountdomain.Account) domain.ActionContext {
	return domain.ActionContext{Account: acc}
}

func TestCreateDefaultsNameAndRendersDict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, err := f.orgs.EnsureLocal(ctx, f.alice, "Research Group")
	require.NoError(t, err)

	created, err := f.svc.Create(ctx, as(f.alice), domain.Dict{
		"title":     "Ocean Temperature 2024",
		"notes":     "buoy readings",
		"owner_org": org.Name,
		"license":   "cc-by",
		"resources": []any{
			map[string]any{"name": "raw", "url": "https://example.org/raw.csv", "format": "CSV", "checksum": "abc"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "ocean-temperature-2024", created["name"])
	assert.Equal(t, "cc-by", created["license"])
	assert.Equal(t, org.ID.String(), created["owner_org"])
	assert.Equal(t, "101", created["creator_user_id"])
	assert.Equal(t, domain.StateActive, created["state"])

	orgDict, ok := created["organization"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "research-group", orgDict["name"])

	resources, ok := created["resources"].([]any)
	require.True(t, ok)
	require.Len(t, resources, 1)
	res := resources[0].(map[string]any)
	assert.Equal(t, created["id"], res["package_id"])
	assert.Equal(t, "abc", res["checksum"])
	assert.NotEmpty(t, res["id"])

	shown, err := f.svc.Show(ctx, as(f.bob), created["name"].(string))
	require.NoError(t, err)
	assert.Equal(t, created["id"], shown["id"])
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, as(f.alice), domain.Dict{"title": "Same"})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, as(f.alice), domain.Dict{"title": "Same"})
	assert.ErrorIs(t, err, domain.ErrNameTaken)

	_, err = f.svc.Create(ctx, as(f.alice), domain.Dict{})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = f.svc.Create(ctx, as(f.alice), domain.Dict{"name": "Bad Name!"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = f.svc.Create(ctx, as(f.alice), domain.Dict{"title": "x1", "owner_org": "nowhere"})
	assert.ErrorIs(t, err, domain.ErrInvalidOwnerOrg)

	_, err = f.svc.Create(ctx, as(f.alice), domain.Dict{"title": "x2", "resources": "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidResource)

	_, err = f.svc.Create(ctx, domain.ActionContext{}, domain.Dict{"title": "x3"})
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestCreateRequiresEditorOnOwnerOrg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, err := f.orgs.EnsureLocal(ctx, f.alice, "Research Group")
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, as(f.bob), domain.Dict{"title": "Bob Data", "owner_org": org.Name})
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = f.svc.Create(ctx, as(f.admin), domain.Dict{"title": "Admin Data", "owner_org": org.Name})
	assert.NoError(t, err)
}

func TestUpdateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, as(f.alice), domain.Dict{
		"title":     "Soil Samples",
		"resources": []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}},
	})
	require.NoError(t, err)
	id := created["id"].(string)

	_, err = f.svc.Update(ctx, as(f.bob), domain.Dict{"id": id, "title": "hijack"})
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	updated, err := f.svc.Update(ctx, as(f.alice), domain.Dict{"id": id, "title": "Soil Samples v2", "region": "west"})
	require.NoError(t, err)
	assert.Equal(t, "Soil Samples v2", updated["title"])
	assert.Equal(t, "soil-samples", updated["name"])
	assert.Equal(t, "west", updated["region"])
	assert.Len(t, updated["resources"], 2)

	updated, err = f.svc.Update(ctx, as(f.admin), domain.Dict{"id": id, "resources": []any{map[string]any{"name": "c"}}})
	require.NoError(t, err)
	resources := updated["resources"].([]any)
	require.Len(t, resources, 1)
	assert.Equal(t, "c", resources[0].(map[string]any)["name"])

	_, err = f.svc.Update(ctx, as(f.alice), domain.Dict{"title": "no id"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestDeleteAndPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, as(f.alice), domain.Dict{"title": "Tide Gauges"})
	require.NoError(t, err)
	id := created["id"].(string)

	assert.ErrorIs(t, f.svc.Delete(ctx, as(f.bob), id), domain.ErrNotAuthorized)
	require.NoError(t, f.svc.Delete(ctx, as(f.alice), id))
	require.NoError(t, f.svc.Delete(ctx, as(f.alice), id))

	_, err = f.svc.Show(ctx, as(f.bob), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	shown, err := f.svc.Show(ctx, domain.ActionContext{IgnoreAuth: true}, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDeleted, shown["state"])

	assert.ErrorIs(t, f.svc.Purge(ctx, as(f.bob), id), domain.ErrNotAuthorized)
	require.NoError(t, f.svc.Purge(ctx, as(f.alice), id))

	_, err = f.svc.Show(ctx, domain.ActionContext{IgnoreAuth: true}, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Purge(ctx, as(f.alice), id), domain.ErrNotFound)
}

func TestPrivateDatasetVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, err := f.orgs.EnsureLocal(ctx, f.alice, "Research Group")
	require.NoError(t, err)
	created, err := f.svc.Create(ctx, as(f.alice), domain.Dict{"title": "Secret", "private": true, "owner_org": org.Name})
	require.NoError(t, err)
	id := created["id"].(string)

	_, err = f.svc.Show(ctx, as(f.bob), id)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = f.orgs.EnsureLocal(ctx, f.bob, "Research Group")
	require.NoError(t, err)
	_, err = f.svc.Show(ctx, as(f.bob), id)
	assert.NoError(t, err)
}

func TestSearchByCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, title := range []string{"One", "Two", "Three"} {
		_, err := f.svc.Create(ctx, as(f.alice), domain.Dict{"title": title})
		require.NoError(t, err)
	}
	_, err := f.svc.Create(ctx, as(f.bob), domain.Dict{"title": "Bobs"})
	require.NoError(t, err)
	hidden, err := f.svc.Create(ctx, as(f.alice), domain.Dict{"title": "Hidden", "private": true})
	require.NoError(t, err)
	gone, err := f.svc.Create(ctx, as(f.alice), domain.Dict{"title": "Gone"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, as(f.alice), gone["id"].(string)))

	mine, err := f.svc.Search(ctx, as(f.alice), domain.SearchRequest{Q: "creator_user_id:101", Rows: 5000})
	require.NoError(t, err)
	assert.EqualValues(t, 4, mine.Count)
	assert.Len(t, mine.Results, 4)

	theirs, err := f.svc.Search(ctx, as(f.bob), domain.SearchRequest{Q: "creator_user_id:101"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, theirs.Count)
	for _, d := range theirs.Results {
		assert.NotEqual(t, hidden["id"], d["id"])
	}

	limited, err := f.svc.Search(ctx, as(f.alice), domain.SearchRequest{Q: "creator_user_id:101", Rows: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, limited.Count)
	assert.Len(t, limited.Results, 2)

	_, err = f.svc.Search(ctx, as(f.alice), domain.SearchRequest{Q: "creator_user_id:abc"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	text, err := f.svc.Search(ctx, as(f.alice), domain.SearchRequest{Q: "bob"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, text.Count)
}
