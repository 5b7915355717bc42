package approval

import (
	"context"
	"testing"
	"time"

	accountdomain "github.com/smallbiznis/ndpcatalog/internal/account/domain"
	"github.com/smallbiznis/ndpcatalog/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGateAuthorize(t *testing.T) {
	gate, err := NewGate(config.NewStaticReviewerRoster([]string{"klin_sdsc_edu"}), zap.NewNop())
	require.NoError(t, err)

	reviewer := &accountdomain.Account{Name: "klin_sdsc_edu"}
	assert.True(t, gate.CanReview(reviewer))
	assert.NoError(t, gate.Authorize(reviewer, ObjectDataset, ActionReject))
	assert.NoError(t, gate.Authorize(reviewer, ObjectAuditLog, ActionAuditLogView))

	assert.False(t, gate.CanReview(&accountdomain.Account{Name: "alice_example_com"}))
	assert.False(t, gate.CanReview(nil))
	assert.True(t, gate.CanReview(&accountdomain.Account{Name: "root", Sysadmin: true}))

	assert.ErrorIs(t, gate.Authorize(reviewer, ObjectDataset, "dataset.purge"), ErrNotAuthorized)
}

func TestGateRebuildsOnReload(t *testing.T) {
	gate, err := NewGate(config.NewStaticReviewerRoster([]string{"klin_sdsc_edu"}), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, gate.rebuild([]string{"pkarmakar_ucsd_edu"}))
	assert.False(t, gate.CanReview(&accountdomain.Account{Name: "klin_sdsc_edu"}))
	assert.True(t, gate.CanReview(&accountdomain.Account{Name: "pkarmakar_ucsd_edu"}))
}

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	token, ok, err := locker.TryLock(ctx, "approval:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "approval:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// a stale token does not release someone else's lock
	require.NoError(t, locker.Release(ctx, "approval:1", "stale"))
	_, ok, _ = locker.TryLock(ctx, "approval:1", time.Minute)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "approval:1", token))
	_, ok, _ = locker.TryLock(ctx, "approval:1", time.Minute)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = locker.TryLock(ctx, "approval:1", time.Minute)
	assert.True(t, ok, "expired locks are reclaimed")

	_, _, err = locker.TryLock(ctx, "", time.Minute)
	assert.Error(t, err)
}

func TestBuildPayloadStripsLocalIdentifiers(t *testing.T) {
	local := map[string]any{
		"id":              "42",
		"name":            "ocean-temps",
		"creator_user_id": "101",
		"owner_org":       "7",
		"organization":    map[string]any{"id": "7", "name": "scripps-lab"},
		"tags":            []any{"ocean"},
		"resources": []any{
			map[string]any{"id": "r1", "package_id": "42", "url": "https://example.org/a.csv"},
		},
	}

	payload := BuildPayload(local, "org-9")

	assert.NotContains(t, payload, "id")
	assert.NotContains(t, payload, "creator_user_id")
	assert.NotContains(t, payload, "organization")
	assert.Equal(t, "org-9", payload["owner_org"])
	assert.Equal(t, "ocean-temps", payload["name"])
	res := payload["resources"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"url": "https://example.org/a.csv"}, res)

	// input is untouched
	assert.Equal(t, "42", local["id"])
	assert.Equal(t, "7", local["owner_org"])
	assert.Contains(t, local["resources"].([]any)[0].(map[string]any), "package_id")
}
