package approval

import (
	"errors"
	"fmt"

	datasetdomain "github.com/smallbiznis/ndpcatalog/internal/dataset/domain"
)

var (
	ErrNotAuthorized      = errors.New("reviewer_not_authorized")
	ErrNotFound           = datasetdomain.ErrNotFound
	ErrAlreadyDeleted     = errors.New("dataset_already_deleted")
	ErrApprovalInProgress = errors.New("approval_in_progress")
	// ErrPostMigrationCleanup means the remote copy exists but the staging
	// dataset could not be purged.
	ErrPostMigrationCleanup = errors.New("post_migration_cleanup_failed")
)

// PostMigrationCleanupError carries both identifiers of a dataset that now
// exists in staging and production.
type PostMigrationCleanupError struct {
	DatasetID string
	RemoteID  string
	Err       error
}

func (e *PostMigrationCleanupError) Error() string {
	return fmt.Sprintf("dataset %s migrated as %s but staging purge failed: %v", e.DatasetID, e.RemoteID, e.Err)
}

func (e *PostMigrationCleanupError) Unwrap() []error {
	return []error{ErrPostMigrationCleanup, e.Err}
}
