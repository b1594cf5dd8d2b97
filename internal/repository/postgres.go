// internal/repository/postgres.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"restaurant-onboarding/internal/common/logger"
	"restaurant-onboarding/internal/models"
)

// PostgresRepository implements ApplicationRepository on PostgreSQL.
//
// Lifecycle updates lock the row, verify the current status against the
// transition's allowed source statuses, apply the update, and append an
// application_audit row, all in one transaction. A row found in a
// disallowed status yields ErrStatusConflict.
type PostgresRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewPostgresRepository(db *sql.DB, log logger.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, log: log}
}

const applicationColumns = `
	id, owner_id, submission_token, fields,
	restaurant_name, cuisine_type, phone, address,
	approval_status, is_approved, is_active, vouched,
	created_at, submitted_at,
	approved_at, approved_by,
	rejected_at, rejected_by, rejection_reason,
	suspended_at, suspended_by, suspension_reason`

func (r *PostgresRepository) Create(ctx context.Context, app *models.RestaurantApplication) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.SubmittedAt = &now
	app.ApprovalStatus = models.StatusSubmitted

	fieldsJSON, err := json.Marshal(app.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode application fields: %w", err)
	}

	query := `
		INSERT INTO restaurant_applications (
			id, owner_id, submission_token, fields,
			restaurant_name, cuisine_type, phone, address,
			approval_status, is_approved, is_active, vouched,
			created_at, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, false, $10, $11, $12)`

	_, err = r.db.ExecContext(ctx, query,
		app.ID, app.OwnerID, app.SubmissionToken, fieldsJSON,
		app.RestaurantName, app.CuisineType, app.Phone, app.Address,
		app.ApprovalStatus, app.Vouched, app.CreatedAt, app.SubmittedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		// 23505 unique_violation: a concurrent finalize with the same
		// submission token already created the row.
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrStatusConflict
		}
		return fmt.Errorf("failed to create application: %w", err)
	}

	r.log.Info("Application created", map[string]interface{}{
		"application_id": app.ID,
		"owner_id":       app.OwnerID,
	})
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.RestaurantApplication, error) {
	query := `SELECT` + applicationColumns + ` FROM restaurant_applications WHERE id = $1`
	return scanApplication(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) FindBySubmissionToken(ctx context.Context, token string) (*models.RestaurantApplication, error) {
	query := `SELECT` + applicationColumns + ` FROM restaurant_applications WHERE submission_token = $1`
	return scanApplication(r.db.QueryRowContext(ctx, query, token))
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row scanner) (*models.RestaurantApplication, error) {
	var (
		app        models.RestaurantApplication
		fieldsJSON []byte

		approvedBy, rejectedBy, rejectionReason sql.NullString
		suspendedBy, suspensionReason           sql.NullString
		submittedAt, approvedAt, rejectedAt     sql.NullTime
		suspendedAt                             sql.NullTime
	)

	err := row.Scan(
		&app.ID, &app.OwnerID, &app.SubmissionToken, &fieldsJSON,
		&app.RestaurantName, &app.CuisineType, &app.Phone, &app.Address,
		&app.ApprovalStatus, &app.IsApproved, &app.IsActive, &app.Vouched,
		&app.CreatedAt, &submittedAt,
		&approvedAt, &approvedBy,
		&rejectedAt, &rejectedBy, &rejectionReason,
		&suspendedAt, &suspendedBy, &suspensionReason,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan application: %w", err)
	}

	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &app.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode application fields: %w", err)
		}
	}

	app.SubmittedAt = nullTimePtr(submittedAt)
	app.ApprovedAt = nullTimePtr(approvedAt)
	app.ApprovedBy = approvedBy.String
	app.RejectedAt = nullTimePtr(rejectedAt)
	app.RejectedBy = rejectedBy.String
	app.RejectionReason = rejectionReason.String
	app.SuspendedAt = nullTimePtr(suspendedAt)
	app.SuspendedBy = suspendedBy.String
	app.SuspensionReason = suspensionReason.String

	return &app, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// transition locks the application row, checks that its current status is in
// the allowed set, runs the update, and appends the audit entry, all
// atomically.
func (r *PostgresRepository) transition(ctx context.Context, id, actor, reason string, allowed []models.ApprovalStatus, toStatus models.ApprovalStatus, updateQuery string, updateArgs ...interface{}) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var fromStatus models.ApprovalStatus
	lockQuery := `SELECT approval_status FROM restaurant_applications WHERE id = $1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, lockQuery, id).Scan(&fromStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock application %s: %w", id, err)
	}

	if !statusIn(fromStatus, allowed) {
		return ErrStatusConflict
	}

	if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
		return fmt.Errorf("failed to update application %s: %w", id, err)
	}

	auditQuery := `
		INSERT INTO application_audit (application_id, from_status, to_status, actor, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, auditQuery, id, fromStatus, toStatus, actor, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record audit entry for %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition for %s: %w", id, err)
	}

	r.log.Info("Application transitioned", map[string]interface{}{
		"application_id": id,
		"from":           string(fromStatus),
		"to":             string(toStatus),
		"actor":          actor,
	})
	return nil
}

func statusIn(status models.ApprovalStatus, allowed []models.ApprovalStatus) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

var reviewableStatuses = []models.ApprovalStatus{
	models.StatusSubmitted, models.StatusPending, models.StatusUnderReview,
}

func (r *PostgresRepository) MarkSubmitted(ctx context.Context, id, actor string) error {
	query := `
		UPDATE restaurant_applications
		SET approval_status = 'submitted', submitted_at = NOW()
		WHERE id = $1`
	return r.transition(ctx, id, actor, "",
		[]models.ApprovalStatus{models.StatusDraft}, models.StatusSubmitted, query, id)
}

func (r *PostgresRepository) MarkApproved(ctx context.Context, id, actor string) error {
	// Clears only the rejection reason: rejected_at/rejected_by stay as a
	// historical record, the reason is a current-state field.
	query := `
		UPDATE restaurant_applications
		SET approval_status = 'approved', is_approved = true, is_active = true,
		    approved_at = NOW(), approved_by = $2,
		    rejection_reason = NULL
		WHERE id = $1`
	return r.transition(ctx, id, actor, "",
		reviewableStatuses, models.StatusApproved, query, id, actor)
}

func (r *PostgresRepository) MarkRejected(ctx context.Context, id, actor, reason string) error {
	query := `
		UPDATE restaurant_applications
		SET approval_status = 'rejected', is_approved = false, is_active = false,
		    rejected_at = NOW(), rejected_by = $2, rejection_reason = $3
		WHERE id = $1`
	return r.transition(ctx, id, actor, reason,
		reviewableStatuses, models.StatusRejected, query, id, actor, reason)
}

func (r *PostgresRepository) MarkSuspended(ctx context.Context, id, actor, reason string) error {
	query := `
		UPDATE restaurant_applications
		SET approval_status = 'suspended', is_active = false,
		    suspended_at = NOW(), suspended_by = $2, suspension_reason = $3
		WHERE id = $1`
	return r.transition(ctx, id, actor, reason,
		[]models.ApprovalStatus{models.StatusApproved}, models.StatusSuspended, query, id, actor, reason)
}

func (r *PostgresRepository) MarkReactivated(ctx context.Context, id, actor string) error {
	// suspended_at/suspended_by stay: timestamps are a historical record.
	query := `
		UPDATE restaurant_applications
		SET approval_status = 'approved', is_active = true,
		    suspension_reason = NULL
		WHERE id = $1`
	return r.transition(ctx, id, actor, "",
		[]models.ApprovalStatus{models.StatusSuspended}, models.StatusApproved, query, id)
}

func (r *PostgresRepository) MarkExpired(ctx context.Context, id, actor string) error {
	query := `
		UPDATE restaurant_applications
		SET approval_status = 'expired', is_active = false
		WHERE id = $1`
	return r.transition(ctx, id, actor, "",
		reviewableStatuses, models.StatusExpired, query, id)
}

func (r *PostgresRepository) FindPending(ctx context.Context) ([]*models.RestaurantApplication, error) {
	query := `SELECT` + applicationColumns + `
		FROM restaurant_applications
		WHERE approval_status IN ('submitted', 'pending', 'under_review')
		ORDER BY submitted_at ASC`
	return r.queryMany(ctx, query)
}

func (r *PostgresRepository) FindStalePending(ctx context.Context, submittedBefore time.Time) ([]*models.RestaurantApplication, error) {
	query := `SELECT` + applicationColumns + `
		FROM restaurant_applications
		WHERE approval_status IN ('submitted', 'pending', 'under_review')
		  AND submitted_at < $1
		ORDER BY submitted_at ASC`
	return r.queryMany(ctx, query, submittedBefore)
}

func (r *PostgresRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*models.RestaurantApplication, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.RestaurantApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applications: %w", err)
	}
	return apps, nil
}

func (r *PostgresRepository) CountOwnerApproved(ctx context.Context, ownerID string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM restaurant_applications
		WHERE owner_id = $1 AND approval_status = 'approved'`
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count approved applications for %s: %w", ownerID, err)
	}
	return count, nil
}

func (r *PostgresRepository) OwnerAverageRating(ctx context.Context, ownerID string) (float64, error) {
	var rating sql.NullFloat64
	query := `
		SELECT AVG(rr.rating)
		FROM restaurant_ratings rr
		JOIN restaurant_applications ra ON ra.id = rr.application_id
		WHERE ra.owner_id = $1 AND ra.approval_status = 'approved'`
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&rating); err != nil {
		return 0, fmt.Errorf("failed to compute average rating for %s: %w", ownerID, err)
	}
	return rating.Float64, nil
}

func (r *PostgresRepository) GetOwnerProfile(ctx context.Context, ownerID string) (*models.OwnerProfile, error) {
	var profile models.OwnerProfile
	query := `SELECT user_id, email, phone, active, verified FROM users WHERE user_id = $1`
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&profile.UserID, &profile.Email, &profile.Phone, &profile.Active, &profile.Verified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load owner profile %s: %w", ownerID, err)
	}
	return &profile, nil
}

func (r *PostgresRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}
