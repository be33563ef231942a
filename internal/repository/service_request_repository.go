package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// ServiceRequestRepository encapsulates service request persistence.
// Ownership is checked by callers; Update additionally filters on owner.
type ServiceRequestRepository interface {
	Create(ctx context.Context, req *domain.ServiceRequest) error
	GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.ServiceRequest, error)
	Update(ctx context.Context, id, ownerID string, patch domain.ServiceRequestPatch, updatedAt time.Time) (*domain.ServiceRequest, error)
	CountByStatus(ctx context.Context) (map[domain.ServiceRequestStatus]int64, error)
}

type serviceRequestRepository struct {
	pool *pgxpool.Pool
}

// NewServiceRequestRepository instantiates repository.
func NewServiceRequestRepository(pool *pgxpool.Pool) ServiceRequestRepository {
	return &serviceRequestRepository{pool: pool}
}

const serviceRequestColumns = `id, owner_id, service_name, customer_name, phone, email, company_name,
               assigned_to, scheduled_at, status, comments, signature, audio_feedback, video_feedback,
               created_at, updated_at`

func (r *serviceRequestRepository) Create(ctx context.Context, req *domain.ServiceRequest) error {
	const query = `
        INSERT INTO service_requests (owner_id, service_name, customer_name, phone, email, company_name,
            assigned_to, scheduled_at, status, comments, signature, audio_feedback, video_feedback,
            created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		req.OwnerID,
		req.ServiceName,
		req.CustomerName,
		req.Phone,
		req.Email,
		req.CompanyName,
		req.AssignedTo,
		req.ScheduledDateTime,
		string(req.Status),
		req.Comments,
		req.Signature,
		req.AudioFeedback,
		req.VideoFeedback,
		req.CreatedAt,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
}

func (r *serviceRequestRepository) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + serviceRequestColumns + ` FROM service_requests WHERE id=$1`
	req, err := scanServiceRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return req, nil
}

// ListByOwner returns the owner's requests oldest first. The id tiebreak keeps
// the order stable for rows created in the same microsecond.
func (r *serviceRequestRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.ServiceRequest, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return []domain.ServiceRequest{}, nil
	}
	query := `SELECT ` + serviceRequestColumns + `
             FROM service_requests WHERE owner_id=$1
             ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.ServiceRequest{}
	for rows.Next() {
		req, err := scanServiceRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

// Update applies the present patch fields in one statement. updated_at never
// moves backwards even if the caller's clock does.
func (r *serviceRequestRepository) Update(ctx context.Context, id, ownerID string, patch domain.ServiceRequestPatch, updatedAt time.Time) (*domain.ServiceRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}
	query := `
        UPDATE service_requests SET
            comments       = COALESCE($3, comments),
            status         = COALESCE($4, status),
            signature      = COALESCE($5, signature),
            audio_feedback = COALESCE($6, audio_feedback),
            video_feedback = COALESCE($7, video_feedback),
            updated_at     = GREATEST(updated_at, $8)
        WHERE id=$1 AND owner_id=$2
        RETURNING ` + serviceRequestColumns
	req, err := scanServiceRequest(r.pool.QueryRow(ctx, query,
		id,
		ownerID,
		patch.Comments,
		status,
		patch.Signature,
		patch.AudioFeedback,
		patch.VideoFeedback,
		updatedAt,
	))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return req, nil
}

func (r *serviceRequestRepository) CountByStatus(ctx context.Context) (map[domain.ServiceRequestStatus]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM service_requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ServiceRequestStatus]int64, len(domain.Statuses))
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[domain.ServiceRequestStatus(status)] = count
	}
	return counts, rows.Err()
}

func scanServiceRequest(row pgx.Row) (*domain.ServiceRequest, error) {
	var req domain.ServiceRequest
	var status string
	if err := row.Scan(
		&req.ID,
		&req.OwnerID,
		&req.ServiceName,
		&req.CustomerName,
		&req.Phone,
		&req.Email,
		&req.CompanyName,
		&req.AssignedTo,
		&req.ScheduledDateTime,
		&status,
		&req.Comments,
		&req.Signature,
		&req.AudioFeedback,
		&req.VideoFeedback,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	req.Status = domain.ServiceRequestStatus(status)
	return &req, nil
}
