package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// HistoryRepository stores service request audit entries.
type HistoryRepository interface {
	Create(ctx context.Context, entry *domain.ServiceRequestHistory) error
	ListByServiceRequest(ctx context.Context, serviceRequestID string) ([]domain.ServiceRequestHistory, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository builds repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) Create(ctx context.Context, entry *domain.ServiceRequestHistory) error {
	const query = `
        INSERT INTO service_request_history (service_request_id, change_type, from_status, to_status, changed_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	var from *string
	if entry.FromStatus != nil {
		s := string(*entry.FromStatus)
		from = &s
	}
	return r.pool.QueryRow(ctx, query,
		entry.ServiceRequestID,
		string(entry.ChangeType),
		from,
		string(entry.ToStatus),
		entry.ChangedBy,
		entry.CreatedAt,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *historyRepository) ListByServiceRequest(ctx context.Context, serviceRequestID string) ([]domain.ServiceRequestHistory, error) {
	if _, err := uuid.Parse(serviceRequestID); err != nil {
		return []domain.ServiceRequestHistory{}, nil
	}
	const query = `
        SELECT id, service_request_id, change_type, from_status, to_status, changed_by, created_at
        FROM service_request_history WHERE service_request_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, serviceRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.ServiceRequestHistory{}
	for rows.Next() {
		var (
			entry      domain.ServiceRequestHistory
			changeType string
			from       *string
			to         string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.ServiceRequestID,
			&changeType,
			&from,
			&to,
			&entry.ChangedBy,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.ChangeType = domain.HistoryChangeType(changeType)
		entry.ToStatus = domain.ServiceRequestStatus(to)
		if from != nil {
			status := domain.ServiceRequestStatus(*from)
			entry.FromStatus = &status
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
