package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jamolstroy/jamolstroy-service/internal/infra/postgres"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("workers-service")

var ErrWorkerNotFound = errors.New("worker not found")

// Worker is a construction professional listed for hire. DailyRate is in
// minor currency units.
type Worker struct {
	ID         uuid.UUID `json:"id" db:"id"`
	FullName   string    `json:"full_name" db:"full_name"`
	Profession string    `json:"profession" db:"profession"`
	Phone      string    `json:"phone" db:"phone"`
	DailyRate  int64     `json:"daily_rate" db:"daily_rate"`
	Experience int       `json:"experience_years" db:"experience_years"`
	Bio        *string   `json:"bio" db:"bio"`
	PhotoURL   *string   `json:"photo_url" db:"photo_url"`
	Available  bool      `json:"available" db:"available"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Filter narrows worker listings. Zero values mean no constraint.
type Filter struct {
	Profession    string
	OnlyAvailable bool
}

type CreateWorkerRequest struct {
	FullName   string
	Profession string
	Phone      string
	DailyRate  int64
	Experience int
	Bio        *string
	PhotoURL   *string
}

// WorkerUpdate holds the admin-editable listing fields; nil leaves a field unchanged.
type WorkerUpdate struct {
	FullName   *string
	Profession *string
	Phone      *string
	DailyRate  *int64
	Experience *int
	Bio        *string
	PhotoURL   *string
	Available  *bool
}

type Service struct {
	db     postgres.DB
	logger *slog.Logger
}

func NewService(db postgres.DB, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With("component", "workers-service"),
	}
}

const workerColumns = `id, full_name, profession, phone, daily_rate, experience_years, bio, photo_url, available, created_at, updated_at`

func scanWorker(row pgx.Row) (*Worker, error) {
	var w Worker
	err := row.Scan(
		&w.ID,
		&w.FullName,
		&w.Profession,
		&w.Phone,
		&w.DailyRate,
		&w.Experience,
		&w.Bio,
		&w.PhotoURL,
		&w.Available,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWorkers returns listings matching the filter, most experienced first.
func (s *Service) ListWorkers(ctx context.Context, filter Filter) ([]*Worker, error) {
	ctx, span := tracer.Start(ctx, "workers.ListWorkers")
	defer span.End()

	query := `
		SELECT ` + workerColumns + `
		FROM workers
		WHERE ($1 = '' OR profession = $1)
		  AND ($2 = false OR available = true)
		ORDER BY experience_years DESC, full_name
	`

	rows, err := s.db.Query(ctx, query, filter.Profession, filter.OnlyAvailable)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query workers: %w", err)
	}
	defer rows.Close()

	var workers []*Worker
	for rows.Next() {
		worker, err := scanWorker(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, worker)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating workers: %w", err)
	}

	return workers, nil
}

// ListProfessions returns the distinct professions present in the listings,
// for building filter menus.
func (s *Service) ListProfessions(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "workers.ListProfessions")
	defer span.End()

	rows, err := s.db.Query(ctx, `SELECT DISTINCT profession FROM workers ORDER BY profession`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query professions: %w", err)
	}
	defer rows.Close()

	var professions []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan profession: %w", err)
		}
		professions = append(professions, p)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating professions: %w", err)
	}

	return professions, nil
}

func (s *Service) GetWorkerByID(ctx context.Context, id uuid.UUID) (*Worker, error) {
	ctx, span := tracer.Start(ctx, "workers.GetWorkerByID")
	defer span.End()

	query := `
		SELECT ` + workerColumns + `
		FROM workers
		WHERE id = $1
	`

	worker, err := scanWorker(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWorkerNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get worker %s: %w", id.String(), err)
	}

	return worker, nil
}

func (s *Service) CreateWorker(ctx context.Context, req CreateWorkerRequest) (*Worker, error) {
	ctx, span := tracer.Start(ctx, "workers.CreateWorker")
	defer span.End()

	query := `
		INSERT INTO workers (full_name, profession, phone, daily_rate, experience_years, bio, photo_url, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, NOW(), NOW())
		RETURNING ` + workerColumns

	worker, err := scanWorker(s.db.QueryRow(ctx, query,
		req.FullName,
		req.Profession,
		req.Phone,
		req.DailyRate,
		req.Experience,
		req.Bio,
		req.PhotoURL,
	))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create worker: %w", err)
	}

	s.logger.Info("Worker listing created",
		"worker_id", worker.ID.String(),
		"profession", worker.Profession)

	return worker, nil
}

func (s *Service) UpdateWorker(ctx context.Context, id uuid.UUID, update WorkerUpdate) (*Worker, error) {
	ctx, span := tracer.Start(ctx, "workers.UpdateWorker")
	defer span.End()

	query := `
		UPDATE workers
		SET full_name = COALESCE($2, full_name),
		    profession = COALESCE($3, profession),
		    phone = COALESCE($4, phone),
		    daily_rate = COALESCE($5, daily_rate),
		    experience_years = COALESCE($6, experience_years),
		    bio = COALESCE($7, bio),
		    photo_url = COALESCE($8, photo_url),
		    available = COALESCE($9, available),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + workerColumns

	worker, err := scanWorker(s.db.QueryRow(ctx, query,
		id,
		update.FullName,
		update.Profession,
		update.Phone,
		update.DailyRate,
		update.Experience,
		update.Bio,
		update.PhotoURL,
		update.Available,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWorkerNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update worker %s: %w", id.String(), err)
	}

	return worker, nil
}

func (s *Service) DeleteWorker(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "workers.DeleteWorker")
	defer span.End()

	tag, err := s.db.Exec(ctx, `DELETE FROM workers WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete worker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkerNotFound
	}

	return nil
}
