package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	query := `
		INSERT INTO enhancement_jobs (
			id, user_id, video_key, output_key, status, stride,
			upscale, weight, tile_size, model_version,
			decoded_frames, frame_count, file_size, duration,
			attempt, max_attempts, failure_kind, error_message,
			created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.OutputKey, string(job.Status), job.Stride,
		job.Enhancement.Upscale, job.Enhancement.Weight, job.Enhancement.TileSize, job.Enhancement.ModelVersion,
		job.DecodedFrames, job.FrameCount, job.FileSize, job.Duration,
		job.Attempt, job.MaxAttempts, job.FailureKind, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	query := `
		UPDATE enhancement_jobs SET
			status=$2, output_key=$3, decoded_frames=$4, frame_count=$5,
			duration=$6, attempt=$7, failure_kind=$8, error_message=$9,
			updated_at=$10, completed_at=$11
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.OutputKey, job.DecodedFrames, job.FrameCount,
		job.Duration, job.Attempt, job.FailureKind, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query := `
		SELECT id, user_id, video_key, output_key, status, stride,
			upscale, weight, tile_size, model_version,
			decoded_frames, frame_count, file_size, duration,
			attempt, max_attempts, failure_kind, error_message,
			created_at, updated_at, completed_at
		FROM enhancement_jobs WHERE id=$1`

	job := &entity.Job{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.OutputKey, &status, &job.Stride,
		&job.Enhancement.Upscale, &job.Enhancement.Weight, &job.Enhancement.TileSize, &job.Enhancement.ModelVersion,
		&job.DecodedFrames, &job.FrameCount, &job.FileSize, &job.Duration,
		&job.Attempt, &job.MaxAttempts, &job.FailureKind, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}
