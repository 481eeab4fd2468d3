// Package postgres provides the PostgreSQL-backed Repository, wired through
// the pgx stdlib driver with schema migrations applied by goose.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/bundler/internal/bundler/migrations"
	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/common"
	"github.com/dmitrijs2005/bundler/internal/dbx"
)

// Repository implements the persistence contract over a dbx.DBTX-compatible
// database handle.
type Repository struct {
	db *sql.DB
}

// New constructs a Repository bound to the given database.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Open connects to the DSN, verifies the connection, and applies pending
// migrations.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	r := New(db)
	if err := r.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return r, nil
}

// RunMigrations sets up goose with the embedded migrations and runs them.
func (r *Repository) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, r.db, ".")
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error {
	return r.db.Close()
}

const jobColumns = `job_id, user_name, archive_type, archive_size,
	total_size, total_size_complete, num_files, num_files_complete,
	num_archives, num_archives_complete, state, start_time, end_time`

const archiveColumns = `job_id, archive_id, archive_type, archive_file,
	archive_url, hash_file, hash_url, host_name, server_name,
	start_time, end_time, num_files, size, state`

func scanJob(row *sql.Row) (*model.Job, error) {
	var j model.Job
	err := row.Scan(
		&j.JobID, &j.UserName, &j.Type, &j.ArchiveSize,
		&j.TotalSize, &j.TotalSizeComplete, &j.NumFiles, &j.NumFilesComplete,
		&j.NumArchives, &j.NumArchivesComplete, &j.State, &j.StartTime, &j.EndTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &j, nil
}

func (r *Repository) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id=$1`, jobID)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: job %s", common.ErrNotFound, jobID)
		}
		return nil, err
	}

	archives, err := r.selectArchives(ctx, r.db, jobID)
	if err != nil {
		return nil, err
	}
	entries, err := r.selectEntries(ctx, jobID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.ArchiveJob, len(archives))
	for _, a := range archives {
		byID[a.ArchiveID] = a
	}
	for _, f := range entries {
		if a, ok := byID[f.ArchiveID]; ok {
			a.Files = append(a.Files, f)
		}
	}
	j.Archives = archives
	return j, nil
}

func (r *Repository) GetArchive(ctx context.Context, jobID string, archiveID int64) (*model.ArchiveJob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+archiveColumns+` FROM archive_jobs WHERE job_id=$1 AND archive_id=$2`,
		jobID, archiveID)

	var a model.ArchiveJob
	err := row.Scan(
		&a.JobID, &a.ArchiveID, &a.Type, &a.Archive,
		&a.ArchiveURL, &a.Hash, &a.HashURL, &a.HostName, &a.ServerName,
		&a.StartTime, &a.EndTime, &a.NumFiles, &a.Size, &a.State,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %s archive %d", common.ErrNotFound, jobID, archiveID)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT job_id, archive_id, path, entry_path, size, state
		 FROM file_entries WHERE job_id=$1 AND archive_id=$2 ORDER BY ord`,
		jobID, archiveID)
	if err != nil {
		return nil, fmt.Errorf("selecting file entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f model.FileEntry
		if err := rows.Scan(&f.JobID, &f.ArchiveID, &f.Path, &f.EntryPath, &f.Size, &f.State); err != nil {
			return nil, err
		}
		a.Files = append(a.Files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) GetFileEntry(ctx context.Context, jobID string, archiveID int64, path string) (*model.FileEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT job_id, archive_id, path, entry_path, size, state
		 FROM file_entries WHERE job_id=$1 AND archive_id=$2 AND path=$3`,
		jobID, archiveID, path)

	var f model.FileEntry
	err := row.Scan(&f.JobID, &f.ArchiveID, &f.Path, &f.EntryPath, &f.Size, &f.State)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %s archive %d entry %s",
				common.ErrNotFound, jobID, archiveID, path)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &f, nil
}

func (r *Repository) ListJobIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT job_id FROM jobs ORDER BY job_id`)
	if err != nil {
		return nil, fmt.Errorf("selecting job ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// PersistJob stores the whole job tree in one transaction.
func (r *Repository) PersistJob(ctx context.Context, job *model.Job) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (`+jobColumns+`)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			job.JobID, job.UserName, job.Type, job.ArchiveSize,
			job.TotalSize, job.TotalSizeComplete, job.NumFiles, job.NumFilesComplete,
			job.NumArchives, job.NumArchivesComplete, job.State, job.StartTime, job.EndTime,
		)
		if err != nil {
			return fmt.Errorf("inserting job: %w", err)
		}
		for _, a := range job.Archives {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO archive_jobs (`+archiveColumns+`)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
				a.JobID, a.ArchiveID, a.Type, a.Archive,
				a.ArchiveURL, a.Hash, a.HashURL, a.HostName, a.ServerName,
				a.StartTime, a.EndTime, a.NumFiles, a.Size, a.State,
			)
			if err != nil {
				return fmt.Errorf("inserting archive %d: %w", a.ArchiveID, err)
			}
			for i, f := range a.Files {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO file_entries (job_id, archive_id, path, ord, entry_path, size, state)
					 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
					f.JobID, f.ArchiveID, f.Path, int64(i), f.EntryPath, f.Size, f.State,
				)
				if err != nil {
					return fmt.Errorf("inserting file entry %s: %w", f.Path, err)
				}
			}
		}
		return nil
	})
}

func (r *Repository) UpdateJob(ctx context.Context, job *model.Job) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET user_name=$2, archive_type=$3, archive_size=$4,
			total_size=$5, total_size_complete=$6,
			num_files=$7, num_files_complete=$8,
			num_archives=$9, num_archives_complete=$10,
			state=$11, start_time=$12, end_time=$13
		 WHERE job_id=$1`,
		job.JobID, job.UserName, job.Type, job.ArchiveSize,
		job.TotalSize, job.TotalSizeComplete,
		job.NumFiles, job.NumFilesComplete,
		job.NumArchives, job.NumArchivesComplete,
		job.State, job.StartTime, job.EndTime,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOneRow(res, fmt.Sprintf("job %s", job.JobID))
}

func (r *Repository) UpdateArchive(ctx context.Context, archive *model.ArchiveJob) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE archive_jobs SET archive_type=$3, archive_file=$4,
			archive_url=$5, hash_file=$6, hash_url=$7,
			host_name=$8, server_name=$9,
			start_time=$10, end_time=$11, num_files=$12, size=$13, state=$14
		 WHERE job_id=$1 AND archive_id=$2`,
		archive.JobID, archive.ArchiveID, archive.Type, archive.Archive,
		archive.ArchiveURL, archive.Hash, archive.HashURL,
		archive.HostName, archive.ServerName,
		archive.StartTime, archive.EndTime, archive.NumFiles, archive.Size, archive.State,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOneRow(res, fmt.Sprintf("job %s archive %d", archive.JobID, archive.ArchiveID))
}

func (r *Repository) UpdateFileEntryState(ctx context.Context, jobID string, archiveID int64, path string, state model.JobState) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE file_entries SET state=$4
		 WHERE job_id=$1 AND archive_id=$2 AND path=$3`,
		jobID, archiveID, path, state,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOneRow(res, fmt.Sprintf("job %s archive %d entry %s", jobID, archiveID, path))
}

// selectArchives loads the archive rows of a job, ordered by id.
func (r *Repository) selectArchives(ctx context.Context, db dbx.DBTX, jobID string) ([]*model.ArchiveJob, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+archiveColumns+` FROM archive_jobs WHERE job_id=$1 ORDER BY archive_id`,
		jobID)
	if err != nil {
		return nil, fmt.Errorf("selecting archives: %w", err)
	}
	defer rows.Close()
	var out []*model.ArchiveJob
	for rows.Next() {
		var a model.ArchiveJob
		if err := rows.Scan(
			&a.JobID, &a.ArchiveID, &a.Type, &a.Archive,
			&a.ArchiveURL, &a.Hash, &a.HashURL, &a.HostName, &a.ServerName,
			&a.StartTime, &a.EndTime, &a.NumFiles, &a.Size, &a.State,
		); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// selectEntries loads all file entry rows of a job.
func (r *Repository) selectEntries(ctx context.Context, jobID string) ([]*model.FileEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT job_id, archive_id, path, entry_path, size, state
		 FROM file_entries WHERE job_id=$1 ORDER BY archive_id, ord`,
		jobID)
	if err != nil {
		return nil, fmt.Errorf("selecting file entries: %w", err)
	}
	defer rows.Close()
	var out []*model.FileEntry
	for rows.Next() {
		var f model.FileEntry
		if err := rows.Scan(&f.JobID, &f.ArchiveID, &f.Path, &f.EntryPath, &f.Size, &f.State); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// requireOneRow maps zero affected rows onto ErrNotFound.
func requireOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%w: %s", common.ErrNotFound, what)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
