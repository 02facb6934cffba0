package upload

import (
	"context"
	"database/sql"
	"time"
)

var (
	_ TaskStore     = (*PGTaskStore)(nil)
	_ ArtifactStore = (*PGArtifactStore)(nil)
)

// PGTaskStore implements TaskStore using PostgreSQL.
type PGTaskStore struct {
	db *sql.DB
}

func NewPGTaskStore(db *sql.DB) *PGTaskStore {
	return &PGTaskStore{db: db}
}

const taskColumns = `id, user_id, file_name, file_size, chunk_size, public, total_chunks, received, chunks, status, file_id, error, created_at, updated_at`

func (s *PGTaskStore) Create(ctx context.Context, t *Task) error {
	_, err := s.db.ExecContext(ctx,
		`insert into upload_tasks(`+taskColumns+`)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		t.ID, t.UserID, t.FileName, t.FileSize, t.ChunkSize, t.Public, t.TotalChunks,
		t.Received, t.Chunks, string(t.Status), t.FileID, t.Error, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *PGTaskStore) Find(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+taskColumns+` from upload_tasks where id=$1`, id)
	return scanTask(row)
}

func (s *PGTaskStore) Update(ctx context.Context, t *Task) error {
	res, err := s.db.ExecContext(ctx,
		`update upload_tasks
		 set received=$2, chunks=$3, status=$4, file_id=$5, error=$6, updated_at=$7
		 where id=$1`,
		t.ID, t.Received, t.Chunks, string(t.Status), t.FileID, t.Error, t.UpdatedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGTaskStore) ListUnfinished(ctx context.Context, cutoff time.Time) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+taskColumns+` from upload_tasks
		 where status not in ('completed','failed') and updated_at < $1`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTaskRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTask(row *sql.Row) (*Task, error) {
	var t Task
	var status string
	err := row.Scan(&t.ID, &t.UserID, &t.FileName, &t.FileSize, &t.ChunkSize,
		&t.Public, &t.TotalChunks, &t.Received, &t.Chunks, &status, &t.FileID,
		&t.Error, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.Status = Status(status)
	return &t, nil
}

func scanTaskRows(rows *sql.Rows) (*Task, error) {
	var t Task
	var status string
	err := rows.Scan(&t.ID, &t.UserID, &t.FileName, &t.FileSize, &t.ChunkSize,
		&t.Public, &t.TotalChunks, &t.Received, &t.Chunks, &status, &t.FileID,
		&t.Error, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	return &t, nil
}

// PGArtifactStore implements ArtifactStore using PostgreSQL.
type PGArtifactStore struct {
	db *sql.DB
}

func NewPGArtifactStore(db *sql.DB) *PGArtifactStore {
	return &PGArtifactStore{db: db}
}

const artifactColumns = `id, user_id, name, size, location, event_count, parameter_count, is_public, created_at`

func (s *PGArtifactStore) Create(ctx context.Context, a *Artifact) error {
	_, err := s.db.ExecContext(ctx,
		`insert into fcs_files(`+artifactColumns+`)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.UserID, a.Name, a.Size, a.Location, a.EventCount,
		a.ParameterCount, a.Public, a.CreatedAt)
	return err
}

func (s *PGArtifactStore) Find(ctx context.Context, id string) (*Artifact, error) {
	var a Artifact
	err := s.db.QueryRowContext(ctx,
		`select `+artifactColumns+` from fcs_files where id=$1`, id).
		Scan(&a.ID, &a.UserID, &a.Name, &a.Size, &a.Location, &a.EventCount,
			&a.ParameterCount, &a.Public, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *PGArtifactStore) ListByUser(ctx context.Context, userID string) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+artifactColumns+` from fcs_files where user_id=$1 order by created_at desc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Size, &a.Location,
			&a.EventCount, &a.ParameterCount, &a.Public, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PGArtifactStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from fcs_files where id=$1)`, id).Scan(&exists)
	return exists, err
}

func (s *PGArtifactStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from fcs_files where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
