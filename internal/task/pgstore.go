// Copyright 2026 abouchard11
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package task

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// tasksSchema 仅做增量变更
const tasksSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	task_data JSONB NOT NULL,
	task_output JSONB,
	scheduled_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at TIMESTAMPTZ,
	last_heartbeat_at TIMESTAMPTZ,
	must_heartbeat_before TIMESTAMPTZ,
	processed_at TIMESTAMPTZ,
	processor TEXT,
	lease_id BIGINT
);
CREATE INDEX IF NOT EXISTS tasks_claimable_idx ON tasks (id) WHERE processed_at IS NULL;
`

// EnsureTasksSchema 建表（幂等）；服务启动时调用
func EnsureTasksSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, tasksSchema)
	return err
}

// pgStore PostgreSQL 实现
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的任务存储；pool 可与租约存储共用
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const taskColumns = `id, task_data, task_output, scheduled_at, started_at, last_heartbeat_at, must_heartbeat_before, processed_at, processor, lease_id`

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	if err := row.Scan(&t.ID, &t.Data, &t.Output, &t.ScheduledAt, &t.StartedAt,
		&t.LastHeartbeatAt, &t.MustHeartbeatBefore, &t.ProcessedAt, &t.Processor, &t.LeaseID); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *pgStore) Create(ctx context.Context, data json.RawMessage) (*Task, error) {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return scanTask(s.pool.QueryRow(ctx,
		`INSERT INTO tasks (task_data, scheduled_at) VALUES ($1, now()) RETURNING `+taskColumns,
		data))
}

func (s *pgStore) Get(ctx context.Context, id int64) (*Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *pgStore) list(ctx context.Context, where string) ([]Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks `+where+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Data, &t.Output, &t.ScheduledAt, &t.StartedAt,
			&t.LastHeartbeatAt, &t.MustHeartbeatBefore, &t.ProcessedAt, &t.Processor, &t.LeaseID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *pgStore) List(ctx context.Context) ([]Task, error) {
	return s.list(ctx, "")
}

func (s *pgStore) ListStarted(ctx context.Context) ([]Task, error) {
	return s.list(ctx, `WHERE started_at IS NOT NULL AND processed_at IS NULL`)
}

func (s *pgStore) ListProcessed(ctx context.Context) ([]Task, error) {
	return s.list(ctx, `WHERE processed_at IS NOT NULL`)
}

func (s *pgStore) CountBacklog(ctx context.Context) (int64, int64, error) {
	var scheduled, abandoned int64
	err := s.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE started_at IS NULL),
			count(*) FILTER (WHERE started_at IS NOT NULL AND must_heartbeat_before <= now())
		FROM tasks WHERE processed_at IS NULL`).Scan(&scheduled, &abandoned)
	return scheduled, abandoned, err
}

func (s *pgStore) ClaimNext(ctx context.Context, processor string, ttl time.Duration, acquire AcquireFunc) (*Task, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	// 最小 id 优先（插入序 FIFO）；SKIP LOCKED 让并发认领者直接拿下一行或空手而归
	var prevStarted *time.Time
	var id int64
	err = tx.QueryRow(ctx, `
		SELECT id, started_at FROM tasks
		WHERE processed_at IS NULL AND (started_at IS NULL OR must_heartbeat_before <= now())
		ORDER BY id
		LIMIT 1
		FOR UPDATE SKIP LOCKED`).Scan(&id, &prevStarted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrNoTask
		}
		return nil, false, err
	}
	reclaimed := prevStarted != nil

	// 暂写认领字段；租约获取失败则整体回滚（补偿式两库协调）
	t, err := scanTask(tx.QueryRow(ctx, `
		UPDATE tasks SET
			started_at = now(),
			last_heartbeat_at = now(),
			must_heartbeat_before = now() + make_interval(secs => $2),
			processor = $3,
			task_output = NULL,
			lease_id = NULL
		WHERE id = $1
		RETURNING `+taskColumns,
		id, ttl.Seconds(), processor))
	if err != nil {
		return nil, false, err
	}

	leaseID, err := acquire(ctx, t)
	if err != nil {
		return nil, false, err
	}
	if _, err := tx.Exec(ctx, `UPDATE tasks SET lease_id = $2 WHERE id = $1`, id, leaseID); err != nil {
		return nil, false, err
	}
	t.LeaseID = &leaseID

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return t, reclaimed, nil
}

// lockOwned 行锁取出任务并校验归属与心跳期限；fresh 用存储端时钟判定
func (s *pgStore) lockOwned(ctx context.Context, tx pgx.Tx, id int64, processor string) (*Task, error) {
	var t Task
	var fresh bool
	err := tx.QueryRow(ctx, `
		SELECT `+taskColumns+`, COALESCE(must_heartbeat_before > now(), false) AS fresh
		FROM tasks WHERE id = $1 FOR UPDATE`, id).
		Scan(&t.ID, &t.Data, &t.Output, &t.ScheduledAt, &t.StartedAt,
			&t.LastHeartbeatAt, &t.MustHeartbeatBefore, &t.ProcessedAt, &t.Processor, &t.LeaseID, &fresh)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t.ProcessedAt != nil || t.Processor == nil || *t.Processor != processor || !fresh {
		return nil, ErrNotOwner
	}
	return &t, nil
}

func (s *pgStore) Heartbeat(ctx context.Context, id int64, processor string, ttl time.Duration, renew RenewFunc) (*Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	t, err := s.lockOwned(ctx, tx, id, processor)
	if err != nil {
		return nil, err
	}
	if err := renew(ctx, t); err != nil {
		return nil, err
	}
	t, err = scanTask(tx.QueryRow(ctx, `
		UPDATE tasks SET
			last_heartbeat_at = now(),
			must_heartbeat_before = now() + make_interval(secs => $2)
		WHERE id = $1
		RETURNING `+taskColumns,
		id, ttl.Seconds()))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *pgStore) Complete(ctx context.Context, id int64, processor string, output json.RawMessage) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	t, err := s.lockOwned(ctx, tx, id, processor)
	if err != nil {
		return 0, err
	}
	if len(output) == 0 {
		output = json.RawMessage("null")
	}
	if _, err := tx.Exec(ctx,
		`UPDATE tasks SET processed_at = now(), task_output = $2 WHERE id = $1`,
		id, output); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	if t.LeaseID != nil {
		return *t.LeaseID, nil
	}
	return 0, nil
}

func (s *pgStore) Abandon(ctx context.Context, id int64, processor string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var t Task
	err = tx.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id).
		Scan(&t.ID, &t.Data, &t.Output, &t.ScheduledAt, &t.StartedAt,
			&t.LastHeartbeatAt, &t.MustHeartbeatBefore, &t.ProcessedAt, &t.Processor, &t.LeaseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if t.ProcessedAt != nil || t.Processor == nil || *t.Processor != processor {
		return 0, ErrNotOwner
	}

	// started_at 保留作诊断；心跳期限置为已过期，任务立即回到可认领
	if _, err := tx.Exec(ctx,
		`UPDATE tasks SET must_heartbeat_before = now(), processor = NULL, lease_id = NULL WHERE id = $1`,
		id); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	if t.LeaseID != nil {
		return *t.LeaseID, nil
	}
	return 0, nil
}
