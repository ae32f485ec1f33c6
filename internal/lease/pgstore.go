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

package lease

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// leasesSchema 仅做增量变更：新列只追加，不改写既有列语义
const leasesSchema = `
CREATE TABLE IF NOT EXISTS leases (
	id BIGSERIAL PRIMARY KEY,
	resource TEXT NOT NULL,
	holder TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	renewed_at TIMESTAMPTZ,
	released_at TIMESTAMPTZ,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS leases_resource_idx ON leases (resource);
`

// EnsureLeasesSchema 建表（幂等）；服务启动时调用
func EnsureLeasesSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, leasesSchema)
	return err
}

// pgStore PostgreSQL 实现：所有过期判定用存储端 now()，不信任任何进程时钟
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的租约存储；pool 可与任务存储共用
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const leaseColumns = `id, resource, holder, created_at, renewed_at, released_at, expires_at`

func scanLease(row pgx.Row) (*Lease, error) {
	var l Lease
	if err := row.Scan(&l.ID, &l.Resource, &l.Holder, &l.CreatedAt, &l.RenewedAt, &l.ReleasedAt, &l.ExpiresAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *pgStore) Acquire(ctx context.Context, resource, holder string, ttl time.Duration) (*Lease, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// 事务级 advisory lock 串行化同一 resource 的 acquire（包括尚无任何行的首次 acquire）
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, resource); err != nil {
		return nil, err
	}

	// lock → check：锁定该 resource 的全部行，任一 active 即冲突
	rows, err := tx.Query(ctx,
		`SELECT released_at IS NULL AND expires_at > now() FROM leases WHERE resource = $1 FOR UPDATE`,
		resource)
	if err != nil {
		return nil, err
	}
	held := false
	for rows.Next() {
		var active bool
		if err := rows.Scan(&active); err != nil {
			rows.Close()
			return nil, err
		}
		held = held || active
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if held {
		return nil, ErrHeld
	}

	// write：过期/已释放的旧行保留为历史，插入新行
	l, err := scanLease(tx.QueryRow(ctx,
		`INSERT INTO leases (resource, holder, created_at, expires_at)
		 VALUES ($1, $2, now(), now() + make_interval(secs => $3))
		 RETURNING `+leaseColumns,
		resource, holder, ttl.Seconds()))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *pgStore) Renew(ctx context.Context, resource, holder string, ttl time.Duration) (*Lease, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, holder, released_at IS NOT NULL, expires_at > now() FROM leases WHERE resource = $1 FOR UPDATE`,
		resource)
	if err != nil {
		return nil, err
	}
	var (
		seen        bool
		targetID    int64 = -1
		lostHere    bool
		heldByOther bool
	)
	for rows.Next() {
		var (
			id       int64
			rowOwner string
			released bool
			active   bool
		)
		if err := rows.Scan(&id, &rowOwner, &released, &active); err != nil {
			rows.Close()
			return nil, err
		}
		seen = true
		if released {
			continue
		}
		switch {
		case active && rowOwner == holder:
			targetID = id
		case active:
			heldByOther = true
		case rowOwner == holder:
			lostHere = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case targetID >= 0:
	case lostHere:
		return nil, ErrLost
	case heldByOther:
		return nil, ErrHeld
	case !seen:
		return nil, ErrNotFound
	default:
		return nil, ErrNotFound
	}

	l, err := scanLease(tx.QueryRow(ctx,
		`UPDATE leases SET renewed_at = now(), expires_at = now() + make_interval(secs => $2)
		 WHERE id = $1
		 RETURNING `+leaseColumns,
		targetID, ttl.Seconds()))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *pgStore) Release(ctx context.Context, id int64) error {
	cmd, err := s.pool.Exec(ctx,
		`UPDATE leases SET released_at = now() WHERE id = $1 AND released_at IS NULL`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	// 幂等：行存在但已释放视为成功
	var exists bool
	err = s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leases WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id int64) (*Lease, error) {
	l, err := scanLease(s.pool.QueryRow(ctx,
		`SELECT `+leaseColumns+` FROM leases WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

func (s *pgStore) ListByState(ctx context.Context, state State) ([]Lease, error) {
	where := ""
	switch state {
	case StateActive:
		where = `WHERE released_at IS NULL AND expires_at > now()`
	case StateExpired:
		where = `WHERE released_at IS NULL AND expires_at <= now()`
	case StateReleased:
		where = `WHERE released_at IS NOT NULL`
	case StateRenewed:
		where = `WHERE released_at IS NULL AND expires_at > now() AND renewed_at IS NOT NULL`
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+leaseColumns+` FROM leases `+where+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lease
	for rows.Next() {
		var l Lease
		if err := rows.Scan(&l.ID, &l.Resource, &l.Holder, &l.CreatedAt, &l.RenewedAt, &l.ReleasedAt, &l.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
