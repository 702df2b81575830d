package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Postgres implements Store on a PostgreSQL database.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to the database and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// EnsureSchema creates the tables the server needs if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           UUID PRIMARY KEY,
	username     TEXT NOT NULL UNIQUE,
	balance      BIGINT NOT NULL DEFAULT 0,
	current_room UUID
);
CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    UUID NOT NULL REFERENCES users(id),
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS room_info (
	id           UUID PRIMARY KEY,
	room_name    TEXT NOT NULL,
	small_blind  INT NOT NULL,
	big_blind    INT NOT NULL,
	buy_in_min   INT NOT NULL,
	buy_in_max   INT NOT NULL,
	max_players  INT NOT NULL,
	player_count INT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS settlements (
	hand_id    UUID NOT NULL,
	player_id  UUID NOT NULL,
	delta      BIGINT NOT NULL,
	settled_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (hand_id, player_id)
);`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) ResolveSession(ctx context.Context, token string) (Player, error) {
	const q = `
SELECT u.id, u.username, u.balance
FROM sessions s JOIN users u ON u.id = s.user_id
WHERE s.token = $1 AND s.expires_at > now()`
	var pl Player
	err := p.db.QueryRowContext(ctx, q, token).Scan(&pl.ID, &pl.Username, &pl.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return Player{}, ErrSessionNotFound
	}
	if err != nil {
		return Player{}, fmt.Errorf("resolve session: %w", err)
	}
	return pl, nil
}

func (p *Postgres) DebitBuyIn(ctx context.Context, playerID, roomID uuid.UUID, amount int64) error {
	const q = `
UPDATE users SET balance = balance - $1, current_room = $2
WHERE id = $3 AND balance >= $1`
	res, err := p.db.ExecContext(ctx, q, amount, roomID, playerID)
	if err != nil {
		return fmt.Errorf("debit buy-in: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit buy-in: %w", err)
	}
	if n == 0 {
		// Either the player is unknown or the balance is short; distinguish
		// for the client error.
		var exists bool
		if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, playerID).Scan(&exists); err != nil {
			return fmt.Errorf("debit buy-in: %w", err)
		}
		if !exists {
			return ErrPlayerNotFound
		}
		return ErrInsufficientBalance
	}
	return nil
}

func (p *Postgres) CreditRefund(ctx context.Context, playerID uuid.UUID, amount int64) error {
	const q = `UPDATE users SET balance = balance + $1, current_room = NULL WHERE id = $2`
	res, err := p.db.ExecContext(ctx, q, amount, playerID)
	if err != nil {
		return fmt.Errorf("credit refund: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

func (p *Postgres) ApplySettlement(ctx context.Context, handID, playerID uuid.UUID, delta int64) error {
	// The primary key makes replays no-ops, so actors can retry freely.
	const q = `
INSERT INTO settlements (hand_id, player_id, delta)
VALUES ($1, $2, $3)
ON CONFLICT (hand_id, player_id) DO NOTHING`
	if _, err := p.db.ExecContext(ctx, q, handID, playerID, delta); err != nil {
		return fmt.Errorf("apply settlement: %w", err)
	}
	return nil
}

func (p *Postgres) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	const q = `
SELECT id, room_name, small_blind, big_blind, buy_in_min, buy_in_max, max_players, player_count
FROM room_info ORDER BY room_name`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()
	var out []RoomInfo
	for rows.Next() {
		var ri RoomInfo
		if err := rows.Scan(&ri.ID, &ri.Name, &ri.SmallBlind, &ri.BigBlind, &ri.BuyInMin, &ri.BuyInMax, &ri.MaxSeats, &ri.PlayerCount); err != nil {
			return nil, fmt.Errorf("list rooms: %w", err)
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}

func (p *Postgres) SeedRooms(ctx context.Context, rooms []RoomInfo) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed rooms: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM room_info`).Scan(&count); err != nil {
		return fmt.Errorf("seed rooms: %w", err)
	}
	if count > 0 {
		return nil
	}
	const q = `
INSERT INTO room_info (id, room_name, small_blind, big_blind, buy_in_min, buy_in_max, max_players, player_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, 0)`
	for _, ri := range rooms {
		if _, err := tx.ExecContext(ctx, q, ri.ID, ri.Name, ri.SmallBlind, ri.BigBlind, ri.BuyInMin, ri.BuyInMax, ri.MaxSeats); err != nil {
			return fmt.Errorf("seed room %s: %w", ri.Name, err)
		}
	}
	return tx.Commit()
}

func (p *Postgres) UpdatePlayerCount(ctx context.Context, roomID uuid.UUID, count int) error {
	if _, err := p.db.ExecContext(ctx, `UPDATE room_info SET player_count = $1 WHERE id = $2`, count, roomID); err != nil {
		return fmt.Errorf("update player count: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
