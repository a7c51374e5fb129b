package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aashish23092/slice-receipts/dto"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// schemaVersion is the PRAGMA user_version the migrations end at.
const schemaVersion = 1

type migration struct {
	version     int
	description string
	statements  []string
}

var migrations = []migration{
	{
		version:     1,
		description: "lobbies, items, participants and claims",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS lobbies (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				passcode_hash BLOB NOT NULL,
				created_at DATETIME NOT NULL,
				receipt_image TEXT,
				host_user_id TEXT,
				receipt_totals_json TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS lobby_items (
				lobby_id TEXT NOT NULL,
				item_id TEXT NOT NULL,
				name TEXT NOT NULL,
				quantity REAL NOT NULL,
				unit_price REAL NOT NULL,
				cost REAL NOT NULL,
				category TEXT,
				category_confidence REAL,
				category_source TEXT,
				other_subcategory TEXT,
				other_category_options_json TEXT,
				PRIMARY KEY (lobby_id, item_id)
			)`,
			`CREATE TABLE IF NOT EXISTS participants (
				lobby_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				user_name TEXT NOT NULL,
				PRIMARY KEY (lobby_id, user_id)
			)`,
			`CREATE TABLE IF NOT EXISTS claims (
				lobby_id TEXT NOT NULL,
				item_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				quantity REAL NOT NULL,
				PRIMARY KEY (lobby_id, item_id, user_id)
			)`,
		},
	},
}

// SQLiteRepository implements LobbyRepository on a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at path and
// applies pending migrations.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate(ctx context.Context) error {
	var current int
	if err := r.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
		slog.Info("applied migration", "version", m.version, "description", m.description)
	}

	var final int
	if err := r.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&final); err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	if final != schemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", schemaVersion, final)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) CreateLobby(ctx context.Context, lobby dto.Lobby, items []dto.ParsedItem) error {
	totals, err := json.Marshal(lobby.ReceiptTotals)
	if err != nil {
		return fmt.Errorf("failed to encode receipt totals: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lobbies (id, name, passcode_hash, created_at, receipt_image, host_user_id, receipt_totals_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lobby.ID, lobby.Name, lobby.PasscodeHash, lobby.CreatedAt.UTC(), nullable(lobby.ReceiptImage),
		nullable(lobby.HostUserID), string(totals))
	if err != nil {
		return fmt.Errorf("failed to insert lobby: %w", err)
	}
	for _, it := range items {
		if err := saveItem(ctx, tx, lobby.ID, it); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetLobby(ctx context.Context, lobbyID string) (*dto.Lobby, error) {
	var (
		l           dto.Lobby
		image, host sql.NullString
		totals      sql.NullString
		createdAt   time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, passcode_hash, created_at, receipt_image, host_user_id, receipt_totals_json
		 FROM lobbies WHERE id = ?`, lobbyID).
		Scan(&l.ID, &l.Name, &l.PasscodeHash, &createdAt, &image, &host, &totals)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dto.ErrLobbyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lobby: %w", err)
	}
	l.CreatedAt = createdAt
	l.ReceiptImage = image.String
	l.HostUserID = host.String
	if totals.Valid && totals.String != "" {
		if err := json.Unmarshal([]byte(totals.String), &l.ReceiptTotals); err != nil {
			slog.Warn("unreadable receipt totals", "lobby_id", lobbyID, "error", err)
		}
	}
	return &l, nil
}

func (r *SQLiteRepository) AddParticipant(ctx context.Context, lobbyID string, p dto.Participant) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var host sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT host_user_id FROM lobbies WHERE id = ?`, lobbyID).Scan(&host)
	if errors.Is(err, sql.ErrNoRows) {
		return "", dto.ErrLobbyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load lobby: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO participants (lobby_id, user_id, user_name) VALUES (?, ?, ?)`,
		lobbyID, p.ID, p.Name); err != nil {
		return "", fmt.Errorf("failed to insert participant: %w", err)
	}
	hostID := host.String
	if hostID == "" {
		hostID = p.ID
		if _, err := tx.ExecContext(ctx, `UPDATE lobbies SET host_user_id = ? WHERE id = ?`, hostID, lobbyID); err != nil {
			return "", fmt.Errorf("failed to set host: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit participant: %w", err)
	}
	return hostID, nil
}

func (r *SQLiteRepository) Participants(ctx context.Context, lobbyID string) ([]dto.Participant, error) {
	if err := r.exists(ctx, lobbyID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, user_name FROM participants WHERE lobby_id = ? ORDER BY rowid`, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	out := []dto.Participant{}
	for rows.Next() {
		var p dto.Participant
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Items(ctx context.Context, lobbyID string) ([]dto.ParsedItem, error) {
	if err := r.exists(ctx, lobbyID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, name, quantity, unit_price, cost, category, category_confidence,
		        category_source, other_subcategory, other_category_options_json
		 FROM lobby_items WHERE lobby_id = ?
		 ORDER BY CAST(SUBSTR(item_id, 5) AS INTEGER), rowid`, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	out := []dto.ParsedItem{}
	for rows.Next() {
		var (
			it                      dto.ParsedItem
			category, source, other sql.NullString
			options                 sql.NullString
			confidence              sql.NullFloat64
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Quantity, &it.UnitPrice, &it.Cost, &category,
			&confidence, &source, &other, &options); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		it.Category = dto.Category(category.String)
		it.CategoryConfidence = confidence.Float64
		it.CategorySource = source.String
		it.OtherSubcategory = other.String
		if options.Valid && options.String != "" {
			if err := json.Unmarshal([]byte(options.String), &it.OtherCategoryOptions); err != nil {
				return nil, fmt.Errorf("failed to decode category options of %s: %w", it.ID, err)
			}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveItem(ctx context.Context, lobbyID string, item dto.ParsedItem) error {
	if err := r.exists(ctx, lobbyID); err != nil {
		return err
	}
	return saveItem(ctx, r.db, lobbyID, item)
}

func (r *SQLiteRepository) Claims(ctx context.Context, lobbyID string) (dto.Claims, error) {
	if err := r.exists(ctx, lobbyID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, user_id, quantity FROM claims WHERE lobby_id = ?`, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	out := dto.Claims{}
	for rows.Next() {
		var itemID, userID string
		var qty float64
		if err := rows.Scan(&itemID, &userID, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		if out[itemID] == nil {
			out[itemID] = make(map[string]float64)
		}
		out[itemID][userID] = qty
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SetClaim(ctx context.Context, lobbyID, itemID, userID string, quantity float64) error {
	if quantity == 0 {
		return r.ResetClaims(ctx, lobbyID, itemID, userID)
	}
	if err := r.exists(ctx, lobbyID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO claims (lobby_id, item_id, user_id, quantity) VALUES (?, ?, ?, ?)
		 ON CONFLICT(lobby_id, item_id, user_id) DO UPDATE SET quantity = excluded.quantity`,
		lobbyID, itemID, userID, quantity)
	if err != nil {
		return fmt.Errorf("failed to save claim: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ResetClaims(ctx context.Context, lobbyID, itemID, userID string) error {
	if err := r.exists(ctx, lobbyID); err != nil {
		return err
	}
	var err error
	if userID != "" {
		_, err = r.db.ExecContext(ctx,
			`DELETE FROM claims WHERE lobby_id = ? AND item_id = ? AND user_id = ?`, lobbyID, itemID, userID)
	} else {
		_, err = r.db.ExecContext(ctx,
			`DELETE FROM claims WHERE lobby_id = ? AND item_id = ?`, lobbyID, itemID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete claims: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) exists(ctx context.Context, lobbyID string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM lobbies WHERE id = ?`, lobbyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return dto.ErrLobbyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load lobby: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveItem(ctx context.Context, db execer, lobbyID string, it dto.ParsedItem) error {
	var options any
	if len(it.OtherCategoryOptions) > 0 {
		b, err := json.Marshal(it.OtherCategoryOptions)
		if err != nil {
			return fmt.Errorf("failed to encode category options: %w", err)
		}
		options = string(b)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO lobby_items (
			lobby_id, item_id, name, quantity, unit_price, cost, category, category_confidence,
			category_source, other_subcategory, other_category_options_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(lobby_id, item_id) DO UPDATE SET
			name = excluded.name, quantity = excluded.quantity, unit_price = excluded.unit_price,
			cost = excluded.cost, category = excluded.category,
			category_confidence = excluded.category_confidence, category_source = excluded.category_source,
			other_subcategory = excluded.other_subcategory,
			other_category_options_json = excluded.other_category_options_json`,
		lobbyID, it.ID, it.Name, it.Quantity, it.UnitPrice, it.Cost, nullable(string(it.Category)),
		it.CategoryConfidence, nullable(it.CategorySource), nullable(it.OtherSubcategory), options)
	if err != nil {
		return fmt.Errorf("failed to save item %s: %w", it.ID, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
