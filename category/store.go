package category

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/GoCodeAlone/sprocket/tool"
)

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	system_prompt TEXT NOT NULL DEFAULT '',
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL DEFAULT '',
	api_key       TEXT NOT NULL DEFAULT '',
	endpoint      TEXT NOT NULL DEFAULT '',
	max_tokens    INTEGER NOT NULL DEFAULT 0,
	tool_servers  TEXT NOT NULL DEFAULT '[]',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);
`

// SQLiteStore persists categories in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and
// ensures the categories table exists. The caller must call Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create persists a new category and sets its ID and timestamps.
func (s *SQLiteStore) Create(c *Category) (string, error) {
	c.ID = uuid.New().String()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	servers, _ := json.Marshal(c.ToolServers)
	_, err := s.db.Exec(`
		INSERT INTO categories
			(id, name, system_prompt, provider, model, api_key, endpoint, max_tokens, tool_servers, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, c.SystemPrompt, c.Provider, c.Model,
		c.APIKey, c.Endpoint, c.MaxTokens, string(servers),
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert category: %w", err)
	}
	return c.ID, nil
}

// Get retrieves a category by ID.
func (s *SQLiteStore) Get(id string) (*Category, error) {
	row := s.db.QueryRow(`SELECT * FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("category %s not found", id)
	}
	return c, err
}

// Update saves changes to an existing category, refreshing UpdatedAt.
func (s *SQLiteStore) Update(c *Category) error {
	c.UpdatedAt = time.Now().UTC()
	servers, _ := json.Marshal(c.ToolServers)

	res, err := s.db.Exec(`
		UPDATE categories SET
			name=?, system_prompt=?, provider=?, model=?, api_key=?, endpoint=?, max_tokens=?, tool_servers=?, updated_at=?
		WHERE id=?`,
		c.Name, c.SystemPrompt, c.Provider, c.Model,
		c.APIKey, c.Endpoint, c.MaxTokens, string(servers),
		c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("category %s not found", c.ID)
	}
	return nil
}

// List returns all categories ordered by name.
func (s *SQLiteStore) List() ([]*Category, error) {
	rows, err := s.db.Query(`SELECT * FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []*Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a category by ID.
func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM categories WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("category %s not found", id)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanCategory.
type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(s scanner) (*Category, error) {
	var c Category
	var serversJSON string

	err := s.Scan(
		&c.ID, &c.Name, &c.SystemPrompt, &c.Provider, &c.Model,
		&c.APIKey, &c.Endpoint, &c.MaxTokens, &serversJSON,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var servers []tool.ServerConfig
	_ = json.Unmarshal([]byte(serversJSON), &servers)
	c.ToolServers = servers
	return &c, nil
}
