package sqlite

import (
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database and creates the users table if it doesn't exist.
func InitDB(dbFile string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbFile)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT,
		downloads INTEGER NOT NULL DEFAULT 0,
		first_seen DATETIME,
		last_seen DATETIME
	)`)

	if err != nil {
		return nil, err
	}

	return db, nil
}
