package database

import (
	"database/sql"
)

type PgFamLinkRepository struct {
	conn *sql.DB
}

func NewPgFamLinkRepository(dsn string) (*PgFamLinkRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgFamLinkRepository{conn: db}, nil
}

func (db *PgFamLinkRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
