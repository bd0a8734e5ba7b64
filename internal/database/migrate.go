package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// schema is applied in order by Migrate.  Every statement is idempotent.
//
// reservations.active_seat is 1 for active rows and NULL otherwise.
// MySQL unique keys ignore NULLs, so uq_active_seat allows any number
// of cancelled rows per seat but at most one active one.
var schema = []struct {
	table string
	ddl   string
}{
	{"users", `
    CREATE TABLE IF NOT EXISTS users (
        id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
        email VARCHAR(255) NOT NULL,
        password_hash VARCHAR(255) NOT NULL,
        role ENUM('USER','ADMIN') NOT NULL DEFAULT 'USER',
        created_at DATETIME(6) NOT NULL,
        UNIQUE KEY uq_users_email (email)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"screenings", `
    CREATE TABLE IF NOT EXISTS screenings (
        id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
        movie_id BIGINT UNSIGNED NOT NULL,
        show_time DATETIME NOT NULL,
        total_seats INT UNSIGNED NOT NULL,
        price_cents BIGINT NOT NULL,
        created_at DATETIME(6) NOT NULL,
        deleted_at DATETIME(6) NULL,
        INDEX idx_screenings_show_time (show_time),
        INDEX idx_screenings_movie_time (movie_id, show_time)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"reservations", `
    CREATE TABLE IF NOT EXISTS reservations (
        id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
        screening_id BIGINT UNSIGNED NOT NULL,
        user_id BIGINT UNSIGNED NOT NULL,
        seat_label VARCHAR(8) NOT NULL,
        status ENUM('active','cancelled') NOT NULL DEFAULT 'active',
        active_seat TINYINT AS (IF(status = 'active', 1, NULL)) STORED,
        created_at DATETIME(6) NOT NULL,
        cancelled_at DATETIME(6) NULL,
        transaction_id VARCHAR(32) NOT NULL,
        amount_cents BIGINT NOT NULL,
        card_last4 CHAR(4) NOT NULL,
        UNIQUE KEY uq_active_seat (screening_id, seat_label, active_seat),
        INDEX idx_reservations_user (user_id, created_at),
        INDEX idx_reservations_screening_status (screening_id, status),
        CONSTRAINT fk_reservations_screening FOREIGN KEY (screening_id) REFERENCES screenings (id),
        CONSTRAINT fk_reservations_user FOREIGN KEY (user_id) REFERENCES users (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	for _, s := range schema {
		if _, err := db.ExecContext(ctx, s.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", s.table, err)
		}
		log.Debug("table ready", zap.String("table", s.table))
	}
	log.Info("schema migrated", zap.Int("tables", len(schema)))
	return nil
}
