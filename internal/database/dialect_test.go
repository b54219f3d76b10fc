package database

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

func TestDialectSQLite(t *testing.T) {
	dialect := NewSQLiteDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "sqlite3"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		if !dialect.SupportsLastInsertId() {
			t.Error("SupportsLastInsertId() should return true for SQLite")
		}
	})

	t.Run("DSN", func(t *testing.T) {
		dsn := dialect.DSN(DialectConfig{Path: "./ielts.db"})
		for _, want := range []string{"_busy_timeout=5000", "_txlock=immediate", "_foreign_keys=on"} {
			if !strings.Contains(dsn, want) {
				t.Errorf("DSN() = %v, missing %v", dsn, want)
			}
		}
		if !strings.HasPrefix(dsn, "./ielts.db?") {
			t.Errorf("DSN() = %v, want path prefix", dsn)
		}
	})

	t.Run("IsUniqueViolation", func(t *testing.T) {
		err := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
		if !dialect.IsUniqueViolation(fmt.Errorf("insert: %w", err)) {
			t.Error("IsUniqueViolation() = false for wrapped unique constraint error")
		}
		if dialect.IsUniqueViolation(errors.New("other")) {
			t.Error("IsUniqueViolation() = true for plain error")
		}
	})
}

func TestDialectPostgreSQL(t *testing.T) {
	dialect := NewPostgresDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "postgres"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		if dialect.SupportsLastInsertId() {
			t.Error("SupportsLastInsertId() should return false for PostgreSQL")
		}
	})

	t.Run("RewriteQuery", func(t *testing.T) {
		tests := []struct {
			name     string
			input    string
			expected string
		}{
			{"no placeholders", "SELECT * FROM users", "SELECT * FROM users"},
			{"single placeholder", "SELECT * FROM users WHERE id = ?", "SELECT * FROM users WHERE id = $1"},
			{"multiple placeholders", "UPDATE attempts SET status = ? WHERE id = ? AND user_id = ?", "UPDATE attempts SET status = $1 WHERE id = $2 AND user_id = $3"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := dialect.RewriteQuery(tt.input); got != tt.expected {
					t.Errorf("RewriteQuery() = %v, want %v", got, tt.expected)
				}
			})
		}
	})

	t.Run("IsUniqueViolation", func(t *testing.T) {
		if !dialect.IsUniqueViolation(&pq.Error{Code: "23505"}) {
			t.Error("IsUniqueViolation() = false for 23505")
		}
		if dialect.IsUniqueViolation(&pq.Error{Code: "23503"}) {
			t.Error("IsUniqueViolation() = true for foreign key violation")
		}
	})

	t.Run("UpsertClause", func(t *testing.T) {
		got := dialect.UpsertClause([]string{"attempt_id", "question_id"}, []string{"answer_text", "score"})
		want := " ON CONFLICT (attempt_id, question_id) DO UPDATE SET answer_text = excluded.answer_text, score = excluded.score"
		if got != want {
			t.Errorf("UpsertClause() = %q, want %q", got, want)
		}
	})
}

func TestDialectMySQL(t *testing.T) {
	dialect := NewMySQLDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "mysql"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("DSN", func(t *testing.T) {
		dsn := dialect.DSN(DialectConfig{URL: "user:pass@tcp(localhost:3306)/ielts"})
		want := "user:pass@tcp(localhost:3306)/ielts?parseTime=true&loc=UTC&multiStatements=true"
		if dsn != want {
			t.Errorf("DSN() = %v, want %v", dsn, want)
		}

		kept := dialect.DSN(DialectConfig{URL: "u@tcp(db)/x?parseTime=false"})
		if strings.Count(kept, "parseTime") != 1 {
			t.Errorf("DSN() duplicated an existing parameter: %v", kept)
		}
	})

	t.Run("IsUniqueViolation", func(t *testing.T) {
		if !dialect.IsUniqueViolation(&mysql.MySQLError{Number: 1062}) {
			t.Error("IsUniqueViolation() = false for 1062")
		}
		if dialect.IsUniqueViolation(&mysql.MySQLError{Number: 1452}) {
			t.Error("IsUniqueViolation() = true for foreign key error")
		}
	})

	t.Run("UpsertClause", func(t *testing.T) {
		got := dialect.UpsertClause([]string{"attempt_id", "question_id"}, []string{"answer_text"})
		want := " ON DUPLICATE KEY UPDATE answer_text = VALUES(answer_text)"
		if got != want {
			t.Errorf("UpsertClause() = %q, want %q", got, want)
		}
	})
}
