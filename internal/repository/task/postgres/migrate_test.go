package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost:5432/db":      "pgx5://u:p@localhost:5432/db",
		"postgresql://u:p@db/tasks?sslmode=off": "pgx5://u:p@db/tasks?sslmode=off",
		"pgx5://already/converted":              "pgx5://already/converted",
	}
	for in, want := range tests {
		assert.Equal(t, want, migrateURL(in), in)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	assert.NoError(t, err)
	assert.Len(t, entries, 4)
}
