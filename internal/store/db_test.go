package store

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		body, err := fs.ReadFile(migrations, name)
		require.NoError(t, err)
		sql := string(body)
		assert.Contains(t, sql, "-- +goose Up", name)
		assert.Contains(t, sql, "-- +goose Down", name)
	}

	schema, err := fs.ReadFile(migrations, "migrations/00001_schema.sql")
	require.NoError(t, err)
	for _, constraint := range []string{
		"UNIQUE (exam_id, student_id, subject_id)",
		"UNIQUE (student_id, date)",
		"CHECK (check_out IS NULL OR check_out >= check_in)",
		"teacher_id BIGINT REFERENCES teachers(id) ON DELETE SET NULL",
	} {
		assert.True(t, strings.Contains(string(schema), constraint), constraint)
	}
}

func TestNilHandlesAreUnhealthy(t *testing.T) {
	var db *DB
	var r *Redis
	assert.False(t, db.Healthy(context.Background()))
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, db.Close())
	assert.NoError(t, r.Close())
}
