package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mrag/internal/config"
)

func TestDSN(t *testing.T) {
	require.Equal(t, "postgres://u@h/db", DSN(config.DatabaseConfig{DSN: "postgres://u@h/db", Host: "ignored"}))
	require.Equal(t,
		"host=localhost port=5432 sslmode=disable user=mrag password=secret dbname=rag",
		DSN(config.DatabaseConfig{Host: "localhost", Port: 5432, User: "mrag", Password: "secret", DBName: "rag"}),
	)
	require.Equal(t, "host=db port=6543 sslmode=require", DSN(config.DatabaseConfig{Host: "db", Port: 6543, SSLMode: "require"}))
}

func TestMigrationFilesSorted(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	require.Equal(t, "001_init.sql", files[0])
}
