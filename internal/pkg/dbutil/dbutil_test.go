package dbutil

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRewritesLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM rag_documents WHERE status=? ORDER BY uploaded_at DESC LIMIT ?,?", []interface{}{"processed", 10, 20})
	require.Equal(t, "SELECT id FROM rag_documents WHERE status=$1 ORDER BY uploaded_at DESC LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"processed", 20, 10}, args)
}

func TestFinalizeWithoutLimit(t *testing.T) {
	query, args := Finalize("DELETE FROM rag_chunks WHERE document_id=?", []interface{}{"doc"})
	require.Equal(t, "DELETE FROM rag_chunks WHERE document_id=$1", query)
	require.Equal(t, []interface{}{"doc"}, args)
}

func TestIsConflict(t *testing.T) {
	require.True(t, IsConflict(&pq.Error{Code: "23505"}))
	require.True(t, IsConflict(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsConflict(&pq.Error{Code: "23503"}))
	require.False(t, IsConflict(fmt.Errorf("boom")))
}
