// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListNewestFirst(t *testing.T) {
	s := openMemory(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(context.Background(), Entry{
			ID:        fmt.Sprintf("req-%d", i),
			Question:  fmt.Sprintf("question %d", i),
			Language:  "en",
			Status:    "ok",
			SQL:       "SELECT 1 LIMIT 5",
			RowCount:  i,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Record(context.Background(), Entry{
		ID:        "req-failed",
		Question:  "drop everything",
		Language:  "en",
		Status:    "error",
		Stage:     "validate_sql",
		CreatedAt: base.Add(-time.Hour),
	}))

	got, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"req-2", "req-1", "req-0", "req-failed"},
		[]string{got[0].ID, got[1].ID, got[2].ID, got[3].ID})

	assert.Equal(t, "question 2", got[0].Question)
	assert.Equal(t, 2, got[0].RowCount)
	assert.True(t, base.Add(2*time.Minute).Equal(got[0].CreatedAt))
	assert.Equal(t, "validate_sql", got[3].Stage)
	assert.Empty(t, got[3].SQL)

	got, err = s.List(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "req-2", got[0].ID)
}

func TestRecordSetsCreatedAt(t *testing.T) {
	s := openMemory(t)
	before := time.Now()

	require.NoError(t, s.Record(context.Background(), Entry{ID: "a", Status: "ok"}))

	got, err := s.List(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].CreatedAt.Before(before.Add(-time.Second)))
}

func TestRecordHonorsContext(t *testing.T) {
	s := openMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Record(ctx, Entry{ID: "a"}), context.Canceled)

	got, err := s.List(10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClosedStore(t *testing.T) {
	s, err := Open("", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Record(context.Background(), Entry{ID: "a"}), ErrClosed)
	_, err = s.List(1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), Entry{ID: "kept", Status: "ok", CreatedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.List(5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].ID)
}
