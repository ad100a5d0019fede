package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deck_evaluator/internal/feature/evaluation/domain/entity"
	"deck_evaluator/internal/feature/evaluation/usecase"
)

// setupTestRedis creates a miniredis instance for testing.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return client, mr
}

// createTestSnapshot creates a finished session snapshot for testing.
func createTestSnapshot(id string) usecase.Snapshot {
	score := 88.0
	return usecase.Snapshot{
		ID:       id,
		State:    entity.StateSuccess,
		FileName: "deck.pdf",
		FileSize: 2048,
		Stage:    "completed",
		Result: &entity.EvaluationResult{
			StartupID:       "startup_1",
			InvestmentScore: &score,
			RiskAssessment:  entity.RiskAssessment{RiskLevel: "Low", RedFlags: []string{}},
		},
		UpdatedAt: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestNewSnapshotRedis(t *testing.T) {
	client, _ := setupTestRedis(t)

	assert.Equal(t, "deck:session", NewSnapshotRedis(client, "").prefix)
	assert.Equal(t, "web", NewSnapshotRedis(client, "web").prefix)
}

func TestSnapshotRedis_SaveLoad(t *testing.T) {
	t.Parallel()

	client, mr := setupTestRedis(t)
	repo := NewSnapshotRedis(client, "deck:session")
	snap := createTestSnapshot("sess-001")

	require.NoError(t, repo.Save(context.Background(), snap, 30*time.Minute))

	// TTLが設定されていること
	assert.Equal(t, 30*time.Minute, mr.TTL("deck:session:sess-001"))

	found, err := repo.Load(context.Background(), "sess-001")
	require.NoError(t, err)
	assert.Equal(t, entity.StateSuccess, found.State)
	assert.Equal(t, "deck.pdf", found.FileName)
	assert.True(t, snap.UpdatedAt.Equal(found.UpdatedAt))
	require.NotNil(t, found.Result)
	assert.Equal(t, "startup_1", found.Result.StartupID)
	require.NotNil(t, found.Result.InvestmentScore)
	assert.InDelta(t, 88, *found.Result.InvestmentScore, 0.001)

	// 期限切れ後は見つからない
	mr.FastForward(31 * time.Minute)
	_, err = repo.Load(context.Background(), "sess-001")
	assert.ErrorIs(t, err, usecase.ErrSnapshotNotFound)
}

func TestSnapshotRedis_Load(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		setupFunc func(t *testing.T, repo *SnapshotRedis, mr *miniredis.Miniredis)
		wantErr   error
	}{
		{
			name: "success: stored snapshot",
			setupFunc: func(t *testing.T, repo *SnapshotRedis, mr *miniredis.Miniredis) {
				require.NoError(t, repo.Save(context.Background(), createTestSnapshot("id-1"), time.Minute))
			},
		},
		{
			name:    "failure: not found",
			wantErr: usecase.ErrSnapshotNotFound,
		},
		{
			name: "failure: corrupted data is dropped",
			setupFunc: func(t *testing.T, repo *SnapshotRedis, mr *miniredis.Miniredis) {
				require.NoError(t, mr.Set("deck:session:id-1", "{not json"))
			},
			wantErr: usecase.ErrSnapshotNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, mr := setupTestRedis(t)
			repo := NewSnapshotRedis(client, "")
			if tt.setupFunc != nil {
				tt.setupFunc(t, repo, mr)
			}

			found, err := repo.Load(context.Background(), "id-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, found)
				assert.False(t, mr.Exists("deck:session:id-1"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "id-1", found.ID)
		})
	}
}

func TestSnapshotRedis_Delete(t *testing.T) {
	t.Parallel()

	client, mr := setupTestRedis(t)
	repo := NewSnapshotRedis(client, "")

	require.NoError(t, repo.Save(context.Background(), createTestSnapshot("del-1"), time.Minute))
	require.True(t, mr.Exists("deck:session:del-1"))

	require.NoError(t, repo.Delete(context.Background(), "del-1"))
	assert.False(t, mr.Exists("deck:session:del-1"))

	// 存在しないキーの削除はエラーにならない
	assert.NoError(t, repo.Delete(context.Background(), "del-1"))
}

func TestSnapshotRedis_SaveRejectsNonPositiveTTL(t *testing.T) {
	t.Parallel()

	client, _ := setupTestRedis(t)
	repo := NewSnapshotRedis(client, "")
	assert.Error(t, repo.Save(context.Background(), createTestSnapshot("x"), 0))
}

// TestSnapshotRedis_Mock はRedisへ送るコマンドとエラーの伝播を検証します。
func TestSnapshotRedis_Mock(t *testing.T) {
	t.Parallel()

	t.Run("save issues SET with ttl", func(t *testing.T) {
		t.Parallel()

		rdb, mock := redismock.NewClientMock()
		defer func() { _ = rdb.Close() }()

		snap := createTestSnapshot("m-1")
		data, err := json.Marshal(snap)
		require.NoError(t, err)
		mock.ExpectSet("web:m-1", data, 10*time.Minute).SetVal("OK")

		require.NoError(t, NewSnapshotRedis(rdb, "web").Save(context.Background(), snap, 10*time.Minute))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("connection error is propagated", func(t *testing.T) {
		t.Parallel()

		rdb, mock := redismock.NewClientMock()
		defer func() { _ = rdb.Close() }()

		connErr := errors.New("connection reset")
		mock.ExpectGet("web:m-2").SetErr(connErr)

		_, err := NewSnapshotRedis(rdb, "web").Load(context.Background(), "m-2")
		assert.ErrorIs(t, err, connErr)
		assert.NotErrorIs(t, err, usecase.ErrSnapshotNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupted value is deleted", func(t *testing.T) {
		t.Parallel()

		rdb, mock := redismock.NewClientMock()
		defer func() { _ = rdb.Close() }()

		mock.ExpectGet("web:m-3").SetVal("invalid json")
		mock.ExpectDel("web:m-3").SetVal(1)

		_, err := NewSnapshotRedis(rdb, "web").Load(context.Background(), "m-3")
		assert.ErrorIs(t, err, usecase.ErrSnapshotNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
