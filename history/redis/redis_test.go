package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kbrouter/kbrouter/history"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := New(Options{Addr: mr.Addr()})
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, &history.Record{
			ID:        fmt.Sprintf("run-%d", i),
			Question:  fmt.Sprintf("question %d", i),
			Route:     "database",
			Terminal:  "format_answer",
			Duration:  time.Second,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	assert.True(t, mr.Exists("kbrouter:history:run-0"))

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "question 1", loaded.Question)
	assert.Equal(t, time.Second, loaded.Duration)

	list, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-2", list[0].ID)
	assert.Equal(t, "run-1", list[1].ID)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestRedisStorePrunesExpiredRecords(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := New(Options{Addr: mr.Addr(), Prefix: "test:", TTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &history.Record{ID: "old", Question: "q"}))
	mr.FastForward(2 * time.Minute)
	require.NoError(t, store.Save(ctx, &history.Record{ID: "new", Question: "q"}))

	list, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].ID)

	members, err := mr.ZMembers("test:history:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, members)
}

// failingCommand makes every call of one command fail.
type failingCommand struct {
	name string
	err  error
}

func (h failingCommand) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h failingCommand) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == h.name {
			cmd.SetErr(h.err)
			return h.err
		}
		return next(ctx, cmd)
	}
}

func (h failingCommand) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisStoreReportsPruneFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewWithClient(client, "test:", time.Minute)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &history.Record{ID: "old", Question: "q"}))
	mr.FastForward(2 * time.Minute)
	require.NoError(t, store.Save(ctx, &history.Record{ID: "new", Question: "q"}))

	client.AddHook(failingCommand{name: "zrem", err: errors.New("READONLY replica")})

	_, err = store.List(ctx, 10)
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to prune history index")
	assert.ErrorContains(t, err, "READONLY replica")

	members, err := mr.ZMembers("test:history:index")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old", "new"}, members)
}
