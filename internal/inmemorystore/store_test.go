package inmemorystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/nodeid"
	"github.com/vk/callgrid/internal/nodestore"
)

func TestSetAndGetStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	addr := nodeid.New("stage", "filter")

	status, err := s.GetStatus(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, node.StatusPending, status)

	require.NoError(t, s.SetStatus(ctx, addr, node.StatusRunning))
	status, err = s.GetStatus(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, node.StatusRunning, status)
}

func TestSetAndGetResult(t *testing.T) {
	s := New()
	ctx := context.Background()
	addr := nodeid.New("stage", "raw").Shard(2)

	_, ok, err := s.GetResult(ctx, addr)
	require.NoError(t, err)
	assert.False(t, ok)

	paths := []string{"/d/x_raw_2.vcf.gz"}
	require.NoError(t, s.SetResult(ctx, addr, nodestore.Result{Paths: paths, Token: "t", Elapsed: time.Second}))
	paths[0] = "mutated"

	got, ok, err := s.GetResult(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"/d/x_raw_2.vcf.gz"}, got.Paths)
	assert.Equal(t, "t", got.Token)
}

func TestSetAndGetError(t *testing.T) {
	s := New()
	ctx := context.Background()
	addr := nodeid.New("stage", "snps")

	got, err := s.GetError(ctx, addr)
	require.NoError(t, err)
	assert.Nil(t, got)

	boom := errors.New("exit status 1")
	require.NoError(t, s.SetError(ctx, addr, boom))
	got, err = s.GetError(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, boom, got)
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := nodeid.New("stage", "raw")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := base.Shard(i)
			_ = s.SetStatus(ctx, addr, node.StatusCompleted)
			_ = s.SetResult(ctx, addr, nodestore.Result{Paths: []string{fmt.Sprint(i)}})
		}(i)
	}
	wg.Wait()

	for i := 0; i < 100; i++ {
		status, err := s.GetStatus(ctx, base.Shard(i))
		require.NoError(t, err)
		assert.Equal(t, node.StatusCompleted, status)
	}
}
