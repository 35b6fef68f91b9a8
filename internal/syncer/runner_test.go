package syncer_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marksync/internal/config"
	"marksync/internal/remote"
	"marksync/internal/store"
	"marksync/internal/syncer"
)

func TestRunAllIsolatesSourceFailures(t *testing.T) {
	t.Parallel()

	sources := []config.Source{
		{ProjectGID: "bad", Name: "Broken", Path: "broken.md"},
		{ProjectGID: "good", Name: "Works", Path: "works.md"},
	}

	api := &fakeAPI{
		lists:    map[string][]remote.Task{"good": {{GID: "1", Name: "Only task"}}},
		fetchErr: map[string]error{"bad": errors.New("boom")},
	}
	mem := store.NewMemory()

	runner := syncer.NewRunner(newEngine(t, api, mem), nil)

	results, err := runner.RunAll(context.Background(), sources)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.Equal(t, syncer.Stats{Added: 1}, results[1].Stats)
	assert.Contains(t, mem.Content("works.md"), "- [ ] Only task <!-- id:1 -->")
}

func TestRunAllRejectsOverlappingPasses(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		lists:   map[string][]remote.Task{"1201": relaunchTasks()},
		entered: make(chan struct{}, 4),
		block:   make(chan struct{}),
	}
	mem := store.NewMemory()
	mem.Put(relaunch.Path, relaunchDoc)

	runner := syncer.NewRunner(newEngine(t, api, mem), nil)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		_, err := runner.RunAll(context.Background(), []config.Source{relaunch})
		assert.NoError(t, err)
	}()

	// Wait until the first pass is inside its fetch, then try to overlap.
	<-api.entered

	_, err := runner.RunAll(context.Background(), []config.Source{relaunch})
	assert.ErrorIs(t, err, syncer.ErrPassActive)

	close(api.block)
	wg.Wait()

	// With the first pass finished, the runner accepts work again.
	_, err = runner.RunAll(context.Background(), []config.Source{relaunch})
	assert.NoError(t, err)
}
