package systems

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/resident/engine/core"
)

func TestNewJobSystemRejectsBadSizes(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestCallbacksRunOnUpdate(t *testing.T) {
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)
	defer js.Shutdown()

	var completed []int
	var failed []error
	for i := 0; i < 3; i++ {
		require.NoError(t, js.Submit(Job{
			Name:       "square",
			Run:        func() (interface{}, error) { return i * i, nil },
			OnComplete: func(r interface{}) { completed = append(completed, r.(int)) },
		}))
	}
	boom := errors.New("boom")
	require.NoError(t, js.Submit(Job{
		Name:      "fail",
		Run:       func() (interface{}, error) { return nil, boom },
		OnFailure: func(err error) { failed = append(failed, err) },
	}))

	ran := 0
	require.Eventually(t, func() bool {
		ran += js.Update()
		return ran == 4
	}, 5*time.Second, 5*time.Millisecond)

	assert.ElementsMatch(t, []int{0, 1, 4}, completed)
	assert.Equal(t, []error{boom}, failed)
	assert.Zero(t, js.Pending())
}

func TestSubmitAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())

	err = js.Submit(Job{Name: "late", Run: func() (interface{}, error) { return nil, nil }})
	assert.ErrorIs(t, err, core.ErrLogic)
	assert.ErrorIs(t, js.Submit(Job{Name: "empty"}), core.ErrLogic)
}

func TestSubmitRacingShutdown(t *testing.T) {
	js, err := NewJobSystem(2, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				err := js.Submit(Job{Name: "noop", Run: func() (interface{}, error) { return nil, nil }})
				if err != nil {
					assert.ErrorIs(t, err, core.ErrLogic)
					return
				}
			}
		}()
	}
	time.Sleep(time.Millisecond)
	require.NoError(t, js.Shutdown())
	wg.Wait()
	assert.Zero(t, js.Pending())
}
