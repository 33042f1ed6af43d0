package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/resident/engine/core"
)

// Job is a unit of work. Run executes on a worker; the callbacks execute on
// the goroutine that calls Update.
type Job struct {
	Name       string
	Run        func() (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type jobResult struct {
	job    Job
	result interface{}
	err    error
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan Job
	wg         sync.WaitGroup

	// send is held for reading across every send on jobQueue.
	send sync.RWMutex

	mu       sync.Mutex
	results  []jobResult
	inFlight int
	closed   bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker: %w", core.ErrInvalidConfiguration)
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size: %w", core.ErrInvalidConfiguration)

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				result, err := job.Run()
				if err != nil {
					core.LogError("job %s: %s", job.Name, err)
				}
				js.mu.Lock()
				js.results = append(js.results, jobResult{job: job, result: result, err: err})
				js.mu.Unlock()
			}
		}()
	}
}

// Shutdown waits for the running jobs and drops results nobody collected.
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	js.mu.Unlock()

	js.send.Lock()
	close(js.jobQueue)
	js.send.Unlock()
	js.wg.Wait()

	js.mu.Lock()
	defer js.mu.Unlock()
	if n := len(js.results); n > 0 {
		core.LogDebug("job system dropped %d finished jobs at shutdown", n)
	}
	js.results = nil
	js.inFlight = 0
	return nil
}

/**
 * @brief Runs the callbacks of finished jobs. Should happen once an update
 * cycle.
 */
func (js *JobSystem) Update() int {
	js.mu.Lock()
	done := js.results
	js.results = nil
	js.inFlight -= len(done)
	js.mu.Unlock()

	for _, r := range done {
		if r.err != nil {
			if r.job.OnFailure != nil {
				r.job.OnFailure(r.err)
			}
			continue
		}
		if r.job.OnComplete != nil {
			r.job.OnComplete(r.result)
		}
	}
	return len(done)
}

// Pending is the number of submitted jobs whose callbacks did not run yet.
func (js *JobSystem) Pending() int {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.inFlight
}

/**
 * @brief Submits the provided job to be queued for execution. It blocks while
 * the queue is full. Safe to call concurrently with Shutdown.
 */
func (js *JobSystem) Submit(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %s has nothing to run: %w", job.Name, core.ErrLogic)
	}
	js.send.RLock()
	defer js.send.RUnlock()

	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return fmt.Errorf("submit of job %s after shutdown: %w", job.Name, core.ErrLogic)
	}
	js.inFlight++
	js.mu.Unlock()

	js.jobQueue <- job
	return nil
}
