package async

import (
	"context"
	"sync"
)

type Task[T any] struct {
	Name    string
	Execute func(ctx context.Context) (T, error)
}

type Result[T any] struct {
	Name string
	Data T
	Err  error
}

// Pool runs a batch of named tasks on a fixed number of workers.
type Pool[T any] struct {
	workerCount int
}

func NewPool[T any](workerCount int) *Pool[T] {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool[T]{workerCount: workerCount}
}

func worker[T any](ctx context.Context, tasks <-chan Task[T], results chan<- Result[T], wg *sync.WaitGroup) {
	defer wg.Done()
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result[T]{Name: task.Name, Err: err}
			continue
		}
		data, err := task.Execute(ctx)
		results <- Result[T]{Name: task.Name, Data: data, Err: err}
	}
}

// Execute runs tasks and returns their results keyed by name. Every task gets a result;
// tasks that had not started when ctx was cancelled report ctx.Err().
func (p *Pool[T]) Execute(ctx context.Context, tasks []Task[T]) map[string]Result[T] {
	taskCh := make(chan Task[T])
	resultCh := make(chan Result[T], len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go worker(ctx, taskCh, resultCh, &wg)
	}

	go func() {
		for _, task := range tasks {
			taskCh <- task
		}
		close(taskCh)
	}()

	results := make(map[string]Result[T], len(tasks))
	for i := 0; i < len(tasks); i++ {
		result := <-resultCh
		results[result.Name] = result
	}

	wg.Wait()
	return results
}
