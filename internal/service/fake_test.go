package service_test

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/updateio/updateio/internal/model"
	"github.com/updateio/updateio/internal/steamcmd"
)

// fakeRunner counts invocations per operation and delegates to the test.
type fakeRunner struct {
	mx    sync.Mutex
	calls map[steamcmd.Operation]int
	run   func(ctx context.Context, op steamcmd.Operation, id model.AppID) (steamcmd.Result, error)
	start func(ctx context.Context, id model.AppID) (*steamcmd.Process, error)
}

func (f *fakeRunner) count(op steamcmd.Operation) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.calls == nil {
		f.calls = make(map[steamcmd.Operation]int)
	}
	f.calls[op]++
}

func (f *fakeRunner) Calls(op steamcmd.Operation) int {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.calls[op]
}

func (f *fakeRunner) Start(ctx context.Context, op steamcmd.Operation, id model.AppID) (*steamcmd.Process, error) {
	f.count(op)
	return f.start(ctx, id)
}

func (f *fakeRunner) Run(ctx context.Context, op steamcmd.Operation, id model.AppID) (steamcmd.Result, error) {
	f.count(op)
	return f.run(ctx, op, id)
}

// scripted returns a process writing the lines to its pipes concurrently.
// Writes block until they are read, so Wait hangs unless both streams are
// drained to EOF.
func scripted(stdout, stderr []string, waitErr error) *steamcmd.Process {
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	var wg sync.WaitGroup
	write := func(w *io.PipeWriter, lines []string) {
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				break
			}
		}
		_ = w.Close()
	}
	wg.Go(func() { write(outW, stdout) })
	wg.Go(func() { write(errW, stderr) })
	return steamcmd.NewProcess(outR, errR, func() error {
		wg.Wait()
		return waitErr
	})
}

// output returns a run result with the given stdout.
func output(stdout string, err error) func(context.Context, steamcmd.Operation, model.AppID) (steamcmd.Result, error) {
	return func(context.Context, steamcmd.Operation, model.AppID) (steamcmd.Result, error) {
		return steamcmd.Result{Stdout: stdout}, err
	}
}

// recorder collects delivered events.
type recorder struct {
	mx     sync.Mutex
	events []model.UpdateStatus
}

func (r *recorder) Progress(s model.UpdateStatus) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) Events() []model.UpdateStatus {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]model.UpdateStatus(nil), r.events...)
}

func (r *recorder) Last() model.UpdateStatus {
	events := r.Events()
	if len(events) == 0 {
		return model.UpdateStatus{}
	}
	return events[len(events)-1]
}

func testConfig() model.Config {
	cfg := model.DefaultConfig()
	cfg.Cache.Size = 16
	return cfg
}
