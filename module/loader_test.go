package module

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skekre98/kunou/dispatch"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder is a Dispatcher that keeps tasks instead of running them.
type recorder struct {
	mu    sync.Mutex
	tasks []dispatch.Task
	err   error
}

func (r *recorder) Submit(t dispatch.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, t)
	return nil
}

func (r *recorder) submitted() []dispatch.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatch.Task(nil), r.tasks...)
}

// countingModule counts callback invocations on top of Base.
type countingModule struct {
	*Base
	starts   atomic.Int32
	messages atomic.Int32
	deaths   atomic.Int32

	mu       sync.Mutex
	lastArgs []string
}

func newCountingModule(l *Loader, name string) *countingModule {
	return &countingModule{
		Base: NewBase(l, Info{Name: name, Version: "v0.1", Author: "tests"}, discardLogger()),
	}
}

func (m *countingModule) OnStart(ctx context.Context, args []string) error {
	m.starts.Add(1)
	m.setArgs(args)
	return m.Base.OnStart(ctx, args)
}

func (m *countingModule) OnMessage(ctx context.Context, args []string) error {
	m.messages.Add(1)
	m.setArgs(args)
	return m.Base.OnMessage(ctx, args)
}

func (m *countingModule) OnDeath(ctx context.Context) error {
	m.deaths.Add(1)
	return m.Base.OnDeath(ctx)
}

func (m *countingModule) setArgs(args []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastArgs = args
}

func (m *countingModule) args() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastArgs
}

func newRecordingLoader() (*Loader, *recorder) {
	r := &recorder{}
	return NewLoader(r, WithLogger(discardLogger())), r
}

func newRunningLoader(t *testing.T) *Loader {
	t.Helper()
	d, err := dispatch.New(dispatch.Options{Size: 8, QueueSize: 64}, dispatch.WithLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })
	return NewLoader(d, WithLogger(discardLogger()))
}

func TestLoader_StatusGates(t *testing.T) {
	ops := []struct {
		name   string
		op     string
		allows Status
		call   func(l *Loader, m Module) error
	}{
		{"start", OpStart, Dead, func(l *Loader, m Module) error { return l.StartModule(m, nil) }},
		{"message", OpMessage, Ready, func(l *Loader, m Module) error { return l.SendMessage(m, nil, "ping") }},
		{"kill", OpDeath, Ready, func(l *Loader, m Module) error { return l.KillModule(m, nil) }},
	}

	for _, op := range ops {
		for _, status := range Statuses() {
			t.Run(op.name+"/"+status.String(), func(t *testing.T) {
				l, r := newRecordingLoader()
				m := newCountingModule(l, "audio")
				require.NoError(t, l.AddModule(m))
				m.SetStatus(status)

				err := op.call(l, m)

				if status == op.allows {
					require.NoError(t, err)
					require.Len(t, r.submitted(), 1)
					assert.Equal(t, op.op, r.submitted()[0].Op)
					assert.Equal(t, "audio", r.submitted()[0].Module)
					return
				}

				require.ErrorIs(t, err, ErrInvalidTransition)
				var terr *TransitionError
				require.ErrorAs(t, err, &terr)
				assert.Equal(t, status, terr.Status)
				assert.Equal(t, op.op, terr.Op)
				assert.Equal(t, "audio", terr.Module)

				assert.Empty(t, r.submitted(), "rejected call must not dispatch")
				assert.Equal(t, status, m.Status(), "rejected call must not touch status")
				got, ok := l.Module("audio")
				assert.True(t, ok)
				assert.Same(t, m, got)
			})
		}
	}
}

func TestLoader_RejectedCallsNeverRunCallbacks(t *testing.T) {
	l := newRunningLoader(t)
	m := newCountingModule(l, "audio")
	require.NoError(t, l.AddModule(m))

	for _, status := range []Status{Dead, Starting, ShuttingDown} {
		m.SetStatus(status)
		assert.ErrorIs(t, l.SendMessage(m, nil, "ping"), ErrInvalidTransition)
		assert.ErrorIs(t, l.KillModule(m, nil), ErrInvalidTransition)
	}

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, m.messages.Load())
	assert.Zero(t, m.deaths.Load())
}

func TestSendMessage_EmptyArgs(t *testing.T) {
	for _, status := range Statuses() {
		t.Run(status.String(), func(t *testing.T) {
			l, r := newRecordingLoader()
			m := newCountingModule(l, "audio")
			require.NoError(t, l.AddModule(m))
			m.SetStatus(status)

			assert.ErrorIs(t, l.SendMessage(m, nil), ErrInvalidArgument)
			assert.ErrorIs(t, l.SendMessage(m, nil, []string{}...), ErrInvalidArgument)
			assert.Empty(t, r.submitted())
		})
	}

	t.Run("unregistered", func(t *testing.T) {
		l, _ := newRecordingLoader()
		assert.ErrorIs(t, l.SendMessage(newCountingModule(l, "ghost"), nil), ErrInvalidArgument)
	})
}

func TestLoader_NotOwned(t *testing.T) {
	calls := map[string]func(l *Loader, m Module) error{
		"start":   func(l *Loader, m Module) error { return l.StartModule(m, nil) },
		"message": func(l *Loader, m Module) error { return l.SendMessage(m, nil, "ping") },
		"kill":    func(l *Loader, m Module) error { return l.KillModule(m, nil) },
		"remove":  func(l *Loader, m Module) error { return l.RemoveModule(m) },
	}

	for name, call := range calls {
		for _, status := range Statuses() {
			t.Run(name+"/"+status.String(), func(t *testing.T) {
				l, r := newRecordingLoader()
				m := newCountingModule(l, "ghost")
				m.SetStatus(status)

				assert.ErrorIs(t, call(l, m), ErrNotOwned)
				assert.Empty(t, r.submitted())
			})
		}
	}

	t.Run("other loader", func(t *testing.T) {
		l1, _ := newRecordingLoader()
		l2, r2 := newRecordingLoader()
		m := newCountingModule(l1, "audio")
		require.NoError(t, l1.AddModule(m))

		assert.ErrorIs(t, l2.StartModule(m, nil), ErrNotOwned)
		assert.Empty(t, r2.submitted())
	})

	t.Run("replaced instance", func(t *testing.T) {
		l, r := newRecordingLoader()
		first := newCountingModule(l, "audio")
		second := newCountingModule(l, "audio")
		require.NoError(t, l.AddModule(first))
		require.NoError(t, l.AddModule(second))

		assert.ErrorIs(t, l.StartModule(first, nil), ErrNotOwned)
		assert.NoError(t, l.StartModule(second, nil))
		assert.Len(t, r.submitted(), 1)
	})
}

func TestLoader_NilModule(t *testing.T) {
	l, r := newRecordingLoader()

	assert.ErrorIs(t, l.AddModule(nil), ErrInvalidArgument)
	assert.ErrorIs(t, l.StartModule(nil, nil), ErrInvalidArgument)
	assert.ErrorIs(t, l.SendMessage(nil, nil, "ping"), ErrInvalidArgument)
	assert.ErrorIs(t, l.KillModule(nil, nil), ErrInvalidArgument)
	assert.ErrorIs(t, l.RemoveModule(nil), ErrInvalidArgument)
	assert.Empty(t, r.submitted())
}

// valueModule implements Module on a value type that cannot be compared.
type valueModule struct {
	tags   []string
	status *atomic.Int32
}

func (v valueModule) Info() Info      { return Info{Name: "value", Version: "v1"} }
func (v valueModule) Loader() *Loader { return nil }
func (v valueModule) Status() Status  { return Status(v.status.Load()) }

func (v valueModule) OnStart(context.Context, []string) error   { return nil }
func (v valueModule) OnMessage(context.Context, []string) error { return nil }
func (v valueModule) OnDeath(context.Context) error             { return nil }

func TestLoader_UncomparableModule(t *testing.T) {
	l, r := newRecordingLoader()
	m := valueModule{tags: []string{"a"}, status: new(atomic.Int32)}

	assert.ErrorIs(t, l.AddModule(m), ErrInvalidArgument)
	assert.Zero(t, l.Len())

	assert.NotPanics(t, func() {
		assert.ErrorIs(t, l.StartModule(m, nil), ErrNotOwned)
		assert.ErrorIs(t, l.SendMessage(m, nil, "ping"), ErrNotOwned)
		assert.ErrorIs(t, l.KillModule(m, nil), ErrNotOwned)
		assert.ErrorIs(t, l.RemoveModule(m), ErrNotOwned)
	})
	assert.Empty(t, r.submitted())
}

func TestAddModule_LastWriteWins(t *testing.T) {
	l, _ := newRecordingLoader()
	first := newCountingModule(l, "audio")
	second := newCountingModule(l, "audio")

	require.NoError(t, l.AddModule(first))
	require.NoError(t, l.AddModule(second))

	assert.Equal(t, 1, l.Len())
	got, ok := l.Module("audio")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestAddModule_Validation(t *testing.T) {
	l, _ := newRecordingLoader()
	other, _ := newRecordingLoader()

	tests := []struct {
		name    string
		module  Module
		wantErr error
	}{
		{"missing name", NewBase(l, Info{Version: "v1"}, nil), ErrInvalidArgument},
		{"bad url", NewBase(l, Info{Name: "audio", URL: "not a url"}, nil), ErrInvalidArgument},
		{"bound elsewhere", NewBase(other, Info{Name: "audio"}, nil), ErrNotOwned},
		{"valid with url", NewBase(l, Info{Name: "audio", URL: "https://example.com/audio"}, nil), nil},
		{"unbound", NewBase(nil, Info{Name: "video"}, nil), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.AddModule(tt.module)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRemoveModule(t *testing.T) {
	l, _ := newRecordingLoader()
	m := newCountingModule(l, "audio")
	require.NoError(t, l.AddModule(m))

	m.SetStatus(Ready)
	assert.ErrorIs(t, l.RemoveModule(m), ErrInvalidTransition)
	assert.Equal(t, 1, l.Len())

	m.SetStatus(Dead)
	require.NoError(t, l.RemoveModule(m))
	assert.Zero(t, l.Len())
	_, ok := l.Module("audio")
	assert.False(t, ok)

	assert.ErrorIs(t, l.RemoveModule(m), ErrNotOwned)
}

func TestLoader_ListAndModules(t *testing.T) {
	l, _ := newRecordingLoader()
	for _, name := range []string{"video", "audio", "network"} {
		require.NoError(t, l.AddModule(newCountingModule(l, name)))
	}

	var names []string
	for _, m := range l.List() {
		names = append(names, m.Info().Name)
	}
	assert.Equal(t, []string{"audio", "network", "video"}, names)

	snapshot := l.Modules()
	assert.Len(t, snapshot, 3)
	delete(snapshot, "audio")
	assert.Equal(t, 3, l.Len(), "snapshot must not alias the registry")
}

func TestLoader_DispatchTasks(t *testing.T) {
	l, r := newRecordingLoader()
	m := newCountingModule(l, "audio")
	require.NoError(t, l.AddModule(m))

	args := []string{"--volume", "3"}
	require.NoError(t, l.StartModule(m, nil, args...))
	args[1] = "11"

	tasks := r.submitted()
	require.Len(t, tasks, 1)
	assert.False(t, tasks[0].Tracked)
	assert.Nil(t, tasks[0].FollowUp)

	require.NoError(t, tasks[0].Run(context.Background()))
	assert.Equal(t, []string{"--volume", "3"}, m.args(), "args must be copied at submit time")
	assert.Equal(t, Ready, m.Status())

	var followed atomic.Bool
	require.NoError(t, l.KillModule(m, func(_ context.Context, got *Loader, gotM Module) error {
		assert.Same(t, l, got)
		assert.Same(t, m, gotM)
		followed.Store(true)
		return nil
	}))
	tasks = r.submitted()
	require.Len(t, tasks, 2)
	assert.True(t, tasks[1].Tracked, "death tasks are tracked")
	require.NotNil(t, tasks[1].FollowUp)
	require.NoError(t, tasks[1].Run(context.Background()))
	require.NoError(t, tasks[1].FollowUp(context.Background()))
	assert.True(t, followed.Load())
	assert.Equal(t, Dead, m.Status())
}

func TestLoader_DispatcherRefusal(t *testing.T) {
	l, r := newRecordingLoader()
	r.err = dispatch.ErrSaturated
	m := newCountingModule(l, "audio")
	require.NoError(t, l.AddModule(m))

	err := l.StartModule(m, nil)
	assert.ErrorIs(t, err, dispatch.ErrSaturated)
	assert.Equal(t, Dead, m.Status())
}

func TestStartModule_FollowUpOrdering(t *testing.T) {
	l := newRunningLoader(t)

	for i := 0; i < 25; i++ {
		m := &orderedModule{Base: NewBase(l, Info{Name: "ordered"}, discardLogger())}
		require.NoError(t, l.AddModule(m))

		done := make(chan struct{})
		var (
			followedAt     time.Time
			followUpWorker string
		)
		require.NoError(t, l.StartModule(m, func(ctx context.Context, _ *Loader, _ Module) error {
			followedAt = time.Now()
			followUpWorker = dispatch.WorkerName(ctx)
			close(done)
			return nil
		}))

		select {
		case <-done:
		case <-time.After(waitFor):
			t.Fatal("follow-up never ran")
		}
		assert.True(t, followedAt.After(m.finishedAt) || followedAt.Equal(m.finishedAt))
		assert.Equal(t, m.worker, followUpWorker)
		assert.NotEmpty(t, followUpWorker)
	}
}

type orderedModule struct {
	*Base
	finishedAt time.Time
	worker     string
}

func (m *orderedModule) OnStart(ctx context.Context, args []string) error {
	m.worker = dispatch.WorkerName(ctx)
	if err := m.Base.OnStart(ctx, args); err != nil {
		return err
	}
	m.finishedAt = time.Now()
	return nil
}

func TestLoader_Lifecycle(t *testing.T) {
	l := newRunningLoader(t)
	m := newCountingModule(l, "M")
	require.NoError(t, l.AddModule(m))
	require.Equal(t, Dead, m.Status())

	require.NoError(t, l.StartModule(m, nil))
	assert.Eventually(t, func() bool { return m.Status() == Ready }, waitFor, tick)
	assert.Equal(t, int32(1), m.starts.Load())

	require.NoError(t, l.SendMessage(m, nil, "ping"))
	assert.Eventually(t, func() bool { return m.messages.Load() == 1 }, waitFor, tick)
	assert.Equal(t, []string{"ping"}, m.args())

	require.NoError(t, l.KillModule(m, nil))
	assert.Eventually(t, func() bool { return m.Status() == Dead }, waitFor, tick)
	assert.Equal(t, int32(1), m.deaths.Load())

	err := l.KillModule(m, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, int32(1), m.deaths.Load())

	// Dead again, so it can be restarted.
	require.NoError(t, l.StartModule(m, nil))
	assert.Eventually(t, func() bool { return m.starts.Load() == 2 && m.Status() == Ready }, waitFor, tick)
}

func TestLoader_CallbackFailureStaysOnWorker(t *testing.T) {
	var routed atomic.Int32
	d, err := dispatch.New(dispatch.Options{}, dispatch.WithLogger(discardLogger()),
		dispatch.WithFailureHandler(func(err *dispatch.CallbackError) {
			if errors.Is(err, errStartFailed) {
				routed.Add(1)
			}
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })

	l := NewLoader(d, WithLogger(discardLogger()))
	m := &failingModule{Base: NewBase(l, Info{Name: "flaky"}, discardLogger())}
	require.NoError(t, l.AddModule(m))

	var followed atomic.Bool
	require.NoError(t, l.StartModule(m, func(context.Context, *Loader, Module) error {
		followed.Store(true)
		return nil
	}))
	assert.Eventually(t, func() bool { return routed.Load() == 1 }, waitFor, tick)
	assert.False(t, followed.Load())
}

var errStartFailed = errors.New("start failed")

type failingModule struct {
	*Base
}

func (m *failingModule) OnStart(context.Context, []string) error {
	m.SetStatus(Starting)
	return errStartFailed
}
