package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task выполняется в горутине цикла
type Task func(ctx context.Context)

// Loop однопоточный цикл событий: задачи выполняются строго по одной,
// в порядке постановки. Все таймеры мониторов доставляют срабатывания сюда.
type Loop struct {
	logger *zap.Logger

	mu    sync.Mutex
	queue []Task
	wake  chan struct{}
}

// New создает новый цикл
func New(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Post ставит задачу в очередь. Никогда не блокируется.
func (l *Loop) Post(task Task) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do выполняет задачу в цикле и ждет ее завершения.
// Нельзя вызывать из самой горутины цикла.
func (l *Loop) Do(ctx context.Context, task Task) error {
	done := make(chan struct{})
	l.Post(func(ctx context.Context) {
		defer close(done)
		task(ctx)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run обрабатывает очередь до отмены ctx
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Scheduler loop started")

	for {
		for {
			task, ok := l.next()
			if !ok {
				break
			}
			l.execute(ctx, task)
			if ctx.Err() != nil {
				break
			}
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			l.logger.Info("Scheduler loop stopped")
			return nil
		}
	}
}

// Pending возвращает число задач в очереди
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) next() (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

// execute изолирует панику задачи, чтобы цикл продолжал работу
func (l *Loop) execute(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Scheduled task panicked", zap.Any("panic", r))
		}
	}()
	task(ctx)
}

// Every создает повторяющийся таймер с фиксированной задержкой.
// Следующее срабатывание взводится только после завершения task,
// поэтому срабатывания одного таймера не перекрываются.
func (l *Loop) Every(interval time.Duration, task Task) *Ticker {
	t := &Ticker{
		loop:     l,
		task:     task,
		interval: interval,
	}
	t.mu.Lock()
	t.arm()
	t.mu.Unlock()
	return t
}

// Ticker повторяющийся таймер, доставляющий срабатывания в Loop
type Ticker struct {
	loop *Loop
	task Task

	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	inFlight bool
	stopped  bool
}

// Interval возвращает текущий период
func (t *Ticker) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// SetInterval меняет период. Ожидающий таймер перевзводится с новым периодом,
// выполняющееся срабатывание применит его при повторном взводе.
func (t *Ticker) SetInterval(interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.interval = interval
	if t.stopped || t.inFlight || t.timer == nil {
		return
	}
	if t.timer.Stop() {
		t.arm()
	}
}

// Stop останавливает таймер. Уже поставленное в очередь срабатывание
// будет проигнорировано.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

// arm вызывается под t.mu
func (t *Ticker) arm() {
	t.timer = time.AfterFunc(t.interval, func() {
		t.mu.Lock()
		if t.stopped {
			t.mu.Unlock()
			return
		}
		t.inFlight = true
		t.mu.Unlock()

		t.loop.Post(t.fire)
	})
}

func (t *Ticker) fire(ctx context.Context) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.inFlight = false
		if !t.stopped {
			t.arm()
		}
		t.mu.Unlock()
	}()

	t.task(ctx)
}
