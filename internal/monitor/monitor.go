// Package monitor содержит движок опроса: жизненный цикл start/stop/poll
// и машину состояний, общую для всех семейств метрик.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telemon/internal/scheduler"

	"go.uber.org/zap"
)

// DefaultInterval период опроса по умолчанию
const DefaultInterval = time.Second

// ErrInvalidInterval возвращается SetInterval для неположительного периода
var ErrInvalidInterval = errors.New("update interval must be positive")

// Sampler шаг сбора данных одного семейства метрик.
// Ошибка Collect означает, что обязательное поле прочитать невозможно.
type Sampler[S any] interface {
	Name() string
	Collect(ctx context.Context) (S, error)
}

// Monitor управляет периодическим опросом одного Sampler.
//
// Методы Monitor не потокобезопасны: они вызываются из горутины
// scheduler.Loop (обработчики событий уже выполняются в ней),
// остальные горутины обращаются к монитору через Loop.Do.
type Monitor[S any] struct {
	sampler Sampler[S]
	loop    *scheduler.Loop
	logger  *zap.Logger

	state    State
	interval time.Duration
	ticker   *scheduler.Ticker

	sampleHandlers []func(S)
	stateHandlers  []func(old, new State)
	errorHandlers  []func(error)
}

// New создает остановленный монитор
func New[S any](loop *scheduler.Loop, sampler Sampler[S], interval time.Duration, logger *zap.Logger) *Monitor[S] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor[S]{
		sampler:  sampler,
		loop:     loop,
		logger:   logger.With(zap.String("monitor", sampler.Name())),
		state:    Stopped,
		interval: interval,
	}
}

// Name возвращает имя семейства метрик
func (m *Monitor[S]) Name() string {
	return m.sampler.Name()
}

// Sampler возвращает опрашиваемый сборщик
func (m *Monitor[S]) Sampler() Sampler[S] {
	return m.sampler
}

// State возвращает текущее состояние
func (m *Monitor[S]) State() State {
	return m.state
}

// IsRunning сообщает, находится ли монитор в состоянии Running
func (m *Monitor[S]) IsRunning() bool {
	return m.state == Running
}

// Interval возвращает период опроса
func (m *Monitor[S]) Interval() time.Duration {
	return m.interval
}

// OnSample подписывает обработчик на новые данные
func (m *Monitor[S]) OnSample(fn func(S)) {
	m.sampleHandlers = append(m.sampleHandlers, fn)
}

// OnStateChange подписывает обработчик на смену состояния
func (m *Monitor[S]) OnStateChange(fn func(old, new State)) {
	m.stateHandlers = append(m.stateHandlers, fn)
}

// OnError подписывает обработчик на ошибки сбора
func (m *Monitor[S]) OnError(fn func(error)) {
	m.errorHandlers = append(m.errorHandlers, fn)
}

// Start взводит таймер и сразу выполняет один цикл опроса
func (m *Monitor[S]) Start(ctx context.Context) {
	if m.state == Running {
		return
	}

	m.logger.Info("Starting monitor", zap.Duration("interval", m.interval))

	m.setState(Running)
	if m.ticker == nil {
		m.ticker = m.loop.Every(m.interval, func(ctx context.Context) {
			m.poll(ctx)
		})
	}

	m.poll(ctx)
}

// Stop снимает таймер; допустим из любого состояния
func (m *Monitor[S]) Stop() {
	if m.state == Stopped {
		return
	}

	m.logger.Info("Stopping monitor")

	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
	m.setState(Stopped)
}

// PollNow выполняет ровно один цикл опроса синхронно.
// У остановленного монитора ошибка цикла только публикуется обработчикам,
// состояние остается Stopped.
func (m *Monitor[S]) PollNow(ctx context.Context) bool {
	return m.poll(ctx)
}

// SetInterval меняет период опроса со следующего срабатывания таймера
func (m *Monitor[S]) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		m.logger.Warn("Invalid update interval", zap.Duration("interval", interval))
		return fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}

	m.interval = interval
	if m.ticker != nil {
		m.ticker.SetInterval(interval)
	}

	m.logger.Debug("Update interval set", zap.Duration("interval", interval))
	return nil
}

// poll один цикл: сбор, восстановление из Error, публикация.
// Пока монитор в Error, таймер продолжает работать и каждый цикл
// является попыткой восстановления.
func (m *Monitor[S]) poll(ctx context.Context) bool {
	sample, err := m.collect(ctx)
	if err != nil {
		m.fail(fmt.Errorf("%s: data collection failed: %w", m.sampler.Name(), err))
		return false
	}

	if m.state == Error {
		m.logger.Info("Monitor recovered")
		m.setState(Running)
	}

	for _, fn := range m.sampleHandlers {
		fn(sample)
	}
	return true
}

// collect вызывает Sampler, превращая панику в ошибку
func (m *Monitor[S]) collect(ctx context.Context) (sample S, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unknown error during data collection: %v", r)
		}
	}()
	return m.sampler.Collect(ctx)
}

// fail переводит активный монитор в Error и публикует ошибку.
// Остановленный монитор остается Stopped: ручной опрос не активирует его.
func (m *Monitor[S]) fail(err error) {
	m.logger.Warn("Monitor error", zap.Error(err))

	if m.state != Stopped {
		m.setState(Error)
	}
	for _, fn := range m.errorHandlers {
		fn(err)
	}
}

func (m *Monitor[S]) setState(state State) {
	if m.state == state {
		return
	}

	old := m.state
	m.state = state

	m.logger.Debug("Monitor state changed",
		zap.Stringer("from", old),
		zap.Stringer("to", state))

	for _, fn := range m.stateHandlers {
		fn(old, state)
	}
}
