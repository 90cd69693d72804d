package profiler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	rpprof "runtime/pprof"
	"sync"
	"time"

	"telemon/internal/scheduler"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Config представляет конфигурацию профилировщика
type Config struct {
	Enable        bool          // включить профилирование
	HTTPPort      int           // порт для HTTP сервера pprof, 0 отключает сервер
	CPUProfile    string        // путь к файлу CPU профиля
	MemProfile    string        // путь к файлу профиля памяти
	ProfileTime   int           // время записи CPU профиля в секундах
	StatsInterval time.Duration // период логирования статистики runtime
}

// Profiler управляет профилированием приложения
type Profiler struct {
	config Config
	logger *zap.Logger

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
	cpuFile    *os.File
	cpuTimer   *time.Timer
}

// New создает новый профилировщик
func New(config Config, logger *zap.Logger) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.StatsInterval <= 0 {
		config.StatsInterval = time.Minute
	}
	return &Profiler{
		config: config,
		logger: logger,
	}
}

// Enabled сообщает, включено ли профилирование
func (p *Profiler) Enabled() bool {
	return p.config.Enable
}

// Addr возвращает адрес pprof сервера или пустую строку
func (p *Profiler) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}

// Start запускает профилирование
func (p *Profiler) Start(ctx context.Context) error {
	if !p.config.Enable {
		p.logger.Info("Profiling disabled")
		return nil
	}

	p.logger.Info("Starting profiler",
		zap.Int("http_port", p.config.HTTPPort),
		zap.String("cpu_profile", p.config.CPUProfile),
		zap.String("mem_profile", p.config.MemProfile))

	if err := p.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to start pprof HTTP server: %w", err)
	}

	if p.config.CPUProfile != "" {
		if err := p.startCPUProfile(); err != nil {
			return fmt.Errorf("failed to start CPU profiling: %w", err)
		}
	}

	return nil
}

// Stop останавливает профилирование и сохраняет профиль памяти
func (p *Profiler) Stop() error {
	if !p.config.Enable {
		return nil
	}

	var errs error

	if err := p.stopCPUProfile(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to stop CPU profiling: %w", err))
	}

	if p.config.MemProfile != "" {
		if err := p.writeMemProfile(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to write memory profile: %w", err))
		}
	}

	p.mu.Lock()
	server := p.httpServer
	p.httpServer = nil
	p.addr = ""
	p.mu.Unlock()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to shutdown HTTP server: %w", err))
		}
	}

	if errs != nil {
		return fmt.Errorf("profiler shutdown errors: %w", errs)
	}

	p.logger.Info("Profiler stopped")
	return nil
}

// ScheduleStats логирует статистику памяти в цикле loop с периодом StatsInterval.
// При выключенном профилировании возвращает nil.
func (p *Profiler) ScheduleStats(loop *scheduler.Loop) *scheduler.Ticker {
	if !p.config.Enable {
		return nil
	}
	return loop.Every(p.config.StatsInterval, func(context.Context) {
		p.LogMemStats()
	})
}

// startHTTPServer запускает HTTP сервер для pprof endpoints
func (p *Profiler) startHTTPServer(ctx context.Context) error {
	if p.config.HTTPPort <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/", p.handleIndex)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", p.config.HTTPPort))
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	p.mu.Lock()
	p.httpServer = server
	p.addr = listener.Addr().String()
	p.mu.Unlock()

	go func() {
		p.logger.Info("Starting pprof HTTP server",
			zap.String("addr", listener.Addr().String()))

		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("pprof HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// handleIndex информационная страница со списком endpoints
func (p *Profiler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	port := p.config.HTTPPort
	fmt.Fprintf(w, `
Telemon Profiler

Available endpoints:
- /debug/pprof/          - pprof index
- /debug/pprof/cmdline   - command line
- /debug/pprof/profile   - CPU profile (30s)
- /debug/pprof/symbol    - symbol lookup
- /debug/pprof/trace     - execution trace (1s)
- /debug/pprof/heap      - heap profile
- /debug/pprof/goroutine - goroutine profile

Usage examples:
go tool pprof http://localhost:%d/debug/pprof/profile
go tool pprof http://localhost:%d/debug/pprof/heap
`, port, port)
}

// startCPUProfile начинает CPU профилирование в файл
func (p *Profiler) startCPUProfile() error {
	file, err := os.Create(p.config.CPUProfile)
	if err != nil {
		return fmt.Errorf("failed to create CPU profile file: %w", err)
	}

	if err := rpprof.StartCPUProfile(file); err != nil {
		return multierr.Append(
			fmt.Errorf("failed to start CPU profiling: %w", err),
			file.Close(),
		)
	}

	p.mu.Lock()
	p.cpuFile = file
	// Автоматически останавливаем через заданное время
	if p.config.ProfileTime > 0 {
		p.cpuTimer = time.AfterFunc(time.Duration(p.config.ProfileTime)*time.Second, func() {
			if err := p.stopCPUProfile(); err != nil {
				p.logger.Error("Failed to stop CPU profiling", zap.Error(err))
			}
		})
	}
	p.mu.Unlock()

	p.logger.Info("Started CPU profiling", zap.String("file", p.config.CPUProfile))
	return nil
}

// stopCPUProfile останавливает CPU профилирование; повторный вызов безопасен
func (p *Profiler) stopCPUProfile() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cpuTimer != nil {
		p.cpuTimer.Stop()
		p.cpuTimer = nil
	}
	if p.cpuFile == nil {
		return nil
	}

	rpprof.StopCPUProfile()

	err := p.cpuFile.Close()
	p.cpuFile = nil
	if err != nil {
		return fmt.Errorf("failed to close CPU profile file: %w", err)
	}

	p.logger.Info("Stopped CPU profiling", zap.String("file", p.config.CPUProfile))
	return nil
}

// writeMemProfile записывает профиль памяти в файл
func (p *Profiler) writeMemProfile() (err error) {
	file, err := os.Create(p.config.MemProfile)
	if err != nil {
		return fmt.Errorf("failed to create memory profile file: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))

	// Принудительно запускаем GC для точного профиля памяти
	runtime.GC()

	if err := rpprof.WriteHeapProfile(file); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}

	p.logger.Info("Written memory profile", zap.String("file", p.config.MemProfile))
	return nil
}

// GetMemStats возвращает статистику памяти
func (p *Profiler) GetMemStats() runtime.MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}

// LogMemStats логирует статистику памяти
func (p *Profiler) LogMemStats() {
	if !p.config.Enable {
		return
	}

	m := p.GetMemStats()
	p.logger.Info("Memory statistics",
		zap.Uint64("alloc_mb", m.Alloc/1024/1024),
		zap.Uint64("total_alloc_mb", m.TotalAlloc/1024/1024),
		zap.Uint64("sys_mb", m.Sys/1024/1024),
		zap.Uint32("num_gc", m.NumGC),
		zap.Int("goroutines", runtime.NumGoroutine()),
	)
}
