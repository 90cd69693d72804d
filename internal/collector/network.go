package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"telemon/internal/procfs"

	"go.uber.org/zap"
)

const (
	loopbackInterface = "lo"

	// rxBytesField и txBytesField индексы в строке /proc/net/dev,
	// где поле 0 это имя интерфейса
	rxBytesField = 1
	txBytesField = 9
)

// NetworkOptions источник статистики устройств и правила выбора интерфейса
type NetworkOptions struct {
	DevPath           string
	Preferred         []string
	VirtualPrefixes   []string
	FallbackInterface string
}

// DefaultNetworkOptions настройки стандартного Linux хоста
func DefaultNetworkOptions() NetworkOptions {
	return NetworkOptions{
		DevPath:           "proc/net/dev",
		Preferred:         []string{"eth0", "enp0s3", "wlan0", "wlp2s0"},
		VirtualPrefixes:   []string{"docker", "vir"},
		FallbackInterface: "eth0",
	}
}

// devRow строка статистики одного интерфейса
type devRow struct {
	name string
	rx   uint64
	tx   uint64
	err  error
}

// NetworkSampler считает скорость приема и передачи активного интерфейса
type NetworkSampler struct {
	reader     *procfs.Reader
	opts       NetworkOptions
	substitute Substitute
	logger     *zap.Logger
	now        func() time.Time

	active string
	sample NetworkSample

	prevRx      uint64
	prevTx      uint64
	prevTime    time.Time
	hasPrevious bool
}

// NewNetworkSampler создает сборщик; now задает часы (time.Now если nil)
func NewNetworkSampler(ctx context.Context, reader *procfs.Reader, opts NetworkOptions, substitute Substitute, now func() time.Time, logger *zap.Logger) *NetworkSampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	s := &NetworkSampler{
		reader:     reader,
		opts:       opts,
		substitute: substitute,
		logger:     logger,
		now:        now,
	}

	rows, err := s.readRows(ctx)
	if err != nil {
		logger.Warn("Network statistics unavailable at startup", zap.Error(err))
	}
	s.active = s.discover(rows)

	logger.Info("Network sampler initialized", zap.String("interface", s.active))
	return s
}

// Name возвращает имя семейства метрик
func (s *NetworkSampler) Name() string {
	return "network"
}

// ActiveInterface возвращает опрашиваемый интерфейс
func (s *NetworkSampler) ActiveInterface() string {
	return s.active
}

// Sample возвращает копию последних данных
func (s *NetworkSampler) Sample() NetworkSample {
	return s.sample
}

// Collect читает счетчики активного интерфейса и считает скорости.
// Пропавший интерфейс вызывает повторный выбор и сброс базы, цикл дает 0/0.
func (s *NetworkSampler) Collect(ctx context.Context) (NetworkSample, error) {
	rows, err := s.readRows(ctx)
	if err != nil {
		return NetworkSample{}, err
	}

	row, found := findRow(rows, s.active)
	if !found {
		next := s.discover(rows)
		if next != s.active {
			s.logger.Info("Network interface changed",
				zap.String("from", s.active),
				zap.String("to", next))
			s.active = next
		}
		s.adoptInterface(rows)
		return s.sample, nil
	}
	if row.err != nil {
		return NetworkSample{}, row.err
	}

	s.sample.Interface = s.active
	s.sample.BytesDown = row.rx
	s.sample.BytesUp = row.tx
	s.updateRates()

	s.logger.Debug("Network sample collected",
		zap.String("interface", s.active),
		zap.String("up", FormatRate(s.sample.UploadMBps)),
		zap.String("down", FormatRate(s.sample.DownloadMBps)))

	return s.sample, nil
}

// AvailableInterfaces перечисляет все интерфейсы, кроме loopback.
// Состояние опроса не меняется.
func (s *NetworkSampler) AvailableInterfaces(ctx context.Context) ([]string, error) {
	rows, err := s.readRows(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.name != loopbackInterface {
			names = append(names, row.name)
		}
	}
	return names, nil
}

func (s *NetworkSampler) updateRates() {
	now := s.now()

	s.sample.UploadMBps = 0
	s.sample.DownloadMBps = 0

	if s.hasPrevious && (s.prevRx > 0 || s.prevTx > 0) {
		elapsed := now.Sub(s.prevTime).Seconds()
		if elapsed > 0 {
			s.sample.DownloadMBps = Rate(s.prevRx, s.sample.BytesDown, elapsed)
			s.sample.UploadMBps = Rate(s.prevTx, s.sample.BytesUp, elapsed)
		}
	}

	s.prevRx = s.sample.BytesDown
	s.prevTx = s.sample.BytesUp
	s.prevTime = now
	s.hasPrevious = true
}

// adoptInterface берет счетчики нового активного интерфейса как базу.
// Скорости этого цикла равны 0, если строки нет, счетчики обнуляются.
func (s *NetworkSampler) adoptInterface(rows []devRow) {
	s.sample = NetworkSample{Interface: s.active}

	row, found := findRow(rows, s.active)
	if !found || row.err != nil {
		s.resetRate()
		return
	}

	s.sample.BytesDown = row.rx
	s.sample.BytesUp = row.tx
	s.prevRx = row.rx
	s.prevTx = row.tx
	s.prevTime = s.now()
	s.hasPrevious = true
}

func (s *NetworkSampler) resetRate() {
	s.prevRx = 0
	s.prevTx = 0
	s.prevTime = time.Time{}
	s.hasPrevious = false
}

// Rate скорость в МБ/с между двумя значениями счетчика, в [0, MaxRateMBps]
func Rate(prev, cur uint64, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	delta := float64(cur) - float64(prev)
	return clamp(delta/elapsedSeconds/BytesPerMB, 0, MaxRateMBps)
}

// discover выбирает интерфейс: сначала из списка предпочтительных,
// затем первый не loopback и не виртуальный, иначе запасной.
func (s *NetworkSampler) discover(rows []devRow) string {
	for _, name := range s.opts.Preferred {
		if _, ok := findRow(rows, name); ok {
			return name
		}
	}
	for _, row := range rows {
		if row.name == loopbackInterface || s.isVirtual(row.name) {
			continue
		}
		return row.name
	}
	return s.opts.FallbackInterface
}

func (s *NetworkSampler) isVirtual(name string) bool {
	for _, prefix := range s.opts.VirtualPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (s *NetworkSampler) readRows(ctx context.Context) ([]devRow, error) {
	lines, err := s.reader.ReadLines(s.opts.DevPath)
	if err == nil {
		return parseNetDev(lines, s.opts.DevPath), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, parseError(s.opts.DevPath, "cannot read source", err)
	}
	if s.substitute == nil {
		return nil, fmt.Errorf("%s: %w", s.opts.DevPath, ErrSourceUnavailable)
	}

	counters, err := s.substitute.NetCounters(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]devRow, 0, len(counters))
	for _, c := range counters {
		rows = append(rows, devRow{name: c.Name, rx: c.RxBytes, tx: c.TxBytes})
	}
	return rows, nil
}

// parseNetDev разбирает строки "iface: f0 f1 ... f15". Строки без ':'
// (заголовки) пропускаются, ошибка разбора сохраняется в строке интерфейса
// и становится фатальной, только если это активный интерфейс.
func parseNetDev(lines []string, source string) []devRow {
	rows := make([]devRow, 0, len(lines))
	for _, line := range lines {
		name, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" || strings.Contains(name, "|") {
			continue
		}

		row := devRow{name: name}
		// Поле 0 это имя интерфейса, счетчики начинаются с поля 1
		fields := append([]string{name}, strings.Fields(rest)...)
		if len(fields) <= txBytesField {
			row.err = parseError(source, fmt.Sprintf("interface %s has %d fields, need %d", name, len(fields), txBytesField+1), nil)
			rows = append(rows, row)
			continue
		}

		rx, err := strconv.ParseUint(fields[rxBytesField], 10, 64)
		if err != nil {
			row.err = parseError(source, "bad receive bytes for "+name, err)
		}
		tx, err := strconv.ParseUint(fields[txBytesField], 10, 64)
		if err != nil && row.err == nil {
			row.err = parseError(source, "bad transmit bytes for "+name, err)
		}
		row.rx, row.tx = rx, tx
		rows = append(rows, row)
	}
	return rows
}

func findRow(rows []devRow, name string) (devRow, bool) {
	for _, row := range rows {
		if row.name == name {
			return row, true
		}
	}
	return devRow{}, false
}
