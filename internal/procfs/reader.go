// Package procfs читает псевдофайлы ядра (/proc, /sys) как текст.
package procfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const unknownHostname = "Unknown"

// Reader читает счетчики относительно корня хоста.
// Корень подменяется в тестах на временный каталог.
type Reader struct {
	root   string
	logger *zap.Logger
}

// NewReader создает читатель с корнем root ("/" если пусто)
func NewReader(root string, logger *zap.Logger) *Reader {
	if root == "" {
		root = "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		root:   root,
		logger: logger,
	}
}

// Path возвращает абсолютный путь источника
func (r *Reader) Path(name string) string {
	if filepath.IsAbs(name) && r.root == "/" {
		return name
	}
	return filepath.Join(r.root, name)
}

// Exists проверяет наличие источника
func (r *Reader) Exists(name string) bool {
	_, err := os.Stat(r.Path(name))
	return err == nil
}

// ReadFile читает источник целиком. Отсутствующий файл дает ошибку,
// совместимую с errors.Is(err, fs.ErrNotExist).
func (r *Reader) ReadFile(name string) (string, error) {
	path := r.Path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		r.logger.Debug("Cannot read counter source",
			zap.String("path", path),
			zap.Error(err))
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// ReadLines читает источник и режет его на непустые строки
func (r *Reader) ReadLines(name string) ([]string, error) {
	content, err := r.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return SplitLines(content), nil
}

// ReadInt читает источник с одним целым числом (thermal zone, cpufreq)
func (r *Reader) ReadInt(name string) (int64, error) {
	content, err := r.ReadFile(name)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(strings.TrimSpace(content), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer from %s: %w", r.Path(name), err)
	}
	return value, nil
}

// Hostname возвращает имя хоста из proc/sys/kernel/hostname,
// затем из $HOSTNAME, иначе "Unknown".
func (r *Reader) Hostname() string {
	if content, err := r.ReadFile("proc/sys/kernel/hostname"); err == nil {
		if name := strings.TrimSpace(content); name != "" {
			return name
		}
	}
	if name := os.Getenv("HOSTNAME"); name != "" {
		return name
	}
	return unknownHostname
}

// SplitLines делит текст на строки, отбрасывая пустые
func SplitLines(content string) []string {
	raw := strings.Split(content, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
