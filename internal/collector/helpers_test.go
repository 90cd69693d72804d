package collector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"telemon/internal/procfs"

	"go.uber.org/zap/zaptest"
)

// hostFixture временный корень хоста с псевдофайлами
type hostFixture struct {
	t    *testing.T
	root string
}

func newHost(t *testing.T) *hostFixture {
	t.Helper()
	return &hostFixture{t: t, root: t.TempDir()}
}

func (h *hostFixture) write(name, content string) {
	h.t.Helper()
	path := filepath.Join(h.root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		h.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		h.t.Fatal(err)
	}
}

func (h *hostFixture) remove(name string) {
	h.t.Helper()
	if err := os.Remove(filepath.Join(h.root, name)); err != nil {
		h.t.Fatal(err)
	}
}

func (h *hostFixture) reader() *procfs.Reader {
	return procfs.NewReader(h.root, zaptest.NewLogger(h.t))
}

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func approxEqual(a, b, tolerance float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}
