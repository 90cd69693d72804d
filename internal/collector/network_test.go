package collector

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

const netDevHeader = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
`

type ifaceStat struct {
	name   string
	rx, tx uint64
}

func netDev(stats ...ifaceStat) string {
	var b strings.Builder
	b.WriteString(netDevHeader)
	for _, s := range stats {
		fmt.Fprintf(&b, "%6s: %d 10 0 0 0 0 0 0 %d 20 0 0 0 0 0 0\n", s.name, s.rx, s.tx)
	}
	return b.String()
}

func newNetworkSampler(t *testing.T, h *hostFixture, opts NetworkOptions, sub Substitute, clock *fakeClock) *NetworkSampler {
	t.Helper()
	return NewNetworkSampler(context.Background(), h.reader(), opts, sub, clock.Now, zaptest.NewLogger(t))
}

func TestNetworkSamplerRates(t *testing.T) {
	h := newHost(t)
	clock := newFakeClock()
	h.write("proc/net/dev", netDev(
		ifaceStat{name: "lo", rx: 500, tx: 500},
		ifaceStat{name: "eth0", rx: 1_000_000, tx: 2_000_000},
	))
	s := newNetworkSampler(t, h, DefaultNetworkOptions(), nil, clock)
	ctx := context.Background()

	first, err := s.Collect(ctx)
	if err != nil {
		t.Fatalf("first Collect: %v", err)
	}
	if first.DownloadMBps != 0 || first.UploadMBps != 0 {
		t.Fatalf("first sample = %v/%v, want 0/0", first.UploadMBps, first.DownloadMBps)
	}
	if first.Interface != "eth0" || first.BytesDown != 1_000_000 || first.BytesUp != 2_000_000 {
		t.Fatalf("first sample = %+v", first)
	}

	clock.Advance(2 * time.Second)
	h.write("proc/net/dev", netDev(
		ifaceStat{name: "lo", rx: 500, tx: 500},
		ifaceStat{name: "eth0", rx: 1_000_000 + 10_485_760, tx: 2_000_000 + 2_097_152},
	))

	second, err := s.Collect(ctx)
	if err != nil {
		t.Fatalf("second Collect: %v", err)
	}
	if !approxEqual(second.DownloadMBps, 5.0, 0.01) {
		t.Errorf("download = %v, want 5.0", second.DownloadMBps)
	}
	if !approxEqual(second.UploadMBps, 1.0, 0.01) {
		t.Errorf("upload = %v, want 1.0", second.UploadMBps)
	}
}

func TestNetworkSamplerClampsRates(t *testing.T) {
	h := newHost(t)
	clock := newFakeClock()
	h.write("proc/net/dev", netDev(ifaceStat{name: "eth0", rx: 5_000_000, tx: 5_000_000}))
	s := newNetworkSampler(t, h, DefaultNetworkOptions(), nil, clock)
	ctx := context.Background()

	if _, err := s.Collect(ctx); err != nil {
		t.Fatal(err)
	}

	// rx откатился (переполнение счетчика), tx вырос неправдоподобно
	clock.Advance(time.Second)
	h.write("proc/net/dev", netDev(ifaceStat{name: "eth0", rx: 1_000, tx: 5_000_000 + 2000*BytesPerMB}))

	got, err := s.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.DownloadMBps != 0 {
		t.Errorf("download = %v, want 0", got.DownloadMBps)
	}
	if got.UploadMBps != MaxRateMBps {
		t.Errorf("upload = %v, want %v", got.UploadMBps, MaxRateMBps)
	}
}

func TestNetworkSamplerInterfaceLost(t *testing.T) {
	h := newHost(t)
	clock := newFakeClock()
	h.write("proc/net/dev", netDev(
		ifaceStat{name: "lo", rx: 1, tx: 1},
		ifaceStat{name: "eth0", rx: 1_000_000, tx: 1_000_000},
	))
	s := newNetworkSampler(t, h, DefaultNetworkOptions(), nil, clock)
	ctx := context.Background()

	if _, err := s.Collect(ctx); err != nil {
		t.Fatal(err)
	}

	// eth0 пропал, появился wlan0 с большими счетчиками
	clock.Advance(time.Second)
	h.write("proc/net/dev", netDev(
		ifaceStat{name: "lo", rx: 1, tx: 1},
		ifaceStat{name: "wlan0", rx: 900_000_000, tx: 800_000_000},
	))

	swapped, err := s.Collect(ctx)
	if err != nil {
		t.Fatalf("lost interface must not be an error: %v", err)
	}
	if s.ActiveInterface() != "wlan0" || swapped.Interface != "wlan0" {
		t.Fatalf("active = %q, want wlan0", s.ActiveInterface())
	}
	if swapped.DownloadMBps != 0 || swapped.UploadMBps != 0 {
		t.Fatalf("swap cycle = %v/%v, want 0/0", swapped.UploadMBps, swapped.DownloadMBps)
	}
	if swapped.BytesDown != 900_000_000 || swapped.BytesUp != 800_000_000 {
		t.Fatalf("swap cycle counters = %d/%d, want wlan0 counters", swapped.BytesDown, swapped.BytesUp)
	}

	clock.Advance(time.Second)
	next, err := s.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next.DownloadMBps != 0 || next.UploadMBps != 0 {
		t.Fatalf("first rate after swap = %v/%v, want 0/0 (no spike)", next.UploadMBps, next.DownloadMBps)
	}

	clock.Advance(time.Second)
	h.write("proc/net/dev", netDev(
		ifaceStat{name: "lo", rx: 1, tx: 1},
		ifaceStat{name: "wlan0", rx: 900_000_000 + BytesPerMB, tx: 800_000_000},
	))
	settled, err := s.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !approxEqual(settled.DownloadMBps, 1.0, 0.01) {
		t.Fatalf("download = %v, want 1.0", settled.DownloadMBps)
	}
}

func TestNetworkSamplerFallbackAbsentZeroesCounters(t *testing.T) {
	h := newHost(t)
	clock := newFakeClock()
	h.write("proc/net/dev", netDev(ifaceStat{name: "eth0", rx: 1_000_000, tx: 2_000_000}))
	s := newNetworkSampler(t, h, DefaultNetworkOptions(), nil, clock)
	ctx := context.Background()

	if _, err := s.Collect(ctx); err != nil {
		t.Fatal(err)
	}

	// eth0 пропал, запасной интерфейс (тоже eth0) отсутствует
	clock.Advance(time.Second)
	h.write("proc/net/dev", netDev(ifaceStat{name: "lo", rx: 1, tx: 1}))

	got, err := s.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := NetworkSample{Interface: "eth0"}
	if got != want {
		t.Fatalf("sample = %+v, want %+v", got, want)
	}

	// eth0 вернулся: первый цикл без всплеска скорости
	clock.Advance(time.Second)
	h.write("proc/net/dev", netDev(ifaceStat{name: "eth0", rx: 5_000_000, tx: 5_000_000}))
	back, err := s.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if back.DownloadMBps != 0 || back.UploadMBps != 0 || back.BytesDown != 5_000_000 {
		t.Fatalf("sample after return = %+v", back)
	}
}

func TestNetworkInterfaceDiscovery(t *testing.T) {
	tests := []struct {
		name  string
		stats []ifaceStat
		want  string
	}{
		{
			name:  "preferred order wins over file order",
			stats: []ifaceStat{{name: "lo"}, {name: "wlan0"}, {name: "eth0"}},
			want:  "eth0",
		},
		{
			name:  "first non-loopback non-virtual",
			stats: []ifaceStat{{name: "lo"}, {name: "docker0"}, {name: "virbr0"}, {name: "ens33"}, {name: "ens34"}},
			want:  "ens33",
		},
		{
			name:  "fallback when only virtual",
			stats: []ifaceStat{{name: "lo"}, {name: "docker0"}},
			want:  "eth0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHost(t)
			h.write("proc/net/dev", netDev(tt.stats...))
			s := newNetworkSampler(t, h, DefaultNetworkOptions(), nil, newFakeClock())
			if got := s.ActiveInterface(); got != tt.want {
				t.Fatalf("active = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNetworkSamplerMissingFallbackInterface(t *testing.T) {
	h := newHost(t)
	h.write("proc/net/dev", netDev(ifaceStat{name: "lo", rx: 1, tx: 1}))
	s := newNetworkSampler(t, h, DefaultNetworkOptions(), nil, newFakeClock())

	got, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got.Interface != "eth0" || got.UploadMBps != 0 || got.DownloadMBps != 0 {
		t.Fatalf("sample = %+v", got)
	}
}

func TestNetworkSamplerMalformedRowIsFatal(t *testing.T) {
	h := newHost(t)
	h.write("proc/net/dev", netDevHeader+"  eth0: 100 200 300\n  wlan0: x\n")
	s := newNetworkSampler(t, h, DefaultNetworkOptions(), nil, newFakeClock())

	_, err := s.Collect(context.Background())
	if !errors.Is(err, ErrParse) {
		t.Fatalf("error = %v, want ErrParse", err)
	}
}

func TestNetworkSamplerIgnoresMalformedInactiveRow(t *testing.T) {
	h := newHost(t)
	h.write("proc/net/dev", netDev(ifaceStat{name: "eth0", rx: 10, tx: 10})+"  broken: 1 2\n")
	s := newNetworkSampler(t, h, DefaultNetworkOptions(), nil, newFakeClock())

	if _, err := s.Collect(context.Background()); err != nil {
		t.Fatalf("malformed inactive row failed the cycle: %v", err)
	}
}

func TestAvailableInterfaces(t *testing.T) {
	h := newHost(t)
	h.write("proc/net/dev", netDev(
		ifaceStat{name: "lo"},
		ifaceStat{name: "eth0", rx: 10, tx: 10},
		ifaceStat{name: "docker0"},
	))
	clock := newFakeClock()
	s := newNetworkSampler(t, h, DefaultNetworkOptions(), nil, clock)

	if _, err := s.Collect(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := *s

	names, err := s.AvailableInterfaces(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"eth0", "docker0"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("interfaces = %v, want %v", names, want)
	}
	if s.active != before.active || s.prevRx != before.prevRx || s.prevTime != before.prevTime {
		t.Fatal("AvailableInterfaces changed sampling state")
	}
}

func TestNetworkSamplerSubstitute(t *testing.T) {
	clock := newFakeClock()
	s := newNetworkSampler(t, newHost(t), DefaultNetworkOptions(), NewBaseline(clock.Now), clock)
	ctx := context.Background()

	if s.ActiveInterface() != BaselineInterface {
		t.Fatalf("active = %q, want %q", s.ActiveInterface(), BaselineInterface)
	}
	if _, err := s.Collect(ctx); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Second)
	got, err := s.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !approxEqual(got.UploadMBps, BaselineUploadMBps, 0.01) || !approxEqual(got.DownloadMBps, BaselineDownloadMBps, 0.01) {
		t.Fatalf("baseline rates = %v/%v", got.UploadMBps, got.DownloadMBps)
	}
}

func TestNetworkSamplerWithoutSubstitute(t *testing.T) {
	s := newNetworkSampler(t, newHost(t), DefaultNetworkOptions(), nil, newFakeClock())

	if _, err := s.Collect(context.Background()); !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("error = %v, want ErrSourceUnavailable", err)
	}
	if _, err := s.AvailableInterfaces(context.Background()); !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("AvailableInterfaces error = %v", err)
	}
}

func TestRate(t *testing.T) {
	if got := Rate(0, 10_485_760, 2.0); !approxEqual(got, 5.0, 0.01) {
		t.Errorf("Rate = %v, want 5.0", got)
	}
	if got := Rate(100, 200, 0); got != 0 {
		t.Errorf("Rate with zero elapsed = %v", got)
	}
	if got := Rate(200, 100, 1); got != 0 {
		t.Errorf("Rate with decreasing counter = %v", got)
	}
}
