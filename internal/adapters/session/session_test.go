package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

func startServer(t *testing.T) (*Server, *Registry, *recordingObs, chan *domain.Batch) {
	t.Helper()
	reg := NewRegistry()
	obs := &recordingObs{}
	srv, err := NewServer(Config{Addr: "127.0.0.1:0", HandshakeTimeout: time.Second}, reg, obs)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	out := make(chan *domain.Batch, 16)
	if err := srv.Start(out); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	return srv, reg, obs, out
}

func dial(t *testing.T, srv *Server, name string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, srv.Addr().String(), domain.StationInfo{Name: name, Latitude: 40, Longitude: -105})
	if err != nil {
		t.Fatalf("dial %s: %v", name, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func receive(t *testing.T, out <-chan *domain.Batch) *domain.Batch {
	t.Helper()
	select {
	case b := <-out:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func TestServerDeliversBatchesAttributedToStation(t *testing.T) {
	srv, reg, _, out := startServer(t)
	c := dial(t, srv, "alpha")

	reports := []domain.Report{
		{Payload: 0x8d4840d6, Secs: 1700000000, FracSecs: 0.5},
		{Payload: 0x8d4840d6, Secs: 1700000000, FracSecs: 0.25},
	}
	if err := c.SendBatch(reports); err != nil {
		t.Fatalf("send: %v", err)
	}

	b := receive(t, out)
	if b.Station != "alpha" || len(b.Reports) != 2 {
		t.Fatalf("unexpected batch: %+v", b)
	}
	if b.Reports[0].FracSecs != 0.5 || b.Reports[1].FracSecs != 0.25 {
		t.Fatalf("batch order not preserved: %+v", b.Reports)
	}
	if _, ok := reg.Lookup("alpha"); !ok {
		t.Fatalf("expected alpha to be registered")
	}
}

func TestServerDropsMalformedBatchAndKeepsSession(t *testing.T) {
	srv, _, obs, out := startServer(t)
	c := dial(t, srv, "alpha")

	if err := c.writeLine([]byte(`{"reports":[{"payload":1,"secs":1,"frac_secs":0.1},{"payload":2,"secs":1}]}` + "\n")); err != nil {
		t.Fatalf("write malformed: %v", err)
	}
	if err := c.SendBatch([]domain.Report{{Payload: 3, Secs: 1, FracSecs: 0.2}}); err != nil {
		t.Fatalf("send valid: %v", err)
	}

	b := receive(t, out)
	if len(b.Reports) != 1 || b.Reports[0].Payload != 3 {
		t.Fatalf("expected only the valid batch, got %+v", b)
	}
	if n := obs.rejectedCount(); n != 1 {
		t.Fatalf("expected 1 rejected batch, got %d", n)
	}
}

func TestServerRefusesDuplicateStation(t *testing.T) {
	srv, _, _, _ := startServer(t)
	dial(t, srv, "alpha")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Dial(ctx, srv.Addr().String(), domain.StationInfo{Name: "alpha"})
	if err == nil || !strings.Contains(err.Error(), "already connected") {
		t.Fatalf("expected duplicate station to be refused, got %v", err)
	}
}

func TestServerFreesNameOnDisconnect(t *testing.T) {
	srv, reg, _, _ := startServer(t)
	c := dial(t, srv, "alpha")
	_ = c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("station was not unregistered after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
	dial(t, srv, "alpha")
}

func TestBroadcastReachesStations(t *testing.T) {
	srv, reg, _, _ := startServer(t)
	a := dial(t, srv, "alpha")
	b := dial(t, srv, "bravo")

	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() != 2 {
		if time.Now().After(deadline) {
			t.Fatal("stations never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	g := domain.EligibleGroup{
		Payload:     0xabc,
		WindowStart: domain.NewStamp("alpha", 1, 0.1),
		Members: []domain.Stamp{
			domain.NewStamp("alpha", 1, 0.1),
			domain.NewStamp("bravo", 1, 0.1001),
			domain.NewStamp("charlie", 1, 0.1002),
		},
	}
	if err := NewBroadcastSink(reg).WriteGroups([]domain.EligibleGroup{g}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	for _, c := range []*Client{a, b} {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		msg, err := c.ReadGroup()
		if err != nil {
			t.Fatalf("%s read group: %v", c.Station(), err)
		}
		if msg.Payload != "abc" || len(msg.Members) != 3 {
			t.Fatalf("unexpected group at %s: %+v", c.Station(), msg)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	srv, _, _, _ := startServer(t)
	if err := srv.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

type recordingObs struct {
	mu       sync.Mutex
	rejected []error
}

func (r *recordingObs) LogInfo(string, ...ports.Field)            {}
func (r *recordingObs) LogError(string, error, ...ports.Field)    {}
func (r *recordingObs) LogCritical(string, error, ...ports.Field) {}
func (r *recordingObs) IncCounter(string, float64)                {}
func (r *recordingObs) ObserveLatency(string, float64)            {}
func (r *recordingObs) SetGauge(string, float64)                  {}
func (r *recordingObs) RecordRejected(_ domain.StationID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, err)
}

func (r *recordingObs) rejectedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rejected)
}

var errSend = errors.New("broken pipe")
