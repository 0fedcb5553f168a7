package wire

import (
	"errors"
	"testing"
	"time"

	"github.com/ghalamif/mlatflow/internal/domain"
)

func TestDecodeHello(t *testing.T) {
	info, err := DecodeHello([]byte(`{"name":"kx0u","latitude":39.7,"longitude":-104.9,"altitude":1600}`))
	if err != nil {
		t.Fatalf("decode hello: %v", err)
	}
	if info.Name != "kx0u" || info.Altitude != 1600 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestDecodeHelloFailsClosed(t *testing.T) {
	cases := map[string]string{
		"not json":      `client_info`,
		"unknown field": `{"name":"a","latitude":1,"longitude":2,"class":"client_info"}`,
		"missing name":  `{"latitude":1,"longitude":2}`,
		"bad latitude":  `{"name":"a","latitude":100,"longitude":2}`,
		"trailing data": `{"name":"a","latitude":1,"longitude":2} {}`,
	}
	for name, line := range cases {
		if _, err := DecodeHello([]byte(line)); !errors.Is(err, domain.ErrDecode) {
			t.Fatalf("%s: expected decode error, got %v", name, err)
		}
	}
}

func TestBatchRoundTrip(t *testing.T) {
	reports := []domain.Report{
		{Payload: 0xffffffffffffffff, Secs: 1700000000, FracSecs: 0.123456},
		{Payload: 0, Secs: 1700000001, FracSecs: 0},
	}
	line, err := EncodeBatch(reports)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	now := time.Unix(5, 0)
	b, err := DecodeBatch("alpha", line, now)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Station != "alpha" || !b.ReceivedAt.Equal(now) || len(b.Reports) != 2 {
		t.Fatalf("unexpected batch: %+v", b)
	}
	if b.Reports[0] != reports[0] || b.Reports[1] != reports[1] {
		t.Fatalf("reports changed in transit: %+v", b.Reports)
	}
}

func TestDecodeBatchRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"garbage":          `\x80\x02`,
		"missing reports":  `{}`,
		"missing frac":     `{"reports":[{"payload":1,"secs":2}]}`,
		"frac too large":   `{"reports":[{"payload":1,"secs":2,"frac_secs":1.5}]}`,
		"negative payload": `{"reports":[{"payload":-1,"secs":2,"frac_secs":0.5}]}`,
		"extra field":      `{"reports":[],"station":"spoofed"}`,
	}
	for name, line := range cases {
		if _, err := DecodeBatch("alpha", []byte(line), time.Now()); !errors.Is(err, domain.ErrDecode) {
			t.Fatalf("%s: expected decode error, got %v", name, err)
		}
	}
}

func TestDecodeBatchPointsAtBadReport(t *testing.T) {
	line := `{"reports":[{"payload":1,"secs":2,"frac_secs":0.5},{"payload":1,"secs":2}]}`
	_, err := DecodeBatch("alpha", []byte(line), time.Now())
	var de *domain.DecodeError
	if !errors.As(err, &de) || de.Index != 1 {
		t.Fatalf("expected decode error at report 1, got %v", err)
	}
}

func TestGroupRoundTrip(t *testing.T) {
	g := domain.EligibleGroup{
		Payload:     0xabc,
		WindowStart: domain.NewStamp("a", 10, 0.5),
		Members: []domain.Stamp{
			domain.NewStamp("a", 10, 0.5),
			domain.NewStamp("b", 10, 0.5002),
			domain.NewStamp("c", 10, 0.5004),
		},
	}
	line, err := EncodeGroup(g)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m, err := DecodeGroup(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Payload != "abc" || m.WindowStart != 10.5 || len(m.Members) != 3 || m.Members[2].Station != "c" {
		t.Fatalf("unexpected message: %+v", m)
	}
}
