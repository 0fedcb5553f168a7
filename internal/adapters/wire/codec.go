// Package wire defines the line-oriented JSON frames exchanged with stations.
// Decoding is strict: unknown fields, missing fields and trailing data all
// fail the frame rather than being guessed at.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ghalamif/mlatflow/internal/domain"
)

const (
	Greeting = "HELO"
	Accepted = "OK"
	Refused  = "ERR"
)

type helloFrame struct {
	Name           *string  `json:"name"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	Altitude       float64  `json:"altitude"`
	OffsetSecs     int64    `json:"offset_secs"`
	OffsetFracSecs float64  `json:"offset_frac_secs"`
}

type reportFrame struct {
	Payload  *uint64  `json:"payload"`
	Secs     *int64   `json:"secs"`
	FracSecs *float64 `json:"frac_secs"`
}

type batchFrame struct {
	Reports []reportFrame `json:"reports"`
}

// DecodeHello parses the station metadata line sent after the greeting.
func DecodeHello(line []byte) (domain.StationInfo, error) {
	var f helloFrame
	if err := strictUnmarshal(line, &f); err != nil {
		return domain.StationInfo{}, domain.NewDecodeError("", "hello", err)
	}
	if f.Name == nil || f.Latitude == nil || f.Longitude == nil {
		return domain.StationInfo{}, domain.NewDecodeError("", "hello requires name, latitude and longitude", nil)
	}
	info := domain.StationInfo{
		Name:           *f.Name,
		Latitude:       *f.Latitude,
		Longitude:      *f.Longitude,
		Altitude:       f.Altitude,
		OffsetSecs:     f.OffsetSecs,
		OffsetFracSecs: f.OffsetFracSecs,
	}
	if err := info.Validate(); err != nil {
		return domain.StationInfo{}, domain.NewDecodeError(domain.StationID(info.Name), "hello", err)
	}
	return info, nil
}

func EncodeHello(info domain.StationInfo) ([]byte, error) {
	return encodeLine(info)
}

// DecodeBatch parses one batch line and attributes it to station. The result
// has already passed domain validation.
func DecodeBatch(station domain.StationID, line []byte, now time.Time) (*domain.Batch, error) {
	var f batchFrame
	if err := strictUnmarshal(line, &f); err != nil {
		return nil, domain.NewDecodeError(station, "batch", err)
	}
	if f.Reports == nil {
		return nil, domain.NewDecodeError(station, "batch has no reports field", nil)
	}

	b := &domain.Batch{
		Station:    station,
		ReceivedAt: now,
		Reports:    make([]domain.Report, len(f.Reports)),
	}
	for i, r := range f.Reports {
		if r.Payload == nil || r.Secs == nil || r.FracSecs == nil {
			return nil, &domain.DecodeError{Station: station, Index: i, Reason: "report requires payload, secs and frac_secs"}
		}
		b.Reports[i] = domain.Report{Payload: domain.Payload(*r.Payload), Secs: *r.Secs, FracSecs: *r.FracSecs}
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func EncodeBatch(reports []domain.Report) ([]byte, error) {
	f := batchFrame{Reports: make([]reportFrame, len(reports))}
	for i := range reports {
		r := reports[i]
		payload := uint64(r.Payload)
		f.Reports[i] = reportFrame{Payload: &payload, Secs: &r.Secs, FracSecs: &r.FracSecs}
	}
	return encodeLine(f)
}

// GroupMessage is the JSON shape pushed to stations and pub/sub consumers for
// each eligible group. The payload is hex so 64-bit fingerprints survive
// consumers that parse numbers as doubles.
type GroupMessage struct {
	Type        string         `json:"type"`
	Payload     string         `json:"payload"`
	WindowStart float64        `json:"window_start"`
	Members     []MemberRecord `json:"members"`
}

type MemberRecord struct {
	Station  string  `json:"station"`
	Secs     int64   `json:"secs"`
	FracSecs float64 `json:"frac_secs"`
}

func NewGroupMessage(g domain.EligibleGroup) GroupMessage {
	members := make([]MemberRecord, len(g.Members))
	for i, m := range g.Members {
		members[i] = MemberRecord{Station: string(m.Station), Secs: m.Secs, FracSecs: m.FracSecs}
	}
	return GroupMessage{
		Type:        "group",
		Payload:     fmt.Sprintf("%x", uint64(g.Payload)),
		WindowStart: g.WindowStart.Float64(),
		Members:     members,
	}
}

func EncodeGroup(g domain.EligibleGroup) ([]byte, error) {
	return encodeLine(NewGroupMessage(g))
}

func DecodeGroup(line []byte) (GroupMessage, error) {
	var m GroupMessage
	if err := strictUnmarshal(line, &m); err != nil {
		return GroupMessage{}, err
	}
	if m.Type != "group" {
		return GroupMessage{}, fmt.Errorf("unexpected message type %q", m.Type)
	}
	return m, nil
}

func strictUnmarshal(line []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("trailing data after frame")
	}
	return nil
}

func encodeLine(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(raw, '\n'), nil
}
