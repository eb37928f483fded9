package rpc

import (
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/models"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Every message crosses the wire as a google.protobuf.Struct and goes
// through grpc's default proto codec. Entry metadata maps onto a nested
// Struct as is. Timestamps are {"seconds", "nanos"} objects taken from
// timestamppb; a zero time is sent as null.

type fields map[string]*structpb.Value

func (f fields) message() *structpb.Struct {
	return &structpb.Struct{Fields: f}
}

func stringValue(s string) *structpb.Value { return structpb.NewStringValue(s) }

func timeValue(t time.Time) *structpb.Value {
	if t.IsZero() {
		return structpb.NewNullValue()
	}
	ts := timestamppb.New(t)
	return structpb.NewStructValue(fields{
		"seconds": structpb.NewNumberValue(float64(ts.GetSeconds())),
		"nanos":   structpb.NewNumberValue(float64(ts.GetNanos())),
	}.message())
}

func objectValue(m map[string]any) (*structpb.Value, error) {
	if m == nil {
		return structpb.NewNullValue(), nil
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return structpb.NewStructValue(s), nil
}

func entryValue(e models.Entry) (*structpb.Value, error) {
	meta, err := objectValue(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("entry %s metadata: %w", e.ID, err)
	}
	f := fields{
		"id":          stringValue(e.ID),
		"domain":      stringValue(e.Domain),
		"title":       stringValue(e.Title),
		"description": stringValue(e.Description),
		"metadata":    meta,
		"owner_id":    stringValue(e.OwnerID),
		"created_at":  timeValue(e.CreatedAt),
		"updated_at":  timeValue(e.UpdatedAt),
	}
	if e.ScopeID != nil {
		f["scope_id"] = stringValue(*e.ScopeID)
	}
	return structpb.NewStructValue(f.message()), nil
}

// reader decodes fields of one message and keeps the first error.
type reader struct {
	f   map[string]*structpb.Value
	err error
}

func newReader(s *structpb.Struct) *reader {
	return &reader{f: s.GetFields()}
}

func (r *reader) fail(key, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: want %s", key, want)
	}
}

// lookup returns the value at key, or nil when it is absent or null.
func (r *reader) lookup(key string) *structpb.Value {
	v, ok := r.f[key]
	if !ok || v == nil {
		return nil
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return nil
	}
	return v
}

func (r *reader) str(key string) string {
	if p := r.optStr(key); p != nil {
		return *p
	}
	return ""
}

func (r *reader) optStr(key string) *string {
	v := r.lookup(key)
	if v == nil {
		return nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		r.fail(key, "string")
		return nil
	}
	out := s.StringValue
	return &out
}

func (r *reader) int(key string) int64 {
	v := r.lookup(key)
	if v == nil {
		return 0
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
		r.fail(key, "integer")
		return 0
	}
	return int64(n.NumberValue)
}

func (r *reader) object(key string) map[string]any {
	v := r.lookup(key)
	if v == nil {
		return nil
	}
	s := v.GetStructValue()
	if s == nil {
		r.fail(key, "object")
		return nil
	}
	return s.AsMap()
}

func (r *reader) time(key string) time.Time {
	v := r.lookup(key)
	if v == nil {
		return time.Time{}
	}
	s := v.GetStructValue()
	if s == nil {
		r.fail(key, "timestamp")
		return time.Time{}
	}
	tr := newReader(s)
	ts := &timestamppb.Timestamp{Seconds: tr.int("seconds"), Nanos: int32(tr.int("nanos"))}
	if tr.err == nil {
		tr.err = ts.CheckValid()
	}
	if tr.err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("field %q: %w", key, tr.err)
		}
		return time.Time{}
	}
	return ts.AsTime()
}

func (r *reader) entry(key string) models.Entry {
	v := r.lookup(key)
	if v == nil {
		return models.Entry{}
	}
	s := v.GetStructValue()
	if s == nil {
		r.fail(key, "entry")
		return models.Entry{}
	}
	return r.decodeEntry(key, s)
}

func (r *reader) entries(key string) []models.Entry {
	out := []models.Entry{}
	v := r.lookup(key)
	if v == nil {
		return out
	}
	list := v.GetListValue()
	if list == nil {
		r.fail(key, "list")
		return out
	}
	for i, item := range list.GetValues() {
		s := item.GetStructValue()
		if s == nil {
			r.fail(fmt.Sprintf("%s[%d]", key, i), "entry")
			return out
		}
		out = append(out, r.decodeEntry(fmt.Sprintf("%s[%d]", key, i), s))
	}
	return out
}

func (r *reader) decodeEntry(key string, s *structpb.Struct) models.Entry {
	er := newReader(s)
	e := models.Entry{
		ID:          er.str("id"),
		Domain:      er.str("domain"),
		Title:       er.str("title"),
		Description: er.str("description"),
		Metadata:    er.object("metadata"),
		OwnerID:     er.str("owner_id"),
		ScopeID:     er.optStr("scope_id"),
		CreatedAt:   er.time("created_at"),
		UpdatedAt:   er.time("updated_at"),
	}
	if er.err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, er.err)
	}
	return e
}
