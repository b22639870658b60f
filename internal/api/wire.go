package api

import (
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Request is the generic store request carried in a google.protobuf.Struct.
//
// Filter values are matched exactly; a filter with several values matches
// any of them. Conflict names the unique columns of an upsert.
type Request struct {
	Table    string
	Row      map[string]string
	Filter   map[string][]string
	Conflict []string
	Order    string
	Ops      []string
}

// Response carries result rows.
type Response struct {
	Rows []map[string]string
}

// Event is one message on a Subscribe stream. The first message of every
// stream has Op "subscribed" and no row.
type Event struct {
	ID         string
	Table      string
	Op         string
	Row        map[string]string
	OccurredAt time.Time
}

// OpSubscribed acknowledges a subscription before any change is sent.
const OpSubscribed = "subscribed"

// Eq returns the first value of each filter column.
func (r Request) Eq() map[string]string {
	if len(r.Filter) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Filter))
	for k, vs := range r.Filter {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

// Struct encodes the request.
func (r Request) Struct() (*structpb.Struct, error) {
	m := map[string]any{"table": r.Table}
	if len(r.Row) > 0 {
		m["row"] = stringMap(r.Row)
	}
	if len(r.Filter) > 0 {
		f := make(map[string]any, len(r.Filter))
		for k, vs := range r.Filter {
			f[k] = stringList(vs)
		}
		m["filter"] = f
	}
	if len(r.Conflict) > 0 {
		m["conflict"] = stringList(r.Conflict)
	}
	if r.Order != "" {
		m["order"] = r.Order
	}
	if len(r.Ops) > 0 {
		m["ops"] = stringList(r.Ops)
	}
	return structpb.NewStruct(m)
}

// ParseRequest decodes a request.
func ParseRequest(s *structpb.Struct) (Request, error) {
	var r Request
	fields := s.GetFields()
	r.Table = fields["table"].GetStringValue()
	if r.Table == "" {
		return r, fmt.Errorf("table is required")
	}
	if row := fields["row"].GetStructValue(); row != nil {
		r.Row = parseStringMap(row)
	}
	if f := fields["filter"].GetStructValue(); f != nil {
		r.Filter = make(map[string][]string, len(f.GetFields()))
		for k, v := range f.GetFields() {
			if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
				r.Filter[k] = []string{s.StringValue}
				continue
			}
			r.Filter[k] = parseStringList(v)
		}
	}
	r.Conflict = parseStringList(fields["conflict"])
	r.Order = fields["order"].GetStringValue()
	r.Ops = parseStringList(fields["ops"])
	return r, nil
}

// Struct encodes the response.
func (r Response) Struct() (*structpb.Struct, error) {
	rows := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = stringMap(row)
	}
	return structpb.NewStruct(map[string]any{"rows": rows})
}

// ParseResponse decodes a response.
func ParseResponse(s *structpb.Struct) Response {
	var r Response
	for _, v := range s.GetFields()["rows"].GetListValue().GetValues() {
		if row := v.GetStructValue(); row != nil {
			r.Rows = append(r.Rows, parseStringMap(row))
		}
	}
	return r
}

// Struct encodes the event.
func (e Event) Struct() (*structpb.Struct, error) {
	m := map[string]any{
		"event_id": e.ID,
		"table":    e.Table,
		"op":       e.Op,
	}
	if len(e.Row) > 0 {
		m["row"] = stringMap(e.Row)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	if !e.OccurredAt.IsZero() {
		ts := timestamppb.New(e.OccurredAt)
		s.Fields["occurred_at"] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"seconds": structpb.NewNumberValue(float64(ts.GetSeconds())),
			"nanos":   structpb.NewNumberValue(float64(ts.GetNanos())),
		}})
	}
	return s, nil
}

// ParseEvent decodes a stream event.
func ParseEvent(s *structpb.Struct) Event {
	fields := s.GetFields()
	e := Event{
		ID:    fields["event_id"].GetStringValue(),
		Table: fields["table"].GetStringValue(),
		Op:    fields["op"].GetStringValue(),
	}
	if row := fields["row"].GetStructValue(); row != nil {
		e.Row = parseStringMap(row)
	}
	if v := fields["occurred_at"].GetStructValue(); v != nil {
		ts := &timestamppb.Timestamp{
			Seconds: int64(v.GetFields()["seconds"].GetNumberValue()),
			Nanos:   int32(v.GetFields()["nanos"].GetNumberValue()),
		}
		if ts.CheckValid() == nil {
			e.OccurredAt = ts.AsTime()
		}
	}
	return e
}

// Millis parses a unix-millisecond column value.
func Millis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func stringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func stringList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func parseStringMap(s *structpb.Struct) map[string]string {
	out := make(map[string]string, len(s.GetFields()))
	for k, v := range s.GetFields() {
		out[k] = v.GetStringValue()
	}
	return out
}

func parseStringList(v *structpb.Value) []string {
	vals := v.GetListValue().GetValues()
	if len(vals) == 0 {
		return nil
	}
	out := make([]string, 0, len(vals))
	for _, item := range vals {
		out = append(out, item.GetStringValue())
	}
	return out
}
