package amqp

import (
	"sort"

	"github.com/google/uuid"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/hellofresh/goengine-core/aggregate"
	"github.com/hellofresh/goengine-core/eventing"
)

var (
	// Ensure streamMessage implements easyjson.Marshaler
	_ easyjson.Marshaler = streamMessage{}
	// Ensure streamMessage implements easyjson.Unmarshaler
	_ easyjson.Unmarshaler = streamMessage{}
)

// streamMessage is the json representation of an eventing.EventStream on the queue.
// Event payloads are base64 encoded.
type streamMessage struct {
	stream *eventing.EventStream
}

// MarshalEventStream returns the json body of the stream
func MarshalEventStream(stream *eventing.EventStream) ([]byte, error) {
	return easyjson.Marshal(streamMessage{stream: stream})
}

// UnmarshalEventStream decodes a json body produced by MarshalEventStream
func UnmarshalEventStream(data []byte) (*eventing.EventStream, error) {
	stream := &eventing.EventStream{}
	if err := easyjson.Unmarshal(data, streamMessage{stream: stream}); err != nil {
		return nil, err
	}

	return stream, nil
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (m streamMessage) MarshalEasyJSON(out *jwriter.Writer) {
	in := m.stream

	out.RawString(`{"aggregate_id":`)
	out.String(string(in.AggregateID))
	out.RawString(`,"aggregate_type":`)
	out.String(in.AggregateType)
	out.RawString(`,"version":`)
	out.Int64(in.Version)
	out.RawString(`,"command_id":`)
	out.String(in.CommandID)

	out.RawString(`,"items":{`)
	keys := make([]string, 0, len(in.Items))
	for k := range in.Items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			out.RawByte(',')
		}
		out.String(k)
		out.RawByte(':')
		out.String(in.Items[k])
	}

	out.RawString(`},"events":[`)
	for i, evt := range in.Events {
		if i > 0 {
			out.RawByte(',')
		}
		out.RawString(`{"id":`)
		out.String(evt.ID.String())
		out.RawString(`,"name":`)
		out.String(evt.Name)
		out.RawString(`,"payload":`)
		out.Base64Bytes(evt.Payload)
		out.RawByte('}')
	}
	out.RawString(`]}`)
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler interface
func (m streamMessage) UnmarshalEasyJSON(in *jlexer.Lexer) {
	out := m.stream

	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}

	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}

		switch key {
		case "aggregate_id":
			out.AggregateID = aggregate.ID(in.String())
		case "aggregate_type":
			out.AggregateType = in.String()
		case "version":
			out.Version = in.Int64()
		case "command_id":
			out.CommandID = in.String()
		case "items":
			out.Items = make(map[string]string)
			in.Delim('{')
			for !in.IsDelim('}') {
				k := in.String()
				in.WantColon()
				out.Items[k] = in.String()
				in.WantComma()
			}
			in.Delim('}')
		case "events":
			out.Events = make([]eventing.Event, 0, 1)
			in.Delim('[')
			for !in.IsDelim(']') {
				var evt eventing.Event
				unmarshalEvent(in, &evt)
				out.Events = append(out.Events, evt)
				in.WantComma()
			}
			in.Delim(']')
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')

	if isTopLevel {
		in.Consumed()
	}
}

func unmarshalEvent(in *jlexer.Lexer, out *eventing.Event) {
	if in.IsNull() {
		in.Skip()
		return
	}

	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}

		switch key {
		case "id":
			id, err := uuid.Parse(in.String())
			if err != nil {
				in.AddError(err)
			}
			out.ID = id
		case "name":
			out.Name = in.String()
		case "payload":
			out.Payload = in.Bytes()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}
