package pq

import (
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

var (
	// Ensure Correction implements easyjson.Marshaler
	_ easyjson.Marshaler = Correction{}
	// Ensure Correction implements easyjson.Unmarshaler
	_ easyjson.Unmarshaler = &Correction{}
)

// Correction is the payload of a checkpoint correction notification
type Correction struct {
	SubscriberName string `json:"subscriber_name"`
	AggregateType  string `json:"aggregate_type"`
	AggregateID    string `json:"aggregate_id"`
	Version        int64  `json:"version"`
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (c Correction) MarshalEasyJSON(out *jwriter.Writer) {
	out.RawString(`{"subscriber_name":`)
	out.String(c.SubscriberName)
	out.RawString(`,"aggregate_type":`)
	out.String(c.AggregateType)
	out.RawString(`,"aggregate_id":`)
	out.String(c.AggregateID)
	out.RawString(`,"version":`)
	out.Int64(c.Version)
	out.RawByte('}')
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler interface
func (c *Correction) UnmarshalEasyJSON(in *jlexer.Lexer) {
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
		case "subscriber_name":
			c.SubscriberName = in.String()
		case "aggregate_type":
			c.AggregateType = in.String()
		case "aggregate_id":
			c.AggregateID = in.String()
		case "version":
			c.Version = in.Int64()
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
