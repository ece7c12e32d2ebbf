package common

import (
	"encoding/xml"

	"github.com/pkg/errors"
)

// ExtantBool represents an empty element whose presence is the value, such as <ok/>.
type ExtantBool bool

// UnmarshalXML records the presence of the element.
func (b *ExtantBool) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	*b = true
	return d.Skip()
}

// MarshalXML writes the element only when true.
func (b ExtantBool) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if !b {
		return nil
	}
	return e.EncodeElement("", start)
}

// RPCReply defines an rpc-reply message.
//
// Data holds the content of the <data> element exactly as it appeared on the wire. DataPresent
// distinguishes an empty <data/> from a reply without a data element. Kind records the operation
// the reply answers.
type RPCReply struct {
	XMLName     xml.Name   `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 rpc-reply"`
	MessageID   uint32     `xml:"message-id,attr"`
	Ok          ExtantBool `xml:"ok"`
	Errors      []RPCError `xml:"rpc-error,omitempty"`
	Data        string     `xml:"-"`
	DataPresent bool       `xml:"-"`
	RawReply    string     `xml:"-"`
	Kind        Operation  `xml:"-"`
}

// Classify maps a decoded reply onto success (nil) or the error it represents.
//
// Any rpc-error, whatever its severity, makes the reply a failure. Otherwise a reply to get or
// get-config succeeds when it carries data (get-config also accepts no data at all), a raw
// request succeeds unconditionally, and any other operation requires <ok/>.
func Classify(r *RPCReply) error {
	switch {
	case len(r.Errors) > 0:
		return &RPCErrors{MessageID: r.MessageID, Errors: r.Errors}
	case r.Kind == OpGet && !r.DataPresent:
		return NewDecodeError(r.RawReply, errors.New("get reply carried no data element"))
	case r.Kind.ReturnsData(), r.Kind == OpRaw:
		return nil
	case !bool(r.Ok):
		return NewDecodeError(r.RawReply, errors.Errorf("%s reply carried neither ok nor rpc-error", r.Kind))
	}
	return nil
}
