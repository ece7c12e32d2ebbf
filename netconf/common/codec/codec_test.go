package codec

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/mocks"
)

func TestEncoderFailures(t *testing.T) {
	mockt := &mocks.Transport{}
	mockt.On("Write", mock.Anything).Return(0, errors.New("Failed"))
	enc := NewEncoder(mockt)
	err := enc.Encode(&common.RPCMessage{MessageID: 1, Union: common.GetUnion(&common.CommitReq{})})
	assert.Error(t, err, "Expect failure")
	mockt.AssertNumberOfCalls(t, "Write", 1)
}

func TestEncodeSingleWritePerMessage(t *testing.T) {
	var written [][]byte
	mockt := &mocks.Transport{}
	mockt.On("Write", mock.Anything).Return(func(buf []byte) int {
		written = append(written, append([]byte(nil), buf...))
		return len(buf)
	}, nil)

	enc := NewEncoder(mockt)
	assert.NoError(t, enc.Encode(&common.RPCMessage{MessageID: 1, Union: common.GetUnion(&common.CommitReq{})}))

	assert.Len(t, written, 1)
	assert.Equal(t, xml.Header+`<rpc xmlns="urn:ietf:params:xml:ns:netconf:base:1.0" message-id="1"><commit></commit></rpc>]]>]]>`, string(written[0]))
}

func TestEnableChunkedFraming(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)
	dec := NewDecoder(buf)

	assert.False(t, enc.ncEncoder.ChunkedFraming)
	EnableChunkedFraming(dec, enc)
	assert.True(t, enc.ncEncoder.ChunkedFraming)
	assert.True(t, dec.ncDecoder.ChunkedFraming)

	assert.NoError(t, enc.Encode(&common.RPCMessage{MessageID: 5, Union: common.GetUnion(&common.DiscardChangesReq{})}))
	assert.True(t, strings.HasPrefix(buf.String(), "\n#"))
	assert.True(t, strings.HasSuffix(buf.String(), "\n##\n"))

	b, err := dec.ReadMessage()
	assert.NoError(t, err)
	assert.Contains(t, string(b), `<discard-changes></discard-changes>`)
}

func TestEditConfigSpliceIntegrity(t *testing.T) {
	fragment := `<users xmlns="ns:yang:test"><name a="1 &amp; 2">Bob</name><!-- c --><x/></users>`

	without, err := Marshal(&common.RPCMessage{MessageID: 2, Union: common.GetUnion(&common.EditConfigReq{
		Target: common.DsName(common.Running), Config: &common.Config{},
	})})
	assert.NoError(t, err)
	with, err := Marshal(&common.RPCMessage{MessageID: 2, Union: common.GetUnion(&common.EditConfigReq{
		Target: common.DsName(common.Running), Config: &common.Config{Body: fragment},
	})})
	assert.NoError(t, err)

	at := strings.Index(string(without), "<config>") + len("<config>")
	expected := string(without[:at]) + fragment + string(without[at:])
	assert.Equal(t, expected, string(with))
}

func TestFilterSpliceIntegrity(t *testing.T) {
	fragment := `<users xmlns="ns:yang:test"><name/></users>`
	with, err := Marshal(&common.RPCMessage{MessageID: 3, Union: common.GetUnion(&common.GetConfigReq{
		Source: common.DsName(common.Candidate),
		Filter: &common.Filter{Type: common.SubtreeFilter, Body: fragment},
	})})
	assert.NoError(t, err)
	assert.Contains(t, string(with), `<filter type="subtree">`+fragment+`</filter>`)
}

func TestDecodeHello(t *testing.T) {
	hello, err := DecodeHello([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
  <capabilities>
    <capability>
      urn:ietf:params:netconf:base:1.0
    </capability>
    <capability>urn:ietf:params:netconf:base:1.1</capability>
  </capabilities>
  <session-id>4711</session-id>
</hello>`))
	assert.NoError(t, err)
	assert.Equal(t, uint32(4711), hello.SessionID)
	assert.Equal(t, []string{common.CapBase10, common.CapBase11}, hello.Capabilities)

	_, err = DecodeHello([]byte(`<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0"><capabilities>`))
	var derr *common.DecodeError
	assert.True(t, errors.As(err, &derr))

	_, err = DecodeHello([]byte(`<hello xmlns="urn:other"/>`))
	assert.Error(t, err)
}

func TestDecodeReply(t *testing.T) {
	data := `
    <users xmlns="ns:yang:test" xmlns:x="urn:x">
      <name>Harry</name>
      <x:note>a &lt; b</x:note>
    </users>
  `
	raw := `<rpc-reply xmlns="urn:ietf:params:xml:ns:netconf:base:1.0" message-id="4"><data>` + data + `</data></rpc-reply>`

	reply, err := DecodeReply([]byte(raw), common.OpGetConfig)
	assert.NoError(t, err)
	assert.Equal(t, uint32(4), reply.MessageID)
	assert.Equal(t, common.OpGetConfig, reply.Kind)
	assert.True(t, reply.DataPresent)
	assert.Equal(t, data, reply.Data)
	assert.Equal(t, raw, reply.RawReply)
	assert.NoError(t, common.Classify(reply))
}

func TestDecodeOkReply(t *testing.T) {
	reply, err := DecodeReply([]byte(`<rpc-reply message-id="1" xmlns="urn:ietf:params:xml:ns:netconf:base:1.0"><ok/></rpc-reply>`), common.OpLock)
	assert.NoError(t, err)
	assert.True(t, bool(reply.Ok))
	assert.False(t, reply.DataPresent)
	assert.NoError(t, common.Classify(reply))
}

func TestDecodeReplyFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"NotXML", `]]>`},
		{"WrongRoot", `<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0"/>`},
		{"WrongNamespace", `<rpc-reply xmlns="urn:other" message-id="1"><ok/></rpc-reply>`},
		{"Truncated", `<rpc-reply xmlns="urn:ietf:params:xml:ns:netconf:base:1.0" message-id="1"><ok/>`},
		{"UnknownErrorTag", `<rpc-reply xmlns="urn:ietf:params:xml:ns:netconf:base:1.0" message-id="1"><rpc-error>` +
			`<error-type>rpc</error-type><error-tag>bogus</error-tag><error-severity>error</error-severity></rpc-error></rpc-reply>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeReply([]byte(tt.raw), common.OpLock)
			var derr *common.DecodeError
			assert.True(t, errors.As(err, &derr))
			assert.Equal(t, tt.raw, derr.Raw)
		})
	}
}

func TestDecoderReadsSuccessiveReplies(t *testing.T) {
	stream := `<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0"><capabilities><capability>urn:ietf:params:netconf:base:1.0</capability></capabilities><session-id>1</session-id></hello>]]>]]>` +
		`<rpc-reply xmlns="urn:ietf:params:xml:ns:netconf:base:1.0" message-id="1"><ok/></rpc-reply>]]>]]>`
	dec := NewDecoder(strings.NewReader(stream))

	hello, err := dec.DecodeHello()
	assert.NoError(t, err)
	assert.Equal(t, uint32(1), hello.SessionID)

	reply, err := dec.DecodeReply(common.OpCommit)
	assert.NoError(t, err)
	assert.True(t, bool(reply.Ok))

	_, err = dec.DecodeReply(common.OpCommit)
	assert.Equal(t, ErrStreamExhausted, errors.Cause(err))
}
