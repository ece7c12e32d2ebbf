package ops

import (
	"encoding/xml"
	"errors"
	"testing"

	assert "github.com/stretchr/testify/require"
	"github.com/stretchr/testify/mock"

	"github.com/damianoneill/ncclient/netconf/client"
	"github.com/damianoneill/ncclient/netconf/common"
)

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Connect() (*common.HelloMessage, error) {
	ret := m.Called()
	hello, _ := ret.Get(0).(*common.HelloMessage)
	return hello, ret.Error(1)
}

func (m *mockSession) SendHello() error {
	return m.Called().Error(0)
}

func (m *mockSession) Execute(req common.Request) (*common.RPCReply, error) {
	ret := m.Called(req)
	reply, _ := ret.Get(0).(*common.RPCReply)
	return reply, ret.Error(1)
}

func (m *mockSession) Close() {
	m.Called()
}

func (m *mockSession) ID() uint32 {
	return m.Called().Get(0).(uint32)
}

func (m *mockSession) ServerCapabilities() []string {
	caps, _ := m.Called().Get(0).([]string)
	return caps
}

func (m *mockSession) NextMessageID() uint32 {
	return m.Called().Get(0).(uint32)
}

func (m *mockSession) State() client.State {
	return m.Called().Get(0).(client.State)
}

func newOpsSessionWithMockClient() (OpSession, *mockSession) {
	mcli := &mockSession{}
	return NewOpSession(mcli), mcli
}

type element struct {
	XMLName xml.Name `xml:"element"`
	Attr1   string   `xml:"attr1,attr"`
}

func TestGetWithoutFilter(t *testing.T) {
	ncs, mcli := newOpsSessionWithMockClient()
	mcli.On("Execute", &common.GetReq{}).Return(&common.RPCReply{Data: `<element attr1="ABC"/>`, DataPresent: true}, nil)

	reply, err := ncs.Get(nil)
	assert.NoError(t, err, "Not expecting call to fail")
	assert.Equal(t, `<element attr1="ABC"/>`, reply.Data, "Reply should contain response data")
	mcli.AssertExpectations(t)
}

func TestGetSubtree(t *testing.T) {
	ncs, mcli := newOpsSessionWithMockClient()
	filter := SubtreeFilter(`<subtree-element/>`)
	mcli.On("Execute", &common.GetReq{Filter: &common.Filter{Type: common.SubtreeFilter, Body: `<subtree-element/>`}}).
		Return(&common.RPCReply{Data: `<element attr1="ABC"/>`}, nil)

	reply, err := ncs.Get(filter)
	assert.NoError(t, err, "Not expecting call to fail")

	result := &element{}
	assert.NoError(t, Unmarshal(reply, result), "Not expecting unmarshal to fail")
	assert.Equal(t, "ABC", result.Attr1, "Reply should contain response data")
}

func TestGetExecuteError(t *testing.T) {
	ncs, mcli := newOpsSessionWithMockClient()
	mcli.On("Execute", mock.Anything).Return(nil, errors.New("failed"))

	reply, err := ncs.Get(SubtreeFilter(`<subtree-element/>`))
	assert.Error(t, err, "Expecting call to fail")
	assert.Nil(t, reply, "No reply expected")
}

func TestGetConfigXpath(t *testing.T) {
	ncs, mcli := newOpsSessionWithMockClient()
	expected := &common.GetConfigReq{
		Source: common.DsName(common.Running),
		Filter: &common.Filter{
			Type:       common.XPathFilter,
			Select:     "/tns:element",
			Namespaces: []xml.Attr{{Name: xml.Name{Local: "xmlns:tns"}, Value: "urn:tns"}},
		},
	}
	mcli.On("Execute", expected).Return(&common.RPCReply{Data: `<element attr1="ABC"/>`}, nil)

	reply, err := ncs.GetConfig(common.Running, XPathFilter("/tns:element", Namespace{ID: "tns", Path: "urn:tns"}))
	assert.NoError(t, err, "Not expecting call to fail")

	var result string
	assert.NoError(t, Unmarshal(reply, &result), "Not expecting unmarshal to fail")
	assert.Equal(t, `<element attr1="ABC"/>`, result, "Reply should contain response data")
}

func TestEditConfigOptions(t *testing.T) {
	ncs, mcli := newOpsSessionWithMockClient()
	expected := &common.EditConfigReq{
		Target:           common.DsName(common.Candidate),
		DefaultOperation: common.ReplaceOp,
		TestOption:       common.TestOnlyOpt,
		ErrorOption:      common.RollbackOnErrorErrOpt,
		Config:           &common.Config{Body: `<configuration/>`},
	}
	mcli.On("Execute", expected).Return(&common.RPCReply{Ok: true}, nil)

	_, err := ncs.EditConfig(common.Candidate, `<configuration/>`,
		DefaultOperation(common.ReplaceOp), TestOption(common.TestOnlyOpt), ErrorOption(common.RollbackOnErrorErrOpt))
	assert.NoError(t, err, "Not expecting call to fail")
	mcli.AssertExpectations(t)
}

func TestEditConfigFromURL(t *testing.T) {
	ncs, mcli := newOpsSessionWithMockClient()
	expected := &common.EditConfigReq{Target: common.DsName(common.Running), ConfigURL: "file://edit.xml"}
	mcli.On("Execute", expected).Return(&common.RPCReply{Ok: true}, nil)

	_, err := ncs.EditConfig(common.Running, `<ignored/>`, CfgURL("file://edit.xml"))
	assert.NoError(t, err, "Not expecting call to fail")
	mcli.AssertExpectations(t)
}

func TestRequestsWithoutPayload(t *testing.T) {
	ncs, mcli := newOpsSessionWithMockClient()
	ok := &common.RPCReply{Ok: true}

	mcli.On("Execute", &common.CopyConfigReq{Target: common.DsName(common.Startup), Source: common.DsName(common.Running)}).Return(ok, nil).Once()
	mcli.On("Execute", &common.CopyConfigReq{Target: common.DsName(common.Candidate), Source: common.InlineConfig(`<top/>`)}).Return(ok, nil).Once()
	mcli.On("Execute", &common.DeleteConfigReq{Target: common.DsName(common.Startup)}).Return(ok, nil).Once()
	mcli.On("Execute", &common.LockReq{Target: common.DsName(common.Running)}).Return(ok, nil).Once()
	mcli.On("Execute", &common.UnlockReq{Target: common.DsName(common.Running)}).Return(ok, nil).Once()
	mcli.On("Execute", &common.CommitReq{}).Return(ok, nil).Once()
	mcli.On("Execute", &common.DiscardChangesReq{}).Return(ok, nil).Once()
	mcli.On("Execute", &common.KillSessionReq{SessionID: 42}).Return(ok, nil).Once()
	mcli.On("Execute", &common.CloseSessionReq{}).Return(ok, nil).Once()

	calls := []func() (*common.RPCReply, error){
		func() (*common.RPCReply, error) { return ncs.CopyConfig(common.Startup, common.DsName(common.Running)) },
		func() (*common.RPCReply, error) { return ncs.CopyConfig(common.Candidate, common.InlineConfig(`<top/>`)) },
		func() (*common.RPCReply, error) { return ncs.DeleteConfig(common.Startup) },
		func() (*common.RPCReply, error) { return ncs.Lock(common.Running) },
		func() (*common.RPCReply, error) { return ncs.Unlock(common.Running) },
		func() (*common.RPCReply, error) { return ncs.Commit() },
		func() (*common.RPCReply, error) { return ncs.DiscardChanges() },
		func() (*common.RPCReply, error) { return ncs.KillSession(42) },
		func() (*common.RPCReply, error) { return ncs.CloseSession() },
	}
	for _, call := range calls {
		reply, err := call()
		assert.NoError(t, err, "Not expecting call to fail")
		assert.True(t, bool(reply.Ok), "Expecting ok reply")
	}
	mcli.AssertExpectations(t)
}

func TestRemoteErrorsAreReturned(t *testing.T) {
	ncs, mcli := newOpsSessionWithMockClient()
	rerr := &common.RPCErrors{MessageID: 3, Errors: []common.RPCError{
		{Type: common.ErrorTypeProtocol, Tag: common.ErrorTagLockDenied, Severity: common.SeverityError},
	}}
	mcli.On("Execute", &common.LockReq{Target: common.DsName(common.Running)}).Return(nil, rerr)

	reply, err := ncs.Lock(common.Running)
	assert.Nil(t, reply, "No reply expected")
	assert.Equal(t, rerr, err, "Expecting the remote errors")
}

func TestSessionMethodsAreDelegated(t *testing.T) {
	ncs, mcli := newOpsSessionWithMockClient()
	mcli.On("ID").Return(uint32(7))
	mcli.On("State").Return(client.Established)
	mcli.On("Close")

	assert.Equal(t, uint32(7), ncs.ID())
	assert.Equal(t, client.Established, ncs.State())
	ncs.Close()
	mcli.AssertExpectations(t)
}

func TestUnmarshal(t *testing.T) {
	var s string
	assert.Error(t, Unmarshal(nil, &s), "Expecting failure without a reply")

	err := Unmarshal(&common.RPCReply{Data: `<element attr1="ABC">`}, &element{})
	assert.Error(t, err, "Expecting malformed data to fail")
	_, ok := err.(*common.DecodeError)
	assert.True(t, ok, "Expecting a decode error")

	assert.NoError(t, Unmarshal(&common.RPCReply{}, &s))
	assert.Equal(t, "", s)
}

func TestFilterNamespacesAreEncoded(t *testing.T) {
	b, err := xml.Marshal(XPathFilter("/t:top/t:name", Namespace{ID: "t", Path: "urn:test"}))
	assert.NoError(t, err)
	assert.Equal(t, `<filter type="xpath" select="/t:top/t:name" xmlns:t="urn:test"></filter>`, string(b))
}
