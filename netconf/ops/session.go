// Package ops provides one method per NETCONF protocol operation on top of a client session.
package ops

import (
	"encoding/xml"

	"github.com/pkg/errors"

	"github.com/damianoneill/ncclient/netconf/client"
	"github.com/damianoneill/ncclient/netconf/common"
)

// OpSession represents a Netconf Operations OpSession.
//
// Every operation performs one request/reply exchange. A reply carrying rpc-errors is returned as a
// *common.RPCErrors error; get and get-config deliver the verbatim content of the <data> element in
// the Data field of the reply.
type OpSession interface {
	client.Session

	// Get issues a get request; filter may be nil.
	Get(filter *common.Filter) (*common.RPCReply, error)

	// GetConfig issues a get-config request against source; filter may be nil.
	GetConfig(source common.Datastore, filter *common.Filter) (*common.RPCReply, error)

	// EditConfig issues an edit-config request applying config, which is used verbatim as the content
	// of the <config> element, to the target datastore. EditOptions can be added to qualify the operation.
	EditConfig(target common.Datastore, config string, options ...EditOption) (*common.RPCReply, error)

	// CopyConfig issues a copy-config request. source is defined by either common.DsName(datastore) or
	// common.InlineConfig(config).
	CopyConfig(target common.Datastore, source *common.ConfigType) (*common.RPCReply, error)

	// DeleteConfig issues a delete-config request.
	DeleteConfig(target common.Datastore) (*common.RPCReply, error)

	// Lock issues a lock request on the target datastore.
	Lock(target common.Datastore) (*common.RPCReply, error)

	// Unlock issues an unlock request on the target datastore.
	Unlock(target common.Datastore) (*common.RPCReply, error)

	// Commit issues a commit request.
	Commit() (*common.RPCReply, error)

	// DiscardChanges issues a discard-changes request.
	DiscardChanges() (*common.RPCReply, error)

	// KillSession issues a kill-session request for the session with the specified id.
	KillSession(id uint32) (*common.RPCReply, error)

	// CloseSession issues a close-session request.
	CloseSession() (*common.RPCReply, error)
}

type sImpl struct {
	client.Session
}

// NewOpSession delivers an OpSession running over an established client session.
func NewOpSession(s client.Session) OpSession {
	return &sImpl{Session: s}
}

func (s *sImpl) Get(filter *common.Filter) (*common.RPCReply, error) {
	return s.Execute(&common.GetReq{Filter: filter})
}

func (s *sImpl) GetConfig(source common.Datastore, filter *common.Filter) (*common.RPCReply, error) {
	return s.Execute(&common.GetConfigReq{Source: common.DsName(source), Filter: filter})
}

func (s *sImpl) EditConfig(target common.Datastore, config string, options ...EditOption) (*common.RPCReply, error) {
	return s.Execute(createEditConfigRequest(target, config, options...))
}

func (s *sImpl) CopyConfig(target common.Datastore, source *common.ConfigType) (*common.RPCReply, error) {
	return s.Execute(&common.CopyConfigReq{Target: common.DsName(target), Source: source})
}

func (s *sImpl) DeleteConfig(target common.Datastore) (*common.RPCReply, error) {
	return s.Execute(&common.DeleteConfigReq{Target: common.DsName(target)})
}

func (s *sImpl) Lock(target common.Datastore) (*common.RPCReply, error) {
	return s.Execute(&common.LockReq{Target: common.DsName(target)})
}

func (s *sImpl) Unlock(target common.Datastore) (*common.RPCReply, error) {
	return s.Execute(&common.UnlockReq{Target: common.DsName(target)})
}

func (s *sImpl) Commit() (*common.RPCReply, error) {
	return s.Execute(&common.CommitReq{})
}

func (s *sImpl) DiscardChanges() (*common.RPCReply, error) {
	return s.Execute(&common.DiscardChangesReq{})
}

func (s *sImpl) KillSession(id uint32) (*common.RPCReply, error) {
	return s.Execute(&common.KillSessionReq{SessionID: id})
}

func (s *sImpl) CloseSession() (*common.RPCReply, error) {
	return s.Execute(&common.CloseSessionReq{})
}

// EditOption configures an edit config operation.
type EditOption func(*common.EditConfigReq)

// DefaultOperation sets the default-operation of an edit-config request.
func DefaultOperation(oper common.DefaultOperation) EditOption {
	return func(req *common.EditConfigReq) {
		req.DefaultOperation = oper
	}
}

// TestOption sets the test-option of an edit-config request.
func TestOption(opt common.TestOption) EditOption {
	return func(req *common.EditConfigReq) {
		req.TestOption = opt
	}
}

// ErrorOption sets the error-option of an edit-config request.
func ErrorOption(opt common.ErrorOption) EditOption {
	return func(req *common.EditConfigReq) {
		req.ErrorOption = opt
	}
}

// CfgURL loads the configuration from url instead of the inline config, which is ignored.
// The device must advertise the :url capability.
func CfgURL(url string) EditOption {
	return func(req *common.EditConfigReq) {
		req.Config = nil
		req.ConfigURL = url
	}
}

func createEditConfigRequest(target common.Datastore, config string, options ...EditOption) *common.EditConfigReq {
	req := &common.EditConfigReq{Target: common.DsName(target), Config: &common.Config{Body: config}}
	for _, opt := range options {
		opt(req)
	}
	return req
}

// Namespace declares a namespace prefix used by a filter.
type Namespace struct {
	ID   string
	Path string
}

// SubtreeFilter delivers a subtree filter whose content is body, used verbatim.
func SubtreeFilter(body string, nslist ...Namespace) *common.Filter {
	return &common.Filter{Type: common.SubtreeFilter, Body: body, Namespaces: namespaceAttributes(nslist)}
}

// XPathFilter delivers an xpath filter selecting the nodes identified by xpath.
func XPathFilter(xpath string, nslist ...Namespace) *common.Filter {
	return &common.Filter{Type: common.XPathFilter, Select: xpath, Namespaces: namespaceAttributes(nslist)}
}

func namespaceAttributes(nslist []Namespace) []xml.Attr {
	var attrs []xml.Attr
	for _, ns := range nslist {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "xmlns:" + ns.ID}, Value: ns.Path})
	}
	return attrs
}

// Unmarshal stores the data carried by a get or get-config reply in result, which
// should be the address of either:
// - a string, in which case it will hold the verbatim content of the data element, or
// - a struct with xml tags, which is decoded from the first element of the data.
func Unmarshal(reply *common.RPCReply, result interface{}) error {
	if reply == nil {
		return errors.New("no reply to unmarshal")
	}
	switch target := result.(type) {
	case *string:
		*target = reply.Data
		return nil
	default:
		if err := xml.Unmarshal([]byte(reply.Data), result); err != nil {
			return common.NewDecodeError(reply.Data, err)
		}
		return nil
	}
}
