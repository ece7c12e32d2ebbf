package testserver

import (
	"sync"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/server/netconf"
)

// RequestHandler is a function type that will be invoked by the session handler to handle an RPC
// request. A nil reply sends nothing to the client.
type RequestHandler func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage

// EchoRequestHandler responds to a request with a reply containing a data element holding
// the body of the request.
var EchoRequestHandler = func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	return netconf.DataReply(req, req.Request.Body)
}

// FailingRequestHandler replies to a request with an error.
var FailingRequestHandler = func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	return netconf.ErrorReply(req, common.RPCError{
		Type:     common.ErrorTypeApplication,
		Tag:      common.ErrorTagOperationFailed,
		Severity: common.SeverityError,
		Message:  "oops",
	})
}

// CloseRequestHandler closes the transport channel on request receipt.
var CloseRequestHandler = func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	h.Close()
	return nil
}

// IgnoreRequestHandler does nothing on receipt of a request.
var IgnoreRequestHandler = func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	return nil
}

// DeviceRequestHandler handles a request against the datastores of the test server's device.
var DeviceRequestHandler = func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	return h.server.handleDeviceRequest(h, req)
}

// SessionHandler is the test server's view of an active netconf session.
type SessionHandler struct {
	*netconf.SessionHandler
	server *TestNCServer

	mu          sync.Mutex
	reqHandlers []RequestHandler
	reqCount    int
	lastReq     *netconf.RPCRequestMessage
}

// LastReq delivers the most recent request received by the session, or nil.
func (h *SessionHandler) LastReq() *netconf.RPCRequestMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastReq
}

// ReqCount delivers the number of requests received by the session.
func (h *SessionHandler) ReqCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reqCount
}

// Capabilities implements netconf.SessionCallback.
func (h *SessionHandler) Capabilities() []string {
	return h.server.capabilities()
}

// HandleRequest implements netconf.SessionCallback.
func (h *SessionHandler) HandleRequest(req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	h.mu.Lock()
	h.reqCount++
	h.lastReq = req
	reqh := DeviceRequestHandler
	if len(h.reqHandlers) > 0 {
		h.reqHandlers, reqh = h.reqHandlers[1:], h.reqHandlers[0]
	}
	h.mu.Unlock()
	return reqh(h, req)
}

// SessionEnded implements netconf.SessionEndCallback, releasing any locks held by the session.
func (h *SessionHandler) SessionEnded() {
	h.server.device.releaseLocks(h.ID())
}

func (ncs *TestNCServer) handleDeviceRequest(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	data, rerr := ncs.dispatch(h, req)
	switch {
	case rerr != nil:
		return netconf.ErrorReply(req, *rerr)
	case common.Operation(req.Request.XMLName.Local).ReturnsData():
		return netconf.DataReply(req, data)
	default:
		return netconf.OkReply(req)
	}
}

func (ncs *TestNCServer) dispatch(h *SessionHandler, req *netconf.RPCRequestMessage) (string, *common.RPCError) {
	sid := h.ID()
	d := ncs.device

	switch common.Operation(req.Request.XMLName.Local) {
	case common.OpGet:
		r := &common.GetReq{}
		if rerr := decodeRequest(req, r); rerr != nil {
			return "", rerr
		}
		return d.get(common.Running, r.Filter)
	case common.OpGetConfig:
		r := &common.GetConfigReq{}
		if rerr := decodeRequest(req, r); rerr != nil {
			return "", rerr
		}
		ds, rerr := datastoreOf(r.Source)
		if rerr != nil {
			return "", rerr
		}
		return d.get(ds, r.Filter)
	case common.OpEditConfig:
		r := &common.EditConfigReq{}
		if rerr := decodeRequest(req, r); rerr != nil {
			return "", rerr
		}
		return "", d.editConfig(sid, r)
	case common.OpCopyConfig:
		r := &common.CopyConfigReq{}
		if rerr := decodeRequest(req, r); rerr != nil {
			return "", rerr
		}
		return "", d.copyConfig(sid, r)
	case common.OpDeleteConfig:
		r := &common.DeleteConfigReq{}
		if rerr := decodeRequest(req, r); rerr != nil {
			return "", rerr
		}
		return "", d.deleteConfig(sid, r)
	case common.OpLock:
		r := &common.LockReq{}
		if rerr := decodeRequest(req, r); rerr != nil {
			return "", rerr
		}
		return "", d.lock(sid, r.Target)
	case common.OpUnlock:
		r := &common.UnlockReq{}
		if rerr := decodeRequest(req, r); rerr != nil {
			return "", rerr
		}
		return "", d.unlock(sid, r.Target)
	case common.OpCommit:
		return "", d.commit(sid)
	case common.OpDiscardChanges:
		return "", d.discardChanges(sid)
	case common.OpKillSession:
		r := &common.KillSessionReq{}
		if rerr := decodeRequest(req, r); rerr != nil {
			return "", rerr
		}
		return "", ncs.killSession(sid, r.SessionID)
	case common.OpCloseSession:
		d.releaseLocks(sid)
		h.CloseAfterReply()
		return "", nil
	default:
		return "", rpcError(common.ErrorTypeProtocol, common.ErrorTagOperationNotSupported,
			"operation "+req.Request.XMLName.Local+" is not supported")
	}
}

func (ncs *TestNCServer) killSession(sid, victim uint32) *common.RPCError {
	if victim == sid {
		return rpcError(common.ErrorTypeProtocol, common.ErrorTagInvalidValue, "a session cannot kill itself")
	}
	vh := ncs.Server.SessionHandler(victim)
	if vh == nil {
		return rpcError(common.ErrorTypeProtocol, common.ErrorTagInvalidValue, "no such session")
	}
	ncs.device.releaseLocks(victim)
	vh.Close()
	return nil
}

func decodeRequest(req *netconf.RPCRequestMessage, r common.Request) *common.RPCError {
	if _, err := common.DecodeRPC(req.Raw, r); err != nil {
		return rpcError(common.ErrorTypeRPC, common.ErrorTagMalformedMessage, err.Error())
	}
	return nil
}
