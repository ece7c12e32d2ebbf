package testserver

import (
	"encoding/xml"
	"io"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/damianoneill/ncclient/netconf/common"
)

// Device holds the configuration datastores and locks shared by every session of a test server.
type Device struct {
	mu     sync.Mutex
	stores map[common.Datastore]*etree.Element
	locks  map[common.Datastore]uint32
}

// NewDevice delivers a device with empty running, candidate and startup datastores.
func NewDevice() *Device {
	d := &Device{
		stores: map[common.Datastore]*etree.Element{},
		locks:  map[common.Datastore]uint32{},
	}
	for _, ds := range []common.Datastore{common.Running, common.Candidate, common.Startup} {
		d.stores[ds] = etree.NewElement("data")
	}
	return d
}

// Load replaces the content of a datastore with the xml fragment cfg.
func (d *Device) Load(ds common.Datastore, cfg string) error {
	content, err := parseFragment(cfg)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stores[ds] = content
	return nil
}

// Content delivers the content of a datastore as an xml fragment.
func (d *Device) Content(ds common.Datastore) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	store, ok := d.stores[ds]
	if !ok {
		return ""
	}
	return serialize(store.ChildElements())
}

// LockHolder delivers the id of the session holding the lock on ds, or zero.
func (d *Device) LockHolder(ds common.Datastore) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locks[ds]
}

func (d *Device) store(ds common.Datastore) (*etree.Element, *common.RPCError) {
	store, ok := d.stores[ds]
	if !ok {
		return nil, rpcError(common.ErrorTypeProtocol, common.ErrorTagInvalidValue, "unknown datastore "+string(ds))
	}
	return store, nil
}

func (d *Device) checkWritable(ds common.Datastore, sid uint32) *common.RPCError {
	if holder := d.locks[ds]; holder != 0 && holder != sid {
		e := rpcError(common.ErrorTypeProtocol, common.ErrorTagInUse, "datastore is locked by another session")
		e.Info = &common.ErrorInfo{SessionID: &holder}
		return e
	}
	return nil
}

func (d *Device) get(ds common.Datastore, filter *common.Filter) (string, *common.RPCError) {
	d.mu.Lock()
	defer d.mu.Unlock()
	store, rerr := d.store(ds)
	if rerr != nil {
		return "", rerr
	}
	return applyFilter(store, filter)
}

func (d *Device) editConfig(sid uint32, req *common.EditConfigReq) *common.RPCError {
	ds, rerr := datastoreOf(req.Target)
	if rerr != nil {
		return rerr
	}
	if req.ConfigURL != "" {
		return rpcError(common.ErrorTypeProtocol, common.ErrorTagOperationNotSupported, "url capability is not supported")
	}
	if req.Config == nil {
		return rpcError(common.ErrorTypeProtocol, common.ErrorTagMissingElement, "config")
	}
	edit, err := parseFragment(req.Config.Body)
	if err != nil {
		return rpcError(common.ErrorTypeApplication, common.ErrorTagMalformedMessage, err.Error())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if rerr = d.checkWritable(ds, sid); rerr != nil {
		return rerr
	}
	store, rerr := d.store(ds)
	if rerr != nil {
		return rerr
	}

	defaultOp := string(req.DefaultOperation)
	if defaultOp == "" {
		defaultOp = string(common.MergeOp)
	}
	// Apply the edit to a copy so that a failure leaves the datastore unchanged.
	updated := store.Copy()
	if rerr = mergeElements(updated, edit, defaultOp); rerr != nil {
		return rerr
	}
	if req.TestOption != common.TestOnlyOpt {
		d.stores[ds] = updated
	}
	return nil
}

func (d *Device) copyConfig(sid uint32, req *common.CopyConfigReq) *common.RPCError {
	target, rerr := datastoreOf(req.Target)
	if rerr != nil {
		return rerr
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if rerr = d.checkWritable(target, sid); rerr != nil {
		return rerr
	}
	if _, rerr = d.store(target); rerr != nil {
		return rerr
	}

	var content *etree.Element
	if req.Source != nil && req.Source.Config != nil {
		var err error
		if content, err = parseFragment(req.Source.Config.Body); err != nil {
			return rpcError(common.ErrorTypeApplication, common.ErrorTagMalformedMessage, err.Error())
		}
	} else {
		source, rerr := datastoreOf(req.Source)
		if rerr != nil {
			return rerr
		}
		if source == target {
			return rpcError(common.ErrorTypeProtocol, common.ErrorTagInvalidValue, "source and target are the same datastore")
		}
		store, rerr := d.store(source)
		if rerr != nil {
			return rerr
		}
		content = store.Copy()
	}
	d.stores[target] = content
	return nil
}

func (d *Device) deleteConfig(sid uint32, req *common.DeleteConfigReq) *common.RPCError {
	ds, rerr := datastoreOf(req.Target)
	if rerr != nil {
		return rerr
	}
	if ds == common.Running {
		return rpcError(common.ErrorTypeProtocol, common.ErrorTagOperationNotSupported, "the running datastore cannot be deleted")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if rerr = d.checkWritable(ds, sid); rerr != nil {
		return rerr
	}
	if _, rerr = d.store(ds); rerr != nil {
		return rerr
	}
	d.stores[ds] = etree.NewElement("data")
	return nil
}

func (d *Device) lock(sid uint32, target *common.ConfigType) *common.RPCError {
	ds, rerr := datastoreOf(target)
	if rerr != nil {
		return rerr
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, rerr = d.store(ds); rerr != nil {
		return rerr
	}
	if holder := d.locks[ds]; holder != 0 {
		return lockDenied(holder)
	}
	d.locks[ds] = sid
	return nil
}

func (d *Device) unlock(sid uint32, target *common.ConfigType) *common.RPCError {
	ds, rerr := datastoreOf(target)
	if rerr != nil {
		return rerr
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if holder := d.locks[ds]; holder != sid {
		return lockDenied(holder)
	}
	delete(d.locks, ds)
	return nil
}

func (d *Device) commit(sid uint32) *common.RPCError {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rerr := d.checkWritable(common.Running, sid); rerr != nil {
		return rerr
	}
	d.stores[common.Running] = d.stores[common.Candidate].Copy()
	return nil
}

func (d *Device) discardChanges(sid uint32) *common.RPCError {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rerr := d.checkWritable(common.Candidate, sid); rerr != nil {
		return rerr
	}
	d.stores[common.Candidate] = d.stores[common.Running].Copy()
	return nil
}

// releaseLocks drops every lock held by the session.
func (d *Device) releaseLocks(sid uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ds, holder := range d.locks {
		if holder == sid {
			delete(d.locks, ds)
		}
	}
}

func datastoreOf(ct *common.ConfigType) (common.Datastore, *common.RPCError) {
	if ct != nil && ct.URL != "" {
		return "", rpcError(common.ErrorTypeProtocol, common.ErrorTagOperationNotSupported, "url capability is not supported")
	}
	ds, err := ct.Datastore()
	if err != nil {
		return "", rpcError(common.ErrorTypeProtocol, common.ErrorTagMissingElement, err.Error())
	}
	return ds, nil
}

func lockDenied(holder uint32) *common.RPCError {
	e := rpcError(common.ErrorTypeProtocol, common.ErrorTagLockDenied,
		"Access to the requested lock is denied because the lock is currently held by another entity")
	e.Info = &common.ErrorInfo{SessionID: &holder}
	return e
}

func rpcError(typ common.ErrorType, tag common.ErrorTag, message string) *common.RPCError {
	return &common.RPCError{Type: typ, Tag: tag, Severity: common.SeverityError, Message: message}
}

// parseFragment parses an xml fragment, which may hold several top-level elements, into the
// children of a <data> element.
func parseFragment(fragment string) (*etree.Element, error) {
	// etree accepts unclosed and mismatched elements, so the fragment is checked first.
	if err := wellFormed(fragment); err != nil {
		return nil, errors.Wrap(err, "failed to parse configuration")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString("<data>" + fragment + "</data>"); err != nil {
		return nil, errors.Wrap(err, "failed to parse configuration")
	}
	return doc.Root(), nil
}

func wellFormed(fragment string) error {
	d := xml.NewDecoder(strings.NewReader(fragment))
	for {
		_, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func serialize(elements []*etree.Element) string {
	var sb strings.Builder
	for _, e := range elements {
		doc := etree.NewDocument()
		doc.SetRoot(e.Copy())
		s, _ := doc.WriteToString()
		sb.WriteString(s)
	}
	return sb.String()
}
