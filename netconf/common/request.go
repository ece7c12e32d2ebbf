package common

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// Datastore names a configuration datastore.
type Datastore string

// Configuration Datastores
const (
	Running   Datastore = "running"
	Candidate Datastore = "candidate"
	Startup   Datastore = "startup"
)

// DefaultOperation is the edit-config default-operation parameter.
type DefaultOperation string

// Edit Config Operation Types
const (
	MergeOp   DefaultOperation = "merge"
	ReplaceOp DefaultOperation = "replace"
	NoneOp    DefaultOperation = "none"
)

// TestOption is the edit-config test-option parameter.
type TestOption string

// Edit Config Test Options
const (
	TestThenSetOpt TestOption = "test-then-set"
	SetOpt         TestOption = "set"
	TestOnlyOpt    TestOption = "test-only"
)

// ErrorOption is the edit-config error-option parameter.
type ErrorOption string

// Edit Config Error Options
const (
	StopOnErrorErrOpt     ErrorOption = "stop-on-error"
	ContinueOnErrorErrOpt ErrorOption = "continue-on-error"
	RollbackOnErrorErrOpt ErrorOption = "rollback-on-error"
)

// FilterType is the type attribute of a filter.
type FilterType string

// Filter types.
const (
	SubtreeFilter FilterType = "subtree"
	XPathFilter   FilterType = "xpath"
)

// Filter restricts the data returned by get and get-config. Body is emitted verbatim.
type Filter struct {
	XMLName    xml.Name   `xml:"filter"`
	Type       FilterType `xml:"type,attr,omitempty"`
	Select     string     `xml:"select,attr,omitempty"`
	Namespaces []xml.Attr `xml:",any,attr"`
	Body       string     `xml:",innerxml"`
}

// Config is the <config> element of edit-config and copy-config. Body is emitted verbatim.
type Config struct {
	XMLName xml.Name `xml:"config"`
	Body    string   `xml:",innerxml"`
}

// ConfigType is the content of a <source> or <target> element.
// Name holds the self-closing datastore element, since the xml Marshaller will not create
// self-closing tags and some devices require them.
type ConfigType struct {
	Name   string  `xml:",innerxml"`
	URL    string  `xml:"url,omitempty"`
	Config *Config `xml:"config,omitempty"`
}

// DsName returns a ConfigType naming the datastore ds.
func DsName(ds Datastore) *ConfigType {
	return &ConfigType{Name: "<" + string(ds) + "/>"}
}

// DsURL returns a ConfigType referring to the configuration held at url.
// The device must advertise the :url capability.
func DsURL(url string) *ConfigType {
	return &ConfigType{URL: url}
}

// InlineConfig returns a ConfigType carrying a complete configuration.
func InlineConfig(body string) *ConfigType {
	return &ConfigType{Config: &Config{Body: body}}
}

// Datastore returns the name of the first element inside the source or target, if any.
func (c *ConfigType) Datastore() (Datastore, error) {
	if c == nil {
		return "", errors.New("no datastore specified")
	}
	if c.URL != "" {
		return "", errors.New("url is not a datastore")
	}
	d := xml.NewDecoder(bytes.NewBufferString(c.Name))
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return "", errors.New("no datastore specified")
		}
		if err != nil {
			return "", errors.Wrap(err, "failed to parse datastore")
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local == "config" {
				return "", errors.New("inline configuration is not a datastore")
			}
			return Datastore(se.Name.Local), nil
		}
	}
}

// GetReq is a get request.
type GetReq struct {
	XMLName xml.Name `xml:"get"`
	Filter  *Filter
}

// GetConfigReq is a get-config request.
type GetConfigReq struct {
	XMLName xml.Name    `xml:"get-config"`
	Source  *ConfigType `xml:"source"`
	Filter  *Filter
}

// EditConfigReq is an edit-config request. Fields are declared in the order RFC6241 requires.
type EditConfigReq struct {
	XMLName          xml.Name         `xml:"edit-config"`
	Target           *ConfigType      `xml:"target"`
	DefaultOperation DefaultOperation `xml:"default-operation,omitempty"`
	TestOption       TestOption       `xml:"test-option,omitempty"`
	ErrorOption      ErrorOption      `xml:"error-option,omitempty"`
	Config           *Config
	ConfigURL        string `xml:"url,omitempty"`
}

// CopyConfigReq is a copy-config request.
type CopyConfigReq struct {
	XMLName xml.Name    `xml:"copy-config"`
	Target  *ConfigType `xml:"target"`
	Source  *ConfigType `xml:"source"`
}

// DeleteConfigReq is a delete-config request.
type DeleteConfigReq struct {
	XMLName xml.Name    `xml:"delete-config"`
	Target  *ConfigType `xml:"target"`
}

// LockReq is a lock request.
type LockReq struct {
	XMLName xml.Name    `xml:"lock"`
	Target  *ConfigType `xml:"target"`
}

// UnlockReq is an unlock request.
type UnlockReq struct {
	XMLName xml.Name    `xml:"unlock"`
	Target  *ConfigType `xml:"target"`
}

type CommitReq struct {
	XMLName xml.Name `xml:"commit"`
}

type DiscardChangesReq struct {
	XMLName xml.Name `xml:"discard-changes"`
}

type KillSessionReq struct {
	XMLName   xml.Name `xml:"kill-session"`
	SessionID uint32   `xml:"session-id"`
}

type CloseSessionReq struct {
	XMLName xml.Name `xml:"close-session"`
}

func (GetReq) Operation() Operation            { return OpGet }
func (GetConfigReq) Operation() Operation      { return OpGetConfig }
func (EditConfigReq) Operation() Operation     { return OpEditConfig }
func (CopyConfigReq) Operation() Operation     { return OpCopyConfig }
func (DeleteConfigReq) Operation() Operation   { return OpDeleteConfig }
func (LockReq) Operation() Operation           { return OpLock }
func (UnlockReq) Operation() Operation         { return OpUnlock }
func (CommitReq) Operation() Operation         { return OpCommit }
func (DiscardChangesReq) Operation() Operation { return OpDiscardChanges }
func (KillSessionReq) Operation() Operation    { return OpKillSession }
func (CloseSessionReq) Operation() Operation   { return OpCloseSession }

// DecodeRPC decodes an rpc message, storing its body in req, which must be a pointer to a
// request record. The message-id of the rpc is returned.
func DecodeRPC(b []byte, req Request) (uint32, error) {
	d := xml.NewDecoder(bytes.NewReader(b))
	var messageID uint32
	inRPC := false
	for {
		tok, err := d.Token()
		if err != nil {
			return 0, errors.Wrap(err, "failed to decode rpc")
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !inRPC {
			if se.Name != NameRPC {
				return 0, errors.Errorf("unexpected element %s", se.Name.Local)
			}
			for _, attr := range se.Attr {
				if attr.Name.Local == "message-id" {
					id, err := strconv.ParseUint(attr.Value, 10, 32)
					if err != nil {
						return 0, errors.Wrap(err, "invalid message-id")
					}
					messageID = uint32(id)
				}
			}
			inRPC = true
			continue
		}
		if err := d.DecodeElement(req, &se); err != nil {
			return 0, errors.Wrapf(err, "failed to decode %s", se.Name.Local)
		}
		return messageID, nil
	}
}
