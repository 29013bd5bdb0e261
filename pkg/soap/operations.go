package soap

import (
	"encoding/xml"
	"strings"
)

const messagesPrefix = "platformMsgs:"

// SearchRecord is a search criteria element in its native XML shape, for
// example Type "listRel:CustomerSearchBasic" with the matching namespace
// declared through WithNamespace.
type SearchRecord struct {
	XMLName    xml.Name   `xml:"platformMsgs:searchRecord"`
	Type       string     `xml:"xsi:type,attr"`
	Namespaces []xml.Attr `xml:",any,attr"`
	Inner      string     `xml:",innerxml"`
}

// NewSearchRecord creates search criteria of the given xsi:type.
func NewSearchRecord(typ, inner string) SearchRecord {
	return SearchRecord{Type: typ, Inner: inner}
}

// WithNamespace returns a copy of r that declares prefix as uri.
func (r SearchRecord) WithNamespace(prefix, uri string) SearchRecord {
	ns := make([]xml.Attr, 0, len(r.Namespaces)+1)
	ns = append(ns, r.Namespaces...)
	ns = append(ns, xml.Attr{Name: xml.Name{Local: "xmlns:" + prefix}, Value: uri})
	r.Namespaces = ns
	return r
}

// Search opens a search cursor.
type Search struct {
	XMLName xml.Name `xml:"platformMsgs:search"`
	Record  SearchRecord
}

// Action implements Operation.
func (Search) Action() string { return "search" }

// SearchMoreWithID reads a page of an open search cursor.
type SearchMoreWithID struct {
	XMLName   xml.Name `xml:"platformMsgs:searchMoreWithId"`
	SearchID  string   `xml:"platformMsgs:searchId"`
	PageIndex int      `xml:"platformMsgs:pageIndex"`
}

// Action implements Operation.
func (SearchMoreWithID) Action() string { return "searchMoreWithId" }

// RawOperation sends a caller-built body element such as add or update.
type RawOperation struct {
	XMLName xml.Name
	Inner   string `xml:",innerxml"`
}

// NewRawOperation wraps body in a platformMsgs element named name.
func NewRawOperation(name, body string) RawOperation {
	return RawOperation{
		XMLName: xml.Name{Local: messagesPrefix + name},
		Inner:   body,
	}
}

// Action implements Operation.
func (o RawOperation) Action() string {
	return strings.TrimPrefix(o.XMLName.Local, messagesPrefix)
}
