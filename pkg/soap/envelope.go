// Package soap encodes SuiteTalk SOAP envelopes and decodes their responses.
//
// Only the envelope frame, the token passport, search preferences and the
// search operations are modelled. Record payloads travel as raw XML so entity
// services can build and read them in the service's native shape.
package soap

import (
	"encoding/xml"
	"fmt"

	"github.com/Sternrassler/suitetalk-client/pkg/oauth"
)

// Namespaces of the SuiteTalk 2019.2 endpoint.
const (
	NamespaceEnvelope = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceXSI      = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceMessages = "urn:messages_2019_2.platform.webservices.netsuite.com"
	NamespaceCore     = "urn:core_2019_2.platform.webservices.netsuite.com"
	NamespaceCommon   = "urn:common_2019_2.platform.webservices.netsuite.com"

	// ServicePath is the endpoint path relative to the account's data center.
	ServicePath = "/services/NetSuitePort_2019_2"

	// ContentType is the request content type for SOAP 1.1.
	ContentType = "text/xml; charset=utf-8"
)

// Operation is a SOAP body element.
type Operation interface {
	// Action is the SOAPAction header value.
	Action() string
}

// SearchPreferences is the searchPreferences header element.
type SearchPreferences struct {
	BodyFieldsOnly      bool `xml:"platformMsgs:bodyFieldsOnly"`
	ReturnSearchColumns bool `xml:"platformMsgs:returnSearchColumns"`
	PageSize            int  `xml:"platformMsgs:pageSize,omitempty"`
}

type envelope struct {
	XMLName      xml.Name `xml:"soapenv:Envelope"`
	XMLNSSoapenv string   `xml:"xmlns:soapenv,attr"`
	XMLNSXSI     string   `xml:"xmlns:xsi,attr"`
	XMLNSMsgs    string   `xml:"xmlns:platformMsgs,attr"`
	XMLNSCore    string   `xml:"xmlns:platformCore,attr"`
	XMLNSCommon  string   `xml:"xmlns:platformCommon,attr"`
	Header       header   `xml:"soapenv:Header"`
	Body         rawBody  `xml:"soapenv:Body"`
}

type header struct {
	Passport          *tokenPassport     `xml:"platformMsgs:tokenPassport,omitempty"`
	SearchPreferences *SearchPreferences `xml:"platformMsgs:searchPreferences,omitempty"`
}

type tokenPassport struct {
	Account     string            `xml:"platformCore:account"`
	ConsumerKey string            `xml:"platformCore:consumerKey"`
	Token       string            `xml:"platformCore:token"`
	Nonce       string            `xml:"platformCore:nonce"`
	Timestamp   int64             `xml:"platformCore:timestamp"`
	Signature   passportSignature `xml:"platformCore:signature"`
}

type passportSignature struct {
	Algorithm string `xml:"algorithm,attr"`
	Value     string `xml:",chardata"`
}

type rawBody struct {
	Inner []byte `xml:",innerxml"`
}

// NewEnvelope marshals a complete request envelope. prefs may be nil.
func NewEnvelope(passport oauth.Passport, prefs *SearchPreferences, op Operation) ([]byte, error) {
	if op == nil {
		return nil, fmt.Errorf("soap operation is required")
	}

	body, err := xml.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", op.Action(), err)
	}

	env := envelope{
		XMLNSSoapenv: NamespaceEnvelope,
		XMLNSXSI:     NamespaceXSI,
		XMLNSMsgs:    NamespaceMessages,
		XMLNSCore:    NamespaceCore,
		XMLNSCommon:  NamespaceCommon,
		Header: header{
			Passport: &tokenPassport{
				Account:     passport.Account,
				ConsumerKey: passport.ConsumerKey,
				Token:       passport.Token,
				Nonce:       passport.Nonce,
				Timestamp:   passport.Timestamp,
				Signature: passportSignature{
					Algorithm: passport.Signature.Algorithm,
					Value:     passport.Signature.Value,
				},
			},
			SearchPreferences: prefs,
		},
		Body: rawBody{Inner: body},
	}

	out, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
