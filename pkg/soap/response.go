package soap

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Response is a decoded SOAP response envelope.
type Response struct {
	// Fault is set when the body carries a SOAP fault.
	Fault *Fault

	// Search is set for search and searchMoreWithId responses.
	Search *SearchResult

	// Body is the raw content of soapenv:Body.
	Body []byte
}

// SearchResult is the searchResult element of a search response.
type SearchResult struct {
	Status       Status   `xml:"status"`
	TotalRecords int      `xml:"totalRecords"`
	PageSize     int      `xml:"pageSize"`
	TotalPages   int      `xml:"totalPages"`
	PageIndex    int      `xml:"pageIndex"`
	SearchID     string   `xml:"searchId"`
	Records      []Record `xml:"recordList>record"`
}

// Status is the operation status of a response.
type Status struct {
	IsSuccess bool           `xml:"isSuccess,attr"`
	Details   []StatusDetail `xml:"statusDetail"`
}

// Message joins the status detail messages.
func (s Status) Message() string {
	msgs := make([]string, 0, len(s.Details))
	for _, d := range s.Details {
		if d.Code != "" {
			msgs = append(msgs, d.Code+": "+d.Message)
		} else {
			msgs = append(msgs, d.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

// StatusDetail is one entry of a status.
type StatusDetail struct {
	Type    string `xml:"type,attr"`
	Code    string `xml:"code"`
	Message string `xml:"message"`
}

// Record is a record of a search result with its payload kept as raw XML.
type Record struct {
	Type       string `xml:"type,attr"`
	InternalID string `xml:"internalId,attr"`
	ExternalID string `xml:"externalId,attr"`
	Inner      []byte `xml:",innerxml"`
}

// Fault is a SOAP 1.1 fault.
type Fault struct {
	Code   string      `xml:"faultcode"`
	String string      `xml:"faultstring"`
	Detail faultDetail `xml:"detail"`
}

type faultDetail struct {
	Items []faultItem `xml:",any"`
}

type faultItem struct {
	XMLName xml.Name
	Code    string `xml:"code"`
	Message string `xml:"message"`
}

// Name returns the local name of the NetSuite fault element in the detail,
// for example "invalidCredentialsFault". It is empty for generic faults.
func (f *Fault) Name() string {
	if item := f.item(); item != nil {
		return item.XMLName.Local
	}
	return ""
}

// FaultCode returns the NetSuite error code of the fault, if any.
func (f *Fault) FaultCode() string {
	if item := f.item(); item != nil {
		return item.Code
	}
	return ""
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if name := f.Name(); name != "" {
		return fmt.Sprintf("soap fault %s (%s): %s", name, f.FaultCode(), f.String)
	}
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.String)
}

func (f *Fault) item() *faultItem {
	for i := range f.Detail.Items {
		if strings.HasSuffix(f.Detail.Items[i].XMLName.Local, "Fault") {
			return &f.Detail.Items[i]
		}
	}
	return nil
}

type responseEnvelope struct {
	XMLName xml.Name     `xml:"Envelope"`
	Body    responseBody `xml:"Body"`
}

type responseBody struct {
	Fault              *Fault          `xml:"Fault"`
	SearchResponse     *searchResponse `xml:"searchResponse"`
	SearchMoreResponse *searchResponse `xml:"searchMoreWithIdResponse"`
	Inner              []byte          `xml:",innerxml"`
}

type searchResponse struct {
	Result SearchResult `xml:"searchResult"`
}

// Parse decodes a response envelope.
func Parse(data []byte) (*Response, error) {
	var env responseEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode soap envelope: %w", err)
	}

	resp := &Response{
		Fault: env.Body.Fault,
		Body:  env.Body.Inner,
	}
	switch {
	case env.Body.SearchResponse != nil:
		resp.Search = &env.Body.SearchResponse.Result
	case env.Body.SearchMoreResponse != nil:
		resp.Search = &env.Body.SearchMoreResponse.Result
	}
	return resp, nil
}
