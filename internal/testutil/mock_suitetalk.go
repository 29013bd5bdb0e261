// Package testutil provides testing utilities for the SuiteTalk client.
package testutil

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ServicePath is the SOAP endpoint path served by the mock.
const ServicePath = "/services/NetSuitePort_2019_2"

// RecordPath is the REST record collection root served by the mock.
const RecordPath = "/services/rest/record/v1/"

// MockResponse defines the behavior for a mock REST response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request received by the mock.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte

	// Action is the SOAPAction header of SOAP requests.
	Action string

	// PageIndex and PageSize are set for SOAP search requests.
	PageIndex int
	PageSize  int
	SearchID  string
}

type pageKey struct {
	index int
	size  int
}

type fault struct {
	name   string
	status int
}

// MockSuiteTalk is a configurable mock of the REST and SOAP SuiteTalk
// endpoints for testing.
type MockSuiteTalk struct {
	server *httptest.Server
	mu     sync.Mutex

	handlers map[string]http.HandlerFunc
	queued   map[string][]MockResponse
	lists    map[string][]string
	requests []RecordedRequest

	// search cursor
	records      int
	searches     int
	stallPages   map[pageKey]int
	faults       []fault
	searchFailed string
	stall        time.Duration
}

// NewMockSuiteTalk creates a new mock SuiteTalk server.
func NewMockSuiteTalk() *MockSuiteTalk {
	mock := &MockSuiteTalk{
		handlers:   make(map[string]http.HandlerFunc),
		queued:     make(map[string][]MockResponse),
		lists:      make(map[string][]string),
		stallPages: make(map[pageKey]int),
		stall:      5 * time.Second,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the mock server URL.
func (m *MockSuiteTalk) URL() string {
	return m.server.URL
}

// SOAPEndpoint returns the URL of the mock SOAP service.
func (m *MockSuiteTalk) SOAPEndpoint() string {
	return m.server.URL + ServicePath
}

// Close shuts down the mock server.
func (m *MockSuiteTalk) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockSuiteTalk) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific REST path.
func (m *MockSuiteTalk) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a REST path.
func (m *MockSuiteTalk) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, r, resp)
	})
}

// QueueResponses configures responses for the next requests to path, used
// once each in order before the fixed response or handler applies.
func (m *MockSuiteTalk) QueueResponses(path string, resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[path] = append(m.queued[path], resps...)
}

// SetRecordList serves ids on the REST listing of recordType.
func (m *MockSuiteTalk) SetRecordList(recordType string, ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[RecordPath+recordType] = ids
}

// SetSearchRecords sets the size of the result set served by every search.
// Record internal ids run from 1 to n.
func (m *MockSuiteTalk) SetSearchRecords(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = n
}

// StallPage makes the next times requests for page index at size stall
// without answering until the client gives up.
func (m *MockSuiteTalk) StallPage(index, size, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stallPages[pageKey{index, size}] += times
}

// SetStall sets the longest time a stalled request is held open.
func (m *MockSuiteTalk) SetStall(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stall = d
}

// QueueFault makes the next SOAP request return a fault with the NetSuite
// fault element name and HTTP status.
func (m *MockSuiteTalk) QueueFault(name string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = append(m.faults, fault{name: name, status: status})
}

// FailSearch makes every search page report isSuccess="false" with message.
// An empty message restores normal searches.
func (m *MockSuiteTalk) FailSearch(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchFailed = message
}

// Requests returns a copy of the recorded requests.
func (m *MockSuiteTalk) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSuiteTalk) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockSuiteTalk) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec := RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
		Action: r.Header.Get("SOAPAction"),
	}

	if r.URL.Path == ServicePath {
		m.serveSOAP(w, r, rec)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, rec)
	var queued *MockResponse
	if q := m.queued[r.URL.Path]; len(q) > 0 {
		queued = &q[0]
		m.queued[r.URL.Path] = q[1:]
	}
	handler, exists := m.handlers[r.URL.Path]
	ids, isList := m.lists[r.URL.Path]
	m.mu.Unlock()

	switch {
	case queued != nil:
		writeResponse(w, r, *queued)
	case exists:
		handler(w, r)
	case isList:
		serveList(w, r, ids)
	default:
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"path":%q}`, r.URL.Path)
	}
}

func writeResponse(w http.ResponseWriter, r *http.Request, resp MockResponse) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func serveList(w http.ResponseWriter, r *http.Request, ids []string) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 1000
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset > len(ids) {
		offset = len(ids)
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	type item struct {
		ID string `json:"id"`
	}
	items := make([]item, 0, end-offset)
	for _, id := range ids[offset:end] {
		items = append(items, item{ID: id})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]any{
		"count":        len(items),
		"hasMore":      end < len(ids),
		"offset":       offset,
		"totalResults": len(ids),
		"items":        items,
	})
}

type soapRequest struct {
	PageSize int `xml:"Header>searchPreferences>pageSize"`
	Body     struct {
		Search *struct{} `xml:"search"`
		More   *struct {
			SearchID  string `xml:"searchId"`
			PageIndex int    `xml:"pageIndex"`
		} `xml:"searchMoreWithId"`
	} `xml:"Body"`
}

func (m *MockSuiteTalk) serveSOAP(w http.ResponseWriter, r *http.Request, rec RecordedRequest) {
	var req soapRequest
	if err := xml.Unmarshal(rec.Body, &req); err != nil {
		m.mu.Lock()
		m.requests = append(m.requests, rec)
		m.mu.Unlock()
		writeFault(w, http.StatusInternalServerError, "", "malformed request: "+err.Error())
		return
	}

	rec.PageSize = req.PageSize
	switch {
	case req.Body.Search != nil:
		rec.PageIndex = 1
	case req.Body.More != nil:
		rec.PageIndex = req.Body.More.PageIndex
		rec.SearchID = req.Body.More.SearchID
	}

	m.mu.Lock()
	m.requests = append(m.requests, rec)
	var f *fault
	if len(m.faults) > 0 {
		f = &m.faults[0]
		m.faults = m.faults[1:]
	}
	key := pageKey{rec.PageIndex, rec.PageSize}
	stall := m.stallPages[key] > 0
	if stall {
		m.stallPages[key]--
	}
	stallFor := m.stall
	searchID := rec.SearchID
	if req.Body.Search != nil {
		m.searches++
		searchID = fmt.Sprintf("WEBSERVICES_MOCK_%d", m.searches)
	}
	total := m.records
	failed := m.searchFailed
	m.mu.Unlock()

	if f != nil {
		writeFault(w, f.status, f.name, "mock fault "+f.name)
		return
	}

	if stall {
		select {
		case <-time.After(stallFor):
		case <-r.Context().Done():
		}
		return
	}

	if req.Body.Search == nil && req.Body.More == nil {
		writeSOAP(w, http.StatusOK, `<mockResponse/>`)
		return
	}

	writeSOAP(w, http.StatusOK, searchPage(total, rec.PageIndex, rec.PageSize, searchID, failed, req.Body.More != nil))
}

// searchPage renders page index of a result set of total records.
func searchPage(total, index, size int, searchID, failed string, more bool) string {
	if size < 1 {
		size = 1000
	}
	pages := (total + size - 1) / size

	var b strings.Builder
	element := "searchResponse"
	if more {
		element = "searchMoreWithIdResponse"
	}
	fmt.Fprintf(&b, `<%s xmlns="urn:messages_2019_2.platform.webservices.netsuite.com">`, element)
	b.WriteString(`<platformCore:searchResult xmlns:platformCore="urn:core_2019_2.platform.webservices.netsuite.com">`)
	if failed != "" {
		fmt.Fprintf(&b, `<platformCore:status isSuccess="false"><platformCore:statusDetail type="ERROR"><platformCore:code>INVALID_SEARCH</platformCore:code><platformCore:message>%s</platformCore:message></platformCore:statusDetail></platformCore:status>`, failed)
	} else {
		b.WriteString(`<platformCore:status isSuccess="true"/>`)
	}
	fmt.Fprintf(&b, `<platformCore:totalRecords>%d</platformCore:totalRecords>`, total)
	fmt.Fprintf(&b, `<platformCore:pageSize>%d</platformCore:pageSize>`, size)
	fmt.Fprintf(&b, `<platformCore:totalPages>%d</platformCore:totalPages>`, pages)
	fmt.Fprintf(&b, `<platformCore:pageIndex>%d</platformCore:pageIndex>`, index)
	fmt.Fprintf(&b, `<platformCore:searchId>%s</platformCore:searchId>`, searchID)
	b.WriteString(`<platformCore:recordList>`)
	if failed == "" {
		for id := (index-1)*size + 1; id <= index*size && id <= total; id++ {
			fmt.Fprintf(&b, `<platformCore:record internalId="%d" xsi:type="listRel:Customer"><listRel:entityId>C%d</listRel:entityId></platformCore:record>`, id, id)
		}
	}
	b.WriteString(`</platformCore:recordList></platformCore:searchResult>`)
	fmt.Fprintf(&b, `</%s>`, element)
	return b.String()
}

func writeSOAP(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`+
		`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" `+
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" `+
		`xmlns:listRel="urn:relationships_2019_2.lists.webservices.netsuite.com">`+
		`<soapenv:Body>%s</soapenv:Body></soapenv:Envelope>`, body)
}

func writeFault(w http.ResponseWriter, status int, name, message string) {
	detail := ""
	if name != "" {
		detail = fmt.Sprintf(`<detail><platformFaults:%s xmlns:platformFaults="urn:faults_2019_2.platform.webservices.netsuite.com">`+
			`<platformFaults:code>MOCK_FAULT</platformFaults:code><platformFaults:message>%s</platformFaults:message>`+
			`</platformFaults:%s></detail>`, name, message, name)
	}
	writeSOAP(w, status, fmt.Sprintf(`<soapenv:Fault><faultcode>soapenv:Server</faultcode><faultstring>%s</faultstring>%s</soapenv:Fault>`, message, detail))
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewErrorResponse creates a REST error document with the given status and
// NetSuite error code.
func NewErrorResponse(status int, code, detail string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body: fmt.Sprintf(`{"type":"https://www.rfc-editor.org/rfc/rfc9110.html","title":%q,"status":%d,"o:errorDetails":[{"detail":%q,"o:errorCode":%q}]}`,
			http.StatusText(status), status, detail, code),
		Headers: map[string]string{
			"Content-Type": "application/vnd.oracle.resource+json; type=error",
		},
	}
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return NewErrorResponse(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable")
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return NewErrorResponse(http.StatusTooManyRequests, "CONCURRENCY_LIMIT_EXCEEDED", "Concurrent request limit exceeded")
}
