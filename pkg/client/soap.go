package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/Sternrassler/suitetalk-client/pkg/pagination"
	"github.com/Sternrassler/suitetalk-client/pkg/soap"
)

// CallSOAP sends op in a SOAP envelope signed with a fresh token passport per
// attempt. prefs may be nil. SOAP faults are returned as *Error with Code set
// to the NetSuite fault name.
func (c *Client) CallSOAP(ctx context.Context, op soap.Operation, prefs *soap.SearchPreferences, mark Mark) (*soap.Response, error) {
	return c.callSOAP(ctx, op, prefs, mark.orNew(), nil)
}

func (c *Client) callSOAP(ctx context.Context, op soap.Operation, prefs *soap.SearchPreferences, mark Mark, bypass func(error) bool) (*soap.Response, error) {
	var parsed *soap.Response

	sc := call{
		operation: op.Action(),
		endpoint:  c.config.SOAPEndpoint,
		mark:      mark,
		bypass:    bypass,
	}
	sc.build = func(ctx context.Context) (*http.Request, error) {
		payload, err := soap.NewEnvelope(c.signer.Passport(), prefs, op)
		if err != nil {
			return nil, err
		}
		sc.size = len(payload)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.SOAPEndpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", soap.ContentType)
		req.Header.Set("SOAPAction", op.Action())
		req.Header.Set("User-Agent", c.config.UserAgent)
		return req, nil
	}
	sc.check = func(resp *Response) error {
		r, err := checkSOAP(resp, mark, c.config.SOAPEndpoint)
		if err != nil {
			return err
		}
		parsed = r
		return nil
	}

	if _, err := c.execute(ctx, &sc); err != nil {
		return nil, err
	}
	return parsed, nil
}

// checkSOAP decodes a SOAP response and classifies faults. A fault element
// wins over the HTTP status.
func checkSOAP(resp *Response, mark Mark, endpoint string) (*soap.Response, error) {
	parsed, err := soap.Parse(resp.Body)
	if err != nil {
		if resp.StatusCode >= 300 {
			return nil, &Error{
				Kind:       classifyStatus(resp.StatusCode),
				StatusCode: resp.StatusCode,
				Message:    http.StatusText(resp.StatusCode),
				Mark:       mark.String(),
				Endpoint:   endpoint,
			}
		}
		return nil, &Error{
			Kind:       KindUnexpected,
			StatusCode: resp.StatusCode,
			Message:    "malformed soap response",
			Mark:       mark.String(),
			Endpoint:   endpoint,
			Err:        err,
		}
	}

	if parsed.Fault != nil {
		code := parsed.Fault.Name()
		if code == "" {
			code = parsed.Fault.Code
		}
		return nil, &Error{
			Kind:       classifyFault(parsed.Fault.Name(), resp.StatusCode),
			StatusCode: resp.StatusCode,
			Code:       code,
			Message:    parsed.Fault.String,
			Mark:       mark.String(),
			Endpoint:   endpoint,
			Err:        parsed.Fault,
		}
	}

	if resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Mark:       mark.String(),
			Endpoint:   endpoint,
		}
	}
	return parsed, nil
}

// searchPreferences returns the header used by every search page.
func searchPreferences(pageSize int) *soap.SearchPreferences {
	return &soap.SearchPreferences{
		BodyFieldsOnly:      true,
		ReturnSearchColumns: false,
		PageSize:            pageSize,
	}
}

// FetchFirst issues a search and returns its first page. Per-attempt timeouts
// are returned without retrying so the search executor can shrink the page.
func (c *Client) FetchFirst(ctx context.Context, query soap.SearchRecord, pageSize int, mark string) (*pagination.Page, error) {
	resp, err := c.callSOAP(ctx, soap.Search{Record: query}, searchPreferences(pageSize), Mark(mark).orNew(), IsTimeout)
	if err != nil {
		return nil, err
	}
	return toPage(resp, Mark(mark), c.config.SOAPEndpoint)
}

// FetchMore returns page pageIndex of an open search.
func (c *Client) FetchMore(ctx context.Context, searchID string, pageIndex, pageSize int, mark string) (*pagination.Page, error) {
	op := soap.SearchMoreWithID{SearchID: searchID, PageIndex: pageIndex}
	resp, err := c.callSOAP(ctx, op, searchPreferences(pageSize), Mark(mark).orNew(), IsTimeout)
	if err != nil {
		return nil, err
	}
	return toPage(resp, Mark(mark), c.config.SOAPEndpoint)
}

func toPage(resp *soap.Response, mark Mark, endpoint string) (*pagination.Page, error) {
	if resp.Search == nil {
		return nil, &Error{
			Kind:     KindUnexpected,
			Message:  "response has no search result",
			Mark:     mark.String(),
			Endpoint: endpoint,
		}
	}

	r := resp.Search
	page := &pagination.Page{
		Success:      r.Status.IsSuccess,
		StatusDetail: r.Status.Message(),
		SearchID:     r.SearchID,
		TotalRecords: r.TotalRecords,
		TotalPages:   r.TotalPages,
		PageIndex:    r.PageIndex,
		PageSize:     r.PageSize,
		Records:      make([]pagination.Record, 0, len(r.Records)),
	}
	for _, rec := range r.Records {
		page.Records = append(page.Records, pagination.Record{
			Type:       rec.Type,
			InternalID: rec.InternalID,
			ExternalID: rec.ExternalID,
			Raw:        rec.Inner,
		})
	}
	return page, nil
}

// Search runs a paginated search for query. pageSizeHint below 1 uses
// Search.RecordsPageSize. Pages are requested only while the results are
// iterated.
func (c *Client) Search(ctx context.Context, query soap.SearchRecord, pageSizeHint int, mark Mark) *pagination.Results {
	if pageSizeHint < 1 {
		pageSizeHint = c.config.Search.RecordsPageSize
	}
	return c.searches.Search(ctx, query, pageSizeHint, mark.orNew().String())
}

// SearchAll runs independent searches concurrently and returns one result per
// query in input order. Queries without a page size or mark get the defaults.
func (c *Client) SearchAll(ctx context.Context, queries []pagination.BatchQuery[soap.SearchRecord]) []pagination.BatchResult {
	prepared := make([]pagination.BatchQuery[soap.SearchRecord], len(queries))
	for i, q := range queries {
		if q.PageSize < 1 {
			q.PageSize = c.config.Search.RecordsPageSize
		}
		if q.Mark == "" {
			q.Mark = NewMark().String()
		}
		prepared[i] = q
	}
	return c.batch.SearchAll(ctx, prepared)
}

// PageSizeFor returns the configured initial page size of a search kind.
func (c *Client) PageSizeFor(kind SearchKind) int {
	switch kind {
	case SearchPurchaseOrders:
		return c.config.Search.PurchaseOrdersPageSize
	case SearchCustomersByIDs:
		return c.config.Search.CustomersByIDsPageSize
	default:
		return c.config.Search.RecordsPageSize
	}
}

// SearchKind selects one of the configured initial page sizes.
type SearchKind int

const (
	SearchRecords SearchKind = iota
	SearchPurchaseOrders
	SearchCustomersByIDs
)

// String implements fmt.Stringer.
func (k SearchKind) String() string {
	switch k {
	case SearchPurchaseOrders:
		return "purchase_orders"
	case SearchCustomersByIDs:
		return "customers_by_ids"
	case SearchRecords:
		return "records"
	default:
		return fmt.Sprintf("search_kind(%d)", int(k))
	}
}
