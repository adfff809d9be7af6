// Package catalogue is a client for the Service Catalogue, a Strapi v5 REST
// API holding components, environments, teams and products.
package catalogue

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/transport"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// Config configures a Client.
type Config struct {
	Endpoint string `validate:"required,url"`
	APIKey   string `validate:"required"`
	// Filter is a raw Strapi query fragment such as
	// "&filters[name][$contains]=example" appended to component listings.
	Filter string
}

// Client talks to the Service Catalogue.
type Client struct {
	http     *transport.Client
	endpoint string
	filter   string
	pageSize int
}

// New creates a catalogue client.
func New(cfg Config, opts ...transport.Option) *Client {
	return &Client{
		http:     transport.New("service-catalogue", &transport.BearerAuth{}, cfg.APIKey, opts...),
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		filter:   cfg.Filter,
		pageSize: constants.CataloguePageSize,
	}
}

// TestConnection checks the catalogue is reachable.
func (c *Client) TestConnection(ctx context.Context) error {
	resp, err := c.http.Do(ctx, http.MethodHead, c.endpoint, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	logging.FromContext(ctx).Info().
		Str("endpoint", c.endpoint).
		Int("status", resp.StatusCode).
		Msg("connected to the service catalogue")
	return nil
}

type pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

type listResponse[T any] struct {
	Data []T `json:"data"`
	Meta struct {
		Pagination pagination `json:"pagination"`
	} `json:"meta"`
}

type oneResponse[T any] struct {
	Data T `json:"data"`
}

func (c *Client) tableURL(table string, query url.Values, raw string) string {
	u := c.endpoint + "/v1/" + table
	encoded := query.Encode()
	if encoded == "" && raw == "" {
		return u
	}
	return u + "?" + encoded + raw
}

// list reads every page of a table.
func list[T any](ctx context.Context, c *Client, table string, query url.Values, raw string) ([]T, error) {
	log := logging.FromContext(ctx)
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("pagination[pageSize]", strconv.Itoa(c.pageSize))

	var out []T
	for page := 1; ; page++ {
		q.Set("pagination[page]", strconv.Itoa(page))
		var resp listResponse[T]
		if err := c.http.GetJSON(ctx, c.tableURL(table, q, raw), &resp); err != nil {
			return nil, errors.WrapResource("list", table, "", err)
		}
		out = append(out, resp.Data...)
		log.Debug().Str("table", table).Int("page", page).Int("page_count", resp.Meta.Pagination.PageCount).Msg("got catalogue page")
		if page >= resp.Meta.Pagination.PageCount {
			return out, nil
		}
	}
}

// findOne returns the first record whose field equals value. An ampersand in
// value is sent as "&amp;", the form the catalogue stores it in.
func findOne[T any](ctx context.Context, c *Client, table, field, value string, query url.Values) (T, error) {
	var zero T
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set(fmt.Sprintf("filters[%s][$eq]", field), strings.ReplaceAll(value, "&", "&amp;"))

	var resp listResponse[T]
	if err := c.http.GetJSON(ctx, c.tableURL(table, q, ""), &resp); err != nil {
		return zero, errors.WrapResource("find", table, value, err)
	}
	if len(resp.Data) == 0 {
		return zero, errors.NewNotFoundError(table, field+"="+value)
	}
	return resp.Data[0], nil
}

type envelope struct {
	Data any `json:"data"`
}

// Update replaces the given fields of a record.
func (c *Client) Update(ctx context.Context, table, documentID string, data any) error {
	u := c.endpoint + "/v1/" + table + "/" + url.PathEscape(documentID)
	if err := c.http.SendJSON(ctx, http.MethodPut, u, envelope{Data: data}, nil); err != nil {
		return errors.WrapResource("update", table, documentID, err)
	}
	logging.FromContext(ctx).Info().Str("table", table).Str("document_id", documentID).Msg("updated catalogue record")
	return nil
}

// Add creates a record and returns its document id.
func (c *Client) Add(ctx context.Context, table string, data any) (string, error) {
	var resp oneResponse[Record]
	if err := c.http.SendJSON(ctx, http.MethodPost, c.endpoint+"/v1/"+table, envelope{Data: data}, &resp); err != nil {
		return "", errors.WrapResource("add", table, "", err)
	}
	logging.FromContext(ctx).Info().Str("table", table).Str("document_id", resp.Data.DocumentID).Msg("added catalogue record")
	return resp.Data.DocumentID, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, table, documentID string) error {
	u := c.endpoint + "/v1/" + table + "/" + url.PathEscape(documentID)
	if err := c.http.SendJSON(ctx, http.MethodDelete, u, nil, nil); err != nil {
		return errors.WrapResource("delete", table, documentID, err)
	}
	logging.FromContext(ctx).Info().Str("table", table).Str("document_id", documentID).Msg("deleted catalogue record")
	return nil
}
