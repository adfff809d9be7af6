package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// maxErrorBody caps how much of an error response is kept in the error message.
const maxErrorBody = 512

// DecodeResponse decodes a 2xx JSON response into target. Any other status
// becomes an *errors.APIError carrying the status code.
func DecodeResponse(resp *http.Response, service string, target any) error {
	defer closeBody(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapAPI(service, endpoint(resp), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp, service, body)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", endpoint(resp), err)
	}
	return nil
}

// DrainResponse discards the body and reports non-success statuses.
func DrainResponse(resp *http.Response, service string) error {
	defer closeBody(resp)

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp, service, body)
	}
	return nil
}

func statusError(resp *http.Response, service string, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	msg := string(body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &errors.APIError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Message:    msg,
		Endpoint:   endpoint(resp),
	}
}

func endpoint(resp *http.Response) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.Path
	}
	return ""
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		logging.Debug().Err(err).Msg("failed to close response body")
	}
}
