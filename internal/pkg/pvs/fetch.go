package pvs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// varserver path serving the full matched variable set; the legacy dl_cgi
// endpoint returns the same devices-array shape without the auth step.
const (
	varsPath   = "/vars?match=/&fmt=obj"
	legacyPath = "/cgi-bin/dl_cgi?Command=DeviceList"
)

// Fetch issues one GET against the device's variable-serving endpoint over
// the session cookie and returns the decoded payload plus the raw body for
// archiving. A nil session selects the legacy unauthenticated endpoint.
//
// Failures come back as *FetchError, except a 401/403 which returns
// ErrSessionExpired so the caller can re-login once.
func (c *Client) Fetch(ctx context.Context, sess *Session) (*RawPayload, []byte, error) {
	path := varsPath
	httpClient := (*http.Client)(nil)
	if sess != nil {
		httpClient = sess.client
	} else {
		path = legacyPath
		var err error
		httpClient, err = c.newHTTPClient()
		if err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+path, nil)
	if err != nil {
		return nil, nil, err
	}

	res, err := httpClient.Do(req)
	if err != nil {
		// connection refused, timeout, device rebooting: all expected,
		// all low severity
		return nil, nil, &FetchError{Kind: FetchUnreachable, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return nil, nil, ErrSessionExpired
	}
	if res.StatusCode != http.StatusOK {
		return nil, nil, &FetchError{
			Kind: FetchDeviceFailure,
			Err:  fmt.Errorf("unexpected status %d", res.StatusCode),
		}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		// embedded server under load truncates mid-body
		return nil, nil, &FetchError{Kind: FetchMalformedBody, Err: err}
	}

	payload := &RawPayload{}
	if err := json.Unmarshal(body, payload); err != nil {
		return nil, nil, &FetchError{Kind: FetchMalformedBody, Err: err}
	}

	// the legacy endpoint carries result too; treat absence as success for
	// forward compatibility with firmware that drops the field
	if payload.Result != "" && payload.Result != ResultSucceed {
		return nil, nil, &FetchError{
			Kind: FetchDeviceFailure,
			Err:  fmt.Errorf("device result %q", payload.Result),
		}
	}

	c.logger.Debug("pvs fetch ok",
		zap.Int("devices", len(payload.Devices)),
		zap.Int("body_bytes", len(body)))
	return payload, body, nil
}
