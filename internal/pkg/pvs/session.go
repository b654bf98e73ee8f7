package pvs

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/pvs-monitor/internal/pkg/config"
)

// OwnerUser is the fixed role the PVS varserver authenticates.
const OwnerUser = "ssm_owner"

const defaultTimeout = 10 * time.Second

// Session carries the cookie-scoped HTTP client for one authenticated
// exchange with the device. The device gives no expiry contract; staleness
// shows up as a 401/403 on a later request.
type Session struct {
	client *http.Client
}

// Client talks to one PVS supervisor.
type Client struct {
	cfg    *config.DeviceConfig
	logger *zap.Logger
}

func New(cfg *config.DeviceConfig) *Client {
	return &Client{
		cfg:    cfg,
		logger: zap.L(),
	}
}

func (c *Client) baseURL() string {
	return "https://" + c.cfg.Host
}

func (c *Client) timeout() time.Duration {
	if c.cfg.Timeout > 0 {
		return c.cfg.Timeout
	}
	return defaultTimeout
}

// newHTTPClient builds a client with a fresh cookie jar. The PVS serves a
// self-signed certificate, so verification is off.
func (c *Client) newHTTPClient() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: c.timeout(),
		Jar:     jar,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}, nil
}

// basicAuth derives the Authorization header value from the supervisor
// serial: fixed owner role, last five characters of the serial as password.
func (c *Client) basicAuth() (string, error) {
	serial := c.cfg.Serial
	if len(serial) < 5 {
		return "", &AuthError{Reason: "supervisor serial too short to derive credential"}
	}
	cred := fmt.Sprintf("%s:%s", OwnerUser, serial[len(serial)-5:])
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(cred)), nil
}

// Login performs the auth exchange and captures the session cookie. A failed
// attempt is retried exactly once with a freshly derived credential, then
// surfaces an AuthError.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		sess, err := c.login(ctx)
		if err == nil {
			return sess, nil
		}
		lastErr = err
		c.logger.Warn("pvs login attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

func (c *Client) login(ctx context.Context) (*Session, error) {
	httpClient, err := c.newHTTPClient()
	if err != nil {
		return nil, err
	}

	auth, err := c.basicAuth()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/auth?login", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", auth)

	res, err := httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Reason: err.Error()}
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Status: res.StatusCode, Reason: "device rejected credentials"}
	case res.StatusCode != http.StatusOK:
		return nil, &AuthError{Status: res.StatusCode, Reason: "unexpected login response"}
	}

	c.logger.Debug("pvs session established", zap.String("host", c.cfg.Host))
	return &Session{client: httpClient}, nil
}
