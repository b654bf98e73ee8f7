package pvs

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/anicoll/pvs-monitor/internal/pkg/config"
)

const testSerial = "ZT01234567890ABCD"

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	original := zap.L()
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	t.Cleanup(func() {
		zap.ReplaceGlobals(original)
	})

	return New(&config.DeviceConfig{
		Host:    strings.TrimPrefix(srv.URL, "https://"),
		Serial:  testSerial,
		Timeout: 2 * time.Second,
	})
}

func expectedAuth() string {
	cred := "ssm_owner:" + testSerial[len(testSerial)-5:]
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(cred))
}

func TestLogin_CapturesSessionCookie(t *testing.T) {
	var loginCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		loginCalls++
		require.Equal(t, expectedAuth(), r.Header.Get("Authorization"))
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/vars", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		require.NoError(t, err)
		require.Equal(t, "abc123", cookie.Value)
		_, _ = w.Write([]byte(`{"result":"succeed","devices":[]}`))
	})
	srv := httptest.NewTLSServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv)
	sess, err := client.Login(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 1, loginCalls)

	payload, body, err := client.Fetch(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, ResultSucceed, payload.Result)
	assert.NotEmpty(t, body)
}

func TestLogin_RejectedRetriesOnceThenAuthError(t *testing.T) {
	var loginCalls int
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loginCalls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	sess, err := client.Login(context.Background())
	assert.Nil(t, sess)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Equal(t, 2, loginCalls, "exactly one retry")
}

func TestLogin_SerialTooShort(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	client.cfg.Serial = "1234"

	_, err := client.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(t, srv)
	srv.Close() // connection refused from here on

	_, _, err := client.Fetch(context.Background(), nil)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchUnreachable, fetchErr.Kind)
}

func TestFetch_MalformedBody(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"succeed","devices":[{"DEVICE_TYPE":`)) // truncated
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	_, _, err := client.Fetch(context.Background(), nil)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchMalformedBody, fetchErr.Kind)
}

func TestFetch_DeviceReportedFailure(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"error","devices":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	_, _, err := client.Fetch(context.Background(), nil)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchDeviceFailure, fetchErr.Kind)
}

func TestFetch_StaleSessionSurfacesExpired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/vars", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewTLSServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv)
	sess, err := client.Login(context.Background())
	require.NoError(t, err)

	_, _, err = client.Fetch(context.Background(), sess)
	assert.True(t, errors.Is(err, ErrSessionExpired))
}

func TestFetch_LegacyEndpointWithoutSession(t *testing.T) {
	var path string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"result":"succeed","devices":[{"DEVICE_TYPE":"Inverter","SERIAL":"E001","STATE":"working"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	payload, _, err := client.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "/cgi-bin/dl_cgi", path)
	require.Len(t, payload.Devices, 1)
	assert.Equal(t, "E001", payload.Devices[0].Serial)
}

func TestFetch_MissingResultFieldIsSuccess(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"devices":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	payload, _, err := client.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, payload.Result)
}
