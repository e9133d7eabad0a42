package relay

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testTimestamp = "1700000000"

type testKeys struct {
	publicHex string
	private   ed25519.PrivateKey
}

func newTestKeys(t *testing.T) testKeys {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return testKeys{publicHex: hex.EncodeToString(pub), private: priv}
}

func (k testKeys) sign(timestamp string, body []byte) string {
	return hex.EncodeToString(ed25519.Sign(k.private, signedMessage(timestamp, body)))
}

// downstream is a test double for the forwarding target.
type downstream struct {
	*httptest.Server
	calls    int32
	lastBody atomic.Value
	lastCT   atomic.Value
}

func newDownstream(t *testing.T, handler http.HandlerFunc) *downstream {
	t.Helper()
	d := &downstream{}
	d.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&d.calls, 1)
		b, _ := io.ReadAll(r.Body)
		d.lastBody.Store(string(b))
		d.lastCT.Store(r.Header.Get("Content-Type"))
		handler(w, r)
	}))
	t.Cleanup(d.Close)
	return d
}

func (d *downstream) Calls() int {
	return int(atomic.LoadInt32(&d.calls))
}

func (d *downstream) LastBody() string {
	v, _ := d.lastBody.Load().(string)
	return v
}

func (d *downstream) LastContentType() string {
	v, _ := d.lastCT.Load().(string)
	return v
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func testConfig(t *testing.T, publicKey, forwardURL string) *ConfigBuilder {
	t.Helper()
	return NewConfig().
		WithPublicKey(publicKey).
		WithForwardingURL(forwardURL).
		WithPort("0").
		WithForward(ForwardConfig{
			URL:                 forwardURL,
			Timeout:             2 * time.Second,
			MaxResponseBodySize: DefaultMaxResponseBodySize,
		})
}

func signedRequest(keys testKeys, timestamp string, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, DefaultRoutePath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, keys.sign(timestamp, []byte(body)))
	req.Header.Set(TimestampHeader, timestamp)
	return req
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
