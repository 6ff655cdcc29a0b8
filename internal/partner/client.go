// Package partner implements the credential exchange against external
// partner finance sites: login, session verification, deal fetching and
// normalization, plus authenticated file downloads.
package partner

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Statuses that trigger a transport-level retry.
var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// ClientOptions carries the transport policy for partner-site calls.
type ClientOptions struct {
	// APIDomain is the partner's root domain, e.g. "altius.finance".
	APIDomain string
	// BaseURL, when set, replaces the API base derived from the website
	// identifier. Used to point clients at stub partner servers.
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// DownloadTimeout bounds file fetches, which are slower than API calls.
	DownloadTimeout time.Duration
	RetryCount      int
	RetryWaitTime   time.Duration
	// InsecureTLS disables certificate verification against the partner.
	// The partner deployments this was built for present certificates that
	// do not validate; the flag keeps the trade-off explicit and revocable.
	InsecureTLS bool
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.APIDomain == "" {
		o.APIDomain = "altius.finance"
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 30 * time.Second
	}
	if o.DownloadTimeout == 0 {
		o.DownloadTimeout = 60 * time.Second
	}
	if o.RetryCount == 0 {
		o.RetryCount = 3
	}
	if o.RetryWaitTime == 0 {
		o.RetryWaitTime = time.Second
	}
	return o
}

// Client owns one cookie-backed HTTP session scoped to a single partner
// site. Cookies set by a successful login are reused by every later call on
// the same instance, including file downloads routed through the session
// registry.
type Client struct {
	http      *resty.Client
	opts      ClientOptions
	websiteID string
	apiBase   string
	logger    *log.Logger
}

// APIBaseURL derives the partner API root for a website identifier. The
// identifier is canonicalized to lower case so the same site always maps to
// the same base URL.
func APIBaseURL(websiteID, apiDomain string) string {
	return fmt.Sprintf("https://%s.api.%s/api/v0.0.2", canonicalWebsiteID(websiteID), apiDomain)
}

func canonicalWebsiteID(websiteID string) string {
	return strings.ToLower(strings.TrimSpace(websiteID))
}

// NewClient builds a session client for one partner site. One client is
// constructed per login attempt.
func NewClient(websiteID string, opts ClientOptions, logger *log.Logger) (*Client, error) {
	opts = opts.withDefaults()
	websiteID = canonicalWebsiteID(websiteID)
	if websiteID == "" {
		return nil, errors.New("website id is empty")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PARTNER] ", log.LstdFlags)
	}

	uiBase := fmt.Sprintf("https://%s.%s", websiteID, opts.APIDomain)

	rc, err := newRestyClient(opts)
	if err != nil {
		return nil, err
	}
	rc.SetHeader("Accept", "application/json, text/plain, */*")
	rc.SetHeader("Accept-Language", "en-US,en;q=0.9")
	rc.SetHeader("Content-Type", "application/json")
	rc.SetHeader("X-Requested-With", "XMLHttpRequest")
	rc.SetHeader("Origin", uiBase)
	rc.SetHeader("Referer", uiBase+"/login")

	apiBase := opts.BaseURL
	if apiBase == "" {
		apiBase = APIBaseURL(websiteID, opts.APIDomain)
	}
	return &Client{
		http:      rc,
		opts:      opts,
		websiteID: websiteID,
		apiBase:   apiBase,
		logger:    logger,
	}, nil
}

// NewAnonymousClient builds a cookie-less client used for downloads when no
// registry session matches the presented handle.
func NewAnonymousClient(opts ClientOptions, logger *log.Logger) (*Client, error) {
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.New(log.Writer(), "[PARTNER] ", log.LstdFlags)
	}
	rc, err := newRestyClient(opts)
	if err != nil {
		return nil, err
	}
	return &Client{http: rc, opts: opts, logger: logger}, nil
}

func newRestyClient(opts ClientOptions) (*resty.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	rc := resty.New()
	rc.SetCookieJar(jar)
	rc.SetHeader("User-Agent", userAgent)
	// No client-wide timeout: read deadlines are applied per call via
	// context, since downloads get a longer budget than API calls.
	rc.SetTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: opts.ConnectTimeout,
		MaxIdleConnsPerHost: 10,
	})
	if opts.InsecureTLS {
		rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	rc.SetRetryCount(opts.RetryCount)
	rc.SetRetryWaitTime(opts.RetryWaitTime)
	rc.SetRetryMaxWaitTime(opts.RetryWaitTime * 8)
	rc.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return retryStatuses[r.StatusCode()]
	})
	return rc, nil
}

// WebsiteID reports the canonical site identifier this client is bound to,
// empty for anonymous clients.
func (c *Client) WebsiteID() string { return c.websiteID }

// DownloadResult exposes a partner file response for streaming. Body must be
// closed by the caller.
type DownloadResult struct {
	Body   io.ReadCloser
	Status int
	Header http.Header
}

// Download fetches an absolute URL through this client's session without
// parsing the body, so callers can stream it.
func (c *Client) Download(ctx context.Context, url string) (*DownloadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.DownloadTimeout)
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		cancel()
		c.logger.Printf("file download failed - url: %s, error: %v", url, err)
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrDownloadTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSiteUnavailable, err)
	}
	return &DownloadResult{
		// Closing the body releases the download deadline too.
		Body:   bodyWithCancel{ReadCloser: resp.RawBody(), cancel: cancel},
		Status: resp.StatusCode(),
		Header: resp.RawResponse.Header,
	}, nil
}

type bodyWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b bodyWithCancel) Close() error {
	b.cancel()
	return b.ReadCloser.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
