package lookup

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/proxy"

	"geoprobe/internal/config"
	"geoprobe/internal/domain"
)

const (
	maxResponseBodyLength = 64 << 10
	maxLoggedBodyLength   = 256
)

// HTTPResolver queries a remote geolocation endpoint with a single GET per
// address, passing the address in the "ip" query parameter.
type HTTPResolver struct {
	endpoint  *url.URL
	userAgent string
	client    *http.Client
}

func NewHTTPResolver(cfg config.LookupConfig) (*HTTPResolver, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("lookup: parse endpoint: %w", err)
	}

	transport, err := CreateTransport(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	return &HTTPResolver{
		endpoint:  endpoint,
		userAgent: cfg.UserAgent,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout(),
		},
	}, nil
}

// CreateTransport returns a transport that optionally tunnels through an
// upstream proxy. http(s):// proxies use CONNECT, socks5:// proxies dial via SOCKS5.
func CreateTransport(proxyAddr string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyAddr == "" {
		return transport, nil
	}

	proxyURL, err := url.Parse(proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("lookup: parse proxy: %w", err)
	}

	switch proxyURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if proxyURL.User != nil {
			password, _ := proxyURL.User.Password()
			auth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
		}

		socksDialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("lookup: socks5 dialer: %w", err)
		}

		transport.Proxy = nil
		if contextDialer, ok := socksDialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return socksDialer.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("lookup: unsupported proxy scheme %q", proxyURL.Scheme)
	}

	return transport, nil
}

func (r *HTTPResolver) Resolve(ctx context.Context, ip string) domain.IPRecord {
	body, status, err := r.fetch(ctx, ip)
	if err != nil {
		log.Error("Network error or fetch failed", "ip", ip, "error", err)
		return domain.NetworkErrorRecord(ip)
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		log.Error("Lookup API returned HTTP error", "ip", ip, "status", status)
		return domain.ServiceUnavailableRecord(ip)
	}

	p := decodePayload(body)
	if p.kind == payloadUnrecognized {
		log.Warn("Malformed or unhandled response format", "ip", ip, "body", truncateBody(body))
		return domain.MalformedResponseRecord(ip)
	}

	log.Debug("Lookup response decoded", "ip", ip, "encoding", p.kind)
	return recordFromPayload(ip, p)
}

func (r *HTTPResolver) fetch(ctx context.Context, ip string) (string, int, error) {
	target := *r.endpoint
	query := target.Query()
	query.Set("ip", ip)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyLength))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	return string(body), resp.StatusCode, nil
}

func truncateBody(body string) string {
	runes := []rune(body)
	if len(runes) > maxLoggedBodyLength {
		return string(runes[:maxLoggedBodyLength]) + "..."
	}
	return body
}
