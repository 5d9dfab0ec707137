package security

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrResponseTooLarge はレスポンスボディが上限を超えた場合に返される。
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// URLGuard は外部URLへのアクセス可否を判定し、安全なHTTPクライアントを提供する。
// リモートカタログの取得と、投稿された地図・SNSリンクの検証に使用する。
type URLGuard interface {
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
	ValidateURL(rawURL string) error
}

var allowedSchemes = []string{"http", "https"}

// blockedNetworks は静的検証で拒否するネットワーク範囲。
// 接続時の検証はsafeurlのDialerが行う。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // メタデータIPを含む
	"0.0.0.0/8",
	"100.64.0.0/10", // CGNAT
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

var blockedHostnames = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %q: %v", cidr, err))
		}
		networks = append(networks, network)
	}
	return networks
}

// SSRFGuard はURLGuardの実装。
type SSRFGuard struct {
	ports []int
}

// NewSSRFGuard はポート80と443のみを許可するSSRFGuardを生成する。
func NewSSRFGuard() *SSRFGuard {
	return &SSRFGuard{ports: []int{80, 443}}
}

// NewSafeClient はプライベート・ループバック・リンクローカル宛ての接続を拒否するHTTPクライアントを返す。
// DNS解決後のIPアドレスをsafeurlがDialer段階で検証するため、DNS再バインディングも防げる。
// maxResponseSizeが正の場合、ボディの読み込みが上限を超えるとErrResponseTooLargeを返す。
func (g *SSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.ports...).
		Build()

	client := safeurl.Client(config).Client
	if maxResponseSize > 0 {
		client.Transport = &limitedTransport{base: client.Transport, limit: maxResponseSize}
	}
	return client
}

// ValidateURL はDNS解決を伴わない静的な検証を行う。
func (g *SSRFGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("blocked IP address: %s", ip)
			}
		}
		return nil
	}

	if blockedHostnames[strings.ToLower(strings.TrimSuffix(host, "."))] {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

// limitedTransport はレスポンスボディの読み込み量を制限する。
type limitedTransport struct {
	base  http.RoundTripper
	limit int64
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.ContentLength > t.limit {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: Content-Length %d > %d", ErrResponseTooLarge, resp.ContentLength, t.limit)
	}
	resp.Body = &limitedBody{rc: resp.Body, remaining: t.limit}
	return resp, nil
}

// limitedBody は上限を1バイトでも超えた時点でErrResponseTooLargeを返す。
type limitedBody struct {
	rc        io.ReadCloser
	remaining int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.remaining < 0 {
		return 0, ErrResponseTooLarge
	}
	// 上限超過を検出するために1バイト余分に読む
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.rc.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		return n + int(b.remaining), ErrResponseTooLarge
	}
	return n, err
}

func (b *limitedBody) Close() error {
	return b.rc.Close()
}
