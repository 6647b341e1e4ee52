// Package captcha verifies Cloudflare Turnstile tokens.
package captcha

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	gconfig "github.com/Laisky/go-config/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/agency-site/library"
)

const (
	// DefaultEndpoint cloudflare siteverify API
	DefaultEndpoint   = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	tokenLengthLimit  = 5000
	verifyHTTPTimeout = 8 * time.Second
)

// ErrTokenRequired the form did not carry a token while verification is enabled
var ErrTokenRequired = errors.New("turnstile token is required")

// Site is one public site served by this backend
type Site struct {
	Name    string
	Hosts   []string
	Default bool
	Secret  string
}

// Verifier checks turnstile tokens against the siteverify endpoint
type Verifier struct {
	endpoint     string
	globalSecret string
	sites        []Site
	httpcli      *http.Client
}

// Option configures Verifier
type Option func(*Verifier)

// WithEndpoint override the siteverify endpoint
func WithEndpoint(endpoint string) Option {
	return func(v *Verifier) { v.endpoint = endpoint }
}

// WithHTTPClient override the http client
func WithHTTPClient(cli *http.Client) Option {
	return func(v *Verifier) { v.httpcli = cli }
}

// New create verifier. Verification is disabled when no secret is configured.
func New(globalSecret string, sites []Site, opts ...Option) (*Verifier, error) {
	v := &Verifier{
		endpoint:     DefaultEndpoint,
		globalSecret: strings.TrimSpace(globalSecret),
		sites:        sites,
	}
	for _, f := range opts {
		f(v)
	}

	if v.httpcli == nil {
		cli, err := gutils.NewHTTPClient(gutils.WithHTTPClientTimeout(verifyHTTPTimeout))
		if err != nil {
			return nil, errors.Wrap(err, "new http client")
		}
		v.httpcli = cli
	}

	for i := range v.sites {
		v.sites[i].Secret = strings.TrimSpace(v.sites[i].Secret)
		v.sites[i].Hosts = normalizeHostList(v.sites[i].Hosts)
	}

	return v, nil
}

// NewFromConfig reads `settings.web.turnstile.secret_key` and `settings.web.sites.*`
func NewFromConfig(opts ...Option) (*Verifier, error) {
	rawSites := gconfig.Shared.GetStringMap("settings.web.sites")
	keys := make([]string, 0, len(rawSites))
	for key := range rawSites {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	sites := make([]Site, 0, len(keys))
	for _, key := range keys {
		base := "settings.web.sites." + key
		hosts := gconfig.Shared.GetStringSlice(base + ".hosts")
		if h := gconfig.Shared.GetString(base + ".host"); h != "" {
			hosts = append(hosts, h)
		}

		sites = append(sites, Site{
			Name:    key,
			Hosts:   hosts,
			Default: gconfig.Shared.GetBool(base + ".default"),
			Secret:  gconfig.Shared.GetString(base + ".turnstile_secret_key"),
		})
	}

	return New(gconfig.Shared.GetString("settings.web.turnstile.secret_key"), sites, opts...)
}

// Enabled reports whether any secret is configured
func (v *Verifier) Enabled() bool {
	if v.globalSecret != "" {
		return true
	}
	for _, s := range v.sites {
		if s.Secret != "" {
			return true
		}
	}

	return false
}

// secretFor picks the secret of the site whose hosts match, then the
// default site, then the global secret.
func (v *Verifier) secretFor(host string) string {
	defaultSecret := ""
	for _, s := range v.sites {
		if s.Secret == "" {
			continue
		}

		if defaultSecret == "" && s.Default {
			defaultSecret = s.Secret
		}

		if host == "" {
			continue
		}
		for _, h := range s.Hosts {
			if h == host {
				return s.Secret
			}
		}
	}

	if defaultSecret != "" {
		return defaultSecret
	}

	return v.globalSecret
}

// Verify checks token for the current request. ctx should carry the gin context
// so the request host and client ip can be resolved.
func (v *Verifier) Verify(ctx context.Context, token string) error {
	secret := v.secretFor(requestHost(ctx))
	if secret == "" {
		return nil
	}

	token = strings.TrimSpace(token)
	if err := library.ValidateInputLength(tokenLengthLimit, token); err != nil {
		return errors.Wrap(err, "validate turnstile token length")
	}
	if token == "" {
		return ErrTokenRequired
	}

	return errors.Wrap(v.verify(ctx, secret, token, clientIP(ctx)), "verify turnstile token")
}

type verifyResult struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *Verifier) verify(ctx context.Context, secret, token, remoteIP string) error {
	form := url.Values{}
	form.Set("secret", secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "create turnstile verify request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpcli.Do(req)
	if err != nil {
		return errors.Wrap(err, "request turnstile verify endpoint")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("turnstile verify endpoint returned status %d", resp.StatusCode)
	}

	var result verifyResult
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.Wrap(err, "decode turnstile verify response")
	}

	if !result.Success {
		return errors.Errorf("turnstile verification rejected: %s", strings.Join(result.ErrorCodes, ","))
	}

	return nil
}

func ginCtx(ctx context.Context) (*gin.Context, bool) {
	if gctx, ok := ctx.(*gin.Context); ok {
		return gctx, gctx != nil
	}

	gctx, ok := gmw.GetGinCtxFromStdCtx(ctx)
	return gctx, ok && gctx != nil
}

func requestHost(ctx context.Context) string {
	gctx, ok := ginCtx(ctx)
	if !ok || gctx.Request == nil {
		return ""
	}

	if forwarded := strings.TrimSpace(gctx.Request.Header.Get("X-Forwarded-Host")); forwarded != "" {
		return normalizeHost(strings.Split(forwarded, ",")[0])
	}

	return normalizeHost(gctx.Request.Host)
}

func clientIP(ctx context.Context) string {
	gctx, ok := ginCtx(ctx)
	if !ok || gctx.Request == nil {
		return ""
	}

	parsed := net.ParseIP(strings.TrimSpace(gctx.ClientIP()))
	if parsed == nil {
		return ""
	}

	return parsed.String()
}

func normalizeHostList(hosts []string) []string {
	result := make([]string, 0, len(hosts))
	for _, host := range hosts {
		if h := normalizeHost(host); h != "" {
			result = append(result, h)
		}
	}

	return result
}

// normalizeHost lowercases and drops the port and trailing dot
func normalizeHost(rawHost string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(strings.ToLower(rawHost)), ".")
	if trimmed == "" {
		return ""
	}

	if host, _, err := net.SplitHostPort(trimmed); err == nil {
		return strings.TrimSuffix(host, ".")
	}

	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		return strings.Trim(trimmed, "[]")
	}

	return trimmed
}
