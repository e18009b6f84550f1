// Package verify checks the liveness of authority domains and propagates the
// outcome to the external edges that point at them.
package verify

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/marbec/linkmesh/internal/link"
	"github.com/marbec/linkmesh/internal/storage"
)

const (
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultRateLimit caps outbound checks at 2 requests per second so a
	// verification sweep stays polite toward the checked domains.
	DefaultRateLimit = 2.0

	// DefaultUserAgent identifies the verifier unless LM_USER_AGENT is set.
	DefaultUserAgent = "linkmesh-verifier/1.0"

	// maxConcurrent is the bounded semaphore size for parallel domain checks.
	maxConcurrent = 5
)

// Verifier is a rate-limited liveness checker over the domain catalog.
type Verifier struct {
	db         *storage.DB
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	scheme     string
	log        *zap.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(v *Verifier) {
		v.httpClient = hc
	}
}

// WithRateLimit overrides the requests-per-second cap.
func WithRateLimit(rps float64) Option {
	return func(v *Verifier) {
		v.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithUserAgent sets the User-Agent header sent on checks.
func WithUserAgent(ua string) Option {
	return func(v *Verifier) {
		v.userAgent = ua
	}
}

// WithScheme sets the URL scheme used to reach domains (for testing).
func WithScheme(scheme string) Option {
	return func(v *Verifier) {
		v.scheme = scheme
	}
}

// WithLogger sets the logger used during sweeps.
func WithLogger(log *zap.Logger) Option {
	return func(v *Verifier) {
		v.log = log
	}
}

// New creates a verifier over the given store.
func New(db *storage.DB, opts ...Option) *Verifier {
	v := &Verifier{
		db:         db,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		userAgent:  DefaultUserAgent,
		scheme:     "https",
		log:        zap.NewNop(),
	}

	if ua := os.Getenv("LM_USER_AGENT"); ua != "" {
		v.userAgent = ua
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// DomainResult is the outcome of one domain check.
type DomainResult struct {
	Domain string `json:"domain"`
	Alive  bool   `json:"alive"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Report summarizes a verification sweep.
type Report struct {
	Checked int            `json:"checked"`
	Alive   int            `json:"alive"`
	Broken  int            `json:"broken"`
	Results []DomainResult `json:"results"`
}

// checkDomain issues a HEAD request against the domain root. Some servers
// reject HEAD outright, so a 405 falls back to GET.
func (v *Verifier) checkDomain(ctx context.Context, domain string) (int, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	url := v.scheme + "://" + domain + "/"
	status, err := v.request(ctx, http.MethodHead, url)
	if err != nil {
		return 0, err
	}
	if status == http.StatusMethodNotAllowed {
		return v.request(ctx, http.MethodGet, url)
	}
	return status, nil
}

func (v *Verifier) request(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// VerifyDomain checks one domain and records the outcome: the catalog entry's
// failure counter moves, and every external edge pointing at the domain is
// marked active or broken with a fresh verification timestamp.
func (v *Verifier) VerifyDomain(ctx context.Context, domain string) (DomainResult, error) {
	result := DomainResult{Domain: domain}

	status, err := v.checkDomain(ctx, domain)
	result.Status = status
	result.Alive = err == nil && status < 400
	if err != nil {
		result.Error = err.Error()
	}

	if err := v.db.RecordDomainCheck(domain, result.Alive); err != nil {
		return result, err
	}

	edgeStatus := link.VerifyBroken
	if result.Alive {
		edgeStatus = link.VerifyActive
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if err := v.db.MarkExternalEdge(domain, edgeStatus, now); err != nil {
		return result, err
	}

	return result, nil
}

// VerifyAll sweeps the whole domain catalog, inactive entries included: a
// domain deactivated after repeated failures reactivates on the first
// successful check.
func (v *Verifier) VerifyAll(ctx context.Context) (Report, error) {
	domains, err := v.db.ListDomains(false)
	if err != nil {
		return Report{}, err
	}

	results := make([]DomainResult, len(domains))
	errs := make([]error, len(domains))
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrent)

	for i, d := range domains {
		wg.Add(1)
		go func(idx int, domain string) {
			defer wg.Done()
			sem <- struct{}{}        // acquire semaphore
			defer func() { <-sem }() // release semaphore
			results[idx], errs[idx] = v.VerifyDomain(ctx, domain)
		}(i, d.Domain)
	}

	wg.Wait()

	report := Report{Checked: len(domains), Results: results}
	for i, r := range results {
		if errs[i] != nil {
			return report, errs[i]
		}
		if r.Alive {
			report.Alive++
		} else {
			report.Broken++
			v.log.Warn("domain check failed",
				zap.String("domain", r.Domain),
				zap.Int("status", r.Status))
		}
	}

	return report, nil
}
