package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tidwall/gjson"

	"github.com/bloomdesk/catalogkit/langmeta"
)

// DefaultSystemPrompt is sent with every request; {{targetLang}} is replaced
// by the English name of the target locale.
const DefaultSystemPrompt = `You are a professional translator localizing the admin dashboard of a Dutch flower shop.

Translate the user's message from Dutch into {{targetLang}}.

RULES:
- Return ONLY the translated text, without quotes, explanations or markdown.
- Keep placeholders such as {name}, {{count}} and %s exactly as they are.
- Keep brand names, product codes and units unchanged.
- Match the tone of short UI labels: concise, friendly, professional.
- Preserve leading capitalization and trailing punctuation.`

// ---------------------------------------------------------------------------
// Rate limit state (shared pause for concurrent callers)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if end := time.Now().Add(duration); end.After(r.pauseEnd) {
		r.pauseEnd = end
	}
	atomic.StoreInt32(&r.paused, 1)
}

func (r *rateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP provider
// ---------------------------------------------------------------------------

type apiFormat int

const (
	formatOpenAIChat   apiFormat = iota // OpenAI chat/completions
	formatGeminiNative                  // Google Gemini generateContent
)

// HTTPProvider translates through a chat-completion API. It is safe for
// concurrent use; a 429 from one call pauses every caller.
type HTTPProvider struct {
	prov   Provider
	opts   Options
	client *http.Client
	rl     *rateLimitState
	policy *bluemonday.Policy
}

// NewHTTPProvider returns a provider for prov. prov should already be
// completed with Resolve.
func NewHTTPProvider(prov Provider, opts Options) *HTTPProvider {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	return &HTTPProvider{
		prov:   prov,
		opts:   opts,
		client: makeHTTPClient(prov.Proxy, prov.Timeout),
		rl:     &rateLimitState{},
		policy: bluemonday.StrictPolicy(),
	}
}

// Name returns the provider's display name.
func (h *HTTPProvider) Name() string {
	return h.prov.Name
}

// Translate implements Service.
func (h *HTTPProvider) Translate(ctx context.Context, text, locale string) (string, error) {
	system := strings.ReplaceAll(h.opts.SystemPrompt, "{{targetLang}}", langmeta.Resolve(locale).English)
	format := formatOpenAIChat
	if h.prov.ID == ProviderGoogle {
		format = formatGeminiNative
	}

	raw, err := h.call(ctx, system, text, format)
	if err != nil {
		return "", err
	}
	out := h.clean(raw)
	if out == "" {
		return "", fmt.Errorf("%s returned an empty translation", h.prov.Name)
	}
	return out, nil
}

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

func buildOpenAIChatRequest(model, systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	}
	return json.Marshal(req)
}

func buildGeminiRequest(systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		Temperature float64 `json:"temperature"`
	}
	req := struct {
		Contents          []content `json:"contents"`
		GenerationConfig  genConfig `json:"generationConfig"`
		SystemInstruction *content  `json:"systemInstruction,omitempty"`
	}{
		Contents:         []content{{Role: "user", Parts: []part{{Text: userPrompt}}}},
		GenerationConfig: genConfig{Temperature: temperature},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	return json.Marshal(req)
}

// buildHTTPRequest constructs the endpoint, headers, and body for a request.
func (h *HTTPProvider) buildHTTPRequest(systemPrompt, userPrompt string, format apiFormat) (string, map[string]string, []byte, error) {
	headers := map[string]string{"Content-Type": "application/json"}
	baseURL := strings.TrimRight(h.prov.BaseURL, "/")

	var (
		endpoint string
		body     []byte
		err      error
	)
	switch format {
	case formatGeminiNative:
		endpoint = fmt.Sprintf("%s/v1beta/models/%s:generateContent", baseURL, h.prov.Model)
		if h.prov.APIKey != "" {
			headers["x-goog-api-key"] = h.prov.APIKey
		}
		body, err = buildGeminiRequest(systemPrompt, userPrompt, 0.2)
	default:
		endpoint = baseURL
		if !strings.HasSuffix(endpoint, "/chat/completions") {
			endpoint += "/chat/completions"
		}
		if h.prov.APIKey != "" {
			headers["Authorization"] = "Bearer " + h.prov.APIKey
		}
		body, err = buildOpenAIChatRequest(h.prov.Model, systemPrompt, userPrompt, 0.2)
	}
	if err != nil {
		return "", nil, nil, err
	}
	return endpoint, headers, body, nil
}

// call sends one prompt, retrying transport errors and 5xx responses with
// exponential backoff and waiting out 429 responses.
func (h *HTTPProvider) call(ctx context.Context, systemPrompt, userPrompt string, format apiFormat) (string, error) {
	endpoint, headers, body, err := h.buildHTTPRequest(systemPrompt, userPrompt, format)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	maxRetries := h.opts.MaxRetries
	log := h.opts.Logger

	backoff := func(attempt int) error {
		wait := time.Duration(math.Pow(2, float64(attempt))) * h.opts.Backoff
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			return nil
		}
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := h.rl.waitIfPaused(ctx); err != nil {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		log.Debug().Str("provider", h.prov.Name).Int("attempt", attempt+1).Str("endpoint", endpoint).Msg("POST")

		resp, err := h.client.Do(req)
		if err != nil {
			if attempt < maxRetries && ctx.Err() == nil {
				if berr := backoff(attempt); berr != nil {
					return "", berr
				}
				continue
			}
			return "", fmt.Errorf("API request failed: %w", err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			retryDelay := parseRetryDelay(resp.Header, respBody)
			log.Warn().Dur("delay", retryDelay).Int("attempt", attempt+1).Int("max_retries", maxRetries).Msg("rate limited")
			h.rl.pause(retryDelay)
			if attempt < maxRetries {
				if err := h.rl.waitIfPaused(ctx); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("rate limited after %d retries: %s", maxRetries, truncate(string(respBody), 200))
		}

		if resp.StatusCode != http.StatusOK {
			if attempt < maxRetries && resp.StatusCode >= 500 {
				if berr := backoff(attempt); berr != nil {
					return "", berr
				}
				continue
			}
			return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
		}

		return extractResponseText(respBody)
	}

	return "", fmt.Errorf("exhausted all %d retries", maxRetries)
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

// responsePaths are tried in order against the response document.
var responsePaths = []string{
	"choices.0.message.content",                                    // OpenAI chat
	"candidates.0.content.parts.0.text",                            // Gemini
	`content.#(type=="text").text`,                                 // Anthropic messages
	`output.#(type=="message").content.#(type=="output_text").text`, // OpenAI responses
	"response",                                                     // simple
}

// extractResponseText tries all known response formats and returns the text.
func extractResponseText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("invalid JSON response: %s", truncate(string(body), 200))
	}
	doc := gjson.ParseBytes(body)

	if e := doc.Get("error"); e.Exists() {
		if msg := e.Get("message"); msg.Exists() {
			return "", fmt.Errorf("API error: %s", msg.String())
		}
		return "", fmt.Errorf("API error: %s", e.Raw)
	}

	for _, path := range responsePaths {
		if v := doc.Get(path); v.Type == gjson.String {
			return v.String(), nil
		}
	}
	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// parseRetryDelay reads the delay of a 429 response: the Retry-After header,
// then Google's RetryInfo detail, then a 65s default.
func parseRetryDelay(header http.Header, body []byte) time.Duration {
	const defaultDelay = 65 * time.Second

	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}

	delay := defaultDelay
	gjson.GetBytes(body, "error.details").ForEach(func(_, detail gjson.Result) bool {
		fields := detail.Map()
		if !strings.Contains(fields["@type"].String(), "RetryInfo") {
			return true
		}
		d := strings.TrimSuffix(fields["retryDelay"].String(), "s")
		if secs, err := strconv.ParseFloat(d, 64); err == nil {
			delay = time.Duration(secs*1000)*time.Millisecond + 5*time.Second
			return false
		}
		return true
	})
	return delay
}

var markdownCodeBlock = regexp.MustCompile("(?s)^```[a-z]*\\s*(.*?)\\s*```$")

// quotePairs are stripped when they wrap the whole response.
var quotePairs = [][2]string{{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"„", "“"}, {"«", "»"}}

// clean strips code fences and wrapping quotes, then removes any markup so
// the result is plain text.
func (h *HTTPProvider) clean(raw string) string {
	s := strings.TrimSpace(raw)
	if m := markdownCodeBlock.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	for _, q := range quotePairs {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			s = strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
			break
		}
	}
	s = html.UnescapeString(s)
	s = h.policy.Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(s))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
