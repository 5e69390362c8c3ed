package translate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/bloomdesk/catalogkit/config"
)

func testProvider(t *testing.T, id string, handler http.HandlerFunc) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	prov, err := Resolve(Provider{ID: id, BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return NewHTTPProvider(prov, Options{MaxRetries: 2, Backoff: time.Millisecond, Logger: zerolog.Nop()})
}

// ---------------------------------------------------------------------------
// Placeholder
// ---------------------------------------------------------------------------

func TestPlaceholder(t *testing.T) {
	got, err := Placeholder{}.Translate(context.Background(), "Opslaan", "en")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if got != "[EN] Opslaan" {
		t.Errorf("got %q, want [EN] Opslaan", got)
	}
}

// ---------------------------------------------------------------------------
// extractResponseText
// ---------------------------------------------------------------------------

func TestExtractResponseText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"openai chat", `{"choices":[{"message":{"role":"assistant","content":"Save"}}]}`, "Save"},
		{"gemini", `{"candidates":[{"content":{"parts":[{"text":"Kaydet"}]}}]}`, "Kaydet"},
		{"anthropic", `{"content":[{"type":"tool_use"},{"type":"text","text":"Salvează"}]}`, "Salvează"},
		{"responses", `{"output":[{"type":"reasoning"},{"type":"message","content":[{"type":"output_text","text":"Save"}]}]}`, "Save"},
		{"simple", `{"response":"Save"}`, "Save"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractResponseText([]byte(tc.body))
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractResponseText_Errors(t *testing.T) {
	for _, body := range []string{
		`{"error":{"message":"invalid api key"}}`,
		`{"error":"boom"}`,
		`not json`,
		`{"unexpected":true}`,
	} {
		if _, err := extractResponseText([]byte(body)); err == nil {
			t.Errorf("extractResponseText(%s) succeeded, want error", body)
		}
	}
}

// ---------------------------------------------------------------------------
// parseRetryDelay
// ---------------------------------------------------------------------------

func TestParseRetryDelay(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	if got := parseRetryDelay(h, nil); got != 7*time.Second {
		t.Errorf("header delay = %v, want 7s", got)
	}

	body := []byte(`{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"30s"}]}}`)
	if got := parseRetryDelay(http.Header{}, body); got != 35*time.Second {
		t.Errorf("RetryInfo delay = %v, want 35s", got)
	}

	if got := parseRetryDelay(http.Header{}, []byte(`{}`)); got != 65*time.Second {
		t.Errorf("default delay = %v, want 65s", got)
	}
}

// ---------------------------------------------------------------------------
// HTTPProvider
// ---------------------------------------------------------------------------

func TestHTTPProvider_OpenAIRequestAndSanitizedResponse(t *testing.T) {
	p := testProvider(t, ProviderOpenAI, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if got := gjson.GetBytes(body, "messages.1.content").String(); got != "Opslaan en sluiten" {
			t.Errorf("user message = %q", got)
		}
		if sys := gjson.GetBytes(body, "messages.0.content").String(); !strings.Contains(sys, "into English") {
			t.Errorf("system prompt does not name the target language: %q", sys)
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"\"<b>Save</b> &amp; close<script>alert(1)</script>\""}}]}`)
	})

	got, err := p.Translate(context.Background(), "Opslaan en sluiten", "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Save & close" {
		t.Errorf("got %q, want %q", got, "Save & close")
	}
}

func TestHTTPProvider_GeminiEndpoint(t *testing.T) {
	p := testProvider(t, ProviderGoogle, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("x-goog-api-key = %q", got)
		}
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Kaydet"}]}}]}`)
	})

	got, err := p.Translate(context.Background(), "Opslaan", "tr")
	if err != nil || got != "Kaydet" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
}

func TestHTTPProvider_RetriesServerErrors(t *testing.T) {
	var calls int32
	p := testProvider(t, ProviderOpenAI, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"Save"}}]}`)
	})

	got, err := p.Translate(context.Background(), "Opslaan", "en")
	if err != nil || got != "Save" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestHTTPProvider_WaitsOutRateLimit(t *testing.T) {
	var calls int32
	p := testProvider(t, ProviderOpenAI, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"Save"}}]}`)
	})

	got, err := p.Translate(context.Background(), "Opslaan", "en")
	if err != nil || got != "Save" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestHTTPProvider_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	p := testProvider(t, ProviderOpenAI, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"bad model"}}`)
	})

	if _, err := p.Translate(context.Background(), "Opslaan", "en"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestHTTPProvider_EmptyTranslationFails(t *testing.T) {
	p := testProvider(t, ProviderOpenAI, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"<p></p>"}}]}`)
	})
	if _, err := p.Translate(context.Background(), "Opslaan", "en"); err == nil {
		t.Fatal("expected error for empty translation")
	}
}

func TestClean(t *testing.T) {
	p := NewHTTPProvider(Provider{ID: ProviderOpenAI}, Options{})
	cases := map[string]string{
		"```\nSave\n```":  "Save",
		"“Opslaan”":       "Opslaan",
		"  'Save'  ":      "Save",
		"Tom &amp; Jerry": "Tom & Jerry",
		"<i>Save</i>":     "Save",
	}
	for in, want := range cases {
		if got := p.clean(in); got != want {
			t.Errorf("clean(%q) = %q, want %q", in, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	svc, err := New(Provider{}, Options{})
	if err != nil {
		t.Fatalf("New(empty): %v", err)
	}
	if _, ok := svc.(Placeholder); !ok {
		t.Fatalf("New(empty) = %T, want Placeholder", svc)
	}

	if _, err := New(Provider{ID: ProviderOpenAI}, Options{}); err == nil {
		t.Error("openai without API key should fail")
	}
	if _, err := New(Provider{ID: "nope"}, Options{}); err == nil {
		t.Error("unknown provider without base URL should fail")
	}

	svc, err = New(Provider{ID: ProviderOllama}, Options{})
	if err != nil {
		t.Fatalf("New(ollama): %v", err)
	}
	hp, ok := svc.(*HTTPProvider)
	if !ok || hp.Name() != "Ollama" {
		t.Fatalf("New(ollama) = %#v", svc)
	}
}

func TestNewFromConfig(t *testing.T) {
	svc, err := NewFromConfig(config.Translation{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFromConfig(default): %v", err)
	}
	if _, ok := svc.(Placeholder); !ok {
		t.Fatalf("default provider = %T, want Placeholder", svc)
	}

	svc, err = NewFromConfig(config.Translation{Provider: ProviderGroq, APIKey: "k", Model: "m"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFromConfig(groq): %v", err)
	}
	hp := svc.(*HTTPProvider)
	if hp.prov.Model != "m" || hp.prov.BaseURL != "https://api.groq.com/openai/v1" {
		t.Fatalf("resolved provider = %+v", hp.prov)
	}
}
