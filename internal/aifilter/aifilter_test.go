package aifilter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CampusClimb/OpportunityHub/internal/collector"
	"github.com/CampusClimb/OpportunityHub/internal/config"
)

func TestParseResponseTolerantMatch(t *testing.T) {
	// 模型在 JSON 前后夹带废话时也要能解析
	text := `Sure! Here is my answer:
{"is_opportunity": true, "confidence": 0.92, "reasoning": "explicit hiring post"}
Hope that helps.`

	res := parseResponse(text)
	if res.Verdict != VerdictAccept {
		t.Fatalf("Verdict = %v, want accept", res.Verdict)
	}
	if res.Confidence != 0.92 {
		t.Fatalf("Confidence = %v, want 0.92", res.Confidence)
	}
	if res.Reasoning != "explicit hiring post" {
		t.Fatalf("Reasoning = %q", res.Reasoning)
	}
}

func TestParseResponseConfidenceClampAndDefaults(t *testing.T) {
	res := parseResponse(`"is_opportunity": false, "confidence": 7.5`)
	if res.Verdict != VerdictReject {
		t.Fatalf("Verdict = %v, want reject", res.Verdict)
	}
	if res.Confidence != 1 {
		t.Fatalf("Confidence should clamp to 1, got %v", res.Confidence)
	}

	// 缺 confidence 时默认 0.5
	res = parseResponse(`{"is_opportunity": true}`)
	if res.Confidence != 0.5 {
		t.Fatalf("default confidence = %v, want 0.5", res.Confidence)
	}
}

func TestParseResponseUnrecognizedRejects(t *testing.T) {
	res := parseResponse("I am not sure what you mean.")
	if res.Verdict != VerdictReject {
		t.Fatalf("unrecognized output should reject, got %v", res.Verdict)
	}
	if res.Confidence != 0.3 {
		t.Fatalf("Confidence = %v, want 0.3", res.Confidence)
	}
}

func TestFallbackAdmitRules(t *testing.T) {
	cases := []struct {
		title, desc string
		want        bool
	}{
		// 疑问句开头、无招聘用语 → 拒绝
		{"How do I get an internship?", "looking for advice", false},
		{"Any tips for job interviews?", "", false},
		// 求建议贴 → 拒绝
		{"Need resume advice", "any suggestions welcome", false},
		// 自我推销 → 拒绝
		{"[For Hire] Full-stack developer", "10 years experience", false},
		// 带 [hiring] 标签的放行
		{"[Hiring] Backend Engineer", "remote, apply now", true},
		{"We are hiring a data analyst", "", true},
		// 没有任何强招聘用语 → 拒绝
		{"Interesting article about tech careers", "", false},
		// 活动类强词
		{"Free Python Workshop Next Saturday", "beginners welcome", true},
	}
	for _, c := range cases {
		if got := fallbackAdmit(c.title, c.desc); got != c.want {
			t.Fatalf("fallbackAdmit(%q) = %v, want %v", c.title, got, c.want)
		}
	}
}

// fakeClassifier 注入固定输出或错误
type fakeClassifier struct {
	text string
	err  error
}

func (f *fakeClassifier) Generate(ctx context.Context, prompt string) (string, error) {
	return f.text, f.err
}

func baseFilterConfig() config.AIFilterConfig {
	return config.AIFilterConfig{
		Enabled:       true,
		MinConfidence: 0.7,
		RejectOnError: true,
	}
}

func TestShouldAdmitFailClosedOnClassifierError(t *testing.T) {
	f := NewWithClassifier(baseFilterConfig(), &fakeClassifier{err: errors.New("timeout")})

	admitted, res := f.ShouldAdmit(context.Background(), &collector.Candidate{
		Title: "[Hiring] Backend Engineer", Source: "reddit_jobbit",
	})
	if admitted {
		t.Fatalf("classifier error with RejectOnError=true must reject")
	}
	if res.Verdict != VerdictIndeterminate || res.Err == nil {
		t.Fatalf("expected indeterminate with error, got %+v", res)
	}
}

func TestShouldAdmitKeywordFallbackWhenConfigured(t *testing.T) {
	cfg := baseFilterConfig()
	cfg.RejectOnError = false
	f := NewWithClassifier(cfg, &fakeClassifier{err: errors.New("connection refused")})

	admitted, _ := f.ShouldAdmit(context.Background(), &collector.Candidate{
		Title: "[Hiring] Backend Engineer", Source: "reddit_jobbit",
	})
	if !admitted {
		t.Fatalf("fallback should admit explicit hiring post")
	}

	admitted, _ = f.ShouldAdmit(context.Background(), &collector.Candidate{
		Title: "How do I get an internship?", Description: "looking for advice", Source: "reddit_internships",
	})
	if admitted {
		t.Fatalf("fallback should reject advice-seeking question")
	}
}

func TestShouldAdmitConfidenceFloor(t *testing.T) {
	f := NewWithClassifier(baseFilterConfig(), &fakeClassifier{
		text: `{"is_opportunity": true, "confidence": 0.5, "reasoning": "maybe"}`,
	})

	admitted, res := f.ShouldAdmit(context.Background(), &collector.Candidate{
		Title: "Backend Engineer", Source: "reddit_jobbit",
	})
	if admitted {
		t.Fatalf("low-confidence accept must be rejected (0.5 < 0.7)")
	}
	if res.Verdict != VerdictReject {
		t.Fatalf("Verdict = %v, want reject", res.Verdict)
	}
}

func TestShouldAdmitTrustedSourceBypass(t *testing.T) {
	cfg := baseFilterConfig()
	cfg.SkipSources = []string{"graphql_jobs"}
	// 分类器一定会拒绝，但跳过名单上的源不应调用它
	f := NewWithClassifier(cfg, &fakeClassifier{
		text: `{"is_opportunity": false, "confidence": 0.99, "reasoning": "no"}`,
	})

	admitted, _ := f.ShouldAdmit(context.Background(), &collector.Candidate{
		Title: "Senior Engineer", Source: "graphql_jobs",
	})
	if !admitted {
		t.Fatalf("skip-list source must be admitted unconditionally")
	}
}

func TestShouldAdmitDisabledEscapeHatch(t *testing.T) {
	cfg := baseFilterConfig()
	cfg.Enabled = false
	f := NewWithClassifier(cfg, &fakeClassifier{err: errors.New("should not be called")})

	admitted, _ := f.ShouldAdmit(context.Background(), &collector.Candidate{
		Title: "How do I get an internship?", Description: "looking for advice", Source: "reddit_internships",
	})
	if !admitted {
		t.Fatalf("disabled filter must admit unconditionally")
	}
}

func TestShouldAdmitEmptyTitleRejects(t *testing.T) {
	f := NewWithClassifier(baseFilterConfig(), &fakeClassifier{
		text: `{"is_opportunity": true, "confidence": 0.99}`,
	})
	admitted, _ := f.ShouldAdmit(context.Background(), &collector.Candidate{Source: "reddit_jobbit"})
	if admitted {
		t.Fatalf("empty title must be rejected before classification")
	}
}

func TestClientGenerateAgainstFakeEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response": "{\"is_opportunity\": true, \"confidence\": 0.9}"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "llama2", 5*time.Second)
	text, err := c.Generate(context.Background(), "classify this")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	res := parseResponse(text)
	if res.Verdict != VerdictAccept || res.Confidence != 0.9 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
