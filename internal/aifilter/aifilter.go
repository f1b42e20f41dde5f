// Package aifilter 是候选记录入库前的分类闸门：
// 调用本地 LLM 判断内容是否是真实的机会（而不是提问/讨论/自我推销），
// 分类器不可用时按配置走 fail-closed 或关键词兜底。
package aifilter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Verdict 三态分类结果
type Verdict int

const (
	VerdictReject Verdict = iota
	VerdictAccept
	// VerdictIndeterminate 仅在分类端点不可达或响应不可解析时出现，
	// 不是异常，由上层按策略处理
	VerdictIndeterminate
)

// Result 一次分类调用的结果
type Result struct {
	Verdict    Verdict
	Confidence float64 // [0,1]
	Reasoning  string
	Err        error // 仅 indeterminate 时携带原因
}

const ollamaMaxResponseBytes = 1 << 20 // 1MB

// Client 调用 Ollama /api/generate 的最小客户端：
// 单次请求/响应，stream=false，超时独立配置（模型冷启动慢）
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate 发送 prompt 并返回模型的完整文本输出
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("aifilter: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("aifilter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("aifilter: call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("aifilter: ollama status %d", resp.StatusCode)
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, ollamaMaxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("aifilter: decode ollama response: %w", err)
	}
	if out.Response == "" {
		return "", fmt.Errorf("aifilter: empty response from ollama")
	}
	return out.Response, nil
}

// buildPrompt 组装分类 prompt；描述在 fetcher 侧已截断到 500 字符，
// 这里再做一次保护以防调用方没走规范化路径
func buildPrompt(title, description, source string) string {
	const maxDescLen = 500
	if rs := []rune(description); len(rs) > maxDescLen {
		description = string(rs[:maxDescLen]) + "..."
	}

	return fmt.Sprintf(`You are a content classifier for a job/opportunity aggregation platform. Your task is to determine if a post is an ACTUAL OPPORTUNITY (job posting, internship offer, workshop announcement, etc.) or NOT an opportunity (question, discussion, request for help, etc.).

CLASSIFICATION RULES:
- ACTUAL OPPORTUNITY: Posts that are offering or announcing a job, internship, workshop, conference, competition, or similar opportunity that someone can apply to or participate in.
- NOT AN OPPORTUNITY: Questions about opportunities, discussions, requests for advice, people looking for work, general conversations, or any content that is NOT offering an actual opportunity.

EXAMPLES:

OPPORTUNITY (classify as true):
- "[Hiring] Software Engineer at Google - Remote position available. Apply at..."
- "Summer Internship Program 2024 - We're looking for interns in..."
- "Free Python Workshop Next Saturday - Learn web development..."
- "Tech Conference 2024 - Early bird tickets available now..."

NOT AN OPPORTUNITY (classify as false):
- "How do I find an internship? Looking for advice"
- "What's the best way to prepare for job interviews?"
- "Has anyone here done an internship at Google?"
- "Looking for internship opportunities, any suggestions?"

SOURCE: %s
TITLE: %s
DESCRIPTION: %s

Analyze the content above and classify it. Respond ONLY with a valid JSON object in this exact format:
{
    "is_opportunity": true or false,
    "confidence": 0.0 to 1.0,
    "reasoning": "brief explanation of your classification"
}

CRITICAL RULES - BE STRICT:
- Questions (how, what, where, when, why, any?) = ALWAYS false
- Seeking advice, recommendations, or tips = ALWAYS false
- Discussions about opportunities (not offering one) = ALWAYS false
- "Looking for" from a job seeker (not employer) = ALWAYS false
- Only classify true if the post is EXPLICITLY offering a real opportunity.
- When in doubt, classify as false to avoid false positives.
`, source, title, description)
}

var (
	isOppPattern      = regexp.MustCompile(`(?i)"is_opportunity"\s*:\s*(true|false)`)
	confidencePattern = regexp.MustCompile(`"confidence"\s*:\s*([\d.]+)`)
	reasoningPattern  = regexp.MustCompile(`"reasoning"\s*:\s*"([^"]*)"`)
	jsonObjectPattern = regexp.MustCompile(`\{[^{}]*"is_opportunity"[^{}]*\}`)
)

// parseResponse 防御式解析模型输出。模型经常在 JSON 周围夹带废话，
// 所以先用宽松的模式匹配定位 is_opportunity，再退回完整 JSON 解析，
// 都认不出来时按低置信度拒绝（避免误放行）。
func parseResponse(text string) Result {
	if m := isOppPattern.FindStringSubmatch(text); m != nil {
		verdict := VerdictReject
		if strings.EqualFold(m[1], "true") {
			verdict = VerdictAccept
		}

		confidence := 0.5
		if cm := confidencePattern.FindStringSubmatch(text); cm != nil {
			if f, err := strconv.ParseFloat(cm[1], 64); err == nil {
				confidence = clamp01(f)
			}
		}

		reasoning := "Parsed from response"
		if rm := reasoningPattern.FindStringSubmatch(text); rm != nil {
			reasoning = rm[1]
		}

		return Result{Verdict: verdict, Confidence: confidence, Reasoning: reasoning}
	}

	if m := jsonObjectPattern.FindString(text); m != "" {
		var parsed struct {
			IsOpportunity bool    `json:"is_opportunity"`
			Confidence    float64 `json:"confidence"`
			Reasoning     string  `json:"reasoning"`
		}
		if err := json.Unmarshal([]byte(m), &parsed); err == nil {
			verdict := VerdictReject
			if parsed.IsOpportunity {
				verdict = VerdictAccept
			}
			reasoning := parsed.Reasoning
			if reasoning == "" {
				reasoning = "No reasoning provided"
			}
			return Result{Verdict: verdict, Confidence: clamp01(parsed.Confidence), Reasoning: reasoning}
		}
	}

	snippet := text
	if len(snippet) > 100 {
		snippet = snippet[:100]
	}
	return Result{
		Verdict:    VerdictReject,
		Confidence: 0.3,
		Reasoning:  "Parse failed, rejecting to avoid false positive: " + snippet,
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
