package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const jsonMIMEType = "application/json"

// contentGenerator は genai.Models のうち利用するメソッドだけを切り出したものです。
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini は Gemini API によるテキスト生成・ビジョン判定のアダプタです。
type Gemini struct {
	models contentGenerator
	model  string
}

// NewGemini は APIキーから genai クライアントを初期化します。
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai クライアントの初期化に失敗しました: %w", err)
	}
	return &Gemini{models: client.Models, model: model}, nil
}

// NewGeminiFromClient は既存の genai クライアントを別モデルで共有します。
func NewGeminiFromClient(client *genai.Client, model string) *Gemini {
	return &Gemini{models: client.Models, model: model}
}

// Generate はシステム指示・プロンプト・画像を1リクエストにまとめて送信します。
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		if len(img.Data) == 0 {
			continue
		}
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MimeType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.JSON {
		cfg.ResponseMIMEType = jsonMIMEType
	}

	resp, err := g.models.GenerateContent(ctx, g.model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini (%s) の呼び出しに失敗しました: %w", g.model, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
