// Package llm はテキスト生成サービスを使った記事分類とトレンド要約を提供する。
package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrDisabled はAPIキー未設定で生成が無効化されていることを示す。
var ErrDisabled = errors.New("text generation is disabled: GEMINI_API_KEY is not set")

// TextGenerator はプロンプトからテキストを生成するインターフェース。
type TextGenerator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// GeminiGenerator はGoogle Gemini APIを使うTextGenerator実装。
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator はAPIキーからGeminiGeneratorを生成する。
func NewGeminiGenerator(ctx context.Context, apiKey string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrDisabled
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGenerator{client: client}, nil
}

// GenerateText は指定モデルでJSON形式の応答を要求し、本文テキストを返す。
func (g *GeminiGenerator) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content with %s: %w", model, err)
	}
	return resp.Text(), nil
}

// DisabledGenerator は常にErrDisabledを返すTextGenerator。
// APIキー未設定でもサーバーを起動できるようにするために使う。
type DisabledGenerator struct{}

// GenerateText は常にErrDisabledを返す。
func (DisabledGenerator) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	return "", ErrDisabled
}
