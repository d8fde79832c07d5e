package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/genai"
)

type fakeModels struct {
	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
	text        string
	err         error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContents = contents
	f.gotConfig = config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}}},
		},
	}, nil
}

func TestGemini_Generate(t *testing.T) {
	t.Run("画像・システム指示・JSONモードがリクエストに反映されること", func(t *testing.T) {
		fake := &fakeModels{text: `{"isConsistent": true}`}
		g := &Gemini{models: fake, model: "vision-model"}

		out, err := g.Generate(context.Background(), Request{
			System:      "judge",
			Prompt:      "compare",
			Temperature: 0.2,
			JSON:        true,
			Images:      []Image{{Data: []byte{1, 2}, MimeType: "image/png"}, {Data: nil}},
		})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if out != `{"isConsistent": true}` {
			t.Errorf("応答が一致しません: %s", out)
		}
		if fake.gotModel != "vision-model" {
			t.Errorf("期待値 vision-model, 実際の値 %s", fake.gotModel)
		}
		if len(fake.gotContents) != 1 || len(fake.gotContents[0].Parts) != 2 {
			t.Fatalf("空の画像を除いた画像1枚とテキスト1つが送られるべきです")
		}
		if fake.gotConfig.ResponseMIMEType != jsonMIMEType {
			t.Errorf("JSONモードが設定されていません")
		}
		if fake.gotConfig.SystemInstruction == nil || fake.gotConfig.Temperature == nil {
			t.Errorf("システム指示または温度が設定されていません")
		}
	})

	t.Run("空の応答はエラーになること", func(t *testing.T) {
		g := &Gemini{models: &fakeModels{text: "   "}, model: "m"}
		if _, err := g.Generate(context.Background(), Request{Prompt: "x"}); !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("期待値 ErrEmptyResponse, 実際の値 %v", err)
		}
	})
}

func TestWithTimeout(t *testing.T) {
	t.Run("呼び出しごとに期限が設定されること", func(t *testing.T) {
		var deadlineSet bool
		inner := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
			_, deadlineSet = ctx.Deadline()
			return "ok", nil
		})
		if _, err := WithTimeout(inner, time.Second).Generate(context.Background(), Request{}); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if !deadlineSet {
			t.Error("期限が設定されていません")
		}
	})

	t.Run("応答しない呼び出しはタイムアウトで打ち切られること", func(t *testing.T) {
		inner := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		_, err := WithTimeout(inner, 10*time.Millisecond).Generate(context.Background(), Request{})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("期待値 DeadlineExceeded, 実際の値 %v", err)
		}
	})

	t.Run("0以下なら元のGeneratorを返すこと", func(t *testing.T) {
		inner := GeneratorFunc(func(ctx context.Context, req Request) (string, error) { return "", nil })
		if _, ok := WithTimeout(inner, 0).(GeneratorFunc); !ok {
			t.Error("ラップされるべきではありません")
		}
	})
}
