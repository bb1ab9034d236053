package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedResponseError はモデルの応答が期待するJSONとして解釈できないことを示す。
type MalformedResponseError struct {
	Raw    string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %s", e.Reason)
}

// stripCodeFence は ```json ... ``` で囲まれた応答から中身を取り出す。
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// 言語指定（json など）を行末まで読み飛ばす
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeResponse は応答をJSONオブジェクトとしてvにデコードする。
// オブジェクト以外のペイロードや末尾の余分なデータはエラーとする。
func decodeResponse(raw string, v any) error {
	payload := stripCodeFence(raw)
	if payload == "" {
		return &MalformedResponseError{Raw: raw, Reason: "empty response"}
	}
	if !strings.HasPrefix(payload, "{") {
		return &MalformedResponseError{Raw: raw, Reason: "response is not a JSON object"}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	if err := dec.Decode(v); err != nil {
		return &MalformedResponseError{Raw: raw, Reason: err.Error()}
	}
	if dec.More() {
		return &MalformedResponseError{Raw: raw, Reason: "unexpected data after JSON object"}
	}
	return nil
}
