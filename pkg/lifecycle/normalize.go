package lifecycle

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/goliatone/go-myimpact/pkg/model"
)

var errMalformed = errors.New("lifecycle: response matches no known shape")

type namedShape struct {
	Framework   *string `json:"framework"`
	UserContext *string `json:"user_context"`
}

type pairShape struct {
	Prompts []json.RawMessage `json:"prompts"`
}

// Normalize converts either wire shape of a generate response into the
// canonical result. The named shape is tried first.
func Normalize(raw []byte) (model.GenerationResult, error) {
	if res, ok := decodeNamed(raw); ok {
		return res, nil
	}
	if res, ok := decodePair(raw); ok {
		return res, nil
	}
	return model.GenerationResult{}, &ErrorInfo{
		Kind:    MalformedResponse,
		Message: MalformedMessage,
		Err:     errMalformed,
	}
}

func decodeNamed(raw []byte) (model.GenerationResult, bool) {
	var named namedShape
	if err := json.Unmarshal(raw, &named); err != nil {
		return model.GenerationResult{}, false
	}
	if named.Framework == nil || named.UserContext == nil {
		return model.GenerationResult{}, false
	}
	return model.GenerationResult{
		FrameworkText: *named.Framework,
		ContextText:   *named.UserContext,
		Shape:         model.ShapeNamed,
	}, true
}

func decodePair(raw []byte) (model.GenerationResult, bool) {
	var pair pairShape
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair.Prompts) != 2 {
		return model.GenerationResult{}, false
	}
	framework, ok := decodeText(pair.Prompts[0])
	if !ok {
		return model.GenerationResult{}, false
	}
	userContext, ok := decodeText(pair.Prompts[1])
	if !ok {
		return model.GenerationResult{}, false
	}
	return model.GenerationResult{
		FrameworkText: framework,
		ContextText:   userContext,
		Shape:         model.ShapePair,
	}, true
}

// decodeText accepts only JSON strings; null and other scalars are rejected.
func decodeText(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return "", false
	}
	return text, true
}
