package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The provider speaks two generation shapes: a structured "responses"
// endpoint and a legacy chat-completions endpoint. Each shape gets its
// own decoder; the caller knows which endpoint it hit, so the result
// is a single tagged value rather than optional-chained field probing.

// generation is the decoded outcome of either text endpoint.
type generation struct {
	Text   string
	Tokens int
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// responsesRequest is the primary structured-generation call shape.
type responsesRequest struct {
	Model           string  `json:"model"`
	Input           string  `json:"input"`
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
}

type responsesOutputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesOutputItem struct {
	Type    string                   `json:"type"`
	Content []responsesOutputContent `json:"content"`
}

type responsesResponse struct {
	OutputText string                `json:"output_text,omitempty"`
	Output     []responsesOutputItem `json:"output,omitempty"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *apiErrorBody `json:"error,omitempty"`
}

// decodeResponses extracts text from a structured-endpoint body. The
// output may arrive as a flat output_text field or nested inside an
// output array; both are handled explicitly.
func decodeResponses(body []byte) (*generation, error) {
	var resp responsesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("api error: %s", resp.Error.Message)
	}

	text := resp.OutputText
	if text == "" {
		for _, item := range resp.Output {
			if item.Type != "message" && item.Type != "" {
				continue
			}
			for _, content := range item.Content {
				if content.Type == "output_text" || content.Type == "text" {
					text = content.Text
					break
				}
			}
			if text != "" {
				break
			}
		}
	}

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = resp.Usage.InputTokens + resp.Usage.OutputTokens
	}

	return &generation{Text: text, Tokens: tokens}, nil
}

// chatMessage is a single message in the legacy chat-completion shape.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	chatRoleSystem = "system"
	chatRoleUser   = "user"
)

// chatRequest is the legacy chat-completion call shape.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Index   int         `json:"index"`
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *apiErrorBody `json:"error,omitempty"`
}

// decodeChat extracts text from a legacy chat-completion body.
func decodeChat(body []byte) (*generation, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("api error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	return &generation{
		Text:   resp.Choices[0].Message.Content,
		Tokens: resp.Usage.TotalTokens,
	}, nil
}

// imageRequest is the image-generation call shape.
type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url,omitempty"`
		B64JSON string `json:"b64_json,omitempty"`
	} `json:"data"`
	Error *apiErrorBody `json:"error,omitempty"`
}

// decodeImage extracts a displayable image reference: a direct URL
// when the provider returned one, else a data URI from the base64
// payload.
func decodeImage(body []byte) (string, error) {
	var resp imageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("api error: %s", resp.Error.Message)
	}

	if len(resp.Data) == 0 {
		return "", ErrEmptyResponse
	}
	if resp.Data[0].URL != "" {
		return resp.Data[0].URL, nil
	}
	if resp.Data[0].B64JSON != "" {
		return "data:image/png;base64," + resp.Data[0].B64JSON, nil
	}
	return "", ErrEmptyResponse
}
