package llm

import (
	"context"
)

// generateImage runs one image-generation call. Unlike text, there is
// no fallback endpoint; a failure here is reported as-is and the
// caller decides whether to re-prompt.
func (c *Client) generateImage(ctx context.Context, prompt string) (string, error) {
	token, err := c.credential(ctx)
	if err != nil {
		return "", err
	}

	res, err := c.post(ctx, imagesPath, token, imageRequest{
		Model:   c.imageModel,
		Prompt:  prompt,
		Size:    c.imageSize,
		Quality: "standard",
	})
	if err != nil {
		return "", err
	}
	if err := c.checkStatus(categoryImage, res); err != nil {
		return "", err
	}

	ref, err := decodeImage(res.body)
	if err != nil {
		return "", err
	}
	c.noteSuccess(categoryImage)
	return ref, nil
}
