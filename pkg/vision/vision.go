// Package vision is the optional ground-truth evaluator for critical
// spots. It sits outside the scoring pipeline behind a one-method
// interface: callers invoke it per spot after the spot list exists, and
// its failure never touches the scores already produced.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/canopy-cli/internal/model"
)

// Evaluator judges planting conditions at a single coordinate.
type Evaluator interface {
	EvaluateSpot(ctx context.Context, lat, lng float64) (*model.SpotContext, error)
}

// Client implements Evaluator against the Anthropic API.
type Client struct {
	client sdk.Client
	model  string
}

// New builds a vision client. The key must be non-empty; callers that
// have no key simply skip evaluation.
func New(apiKey, modelID string) *Client {
	return &Client{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  modelID,
	}
}

const systemPrompt = `You assess urban tree planting sites. Given a coordinate,
describe the likely ground conditions from your knowledge of the area.
Respond with only a JSON object with these string or integer fields:
tree_count, mature_trees, planting_feasibility, obstacles, sidewalk_space,
sunlight_exposure, notes.`

// EvaluateSpot asks the model to judge the site at (lat, lng).
func (c *Client) EvaluateSpot(ctx context.Context, lat, lng float64) (*model.SpotContext, error) {
	prompt := fmt.Sprintf("Evaluate the tree planting site at latitude %.6f, longitude %.6f.", lat, lng)

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: 1024,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	})
	if err != nil {
		return nil, eris.Wrap(err, "vision: evaluate spot")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		text.WriteString(block.Text)
	}

	spot, err := parseContext(text.String())
	if err != nil {
		return nil, err
	}

	zap.L().Debug("spot evaluated",
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
		zap.String("feasibility", spot.Feasibility),
	)
	return spot, nil
}

// parseContext extracts the JSON object from the model's reply, which
// may be wrapped in prose or a code fence.
func parseContext(text string) (*model.SpotContext, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("vision: no JSON object in reply: %.80s", text)
	}

	var spot model.SpotContext
	if err := json.Unmarshal([]byte(text[start:end+1]), &spot); err != nil {
		return nil, eris.Wrap(err, "vision: parse reply")
	}
	return &spot, nil
}
