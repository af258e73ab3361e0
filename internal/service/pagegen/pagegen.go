package pagegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tmc/langchaingo/llms"

	"digitalcart/internal/models"
)

var (
	ErrDisabled    = errors.New("page generation is not configured")
	ErrBadResponse = errors.New("model returned no usable blocks")
)

// BlockTypes are the editor blocks the model may emit. Anything else in the
// response is dropped.
var BlockTypes = []string{"hero", "text", "features", "testimonial", "faq", "cta"}

const maxBlocks = 12

const systemPrompt = `You write sales copy for checkout pages of digital products.
Answer with a single JSON object of the form {"blocks":[{"type":"...","props":{...}}]}.
Allowed block types: %s.
hero props: headline, subheadline. text props: body. features props: items (array of strings).
testimonial props: quote, author. faq props: items (array of {question, answer}). cta props: label.
Do not invent prices, discounts or guarantees. No markdown.`

// Request describes the page to write.
type Request struct {
	Product models.Product
	Title   string
	Brief   string
}

// Generator fills page blocks from a language model. A nil model disables it.
type Generator struct {
	llm llms.Model
}

func NewGenerator(llm llms.Model) *Generator {
	return &Generator{llm: llm}
}

func (g *Generator) Enabled() bool {
	return g != nil && g.llm != nil
}

// Blocks asks the model for page content and returns editor blocks with
// fresh ids.
func (g *Generator) Blocks(ctx context.Context, req Request) ([]models.Block, error) {
	if !g.Enabled() {
		return nil, ErrDisabled
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, fmt.Sprintf(systemPrompt, strings.Join(BlockTypes, ", "))),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt(req)),
	}

	completion, err := g.llm.GenerateContent(ctx, content, llms.WithTemperature(0.7), llms.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("llm.GenerateContent: %w", err)
	}

	var response strings.Builder
	for _, choice := range completion.Choices {
		if choice == nil {
			continue
		}
		response.WriteString(choice.Content)
		if choice.StopReason != "" && choice.StopReason != "stop" {
			log.Println("[PAGEGEN] [WARN] unexpected stop reason:", choice.StopReason)
		}
	}

	return parseBlocks(response.String())
}

func userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\n", req.Product.Name)
	if desc := strings.TrimSpace(req.Product.Description); desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}
	if len(req.Product.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(req.Product.Tags, ", "))
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		fmt.Fprintf(&b, "Page title: %s\n", title)
	}
	if brief := strings.TrimSpace(req.Brief); brief != "" {
		fmt.Fprintf(&b, "Seller notes: %s\n", brief)
	}
	return b.String()
}

type generated struct {
	Blocks []struct {
		Type  string                 `json:"type"`
		Props map[string]interface{} `json:"props"`
	} `json:"blocks"`
}

func parseBlocks(raw string) ([]models.Block, error) {
	raw = strings.TrimSpace(raw)
	// some models wrap JSON in a fence even in JSON mode
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out generated
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	blocks := make([]models.Block, 0, len(out.Blocks))
	for _, b := range out.Blocks {
		kind := strings.ToLower(strings.TrimSpace(b.Type))
		if !lo.Contains(BlockTypes, kind) {
			continue
		}
		props := b.Props
		if props == nil {
			props = map[string]interface{}{}
		}
		blocks = append(blocks, models.Block{ID: uuid.NewString(), Type: kind, Props: props})
		if len(blocks) == maxBlocks {
			break
		}
	}
	if len(blocks) == 0 {
		return nil, ErrBadResponse
	}
	return blocks, nil
}
