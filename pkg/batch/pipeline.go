package batch

import (
	"context"
	"log/slog"
	"strings"

	"fingerbot/pkg/api"
	"fingerbot/pkg/llm"
)

// Generator 是 Pipeline 需要的 LLM 呼叫介面，由 llm.Client 實作
type Generator interface {
	Generate(ctx context.Context, mainContent, structuredContext string) (*llm.Decision, error)
}

// Pipeline implements api.BatchProcessor: assemble the batch, run the model,
// commit any reply into history.
type Pipeline struct {
	assembler *Assembler
	generator Generator
}

func NewPipeline(assembler *Assembler, generator Generator) *Pipeline {
	return &Pipeline{assembler: assembler, generator: generator}
}

// ProcessBatch turns a drained batch into a Decision.
func (p *Pipeline) ProcessBatch(ctx context.Context, batch *api.Batch) (*llm.Decision, error) {
	mainContent, structuredContext, err := p.assembler.Assemble(batch)
	if err != nil {
		return nil, err
	}

	decision, err := p.generator.Generate(ctx, mainContent, structuredContext)
	if err != nil {
		return nil, err
	}

	if decision.Reply {
		p.assembler.CommitReply(batch.ContextID, strings.Join(decision.Messages, "\n"))
	}

	slog.Debug("📦 Batch processed",
		"context", batch.ContextID,
		"reason", batch.Reason,
		"messages", len(batch.Messages),
		"reply", decision.Reply,
		"tokens", decision.TokensUsed)
	return decision, nil
}
