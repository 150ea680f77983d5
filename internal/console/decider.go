package console

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/flowfact-console/internal/sequencer"
)

// PromptDecider asks the user whether to keep going after a failed operation.
type PromptDecider struct {
	confirm Confirmer
	logger  *zap.Logger
}

// NewPromptDecider wraps a Confirmer as a sequencer.Decider.
func NewPromptDecider(confirm Confirmer, logger *zap.Logger) *PromptDecider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptDecider{confirm: confirm, logger: logger}
}

// ContinueAfter implements sequencer.Decider. Prompt errors count as "no".
func (d *PromptDecider) ContinueAfter(ctx context.Context, failed sequencer.Result, remaining []sequencer.Operation) bool {
	if ctx.Err() != nil || len(remaining) == 0 {
		return false
	}
	label := fmt.Sprintf("Continue with remaining operations (%d left)", len(remaining))
	ok, err := d.confirm.Confirm(label)
	if err != nil {
		d.logger.Warn("continue prompt failed", zap.String("operation", failed.Operation), zap.Error(err))
		return false
	}
	return ok
}
