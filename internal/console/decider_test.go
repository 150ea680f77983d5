package console

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/flowfact-console/internal/sequencer"
)

type fakeConfirmer struct {
	answer bool
	err    error
	labels []string
}

func (f *fakeConfirmer) Confirm(label string) (bool, error) {
	f.labels = append(f.labels, label)
	return f.answer, f.err
}

func TestPromptDecider(t *testing.T) {
	t.Parallel()

	remaining := []sequencer.Operation{{Name: "prepare_dataset"}, {Name: "start_batch_processing"}}
	failed := sequencer.Result{Operation: "validate_images", Outcome: sequencer.OutcomeFailure}

	yes := &fakeConfirmer{answer: true}
	require.True(t, NewPromptDecider(yes, nil).ContinueAfter(context.Background(), failed, remaining))
	require.Equal(t, []string{"Continue with remaining operations (2 left)"}, yes.labels)

	no := &fakeConfirmer{answer: false}
	require.False(t, NewPromptDecider(no, nil).ContinueAfter(context.Background(), failed, remaining))

	broken := &fakeConfirmer{answer: true, err: ErrInterrupted}
	require.False(t, NewPromptDecider(broken, nil).ContinueAfter(context.Background(), failed, remaining))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	unasked := &fakeConfirmer{answer: true}
	require.False(t, NewPromptDecider(unasked, nil).ContinueAfter(ctx, failed, remaining))
	require.Empty(t, unasked.labels)
}
