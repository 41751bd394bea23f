package stages

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverlining-sec/nimbus/pkg/types"
)

func addOne(ctx context.Context, opts []*types.Option, in <-chan int) <-chan int {
	out := make(chan int)
	go func() {
		defer close(out)
		for i := range in {
			out <- i + 1
		}
	}()
	return out
}

func double(ctx context.Context, opts []*types.Option, in <-chan int) <-chan int {
	out := make(chan int)
	go func() {
		defer close(out)
		for i := range in {
			out <- i * 2
		}
	}()
	return out
}

func itoa(ctx context.Context, opts []*types.Option, in <-chan int) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for i := range in {
			out <- strconv.Itoa(i)
		}
	}()
	return out
}

func TestChainStagesSingle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	chain, err := ChainStages[int, int](addOne)
	require.NoError(t, err)

	out := chain(ctx, nil, Generator([]int{1}))
	assert.Equal(t, 2, <-out)
}

func TestChainStagesMultiple(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	chain, err := ChainStages[int, int](addOne, double)
	require.NoError(t, err)

	out := chain(ctx, nil, Generator([]int{1}))
	assert.Equal(t, 4, <-out)
}

func TestChainStagesDifferentTypes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	chain, err := ChainStages[int, string](addOne, itoa)
	require.NoError(t, err)

	out := chain(ctx, nil, Generator([]int{41}))
	assert.Equal(t, "42", <-out)
}

func TestChainStagesRejectsIncompatibleStages(t *testing.T) {
	_, err := ChainStages[int, int](itoa, addOne)
	assert.Error(t, err)
}

func TestChainStagesRejectsNonStage(t *testing.T) {
	_, err := ChainStages[int, int](addOne, "not a stage")
	assert.Error(t, err)
}

func TestGeneratorEmitsAllAndCloses(t *testing.T) {
	in := Generator([]string{"a", "b", "c"})

	var got []string
	for v := range in {
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestAggregateOutput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := AggregateOutput[int](ctx, nil, Generator([]int{1, 2, 3}))
	collected := <-out
	assert.Equal(t, []int{1, 2, 3}, collected)

	_, open := <-out
	assert.False(t, open)
}

func TestToString(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := ToString(ctx, nil, Generator([]int{7}))
	assert.Equal(t, "7", <-out)
}
