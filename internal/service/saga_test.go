package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
)

func TestRunSagaAllStepsSucceed(t *testing.T) {
	var order []string
	steps := []sagaStep{
		{name: "one", run: func(context.Context) error { order = append(order, "one"); return nil }},
		{name: "two", run: func(context.Context) error { order = append(order, "two"); return nil }},
	}
	require.NoError(t, runSaga(context.Background(), zap.NewNop(), steps))
	assert.Equal(t, []string{"one", "two"}, order)
}

func TestRunSagaCompensatesInReverse(t *testing.T) {
	var compensated []string
	boom := errors.New("step three failed")
	steps := []sagaStep{
		{
			name: "one",
			run:  func(context.Context) error { return nil },
			compensate: func(context.Context) error {
				compensated = append(compensated, "one")
				return nil
			},
		},
		{
			name: "two",
			run:  func(context.Context) error { return nil },
			compensate: func(context.Context) error {
				compensated = append(compensated, "two")
				return nil
			},
		},
		{name: "three", run: func(context.Context) error { return boom }},
	}

	err := runSaga(context.Background(), zap.NewNop(), steps)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"two", "one"}, compensated)
}

func TestRunSagaSkipsNilCompensations(t *testing.T) {
	var compensated []string
	steps := []sagaStep{
		{
			name: "undoable",
			run:  func(context.Context) error { return nil },
			compensate: func(context.Context) error {
				compensated = append(compensated, "undoable")
				return nil
			},
		},
		{name: "fire-and-forget", run: func(context.Context) error { return nil }},
		{name: "fail", run: func(context.Context) error { return errors.New("fail") }},
	}

	err := runSaga(context.Background(), zap.NewNop(), steps)
	require.Error(t, err)
	assert.Equal(t, []string{"undoable"}, compensated)
}

func TestRunSagaCompensationFailure(t *testing.T) {
	original := errors.New("original failure")
	steps := []sagaStep{
		{
			name:       "one",
			run:        func(context.Context) error { return nil },
			compensate: func(context.Context) error { return errors.New("rollback broken") },
		},
		{name: "two", run: func(context.Context) error { return original }},
	}

	err := runSaga(context.Background(), zap.NewNop(), steps)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrCompensationFailed)
	// The original cause stays reachable for operators.
	assert.ErrorIs(t, err, original)
}
