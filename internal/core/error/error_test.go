package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_IsAndAs(t *testing.T) {
	err := fmt.Errorf("compile: %w", UnknownTrigger("gmail", "new_email"))

	assert.ErrorIs(t, err, ErrUnknownTrigger)
	assert.NotErrorIs(t, err, ErrMissingWorkflowSpec)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Contains(t, appErr.Error(), "gmail/new_email")
}

func TestSynthesis(t *testing.T) {
	cause := errors.New("llm offline")
	err := Synthesis(cause)

	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, SynthesisErrorMessage, UserMessage(err))

	assert.ErrorIs(t, Synthesis(nil), ErrNoAnalyses)
}

func TestUserMessage_Fallback(t *testing.T) {
	assert.Equal(t, SystemErrorMessage, UserMessage(errors.New("boom")))
	assert.Equal(t, WorkflowErrorMessage, UserMessage(MissingWorkflowSpec()))
}

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))

	var appErr *AppError
	require.ErrorAs(t, WrapRedis(redis.Nil), &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.ErrorIs(t, appErr, redis.Nil)

	require.ErrorAs(t, WrapRedis(errors.New("conn reset")), &appErr)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
}
