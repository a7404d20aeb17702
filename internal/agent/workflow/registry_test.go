package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/assistant-core/internal/core/error"
)

func TestMemoryRegistry_FindIsTypeScoped(t *testing.T) {
	r := NewMemoryRegistry(DefaultCatalog()...)
	ctx := context.Background()

	c, err := r.Find(ctx, "gmail", "new_email", model.ComponentTrigger)
	require.NoError(t, err)
	assert.Equal(t, "gmail", c.Service)

	_, err = r.Find(ctx, "gmail", "new_email", model.ComponentAction)
	assert.ErrorIs(t, err, errx.ErrComponentNotFound)
}

func TestMemoryRegistry_ListIsSorted(t *testing.T) {
	r := NewMemoryRegistry()
	r.Register(model.ComponentDescriptor{Service: "slack", Name: "send_message", Type: model.ComponentAction})
	r.Register(model.ComponentDescriptor{Service: "ai", Name: "summarize", Type: model.ComponentAction})
	r.Register(model.ComponentDescriptor{Service: "gmail", Name: "new_email", Type: model.ComponentTrigger})

	list, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "ai", list[0].Service)
	assert.Equal(t, "slack", list[1].Service)
	assert.Equal(t, model.ComponentTrigger, list[2].Type)
}
