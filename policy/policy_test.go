package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_IsAllowed(t *testing.T) {
	var nilPolicy *Policy
	assert.True(t, nilPolicy.IsAllowed("anything"))

	p := &Policy{BlockList: []string{"system/exec"}}
	assert.False(t, p.IsAllowed("system/exec"))
	assert.False(t, p.IsAllowed("SYSTEM/EXEC"))
	assert.True(t, p.IsAllowed("math/add"))

	p = &Policy{AllowList: []string{"math/add"}}
	assert.True(t, p.IsAllowed("math/add"))
	assert.False(t, p.IsAllowed("system/exec"))

	// BlockList has priority over AllowList
	p = &Policy{AllowList: []string{"math/add"}, BlockList: []string{"math/add"}}
	assert.False(t, p.IsAllowed("math/add"))
}

func TestPolicy_Admit(t *testing.T) {
	ctx := context.Background()

	assert.False(t, (&Policy{Mode: ModeDeny}).Admit(ctx, "math/add", nil))
	assert.True(t, (&Policy{Mode: ModeAuto}).Admit(ctx, "math/add", nil))

	// Ask mode without an AskFunc rejects
	assert.False(t, (&Policy{Mode: ModeAsk}).Admit(ctx, "math/add", nil))

	asked := false
	p := &Policy{Mode: ModeAsk, Ask: func(ctx context.Context, function string, kwargs map[string]interface{}, p *Policy) bool {
		asked = true
		return function == "math/add"
	}}
	assert.True(t, p.Admit(ctx, "math/add", nil))
	assert.True(t, asked)
	assert.False(t, p.Admit(ctx, "system/exec", nil))
}

func TestPolicy_Context(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	p := &Policy{Mode: ModeAuto}
	ctx := WithPolicy(context.Background(), p)
	assert.Same(t, p, FromContext(ctx))
}

func TestPolicy_ConfigRoundTrip(t *testing.T) {
	assert.Nil(t, ToConfig(nil))
	assert.Nil(t, FromConfig(nil))

	p := &Policy{Mode: ModeAsk, AllowList: []string{"a"}, BlockList: []string{"b"}}
	restored := FromConfig(ToConfig(p))
	assert.Equal(t, p.Mode, restored.Mode)
	assert.Equal(t, p.AllowList, restored.AllowList)
	assert.Equal(t, p.BlockList, restored.BlockList)
	assert.Nil(t, restored.Ask)
}
