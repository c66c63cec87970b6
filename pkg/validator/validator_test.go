package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type modeRequest struct {
	Mode    string `json:"mode" validate:"required,appointment_mode"`
	Channel string `json:"channel" validate:"omitempty,notification_channel"`
}

func TestCustomTags(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&modeRequest{Mode: "virtual", Channel: "push"}))
	assert.NoError(t, v.Validate(&modeRequest{Mode: "in-person"}))

	err := v.Validate(&modeRequest{Mode: "phone", Channel: "pigeon"})
	require.Error(t, err)
	msgs := v.FormatValidationErrors(err)
	assert.Equal(t, "Mode must be one of in-person, virtual", msgs["Mode"])
	assert.Equal(t, "Channel must be one of in_app, push, messaging", msgs["Channel"])
}
