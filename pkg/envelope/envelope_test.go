package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventCarriesPayload(t *testing.T) {
	e, err := NewEvent(LikeUpdated, "social", 3, LikePayload{Target: "comment", ID: 9, LikeCount: 4})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 3, e.PostID)
	assert.NotZero(t, e.Timestamp)

	raw, err := e.Marshal()
	require.NoError(t, err)

	back, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, LikeUpdated, back.Action)

	p, err := ParseData[LikePayload](back)
	require.NoError(t, err)
	assert.Equal(t, LikePayload{Target: "comment", ID: 9, LikeCount: 4}, p)
}

func TestNewError(t *testing.T) {
	e := NewError("subscribe", "hub", 400, "post inválido")
	assert.Equal(t, "subscribe.error", e.Action)
	require.NotNil(t, e.Error)
	assert.Equal(t, 400, e.Error.Code)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("{nope"))
	assert.Error(t, err)
}
