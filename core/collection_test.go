package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollection_Validate(t *testing.T) {
	assert.NoError(t, Users.Validate())
	assert.NoError(t, Collection{Name: "playerstats2"}.Validate())
	assert.ErrorIs(t, Collection{Name: "player_stats"}.Validate(), ErrInvalidCollection)
	assert.ErrorIs(t, Collection{Name: "player-stats"}.Validate(), ErrInvalidCollection)
	assert.ErrorIs(t, Collection{}.Validate(), ErrInvalidCollection)
	assert.ErrorIs(t, Collection{Name: "Users"}.Validate(), ErrInvalidCollection)
	assert.ErrorIs(t, Collection{Name: "a b"}.Validate(), ErrInvalidCollection)
	assert.ErrorIs(t, Collection{Name: "a", KeyLength: -1}.Validate(), ErrInvalidCollection)
}

func TestCollection_CheckKey(t *testing.T) {
	assert.NoError(t, Users.CheckKey(MustOf("11111111-1111-1111-1111-111111111111")))
	assert.ErrorIs(t, Users.CheckKey(MustOf("short")), ErrInvalidKey)
	assert.ErrorIs(t, Users.CheckKey(Path{}), ErrInvalidKey)
	assert.NoError(t, Showcases.CheckKey(MustOf("anything", "goes")))
}
