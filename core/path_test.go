package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathOf(t *testing.T) {
	tests := []struct {
		name     string
		segments []string
		want     string
		wantErr  error
	}{
		{name: "single segment", segments: []string{"users"}, want: "users"},
		{name: "nested", segments: []string{"a", "b", "c"}, want: "a:b:c"},
		{name: "root", segments: nil, want: ""},
		{name: "empty segment", segments: []string{"a", ""}, wantErr: ErrInvalidPath},
		{name: "separator in segment", segments: []string{"a:b"}, wantErr: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Of(tt.segments...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Join())
		})
	}
}

func TestPath_RoundTrip(t *testing.T) {
	paths := []Path{
		MustOf("x"),
		MustOf("bukkit-example", "users", "11111111-1111-1111-1111-111111111111"),
		MustOf("a", "b", "c", "d"),
		{},
	}
	for _, p := range paths {
		again, err := Of(p.Segments()...)
		require.NoError(t, err)
		assert.Equal(t, p.Join(), again.Join())
		assert.True(t, p.Equal(again))

		parsed, err := ParsePath(p.Join())
		require.NoError(t, err)
		assert.True(t, p.Equal(parsed))
	}
}

func TestPath_Immutable(t *testing.T) {
	segs := []string{"a", "b"}
	p := MustOf(segs...)
	segs[0] = "z"
	assert.Equal(t, "a:b", p.Join())

	out := p.Segments()
	out[1] = "z"
	assert.Equal(t, "a:b", p.Join())
}

func TestPath_SubAppendPrefix(t *testing.T) {
	base := MustOf("prefix")
	child, err := base.Sub("users", "42")
	require.NoError(t, err)
	assert.Equal(t, "prefix:users:42", child.Join())
	assert.Equal(t, "prefix", base.Join())
	assert.Equal(t, 3, child.Len())

	_, err = base.Sub("")
	assert.ErrorIs(t, err, ErrInvalidPath)

	assert.True(t, child.HasPrefix(base))
	assert.True(t, child.HasPrefix(Path{}))
	assert.False(t, base.HasPrefix(child))
	assert.True(t, Path{}.IsRoot())
}

func TestPath_ToUUID(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	p := PathOfUUID(id)

	got, err := p.ToUUID()
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = MustOf("not-a-uuid").ToUUID()
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPath_ToUUIDRejectsNonCanonicalForms(t *testing.T) {
	for _, raw := range []string{
		"AAAAAAAA-1111-1111-1111-111111111111",
		"urn:uuid:11111111-1111-1111-1111-111111111111",
		"{11111111-1111-1111-1111-111111111111}",
		"11111111111111111111111111111111",
	} {
		p, err := ParsePath(raw)
		require.NoError(t, err)
		_, err = p.ToUUID()
		assert.ErrorIs(t, err, ErrInvalidKey, raw)
	}
}

func TestMustOf_Panics(t *testing.T) {
	assert.Panics(t, func() { MustOf("") })
}
