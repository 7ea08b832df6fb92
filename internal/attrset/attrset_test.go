package attrset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	s, err := NewSynthesizer(DefaultProfile())
	require.NoError(t, err)

	t.Run("No index observed", func(t *testing.T) {
		set := s.Synthesize(NoIndex)
		assert.Equal(t, 0, set.Index)
		assert.Equal(t, "attributes #0 = "+DefaultBody, set.Declaration())
	})

	t.Run("Strictly greater than max", func(t *testing.T) {
		for _, k := range []int{0, 1, 7, 41} {
			set := s.Synthesize(IndexOf(k))
			assert.Equal(t, k+1, set.Index)
			assert.Equal(t, DefaultBody, set.Body)
			assert.Equal(t, DefaultVersion, set.Version)
		}
	})

	t.Run("Same body every call", func(t *testing.T) {
		a := s.Synthesize(IndexOf(3))
		b := s.Synthesize(IndexOf(3))
		assert.Equal(t, a, b)
		assert.Equal(t, "#4", a.Ref())
	})
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{name: "default", profile: DefaultProfile()},
		{name: "custom", profile: Profile{Version: "v2", Body: "{ nounwind }"}},
		{name: "no version", profile: Profile{Body: "{ nounwind }"}, wantErr: true},
		{name: "no braces", profile: Profile{Version: "v", Body: "nounwind"}, wantErr: true},
		{name: "multi line", profile: Profile{Version: "v", Body: "{ nounwind\n}"}, wantErr: true},
		{name: "padded", profile: Profile{Version: "v", Body: " { nounwind } "}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSynthesizer(tt.profile)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMaxIndex_String(t *testing.T) {
	assert.Equal(t, "none", NoIndex.String())
	assert.Equal(t, "#3", IndexOf(3).String())
}
