package ptr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTo(t *testing.T) {
	s := "dev"
	p := To(s)
	assert.Equal(t, "dev", *p)
	assert.NotSame(t, &s, p)

	b := To(true)
	assert.True(t, *b)
}

func TestNonEmpty(t *testing.T) {
	assert.Nil(t, NonEmpty(""))
	assert.Equal(t, "https://a.example.com", *NonEmpty("https://a.example.com"))
}

func TestDeref(t *testing.T) {
	assert.Equal(t, "", Deref[string](nil))
	assert.Equal(t, 3, Deref(To(3)))
}
