package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v, c, d := Info()
	assert.NotEmpty(t, v)
	assert.NotEmpty(t, c)
	assert.NotEmpty(t, d)

	assert.Equal(t, v, GetVersion())
	assert.Equal(t, c, GetCommit())
	assert.Equal(t, d, GetDate())
}

func TestString(t *testing.T) {
	s := String()
	assert.Contains(t, s, "version="+GetVersion())
	assert.Contains(t, s, "commit="+GetCommit())
	assert.Contains(t, s, "date="+GetDate())
}

func TestFields(t *testing.T) {
	fields := Fields()
	assert.Equal(t, GetVersion(), fields["version"])
	assert.Equal(t, GetCommit(), fields["commit"])
	assert.Equal(t, GetDate(), fields["build_date"])
}
