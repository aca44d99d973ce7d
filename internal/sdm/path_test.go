package sdm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathDepth(t *testing.T) {
	cases := []struct {
		name string
		path Path
		want int
	}{
		{"root", RootPath(), 0},
		{"object", ObjectPath(3), 1},
		{"instance", InstancePath(3, 0), 2},
		{"resource", ResourcePath(3, 0, 1), 3},
		{"resource instance", ResourceInstancePath(3, 0, 1, 0), 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.path.Depth())
		})
	}
}

func TestRootPathIsRoot(t *testing.T) {
	assert.True(t, RootPath().IsRoot())
	assert.False(t, ObjectPath(3).IsRoot())
}
