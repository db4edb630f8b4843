package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "school:sessions:stats", Key("sessions", "stats"))
	assert.Equal(t, "school:sessions:teacher:t-1", Key("sessions", "teacher", "t-1"))
}
