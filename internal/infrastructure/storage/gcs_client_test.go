package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	name := ObjectName("/chats/s1/", "image/png", now)
	assert.True(t, strings.HasPrefix(name, "chats/s1/"))
	assert.True(t, strings.HasSuffix(name, "-20240501123000.png"))

	assert.True(t, strings.HasSuffix(ObjectName("chats/s1", "application/zip", now), ".bin"))
	assert.NotEqual(t, ObjectName("chats/s1", "image/png", now), ObjectName("chats/s1", "image/png", now))
}
