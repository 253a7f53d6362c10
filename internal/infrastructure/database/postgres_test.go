package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDSN(t *testing.T) {
	cases := map[string]string{
		"postgresql+asyncpg://u:p@db:5432/chat": "postgresql://u:p@db:5432/chat",
		" postgres+pgx://u@db/chat ":            "postgres://u@db/chat",
		"postgres://u@db/chat?sslmode=disable":  "postgres://u@db/chat?sslmode=disable",
		"":                                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeDSN(in), in)
	}
}

func TestSchemaIsEmbedded(t *testing.T) {
	assert.Contains(t, schemaSQL, "chat.conversation")
	assert.Contains(t, schemaSQL, "chat.invite_link")
}
