package trace

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateTraceID(t *testing.T) {
	id := GenerateTraceID()
	assert.Len(t, id, 32)
	assert.NotEqual(t, id, GenerateTraceID())
}

func TestExtractFromHeader(t *testing.T) {
	t.Run("X-Trace-Id 优先", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Trace-Id", "trace-abc")
		h.Set("X-Request-Id", "request-def")
		assert.Equal(t, "trace-abc", ExtractFromHeader(h))
	})

	t.Run("回退到 X-Request-Id", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Request-Id", "request-def")
		assert.Equal(t, "request-def", ExtractFromHeader(h))
	})

	t.Run("解析 W3C Traceparent", func(t *testing.T) {
		h := http.Header{}
		h.Set("Traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", ExtractFromHeader(h))
	})

	t.Run("没有任何头部时生成新 ID", func(t *testing.T) {
		id := ExtractFromHeader(http.Header{})
		assert.Len(t, id, 32)
	})
}
