package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := Start(context.Background(), "search", "req-1")
	childCtx, child := StartChild(ctx, "unit")
	child.SetAttr("terms", "apple")
	_, grandchild := StartChild(childCtx, "term")
	grandchild.End()
	child.End()
	root.End()

	assert.Same(t, root, FromContext(ctx))
	require.Len(t, root.Children(), 1)
	assert.Equal(t, "req-1", child.TraceID)
	assert.Equal(t, "req-1", grandchild.TraceID)

	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	root.Log(context.Background(), l, slog.LevelDebug)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "unit", rec["span"])
	assert.Equal(t, "apple", rec["terms"])
	assert.Equal(t, 1.0, rec["depth"])
}

func TestStartChildWithoutParent(t *testing.T) {
	ctx := context.Background()
	got, s := StartChild(ctx, "orphan")
	assert.Equal(t, ctx, got)
	assert.Nil(t, FromContext(got))
	s.SetAttr("k", "v")
	s.End()
}

func TestLogSkipsDisabledLevel(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	_, root := Start(context.Background(), "search", "x")
	root.End()
	root.Log(context.Background(), l, slog.LevelDebug)
	assert.Empty(t, buf.String())
}
