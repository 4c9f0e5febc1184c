package sl_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	err := errors.New("something went wrong")
	attr := sl.Err(err)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("something went wrong"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	assert.Panics(t, func() {
		_ = sl.Err(nil)
	})
}

func TestUserID(t *testing.T) {
	attr := sl.UserID(7498855771)

	assert.Equal(t, "platform_id", attr.Key)
	assert.Equal(t, int64(7498855771), attr.Value.Int64())
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := sl.New("local", &buf)
	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
	log.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	log = sl.New("prod", &buf)
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
	log.Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}
