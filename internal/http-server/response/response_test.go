package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOK(t *testing.T) {
	resp := OK()

	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Nil(t, resp.Checks)
}

func TestError(t *testing.T) {
	msg := "something went wrong"
	resp := Error(msg)

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, msg, resp.Error)
}

func TestWithChecks(t *testing.T) {
	checks := map[string]string{"storage": "ok"}
	resp := WithChecks(OK(), checks)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, checks, resp.Checks)
}
