package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"quotebias/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestWrap_MapsDomainSentinels(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{core.NewEmptyResultError("gender", "F vs M"), CodeEmptyResult},
		{fmt.Errorf("%w: gender", core.ErrEmptyDistribution), CodeEmptyDistribution},
		{core.NewMissingColumnError("outcome", "top9"), CodeConfigInvalid},
		{stderrors.New("disk on fire"), CodeInternalError},
	}
	for _, tt := range tests {
		wrapped := Wrap(tt.err, "compare")
		assert.Equal(t, tt.code, GetCode(wrapped))
		assert.ErrorIs(t, wrapped, tt.err)
	}
}

func TestWrap_KeepsAppErrorCode(t *testing.T) {
	inner := InvalidInput("bad body")
	outer := Wrapf(Wrap(inner, "decode"), "request %d", 7)

	assert.Equal(t, CodeInvalidInput, GetCode(outer))
	assert.Equal(t, "request 7: decode: bad body", outer.Error())
	assert.Nil(t, Wrap(nil, "noop"))
}

func TestGetCode_Unwrapped(t *testing.T) {
	assert.Equal(t, CodeEmptyResult, GetCode(core.NewEmptyResultError("car", "A vs B")))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("x")))
	assert.True(t, IsAppError(fmt.Errorf("ctx: %w", NotFound("plan"))))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeDataSource, stderrors.New("eof"))
	assert.Equal(t, CodeDataSource, GetCode(err))
	assert.Equal(t, "eof", err.Error())
}

func TestWithCode_KeepsChain(t *testing.T) {
	cause := fmt.Errorf("read body: %w", io.ErrUnexpectedEOF)
	err := Wrap(WithCode(CodeInvalidInput, cause), "decode")

	assert.Equal(t, "decode: read body: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, CodeInvalidInput, GetCode(err))

	recoded := WithCode(CodeConfigInvalid, InvalidInput("bad body"))
	assert.Equal(t, "bad body", recoded.Error())
	assert.Equal(t, CodeConfigInvalid, GetCode(recoded))
	assert.Nil(t, WithCode(CodeInternalError, nil))
}
