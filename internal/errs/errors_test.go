package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"configuration", New(ErrKindConfiguration, "missing credentials"), IsConfiguration},
		{"transport", Wrap(ErrKindTransport, "dial failed", errors.New("refused")), IsTransport},
		{"protocol", Protocol("list failed", 403, "<Error/>"), IsProtocol},
		{"parse", New(ErrKindParse, "bad xml"), IsParse},
		{"not found", New(ErrKindNotFound, "no such ref"), IsNotFound},
		{"canceled", New(ErrKindCanceled, "ctx done"), IsCanceled},
		{"store", New(ErrKindStore, "write failed"), IsStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.pred(tt.err))
			assert.False(t, tt.pred(errors.New("plain")))
		})
	}
}

func TestPredicates_WrappedChain(t *testing.T) {
	inner := Protocol("upload failed", 500, "boom")
	outer := fmt.Errorf("batch item 2: %w", inner)

	assert.True(t, IsProtocol(outer))

	status, ok := StatusOf(outer)
	require.True(t, ok)
	assert.Equal(t, 500, status)
}

func TestStatusOf_NonProtocol(t *testing.T) {
	_, ok := StatusOf(New(ErrKindTransport, "down"))
	assert.False(t, ok)

	_, ok = StatusOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestError_Message(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrKindTransport, "request failed", cause)

	assert.Contains(t, err.Error(), "transport")
	assert.Contains(t, err.Error(), "connection reset")
	assert.ErrorIs(t, err, cause)

	pErr := Protocol("delete failed", 404, "NoSuchKey")
	assert.Contains(t, pErr.Error(), "404")
	assert.Contains(t, pErr.Error(), "NoSuchKey")
}
