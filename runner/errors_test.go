package runner

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		usage         bool
		protocol      bool
		spawn         bool
		unimplemented bool
		closed        bool
	}{
		{name: "usage", err: UsageError("attach", ErrBatchOnly), usage: true},
		{name: "protocol", err: MissingField("find", "sky"), protocol: true},
		{name: "spawn", err: NewError(KindSpawn, "start", errors.New("not found")), spawn: true},
		{name: "unimplemented", err: Unimplemented("sort"), unimplemented: true},
		{name: "closed", err: NewError(KindClosed, "result", ErrClosed), closed: true},
		{name: "wrapped usage", err: fmt.Errorf("photometry: %w", UsageError("photometry", ErrTooMany)), usage: true},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.usage, IsUsage(tt.err), "IsUsage")
			assert.Equal(t, tt.protocol, IsProtocol(tt.err), "IsProtocol")
			assert.Equal(t, tt.spawn, IsSpawn(tt.err), "IsSpawn")
			assert.Equal(t, tt.unimplemented, IsUnimplemented(tt.err), "IsUnimplemented")
			assert.Equal(t, tt.closed, IsClosed(tt.err), "IsClosed")
		})
	}
}

func TestError_Message(t *testing.T) {
	err := MissingField("find", "sky")
	assert.Equal(t, "find: protocol error: expected field missing from output: sky", err.Error())
	assert.ErrorIs(t, err, ErrMissingField)

	bare := &Error{Kind: KindUsage, Err: ErrNotRun}
	assert.Equal(t, "usage error: command has not been run", bare.Error())
}
