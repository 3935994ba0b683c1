package editorlink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectError(t *testing.T) {
	t.Parallel()

	refused := errors.New("connection refused")
	testCases := []struct {
		name string
		args []any
		want string
	}{
		{name: "no arguments", args: nil, want: "connect_error"},
		{name: "error argument", args: []any{refused}, want: "connection refused"},
		{name: "plain argument", args: []any{"websocket error"}, want: "websocket error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := connectError(tc.args)
			require.EqualError(t, err, tc.want)
		})
	}

	t.Run("keeps the original error", func(t *testing.T) {
		t.Parallel()
		require.ErrorIs(t, connectError([]any{refused}), refused)
	})
}

func TestDial_RejectsRelativeURL(t *testing.T) {
	t.Parallel()

	_, err := Dial(t.Context(), Options{URL: "/canvas"})
	require.ErrorContains(t, err, "must be absolute")
}
