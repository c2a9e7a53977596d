package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	key, err := NewKey()
	require.NoError(t, err)

	type payload struct {
		SessionID string `json:"sessionId"`
		TenantID  string `json:"tenantId"`
	}

	sealed, err := Seal(payload{SessionID: "sess-1", TenantID: "tenant-1"}, key)
	require.NoError(t, err)

	var got payload
	require.NoError(t, Open(sealed, key, &got))
	require.Equal(t, "sess-1", got.SessionID)
	require.Equal(t, "tenant-1", got.TenantID)
}

func TestOpenWrongKeyFails(t *testing.T) {
	t.Parallel()

	key, err := NewKey()
	require.NoError(t, err)
	wrong, err := NewKey()
	require.NoError(t, err)

	sealed, err := Seal(map[string]string{"a": "b"}, key)
	require.NoError(t, err)

	var got map[string]string
	require.Error(t, Open(sealed, wrong, &got))
}

func TestOpenShortDataFails(t *testing.T) {
	t.Parallel()

	key, err := NewKey()
	require.NoError(t, err)

	var got map[string]string
	require.Error(t, Open([]byte("short"), key, &got))
}
