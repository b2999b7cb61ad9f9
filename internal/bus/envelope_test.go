package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignAndOpenEnvelopeRoundTrips(t *testing.T) {
	secret := []byte("shared-secret")
	raw, err := signEnvelope(secret, "instance-a", "event", []byte("payload"))
	require.NoError(t, err)

	env, err := openEnvelope(secret, raw)
	require.NoError(t, err)
	require.Equal(t, "instance-a", env.InstanceID)
	require.Equal(t, []byte("payload"), env.Payload)
}

func TestOpenEnvelopeRejectsTamperedHMAC(t *testing.T) {
	secret := []byte("shared-secret")
	raw, err := signEnvelope(secret, "instance-a", "event", []byte("payload"))
	require.NoError(t, err)

	raw[len(raw)-1] ^= 0xFF // corrupt the trailing byte of the encoded envelope, the last HMAC byte

	_, err = openEnvelope(secret, raw)
	require.Error(t, err)
}

func TestOpenEnvelopeRejectsWrongSecret(t *testing.T) {
	raw, err := signEnvelope([]byte("secret-one"), "instance-a", "event", []byte("payload"))
	require.NoError(t, err)

	_, err = openEnvelope([]byte("secret-two"), raw)
	require.Error(t, err)
}
