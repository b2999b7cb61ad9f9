package bus

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/vmihailenco/msgpack"
)

// envelope is the signed wire message published to a pub/sub channel
// or sent over the inter-engine stream. The HMAC covers
// sender||messageType||payload, matching the inter-engine wire format
// in the external interfaces contract; receivers reject a missing or
// invalid signature before decoding the payload.
type envelope struct {
	InstanceID  string `msgpack:"instance_id"`
	MessageType string `msgpack:"message_type"`
	Payload     []byte `msgpack:"payload"`
	HMAC        []byte `msgpack:"hmac"`
}

func signEnvelope(secret []byte, instanceID, messageType string, payload []byte) ([]byte, error) {
	mac := computeMAC(secret, instanceID, messageType, payload)
	env := envelope{
		InstanceID:  instanceID,
		MessageType: messageType,
		Payload:     payload,
		HMAC:        mac,
	}
	encoded, err := msgpack.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("bus: marshal envelope: %w", err)
	}
	return encoded, nil
}

func openEnvelope(secret []byte, raw []byte) (env envelope, err error) {
	if err = msgpack.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("bus: unmarshal envelope: %w", err)
	}
	expected := computeMAC(secret, env.InstanceID, env.MessageType, env.Payload)
	if subtle.ConstantTimeCompare(expected, env.HMAC) != 1 {
		return envelope{}, fmt.Errorf("bus: envelope hmac mismatch from instance %s", env.InstanceID)
	}
	return env, nil
}

func computeMAC(secret []byte, instanceID, messageType string, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(instanceID))
	mac.Write([]byte(messageType))
	mac.Write(payload)
	return mac.Sum(nil)
}
