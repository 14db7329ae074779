package redsync

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Owner is stored as the value of a distributed lock so operators can tell
// who is holding a resource.
type Owner struct {
	Token      string    `json:"token" msgpack:"token"`
	Host       string    `json:"host" msgpack:"host"`
	PID        int       `json:"pid" msgpack:"pid"`
	AcquiredAt time.Time `json:"acquiredAt" msgpack:"acquiredAt"`
}

func newOwner() Owner {
	// Unknown hostname stays empty.
	host, _ := os.Hostname()

	return Owner{
		Token:      uuid.NewString(),
		Host:       host,
		PID:        os.Getpid(),
		AcquiredAt: time.Now().UTC(),
	}
}

// OwnerCodec turns owner records into lock values and back.
// Encoded values must be unique per acquisition.
type OwnerCodec interface {
	Encode(owner Owner) (string, error)
	Decode(value string) (*Owner, error)
}

type msgpackOwnerCodec struct {
}

// NewMsgpackCodec encodes owners as base64 msgpack, the compact default.
func NewMsgpackCodec() OwnerCodec {
	return &msgpackOwnerCodec{}
}

func (c msgpackOwnerCodec) Encode(owner Owner) (string, error) {
	data, err := msgpack.Marshal(&owner)
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(data), nil
}

func (c msgpackOwnerCodec) Decode(value string) (*Owner, error) {
	data, err := base64.RawStdEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}

	var owner Owner
	if err := msgpack.Unmarshal(data, &owner); err != nil {
		return nil, err
	}
	return &owner, nil
}

type jsonOwnerCodec struct {
}

// NewJSONCodec encodes owners as plain JSON, readable straight from redis.
func NewJSONCodec() OwnerCodec {
	return &jsonOwnerCodec{}
}

func (c jsonOwnerCodec) Encode(owner Owner) (string, error) {
	data, err := json.Marshal(&owner)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c jsonOwnerCodec) Decode(value string) (*Owner, error) {
	var owner Owner
	if err := json.Unmarshal([]byte(value), &owner); err != nil {
		return nil, err
	}
	return &owner, nil
}
