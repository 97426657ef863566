package boltstore

import (
	"bytes"
	"encoding/gob"

	"github.com/much-hall/gomuch/pkg/world"
)

func init() {
	gob.Register(Account{})
	gob.Register(world.Snapshot{})
}

// encodeAccount serializes an Account to bytes using gob.
func encodeAccount(a *Account) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeAccount deserializes bytes back into an Account.
func decodeAccount(data []byte) (*Account, error) {
	var a Account
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// encodeSnapshot serializes a world snapshot to bytes using gob.
func encodeSnapshot(snap *world.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeSnapshot deserializes bytes back into a world snapshot.
func decodeSnapshot(data []byte) (*world.Snapshot, error) {
	var snap world.Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
