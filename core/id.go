package core

import (
	"strconv"

	"github.com/google/uuid"

	"pkt.systems/langpad/schema"
)

var newPlaygroundID = func() schema.PlaygroundID {
	return schema.PlaygroundID(uuid.NewString())
}

// sampleSessionID names the n-th sample session of a playground.
func sampleSessionID(n uint64) schema.SessionID {
	return schema.SessionID("sample-" + strconv.FormatUint(n, 10))
}
