package cloudstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPointIDRoundTripsThroughUUIDField(t *testing.T) {
	hash := "3a7bd3e2360a3d29eea436fcfb7e44c735d117c42d1c1835420b6b9942dd4f1"
	id := hashPointID(hash)
	assert.Equal(t, hash, pointIDToHash(id))
}
