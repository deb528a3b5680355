package models

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestCanAdvanceStatus(t *testing.T) {
	assert.True(t, CanAdvanceStatus(StatusSent, StatusDelivered))
	assert.True(t, CanAdvanceStatus(StatusSent, StatusRead))
	assert.True(t, CanAdvanceStatus(StatusDelivered, StatusRead))

	// Status never moves backward.
	assert.False(t, CanAdvanceStatus(StatusRead, StatusDelivered))
	assert.False(t, CanAdvanceStatus(StatusDelivered, StatusSent))
	assert.False(t, CanAdvanceStatus(StatusRead, StatusSent))

	// Failed is reachable from any live state and terminal afterwards.
	assert.True(t, CanAdvanceStatus(StatusSent, StatusFailed))
	assert.False(t, CanAdvanceStatus(StatusFailed, StatusDelivered))
	assert.False(t, CanAdvanceStatus(StatusFailed, StatusRead))
}

func TestAdvanceStatus(t *testing.T) {
	assert.Equal(t, StatusDelivered, AdvanceStatus(StatusSent, StatusDelivered))
	assert.Equal(t, StatusRead, AdvanceStatus(StatusRead, StatusDelivered))
	assert.Equal(t, StatusFailed, AdvanceStatus(StatusFailed, StatusRead))
}

func TestMessageMembership(t *testing.T) {
	msg := Message{
		DeliveredTo: pq.Int64Array{2, 3},
		ReadBy:      pq.Int64Array{2},
	}

	assert.True(t, msg.DeliveredToContains(2))
	assert.False(t, msg.DeliveredToContains(4))
	assert.True(t, msg.ReadByContains(2))
	assert.False(t, msg.ReadByContains(3))
}
