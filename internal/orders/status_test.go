package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusOrdered, StatusDelivered))

	assert.False(t, CanTransition(StatusDelivered, StatusOrdered))
	assert.False(t, CanTransition(StatusDelivered, StatusDelivered))
	assert.False(t, CanTransition(StatusOrdered, StatusOrdered))
	assert.False(t, CanTransition(StatusOrdered, Status("cancelled")))
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusOrdered))
	assert.True(t, ValidStatus(StatusDelivered))
	assert.False(t, ValidStatus(Status("cancelled")))
	assert.False(t, ValidStatus(Status("")))
}
