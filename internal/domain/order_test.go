package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinOrdersWithClients(t *testing.T) {
	clients := []Client{{ID: 1, Nombre: "Luis", Apellido: "Andres"}, {ID: 2, Nombre: "Maria"}}
	orders := []Order{
		{ID: 1, ClientID: 1, Status: OrderPending},
		{ID: 2, ClientID: 2, Status: OrderShipped},
		{ID: 3, ClientID: 9, Status: OrderCancelled},
		{ID: 4, ClientID: 1, Status: OrderDelivered},
	}

	all := JoinOrdersWithClients(orders, clients, nil)
	assert.Len(t, all, 4)
	assert.Equal(t, "Luis Andres", all[0].Client.FullName())
	assert.Nil(t, all[2].Client)

	one := int64(1)
	filtered := JoinOrdersWithClients(orders, clients, &one)
	if assert.Len(t, filtered, 2) {
		assert.Equal(t, int64(1), filtered[0].ID)
		assert.Equal(t, int64(4), filtered[1].ID)
	}
}

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, OrderPending.Valid())
	assert.True(t, OrderCancelled.Valid())
	assert.False(t, OrderStatus("pendiente").Valid())
	assert.Equal(t, "Maria", Client{Nombre: "Maria"}.FullName())
}
