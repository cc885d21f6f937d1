package domain

// OrderStatus represents lifecycle states for an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDIENTE"
	OrderShipped   OrderStatus = "ENVIADO"
	OrderDelivered OrderStatus = "ENTREGADO"
	OrderCancelled OrderStatus = "CANCELADO"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Order is an order record as served by the gateway. CreatedAt is kept as
// the gateway formats it.
type Order struct {
	ID        int64       `json:"idPedidos"`
	ClientID  int64       `json:"idCliente"`
	Total     float64     `json:"total"`
	CreatedAt string      `json:"fechaCreacion"`
	Status    OrderStatus `json:"estado"`
}

// OrderRequest is the create payload for an order.
type OrderRequest struct {
	ClientID  int64       `json:"idCliente"`
	Total     float64     `json:"total,omitempty"`
	CreatedAt string      `json:"fechaCreacion,omitempty"`
	Status    OrderStatus `json:"estado"`
}

// ClientOrder pairs an order with its client; Client is nil when the
// order references a client that was not found.
type ClientOrder struct {
	Order
	Client *Client `json:"cliente,omitempty"`
}

// JoinOrdersWithClients attaches clients to orders. A non-nil clientID keeps
// only that client's orders.
func JoinOrdersWithClients(orders []Order, clients []Client, clientID *int64) []ClientOrder {
	byID := make(map[int64]*Client, len(clients))
	for i := range clients {
		byID[clients[i].ID] = &clients[i]
	}
	out := make([]ClientOrder, 0, len(orders))
	for _, o := range orders {
		if clientID != nil && o.ClientID != *clientID {
			continue
		}
		out = append(out, ClientOrder{Order: o, Client: byID[o.ClientID]})
	}
	return out
}
