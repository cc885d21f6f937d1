package domain

// Product is a catalog entry as served by the gateway.
type Product struct {
	ID          int64   `json:"idProductos"`
	Nombre      string  `json:"nombre"`
	Descripcion string  `json:"descripcion"`
	Precio      float64 `json:"precio"`
	Stock       int     `json:"stock"`
}

// ProductRequest is the create/update payload for a product.
type ProductRequest struct {
	Nombre      string  `json:"nombre"`
	Descripcion string  `json:"descripcion"`
	Precio      float64 `json:"precio"`
	Stock       int     `json:"stock"`
}
