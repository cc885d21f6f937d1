package domain

// Client is a customer record as served by the gateway.
type Client struct {
	ID        int64  `json:"idClientes"`
	Nombre    string `json:"nombre"`
	Apellido  string `json:"apellido"`
	Email     string `json:"email"`
	Telefono  string `json:"telefono"`
	Direccion string `json:"direccion,omitempty"`
}

// ClientRequest is the create/update payload for a client.
type ClientRequest struct {
	Nombre    string `json:"nombre"`
	Apellido  string `json:"apellido"`
	Email     string `json:"email"`
	Telefono  string `json:"telefono"`
	Direccion string `json:"direccion,omitempty"`
}

// FullName joins first and last name.
func (c Client) FullName() string {
	if c.Apellido == "" {
		return c.Nombre
	}
	return c.Nombre + " " + c.Apellido
}
