package gateway

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/domain"
	apperrors "github.com/spec-kit/pedidos-console/pkg/util"
)

// Clients is the /clientes resource.
type Clients struct{ c *Client }

func (r *Clients) path(id ...int64) string {
	if len(id) == 0 {
		return r.c.resource("/clientes")
	}
	return r.c.resource("/clientes/" + strconv.FormatInt(id[0], 10))
}

func (r *Clients) List(ctx context.Context) ([]domain.Client, error) {
	var out []domain.Client
	if err := r.c.do(ctx, http.MethodGet, r.path(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Clients) Get(ctx context.Context, id int64) (domain.Client, error) {
	var out domain.Client
	err := r.c.do(ctx, http.MethodGet, r.path(id), nil, &out)
	return out, err
}

func (r *Clients) Create(ctx context.Context, req domain.ClientRequest) (domain.Client, error) {
	var out domain.Client
	err := r.c.do(ctx, http.MethodPost, r.path(), req, &out)
	return out, err
}

func (r *Clients) Update(ctx context.Context, id int64, req domain.ClientRequest) (domain.Client, error) {
	var out domain.Client
	err := r.c.do(ctx, http.MethodPut, r.path(id), req, &out)
	return out, err
}

func (r *Clients) Delete(ctx context.Context, id int64) error {
	return r.c.do(ctx, http.MethodDelete, r.path(id), nil, nil)
}

// Orders is the /pedidos resource.
type Orders struct{ c *Client }

func (r *Orders) path(id ...int64) string {
	if len(id) == 0 {
		return r.c.resource("/pedidos")
	}
	return r.c.resource("/pedidos/" + strconv.FormatInt(id[0], 10))
}

func (r *Orders) List(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := r.c.do(ctx, http.MethodGet, r.path(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Orders) Get(ctx context.Context, id int64) (domain.Order, error) {
	var out domain.Order
	err := r.c.do(ctx, http.MethodGet, r.path(id), nil, &out)
	return out, err
}

func (r *Orders) Create(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if req.Status == "" {
		req.Status = domain.OrderPending
	}
	var out domain.Order
	err := r.c.do(ctx, http.MethodPost, r.path(), req, &out)
	return out, err
}

// ChangeStatus moves an order to status.
func (r *Orders) ChangeStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, apperrors.NewValidationError("unknown order status", map[string]any{"estado": string(status)})
	}
	target := r.c.resource("/pedidos/estado/" + url.PathEscape(string(status)) + "/" + strconv.FormatInt(id, 10))
	var out domain.Order
	err := r.c.do(ctx, http.MethodPatch, target, nil, &out)
	return out, err
}

func (r *Orders) Delete(ctx context.Context, id int64) error {
	return r.c.do(ctx, http.MethodDelete, r.path(id), nil, nil)
}

// Products is the /productos/ resource.
type Products struct{ c *Client }

func (r *Products) base() string { return r.c.resource("/productos/") }

// List returns products sorted by id. Failures have already been surfaced by
// the pipeline and yield an empty list.
func (r *Products) List(ctx context.Context) []domain.Product {
	var out []domain.Product
	if err := r.c.do(ctx, http.MethodGet, r.base(), nil, &out); err != nil {
		r.c.logger.Warn("list products", zap.Error(err))
		return []domain.Product{}
	}
	if out == nil {
		out = []domain.Product{}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Products) Create(ctx context.Context, req domain.ProductRequest) (domain.Product, error) {
	var out domain.Product
	err := r.c.do(ctx, http.MethodPost, r.base(), req, &out)
	return out, err
}

func (r *Products) Update(ctx context.Context, id int64, req domain.ProductRequest) (domain.Product, error) {
	var out domain.Product
	err := r.c.do(ctx, http.MethodPut, r.base()+strconv.FormatInt(id, 10), req, &out)
	return out, err
}

func (r *Products) Delete(ctx context.Context, id int64) error {
	return r.c.do(ctx, http.MethodDelete, r.base()+strconv.FormatInt(id, 10), nil, nil)
}

// Users is the operator account resource, served from its own base URL.
type Users struct{ c *Client }

func (r *Users) List(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	if err := r.c.do(ctx, http.MethodGet, r.c.usersURL, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Users) Create(ctx context.Context, req domain.UserRequest) (domain.User, error) {
	var out domain.User
	err := r.c.do(ctx, http.MethodPost, r.c.usersURL, req, &out)
	return out, err
}

func (r *Users) Delete(ctx context.Context, username string) error {
	return r.c.do(ctx, http.MethodDelete, r.c.usersURL+"/"+url.PathEscape(username), nil, nil)
}
