package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/server/servertest"
)

type call struct {
	method string
	path   string
	token  string
	csrf   string
	body   any
}

func send(t *testing.T, env *servertest.Env, c call) (int, []byte) {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(c.method, env.URL()+c.path, body)
	require.NoError(t, err)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	if c.csrf != "" {
		req.Header.Set("X-CSRFToken", c.csrf)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func seedPoultry(t *testing.T, env *servertest.Env) *models.Product {
	return env.SeedProduct(t,
		models.Product{Name: "Newcastle La Sota", Brand: "VetPro", Species: models.SpeciesPoultry, Type: models.VaccineLive},
		[]models.DosePack{{Doses: 1000, UnitsPerPack: 20}},
		[]models.Batch{
			{BatchNumber: "B-LATE", ExpiryDate: "2031-06-01", Quantity: 50},
			{BatchNumber: "B-EARLY", ExpiryDate: "2030-01-01", Quantity: 3},
		},
	)
}

func TestAuthFlow(t *testing.T) {
	env := servertest.New(t)

	code, raw := send(t, env, call{method: http.MethodGet, path: "/api/auth/user/"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "null", strings.TrimSpace(string(raw)))

	code, raw = send(t, env, call{method: http.MethodPost, path: "/api/auth/register/", body: map[string]string{"username": "ann"}})
	assert.Equal(t, http.StatusForbidden, code, string(raw))

	code, raw = send(t, env, call{method: http.MethodGet, path: "/api/auth/csrf/"})
	require.Equal(t, http.StatusOK, code)
	csrf := decode[map[string]string](t, raw)
	assert.Equal(t, "CSRF cookie set", csrf["detail"])
	token := csrf["csrfToken"]
	require.NotEmpty(t, token)

	code, raw = send(t, env, call{method: http.MethodPost, path: "/api/auth/register/", csrf: token,
		body: map[string]string{"username": "ann", "password1": "pw-1", "password2": "pw-2"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"password":["Passwords do not match."]}`, string(raw))

	code, raw = send(t, env, call{method: http.MethodPost, path: "/api/auth/register/", csrf: token,
		body: map[string]string{"username": "ann", "email": "Ann@Example.com", "company_name": "Ann Farms", "password1": "pw-1", "password2": "pw-1"}})
	require.Equal(t, http.StatusCreated, code, string(raw))
	user := decode[models.User](t, raw)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Equal(t, "Ann Farms", user.CompanyName)
	assert.NotContains(t, string(raw), "password")

	code, raw = send(t, env, call{method: http.MethodPost, path: "/api/auth/login/", csrf: token,
		body: map[string]string{"username": "ann", "password": "wrong"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(raw), "non_field_errors")

	code, raw = send(t, env, call{method: http.MethodPost, path: "/api/auth/login/", csrf: token,
		body: map[string]string{"username": "ann", "password": "pw-1"}})
	require.Equal(t, http.StatusOK, code, string(raw))
	key := decode[map[string]string](t, raw)["key"]
	require.Len(t, key, 40)

	code, raw = send(t, env, call{method: http.MethodGet, path: "/api/auth/user/", token: key})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ann", decode[models.User](t, raw).Username)

	code, _ = send(t, env, call{method: http.MethodPost, path: "/api/auth/logout/", token: key})
	assert.Equal(t, http.StatusOK, code)

	code, _ = send(t, env, call{method: http.MethodGet, path: "/api/auth/user/", token: key})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCatalogPermissions(t *testing.T) {
	env := servertest.New(t)
	env.CreateUser(t, "shopper", "pw", false)
	env.CreateUser(t, "admin", "pw", true)
	shopper := env.Token(t, "shopper", "pw")
	admin := env.Token(t, "admin", "pw")
	p := seedPoultry(t, env)

	code, raw := send(t, env, call{method: http.MethodGet, path: "/api/products/"})
	require.Equal(t, http.StatusOK, code)
	list := decode[[]models.Product](t, raw)
	require.Len(t, list, 1)
	assert.Equal(t, 20, list[0].TotalUnits)
	assert.Equal(t, 53, list[0].TotalStock)
	assert.Len(t, list[0].DosePacks, 1)

	newProduct := map[string]any{"name": "PRRS", "species": "swine", "product_type": "killed"}
	code, _ = send(t, env, call{method: http.MethodPost, path: "/api/products/", body: newProduct})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = send(t, env, call{method: http.MethodPost, path: "/api/products/", token: shopper, body: newProduct})
	assert.Equal(t, http.StatusForbidden, code)
	code, raw = send(t, env, call{method: http.MethodPost, path: "/api/products/", token: admin, body: newProduct})
	require.Equal(t, http.StatusCreated, code, string(raw))
	assert.Equal(t, models.PlaceholderImageURL, decode[models.Product](t, raw).ImageURL)

	code, raw = send(t, env, call{method: http.MethodPost, path: "/api/products/", token: admin, body: map[string]any{"species": "cattle"}})
	assert.Equal(t, http.StatusBadRequest, code)
	fields := decode[map[string][]string](t, raw)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "species")

	code, _ = send(t, env, call{method: http.MethodGet, path: "/api/batches/"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, raw = send(t, env, call{method: http.MethodGet, path: fmt.Sprintf("/api/batches/?product=%d", p.ID), token: shopper})
	require.Equal(t, http.StatusOK, code)
	batches := decode[[]models.Batch](t, raw)
	require.Len(t, batches, 2)
	assert.Equal(t, "B-EARLY", batches[0].BatchNumber)

	code, _ = send(t, env, call{method: http.MethodGet, path: "/api/batches/low_stock/", token: shopper})
	assert.Equal(t, http.StatusForbidden, code)
	code, raw = send(t, env, call{method: http.MethodGet, path: "/api/batches/low_stock/", token: admin})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.Batch](t, raw), 2)

	code, _ = send(t, env, call{method: http.MethodGet, path: "/api/inventory-logs/", token: shopper})
	assert.Equal(t, http.StatusForbidden, code)
	code, raw = send(t, env, call{method: http.MethodGet, path: fmt.Sprintf("/api/inventory-logs/?product=%d", p.ID), token: admin})
	require.Equal(t, http.StatusOK, code)
	logs := decode[[]models.InventoryLog](t, raw)
	require.Len(t, logs, 2)
	assert.Equal(t, models.LogReceived, logs[0].Action)
}

func TestBatchPatchAndBulkUpdate(t *testing.T) {
	env := servertest.New(t)
	env.CreateUser(t, "admin", "pw", true)
	admin := env.Token(t, "admin", "pw")
	p := seedPoultry(t, env)
	id := p.Batches[0].ID

	code, raw := send(t, env, call{method: http.MethodPatch, path: fmt.Sprintf("/api/batches/%d/", id), token: admin,
		body: map[string]any{"storage_location": "Fridge 2"}})
	require.Equal(t, http.StatusOK, code, string(raw))
	b := decode[models.Batch](t, raw)
	assert.Equal(t, "Fridge 2", b.StorageLocation)
	assert.Equal(t, p.Batches[0].Quantity, b.Quantity)

	code, raw = send(t, env, call{method: http.MethodPost, path: "/api/batches/bulk_update_stock/", token: admin,
		body: map[string]any{"updates": []map[string]any{
			{"batch_id": id, "quantity": 7, "reason": "Recount"},
			{"batch_id": 9999, "quantity": 1},
		}}})
	require.Equal(t, http.StatusOK, code, string(raw))
	assert.JSONEq(t, `{"detail":"Updated 2 batches"}`, string(raw))

	code, raw = send(t, env, call{method: http.MethodGet, path: fmt.Sprintf("/api/batches/%d/", id), token: admin})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 7, decode[models.Batch](t, raw).Quantity)

	code, _ = send(t, env, call{method: http.MethodGet, path: "/api/batches/abc/", token: admin})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMultipartProductUpload(t *testing.T) {
	env := servertest.New(t)
	env.CreateUser(t, "admin", "pw", true)
	admin := env.Token(t, "admin", "pw")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "Gumboro"))
	require.NoError(t, w.WriteField("species", "poultry"))
	require.NoError(t, w.WriteField("product_type", "attenuated"))
	require.NoError(t, w.WriteField("lead_time_days", "5"))
	require.NoError(t, w.WriteField("cold_chain_required", "true"))
	require.NoError(t, w.WriteField("tags", "ibd, broiler"))
	part, err := w.CreateFormFile("image", "gumboro.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\nrest-of-image"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, env.URL()+"/api/products/", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Token "+admin)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	p := decode[models.Product](t, raw)
	assert.Equal(t, 5, p.LeadTimeDays)
	assert.True(t, p.ColdChainRequired)
	assert.Equal(t, []string{"ibd", "broiler"}, p.Tags)
	require.True(t, strings.HasPrefix(p.ImageURL, "/media/products/"), p.ImageURL)

	img, err := http.Get(env.URL() + p.ImageURL)
	require.NoError(t, err)
	defer img.Body.Close()
	assert.Equal(t, http.StatusOK, img.StatusCode)
}

func TestOrderLifecycle(t *testing.T) {
	env := servertest.New(t)
	env.CreateUser(t, "ann", "pw", false)
	env.CreateUser(t, "bob", "pw", false)
	env.CreateUser(t, "admin", "pw", true)
	ann := env.Token(t, "ann", "pw")
	bob := env.Token(t, "bob", "pw")
	admin := env.Token(t, "admin", "pw")
	p := seedPoultry(t, env)
	pack := p.DosePacks[0].ID

	code, raw := send(t, env, call{method: http.MethodPost, path: "/api/orders/", token: ann, body: map[string]any{"items": []any{}}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"items":["Order must contain at least one item."]}`, string(raw))

	checkout := map[string]any{
		"notes": "Order placed from storefront",
		"items": []map[string]any{{
			"product": p.ID, "dose_pack": pack, "quantity": 5, "unit_price": "2.50",
			"requested_delivery_date": "2030-02-01", "special_instructions": "",
		}},
	}
	code, raw = send(t, env, call{method: http.MethodPost, path: "/api/orders/", token: ann, body: checkout})
	require.Equal(t, http.StatusCreated, code, string(raw))
	order := decode[models.Order](t, raw)
	assert.Regexp(t, `^ORD[0-9A-F]{12}$`, order.OrderNumber)
	assert.Equal(t, models.StatusRequested, order.Status)
	assert.Equal(t, "12.5", order.TotalAmount.String())
	require.Len(t, order.StatusHistory, 1)
	assert.Equal(t, models.SystemUsername, order.StatusHistory[0].ChangedByUsername)

	path := fmt.Sprintf("/api/orders/%d/", order.ID)
	code, _ = send(t, env, call{method: http.MethodGet, path: path, token: bob})
	assert.Equal(t, http.StatusForbidden, code)
	code, raw = send(t, env, call{method: http.MethodGet, path: "/api/orders/", token: bob})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]models.Order](t, raw))

	code, raw = send(t, env, call{method: http.MethodPost, path: path + "set_status/", token: ann, body: map[string]string{"status": "confirmed"}})
	assert.Equal(t, http.StatusForbidden, code)
	assert.JSONEq(t, `{"detail":"Only staff can change order status."}`, string(raw))

	code, raw = send(t, env, call{method: http.MethodPost, path: path + "set_status/", token: admin, body: map[string]string{"status": "shipped"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"detail":"Invalid status."}`, string(raw))

	code, raw = send(t, env, call{method: http.MethodPost, path: path + "set_status/", token: admin, body: map[string]string{"status": "dispatched"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(raw), "Cannot change status")

	code, raw = send(t, env, call{method: http.MethodPost, path: path + "set_status/", token: admin, body: map[string]string{"status": "confirmed"}})
	require.Equal(t, http.StatusOK, code, string(raw))
	assert.JSONEq(t, `{"detail":"Status updated."}`, string(raw))

	code, raw = send(t, env, call{method: http.MethodGet, path: fmt.Sprintf("/api/batches/?product=%d", p.ID), token: admin})
	require.Equal(t, http.StatusOK, code)
	batches := decode[[]models.Batch](t, raw)
	assert.Equal(t, 3, batches[0].QuantityReserved)
	assert.Equal(t, 2, batches[1].QuantityReserved)

	code, raw = send(t, env, call{method: http.MethodPost, path: path + "add_internal_note/", token: admin, body: map[string]string{"note": "  "}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"detail":"Note is required."}`, string(raw))
	code, _ = send(t, env, call{method: http.MethodPost, path: path + "add_internal_note/", token: admin, body: map[string]string{"note": "call before delivery"}})
	assert.Equal(t, http.StatusOK, code)

	code, raw = send(t, env, call{method: http.MethodGet, path: "/api/orders/?status=confirmed", token: ann})
	require.Equal(t, http.StatusOK, code)
	mine := decode[[]models.Order](t, raw)
	require.Len(t, mine, 1)
	assert.Equal(t, "call before delivery", mine[0].InternalNotes)
	require.Len(t, mine[0].StatusHistory, 2)
	assert.Equal(t, "admin", mine[0].StatusHistory[1].ChangedByUsername)

	code, _ = send(t, env, call{method: http.MethodPost, path: path + "set_status/", token: admin, body: map[string]string{"status": "cancelled"}})
	require.Equal(t, http.StatusOK, code)
	code, raw = send(t, env, call{method: http.MethodGet, path: fmt.Sprintf("/api/batches/?product=%d", p.ID), token: admin})
	require.Equal(t, http.StatusOK, code)
	for _, b := range decode[[]models.Batch](t, raw) {
		assert.Zero(t, b.QuantityReserved, b.BatchNumber)
	}
}
