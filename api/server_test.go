package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/northwear/storefront/internal/cart"
	"github.com/northwear/storefront/internal/cartsync"
	"github.com/northwear/storefront/internal/catalog"
	"github.com/northwear/storefront/internal/orders"
	"github.com/northwear/storefront/internal/payment"
	"github.com/northwear/storefront/pkg/models"
)

type testEnv struct {
	db       *gorm.DB
	server   *httptest.Server
	provider *httptest.Server
	client   *http.Client
}

// newTestEnv boots the full stack over an in-memory database with a fake
// payment provider behind it.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentInvoice{},
		&models.WebhookRecord{},
	))

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pay_url":"https://pay.example/hosted"}`))
	}))
	t.Cleanup(provider.Close)

	logger := zap.NewNop()
	catalogSvc := catalog.NewService(db, nil, logger)
	hub := cartsync.NewHub(4, logger)
	t.Cleanup(hub.Shutdown)
	cartSvc := cart.NewService(cart.NewMemoryStore(), catalogSvc, hub, logger)
	orderSvc := orders.NewService(db, cartSvc, catalogSvc, nil, logger)
	providerClient := payment.NewClient(provider.URL, "key", "shop", "https://northwear.example", 5*time.Second, logger)
	paymentSvc := payment.NewService(db, providerClient, orderSvc, logger)

	server := httptest.NewServer(NewServer(logger, "http://localhost:3000", cartSvc, catalogSvc, orderSvc, paymentSvc, hub).Router())
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		db:       db,
		server:   server,
		provider: provider,
		client:   &http.Client{Jar: jar},
	}
}

func (e *testEnv) seedProduct(t *testing.T, id uint, name string, price int64, stock models.SizeStock) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.Product{
		ID:    id,
		Name:  name,
		Price: decimal.NewFromInt(price),
		Stock: stock,
	}).Error)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp, decodeObject(t, resp)
}

func (e *testEnv) post(t *testing.T, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := e.client.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp, decodeObject(t, resp)
}

func decodeObject(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}

func TestHealthIssuesSessionCookie(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	var sid string
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			sid = c.Value
			assert.True(t, c.HttpOnly)
		}
	}
	require.NotEmpty(t, sid)
	_, err := uuid.Parse(sid)
	assert.NoError(t, err)

	// The jar carries the cookie, so the second request keeps the session
	// and gets no fresh cookie.
	resp2, _ := env.get(t, "/api/health")
	for _, c := range resp2.Cookies() {
		assert.NotEqual(t, "session_id", c.Name)
	}
}

func TestProductEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, 1, "Oversized Hoodie", 120, models.SizeStock{"S": 2, "M": 5})

	resp, err := env.client.Get(env.server.URL + "/api/products")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "Oversized Hoodie", list[0]["name"])

	resp2, body := env.get(t, "/api/products/1")
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, "Oversized Hoodie", body["name"])

	resp3, body := env.get(t, "/api/products/99")
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
	assert.Equal(t, "product not found", body["message"])

	resp4, _ := env.get(t, "/api/products/not-a-number")
	assert.Equal(t, http.StatusBadRequest, resp4.StatusCode)
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, 1, "Oversized Hoodie", 120, models.SizeStock{"M": 5})

	resp, _ := env.post(t, "/api/cart/add", gin.H{"productId": 1, "size": "M", "quantity": 2})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.post(t, "/api/cart/add", gin.H{"productId": 1, "size": "M", "quantity": 1})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	getResp, err := env.client.Get(env.server.URL + "/api/cart")
	require.NoError(t, err)
	defer getResp.Body.Close()
	var lines []map[string]interface{}
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&lines))
	require.Len(t, lines, 1, "same product and size merges into one line")
	assert.EqualValues(t, 3, lines[0]["quantity"])

	resp, _ = env.post(t, "/api/cart/remove", gin.H{"productId": 1, "size": "M", "quantity": 3})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	getResp2, err := env.client.Get(env.server.URL + "/api/cart")
	require.NoError(t, err)
	defer getResp2.Body.Close()
	var after []map[string]interface{}
	require.NoError(t, json.NewDecoder(getResp2.Body).Decode(&after))
	assert.Empty(t, after)
}

func TestCartAddRejections(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, 1, "Oversized Hoodie", 120, models.SizeStock{"M": 5})

	resp, body := env.post(t, "/api/cart/add", gin.H{"productId": 99, "size": "M", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "product not found", body["message"])

	resp, body = env.post(t, "/api/cart/add", gin.H{"productId": 1, "size": "XXL", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "size not available for this product", body["message"])

	resp, _ = env.post(t, "/api/cart/add", gin.H{"productId": 1, "size": "M", "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckoutAndPaymentFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, 1, "Oversized Hoodie", 120, models.SizeStock{"M": 5})

	resp, _ := env.post(t, "/api/cart/add", gin.H{"productId": 1, "size": "M", "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	orderReq := gin.H{
		"deliveryType":  "courier",
		"fullName":      "Jordan Blake",
		"email":         "jordan@example.com",
		"phone":         "+4915112345678",
		"city":          "Berlin",
		"address":       "Torstr. 1",
		"paymentMethod": "crypto",
	}
	resp, body := env.post(t, "/api/orders", orderReq)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	orderID, ok := body["orderId"].(string)
	require.True(t, ok)

	// Stock was decremented and the cart cleared.
	var product models.Product
	require.NoError(t, env.db.First(&product, 1).Error)
	assert.Equal(t, 3, product.Stock["M"])

	getResp, err := env.client.Get(env.server.URL + "/api/cart")
	require.NoError(t, err)
	defer getResp.Body.Close()
	var lines []map[string]interface{}
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&lines))
	assert.Empty(t, lines)

	// A second checkout against the now-empty cart fails.
	resp, body = env.post(t, "/api/orders", orderReq)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "cart is empty", body["message"])

	// Invoice creation hands back the provider URL.
	resp, body = env.post(t, "/api/payment/create", gin.H{
		"orderId": orderID,
		"amount":  "240.00",
		"email":   "jordan@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://pay.example/hosted", body["paymentUrl"])

	// The provider confirms payment; the order moves to paid.
	resp, body = env.post(t, "/api/payment/webhook", gin.H{"status": "paid", "order_id": orderID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	var order models.Order
	require.NoError(t, env.db.First(&order, "id = ?", orderID).Error)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
}

func TestOrderListIsSessionScoped(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, 1, "Oversized Hoodie", 120, models.SizeStock{"M": 5})

	resp, _ := env.post(t, "/api/cart/add", gin.H{"productId": 1, "size": "M", "quantity": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.post(t, "/api/orders", gin.H{
		"deliveryType":  "pickup",
		"fullName":      "Jordan Blake",
		"email":         "jordan@example.com",
		"phone":         "+4915112345678",
		"paymentMethod": "crypto",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := env.get(t, "/api/orders")
	ordersList, ok := body["orders"].([]interface{})
	require.True(t, ok)
	assert.Len(t, ordersList, 1)

	// A fresh session sees no orders.
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	stranger := &http.Client{Jar: jar}
	strangerResp, err := stranger.Get(env.server.URL + "/api/orders")
	require.NoError(t, err)
	strangerBody := decodeObject(t, strangerResp)
	strangerOrders, _ := strangerBody["orders"].([]interface{})
	assert.Empty(t, strangerOrders)
}

func TestWebhookAlwaysAnswersOK(t *testing.T) {
	env := newTestEnv(t)

	cases := []string{
		`<html>not json</html>`,
		`{"status":"paid","order_id":"` + uuid.NewString() + `"}`,
		`{"status":"paid"}`,
		`{"unrelated":true}`,
	}
	for _, raw := range cases {
		resp, err := env.client.Post(env.server.URL+"/api/payment/webhook", "application/json", bytes.NewReader([]byte(raw)))
		require.NoError(t, err)
		body := decodeObject(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "payload %s", raw)
		assert.Equal(t, "ok", body["status"], "payload %s", raw)
	}
}

func TestWebsocketRefusedWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	// A bare client without a cookie jar never presents a session cookie.
	resp, err := http.Get(env.server.URL + "/api/ws/cart")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInsufficientStockConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, 1, "Oversized Hoodie", 120, models.SizeStock{"M": 1})

	resp, _ := env.post(t, "/api/cart/add", gin.H{"productId": 1, "size": "M", "quantity": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode, "cart does not reserve stock")

	resp, _ = env.post(t, "/api/orders", gin.H{
		"deliveryType":  "courier",
		"fullName":      "Jordan Blake",
		"email":         "jordan@example.com",
		"phone":         "+4915112345678",
		"paymentMethod": "crypto",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Cart survives the failed checkout for retry.
	getResp, err := env.client.Get(env.server.URL + "/api/cart")
	require.NoError(t, err)
	defer getResp.Body.Close()
	var lines []map[string]interface{}
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&lines))
	assert.Len(t, lines, 1)
}
