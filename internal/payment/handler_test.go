package payment

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/techfussion/bts/internal/auth"
)

func setupPaymentRouter(m *serviceMocks) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := NewHandler(m.svc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetCaller(c, student)
		c.Next()
	})
	r.POST("/payments/initialize", h.Initialize)
	r.GET("/payments/verify/:reference", h.Verify)
	r.GET("/payments", h.ListPayments)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Initialize(t *testing.T) {
	m := newServiceMocks()
	m.repo.On("Create", mock.Anything, mock.Anything).Return(pendingPayment("500"), nil)
	m.gateway.On("Initialize", mock.Anything, mock.Anything, int64(50000), testRef).
		Return(&Authorization{AuthorizationURL: "https://checkout.paystack.com/abc"}, nil)
	r := setupPaymentRouter(m)

	w := postJSON(r, "/payments/initialize", `{"amount": 500}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://checkout.paystack.com/abc")

	w = postJSON(r, "/payments/initialize", `{"amount": 50}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/payments/initialize", `{"amount": "abc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Initialize_GatewayDown(t *testing.T) {
	m := newServiceMocks()
	m.repo.On("Create", mock.Anything, mock.Anything).Return(pendingPayment("500"), nil)
	m.gateway.On("Initialize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, ErrGatewayUnavailable)
	m.repo.On("MarkFailed", mock.Anything, 3).Return(true, nil)
	r := setupPaymentRouter(m)

	w := postJSON(r, "/payments/initialize", `{"amount": "500"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandler_Verify(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(m *serviceMocks)
		status int
	}{
		{
			name: "not found",
			setup: func(m *serviceMocks) {
				m.repo.On("GetByReferenceForUser", mock.Anything, 7, testRef).Return(nil, ErrPaymentNotFound)
			},
			status: http.StatusNotFound,
		},
		{
			name: "already processed",
			setup: func(m *serviceMocks) {
				p := pendingPayment("500")
				p.Status = StatusSuccess
				m.repo.On("GetByReferenceForUser", mock.Anything, 7, testRef).Return(p, nil)
			},
			status: http.StatusOK,
		},
		{
			name: "gateway unavailable",
			setup: func(m *serviceMocks) {
				m.repo.On("GetByReferenceForUser", mock.Anything, 7, testRef).Return(pendingPayment("500"), nil)
				m.gateway.On("Verify", mock.Anything, testRef).Return(nil, ErrGatewayUnavailable)
			},
			status: http.StatusServiceUnavailable,
		},
		{
			name: "declined",
			setup: func(m *serviceMocks) {
				m.repo.On("GetByReferenceForUser", mock.Anything, 7, testRef).Return(pendingPayment("500"), nil)
				m.gateway.On("Verify", mock.Anything, testRef).Return(&Verification{Success: false, Status: "failed"}, nil)
				m.repo.On("MarkFailed", mock.Anything, 3).Return(true, nil)
			},
			status: http.StatusPaymentRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newServiceMocks()
			tt.setup(m)
			r := setupPaymentRouter(m)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/payments/verify/"+testRef, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHandler_ListPayments(t *testing.T) {
	m := newServiceMocks()
	m.repo.On("ListByUser", mock.Anything, 7).Return([]Payment{*pendingPayment("500")}, nil)
	r := setupPaymentRouter(m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/payments", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testRef)
}
