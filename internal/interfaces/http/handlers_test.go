package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ledgerpay/invoicer/internal/account"
	"github.com/ledgerpay/invoicer/internal/ledger"
	"github.com/ledgerpay/invoicer/internal/permission"
	"github.com/ledgerpay/invoicer/internal/repository"
	"github.com/ledgerpay/invoicer/internal/service"
	"github.com/ledgerpay/invoicer/internal/token"
	"github.com/ledgerpay/invoicer/pkg/database"
)

type testStack struct {
	router  *gin.Engine
	sim     *ledger.SimLedger
	adapter *token.ICPAdapter
	owner   account.Principal
	creator account.Principal
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run())

	owner, err := account.PrincipalFromRaw([]byte{0x01})
	require.NoError(t, err)
	creator, err := account.PrincipalFromRaw([]byte{0x02})
	require.NoError(t, err)

	sim := ledger.NewSimLedger(owner, token.ICPFee, logger)
	adapter := token.NewICPAdapter(sim, owner, token.ICPFee)
	registry := token.NewRegistry()
	registry.Register(adapter)

	allowlist := repository.NewAllowlistRepository(db, logger)
	gate := permission.NewCreationGate(allowlist, []account.Principal{owner, creator}, logger)

	store := repository.NewInvoiceRepository(db, logger)
	svc := service.NewInvoiceService(store, registry, gate, logger)

	return &testStack{
		router:  NewServer(svc, logger).Router(false),
		sim:     sim,
		adapter: adapter,
		owner:   owner,
		creator: creator,
	}
}

func (ts *testStack) request(t *testing.T, method, path string, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(callerHeader, caller)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func errKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	errObj, ok := body["err"].(map[string]any)
	require.True(t, ok, "response has no err envelope: %s", w.Body.String())
	kind, _ := errObj["kind"].(string)
	return kind
}

func TestMissingCallerHeader(t *testing.T) {
	ts := newTestStack(t)

	w := ts.request(t, http.MethodPost, "/api/v1/invoices", "", map[string]any{
		"token": "ICP", "amount": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.request(t, http.MethodPost, "/api/v1/invoices", "not-a-principal", map[string]any{
		"token": "ICP", "amount": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndGetInvoice(t *testing.T) {
	ts := newTestStack(t)
	caller := ts.creator.String()

	w := ts.request(t, http.MethodPost, "/api/v1/invoices", caller, map[string]any{
		"token":       "ICP",
		"amount":      1_000_000,
		"description": "hosting",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	inv := body["ok"].(map[string]any)["invoice"].(map[string]any)
	assert.Equal(t, float64(1), inv["id"])
	assert.Equal(t, caller, inv["creator"])
	assert.NotEmpty(t, inv["destination"])
	assert.Equal(t, false, inv["paid"])

	w = ts.request(t, http.MethodGet, "/api/v1/invoices/1", caller, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// A principal outside the permission lists cannot read it.
	stranger, err := account.PrincipalFromRaw([]byte{0x09})
	require.NoError(t, err)
	w = ts.request(t, http.MethodGet, "/api/v1/invoices/1", stranger.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NotAuthorized", errKind(t, w))
}

func TestGetInvoiceErrors(t *testing.T) {
	ts := newTestStack(t)
	caller := ts.creator.String()

	w := ts.request(t, http.MethodGet, "/api/v1/invoices/999", caller, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", errKind(t, w))

	w = ts.request(t, http.MethodGet, "/api/v1/invoices/junk", caller, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidInvoiceId", errKind(t, w))
}

func TestVerifyFlow(t *testing.T) {
	ts := newTestStack(t)
	caller := ts.creator.String()

	w := ts.request(t, http.MethodPost, "/api/v1/invoices", caller, map[string]any{
		"token": "ICP", "amount": 1_000_000,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	inv := decode(t, w)["ok"].(map[string]any)["invoice"].(map[string]any)
	destText := inv["destination"].(string)

	// Unpaid invoice verifies to NotYetPaid.
	w = ts.request(t, http.MethodPost, "/api/v1/invoices/1/verify", caller, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NotYetPaid", errKind(t, w))

	dest, err := ts.adapter.ParseDestination(destText)
	require.NoError(t, err)
	ts.sim.Deposit(dest, 1_000_000)

	w = ts.request(t, http.MethodPost, "/api/v1/invoices/1/verify", caller, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ok := decode(t, w)["ok"].(map[string]any)
	_, hasPaid := ok["Paid"]
	assert.True(t, hasPaid, "expected Paid variant: %s", w.Body.String())

	// Second verify reports the idempotent variant.
	w = ts.request(t, http.MethodPost, "/api/v1/invoices/1/verify", caller, nil)
	require.Equal(t, http.StatusOK, w.Code)
	ok = decode(t, w)["ok"].(map[string]any)
	_, hasAlready := ok["AlreadyVerified"]
	assert.True(t, hasAlready, "expected AlreadyVerified variant: %s", w.Body.String())
}

func TestRefundFlow(t *testing.T) {
	ts := newTestStack(t)
	caller := ts.creator.String()

	w := ts.request(t, http.MethodPost, "/api/v1/invoices", caller, map[string]any{
		"token": "ICP", "amount": 1_000_000,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	inv := decode(t, w)["ok"].(map[string]any)["invoice"].(map[string]any)

	dest, err := ts.adapter.ParseDestination(inv["destination"].(string))
	require.NoError(t, err)
	ts.sim.Deposit(dest, 1_000_000)

	w = ts.request(t, http.MethodPost, "/api/v1/invoices/1/verify", caller, nil)
	require.Equal(t, http.StatusOK, w.Code)

	refundDest := account.NewIdentifier(ts.creator, account.Subaccount{}).String()
	w = ts.request(t, http.MethodPost, "/api/v1/invoices/1/refund", caller, map[string]any{
		"amount":        1_000_000 - token.ICPFee,
		"refundAccount": refundDest,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ok := decode(t, w)["ok"].(map[string]any)
	assert.NotZero(t, ok["blockHeight"])

	w = ts.request(t, http.MethodPost, "/api/v1/invoices/1/refund", caller, map[string]any{
		"amount":        1,
		"refundAccount": refundDest,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "AlreadyRefunded", errKind(t, w))
}

func TestBalanceTransferAndIdentifier(t *testing.T) {
	ts := newTestStack(t)
	caller := ts.creator.String()

	w := ts.request(t, http.MethodGet, "/api/v1/accounts/ICP/identifier", caller, nil)
	require.Equal(t, http.StatusOK, w.Code)
	identText := decode(t, w)["ok"].(map[string]any)["accountIdentifier"].(string)

	ident, err := account.IdentifierFromText(identText)
	require.NoError(t, err)
	ts.sim.Deposit(ident, 500_000)

	w = ts.request(t, http.MethodGet, "/api/v1/balance/ICP", caller, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(500_000), decode(t, w)["ok"].(map[string]any)["balance"])

	dest := account.NewIdentifier(ts.owner, account.Subaccount{31: 9}).String()
	w = ts.request(t, http.MethodPost, "/api/v1/transfers", caller, map[string]any{
		"token":       "ICP",
		"destination": dest,
		"amount":      100_000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A transfer the balance cannot cover maps to the gateway error class.
	w = ts.request(t, http.MethodPost, "/api/v1/transfers", caller, map[string]any{
		"token":       "ICP",
		"destination": dest,
		"amount":      10_000_000,
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "TransferError", errKind(t, w))

	w = ts.request(t, http.MethodGet, "/api/v1/balance/DOGE", caller, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidToken", errKind(t, w))
}

func TestAllowlistEndpoint(t *testing.T) {
	ts := newTestStack(t)

	newcomer, err := account.PrincipalFromRaw([]byte{0x0e})
	require.NoError(t, err)

	// Newcomer cannot create yet.
	w := ts.request(t, http.MethodPost, "/api/v1/invoices", newcomer.String(), map[string]any{
		"token": "ICP", "amount": 1,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Only admins may grant.
	w = ts.request(t, http.MethodPost, "/api/v1/allowlist", newcomer.String(), map[string]any{
		"principal": newcomer.String(),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.request(t, http.MethodPost, "/api/v1/allowlist", ts.owner.String(), map[string]any{
		"principal": newcomer.String(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.request(t, http.MethodPost, "/api/v1/invoices", newcomer.String(), map[string]any{
		"token": "ICP", "amount": 1,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHealthAndRequestID(t *testing.T) {
	ts := newTestStack(t)

	w := ts.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}

func TestErrorEnvelopeShape(t *testing.T) {
	ts := newTestStack(t)
	caller := ts.creator.String()

	w := ts.request(t, http.MethodPost, "/api/v1/invoices", caller, map[string]any{
		"token": "ICP", "amount": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	errObj := body["err"].(map[string]any)
	assert.Equal(t, "InvalidAmount", errObj["kind"])
	assert.NotEmpty(t, fmt.Sprintf("%v", errObj["message"]))
}
