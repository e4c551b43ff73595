package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgerpay/invoicer/internal/account"
	"github.com/ledgerpay/invoicer/internal/domain/entity"
	"github.com/ledgerpay/invoicer/internal/service"
)

// callerHeader carries the caller's principal in text form. Authenticating
// the principal is the job of an upstream identity layer, not this service.
const callerHeader = "X-Caller-Principal"

type errorBody struct {
	Kind    entity.ErrorKind `json:"kind"`
	Message string           `json:"message,omitempty"`
}

type errorResponse struct {
	Err errorBody `json:"err"`
}

func respondError(c *gin.Context, err error) {
	var opErr *entity.Error
	if !errors.As(err, &opErr) {
		opErr = entity.NewError(entity.KindOther, "internal error")
	}
	c.JSON(statusFor(opErr.Kind), errorResponse{Err: errorBody{Kind: opErr.Kind, Message: opErr.Message}})
}

func statusFor(kind entity.ErrorKind) int {
	switch kind {
	case entity.KindInvalidAmount, entity.KindInvalidDetails, entity.KindInvalidToken,
		entity.KindInvalidDestination, entity.KindInvalidInvoiceID, entity.KindBadSize:
		return http.StatusBadRequest
	case entity.KindNotAuthorized:
		return http.StatusForbidden
	case entity.KindNotFound:
		return http.StatusNotFound
	case entity.KindNotYetPaid, entity.KindAlreadyRefunded, entity.KindExpired, entity.KindNoRefundDest:
		return http.StatusConflict
	case entity.KindTransferError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) caller(c *gin.Context) (account.Principal, bool) {
	text := c.GetHeader(callerHeader)
	if text == "" {
		c.JSON(http.StatusUnauthorized, errorResponse{Err: errorBody{
			Kind:    entity.KindNotAuthorized,
			Message: "missing " + callerHeader + " header",
		}})
		return account.Principal{}, false
	}
	p, err := account.PrincipalFromText(text)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Err: errorBody{
			Kind:    entity.KindNotAuthorized,
			Message: "malformed caller principal",
		}})
		return account.Principal{}, false
	}
	return p, true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "invoicer",
		"time":    time.Now().Format(time.RFC3339),
	})
}

type createInvoiceRequest struct {
	Token       string   `json:"token" binding:"required"`
	Amount      uint64   `json:"amount"`
	Description string   `json:"description"`
	Meta        []byte   `json:"meta"`
	CanGet      []string `json:"canGet"`
	CanVerify   []string `json:"canVerify"`
}

func (s *Server) handleCreateInvoice(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, entity.Errorf(entity.KindInvalidDetails, "malformed request body: %v", err))
		return
	}

	args := service.CreateInvoiceArgs{
		TokenSymbol: req.Token,
		Amount:      req.Amount,
	}
	if req.Description != "" || len(req.Meta) > 0 {
		args.Details = &entity.Details{Description: req.Description, Meta: req.Meta}
	}
	if len(req.CanGet) > 0 || len(req.CanVerify) > 0 {
		perms, err := parsePermissions(req.CanGet, req.CanVerify)
		if err != nil {
			respondError(c, err)
			return
		}
		args.Permissions = perms
	}

	inv, err := s.invoices.CreateInvoice(c.Request.Context(), caller, args)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": gin.H{"invoice": renderInvoice(inv)}})
}

func (s *Server) handleGetInvoice(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	id, err := parseInvoiceID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	inv, err := s.invoices.GetInvoice(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": gin.H{"invoice": renderInvoice(inv)}})
}

func (s *Server) handleVerifyInvoice(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	id, err := parseInvoiceID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.invoices.VerifyInvoice(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": gin.H{
		string(result.Status): gin.H{"invoice": renderInvoice(result.Invoice)},
	}})
}

type refundInvoiceRequest struct {
	Amount        uint64 `json:"amount"`
	RefundAccount string `json:"refundAccount"`
}

func (s *Server) handleRefundInvoice(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	id, err := parseInvoiceID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req refundInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, entity.Errorf(entity.KindInvalidDetails, "malformed request body: %v", err))
		return
	}

	blockHeight, err := s.invoices.RefundInvoice(c.Request.Context(), caller, id, req.Amount, req.RefundAccount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": gin.H{"blockHeight": blockHeight}})
}

func (s *Server) handleGetBalance(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	balance, err := s.invoices.GetBalance(c.Request.Context(), caller, c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": gin.H{"balance": balance}})
}

func (s *Server) handleGetAccountIdentifier(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	identity := caller
	if text := c.Query("principal"); text != "" {
		p, err := account.PrincipalFromText(text)
		if err != nil {
			respondError(c, entity.Errorf(entity.KindInvalidDestination, "malformed principal: %v", err))
			return
		}
		identity = p
	}

	ident, err := s.invoices.GetAccountIdentifier(c.Request.Context(), identity, c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": gin.H{"accountIdentifier": ident.String()}})
}

type transferRequest struct {
	Token       string `json:"token" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	Amount      uint64 `json:"amount"`
}

func (s *Server) handleTransfer(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, entity.Errorf(entity.KindInvalidDetails, "malformed request body: %v", err))
		return
	}

	blockHeight, err := s.invoices.Transfer(c.Request.Context(), caller, req.Token, req.Destination, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": gin.H{"blockHeight": blockHeight}})
}

type authorizeCreationRequest struct {
	Principal string `json:"principal" binding:"required"`
}

func (s *Server) handleAuthorizeCreation(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	var req authorizeCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, entity.Errorf(entity.KindInvalidDetails, "malformed request body: %v", err))
		return
	}
	grantee, err := account.PrincipalFromText(req.Principal)
	if err != nil {
		respondError(c, entity.Errorf(entity.KindInvalidDetails, "malformed principal: %v", err))
		return
	}

	if err := s.invoices.AuthorizeCreation(c.Request.Context(), caller, grantee); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": gin.H{"authorized": grantee.String()}})
}

func parseInvoiceID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, entity.Errorf(entity.KindInvalidInvoiceID, "malformed invoice id %q", raw)
	}
	return id, nil
}

func parsePermissions(canGet, canVerify []string) (*entity.Permissions, error) {
	perms := &entity.Permissions{}
	var err error
	if perms.CanGet, err = parsePrincipals(canGet); err != nil {
		return nil, err
	}
	if perms.CanVerify, err = parsePrincipals(canVerify); err != nil {
		return nil, err
	}
	return perms, nil
}

func parsePrincipals(texts []string) ([]account.Principal, error) {
	list := make([]account.Principal, 0, len(texts))
	for _, text := range texts {
		p, err := account.PrincipalFromText(text)
		if err != nil {
			return nil, entity.Errorf(entity.KindInvalidDetails, "malformed principal %q in permissions", text)
		}
		list = append(list, p)
	}
	return list, nil
}

type invoiceView struct {
	ID            uint64              `json:"id"`
	Creator       string              `json:"creator"`
	Token         entity.TokenVerbose `json:"token"`
	Amount        uint64              `json:"amount"`
	Destination   string              `json:"destination"`
	Expiration    time.Time           `json:"expiration"`
	Details       *entity.Details     `json:"details,omitempty"`
	CanGet        []string            `json:"canGet,omitempty"`
	CanVerify     []string            `json:"canVerify,omitempty"`
	Paid          bool                `json:"paid"`
	AmountPaid    uint64              `json:"amountPaid"`
	VerifiedAt    *time.Time          `json:"verifiedAtTime,omitempty"`
	Refunded      bool                `json:"refunded"`
	RefundedAt    *time.Time          `json:"refundedAtTime,omitempty"`
	RefundAccount string              `json:"refundAccount,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

func renderInvoice(inv *entity.Invoice) invoiceView {
	view := invoiceView{
		ID:            inv.ID,
		Creator:       inv.Creator.String(),
		Token:         inv.Token,
		Amount:        inv.Amount,
		Destination:   inv.Destination,
		Expiration:    inv.Expiration,
		Details:       inv.Details,
		Paid:          inv.Paid,
		AmountPaid:    inv.AmountPaid,
		VerifiedAt:    inv.VerifiedAt,
		Refunded:      inv.Refunded,
		RefundedAt:    inv.RefundedAt,
		RefundAccount: inv.RefundAccount,
		CreatedAt:     inv.CreatedAt,
	}
	if inv.Permissions != nil {
		view.CanGet = renderPrincipals(inv.Permissions.CanGet)
		view.CanVerify = renderPrincipals(inv.Permissions.CanVerify)
	}
	return view
}

func renderPrincipals(list []account.Principal) []string {
	texts := make([]string, len(list))
	for i, p := range list {
		texts[i] = p.String()
	}
	return texts
}
