package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-rentals/domains/payments/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/batch"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/httpapi"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/middleware"
)

const domain = "payments"

// IdempotencyHeader carries the receipt key of a recorded payment.
const IdempotencyHeader = middleware.IdempotencyHeader

type operation string

const (
	listOperation          operation = "paymentsList"
	getOperation           operation = "paymentsGet"
	generateOperation      operation = "paymentsGenerate"
	generateMonthOperation operation = "paymentsGenerateMonth"
	evaluateLateOperation  operation = "paymentsEvaluateLate"
	payOperation           operation = "paymentsRecord"
	unpayOperation         operation = "paymentsMarkUnpaid"
	lateFeeOperation       operation = "paymentsApplyLateFee"
	waiveOperation         operation = "paymentsWaiveLateFee"
	reviseOperation        operation = "paymentsReviseRent"
	reviseContractOp       operation = "paymentsReviseContractRent"
	depositRequestOp       operation = "depositsRequestRefund"
	depositApproveOp       operation = "depositsApproveRefund"
	depositRefundOp        operation = "depositsRefund"
	depositRefuseOp        operation = "depositsRefuseRefund"
)

// Service is the part of the payment ledger the handler drives.
type Service interface {
	Get(ctx context.Context, id string) (service.RentPayment, error)
	List(ctx context.Context, f service.Filter) ([]service.RentPayment, error)
	Generate(ctx context.Context, contractID string, periods int) ([]service.RentPayment, error)
	GenerateMonth(ctx context.Context, year int, month time.Month) (batch.Report, error)
	EvaluateLateStatuses(ctx context.Context, now time.Time) (batch.Report, error)
	RecordPayment(ctx context.Context, id string, input service.RecordPaymentInput) (service.RentPayment, error)
	MarkUnpaid(ctx context.Context, id string) (service.RentPayment, error)
	ApplyLateFee(ctx context.Context, id string, rate decimal.Decimal) (service.RentPayment, error)
	WaiveLateFee(ctx context.Context, id, reason string) (service.RentPayment, error)
	ReviseRent(ctx context.Context, id string, input service.ReviseInput) (service.RentPayment, error)
	ReviseContractRent(ctx context.Context, contractID string, input service.ReviseInput) (batch.Report, error)
	RequestRefund(ctx context.Context, id, reason string) (service.RentPayment, error)
	ApproveRefund(ctx context.Context, id string) (service.RentPayment, error)
	RefundDeposit(ctx context.Context, id string, input service.RefundInput) (service.RentPayment, error)
	RefuseRefund(ctx context.Context, id, reason string) (service.RentPayment, error)
}

// Handler exposes the payment ledger and deposit workflow over JSON.
type Handler struct {
	svc    Service
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Handler instance.
func New(svc Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("payments service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Routes mounts the payment endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/generate", h.generate)
	r.Post("/generate-month", h.generateMonth)
	r.Post("/evaluate-late", h.evaluateLate)
	r.Post("/contracts/{contractId}/revise-rent", h.reviseContract)
	r.Route("/{paymentId}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Post("/pay", h.pay)
		r.Post("/unpay", h.unpay)
		r.Post("/late-fee", h.applyLateFee)
		r.Post("/late-fee/waive", h.waiveLateFee)
		r.Post("/revise", h.revise)
		r.Route("/deposit", func(r chi.Router) {
			r.Post("/request", h.requestRefund)
			r.Post("/approve", h.approveRefund)
			r.Post("/refund", h.refundDeposit)
			r.Post("/refuse", h.refuseRefund)
		})
	})
}

type generateRequest struct {
	ContractID string `json:"contractId"`
	Periods    int    `json:"periods"`
}

type generateMonthRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type asOfRequest struct {
	AsOf string `json:"asOf"`
}

type payRequest struct {
	PaymentMethod string          `json:"paymentMethod"`
	Amount        decimal.Decimal `json:"amount"`
	PaidDate      *string         `json:"paidDate"`
}

type lateFeeRequest struct {
	Rate decimal.Decimal `json:"rate"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type reviseRequest struct {
	NewAmount     decimal.Decimal `json:"newAmount"`
	EffectiveDate string          `json:"effectiveDate"`
	Reason        string          `json:"reason"`
}

type refundRequest struct {
	RefundAmount decimal.Decimal `json:"refundAmount"`
	RefundDate   string          `json:"refundDate"`
	Notes        string          `json:"notes"`
}

type depositResponse struct {
	Amount         decimal.Decimal  `json:"amount"`
	Status         string           `json:"status"`
	RequestReason  *string          `json:"requestReason,omitempty"`
	RequestedAt    *time.Time       `json:"requestedAt,omitempty"`
	RequestedBy    *string          `json:"requestedBy,omitempty"`
	ApprovedAt     *time.Time       `json:"approvedAt,omitempty"`
	ApprovedBy     *string          `json:"approvedBy,omitempty"`
	RefundAmount   *decimal.Decimal `json:"refundAmount,omitempty"`
	WithheldAmount *decimal.Decimal `json:"withheldAmount,omitempty"`
	RefundDate     *string          `json:"refundDate,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
	RefusalReason  *string          `json:"refusalReason,omitempty"`
	RefusedAt      *time.Time       `json:"refusedAt,omitempty"`
}

type paymentResponse struct {
	ID              string           `json:"id"`
	ContractID      string           `json:"contractId"`
	TenantID        string           `json:"tenantId"`
	PropertyID      string           `json:"propertyId"`
	Currency        string           `json:"currency"`
	Amount          decimal.Decimal  `json:"amount"`
	AmountPaid      decimal.Decimal  `json:"amountPaid"`
	RemainingAmount decimal.Decimal  `json:"remainingAmount"`
	DueDate         string           `json:"dueDate"`
	PaidDate        *string          `json:"paidDate,omitempty"`
	PaymentMethod   *string          `json:"paymentMethod,omitempty"`
	LateFee         *decimal.Decimal `json:"lateFee,omitempty"`
	PenaltyApplied  bool             `json:"penaltyApplied"`
	IsPartial       bool             `json:"isPartial"`
	Description     *string          `json:"description,omitempty"`
	PreviousAmount  *decimal.Decimal `json:"previousAmount,omitempty"`
	RevisionNote    *string          `json:"revisionNote,omitempty"`
	RevisedAt       *time.Time       `json:"revisedAt,omitempty"`
	LateFeeWaiver   *string          `json:"lateFeeWaiver,omitempty"`
	Status          string           `json:"status"`
	Deposit         *depositResponse `json:"deposit,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

type listResponse struct {
	Items []paymentResponse `json:"items"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := buildFilter(r)
	if err != nil {
		h.fail(w, r, listOperation, err)
		return
	}
	rows, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, listOperation, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, listResponse{Items: toResponses(rows)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		h.fail(w, r, getOperation, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, generateOperation, err)
		return
	}
	rows, err := h.svc.Generate(r.Context(), body.ContractID, body.Periods)
	if err != nil {
		h.fail(w, r, generateOperation, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, listResponse{Items: toResponses(rows)})
}

func (h *Handler) generateMonth(w http.ResponseWriter, r *http.Request) {
	var body generateMonthRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, generateMonthOperation, err)
		return
	}
	report, err := h.svc.GenerateMonth(r.Context(), body.Year, time.Month(body.Month))
	if err != nil {
		h.fail(w, r, generateMonthOperation, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) evaluateLate(w http.ResponseWriter, r *http.Request) {
	var body asOfRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, evaluateLateOperation, err)
		return
	}
	asOf, err := httpapi.ParseDate("asOf", body.AsOf)
	if err != nil {
		h.fail(w, r, evaluateLateOperation, err)
		return
	}
	if asOf.IsZero() {
		asOf = h.now()
	}
	report, err := h.svc.EvaluateLateStatuses(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, evaluateLateOperation, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	var body payRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, payOperation, err)
		return
	}
	paidDate, err := httpapi.ParseOptionalDate("paidDate", body.PaidDate)
	if err != nil {
		h.fail(w, r, payOperation, err)
		return
	}
	p, err := h.svc.RecordPayment(r.Context(), chi.URLParam(r, "paymentId"), service.RecordPaymentInput{
		Method:         service.PaymentMethod(body.PaymentMethod),
		Amount:         body.Amount,
		PaidDate:       paidDate,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	h.respond(w, r, payOperation, p, err)
}

func (h *Handler) unpay(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.MarkUnpaid(r.Context(), chi.URLParam(r, "paymentId"))
	h.respond(w, r, unpayOperation, p, err)
}

func (h *Handler) applyLateFee(w http.ResponseWriter, r *http.Request) {
	var body lateFeeRequest
	if r.ContentLength != 0 {
		if err := httpapi.DecodeJSON(r, &body); err != nil {
			h.fail(w, r, lateFeeOperation, err)
			return
		}
	}
	p, err := h.svc.ApplyLateFee(r.Context(), chi.URLParam(r, "paymentId"), body.Rate)
	h.respond(w, r, lateFeeOperation, p, err)
}

func (h *Handler) waiveLateFee(w http.ResponseWriter, r *http.Request) {
	var body reasonRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, waiveOperation, err)
		return
	}
	p, err := h.svc.WaiveLateFee(r.Context(), chi.URLParam(r, "paymentId"), body.Reason)
	h.respond(w, r, waiveOperation, p, err)
}

func (h *Handler) revise(w http.ResponseWriter, r *http.Request) {
	input, err := decodeRevision(r)
	if err != nil {
		h.fail(w, r, reviseOperation, err)
		return
	}
	p, err := h.svc.ReviseRent(r.Context(), chi.URLParam(r, "paymentId"), input)
	h.respond(w, r, reviseOperation, p, err)
}

func (h *Handler) reviseContract(w http.ResponseWriter, r *http.Request) {
	input, err := decodeRevision(r)
	if err != nil {
		h.fail(w, r, reviseContractOp, err)
		return
	}
	report, err := h.svc.ReviseContractRent(r.Context(), chi.URLParam(r, "contractId"), input)
	if err != nil {
		h.fail(w, r, reviseContractOp, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) requestRefund(w http.ResponseWriter, r *http.Request) {
	var body reasonRequest
	if r.ContentLength != 0 {
		if err := httpapi.DecodeJSON(r, &body); err != nil {
			h.fail(w, r, depositRequestOp, err)
			return
		}
	}
	p, err := h.svc.RequestRefund(r.Context(), chi.URLParam(r, "paymentId"), body.Reason)
	h.respond(w, r, depositRequestOp, p, err)
}

func (h *Handler) approveRefund(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.ApproveRefund(r.Context(), chi.URLParam(r, "paymentId"))
	h.respond(w, r, depositApproveOp, p, err)
}

func (h *Handler) refundDeposit(w http.ResponseWriter, r *http.Request) {
	var body refundRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, depositRefundOp, err)
		return
	}
	date, err := httpapi.ParseDate("refundDate", body.RefundDate)
	if err != nil {
		h.fail(w, r, depositRefundOp, err)
		return
	}
	p, err := h.svc.RefundDeposit(r.Context(), chi.URLParam(r, "paymentId"), service.RefundInput{
		Amount: body.RefundAmount,
		Date:   date,
		Notes:  body.Notes,
	})
	h.respond(w, r, depositRefundOp, p, err)
}

func (h *Handler) refuseRefund(w http.ResponseWriter, r *http.Request) {
	var body reasonRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, depositRefuseOp, err)
		return
	}
	p, err := h.svc.RefuseRefund(r.Context(), chi.URLParam(r, "paymentId"), body.Reason)
	h.respond(w, r, depositRefuseOp, p, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, op operation, p service.RentPayment, err error) {
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResponse(p))
}

func decodeRevision(r *http.Request) (service.ReviseInput, error) {
	var body reviseRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		return service.ReviseInput{}, err
	}
	effective, err := httpapi.ParseDate("effectiveDate", body.EffectiveDate)
	if err != nil {
		return service.ReviseInput{}, err
	}
	return service.ReviseInput{NewAmount: body.NewAmount, EffectiveDate: effective, Reason: body.Reason}, nil
}

func buildFilter(r *http.Request) (service.Filter, error) {
	q := r.URL.Query()
	f := service.Filter{
		ContractID: q.Get("contractId"),
		TenantID:   q.Get("tenantId"),
		PropertyID: q.Get("propertyId"),
		Currency:   strings.ToUpper(q.Get("currency")),
	}
	statuses, err := httpapi.QueryList(r, "status")
	if err != nil {
		return service.Filter{}, err
	}
	for _, raw := range statuses {
		st, err := service.ParsePaymentStatus(raw)
		if err != nil {
			return service.Filter{}, domainerr.Invalid("status", err.Error())
		}
		f.Statuses = append(f.Statuses, st)
	}
	if f.DueFrom, err = httpapi.QueryDate(r, "dueFrom"); err != nil {
		return service.Filter{}, err
	}
	if f.DueTo, err = httpapi.QueryDate(r, "dueTo"); err != nil {
		return service.Filter{}, err
	}
	return f, nil
}

func toResponses(rows []service.RentPayment) []paymentResponse {
	out := make([]paymentResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, toResponse(p))
	}
	return out
}

func toResponse(p service.RentPayment) paymentResponse {
	resp := paymentResponse{
		ID:              p.ID,
		ContractID:      p.ContractID,
		TenantID:        p.TenantID,
		PropertyID:      p.PropertyID,
		Currency:        p.Currency,
		Amount:          p.Amount,
		AmountPaid:      p.AmountPaid,
		RemainingAmount: p.RemainingAmount,
		DueDate:         httpapi.FormatDate(p.DueDate),
		PaidDate:        httpapi.FormatOptionalDate(p.PaidDate),
		LateFee:         p.LateFee,
		PenaltyApplied:  p.PenaltyApplied,
		IsPartial:       p.IsPartial,
		Description:     p.Description,
		PreviousAmount:  p.PreviousAmount,
		RevisionNote:    p.RevisionNote,
		RevisedAt:       p.RevisedAt,
		LateFeeWaiver:   p.LateFeeWaiver,
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.PaymentMethod != nil {
		m := string(*p.PaymentMethod)
		resp.PaymentMethod = &m
	}
	if d := p.Deposit; d != nil {
		resp.Deposit = &depositResponse{
			Amount:         d.Amount,
			Status:         string(d.Status),
			RequestReason:  d.RequestReason,
			RequestedAt:    d.RequestedAt,
			RequestedBy:    d.RequestedBy,
			ApprovedAt:     d.ApprovedAt,
			ApprovedBy:     d.ApprovedBy,
			RefundAmount:   d.RefundAmount,
			WithheldAmount: d.WithheldAmount,
			RefundDate:     httpapi.FormatOptionalDate(d.RefundDate),
			Notes:          d.Notes,
			RefusalReason:  d.RefusalReason,
			RefusedAt:      d.RefusedAt,
		}
	}
	return resp
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op operation, err error) {
	httpapi.WriteError(w, r, h.logger, domain, string(op), err)
}
