package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-rentals/domains/leases/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/batch"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/httpapi"
)

const domain = "leases"

type operation string

const (
	createOperation    operation = "leasesCreate"
	listOperation      operation = "leasesList"
	getOperation       operation = "leasesGet"
	deleteOperation    operation = "leasesDelete"
	renewOperation     operation = "leasesRenew"
	terminateOperation operation = "leasesTerminate"
	expireOperation    operation = "leasesExpire"
)

// Service is the part of the contract manager the handler drives.
type Service interface {
	Create(ctx context.Context, input service.CreateInput, property service.PropertySnapshot, tenants []service.TenantSnapshot) (service.LeaseContract, error)
	Renew(ctx context.Context, input service.RenewInput) (service.LeaseContract, error)
	Terminate(ctx context.Context, input service.TerminateInput) (service.LeaseContract, error)
	Get(ctx context.Context, id string) (service.LeaseContract, error)
	List(ctx context.Context, opts service.ListOptions) (service.ListResult, error)
	Delete(ctx context.Context, id string) error
	ExpireDue(ctx context.Context, now time.Time) (batch.Report, error)
}

// Handler exposes lease contracts over JSON.
type Handler struct {
	svc    Service
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Handler instance.
func New(svc Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("leases service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Routes mounts the lease endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Post("/expire", h.expire)
	r.Route("/{contractId}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.delete)
		r.Post("/renew", h.renew)
		r.Post("/terminate", h.terminate)
	})
}

type durationDTO struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

type createRequest struct {
	Type          string                   `json:"type"`
	PropertyID    string                   `json:"propertyId"`
	TenantIDs     []string                 `json:"tenantIds"`
	StartDate     string                   `json:"startDate"`
	Duration      durationDTO              `json:"duration"`
	Currency      string                   `json:"currency"`
	RentAmount    decimal.Decimal          `json:"rentAmount"`
	DepositAmount decimal.Decimal          `json:"depositAmount"`
	PaymentDueDay int                      `json:"paymentDueDay"`
	Clauses       string                   `json:"clauses"`
	Property      service.PropertySnapshot `json:"property"`
	Tenants       []service.TenantSnapshot `json:"tenants"`
}

type renewRequest struct {
	StartDate  *string          `json:"startDate"`
	Duration   *durationDTO     `json:"duration"`
	RentAmount *decimal.Decimal `json:"rentAmount"`
	Clauses    *string          `json:"clauses"`
}

type terminateRequest struct {
	TerminationDate string `json:"terminationDate"`
	Reason          string `json:"reason"`
}

type expireRequest struct {
	AsOf string `json:"asOf"`
}

type contractResponse struct {
	ID                string                   `json:"id"`
	Type              string                   `json:"type"`
	PropertyID        string                   `json:"propertyId"`
	Property          service.PropertySnapshot `json:"property"`
	TenantIDs         []string                 `json:"tenantIds"`
	Tenants           []service.TenantSnapshot `json:"tenants"`
	Colocation        bool                     `json:"colocation"`
	StartDate         string                   `json:"startDate"`
	EndDate           string                   `json:"endDate"`
	Duration          calendar.Duration        `json:"duration"`
	Currency          string                   `json:"currency"`
	RentAmount        decimal.Decimal          `json:"rentAmount"`
	DepositAmount     decimal.Decimal          `json:"depositAmount"`
	PaymentDueDay     int                      `json:"paymentDueDay"`
	Clauses           string                   `json:"clauses,omitempty"`
	Status            string                   `json:"status"`
	RenewedFrom       *string                  `json:"renewedFrom,omitempty"`
	RenewedTo         *string                  `json:"renewedTo,omitempty"`
	TerminatedAt      *string                  `json:"terminatedAt,omitempty"`
	TerminationReason *string                  `json:"terminationReason,omitempty"`
	CreatedAt         time.Time                `json:"createdAt"`
	UpdatedAt         time.Time                `json:"updatedAt"`
	CreatedBy         string                   `json:"createdBy"`
}

type listResponse struct {
	Items      []contractResponse `json:"items"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalItems int                `json:"totalItems"`
	TotalPages int                `json:"totalPages"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, createOperation, err)
		return
	}
	start, err := httpapi.ParseDate("startDate", body.StartDate)
	if err != nil {
		h.fail(w, r, createOperation, err)
		return
	}

	input := service.CreateInput{
		Type:          service.ContractType(body.Type),
		PropertyID:    body.PropertyID,
		TenantIDs:     body.TenantIDs,
		StartDate:     start,
		Duration:      calendar.Duration{Value: body.Duration.Value, Unit: calendar.Unit(body.Duration.Unit)},
		Currency:      body.Currency,
		RentAmount:    body.RentAmount,
		DepositAmount: body.DepositAmount,
		PaymentDueDay: body.PaymentDueDay,
		Clauses:       body.Clauses,
	}

	created, err := h.svc.Create(r.Context(), input, body.Property, body.Tenants)
	if err != nil {
		h.fail(w, r, createOperation, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/leases/%s", created.ID))
	httpapi.WriteJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	opts, err := buildListOptions(r)
	if err != nil {
		h.fail(w, r, listOperation, err)
		return
	}

	result, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.fail(w, r, listOperation, err)
		return
	}

	items := make([]contractResponse, 0, len(result.Contracts))
	for _, c := range result.Contracts {
		items = append(items, toResponse(c))
	}
	httpapi.WriteJSON(w, http.StatusOK, listResponse{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "contractId"))
	if err != nil {
		h.fail(w, r, getOperation, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "contractId")); err != nil {
		h.fail(w, r, deleteOperation, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) renew(w http.ResponseWriter, r *http.Request) {
	var body renewRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, renewOperation, err)
		return
	}
	start, err := httpapi.ParseOptionalDate("startDate", body.StartDate)
	if err != nil {
		h.fail(w, r, renewOperation, err)
		return
	}

	input := service.RenewInput{
		ContractID: chi.URLParam(r, "contractId"),
		StartDate:  start,
		RentAmount: body.RentAmount,
		Clauses:    body.Clauses,
	}
	if body.Duration != nil {
		input.Duration = &calendar.Duration{Value: body.Duration.Value, Unit: calendar.Unit(body.Duration.Unit)}
	}

	renewal, err := h.svc.Renew(r.Context(), input)
	if err != nil {
		h.fail(w, r, renewOperation, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/leases/%s", renewal.ID))
	httpapi.WriteJSON(w, http.StatusCreated, toResponse(renewal))
}

func (h *Handler) terminate(w http.ResponseWriter, r *http.Request) {
	var body terminateRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, terminateOperation, err)
		return
	}
	date, err := httpapi.ParseDate("terminationDate", body.TerminationDate)
	if err != nil {
		h.fail(w, r, terminateOperation, err)
		return
	}

	c, err := h.svc.Terminate(r.Context(), service.TerminateInput{
		ContractID:      chi.URLParam(r, "contractId"),
		TerminationDate: date,
		Reason:          body.Reason,
	})
	if err != nil {
		h.fail(w, r, terminateOperation, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) expire(w http.ResponseWriter, r *http.Request) {
	var body expireRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, expireOperation, err)
		return
	}
	asOf, err := httpapi.ParseDate("asOf", body.AsOf)
	if err != nil {
		h.fail(w, r, expireOperation, err)
		return
	}
	if asOf.IsZero() {
		asOf = h.now()
	}

	report, err := h.svc.ExpireDue(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, expireOperation, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, report)
}

func buildListOptions(r *http.Request) (service.ListOptions, error) {
	opts := service.ListOptions{
		PropertyID: httpapi.QueryString(r, "propertyId"),
		TenantID:   httpapi.QueryString(r, "tenantId"),
	}

	var err error
	if opts.Page, err = httpapi.QueryInt(r, "page"); err != nil {
		return service.ListOptions{}, err
	}
	if opts.PageSize, err = httpapi.QueryInt(r, "pageSize"); err != nil {
		return service.ListOptions{}, err
	}
	if raw := httpapi.QueryString(r, "status"); raw != nil {
		status, err := service.ParseContractStatus(*raw)
		if err != nil {
			return service.ListOptions{}, domainerr.Invalid("status", err.Error())
		}
		opts.Status = &status
	}
	return opts, nil
}

func toResponse(c service.LeaseContract) contractResponse {
	return contractResponse{
		ID:                c.ID,
		Type:              string(c.Type),
		PropertyID:        c.PropertyID,
		Property:          c.Property,
		TenantIDs:         c.TenantIDs,
		Tenants:           c.Tenants,
		Colocation:        c.IsColocation(),
		StartDate:         httpapi.FormatDate(c.StartDate),
		EndDate:           httpapi.FormatDate(c.EndDate),
		Duration:          c.Duration,
		Currency:          c.Currency,
		RentAmount:        c.RentAmount,
		DepositAmount:     c.DepositAmount,
		PaymentDueDay:     c.PaymentDueDay,
		Clauses:           c.Clauses,
		Status:            string(c.Status),
		RenewedFrom:       c.RenewedFrom,
		RenewedTo:         c.RenewedTo,
		TerminatedAt:      httpapi.FormatOptionalDate(c.TerminatedAt),
		TerminationReason: c.TerminationReason,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		CreatedBy:         c.CreatedBy,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op operation, err error) {
	httpapi.WriteError(w, r, h.logger, domain, string(op), err)
}
