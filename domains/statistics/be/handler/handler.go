package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-rentals/domains/statistics/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/httpapi"
)

const domain = "statistics"

type operation string

const (
	collectionRateOperation  operation = "statisticsCollectionRate"
	monthlyOperation         operation = "statisticsMonthlyBreakdown"
	overdueOperation         operation = "statisticsOverdue"
	contractSummaryOperation operation = "statisticsContractSummary"
)

// Handler exposes the reporting projections.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("statistics service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Routes mounts the statistics endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/collection-rate", h.collectionRate)
	r.Get("/monthly", h.monthly)
	r.Get("/overdue", h.overdue)
	r.Get("/contracts/{contractId}", h.contractSummary)
}

type monthlyResponse struct {
	Items []service.MonthBucket `json:"items"`
}

type overdueItem struct {
	PaymentID   string           `json:"paymentId"`
	ContractID  string           `json:"contractId"`
	TenantID    string           `json:"tenantId"`
	PropertyID  string           `json:"propertyId"`
	Currency    string           `json:"currency"`
	DueDate     string           `json:"dueDate"`
	Status      string           `json:"status"`
	Remaining   decimal.Decimal  `json:"remainingAmount"`
	LateFee     *decimal.Decimal `json:"lateFee,omitempty"`
	Outstanding decimal.Decimal  `json:"outstanding"`
	DaysOverdue int              `json:"daysOverdue"`
}

type overdueResponse struct {
	AsOf  string        `json:"asOf"`
	Items []overdueItem `json:"items"`
}

type contractSummaryResponse struct {
	ContractID  string          `json:"contractId"`
	Currency    string          `json:"currency"`
	Obligations int             `json:"obligations"`
	Expected    decimal.Decimal `json:"expected"`
	Received    decimal.Decimal `json:"received"`
	Outstanding decimal.Decimal `json:"outstanding"`
	LateFees    decimal.Decimal `json:"lateFees"`
	ByStatus    map[string]int  `json:"byStatus"`
	NextDue     *string         `json:"nextDue,omitempty"`
}

func (h *Handler) collectionRate(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		h.fail(w, r, collectionRateOperation, err)
		return
	}
	rate, err := h.svc.CollectionRate(r.Context(), window, parseFilter(r))
	if err != nil {
		h.fail(w, r, collectionRateOperation, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, rate)
}

func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		h.fail(w, r, monthlyOperation, err)
		return
	}
	buckets, err := h.svc.MonthlyBreakdown(r.Context(), window, parseFilter(r))
	if err != nil {
		h.fail(w, r, monthlyOperation, err)
		return
	}
	if buckets == nil {
		buckets = []service.MonthBucket{}
	}
	httpapi.WriteJSON(w, http.StatusOK, monthlyResponse{Items: buckets})
}

func (h *Handler) overdue(w http.ResponseWriter, r *http.Request) {
	at, err := httpapi.QueryDate(r, "asOf")
	if err != nil {
		h.fail(w, r, overdueOperation, err)
		return
	}
	asOf := h.now()
	if at != nil {
		asOf = *at
	}
	rows, err := h.svc.OverduePayments(r.Context(), asOf, parseFilter(r))
	if err != nil {
		h.fail(w, r, overdueOperation, err)
		return
	}

	items := make([]overdueItem, 0, len(rows))
	for _, o := range rows {
		p := o.Payment
		items = append(items, overdueItem{
			PaymentID:   p.ID,
			ContractID:  p.ContractID,
			TenantID:    p.TenantID,
			PropertyID:  p.PropertyID,
			Currency:    p.Currency,
			DueDate:     httpapi.FormatDate(p.DueDate),
			Status:      string(p.Status),
			Remaining:   p.RemainingAmount,
			LateFee:     p.LateFee,
			Outstanding: o.Outstanding,
			DaysOverdue: o.DaysOverdue,
		})
	}
	httpapi.WriteJSON(w, http.StatusOK, overdueResponse{AsOf: httpapi.FormatDate(asOf), Items: items})
}

func (h *Handler) contractSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.ContractSummary(r.Context(), chi.URLParam(r, "contractId"))
	if err != nil {
		h.fail(w, r, contractSummaryOperation, err)
		return
	}
	byStatus := make(map[string]int, len(summary.ByStatus))
	for st, n := range summary.ByStatus {
		byStatus[string(st)] = n
	}
	httpapi.WriteJSON(w, http.StatusOK, contractSummaryResponse{
		ContractID:  summary.ContractID,
		Currency:    summary.Currency,
		Obligations: summary.Obligations,
		Expected:    summary.Expected,
		Received:    summary.Received,
		Outstanding: summary.Outstanding,
		LateFees:    summary.LateFees,
		ByStatus:    byStatus,
		NextDue:     httpapi.FormatOptionalDate(summary.NextDue),
	})
}

func parseWindow(r *http.Request) (service.Window, error) {
	from, err := httpapi.QueryDate(r, "from")
	if err != nil {
		return service.Window{}, err
	}
	to, err := httpapi.QueryDate(r, "to")
	if err != nil {
		return service.Window{}, err
	}
	var w service.Window
	if from != nil {
		w.From = *from
	}
	if to != nil {
		w.To = *to
	}
	return w, nil
}

func parseFilter(r *http.Request) service.Filter {
	q := r.URL.Query()
	return service.Filter{
		Currency:   q.Get("currency"),
		ContractID: q.Get("contractId"),
		PropertyID: q.Get("propertyId"),
		TenantID:   q.Get("tenantId"),
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op operation, err error) {
	httpapi.WriteError(w, r, h.logger, domain, string(op), err)
}
