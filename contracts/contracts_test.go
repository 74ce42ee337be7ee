package contracts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/stretchr/testify/require"
)

func TestLoadEveryContract(t *testing.T) {
	t.Parallel()

	wantOps := map[string][]string{
		Leases: {
			"leasesList", "leasesCreate", "leasesExpire", "leasesGet",
			"leasesDelete", "leasesRenew", "leasesTerminate",
		},
		Payments: {
			"paymentsList", "paymentsGenerate", "paymentsGenerateMonth", "paymentsEvaluateLate",
			"paymentsReviseContract", "paymentsGet", "paymentsPay", "paymentsUnpay",
			"paymentsApplyLateFee", "paymentsWaiveLateFee", "paymentsRevise",
			"depositsRequestRefund", "depositsApproveRefund", "depositsRefund", "depositsRefuseRefund",
		},
		Statistics: {
			"statisticsCollectionRate", "statisticsMonthly", "statisticsOverdue", "statisticsContractSummary",
		},
	}

	require.ElementsMatch(t, Names(), []string{Leases, Payments, Statistics})
	for _, name := range Names() {
		doc, err := Load(context.Background(), name)
		require.NoError(t, err, name)
		require.Equal(t, "/api/v1", doc.Servers[0].URL)

		var ops []string
		for _, item := range doc.Paths.Map() {
			for _, op := range item.Operations() {
				ops = append(ops, op.OperationID)
			}
		}
		require.ElementsMatch(t, wantOps[name], ops, name)
	}
}

func TestLoadUnknownContract(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), "billing.yaml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "billing.yaml")
}

func TestPaymentsContractValidatesRequests(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	doc, err := Load(ctx, Payments)
	require.NoError(t, err)
	router, err := gorillamux.NewRouter(doc)
	require.NoError(t, err)

	validate := func(req *http.Request) error {
		route, params, err := router.FindRoute(req)
		require.NoError(t, err, req.URL.String())
		return openapi3filter.ValidateRequest(ctx, &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: params,
			Route:      route,
			Options:    &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc},
		})
	}
	jsonRequest := func(path, body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	// Amounts are accepted as decimal strings or JSON numbers.
	require.NoError(t, validate(jsonRequest("/api/v1/payments/p-1/pay", `{"paymentMethod":"cash","amount":"1500.50"}`)))
	require.NoError(t, validate(jsonRequest("/api/v1/payments/p-1/pay", `{"paymentMethod":"mobile_money","amount":1500}`)))
	require.Error(t, validate(jsonRequest("/api/v1/payments/p-1/pay", `{"paymentMethod":"cash","amount":"15 00"}`)))
	require.Error(t, validate(jsonRequest("/api/v1/payments/p-1/pay", `{"paymentMethod":"barter","amount":"10"}`)))
	require.Error(t, validate(jsonRequest("/api/v1/payments/p-1/pay", `{"amount":"10"}`)))

	// Optional bodies may be omitted entirely.
	require.NoError(t, validate(httptest.NewRequest(http.MethodPost, "/api/v1/payments/p-1/late-fee", nil)))
	require.NoError(t, validate(httptest.NewRequest(http.MethodPost, "/api/v1/payments/p-1/deposit/request", nil)))
	require.Error(t, validate(httptest.NewRequest(http.MethodPost, "/api/v1/payments/p-1/deposit/refund", nil)))

	require.NoError(t, validate(httptest.NewRequest(http.MethodGet, "/api/v1/payments?status=pending,late", nil)))
	require.Error(t, validate(httptest.NewRequest(http.MethodGet, "/api/v1/payments?status=settled", nil)))

	// Literal segments win over the payment id template.
	route, params, err := router.FindRoute(httptest.NewRequest(http.MethodPost, "/api/v1/payments/contracts/LC-1/revise-rent", nil))
	require.NoError(t, err)
	require.Equal(t, "paymentsReviseContract", route.Operation.OperationID)
	require.Equal(t, "LC-1", params["contractId"])
}

func TestRawMatchesEmbeddedDocument(t *testing.T) {
	t.Parallel()

	raw, err := Raw(Statistics)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "openapi: 3.0.3"))

	_, err = Raw("../go.mod")
	require.Error(t, err)
}
