package taxonomy

// builtinRegistryVersion is the version of the compiled-in code table.
// Bump it whenever builtinEntries grows. Entries are append-only.
const builtinRegistryVersion = 3

// builtinEntries is the compiled-in error code table for the Fixzit modules:
// WO (work orders), LEASE (leasing), FIN (finance), HR, MKT (marketplace)
// and the shared AUTH/CORE surfaces.
var builtinEntries = []Entry{
	// Work orders
	{Code: "WO-API-SAVE-001", Category: CategoryAPI, Severity: SeverityError, HTTPStatus: 500, Title: "Work order save failed"},
	{Code: "WO-API-LOAD-002", Category: CategoryAPI, Severity: SeverityError, HTTPStatus: 500, Title: "Work order load failed"},
	{Code: "WO-API-ASSIGN-003", Category: CategoryAPI, Severity: SeverityError, HTTPStatus: 409, Title: "Work order assignment conflict"},
	{Code: "WO-VAL-FIELD-010", Category: CategoryValidation, Severity: SeverityWarn, HTTPStatus: 422, Title: "Work order validation failed"},
	{Code: "WO-DB-QUERY-020", Category: CategoryDatabase, Severity: SeverityCritical, HTTPStatus: 500, Title: "Work order database query failed"},
	{Code: "WO-UI-RENDER-030", Category: CategoryUI, Severity: SeverityInfo, HTTPStatus: 200, Title: "Work order view rendering degraded"},

	// Leasing
	{Code: "LEASE-API-SAVE-001", Category: CategoryAPI, Severity: SeverityError, HTTPStatus: 500, Title: "Lease contract save failed"},
	{Code: "LEASE-API-RENEW-002", Category: CategoryAPI, Severity: SeverityError, HTTPStatus: 500, Title: "Lease renewal failed"},
	{Code: "LEASE-VAL-DATES-010", Category: CategoryValidation, Severity: SeverityWarn, HTTPStatus: 422, Title: "Lease date validation failed"},
	{Code: "LEASE-DB-LOCK-020", Category: CategoryDatabase, Severity: SeverityCritical, HTTPStatus: 500, Title: "Lease contract lock contention"},

	// Finance
	{Code: "FIN-API-INVOICE-001", Category: CategoryAPI, Severity: SeverityError, HTTPStatus: 500, Title: "Invoice generation failed"},
	{Code: "FIN-PAY-GATEWAY-002", Category: CategoryPayment, Severity: SeverityCritical, HTTPStatus: 502, Title: "Payment gateway unreachable"},
	{Code: "FIN-PAY-DECLINE-003", Category: CategoryPayment, Severity: SeverityWarn, HTTPStatus: 402, Title: "Payment declined"},
	{Code: "FIN-DB-LEDGER-020", Category: CategoryDatabase, Severity: SeverityCritical, HTTPStatus: 500, Title: "Ledger write failed"},
	{Code: "FIN-INT-TAXAPI-030", Category: CategoryIntegration, Severity: SeverityError, HTTPStatus: 502, Title: "Tax authority integration failed"},

	// HR
	{Code: "HR-API-PAYROLL-001", Category: CategoryAPI, Severity: SeverityCritical, HTTPStatus: 500, Title: "Payroll run failed"},
	{Code: "HR-VAL-CONTRACT-010", Category: CategoryValidation, Severity: SeverityWarn, HTTPStatus: 422, Title: "Employment contract validation failed"},

	// Marketplace
	{Code: "MKT-API-LIST-001", Category: CategoryAPI, Severity: SeverityError, HTTPStatus: 500, Title: "Marketplace listing failed"},
	{Code: "MKT-NET-VENDOR-002", Category: CategoryNetwork, Severity: SeverityError, HTTPStatus: 504, Title: "Vendor endpoint timeout"},
	{Code: "MKT-INT-CATALOG-030", Category: CategoryIntegration, Severity: SeverityWarn, HTTPStatus: 502, Title: "Catalog sync degraded"},

	// Auth and shared surfaces
	{Code: "AUTH-API-LOGIN-001", Category: CategoryAuth, Severity: SeverityError, HTTPStatus: 401, Title: "Login failed"},
	{Code: "AUTH-API-TOKEN-002", Category: CategoryAuth, Severity: SeverityWarn, HTTPStatus: 401, Title: "Token refresh failed"},
	{Code: "AUTHZ-API-DENY-001", Category: CategoryAuthz, Severity: SeverityWarn, HTTPStatus: 403, Title: "Permission denied"},
	{Code: "CORE-NET-UPSTREAM-001", Category: CategoryNetwork, Severity: SeverityError, HTTPStatus: 502, Title: "Upstream service unreachable"},
	{Code: "CORE-DB-CONN-001", Category: CategoryDatabase, Severity: SeverityCritical, HTTPStatus: 500, Title: "Database connection lost"},
	{Code: "CORE-VAL-REPORT-001", Category: CategoryValidation, Severity: SeverityWarn, HTTPStatus: 400, Title: "Malformed error report"},
	{Code: "CORE-API-INGEST-001", Category: CategoryAPI, Severity: SeverityError, HTTPStatus: 500, Title: "Error report processing failed"},
}
