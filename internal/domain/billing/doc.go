// Package billing provides the domain model for water abstraction charge
// batches.
//
// This package implements the billing bounded context, which is responsible
// for:
//   - Modelling batches, invoices, licences and transactions
//   - Intersecting licence, charge version and financial year dates into
//     charge periods
//   - Fingerprinting transactions so supplementary runs can tell changed
//     billing facts from unchanged ones
//
// Key Aggregates:
//   - Batch: A billing run over one region and a span of financial years
//   - Invoice: Transactions grouped by billing account and year
//
// Value Objects:
//   - ChargingFacts: The canonical charging record behind a fingerprint
//   - ChargeVersionYear: One charge version billed for one year
//
// The billing domain integrates with:
//   - The charge module: External ledger that calculates charge values
//   - CRM reference data: Billing accounts and contact addresses
package billing
