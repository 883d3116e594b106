// Package exports is a batch-export webhook service: senders request a
// report for a reference date, an admission controller deduplicates the
// request into a durable ledger, and an asynchronous worker builds the
// artifact, uploads it to object storage, and delivers a short-lived signed
// URL to the sender's webhook endpoint.
//
// The core package holds the admission controller, the request ledger
// contracts, and the fulfillment worker. The report package builds the CSV
// artifacts, store/sql persists the ledger and source datasets with bun,
// storage/minio implements the artifact store, webhooks delivers the signed
// URL callbacks, auth covers sender onboarding and token issuance, and
// retention sweeps expired artifacts.
package exports
