// Package dca provides the types and functions to track the dollar-cost
// averaging of a single coin: the regular purchase of a fixed fiat amount,
// whatever the price.
//
// The core functionalities include:
//   - Transactions: purchases recorded with their date, exchange, fiat
//     amount, coin amount and fee, validated before they are stored.
//   - Storage: the Store interface with paging, most recent first, and an
//     in-memory implementation. The ledger and sqlstore packages provide
//     persistent ones, CachedStore caches any of them.
//   - Valuation: the Summary of an owner's purchases, and the Metrics derived
//     from it at the current Quote, in the base or the secondary currency.
//   - Prices: the Poller refreshes the latest Quote from a Feed, keeping
//     the last known price when a request fails.
//   - Dashboard: a controller that combines the session, the store and the
//     poller into an immutable View, updated on every change.
//
// This package serves as the foundational logic for the `dcat` command-line
// tool and its JSON API.
package dca
