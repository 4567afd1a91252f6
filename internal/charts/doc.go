// Package charts turns the debt, inflation and fed rate analyses into the
// CSV and JSON files behind the published charts. Each chart is an
// operations.Step; Register adds them all to a registry.
package charts
