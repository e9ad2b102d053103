// Package offers implements offer dispatch and acceptance coordination: the
// driver's side of claiming a delivery. Inbound offer events supersede each
// other so at most one live offer exists at a time, expiry evicts the offer
// locally without any network traffic, and acceptance is a single-flight
// conditional claim where the repository arbitrates between competing drivers.
package offers
