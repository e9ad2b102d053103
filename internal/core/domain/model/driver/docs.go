// Package driver contains the Driver aggregate: the mobile worker this client
// instance acts for, with its availability flags and last observed position.
//
// The aggregate is mutated by the flow orchestrator in response to
// online/offline toggles and delivery status transitions. It also derives the
// activity label written to the presence read-model.
package driver
