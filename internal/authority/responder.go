// Package authority implements the Authoritative Responder (spec §4.4):
// given a parsed request and a Zone Store, it produces a response message
// without ever recursing or contacting other servers.
package authority

import (
	"github.com/dnscore/dnscored/internal/wire"
	"github.com/dnscore/dnscored/internal/zone"
)

// Responder answers queries against a fixed Zone Store.
type Responder struct {
	Store *zone.Store
}

// New creates a Responder backed by store.
func New(store *zone.Store) *Responder {
	return &Responder{Store: store}
}

// Respond builds a response message for req. It never returns an error —
// any failure is reflected in the response's RCODE, per spec §4.4's
// failure semantics (internal failures become SERVFAIL).
func (r *Responder) Respond(req *wire.Message) *wire.Message {
	resp := &wire.Message{
		Header: wire.Header{
			ID:     req.Header.ID,
			QR:     true,
			Opcode: req.Header.Opcode,
			AA:     true,
			RA:     false,
			RD:     req.Header.RD,
			TC:     false,
			Z:      0,
			Rcode:  wire.RcodeNoError,
		},
		Question: append([]wire.Question(nil), req.Question...),
	}

	if len(req.Question) == 0 {
		resp.Header.Rcode = wire.RcodeFormErr
		resp.Reconcile()
		return resp
	}

	anyAnswered := false
	anyCovered := false
	anyDelegated := false
	anyAbsent := false

	for _, q := range req.Question {
		z := r.Store.Match(q.Name)
		if z == nil {
			continue
		}
		anyCovered = true

		if delegations, _ := z.DelegationAt(q.Name); len(delegations) > 0 {
			anyDelegated = true
			for _, rec := range delegations {
				resp.Authority = append(resp.Authority, rec.ToWireRR())
			}
			continue
		}

		records := z.Lookup(q.Name, q.Type, q.Class)
		if len(records) > 0 {
			anyAnswered = true
			for _, rec := range records {
				resp.Answer = append(resp.Answer, rec.ToWireRR())
			}
			continue
		}

		if !z.HasOwner(q.Name) {
			anyAbsent = true
		}
		if z.SOA != nil {
			resp.Authority = append(resp.Authority, zone.Record{
				Name:  z.Origin,
				Type:  wire.TypeSOA,
				Class: wire.ClassIN,
				RData: *z.SOA,
			}.ToWireRR())
		}
	}

	switch {
	case anyAnswered, anyDelegated:
		resp.Header.Rcode = wire.RcodeNoError
	case anyAbsent:
		resp.Header.Rcode = wire.RcodeNXDomain
	case anyCovered:
		resp.Header.Rcode = wire.RcodeNoError
	default:
		resp.Header.Rcode = wire.RcodeNXDomain
	}

	resp.Reconcile()
	return resp
}
