package snmp

import "github.com/gosnmp/gosnmp"

// Request phases for the two-phase-commit SET state machine.
const (
	PhaseInit = iota
	Phase2PCPrepare
	Phase2PCCommit
	Phase2PCUndo
	Phase2PCCleanup
)

// RequestStatus carries the SNMP error status of a subrequest and the
// completion marker for the current processing phase.
type RequestStatus struct {
	ErrorStatus   gosnmp.SNMPError
	PhaseComplete bool
}

// SetErrorStatus records an error status on the subrequest.
func (s *RequestStatus) SetErrorStatus(status gosnmp.SNMPError) {
	s.ErrorStatus = status
}

// Request is one PDU's worth of subrequests walking the 2PC phases.
type Request struct {
	Phase int
	Subs  []*SubRequest
}

// NewRequest builds a request whose subrequests carry the given
// bindings in receive order. Indexes are 1-based to match the SNMP
// error-index convention; handlers treat index 0 as the row-status
// column and skip it.
func NewRequest(bindings []VariableBinding) *Request {
	request := &Request{}
	for i, binding := range bindings {
		sub := &SubRequest{
			request: request,
			Index:   i + 1,
			Binding: binding,
		}
		request.Subs = append(request.Subs, sub)
	}
	return request
}

// SetPhase transitions the request to the given 2PC phase.
func (r *Request) SetPhase(phase int) { r.Phase = phase }

// SubRequest is the unit of work handed to a ManagedObject callback.
// Handlers mutate Binding in place and mark the phase complete.
type SubRequest struct {
	request *Request

	// Index is the 1-based position of this binding in the PDU.
	Index int
	// Binding holds the request OID and, after handling, the reply.
	Binding VariableBinding
	// Query is the range constraint for Find/Next handling.
	Query ContextScope
	// Status tracks error and phase completion.
	Status RequestStatus

	complete bool
}

// NewSubRequest builds a standalone subrequest outside a Request,
// used for single-binding operations.
func NewSubRequest(index int, binding VariableBinding) *SubRequest {
	return &SubRequest{request: &Request{}, Index: index, Binding: binding}
}

// Request returns the enclosing request.
func (s *SubRequest) Request() *Request { return s.request }

// Completed marks this subrequest as answered.
func (s *SubRequest) Completed() { s.complete = true }

// IsComplete reports whether a handler has answered this subrequest.
func (s *SubRequest) IsComplete() bool { return s.complete }

// ManagedObject is the callback contract between the SNMP engine and
// a registered object. The engine invokes callbacks synchronously
// from its worker goroutines; implementations own their locking.
type ManagedObject interface {
	// Scope returns the OID range served by this object.
	Scope() Scope
	// Find returns the smallest OID in the object that satisfies the
	// range query, or nil.
	Find(query Scope) OID
	// Get answers a GET subrequest.
	Get(sub *SubRequest)
	// Next answers a GETNEXT-style subrequest. It returns false when
	// the query cannot be satisfied within this object.
	Next(sub *SubRequest) bool
	// Prepare, Commit, Undo and Cleanup implement two-phase-commit SET.
	Prepare(sub *SubRequest)
	Commit(sub *SubRequest)
	Undo(sub *SubRequest)
	Cleanup(sub *SubRequest)
}
