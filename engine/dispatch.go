package engine

import (
	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/stagetec-services/snmpman/snmp"
)

// maxBulkRepetitions caps a GETBULK request so a hostile
// max-repetitions cannot balloon the response.
const maxBulkRepetitions = 256

// dispatchRequest carries the per-packet state the PDU handlers need.
type dispatchRequest struct {
	server *MOServer
	vacm   *VACM
	stats  *Stats
	logger *zap.Logger

	version       gosnmp.SnmpVersion
	securityModel int
	securityName  string
	context       string
}

// get answers a GET PDU. Within SNMPv2c, misses become per-variable
// exception values; within v1 the first miss aborts the PDU with
// noSuchName and the original bindings, as RFC 1157 prescribes.
func (r dispatchRequest) get(pdus []gosnmp.SnmpPDU) ([]gosnmp.SnmpPDU, gosnmp.SNMPError, int) {
	out := make([]gosnmp.SnmpPDU, len(pdus))
	for i, pdu := range pdus {
		oid, err := snmp.ParseOID(pdu.Name)
		if err != nil {
			r.logger.Warn("unparsable OID in GET", zap.String("oid", pdu.Name), zap.Error(err))
			return pdus, gosnmp.GenErr, i + 1
		}

		variable := r.readOne(oid)
		if r.version == gosnmp.Version1 && snmp.IsException(variable) {
			return pdus, gosnmp.NoSuchName, i + 1
		}
		out[i] = snmp.ToPDU(oid, variable)
	}
	return out, gosnmp.NoError, 0
}

// readOne resolves a single GET binding to its reply variable.
func (r dispatchRequest) readOne(oid snmp.OID) snmp.Variable {
	if !r.vacm.CanRead(r.securityModel, r.securityName, r.context, oid) {
		r.stats.accessDenied.Add(1)
		return snmp.NoSuchObject
	}

	query := snmp.ContextScope{
		Scope: snmp.Scope{
			LowerBound: oid, LowerIncluded: true,
			UpperBound: oid, UpperIncluded: true,
		},
		Context: r.context,
	}
	mo := r.server.Lookup(query)
	if mo == nil {
		return snmp.NoSuchObject
	}

	sub := snmp.NewSubRequest(1, snmp.VariableBinding{OID: oid})
	mo.Get(sub)
	if sub.Binding.Variable == nil {
		return snmp.NoSuchInstance
	}
	return sub.Binding.Variable
}

// getNext answers a GETNEXT PDU.
func (r dispatchRequest) getNext(pdus []gosnmp.SnmpPDU) ([]gosnmp.SnmpPDU, gosnmp.SNMPError, int) {
	out := make([]gosnmp.SnmpPDU, len(pdus))
	for i, pdu := range pdus {
		oid, err := snmp.ParseOID(pdu.Name)
		if err != nil {
			r.logger.Warn("unparsable OID in GETNEXT", zap.String("oid", pdu.Name), zap.Error(err))
			return pdus, gosnmp.GenErr, i + 1
		}

		binding, ok := r.nextBinding(oid)
		if !ok {
			if r.version == gosnmp.Version1 {
				return pdus, gosnmp.NoSuchName, i + 1
			}
			out[i] = snmp.ToPDU(oid, snmp.EndOfMibView)
			continue
		}
		out[i] = snmp.ToPDU(binding.OID, binding.Variable)
	}
	return out, gosnmp.NoError, 0
}

// nextBinding walks the registry in scope order for the first binding
// strictly greater than start that the requester may read.
func (r dispatchRequest) nextBinding(start snmp.OID) (snmp.VariableBinding, bool) {
	cursor := start
	for hops := 0; hops < 1<<16; hops++ {
		binding, ok := r.nextRegistered(cursor)
		if !ok {
			return snmp.VariableBinding{}, false
		}
		if r.vacm.CanRead(r.securityModel, r.securityName, r.context, binding.OID) {
			return binding, true
		}
		// not in view: resume the walk past the denied OID
		r.stats.accessDenied.Add(1)
		cursor = binding.OID
	}
	return snmp.VariableBinding{}, false
}

// nextRegistered finds the first binding after start across all
// managed objects registered in the context.
func (r dispatchRequest) nextRegistered(start snmp.OID) (snmp.VariableBinding, bool) {
	reach := snmp.Scope{LowerBound: start, LowerIncluded: false}
	for _, mo := range r.server.Registrations(r.context) {
		scope := mo.Scope()
		if !scope.Intersects(reach) {
			continue
		}

		query := snmp.Scope{LowerBound: start, LowerIncluded: false}
		if start.Compare(scope.LowerBound) < 0 {
			query = snmp.Scope{LowerBound: scope.LowerBound, LowerIncluded: true}
		}
		sub := snmp.NewSubRequest(1, snmp.VariableBinding{OID: start})
		sub.Query = snmp.ContextScope{Scope: query, Context: r.context}
		if !mo.Next(sub) {
			continue
		}
		if sub.Binding.Variable == nil || snmp.IsException(sub.Binding.Variable) {
			continue
		}
		return sub.Binding, true
	}
	return snmp.VariableBinding{}, false
}

// getBulk answers a GETBULK PDU: the first nonRepeaters bindings get
// one GETNEXT each, the rest iterate up to maxRepetitions rounds.
func (r dispatchRequest) getBulk(pdus []gosnmp.SnmpPDU, nonRepeaters, maxRepetitions int) ([]gosnmp.SnmpPDU, gosnmp.SNMPError, int) {
	if nonRepeaters < 0 {
		nonRepeaters = 0
	}
	if nonRepeaters > len(pdus) {
		nonRepeaters = len(pdus)
	}
	if maxRepetitions < 0 {
		maxRepetitions = 0
	}
	if maxRepetitions > maxBulkRepetitions {
		maxRepetitions = maxBulkRepetitions
	}

	var out []gosnmp.SnmpPDU
	for i := 0; i < nonRepeaters; i++ {
		oid, err := snmp.ParseOID(pdus[i].Name)
		if err != nil {
			return pdus, gosnmp.GenErr, i + 1
		}
		if binding, ok := r.nextBinding(oid); ok {
			out = append(out, snmp.ToPDU(binding.OID, binding.Variable))
		} else {
			out = append(out, snmp.ToPDU(oid, snmp.EndOfMibView))
		}
	}

	type column struct {
		cursor snmp.OID
		done   bool
	}
	columns := make([]column, 0, len(pdus)-nonRepeaters)
	for i := nonRepeaters; i < len(pdus); i++ {
		oid, err := snmp.ParseOID(pdus[i].Name)
		if err != nil {
			return pdus, gosnmp.GenErr, i + 1
		}
		columns = append(columns, column{cursor: oid})
	}

	for round := 0; round < maxRepetitions; round++ {
		progressed := false
		for c := range columns {
			if columns[c].done {
				out = append(out, snmp.ToPDU(columns[c].cursor, snmp.EndOfMibView))
				continue
			}
			binding, ok := r.nextBinding(columns[c].cursor)
			if !ok {
				columns[c].done = true
				out = append(out, snmp.ToPDU(columns[c].cursor, snmp.EndOfMibView))
				continue
			}
			columns[c].cursor = binding.OID
			out = append(out, snmp.ToPDU(binding.OID, binding.Variable))
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out, gosnmp.NoError, 0
}

// set answers a SET PDU through the two-phase-commit machinery:
// prepare every subrequest, commit when all prepared clean, undo on
// any failure, cleanup always. The first failing subrequest supplies
// the response status and index.
func (r dispatchRequest) set(pdus []gosnmp.SnmpPDU) ([]gosnmp.SnmpPDU, gosnmp.SNMPError, int) {
	bindings := make([]snmp.VariableBinding, len(pdus))
	for i, pdu := range pdus {
		oid, err := snmp.ParseOID(pdu.Name)
		if err != nil {
			return pdus, r.mapError(gosnmp.GenErr), i + 1
		}
		variable, err := snmp.FromPDU(pdu)
		if err != nil {
			r.logger.Warn("undecodable SET value",
				zap.String("oid", pdu.Name), zap.Error(err))
			return pdus, r.mapError(gosnmp.WrongType), i + 1
		}
		bindings[i] = snmp.VariableBinding{OID: oid, Variable: variable}
	}

	request := snmp.NewRequest(bindings)
	owners := make([]snmp.ManagedObject, len(request.Subs))
	for i, sub := range request.Subs {
		oid := sub.Binding.OID
		if !r.vacm.CanWrite(r.securityModel, r.securityName, r.context, oid) {
			r.stats.accessDenied.Add(1)
			sub.Status.SetErrorStatus(gosnmp.NotWritable)
			continue
		}
		query := snmp.ContextScope{
			Scope: snmp.Scope{
				LowerBound: oid, LowerIncluded: true,
				UpperBound: oid, UpperIncluded: true,
			},
			Context: r.context,
		}
		if owners[i] = r.server.Lookup(query); owners[i] == nil {
			sub.Status.SetErrorStatus(gosnmp.NoCreation)
		}
	}

	request.SetPhase(snmp.Phase2PCPrepare)
	for i, sub := range request.Subs {
		if owners[i] != nil && sub.Status.ErrorStatus == gosnmp.NoError {
			owners[i].Prepare(sub)
		}
	}

	status, index := firstError(request)
	if status == gosnmp.NoError {
		request.SetPhase(snmp.Phase2PCCommit)
		for i, sub := range request.Subs {
			if owners[i] != nil {
				owners[i].Commit(sub)
			}
		}
		status, index = firstError(request)
	}

	if status != gosnmp.NoError {
		request.SetPhase(snmp.Phase2PCUndo)
		for i, sub := range request.Subs {
			if owners[i] != nil {
				owners[i].Undo(sub)
			}
		}
	}

	request.SetPhase(snmp.Phase2PCCleanup)
	for i, sub := range request.Subs {
		if owners[i] != nil {
			owners[i].Cleanup(sub)
		}
	}

	if status != gosnmp.NoError {
		return pdus, r.mapError(status), index
	}
	return pdus, gosnmp.NoError, 0
}

func firstError(request *snmp.Request) (gosnmp.SNMPError, int) {
	for _, sub := range request.Subs {
		if sub.Status.ErrorStatus != gosnmp.NoError {
			return sub.Status.ErrorStatus, sub.Index
		}
	}
	return gosnmp.NoError, 0
}

// mapError folds SNMPv2 error statuses onto the v1 set when the
// request came in as v1.
func (r dispatchRequest) mapError(status gosnmp.SNMPError) gosnmp.SNMPError {
	if r.version != gosnmp.Version1 {
		return status
	}
	switch status {
	case gosnmp.NoAccess, gosnmp.NoCreation, gosnmp.NotWritable, gosnmp.AuthorizationError, gosnmp.InconsistentName:
		return gosnmp.NoSuchName
	case gosnmp.WrongType, gosnmp.WrongLength, gosnmp.WrongEncoding, gosnmp.WrongValue, gosnmp.InconsistentValue:
		return gosnmp.BadValue
	case gosnmp.NoError, gosnmp.TooBig, gosnmp.NoSuchName, gosnmp.BadValue, gosnmp.ReadOnly, gosnmp.GenErr:
		return status
	default:
		return gosnmp.GenErr
	}
}
