// Package walk reads and writes SNMP walk dumps: line-oriented
// OID/type/value records as produced by snmpwalk against a real
// device. Operators' dumps are irregular, so parsing is permissive:
// bad records are logged and skipped, never fatal.
package walk

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/stagetec-services/snmpman/snmp"
)

// oidLine matches the start of a record: a dotted OID followed by " = ".
var oidLine = regexp.MustCompile(`^\s*(\.?\d+(?:\.\d+)+)\s*=\s?(.*)$`)

// parenNumber extracts the raw value from forms like "(123456) 0:20:34.56"
// and "up(1)".
var parenNumber = regexp.MustCompile(`\((\d+)\)`)

var leadingInt = regexp.MustCompile(`^-?\d+`)

// Read parses the walk file at path. The returned bindings are sorted
// by OID; duplicate OIDs keep the last occurrence.
func Read(path string, logger *zap.Logger) ([]snmp.VariableBinding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open walk %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, logger)
}

// Parse reads walk records from r. Multi-line values (hex dumps,
// quoted strings with newlines) continue until the next OID line.
func Parse(r io.Reader, logger *zap.Logger) ([]snmp.VariableBinding, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	byOID := make(map[string]snmp.VariableBinding)
	var currentOID string
	var currentValue []string

	flush := func() {
		if currentOID == "" {
			return
		}
		binding, err := parseRecord(currentOID, strings.Join(currentValue, "\n"))
		if err != nil {
			logger.Warn("skipping walk record",
				zap.String("oid", currentOID),
				zap.Error(err))
		} else {
			byOID[binding.OID.String()] = binding
		}
		currentOID = ""
		currentValue = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if match := oidLine.FindStringSubmatch(line); match != nil {
			flush()
			currentOID = match[1]
			currentValue = []string{match[2]}
			continue
		}
		if currentOID != "" {
			// hex dump or quoted string continuation
			currentValue = append(currentValue, line)
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read walk: %w", err)
	}

	bindings := make([]snmp.VariableBinding, 0, len(byOID))
	for _, binding := range byOID {
		bindings = append(bindings, binding)
	}
	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].OID.Compare(bindings[j].OID) < 0
	})
	return bindings, nil
}

func parseRecord(oidText, rhs string) (snmp.VariableBinding, error) {
	oid, err := snmp.ParseOID(oidText)
	if err != nil {
		return snmp.VariableBinding{}, err
	}

	variable, err := parseValue(strings.TrimRight(rhs, " \t"))
	if err != nil {
		return snmp.VariableBinding{}, err
	}
	return snmp.VariableBinding{OID: oid, Variable: variable}, nil
}

func parseValue(rhs string) (snmp.Variable, error) {
	trimmed := strings.TrimSpace(rhs)
	if trimmed == `""` || trimmed == "" {
		return snmp.OctetString{}, nil
	}

	// "Network Address" carries a space, so the type token is the text
	// before the first colon, not the first field.
	colon := strings.Index(trimmed, ":")
	if colon < 0 {
		return nil, fmt.Errorf("no type token in %q", trimmed)
	}
	token := strings.TrimSpace(trimmed[:colon])
	value := strings.TrimSpace(trimmed[colon+1:])

	switch token {
	case "INTEGER":
		n, err := parseSigned(value)
		if err != nil {
			return nil, err
		}
		return snmp.Integer32(n), nil
	case "Gauge32", "Unsigned32":
		n, err := parseUnsigned(value)
		if err != nil {
			return nil, err
		}
		return snmp.Gauge32(n), nil
	case "Counter32":
		n, err := parseUnsigned(value)
		if err != nil {
			return nil, err
		}
		return snmp.Counter32(n), nil
	case "Counter64":
		n, err := parseUnsigned(value)
		if err != nil {
			return nil, err
		}
		return snmp.Counter64(n), nil
	case "Timeticks":
		n, err := parseTicks(value)
		if err != nil {
			return nil, err
		}
		return snmp.TimeTicks(n), nil
	case "STRING":
		return snmp.OctetString(unquote(value)), nil
	case "Hex-STRING":
		raw, err := parseHexBytes(value)
		if err != nil {
			return nil, err
		}
		return snmp.OctetString(raw), nil
	case "OID":
		oid, err := snmp.ParseOID(value)
		if err != nil {
			return nil, err
		}
		return snmp.ObjectIdentifier{Value: oid}, nil
	case "IpAddress":
		return snmp.NewIPAddress(value), nil
	case "Network Address":
		return parseNetworkAddress(value)
	case "BITS":
		raw, err := parseHexBytes(value)
		if err != nil {
			return nil, err
		}
		return snmp.BitString(raw), nil
	case "Opaque":
		raw, err := parseHexBytes(strings.TrimSpace(strings.TrimPrefix(value, "Hex:")))
		if err != nil {
			return nil, err
		}
		return snmp.Opaque(raw), nil
	default:
		return nil, fmt.Errorf("unknown type token %q", token)
	}
}

// parseSigned handles "72", "-3" and labeled forms like "up(1)".
func parseSigned(value string) (int64, error) {
	if match := parenNumber.FindStringSubmatch(value); match != nil {
		return strconv.ParseInt(match[1], 10, 32)
	}
	if match := leadingInt.FindString(value); match != "" {
		return strconv.ParseInt(match, 10, 32)
	}
	return 0, fmt.Errorf("no integer in %q", value)
}

// parseUnsigned handles bare numbers with optional unit suffixes
// ("1000000000", "4500 bps").
func parseUnsigned(value string) (uint64, error) {
	field := value
	if i := strings.IndexByte(field, ' '); i > 0 {
		field = field[:i]
	}
	return strconv.ParseUint(field, 10, 64)
}

// parseTicks handles "(123456) 0:20:34.56" and bare tick counts.
func parseTicks(value string) (uint64, error) {
	if match := parenNumber.FindStringSubmatch(value); match != nil {
		return strconv.ParseUint(match[1], 10, 32)
	}
	return strconv.ParseUint(strings.TrimSpace(value), 10, 32)
}

// parseHexBytes reads whitespace-separated hex octets, tolerating the
// trailing label net-snmp appends to BITS values.
func parseHexBytes(value string) ([]byte, error) {
	var raw []byte
	for _, field := range strings.Fields(value) {
		b, err := strconv.ParseUint(field, 16, 8)
		if err != nil {
			if len(raw) > 0 {
				break // trailing enumeration label
			}
			return nil, fmt.Errorf("bad hex octet %q", field)
		}
		raw = append(raw, byte(b))
	}
	return raw, nil
}

// parseNetworkAddress reads the colon-separated hex quad form
// ("0A:00:00:01") net-snmp uses for Network Address values.
func parseNetworkAddress(value string) (snmp.Variable, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bad network address %q", value)
	}
	quad := make([]string, 4)
	for i, part := range parts {
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad network address %q: %w", value, err)
		}
		quad[i] = strconv.FormatUint(b, 10)
	}
	return snmp.NewIPAddress(strings.Join(quad, ".")), nil
}

func unquote(value string) string {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return value[1 : len(value)-1]
	}
	return value
}

// Write renders bindings in the canonical single-line record form.
// Parse(Write(bindings)) yields the same bindings.
func Write(w io.Writer, bindings []snmp.VariableBinding) error {
	for _, binding := range bindings {
		if err := writeRecord(w, binding); err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(w io.Writer, binding snmp.VariableBinding) error {
	var rhs string
	switch v := binding.Variable.(type) {
	case snmp.Integer32:
		rhs = fmt.Sprintf("INTEGER: %d", int32(v))
	case snmp.Gauge32:
		rhs = fmt.Sprintf("Gauge32: %d", uint32(v))
	case snmp.Counter32:
		rhs = fmt.Sprintf("Counter32: %d", uint32(v))
	case snmp.Counter64:
		rhs = fmt.Sprintf("Counter64: %d", uint64(v))
	case snmp.TimeTicks:
		rhs = fmt.Sprintf("Timeticks: (%d)", uint32(v))
	case snmp.OctetString:
		if len(v) == 0 {
			rhs = `""`
		} else if printable(v) && !strings.ContainsAny(string(v), "\"\\") {
			rhs = fmt.Sprintf("STRING: %q", string(v))
		} else {
			rhs = "Hex-STRING: " + hexFields(v)
		}
	case snmp.ObjectIdentifier:
		rhs = "OID: ." + v.Value.String()
	case snmp.IPAddress:
		rhs = "IpAddress: " + v.String()
	case snmp.BitString:
		rhs = "BITS: " + hexFields(v)
	case snmp.Opaque:
		rhs = "Opaque: Hex: " + hexFields(v)
	default:
		return fmt.Errorf("unwritable variable %s at %s", binding.Variable, binding.OID)
	}
	_, err := fmt.Fprintf(w, ".%s = %s\n", binding.OID, rhs)
	return err
}

func printable(raw []byte) bool {
	for _, b := range raw {
		if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return true
}

func hexFields(raw []byte) string {
	fields := make([]string, len(raw))
	for i, b := range raw {
		fields[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(fields, " ")
}
