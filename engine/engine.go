package engine

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/stagetec-services/snmpman/snmp"
)

// requestWorkers is the per-agent worker pool size.
const requestWorkers = 3

// ErrBind marks a UDP bind failure. Unlike every other per-agent
// problem, a bind failure is fatal for the whole process.
var ErrBind = errors.New("bind failed")

// maxDatagram bounds a received UDP payload.
const maxDatagram = 65507

// Engine is one agent's SNMP engine: socket, worker pool, registry
// and access tables.
type Engine struct {
	name    string
	addr    *net.UDPAddr
	network string

	server      *MOServer
	communities *CommunityTable
	vacm        *VACM
	stats       Stats

	bootCount int
	config    EngineConfig

	conn  *net.UDPConn
	queue chan datagram
	wg    sync.WaitGroup

	logger *zap.Logger
}

type datagram struct {
	data []byte
	peer *net.UDPAddr
}

// New builds an engine for the `<ip>/<port>` transport address. The
// socket is not opened until Start.
func New(name, address string, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	addr, network, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		name:        name,
		addr:        addr,
		network:     network,
		server:      NewMOServer(logger),
		communities: NewCommunityTable(),
		vacm:        NewVACM(),
		logger:      logger.Named("engine").With(zap.String("agent", name)),
	}
	e.installDefaults()
	return e, nil
}

// installDefaults registers the engine's built-in system group in the
// default context. Agents replace it with walk-backed groups during
// assembly.
func (e *Engine) installDefaults() {
	root := snmp.MustParseOID("1.3.6.1.2.1.1")
	group := snmp.NewMOGroup(root, []snmp.VariableBinding{
		{OID: root.Append(1, 0), Variable: snmp.NewOctetString("snmpman agent " + e.name)},
		{OID: root.Append(2, 0), Variable: snmp.ObjectIdentifier{Value: snmp.MustParseOID("1.3.6.1.4.1.0")}},
		{OID: root.Append(3, 0), Variable: snmp.TimeTicks(0)},
		{OID: root.Append(5, 0), Variable: snmp.NewOctetString(e.name)},
	}, e.logger)
	if err := e.server.Register(group, ""); err != nil {
		e.logger.Warn("could not install default system group", zap.Error(err))
	}
}

// parseAddress splits the `<ip>/<port>` transport form. Both IPv4 and
// IPv6 literals are accepted.
func parseAddress(address string) (*net.UDPAddr, string, error) {
	slash := strings.LastIndexByte(address, '/')
	if slash < 0 {
		return nil, "", fmt.Errorf("address %q: want <ip>/<port>", address)
	}
	ip := net.ParseIP(address[:slash])
	if ip == nil {
		return nil, "", fmt.Errorf("address %q: bad ip", address)
	}
	// port 0 binds an ephemeral port, which tests rely on
	port, err := strconv.Atoi(address[slash+1:])
	if err != nil || port < 0 || port > 65535 {
		return nil, "", fmt.Errorf("address %q: bad port", address)
	}
	network := "udp4"
	if ip.To4() == nil {
		network = "udp6"
	}
	return &net.UDPAddr{IP: ip, Port: port}, network, nil
}

// Server exposes the managed-object registry for registration.
func (e *Engine) Server() *MOServer { return e.server }

// Communities exposes the community table.
func (e *Engine) Communities() *CommunityTable { return e.communities }

// VACM exposes the access model.
func (e *Engine) VACM() *VACM { return e.vacm }

// Stats exposes the request counters.
func (e *Engine) Stats() *Stats { return &e.stats }

// Name returns the agent name this engine serves.
func (e *Engine) Name() string { return e.name }

// BootCount returns the persisted boot counter after InitPersistence.
func (e *Engine) BootCount() int { return e.bootCount }

// EngineID returns the persisted engine identifier.
func (e *Engine) EngineID() string { return e.config.EngineID }

// InitPersistence loads or creates the boot-counter and engine
// configuration files beside the walk file.
func (e *Engine) InitPersistence(walkPath string) error {
	count, err := IncrementBootCounter(BootCounterFile(walkPath, e.name))
	if err != nil {
		return err
	}
	e.bootCount = count

	cfg, err := LoadOrCreateEngineConfig(EngineConfigFile(walkPath, e.name))
	if err != nil {
		return err
	}
	e.config = cfg
	e.logger.Debug("engine persistence ready",
		zap.Int("boots", count), zap.String("engineId", cfg.EngineID))
	return nil
}

// Start binds the UDP socket and launches the receive loop and the
// worker pool. A bind failure is returned to the caller; the process
// exit-code contract makes it fatal.
func (e *Engine) Start() error {
	conn, err := net.ListenUDP(e.network, e.addr)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrBind, e.network, e.addr, err)
	}
	e.conn = conn
	e.queue = make(chan datagram, requestWorkers*4)

	e.wg.Add(1)
	go e.receiveLoop()

	for i := 0; i < requestWorkers; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	e.logger.Info("agent listening", zap.String("address", e.addr.String()))
	return nil
}

// LocalAddr returns the bound socket address after Start, which is
// how callers learn the real port when binding port 0.
func (e *Engine) LocalAddr() *net.UDPAddr {
	if e.conn == nil {
		return nil
	}
	addr, _ := e.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

// Stop closes the socket and waits for the workers to drain.
func (e *Engine) Stop() {
	if e.conn == nil {
		return
	}
	_ = e.conn.Close()
	e.wg.Wait()
	e.logger.Info("agent stopped")
}

func (e *Engine) receiveLoop() {
	defer e.wg.Done()
	defer close(e.queue)

	buf := make([]byte, maxDatagram)
	for {
		n, peer, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				e.logger.Warn("receive failed", zap.Error(err))
			}
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		e.queue <- datagram{data: data, peer: peer}
	}
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for d := range e.queue {
		e.handle(d)
	}
}

// handle decodes one datagram, dispatches it and writes the reply.
// Malformed packets, unknown communities and SNMPv3 are dropped.
func (e *Engine) handle(d datagram) {
	e.stats.packetsIn.Add(1)

	decoder := &gosnmp.GoSNMP{Transport: "udp"}
	packet, err := decoder.SnmpDecodePacket(d.data)
	if err != nil {
		e.stats.decodeFailures.Add(1)
		e.logger.Debug("dropping undecodable packet",
			zap.String("peer", d.peer.String()), zap.Error(err))
		return
	}
	if packet.Version != gosnmp.Version1 && packet.Version != gosnmp.Version2c {
		e.stats.decodeFailures.Add(1)
		e.logger.Debug("dropping unsupported version packet",
			zap.String("peer", d.peer.String()))
		return
	}

	context, ok := e.communities.Resolve(packet.Community)
	if !ok || !e.server.HasContext(context) {
		e.stats.badCommunities.Add(1)
		e.logger.Debug("dropping packet with unknown community",
			zap.String("peer", d.peer.String()))
		return
	}

	securityModel := SecurityModelV1
	if packet.Version == gosnmp.Version2c {
		securityModel = SecurityModelV2c
	}
	req := dispatchRequest{
		server:        e.server,
		vacm:          e.vacm,
		stats:         &e.stats,
		logger:        e.logger,
		version:       packet.Version,
		securityModel: securityModel,
		securityName:  packet.Community,
		context:       context,
	}

	var variables []gosnmp.SnmpPDU
	var status gosnmp.SNMPError
	var index int
	switch packet.PDUType {
	case gosnmp.GetRequest:
		variables, status, index = req.get(packet.Variables)
	case gosnmp.GetNextRequest:
		variables, status, index = req.getNext(packet.Variables)
	case gosnmp.GetBulkRequest:
		if packet.Version == gosnmp.Version1 {
			return
		}
		variables, status, index = req.getBulk(packet.Variables,
			int(packet.NonRepeaters), int(packet.MaxRepetitions))
	case gosnmp.SetRequest:
		variables, status, index = req.set(packet.Variables)
	default:
		e.logger.Debug("dropping unsupported PDU type",
			zap.String("peer", d.peer.String()))
		return
	}

	response := *packet
	response.PDUType = gosnmp.GetResponse
	response.Variables = variables
	response.Error = status
	response.ErrorIndex = uint8(index)

	out, err := response.MarshalMsg()
	if err != nil {
		e.logger.Error("response marshal failed", zap.Error(err))
		return
	}
	if _, err := e.conn.WriteToUDP(out, d.peer); err != nil {
		e.logger.Warn("response write failed", zap.Error(err))
		return
	}
	e.stats.packetsOut.Add(1)
}
