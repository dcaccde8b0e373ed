package agent

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stagetec-services/snmpman/config"
	"github.com/stagetec-services/snmpman/engine"
)

// Snmpman runs the whole fleet of virtual agents.
type Snmpman struct {
	agents []*SnmpmanAgent
	logger *zap.Logger
}

// Start builds and executes an agent per configuration. Per-agent
// problems (bad address, missing walk) stop only that agent; a UDP
// bind failure stops every agent started so far and is returned, and
// the launcher turns that into a nonzero exit.
func Start(configurations []*config.AgentConfiguration, logger *zap.Logger) (*Snmpman, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Snmpman{logger: logger.Named("snmpman")}

	for _, configuration := range configurations {
		a, err := New(configuration, logger)
		if err != nil {
			s.logger.Error("skipping agent", zap.Error(err))
			continue
		}
		if err := a.Execute(); err != nil {
			if errors.Is(err, engine.ErrBind) {
				s.Stop()
				return nil, fmt.Errorf("start agents: %w", err)
			}
			s.logger.Error("skipping agent", zap.Error(err))
			continue
		}
		s.agents = append(s.agents, a)
		s.logger.Info("agent started",
			zap.String("name", a.Name()),
			zap.String("address", configuration.Address()))
	}
	return s, nil
}

// Agents returns the running agents.
func (s *Snmpman) Agents() []*SnmpmanAgent { return s.agents }

// Agent returns the running agent with the given name, or nil.
func (s *Snmpman) Agent(name string) *SnmpmanAgent {
	for _, a := range s.agents {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// Stop shuts every agent down.
func (s *Snmpman) Stop() {
	for _, a := range s.agents {
		a.Stop()
	}
	s.agents = nil
}
