package modifier

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/stagetec-services/snmpman/snmp"
)

// rng wraps a seeded PRNG stream behind a mutex. A modifier instance
// is shared across every OID its binding covers and may be driven by
// several engine workers at once.
type rng struct {
	mu  sync.Mutex
	src *rand.Rand
}

func newRNG(properties Properties) *rng {
	seed := properties.GetLong("seed", 0)
	if _, ok := properties["seed"]; !ok {
		seed = time.Now().UnixNano()
	}
	return &rng{src: rand.New(rand.NewSource(seed))}
}

// intn returns a uniform value in [0, n]. n < 0 yields 0.
func (r *rng) intn(n int64) int64 {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Int63n(n + 1)
}

// uintn returns a uniform value in [0, n].
func (r *rng) uintn(n uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n == math.MaxUint64 {
		return r.src.Uint64()
	}
	return r.src.Uint64() % (n + 1)
}

// stepSigned advances current by a random step in
// [minimumStep, maximumStep]. A value outside [minimum, maximum]
// resets to minimum before stepping. A step past the maximum wraps to
// minimum + (step - distanceToMax - 1); results are clamped to the
// bounds.
func stepSigned(r *rng, current, minimum, maximum, minimumStep, maximumStep int64) int64 {
	if current < minimum || current > maximum {
		current = minimum
	}
	step := minimumStep + r.intn(maximumStep-minimumStep)

	stepUntilMaximum := maximum - current
	var next int64
	if step > stepUntilMaximum {
		next = minimum + (step - stepUntilMaximum - 1)
	} else {
		next = current + step
	}

	if next < minimum {
		next = minimum
	} else if next > maximum {
		next = maximum
	}
	return next
}

// stepUnsigned is stepSigned for unsigned ranges; steps are never
// negative, so underflow cannot occur.
func stepUnsigned(r *rng, current, minimum, maximum, minimumStep, maximumStep uint64) uint64 {
	if current < minimum || current > maximum {
		current = minimum
	}
	step := minimumStep + r.uintn(maximumStep-minimumStep)

	stepUntilMaximum := maximum - current
	var next uint64
	if step > stepUntilMaximum {
		next = minimum + (step - stepUntilMaximum - 1)
	} else {
		next = current + step
	}

	if next > maximum {
		next = maximum
	}
	return next
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// Integer32Modifier steps INTEGER variables.
type Integer32Modifier struct {
	rng *rng

	minimum     int32
	maximum     int32
	minimumStep int32
	maximumStep int32
}

func (m *Integer32Modifier) Init(properties Properties) error {
	m.rng = newRNG(properties)
	m.minimum = properties.GetInteger("minimum", math.MinInt32)
	m.maximum = properties.GetInteger("maximum", math.MaxInt32)
	m.minimumStep = properties.GetInteger("minimumStep", -1)
	m.maximumStep = properties.GetInteger("maximumStep", 1)
	return nil
}

func (m *Integer32Modifier) Modify(v snmp.Variable) snmp.Variable {
	current, ok := v.(snmp.Integer32)
	if !ok {
		return v
	}
	next := stepSigned(m.rng, int64(current),
		int64(m.minimum), int64(m.maximum),
		int64(m.minimumStep), int64(m.maximumStep))
	return snmp.Integer32(next)
}

// unsigned32 carries the shared configuration of the 32-bit unsigned
// modifier kinds.
type unsigned32 struct {
	rng *rng

	minimum     uint64
	maximum     uint64
	minimumStep uint64
	maximumStep uint64
}

func (m *unsigned32) init(properties Properties) {
	m.rng = newRNG(properties)
	m.minimum = properties.GetUnsignedLong("minimum", 0)
	m.maximum = properties.GetUnsignedLong("maximum", math.MaxUint32)
	if m.maximum > math.MaxUint32 {
		m.maximum = math.MaxUint32
	}
	m.minimumStep = properties.GetUnsignedLong("minimumStep", 0)
	m.maximumStep = properties.GetUnsignedLong("maximumStep", 1)
}

func (m *unsigned32) step(current uint64) uint64 {
	return stepUnsigned(m.rng, current, m.minimum, m.maximum, m.minimumStep, m.maximumStep)
}

// Gauge32Modifier steps Gauge32/Unsigned32 variables.
type Gauge32Modifier struct{ unsigned32 }

func (m *Gauge32Modifier) Init(properties Properties) error {
	m.init(properties)
	return nil
}

func (m *Gauge32Modifier) Modify(v snmp.Variable) snmp.Variable {
	current, ok := v.(snmp.Gauge32)
	if !ok {
		return v
	}
	return snmp.Gauge32(m.step(uint64(current)))
}

// Counter32Modifier steps Counter32 variables.
type Counter32Modifier struct{ unsigned32 }

func (m *Counter32Modifier) Init(properties Properties) error {
	m.init(properties)
	return nil
}

func (m *Counter32Modifier) Modify(v snmp.Variable) snmp.Variable {
	current, ok := v.(snmp.Counter32)
	if !ok {
		return v
	}
	return snmp.Counter32(m.step(uint64(current)))
}

// TimeTicksModifier steps TimeTicks variables.
type TimeTicksModifier struct{ unsigned32 }

func (m *TimeTicksModifier) Init(properties Properties) error {
	m.init(properties)
	return nil
}

func (m *TimeTicksModifier) Modify(v snmp.Variable) snmp.Variable {
	current, ok := v.(snmp.TimeTicks)
	if !ok {
		return v
	}
	return snmp.TimeTicks(m.step(uint64(current)))
}

// SysUpTimeModifier is TimeTicksModifier tuned for sysUpTime: the
// counter starts at zero and advances about one second per read.
type SysUpTimeModifier struct{ unsigned32 }

func (m *SysUpTimeModifier) Init(properties Properties) error {
	m.init(properties)
	m.minimumStep = properties.GetUnsignedLong("minimumStep", 100)
	m.maximumStep = properties.GetUnsignedLong("maximumStep", 100)
	return nil
}

func (m *SysUpTimeModifier) Modify(v snmp.Variable) snmp.Variable {
	current, ok := v.(snmp.TimeTicks)
	if !ok {
		return v
	}
	return snmp.TimeTicks(m.step(uint64(current)))
}

// Counter64Modifier steps Counter64 variables over the full unsigned
// 64-bit range; steps are unsigned by construction.
type Counter64Modifier struct {
	rng *rng

	minimum     uint64
	maximum     uint64
	minimumStep uint64
	maximumStep uint64
}

func (m *Counter64Modifier) Init(properties Properties) error {
	m.rng = newRNG(properties)
	m.minimum = properties.GetUnsignedLong("minimum", 0)
	m.maximum = properties.GetUnsignedLong("maximum", math.MaxUint64)
	m.minimumStep = properties.GetUnsignedLong("minimumStep", 0)
	m.maximumStep = properties.GetUnsignedLong("maximumStep", 1)
	return nil
}

func (m *Counter64Modifier) Modify(v snmp.Variable) snmp.Variable {
	current, ok := v.(snmp.Counter64)
	if !ok {
		return v
	}
	next := stepUnsigned(m.rng, uint64(current), m.minimum, m.maximum, m.minimumStep, m.maximumStep)
	return snmp.Counter64(next)
}
