package modifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagetec-services/snmpman/snmp"
)

func newModifier(t *testing.T, class string, properties Properties) VariableModifier {
	t.Helper()
	m, err := New(class, properties)
	require.NoError(t, err)
	return m
}

func TestCounter32ModifierWrapsAtMaximum(t *testing.T) {
	t.Parallel()

	m := newModifier(t, "Counter32Modifier", Properties{
		"minimum": 0, "maximum": 100,
		"minimumStep": 1, "maximumStep": 1,
	})

	value := snmp.Variable(snmp.Counter32(99))
	var got []uint32
	for i := 0; i < 3; i++ {
		value = m.Modify(value)
		got = append(got, uint32(value.(snmp.Counter32)))
	}
	assert.Equal(t, []uint32{100, 0, 1}, got)
}

func TestCounter32ModifierStaysInBounds(t *testing.T) {
	t.Parallel()

	m := newModifier(t, "Counter32Modifier", Properties{
		"minimum": 10, "maximum": 20,
		"minimumStep": 0, "maximumStep": 7,
		"seed": 42,
	})

	value := snmp.Variable(snmp.Counter32(15))
	for i := 0; i < 1000; i++ {
		value = m.Modify(value)
		n := uint32(value.(snmp.Counter32))
		require.GreaterOrEqual(t, n, uint32(10))
		require.LessOrEqual(t, n, uint32(20))
	}
}

func TestCounter32ModifierResetsOutOfRangeValue(t *testing.T) {
	t.Parallel()

	m := newModifier(t, "Counter32Modifier", Properties{
		"minimum": 10, "maximum": 20,
		"minimumStep": 1, "maximumStep": 1,
	})
	next := m.Modify(snmp.Counter32(500))
	assert.True(t, next.Equal(snmp.Counter32(11)), "reset to minimum, then step")
}

func TestInteger32ModifierBounds(t *testing.T) {
	t.Parallel()

	m := newModifier(t, "Integer32Modifier", Properties{
		"minimum": -5, "maximum": 5,
		"minimumStep": -2, "maximumStep": 2,
		"seed": 7,
	})

	value := snmp.Variable(snmp.Integer32(0))
	for i := 0; i < 1000; i++ {
		value = m.Modify(value)
		n := int32(value.(snmp.Integer32))
		require.GreaterOrEqual(t, n, int32(-5))
		require.LessOrEqual(t, n, int32(5))
	}
}

func TestInteger32ModifierIgnoresForeignType(t *testing.T) {
	t.Parallel()

	m := newModifier(t, "Integer32Modifier", Properties{})
	v := snmp.NewOctetString("not a number")
	assert.True(t, m.Modify(v).Equal(v))
}

func TestCounter64ModifierStepsWithinBounds(t *testing.T) {
	t.Parallel()

	m := newModifier(t, "Counter64Modifier", Properties{
		"minimum": 0, "maximum": uint64(1) << 40,
		"minimumStep": 100, "maximumStep": 200,
		"seed": 99,
	})

	value := snmp.Variable(snmp.Counter64(0))
	previous := uint64(0)
	for i := 0; i < 100; i++ {
		value = m.Modify(value)
		n := uint64(value.(snmp.Counter64))
		require.GreaterOrEqual(t, n, previous+100)
		require.LessOrEqual(t, n, previous+200)
		previous = n
	}
}

func TestGauge32ModifierDefaultsAreUnsigned32(t *testing.T) {
	t.Parallel()

	m := newModifier(t, "Gauge32Modifier", Properties{"seed": 1})
	value := m.Modify(snmp.Gauge32(4294967295))
	_, ok := value.(snmp.Gauge32)
	assert.True(t, ok)
}

func TestSysUpTimeModifierDefaultStep(t *testing.T) {
	t.Parallel()

	m := newModifier(t, "SysUpTimeModifier", Properties{})
	value := m.Modify(snmp.TimeTicks(0))
	assert.True(t, value.Equal(snmp.TimeTicks(100)), "about one second per read")
	value = m.Modify(value)
	assert.True(t, value.Equal(snmp.TimeTicks(200)))
}

func TestTimeTicksModifierDeterministicWithSeed(t *testing.T) {
	t.Parallel()

	run := func() []uint32 {
		m := newModifier(t, "TimeTicksModifier", Properties{
			"minimumStep": 0, "maximumStep": 1000, "seed": 123,
		})
		var out []uint32
		value := snmp.Variable(snmp.TimeTicks(0))
		for i := 0; i < 10; i++ {
			value = m.Modify(value)
			out = append(out, uint32(value.(snmp.TimeTicks)))
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestUnknownModifierClass(t *testing.T) {
	t.Parallel()

	_, err := New("FluxCapacitorModifier", Properties{})
	assert.Error(t, err)
}
