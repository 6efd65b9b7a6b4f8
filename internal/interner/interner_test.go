package interner_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/interner"
)

func TestInternerAssignsStableSymbols(t *testing.T) {
	in := interner.New()

	a := in.Intern("foo")
	b := in.Intern("bar")
	a2 := in.Intern("foo")

	require.NotEqual(t, interner.Invalid, a)
	require.Equal(t, a, a2, "re-interning the same string must return the same Symbol")
	require.NotEqual(t, a, b)
	require.Equal(t, "foo", in.Name(a))
	require.Equal(t, "bar", in.Name(b))
}

func TestInternerSymbolZeroIsReservedInvalid(t *testing.T) {
	in := interner.New()
	sym, ok := in.Lookup("never-interned")
	require.False(t, ok)
	require.Equal(t, interner.Invalid, sym)

	first := in.Intern("first")
	require.NotEqual(t, interner.Invalid, first)
}

func TestTableSetGetOverwrite(t *testing.T) {
	tb := interner.NewTable[int]()
	in := interner.New()
	k := in.Intern("k")

	isNew := tb.Set(k, 1)
	require.True(t, isNew)
	v, ok := tb.Get(k)
	require.True(t, ok)
	require.Equal(t, 1, v)

	isNew = tb.Set(k, 2)
	require.False(t, isNew, "overwriting an existing key is not a new insertion")
	v, ok = tb.Get(k)
	require.True(t, ok)
	require.Equal(t, 2, v)
	require.Equal(t, 1, tb.Len())
}

func TestTableGrowsPastLoadFactor(t *testing.T) {
	tb := interner.NewTable[int]()
	in := interner.New()

	var syms []interner.Symbol
	for i := 0; i < 100; i++ {
		sym := in.Intern(string(rune('a' + i%26)) + string(rune(i)))
		syms = append(syms, sym)
		tb.Set(sym, i)
	}
	require.Equal(t, 100, tb.Len())
	for i, sym := range syms {
		v, ok := tb.Get(sym)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestTableDeleteClosesProbeChain(t *testing.T) {
	tb := interner.NewTable[string]()
	in := interner.New()

	keys := make([]interner.Symbol, 0, 16)
	for i := 0; i < 16; i++ {
		sym := in.Intern(string(rune('A' + i)))
		keys = append(keys, sym)
		tb.Set(sym, string(rune('A'+i)))
	}

	tb.Delete(keys[3])
	_, ok := tb.Get(keys[3])
	require.False(t, ok)

	for i, k := range keys {
		if i == 3 {
			continue
		}
		v, ok := tb.Get(k)
		require.True(t, ok, "key %d should survive deletion of an unrelated key", i)
		require.Equal(t, string(rune('A'+i)), v)
	}
}

func TestTableGetMissingKey(t *testing.T) {
	tb := interner.NewTable[int]()
	in := interner.New()
	present := in.Intern("present")
	missing := in.Intern("missing")
	tb.Set(present, 42)

	_, ok := tb.Get(missing)
	require.False(t, ok)
}
