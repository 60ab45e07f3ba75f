package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{
		"a":  IRInt(1),
		"A":  IRInt(2),
		"aa": IRInt(3),
		"aA": IRInt(4),
		"Aa": IRInt(5),
		"AA": IRInt(6),
	}

	// 'A' = 65, 'a' = 97
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestCompareKeysRFC8785(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"a", "b", -1},
		{"b", "a", 1},
		{"a", "a", 0},
		{"aa", "a", 1},
		{"a", "aa", -1},
		{"", "", 0},
		{"", "a", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			result := compareKeysRFC8785(tt.a, tt.b)
			switch {
			case tt.expected < 0:
				assert.Less(t, result, 0)
			case tt.expected > 0:
				assert.Greater(t, result, 0)
			default:
				assert.Equal(t, 0, result)
			}
		})
	}
}

func TestO(t *testing.T) {
	obj := O("name", IRString("cart"), "count", IRInt(5))
	assert.Equal(t, IRObject{"name": IRString("cart"), "count": IRInt(5)}, obj)

	assert.Panics(t, func() { O("odd") })
	assert.Panics(t, func() { O(1, IRInt(1)) })
	assert.Panics(t, func() { O("k", 1) })
}

func TestSameScalars(t *testing.T) {
	assert.True(t, Same(IRInt(1), IRInt(1)))
	assert.False(t, Same(IRInt(1), IRInt(2)))
	assert.True(t, Same(IRString("a"), IRString("a")))
	assert.False(t, Same(IRString("1"), IRInt(1)), "different kinds are never the same")
	assert.True(t, Same(IRBool(true), IRBool(true)))
	assert.True(t, Same(IRNull{}, IRNull{}))
	assert.True(t, Same(nil, nil))
	assert.False(t, Same(nil, IRNull{}))
}

func TestSameCompositesByIdentity(t *testing.T) {
	arr := IRArray{IRInt(1), IRInt(2)}
	copyArr := IRArray{IRInt(1), IRInt(2)}

	assert.True(t, Same(arr, arr), "same backing array")
	assert.False(t, Same(arr, copyArr), "equal contents, different storage")
	assert.False(t, Same(arr, arr[:1]), "same storage, different length")

	obj := IRObject{"k": IRInt(1)}
	assert.True(t, Same(obj, obj))
	assert.False(t, Same(obj, IRObject{"k": IRInt(1)}))

	// In-place mutation keeps identity
	arr[0] = IRInt(9)
	assert.True(t, Same(arr, arr))
}

func TestEqualIsDeep(t *testing.T) {
	a := IRObject{"list": IRArray{IRInt(1), IRObject{"x": IRBool(true)}}}
	b := IRObject{"list": IRArray{IRInt(1), IRObject{"x": IRBool(true)}}}
	c := IRObject{"list": IRArray{IRInt(1), IRObject{"x": IRBool(false)}}}

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, IRObject{}))
	assert.False(t, Equal(IRArray{}, IRObject{}))
}

func TestIRNullInObjectRoundTrip(t *testing.T) {
	obj := IRObject{
		"present": IRString("value"),
		"missing": IRNull{},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"missing":null,"present":"value"}`, string(data))

	var decoded IRObject
	require.NoError(t, json.Unmarshal(data, &decoded))

	_, isNull := decoded["missing"].(IRNull)
	assert.True(t, isNull, "expected IRNull, got %T", decoded["missing"])
}

func TestUnmarshalRejectsFloats(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"simple float", `3.14`},
		{"scientific notation", `1e10`},
		{"negative float", `-2.5`},
		{"nested float in object", `{"value": 1.5}`},
		{"array with float", `[1, 2.0, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalIRValue([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestUnmarshalIRValueKinds(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(` {"a":[1,"b",true,null]} `))
	require.NoError(t, err)
	assert.Equal(t, IRObject{"a": IRArray{IRInt(1), IRString("b"), IRBool(true), IRNull{}}}, v)
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"n":    7,
		"f":    float64(3),
		"s":    "x",
		"list": []any{int64(1), nil},
		"num":  json.Number("12"),
	})
	require.NoError(t, err)
	assert.Equal(t, IRObject{
		"n":    IRInt(7),
		"f":    IRInt(3),
		"s":    IRString("x"),
		"list": IRArray{IRInt(1), IRNull{}},
		"num":  IRInt(12),
	}, v)

	_, err = FromGo(1.5)
	assert.Error(t, err)
	_, err = FromGo(json.Number("1.5"))
	assert.Error(t, err)
	_, err = FromGo(struct{}{})
	assert.Error(t, err)
}

func TestToGo(t *testing.T) {
	v := IRObject{"a": IRArray{IRInt(1), IRNull{}}, "b": IRBool(true)}
	assert.Equal(t, map[string]any{"a": []any{int64(1), nil}, "b": true}, ToGo(v))
}
