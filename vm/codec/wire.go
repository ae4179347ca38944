// Package codec serializes code objects. The wire form is canonical CBOR,
// so equal code objects encode to equal bytes and can be addressed by
// hash. Hand-written code objects are read from assembly listings in YAML
// or TOML.
package codec

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/chazu/slotvm/vm"
	"github.com/fxamacker/cbor/v2"
)

// Version is the wire format version written by Marshal.
const Version = 1

// ErrMalformed is wrapped by every decoding failure caused by the input.
var ErrMalformed = errors.New("codec: malformed code object")

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 64,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// Constant kinds.
const (
	constNone  uint8 = 0
	constBool  uint8 = 1
	constInt   uint8 = 2
	constBig   uint8 = 3
	constFloat uint8 = 4
	constStr   uint8 = 5
	constTuple uint8 = 6
	constCode  uint8 = 7
)

type envelope struct {
	Version uint8    `cbor:"1,keyasint"`
	Code    wireCode `cbor:"2,keyasint"`
}

type wireCode struct {
	Name            string      `cbor:"1,keyasint"`
	QualName        string      `cbor:"2,keyasint,omitempty"`
	Filename        string      `cbor:"3,keyasint,omitempty"`
	FirstLine       int         `cbor:"4,keyasint,omitempty"`
	ArgCount        int         `cbor:"5,keyasint,omitempty"`
	PosOnlyArgCount int         `cbor:"6,keyasint,omitempty"`
	KwOnlyArgCount  int         `cbor:"7,keyasint,omitempty"`
	Flags           uint32      `cbor:"8,keyasint,omitempty"`
	NLocals         int         `cbor:"9,keyasint,omitempty"`
	StackSize       int         `cbor:"10,keyasint,omitempty"`
	Instructions    []uint16    `cbor:"11,keyasint"`
	Consts          []wireConst `cbor:"12,keyasint,omitempty"`
	Names           []string    `cbor:"13,keyasint,omitempty"`
	VarNames        []string    `cbor:"14,keyasint,omitempty"`
	CellVars        []string    `cbor:"15,keyasint,omitempty"`
	FreeVars        []string    `cbor:"16,keyasint,omitempty"`
}

type wireConst struct {
	Kind  uint8       `cbor:"1,keyasint"`
	Bool  bool        `cbor:"2,keyasint,omitempty"`
	Int   int64       `cbor:"3,keyasint,omitempty"`
	Big   string      `cbor:"4,keyasint,omitempty"` // decimal
	Float float64     `cbor:"5,keyasint,omitempty"`
	Str   string      `cbor:"6,keyasint,omitempty"`
	Items []wireConst `cbor:"7,keyasint,omitempty"`
	Code  *wireCode   `cbor:"8,keyasint,omitempty"`
}

// Marshal encodes c and its nested code objects.
func Marshal(c *vm.Code) ([]byte, error) {
	w, err := encodeCode(c)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(&envelope{Version: Version, Code: *w})
}

// Unmarshal decodes and validates a code object.
func Unmarshal(data []byte) (*vm.Code, error) {
	var env envelope
	if err := cborDecMode.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, env.Version)
	}
	c, err := decodeCode(&env.Code)
	if err == nil {
		err = checkCode(c)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c, nil
}

// checkCode validates c and requires its declared stack size to cover the
// deepest stack any path through each code object can reach.
func checkCode(c *vm.Code) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var walk func(c *vm.Code) error
	walk = func(c *vm.Code) error {
		depth, err := StackDepth(c.Instructions)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
		if depth > c.StackSize {
			return fmt.Errorf("%s: stack size %d is below the required %d", c.Name, c.StackSize, depth)
		}
		for _, k := range c.Consts {
			if inner, ok := k.(*vm.Code); ok {
				if err := walk(inner); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(c)
}

func encodeCode(c *vm.Code) (*wireCode, error) {
	w := &wireCode{
		Name:            c.Name,
		QualName:        c.QualName,
		Filename:        c.Filename,
		FirstLine:       c.FirstLine,
		ArgCount:        c.ArgCount,
		PosOnlyArgCount: c.PosOnlyArgCount,
		KwOnlyArgCount:  c.KwOnlyArgCount,
		Flags:           uint32(c.Flags),
		NLocals:         c.NLocals,
		StackSize:       c.StackSize,
		Instructions:    c.Instructions,
		Names:           c.Names,
		VarNames:        c.VarNames,
		CellVars:        c.CellVars,
		FreeVars:        c.FreeVars,
	}
	for i, k := range c.Consts {
		wc, err := encodeConst(k)
		if err != nil {
			return nil, fmt.Errorf("codec: %s: constant %d: %w", c.Name, i, err)
		}
		w.Consts = append(w.Consts, wc)
	}
	return w, nil
}

func encodeConst(v vm.Value) (wireConst, error) {
	switch x := v.(type) {
	case nil, vm.NoneType:
		return wireConst{Kind: constNone}, nil
	case vm.Bool:
		return wireConst{Kind: constBool, Bool: bool(x)}, nil
	case bool:
		return wireConst{Kind: constBool, Bool: x}, nil
	case int:
		return wireConst{Kind: constInt, Int: int64(x)}, nil
	case int64:
		return wireConst{Kind: constInt, Int: x}, nil
	case *big.Int:
		if x.IsInt64() {
			return wireConst{Kind: constInt, Int: x.Int64()}, nil
		}
		return wireConst{Kind: constBig, Big: x.String()}, nil
	case float64:
		return wireConst{Kind: constFloat, Float: x}, nil
	case string:
		return wireConst{Kind: constStr, Str: x}, nil
	case *vm.Tuple:
		items := make([]wireConst, 0, x.Len())
		for _, item := range x.Items() {
			wc, err := encodeConst(item)
			if err != nil {
				return wireConst{}, err
			}
			items = append(items, wc)
		}
		return wireConst{Kind: constTuple, Items: items}, nil
	case *vm.Code:
		wc, err := encodeCode(x)
		if err != nil {
			return wireConst{}, err
		}
		return wireConst{Kind: constCode, Code: wc}, nil
	}
	return wireConst{}, fmt.Errorf("cannot encode a '%s' constant", vm.TypeOf(v).Name())
}

func decodeCode(w *wireCode) (*vm.Code, error) {
	c := &vm.Code{
		Name:            w.Name,
		QualName:        w.QualName,
		Filename:        w.Filename,
		FirstLine:       w.FirstLine,
		ArgCount:        w.ArgCount,
		PosOnlyArgCount: w.PosOnlyArgCount,
		KwOnlyArgCount:  w.KwOnlyArgCount,
		Flags:           vm.CodeFlags(w.Flags),
		NLocals:         w.NLocals,
		StackSize:       w.StackSize,
		Instructions:    w.Instructions,
		Names:           w.Names,
		VarNames:        w.VarNames,
		CellVars:        w.CellVars,
		FreeVars:        w.FreeVars,
	}
	if c.ArgCount < 0 || c.PosOnlyArgCount < 0 || c.KwOnlyArgCount < 0 || c.NLocals < 0 || c.StackSize < 0 {
		return nil, fmt.Errorf("%s: negative count", w.Name)
	}
	for i, k := range w.Consts {
		v, err := decodeConst(&k)
		if err != nil {
			return nil, fmt.Errorf("%s: constant %d: %w", w.Name, i, err)
		}
		c.Consts = append(c.Consts, v)
	}
	return c, nil
}

func decodeConst(k *wireConst) (vm.Value, error) {
	switch k.Kind {
	case constNone:
		return vm.None, nil
	case constBool:
		return vm.Bool(k.Bool), nil
	case constInt:
		return int(k.Int), nil
	case constBig:
		n, ok := new(big.Int).SetString(k.Big, 10)
		if !ok {
			return nil, fmt.Errorf("bad integer %q", k.Big)
		}
		return n, nil
	case constFloat:
		return k.Float, nil
	case constStr:
		return k.Str, nil
	case constTuple:
		items := make([]vm.Value, len(k.Items))
		for i := range k.Items {
			v, err := decodeConst(&k.Items[i])
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return vm.NewTuple(items...), nil
	case constCode:
		if k.Code == nil {
			return nil, errors.New("code constant without body")
		}
		return decodeCode(k.Code)
	}
	return nil, fmt.Errorf("unknown constant kind %d", k.Kind)
}
