package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/simondevenish/Ember/value"
)

// Constant tags for the on-disk chunk format (spec §4.5). The format block
// there omits an explicit Array case even though testable property 6
// requires arrays-of-scalars to round-trip; TagArray fills that gap the
// same way the other container constant (Function) is already handled:
// a count followed by recursively encoded elements.
const (
	TagNumber uint32 = iota
	TagBoolean
	TagNull
	TagString
	TagFunction
	TagArray
)

const (
	funcKindBuiltin uint32 = 0
	funcKindUser    uint32 = 1
)

// Encode serializes c into the binary layout from spec §4.5: little-endian
// integers, no magic number or version.
func Encode(c *Chunk) []byte {
	var buf bytes.Buffer

	writeI32(&buf, int32(len(c.Code)))
	writeI32(&buf, int32(len(c.Constants)))
	buf.Write(c.Code)

	for _, v := range c.Constants {
		encodeValue(&buf, v)
	}

	// The function table's Name/ParamCount/EntryIP are plain portable data
	// (unlike a function's AST body, spec §4.5's "not portably serializable"
	// carve-out), so it travels alongside the constant pool rather than
	// being dropped on serialize.
	writeI32(&buf, int32(len(c.Functions)))
	for _, fn := range c.Functions {
		writeString(&buf, fn.Name)
		writeI32(&buf, int32(fn.ParamCount))
		writeI32(&buf, int32(fn.EntryIP))
	}
	return buf.Bytes()
}

func encodeValue(buf *bytes.Buffer, v value.Value) {
	switch v.Kind {
	case value.Number:
		writeU32(buf, TagNumber)
		binary.Write(buf, binary.LittleEndian, v.AsNumber())
	case value.Boolean:
		writeU32(buf, TagBoolean)
		b := byte(0)
		if v.AsBoolean() {
			b = 1
		}
		buf.WriteByte(b)
	case value.Null:
		writeU32(buf, TagNull)
	case value.String:
		writeU32(buf, TagString)
		writeString(buf, v.AsString())
	case value.Array:
		writeU32(buf, TagArray)
		elems := v.Elements()
		writeI32(buf, int32(len(elems)))
		for _, e := range elems {
			encodeValue(buf, e)
		}
	case value.Function:
		writeU32(buf, TagFunction)
		fn := v.AsFunc()
		if fn.Builtin != nil {
			writeU32(buf, funcKindBuiltin)
			return
		}
		// A compiler-produced user function is identified by its entry in
		// chunk.Functions (TableIndex), never by a Body AST handle — the
		// compiler never populates Body; only the tree-walking
		// interpreter's closures do, and those never reach this codec.
		writeU32(buf, funcKindUser)
		writeString(buf, fn.Name)
		writeI32(buf, int32(len(fn.Params)))
		for _, p := range fn.Params {
			writeString(buf, p)
		}
		writeI32(buf, int32(fn.TableIndex))
	}
}

func writeI32(buf *bytes.Buffer, v int32)  { binary.Write(buf, binary.LittleEndian, v) }
func writeU32(buf *bytes.Buffer, v uint32) { binary.Write(buf, binary.LittleEndian, v) }

func writeString(buf *bytes.Buffer, s string) {
	writeI32(buf, int32(len(s)))
	buf.WriteString(s)
}

// Decode deserializes a chunk previously produced by Encode. A user
// function constant decodes with Body left nil and TableIndex restored:
// per spec §4.5, function bodies are not portably serializable, but the
// VM only ever dispatches a call through TableIndex into the decoded
// chunk's own Functions table, so that's all a restored constant needs.
func Decode(data []byte) (*Chunk, error) {
	r := bytes.NewReader(data)

	codeCount, err := readI32(r)
	if err != nil {
		return nil, err
	}
	constCount, err := readI32(r)
	if err != nil {
		return nil, err
	}

	code := make([]byte, codeCount)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, fmt.Errorf("reading code: %w", err)
	}

	constants := make([]value.Value, constCount)
	for i := int32(0); i < constCount; i++ {
		v, err := decodeValue(r)
		if err != nil {
			return nil, fmt.Errorf("decoding constant %d: %w", i, err)
		}
		constants[i] = v
	}

	fnCount, err := readI32(r)
	if err != nil {
		return nil, err
	}
	functions := make([]FunctionMeta, fnCount)
	for i := int32(0); i < fnCount; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		paramCount, err := readI32(r)
		if err != nil {
			return nil, err
		}
		entryIP, err := readI32(r)
		if err != nil {
			return nil, err
		}
		functions[i] = FunctionMeta{Name: name, ParamCount: int(paramCount), EntryIP: int(entryIP)}
	}

	return &Chunk{Code: code, Constants: constants, Functions: functions}, nil
}

func decodeValue(r *bytes.Reader) (value.Value, error) {
	tag, err := readU32(r)
	if err != nil {
		return value.Value{}, err
	}
	switch tag {
	case TagNumber:
		var f float64
		if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
			return value.Value{}, err
		}
		return value.NewNumber(f), nil
	case TagBoolean:
		b, err := r.ReadByte()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewBoolean(b != 0), nil
	case TagNull:
		return value.NewNull(), nil
	case TagString:
		s, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewString(s), nil
	case TagArray:
		count, err := readI32(r)
		if err != nil {
			return value.Value{}, err
		}
		elems := make([]value.Value, count)
		for i := int32(0); i < count; i++ {
			elems[i], err = decodeValue(r)
			if err != nil {
				return value.Value{}, err
			}
		}
		return value.NewArray(elems), nil
	case TagFunction:
		kind, err := readU32(r)
		if err != nil {
			return value.Value{}, err
		}
		if kind == funcKindBuiltin {
			// The format carries no identifying name for a builtin constant;
			// callers resolve builtins by name through the host environment,
			// not through the constant pool, so this decodes as an opaque stub.
			return value.NewFunction(&value.Func{}), nil
		}
		name, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		paramCount, err := readI32(r)
		if err != nil {
			return value.Value{}, err
		}
		params := make([]string, paramCount)
		for i := int32(0); i < paramCount; i++ {
			params[i], err = readString(r)
			if err != nil {
				return value.Value{}, err
			}
		}
		tableIndex, err := readI32(r)
		if err != nil {
			return value.Value{}, err
		}
		// Body is left nil: it's an AST handle, not portably serializable
		// (spec §4.5), and the VM never reads it — calls dispatch through
		// TableIndex into chunk.Functions, which this restores.
		fn := &value.Func{Name: name, Params: params, TableIndex: int(tableIndex)}
		return value.NewFunction(fn), nil
	default:
		return value.Value{}, fmt.Errorf("unknown constant tag %d", tag)
	}
}

func readI32(r *bytes.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU32(r *bytes.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readI32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
