// Package dex reads Android DEX files into jvm class tables.
//
// See https://source.android.com/devices/tech/dalvik/dex-format.html for
// the file format. Only the parts needed to rebuild declared member tables
// are decoded: strings, type/proto/field/method ids, class definitions and
// class data (access flags and declaration order).
package dex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/adler32"
	"io"
	"os"

	"github.com/zboralski/dexhook/internal/jvm"
)

// ErrNotDex is returned when the input lacks the DEX magic.
var ErrNotDex = errors.New("not a DEX file")

// File is a decoded DEX file.
type File struct {
	Name    string
	Sha1    [20]byte
	Version string
	Classes []*jvm.Class
}

type state struct {
	name    string
	data    []byte
	header  fileHeader
	strings []string
	types   []string
	protos  []protoID
	fields  []memberID
	methods []memberID
	loader  *jvm.Loader
}

func (s *state) errorf(format string, a ...any) error {
	return fmt.Errorf("reading dex %s: %s", s.name, fmt.Sprintf(format, a...))
}

// ReadFile decodes the DEX file at path and defines its classes in loader.
func ReadFile(path string, loader *jvm.Loader) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dex %s: %w", path, err)
	}
	return Parse(path, data, loader)
}

// Read decodes a DEX stream; name is used in error messages.
func Read(name string, r io.Reader, loader *jvm.Loader) (*File, error) {
	var b bytes.Buffer
	if _, err := io.Copy(&b, r); err != nil {
		return nil, fmt.Errorf("reading dex %s: %w", name, err)
	}
	return Parse(name, b.Bytes(), loader)
}

// Parse decodes an in-memory DEX image and defines its classes in loader.
// Superclasses are linked once all classes are defined.
func Parse(name string, data []byte, loader *jvm.Loader) (*File, error) {
	s := &state{name: name, data: data, loader: loader}

	if len(data) < fileHeaderSize || !bytes.HasPrefix(data, []byte(magicPrefix)) {
		return nil, fmt.Errorf("reading dex %s: %w", name, ErrNotDex)
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &s.header); err != nil {
		return nil, s.errorf("unable to decode header: %v", err)
	}
	if s.header.EndianTag != endianConstant {
		return nil, s.errorf("unsupported endian tag 0x%x", s.header.EndianTag)
	}
	if int(s.header.FileSize) != len(data) {
		return nil, s.errorf("expected %d bytes, have %d", s.header.FileSize, len(data))
	}
	if sum := adler32.Checksum(data[checksumDataStart:]); sum != s.header.Checksum {
		return nil, s.errorf("checksum mismatch: header 0x%08x, computed 0x%08x", s.header.Checksum, sum)
	}

	var err error
	if s.strings, err = s.readStrings(); err != nil {
		return nil, err
	}
	if s.types, err = s.readTypes(); err != nil {
		return nil, err
	}
	if s.protos, err = s.readProtos(); err != nil {
		return nil, err
	}
	if s.fields, err = s.readMemberIDs(s.header.FieldIdsOff, s.header.FieldIdsSize, "field"); err != nil {
		return nil, err
	}
	if s.methods, err = s.readMemberIDs(s.header.MethodIdsOff, s.header.MethodIdsSize, "method"); err != nil {
		return nil, err
	}

	f := &File{
		Name:    name,
		Sha1:    s.header.Sha1Sig,
		Version: string(bytes.TrimRight(s.header.Magic[4:], "\x00")),
	}

	off := s.header.ClassDefsOff
	for i := uint32(0); i < s.header.ClassDefsSize; i++ {
		var def classDef
		if err := s.decodeAt(off, &def); err != nil {
			return nil, s.errorf("class def %d: %v", i, err)
		}
		c, err := s.defineClass(&def)
		if err != nil {
			return nil, err
		}
		f.Classes = append(f.Classes, c)
		off += classDefSize
	}
	loader.Link()

	return f, nil
}

func (s *state) decodeAt(off uint32, v any) error {
	if int(off) > len(s.data) {
		return fmt.Errorf("offset %d out of range", off)
	}
	return binary.Read(bytes.NewReader(s.data[off:]), binary.LittleEndian, v)
}

func (s *state) u32(off uint32) (uint32, error) {
	if uint64(off)+4 > uint64(len(s.data)) {
		return 0, fmt.Errorf("offset %d out of range", off)
	}
	return binary.LittleEndian.Uint32(s.data[off:]), nil
}

func (s *state) u16(off uint32) (uint16, error) {
	if uint64(off)+2 > uint64(len(s.data)) {
		return 0, fmt.Errorf("offset %d out of range", off)
	}
	return binary.LittleEndian.Uint16(s.data[off:]), nil
}

type ulebHelper struct {
	data []byte
	err  error
}

func (a *ulebHelper) grabULEB128() uint64 {
	if a.err != nil {
		return 0
	}
	v, size := binary.Uvarint(a.data)
	if size <= 0 {
		a.err = errors.New("truncated ULEB128 value")
		return 0
	}
	a.data = a.data[size:]
	return v
}

func (s *state) readStrings() ([]string, error) {
	n := s.header.StringIdsSize
	out := make([]string, n)
	for i := uint32(0); i < n; i++ {
		off, err := s.u32(s.header.StringIdsOff + i*4)
		if err != nil {
			return nil, s.errorf("string ID %d: %v", i, err)
		}
		if int(off) >= len(s.data) {
			return nil, s.errorf("string ID %d: data offset %d out of range", i, off)
		}
		// DEX strings are MUTF-8: a ULEB128 UTF-16 length, then NUL-terminated bytes.
		helper := ulebHelper{data: s.data[off:]}
		helper.grabULEB128()
		if helper.err != nil {
			return nil, s.errorf("string ID %d: %v", i, helper.err)
		}
		end := bytes.IndexByte(helper.data, 0)
		if end < 0 {
			return nil, s.errorf("string ID %d: unterminated string", i)
		}
		out[i] = string(helper.data[:end])
	}
	return out, nil
}

func (s *state) str(idx uint32) (string, error) {
	if idx >= uint32(len(s.strings)) {
		return "", fmt.Errorf("string index %d out of range", idx)
	}
	return s.strings[idx], nil
}

func (s *state) readTypes() ([]string, error) {
	n := s.header.TypeIdsSize
	out := make([]string, n)
	for i := uint32(0); i < n; i++ {
		idx, err := s.u32(s.header.TypeIdsOff + i*4)
		if err != nil {
			return nil, s.errorf("type ID %d: %v", i, err)
		}
		d, err := s.str(idx)
		if err != nil {
			return nil, s.errorf("type ID %d: %v", i, err)
		}
		out[i] = jvm.DecodeDescriptor(d)
	}
	return out, nil
}

func (s *state) typeName(idx uint32) (string, error) {
	if idx >= uint32(len(s.types)) {
		return "", fmt.Errorf("type index %d out of range", idx)
	}
	return s.types[idx], nil
}

func (s *state) readProtos() ([]protoID, error) {
	n := s.header.ProtoIdsSize
	out := make([]protoID, n)
	for i := uint32(0); i < n; i++ {
		if err := s.decodeAt(s.header.ProtoIdsOff+i*protoIDSize, &out[i]); err != nil {
			return nil, s.errorf("proto ID %d: %v", i, err)
		}
	}
	return out, nil
}

func (s *state) readMemberIDs(off, n uint32, what string) ([]memberID, error) {
	out := make([]memberID, n)
	for i := uint32(0); i < n; i++ {
		if err := s.decodeAt(off+i*memberIDSize, &out[i]); err != nil {
			return nil, s.errorf("%s ID %d: %v", what, i, err)
		}
	}
	return out, nil
}

// typeList decodes a type_list item into interned types.
func (s *state) typeList(off uint32) ([]*jvm.Class, error) {
	if off == 0 {
		return nil, nil
	}
	n, err := s.u32(off)
	if err != nil {
		return nil, err
	}
	out := make([]*jvm.Class, 0, n)
	for i := uint32(0); i < n; i++ {
		idx, err := s.u16(off + 4 + i*2)
		if err != nil {
			return nil, err
		}
		name, err := s.typeName(uint32(idx))
		if err != nil {
			return nil, err
		}
		out = append(out, s.loader.Type(name))
	}
	return out, nil
}

func (s *state) defineClass(def *classDef) (*jvm.Class, error) {
	name, err := s.typeName(def.ClassIdx)
	if err != nil {
		return nil, s.errorf("class name: %v", err)
	}
	superName := ""
	if def.SuperClassIdx != noIndex {
		if superName, err = s.typeName(def.SuperClassIdx); err != nil {
			return nil, s.errorf("class %s superclass: %v", name, err)
		}
	}

	c, err := s.loader.DefineNamed(name, jvm.Modifier(def.AccessFlags), superName)
	if err != nil {
		return nil, s.errorf("%v", err)
	}

	if def.InterfacesOff != 0 {
		ifaces, err := s.typeList(def.InterfacesOff)
		if err != nil {
			return nil, s.errorf("class %s interfaces: %v", name, err)
		}
		names := make([]string, len(ifaces))
		for i, t := range ifaces {
			names[i] = t.Name()
		}
		c.SetInterfaces(names...)
	}

	// No class data? In theory this can happen (e.g. marker interfaces).
	if def.ClassDataOff == 0 {
		return c, nil
	}
	if int(def.ClassDataOff) >= len(s.data) {
		return nil, s.errorf("class %s: class data offset %d out of range", name, def.ClassDataOff)
	}
	if err := s.readClassData(c, def.ClassDataOff); err != nil {
		return nil, s.errorf("class %s: %v", name, err)
	}
	return c, nil
}

func (s *state) readClassData(c *jvm.Class, off uint32) error {
	helper := ulebHelper{data: s.data[off:]}

	numStaticFields := helper.grabULEB128()
	numInstanceFields := helper.grabULEB128()
	numDirectMethods := helper.grabULEB128()
	numVirtualMethods := helper.grabULEB128()
	if helper.err != nil {
		return helper.err
	}

	// Indices are encoded as differences from the previous entry; the
	// running index restarts for each of the four lists.
	for _, n := range []uint64{numStaticFields, numInstanceFields} {
		var idx uint64
		for i := uint64(0); i < n; i++ {
			idx += helper.grabULEB128()
			flags := helper.grabULEB128()
			if helper.err != nil {
				return helper.err
			}
			if err := s.addField(c, idx, jvm.Modifier(flags)); err != nil {
				return err
			}
		}
	}

	for _, n := range []uint64{numDirectMethods, numVirtualMethods} {
		var idx uint64
		for i := uint64(0); i < n; i++ {
			idx += helper.grabULEB128()
			flags := helper.grabULEB128()
			helper.grabULEB128() // code_off
			if helper.err != nil {
				return helper.err
			}
			if err := s.addMethod(c, idx, jvm.Modifier(flags)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *state) addField(c *jvm.Class, idx uint64, flags jvm.Modifier) error {
	if idx >= uint64(len(s.fields)) {
		return fmt.Errorf("field index %d out of range", idx)
	}
	id := s.fields[idx]
	name, err := s.str(id.NameIdx)
	if err != nil {
		return err
	}
	typ, err := s.typeName(uint32(id.TypeIdx))
	if err != nil {
		return err
	}
	c.AddField(name, flags, s.loader.Type(typ))
	return nil
}

func (s *state) addMethod(c *jvm.Class, idx uint64, flags jvm.Modifier) error {
	if idx >= uint64(len(s.methods)) {
		return fmt.Errorf("method index %d out of range", idx)
	}
	id := s.methods[idx]
	name, err := s.str(id.NameIdx)
	if err != nil {
		return err
	}
	if int(id.TypeIdx) >= len(s.protos) {
		return fmt.Errorf("proto index %d out of range", id.TypeIdx)
	}
	proto := s.protos[id.TypeIdx]
	params, err := s.typeList(proto.ParametersOff)
	if err != nil {
		return err
	}

	switch name {
	case "<clinit>":
		// Static initializers are not reflective members.
		return nil
	case "<init>":
		c.AddConstructor(flags, params...)
		return nil
	}

	ret, err := s.typeName(proto.ReturnTypeIdx)
	if err != nil {
		return err
	}
	c.AddMethod(name, flags, s.loader.Type(ret), params...)
	return nil
}
