package dex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/adler32"
	"strings"
	"testing"

	"github.com/zboralski/dexhook/internal/jvm"
)

// dexBuilder assembles minimal DEX images for tests.
type dexBuilder struct {
	strings  []string
	strIdx   map[string]uint32
	types    []uint32
	typeIdx  map[string]uint32
	protos   []testProto
	protoIdx map[string]uint32
	fields   []memberID
	methods  []memberID
	classes  []*testClass
}

type testProto struct {
	ret    uint32
	params []uint32
}

type encoded struct {
	idx   uint32
	flags uint32
}

type testClass struct {
	b        *dexBuilder
	typ      uint32
	flags    uint32
	super    uint32
	ifaces   []uint32
	sfields  []encoded
	ifields  []encoded
	direct   []encoded
	virtual  []encoded
}

func newDexBuilder() *dexBuilder {
	return &dexBuilder{
		strIdx:   make(map[string]uint32),
		typeIdx:  make(map[string]uint32),
		protoIdx: make(map[string]uint32),
	}
}

func (b *dexBuilder) str(s string) uint32 {
	if i, ok := b.strIdx[s]; ok {
		return i
	}
	i := uint32(len(b.strings))
	b.strings = append(b.strings, s)
	b.strIdx[s] = i
	return i
}

func (b *dexBuilder) typ(desc string) uint32 {
	if i, ok := b.typeIdx[desc]; ok {
		return i
	}
	i := uint32(len(b.types))
	b.types = append(b.types, b.str(desc))
	b.typeIdx[desc] = i
	return i
}

func (b *dexBuilder) proto(ret string, params ...string) uint32 {
	key := ret + "(" + strings.Join(params, "") + ")"
	if i, ok := b.protoIdx[key]; ok {
		return i
	}
	p := testProto{ret: b.typ(ret)}
	for _, d := range params {
		p.params = append(p.params, b.typ(d))
	}
	i := uint32(len(b.protos))
	b.protos = append(b.protos, p)
	b.protoIdx[key] = i
	return i
}

func (b *dexBuilder) class(desc string, flags uint32, super string, ifaces ...string) *testClass {
	c := &testClass{b: b, typ: b.typ(desc), flags: flags, super: noIndex}
	if super != "" {
		c.super = b.typ(super)
	}
	for _, d := range ifaces {
		c.ifaces = append(c.ifaces, b.typ(d))
	}
	b.classes = append(b.classes, c)
	return c
}

func (c *testClass) field(static bool, name, desc string, flags uint32) *testClass {
	idx := uint32(len(c.b.fields))
	c.b.fields = append(c.b.fields, memberID{ClassIdx: uint16(c.typ), TypeIdx: uint16(c.b.typ(desc)), NameIdx: c.b.str(name)})
	if static {
		c.sfields = append(c.sfields, encoded{idx, flags})
	} else {
		c.ifields = append(c.ifields, encoded{idx, flags})
	}
	return c
}

func (c *testClass) method(direct bool, name string, flags uint32, ret string, params ...string) *testClass {
	idx := uint32(len(c.b.methods))
	c.b.methods = append(c.b.methods, memberID{ClassIdx: uint16(c.typ), TypeIdx: uint16(c.b.proto(ret, params...)), NameIdx: c.b.str(name)})
	if direct {
		c.direct = append(c.direct, encoded{idx, flags})
	} else {
		c.virtual = append(c.virtual, encoded{idx, flags})
	}
	return c
}

func le32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func (b *dexBuilder) build() []byte {
	var h fileHeader
	copy(h.Magic[:], "dex\n035\x00")
	h.HeaderSize = fileHeaderSize
	h.EndianTag = endianConstant

	off := uint32(fileHeaderSize)
	h.StringIdsSize, h.StringIdsOff = uint32(len(b.strings)), off
	off += 4 * h.StringIdsSize
	h.TypeIdsSize, h.TypeIdsOff = uint32(len(b.types)), off
	off += 4 * h.TypeIdsSize
	h.ProtoIdsSize, h.ProtoIdsOff = uint32(len(b.protos)), off
	off += protoIDSize * h.ProtoIdsSize
	h.FieldIdsSize, h.FieldIdsOff = uint32(len(b.fields)), off
	off += memberIDSize * h.FieldIdsSize
	h.MethodIdsSize, h.MethodIdsOff = uint32(len(b.methods)), off
	off += memberIDSize * h.MethodIdsSize
	h.ClassDefsSize, h.ClassDefsOff = uint32(len(b.classes)), off
	off += classDefSize * h.ClassDefsSize
	h.DataOff = off

	var data bytes.Buffer
	pos := func() uint32 { return off + uint32(data.Len()) }
	align := func() {
		for pos()%4 != 0 {
			data.WriteByte(0)
		}
	}

	stringOffs := make([]uint32, len(b.strings))
	for i, s := range b.strings {
		stringOffs[i] = pos()
		data.Write(binary.AppendUvarint(nil, uint64(len(s))))
		data.WriteString(s)
		data.WriteByte(0)
	}

	typeList := func(idxs []uint32) uint32 {
		if len(idxs) == 0 {
			return 0
		}
		align()
		at := pos()
		data.Write(le32(uint32(len(idxs))))
		for _, t := range idxs {
			data.Write(binary.LittleEndian.AppendUint16(nil, uint16(t)))
		}
		return at
	}

	protos := make([]protoID, len(b.protos))
	for i, p := range b.protos {
		protos[i] = protoID{ShortyIdx: b.str("V"), ReturnTypeIdx: p.ret, ParametersOff: typeList(p.params)}
	}

	defs := make([]classDef, len(b.classes))
	for i, c := range b.classes {
		defs[i] = classDef{
			ClassIdx:      c.typ,
			AccessFlags:   c.flags,
			SuperClassIdx: c.super,
			InterfacesOff: typeList(c.ifaces),
			SourceFileIdx: noIndex,
		}
	}
	for i, c := range b.classes {
		defs[i].ClassDataOff = pos()
		var cd []byte
		for _, n := range []int{len(c.sfields), len(c.ifields), len(c.direct), len(c.virtual)} {
			cd = binary.AppendUvarint(cd, uint64(n))
		}
		for _, list := range [][]encoded{c.sfields, c.ifields} {
			prev := uint32(0)
			for _, e := range list {
				cd = binary.AppendUvarint(cd, uint64(e.idx-prev))
				cd = binary.AppendUvarint(cd, uint64(e.flags))
				prev = e.idx
			}
		}
		for _, list := range [][]encoded{c.direct, c.virtual} {
			prev := uint32(0)
			for _, e := range list {
				cd = binary.AppendUvarint(cd, uint64(e.idx-prev))
				cd = binary.AppendUvarint(cd, uint64(e.flags))
				cd = binary.AppendUvarint(cd, 0)
				prev = e.idx
			}
		}
		data.Write(cd)
	}
	h.DataSize = uint32(data.Len())
	h.FileSize = off + h.DataSize

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, &h)
	for _, o := range stringOffs {
		out.Write(le32(o))
	}
	for _, t := range b.types {
		out.Write(le32(t))
	}
	for i := range protos {
		binary.Write(&out, binary.LittleEndian, &protos[i])
	}
	for i := range b.fields {
		binary.Write(&out, binary.LittleEndian, &b.fields[i])
	}
	for i := range b.methods {
		binary.Write(&out, binary.LittleEndian, &b.methods[i])
	}
	for i := range defs {
		binary.Write(&out, binary.LittleEndian, &defs[i])
	}
	out.Write(data.Bytes())

	img := out.Bytes()
	binary.LittleEndian.PutUint32(img[8:], adler32.Checksum(img[checksumDataStart:]))
	return img
}

const (
	accPublic       = 0x1
	accPrivate      = 0x2
	accStatic       = 0x8
	accFinal        = 0x10
	accConstructor  = 0x10000
	accDeclaredSync = 0x20000
)

func sampleDex() []byte {
	b := newDexBuilder()
	b.class("Lcom/example/Base;", accPublic, "Ljava/lang/Object;").
		method(true, "<init>", accPublic|accConstructor, "V").
		method(false, "foo", accPublic, "V")
	b.class("Lcom/example/Foo;", accPublic|accFinal, "Lcom/example/Base;", "Ljava/lang/Runnable;").
		field(true, "COUNT", "I", accPublic|accStatic|accFinal).
		field(false, "name", "Ljava/lang/String;", accPrivate).
		method(true, "<init>", accPublic|accConstructor, "V").
		method(true, "<init>", accPublic|accConstructor, "V", "I").
		method(true, "<clinit>", accStatic|accConstructor, "V").
		method(true, "bar", accPrivate|accStatic, "I", "Ljava/lang/String;").
		method(false, "foo", accPublic, "V").
		method(false, "foo", accPublic, "V", "I").
		method(false, "run", accPublic, "V")
	return b.build()
}

func TestParseSampleDex(t *testing.T) {
	loader := jvm.NewLoader(nil)
	f, err := Parse("sample.dex", sampleDex(), loader)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Version != "035" {
		t.Errorf("Version = %q, want 035", f.Version)
	}
	if len(f.Classes) != 2 {
		t.Fatalf("got %d classes, want 2", len(f.Classes))
	}

	foo, err := loader.Load("com.example.Foo")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if foo.Superclass() != f.Classes[0] {
		t.Errorf("superclass = %v, want com.example.Base", foo.Superclass())
	}
	if got := foo.Interfaces(); len(got) != 1 || got[0] != "java.lang.Runnable" {
		t.Errorf("interfaces = %v", got)
	}
	if !foo.Modifiers().Has(jvm.Final) {
		t.Error("class should be final")
	}

	var names []string
	for _, m := range foo.Methods() {
		names = append(names, m.String())
	}
	want := []string{
		"private static int com.example.Foo.bar(java.lang.String)",
		"public void com.example.Foo.foo()",
		"public void com.example.Foo.foo(int)",
		"public void com.example.Foo.run()",
	}
	if strings.Join(names, "\n") != strings.Join(want, "\n") {
		t.Errorf("methods:\n%s\nwant:\n%s", strings.Join(names, "\n"), strings.Join(want, "\n"))
	}

	ctors := foo.Constructors()
	if len(ctors) != 2 {
		t.Fatalf("got %d constructors, want 2 (<clinit> excluded)", len(ctors))
	}
	if ctors[1].ParameterTypes()[0] != jvm.Int {
		t.Error("second constructor should take int")
	}
	if ctors[0].Modifiers().Has(jvm.ConstructorFlag) {
		t.Error("constructor flag should be stripped")
	}

	fields := foo.Fields()
	if len(fields) != 2 || fields[0].Name() != "COUNT" || fields[1].Name() != "name" {
		t.Fatalf("fields = %v", fields)
	}
	if fields[1].Type() != loader.Type(jvm.StringName) {
		t.Error("field type should be the interned String type")
	}
}

func TestParseDeclaredSynchronized(t *testing.T) {
	b := newDexBuilder()
	b.class("Lcom/example/Lock;", accPublic, "Ljava/lang/Object;").
		method(true, "<init>", accPublic|accConstructor|accDeclaredSync, "V").
		method(false, "acquire", accPublic|accDeclaredSync, "V")
	loader := jvm.NewLoader(nil)
	if _, err := Parse("lock.dex", b.build(), loader); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	lock, err := loader.Load("com.example.Lock")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	m := lock.Methods()[0]
	if !m.Modifiers().Has(jvm.Synchronized) {
		t.Errorf("modifiers = %#x, want synchronized", uint32(m.Modifiers()))
	}
	if got, want := m.String(), "public synchronized void com.example.Lock.acquire()"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if mods := lock.Constructors()[0].Modifiers(); mods.Has(jvm.DeclaredSynchronized) || !mods.Has(jvm.Synchronized) {
		t.Errorf("constructor modifiers = %#x", uint32(mods))
	}
}

func TestParseNotDex(t *testing.T) {
	_, err := Parse("reader.go", []byte(strings.Repeat("package dex\n", 20)), jvm.NewLoader(nil))
	if !errors.Is(err, ErrNotDex) {
		t.Fatalf("error = %v, want ErrNotDex", err)
	}
	if got, want := err.Error(), "reading dex reader.go: not a DEX file"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestParseChecksumMismatch(t *testing.T) {
	img := sampleDex()
	img[len(img)-1] ^= 0xff
	_, err := Parse("bad.dex", img, jvm.NewLoader(nil))
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("error = %v, want checksum mismatch", err)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile("quix", jvm.NewLoader(nil))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "reading dex quix: ") {
		t.Errorf("error = %q", err)
	}
}

func TestReadStream(t *testing.T) {
	loader := jvm.NewLoader(nil)
	if _, err := Read("stream.dex", bytes.NewReader(sampleDex()), loader); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(loader.Classes()) != 2 {
		t.Errorf("loader has %d classes, want 2", len(loader.Classes()))
	}
}
