package dex

const (
	// https://source.android.com/devices/tech/dalvik/dex-format.html#endian-constant
	endianConstant    = 0x12345678
	fileHeaderSize    = 112
	classDefSize      = 32
	protoIDSize       = 12
	memberIDSize      = 8
	noIndex           = 0xffffffff
	magicPrefix       = "dex\n"
	checksumDataStart = 12
)

// Upper case fields are intentional so binary.Read can fill them in.
type fileHeader struct {
	// https://source.android.com/devices/tech/dalvik/dex-format.html#header-item
	Magic         [8]byte
	Checksum      uint32
	Sha1Sig       [20]byte
	FileSize      uint32
	HeaderSize    uint32
	EndianTag     uint32
	LinkSize      uint32
	LinkOff       uint32
	MapOff        uint32
	StringIdsSize uint32
	StringIdsOff  uint32
	TypeIdsSize   uint32
	TypeIdsOff    uint32
	ProtoIdsSize  uint32
	ProtoIdsOff   uint32
	FieldIdsSize  uint32
	FieldIdsOff   uint32
	MethodIdsSize uint32
	MethodIdsOff  uint32
	ClassDefsSize uint32
	ClassDefsOff  uint32
	DataSize      uint32
	DataOff       uint32
}

type classDef struct {
	// https://source.android.com/devices/tech/dalvik/dex-format.html#class-def-item
	ClassIdx        uint32
	AccessFlags     uint32
	SuperClassIdx   uint32
	InterfacesOff   uint32
	SourceFileIdx   uint32
	AnnotationsOff  uint32
	ClassDataOff    uint32
	StaticValuesOff uint32
}

type protoID struct {
	ShortyIdx     uint32
	ReturnTypeIdx uint32
	ParametersOff uint32
}

// fieldID and methodID share the layout class_idx, type/proto idx, name_idx.
type memberID struct {
	ClassIdx uint16
	TypeIdx  uint16
	NameIdx  uint32
}
