package abi

// Family identifies a container control-block layout.
type Family string

const (
	FamilyVector      Family = "vector"
	FamilyFixedVector Family = "fixed_vector"
	FamilyString      Family = "string"
	FamilyHashTable   Family = "hash_table"
	FamilyList        Family = "list"
	FamilyRBTree      Family = "rb_tree"
	FamilyDeque       Family = "deque"
	FamilyVectorMap   Family = "vector_map"
	FamilyFixedPool   Family = "fixed_pool"
)

// Field is one member of a native structure.
type Field struct {
	Name  string
	Size  uint64
	Align uint64
}

// Info is a computed structure layout.
type Info struct {
	Size      uint64
	Align     uint64
	FieldOffs map[string]uint64
}

// Offset returns the offset of a named field. Unknown names return 0; the
// caller controls the field list, so a miss is a programming error.
func (i Info) Offset(name string) uint64 {
	return i.FieldOffs[name]
}

// AlignTo rounds offset up to the next multiple of align.
func AlignTo(offset, align uint64) uint64 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) / align * align
}

// Struct lays out fields with C structure rules: each field at the next
// offset aligned to its own alignment, total size rounded up to the widest
// field alignment.
func Struct(fields ...Field) Info {
	if len(fields) == 0 {
		return Info{Size: 0, Align: 1}
	}

	fieldOffs := make(map[string]uint64, len(fields))
	maxAlign := uint64(1)
	offset := uint64(0)

	for _, f := range fields {
		offset = AlignTo(offset, f.Align)
		fieldOffs[f.Name] = offset

		if f.Align > maxAlign {
			maxAlign = f.Align
		}

		offset += f.Size
	}

	return Info{
		Size:      AlignTo(offset, maxAlign),
		Align:     maxAlign,
		FieldOffs: fieldOffs,
	}
}

// Ptr returns a pointer-sized field for the profile.
func Ptr(p *Profile, name string) Field {
	return Field{Name: name, Size: p.Word(), Align: p.Word()}
}

// U8 returns a one-byte field.
func U8(name string) Field {
	return Field{Name: name, Size: 1, Align: 1}
}

// U32 returns a four-byte field.
func U32(name string) Field {
	return Field{Name: name, Size: 4, Align: 4}
}

// F32 returns a four-byte float field.
func F32(name string) Field {
	return Field{Name: name, Size: 4, Align: 4}
}

// Raw returns an opaque byte-range field with explicit alignment.
func Raw(name string, size, align uint64) Field {
	return Field{Name: name, Size: size, Align: align}
}

type layoutKey struct {
	family  Family
	ptrSize uint32
}

// Calculator computes and caches control-block layouts per family and
// pointer width. Control blocks do not depend on the element type, so the
// cache key is small.
type Calculator struct {
	cache map[layoutKey]Info
}

// NewCalculator creates an empty Calculator.
func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[layoutKey]Info),
	}
}

// Layout returns the cached layout for family under p, computing it with
// build on first use.
func (c *Calculator) Layout(family Family, p *Profile, build func(p *Profile) []Field) Info {
	key := layoutKey{family: family, ptrSize: p.PtrSize}
	if cached, ok := c.cache[key]; ok {
		return cached
	}
	info := Struct(build(p)...)
	c.cache[key] = info
	return info
}

var defaultCalc = NewCalculator()

// Layout computes a control-block layout through the shared calculator.
func Layout(family Family, p *Profile, build func(p *Profile) []Field) Info {
	return defaultCalc.Layout(family, p, build)
}
