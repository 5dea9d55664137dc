package loader

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"gonum.org/v1/gonum/mat"
	"io"
	"math"
	"os"
)

// MAT-file level 5 data types.
const (
	miINT8       = 1
	miUINT8      = 2
	miINT16      = 3
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miSINGLE     = 7
	miDOUBLE     = 9
	miINT64      = 12
	miUINT64     = 13
	miMATRIX     = 14
	miCOMPRESSED = 15
)

// Array classes we can turn into real matrices.
const (
	mxDOUBLE_CLASS = 6
	mxSINGLE_CLASS = 7
	mxINT8_CLASS   = 8
	mxUINT64_CLASS = 15

	complexFlag = 0x0800
	headerSize  = 128
)

type matElement struct {
	dataType uint32
	data     []byte
}

type matReader struct {
	order binary.ByteOrder
}

// ReadMatFile reads all real numeric 2-d arrays from a MATLAB level 5
// .mat file, keyed by variable name. Other variables (cells, structs,
// sparse or complex arrays, strings) are skipped.
func ReadMatFile(path string) (map[string]*mat.Dense, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	vars, err := ParseMat(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return vars, nil
}

// ParseMat is ReadMatFile for the file contents.
func ParseMat(raw []byte) (map[string]*mat.Dense, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("file is too short for a level 5 MAT header")
	}
	r := &matReader{}
	switch string(raw[126:128]) {
	case "IM":
		r.order = binary.LittleEndian
	case "MI":
		r.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("missing endian indicator, not a level 5 MAT file")
	}

	ret := make(map[string]*mat.Dense)
	body := raw[headerSize:]
	for len(body) > 0 {
		el, rest, err := r.nextElement(body)
		if err != nil {
			return nil, err
		}
		body = rest
		if el.dataType == miCOMPRESSED {
			inflated, err := inflate(el.data)
			if err != nil {
				return nil, err
			}
			el, _, err = r.nextElement(inflated)
			if err != nil {
				return nil, err
			}
		}
		if el.dataType != miMATRIX {
			continue
		}
		name, m, err := r.parseMatrix(el.data)
		if err != nil {
			return nil, err
		}
		if m != nil {
			ret[name] = m
		}
	}
	return ret, nil
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bad compressed element: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// nextElement splits one data element (tag and payload) off buf and
// returns the remainder, skipping the padding to the next 8 byte boundary.
func (r *matReader) nextElement(buf []byte) (matElement, []byte, error) {
	if len(buf) < 8 {
		return matElement{}, nil, fmt.Errorf("truncated element tag")
	}
	first := r.order.Uint32(buf[0:4])
	// Small data element: size in the upper two bytes, payload in the
	// second half of the tag.
	if first>>16 != 0 {
		size := int(first >> 16)
		if size > 4 {
			return matElement{}, nil, fmt.Errorf("small data element claims %d bytes", size)
		}
		return matElement{dataType: first & 0xffff, data: buf[4 : 4+size]}, buf[8:], nil
	}
	size := int(r.order.Uint32(buf[4:8]))
	if 8+size > len(buf) {
		return matElement{}, nil, fmt.Errorf("element of type %d claims %d bytes but only %d remain",
			first, size, len(buf)-8)
	}
	el := matElement{dataType: first, data: buf[8 : 8+size]}
	next := 8 + size
	if first != miCOMPRESSED {
		next += (8 - size%8) % 8
	}
	if next > len(buf) {
		next = len(buf)
	}
	return el, buf[next:], nil
}

func (r *matReader) parseMatrix(buf []byte) (string, *mat.Dense, error) {
	flags, buf, err := r.nextElement(buf)
	if err != nil {
		return "", nil, err
	}
	if len(flags.data) < 4 {
		return "", nil, fmt.Errorf("bad array flags")
	}
	flagWord := r.order.Uint32(flags.data[0:4])
	class := flagWord & 0xff

	dims, buf, err := r.nextElement(buf)
	if err != nil {
		return "", nil, err
	}
	dimValues, err := r.numbers(dims)
	if err != nil {
		return "", nil, err
	}

	nameEl, buf, err := r.nextElement(buf)
	if err != nil {
		return "", nil, err
	}
	name := string(nameEl.data)

	if class < mxDOUBLE_CLASS || class > mxUINT64_CLASS || flagWord&complexFlag != 0 {
		// Not a real numeric array.
		return name, nil, nil
	}
	if len(dimValues) != 2 {
		return name, nil, fmt.Errorf("variable %s has %d dimensions, only 2-d arrays are supported",
			name, len(dimValues))
	}
	rows, columns := int(dimValues[0]), int(dimValues[1])
	if rows == 0 || columns == 0 {
		return name, nil, nil
	}

	realPart, _, err := r.nextElement(buf)
	if err != nil {
		return name, nil, err
	}
	values, err := r.numbers(realPart)
	if err != nil {
		return name, nil, fmt.Errorf("variable %s: %w", name, err)
	}
	if len(values) != rows*columns {
		return name, nil, fmt.Errorf("variable %s has %d values but dimensions %dx%d",
			name, len(values), rows, columns)
	}

	// MAT files store arrays column by column.
	m := mat.NewDense(rows, columns, nil)
	for j := 0; j < columns; j++ {
		for i := 0; i < rows; i++ {
			m.Set(i, j, values[j*rows+i])
		}
	}
	return name, m, nil
}

// numbers decodes the payload of a numeric element into float64s.
func (r *matReader) numbers(el matElement) ([]float64, error) {
	var width int
	switch el.dataType {
	case miINT8, miUINT8:
		width = 1
	case miINT16, miUINT16:
		width = 2
	case miINT32, miUINT32, miSINGLE:
		width = 4
	case miDOUBLE, miINT64, miUINT64:
		width = 8
	default:
		return nil, fmt.Errorf("unsupported numeric data type %d", el.dataType)
	}
	count := len(el.data) / width
	ret := make([]float64, count)
	for i := 0; i < count; i++ {
		b := el.data[i*width : (i+1)*width]
		switch el.dataType {
		case miINT8:
			ret[i] = float64(int8(b[0]))
		case miUINT8:
			ret[i] = float64(b[0])
		case miINT16:
			ret[i] = float64(int16(r.order.Uint16(b)))
		case miUINT16:
			ret[i] = float64(r.order.Uint16(b))
		case miINT32:
			ret[i] = float64(int32(r.order.Uint32(b)))
		case miUINT32:
			ret[i] = float64(r.order.Uint32(b))
		case miSINGLE:
			ret[i] = float64(math.Float32frombits(r.order.Uint32(b)))
		case miDOUBLE:
			ret[i] = math.Float64frombits(r.order.Uint64(b))
		case miINT64:
			ret[i] = float64(int64(r.order.Uint64(b)))
		case miUINT64:
			ret[i] = float64(r.order.Uint64(b))
		}
	}
	return ret, nil
}
