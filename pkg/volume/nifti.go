package volume

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"mrimodality/internal/models"
)

// ErrFormat reports a file that is not a readable NIfTI-1 volume
var ErrFormat = errors.New("unsupported volume format")

const (
	headerSize    = 348
	minVoxOffset  = 352
	maxVoxelCount = 1 << 28
)

// NIfTI-1 datatype codes
const (
	dtUint8   int16 = 2
	dtInt16   int16 = 4
	dtInt32   int16 = 8
	dtFloat32 int16 = 16
	dtFloat64 int16 = 64
	dtInt8    int16 = 256
	dtUint16  int16 = 512
	dtUint32  int16 = 768
)

// header mirrors the 348 byte NIfTI-1 header layout
type header struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	TOffset       float32
	GlMax         int32
	GlMin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// bytesPerVoxel returns the storage width of a datatype, or 0 if unsupported
func bytesPerVoxel(datatype int16) int {
	switch datatype {
	case dtUint8, dtInt8:
		return 1
	case dtInt16, dtUint16:
		return 2
	case dtInt32, dtUint32, dtFloat32:
		return 4
	case dtFloat64:
		return 8
	}
	return 0
}

// extents returns the first three dimensions, treating missing ones as 1
func (h *header) extents() (nx, ny, nz int, err error) {
	ndim := int(h.Dim[0])
	if ndim < 1 || ndim > 7 {
		return 0, 0, 0, fmt.Errorf("%w: dim[0]=%d", ErrFormat, ndim)
	}
	dims := [3]int{1, 1, 1}
	for i := 0; i < 3 && i < ndim; i++ {
		dims[i] = int(h.Dim[i+1])
		if dims[i] <= 0 {
			return 0, 0, 0, fmt.Errorf("%w: dim[%d]=%d", ErrFormat, i+1, dims[i])
		}
	}
	if dims[0]*dims[1]*dims[2] > maxVoxelCount {
		return 0, 0, 0, fmt.Errorf("%w: volume of %dx%dx%d voxels is too large", ErrFormat, dims[0], dims[1], dims[2])
	}
	return dims[0], dims[1], dims[2], nil
}

// ReadFile loads a .nii or .nii.gz file in its native orientation
func ReadFile(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	v, err := read(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return v, nil
}

// Read decodes a single-file NIfTI-1 image. Gzip-compressed input is detected
// from its magic bytes. Only the first 3D volume of a 4D series is returned.
func Read(r io.Reader) (*models.Volume, error) {
	return read(r, -1)
}

// read decodes r. When size is known and the stream is not compressed, a
// header that declares more voxel data than size holds is rejected up front.
func read(r io.Reader, size int64) (*models.Volume, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		size = -1
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("can't uncompress gzip data: %w", err)
		}
		defer zr.Close()
		br = bufio.NewReader(zr)
	}

	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrFormat, err)
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(raw[:4]) == headerSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(raw[:4]) == headerSize:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad header size", ErrFormat)
	}

	var hdr header
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if string(hdr.Magic[:3]) != "n+1" {
		return nil, fmt.Errorf("%w: magic %q (detached header/image pairs are not supported)",
			ErrFormat, strings.TrimRight(string(hdr.Magic[:]), "\x00"))
	}

	width := bytesPerVoxel(hdr.Datatype)
	if width == 0 {
		return nil, fmt.Errorf("%w: datatype %d", ErrFormat, hdr.Datatype)
	}
	nx, ny, nz, err := hdr.extents()
	if err != nil {
		return nil, err
	}

	offset := int64(hdr.VoxOffset)
	if offset < minVoxOffset {
		offset = minVoxOffset
	}
	if _, err := io.CopyN(io.Discard, br, offset-headerSize); err != nil {
		return nil, fmt.Errorf("%w: truncated before voxel data: %v", ErrFormat, err)
	}

	if want := offset + int64(nx*ny*nz*width); size >= 0 && size < want {
		return nil, fmt.Errorf("%w: file holds %d bytes, header declares %d", ErrFormat, size, want)
	}

	slope, inter := float64(hdr.SclSlope), float64(hdr.SclInter)
	scaled := slope != 0 && !math.IsNaN(slope)
	if math.IsNaN(inter) {
		inter = 0
	}

	v := models.NewVolume(nx, ny, nz)
	// NIfTI stores the first axis fastest; read one k-plane at a time
	plane := make([]byte, nx*ny*width)
	for k := 0; k < nz; k++ {
		if _, err := io.ReadFull(br, plane); err != nil {
			return nil, fmt.Errorf("%w: truncated voxel data: %v", ErrFormat, err)
		}
		n := 0
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				value := decodeVoxel(plane[n*width:(n+1)*width], hdr.Datatype, order)
				if scaled {
					value = value*slope + inter
				}
				v.Set(i, j, k, value)
				n++
			}
		}
	}
	return v, nil
}

func decodeVoxel(b []byte, datatype int16, order binary.ByteOrder) float64 {
	switch datatype {
	case dtUint8:
		return float64(b[0])
	case dtInt8:
		return float64(int8(b[0]))
	case dtInt16:
		return float64(int16(order.Uint16(b)))
	case dtUint16:
		return float64(order.Uint16(b))
	case dtInt32:
		return float64(int32(order.Uint32(b)))
	case dtUint32:
		return float64(order.Uint32(b))
	case dtFloat32:
		return float64(math.Float32frombits(order.Uint32(b)))
	case dtFloat64:
		return math.Float64frombits(order.Uint64(b))
	}
	return math.NaN()
}

// WriteFile saves a volume as a little-endian float32 NIfTI-1 file in the
// volume's own orientation. Paths ending in .gz are gzip compressed.
func WriteFile(path string, v *models.Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	var zw *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		zw = gzip.NewWriter(f)
		w = zw
	}
	if err := Write(w, v); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return err
		}
	}
	return f.Close()
}

// Write encodes v as an uncompressed single-file NIfTI-1 image
func Write(w io.Writer, v *models.Volume) error {
	if err := v.Validate(); err != nil {
		return err
	}

	hdr := header{
		SizeofHdr: headerSize,
		Regular:   'r',
		Dim:       [8]int16{3, int16(v.Nx), int16(v.Ny), int16(v.Nz), 1, 1, 1, 1},
		Datatype:  dtFloat32,
		Bitpix:    32,
		Pixdim:    [8]float32{1, 1, 1, 1, 1, 1, 1, 1},
		VoxOffset: minVoxOffset,
		SclSlope:  1,
		Magic:     [4]byte{'n', '+', '1', 0},
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	// empty extension block
	if _, err := bw.Write(make([]byte, minVoxOffset-headerSize)); err != nil {
		return err
	}

	voxel := make([]byte, 4)
	for k := 0; k < v.Nz; k++ {
		for j := 0; j < v.Ny; j++ {
			for i := 0; i < v.Nx; i++ {
				binary.LittleEndian.PutUint32(voxel, math.Float32bits(float32(v.At(i, j, k))))
				if _, err := bw.Write(voxel); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}
