package enrichers

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"time"
)

const exifTimeLayout = "2006:01:02 15:04:05"

const (
	tagMake             = 0x010F
	tagModel            = 0x0110
	tagOrientation      = 0x0112
	tagDateTime         = 0x0132
	tagExifIFD          = 0x8769
	tagDateTimeOriginal = 0x9003

	typeASCII = 2
	typeShort = 3
	typeLong  = 4
)

var errNoExif = errors.New("no exif data")

// exifData is the subset of EXIF the metadata unit records.
type exifData struct {
	Make        string
	Model       string
	Orientation int
	TakenAt     *time.Time
}

// readExif extracts camera and capture fields from a JPEG's APP1 segment.
func readExif(data []byte) (exifData, error) {
	tiff, err := findExifSegment(data)
	if err != nil {
		return exifData{}, err
	}
	return parseTIFF(tiff)
}

func findExifSegment(data []byte) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errNoExif
	}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return nil, errNoExif
		}
		marker := data[pos+1]
		if marker == 0xDA || marker == 0xD9 {
			break
		}
		size := int(binary.BigEndian.Uint16(data[pos+2:]))
		if size < 2 || pos+2+size > len(data) {
			return nil, errors.New("truncated jpeg segment")
		}
		payload := data[pos+4 : pos+2+size]
		if marker == 0xE1 && bytes.HasPrefix(payload, []byte("Exif\x00\x00")) {
			return payload[6:], nil
		}
		pos += 2 + size
	}
	return nil, errNoExif
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	raw   []byte
}

func parseTIFF(tiff []byte) (exifData, error) {
	var out exifData
	if len(tiff) < 8 {
		return out, errors.New("truncated tiff header")
	}
	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return out, errors.New("invalid tiff byte order")
	}
	if order.Uint16(tiff[2:]) != 42 {
		return out, errors.New("invalid tiff magic")
	}

	entries, err := readIFD(tiff, order, order.Uint32(tiff[4:]))
	if err != nil {
		return out, err
	}
	var taken string
	for _, e := range entries {
		switch e.tag {
		case tagMake:
			out.Make = asciiValue(tiff, order, e)
		case tagModel:
			out.Model = asciiValue(tiff, order, e)
		case tagOrientation:
			if e.typ == typeShort {
				out.Orientation = int(order.Uint16(e.raw))
			}
		case tagDateTime:
			if taken == "" {
				taken = asciiValue(tiff, order, e)
			}
		case tagExifIFD:
			if e.typ != typeLong {
				continue
			}
			sub, err := readIFD(tiff, order, order.Uint32(e.raw))
			if err != nil {
				continue
			}
			for _, se := range sub {
				if se.tag == tagDateTimeOriginal {
					if v := asciiValue(tiff, order, se); v != "" {
						taken = v
					}
				}
			}
		}
	}
	if taken != "" {
		if ts, err := time.ParseInLocation(exifTimeLayout, taken, time.Local); err == nil {
			out.TakenAt = &ts
		}
	}
	return out, nil
}

func readIFD(tiff []byte, order binary.ByteOrder, offset uint32) ([]ifdEntry, error) {
	start := int(offset)
	if start < 8 || start+2 > len(tiff) {
		return nil, errors.New("ifd offset out of range")
	}
	count := int(order.Uint16(tiff[start:]))
	end := start + 2 + count*12
	if end > len(tiff) {
		return nil, errors.New("truncated ifd")
	}
	entries := make([]ifdEntry, 0, count)
	for i := 0; i < count; i++ {
		p := start + 2 + i*12
		entries = append(entries, ifdEntry{
			tag:   order.Uint16(tiff[p:]),
			typ:   order.Uint16(tiff[p+2:]),
			count: order.Uint32(tiff[p+4:]),
			raw:   tiff[p+8 : p+12],
		})
	}
	return entries, nil
}

func asciiValue(tiff []byte, order binary.ByteOrder, e ifdEntry) string {
	if e.typ != typeASCII || e.count == 0 {
		return ""
	}
	var value []byte
	if e.count <= 4 {
		value = e.raw[:e.count]
	} else {
		off := int(order.Uint32(e.raw))
		if off < 0 || off+int(e.count) > len(tiff) {
			return ""
		}
		value = tiff[off : off+int(e.count)]
	}
	return strings.TrimSpace(strings.TrimRight(string(value), "\x00"))
}
