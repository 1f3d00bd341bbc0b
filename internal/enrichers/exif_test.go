package enrichers

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildExifJPEG assembles a minimal little-endian EXIF block inside a JPEG
// SOI/APP1/EOI shell.
func buildExifJPEG(t *testing.T, camera, model string, orientation uint16, taken string) []byte {
	t.Helper()
	le := binary.LittleEndian
	var tiff bytes.Buffer
	tiff.WriteString("II")
	binary.Write(&tiff, le, uint16(42))
	binary.Write(&tiff, le, uint32(8))

	const ifd0Entries = 4
	ifd0Size := 2 + ifd0Entries*12 + 4
	exifIFDOffset := 8 + ifd0Size
	exifIFDSize := 2 + 12 + 4
	dataOffset := exifIFDOffset + exifIFDSize

	makeValue := camera + "\x00"
	modelValue := model + "\x00"
	takenValue := taken + "\x00"
	makeOff := dataOffset
	modelOff := makeOff + len(makeValue)
	takenOff := modelOff + len(modelValue)

	entry := func(tag, typ uint16, count, value uint32) {
		binary.Write(&tiff, le, tag)
		binary.Write(&tiff, le, typ)
		binary.Write(&tiff, le, count)
		binary.Write(&tiff, le, value)
	}
	binary.Write(&tiff, le, uint16(ifd0Entries))
	entry(tagMake, typeASCII, uint32(len(makeValue)), uint32(makeOff))
	entry(tagModel, typeASCII, uint32(len(modelValue)), uint32(modelOff))
	entry(tagOrientation, typeShort, 1, uint32(orientation))
	entry(tagExifIFD, typeLong, 1, uint32(exifIFDOffset))
	binary.Write(&tiff, le, uint32(0))

	binary.Write(&tiff, le, uint16(1))
	entry(tagDateTimeOriginal, typeASCII, uint32(len(takenValue)), uint32(takenOff))
	binary.Write(&tiff, le, uint32(0))

	tiff.WriteString(makeValue)
	tiff.WriteString(modelValue)
	tiff.WriteString(takenValue)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

func TestReadExif(t *testing.T) {
	data := buildExifJPEG(t, "Canon", "EOS R6", 6, "2024:07:14 18:32:05")
	got, err := readExif(data)
	if err != nil {
		t.Fatalf("readExif: %v", err)
	}
	if got.Make != "Canon" || got.Model != "EOS R6" {
		t.Fatalf("unexpected camera %q %q", got.Make, got.Model)
	}
	if got.Orientation != 6 {
		t.Fatalf("unexpected orientation %d", got.Orientation)
	}
	if got.TakenAt == nil || got.TakenAt.Format(exifTimeLayout) != "2024:07:14 18:32:05" {
		t.Fatalf("unexpected capture time %v", got.TakenAt)
	}
}

func TestReadExifWithoutSegment(t *testing.T) {
	if _, err := readExif([]byte("\x89PNG\r\n")); err != errNoExif {
		t.Fatalf("expected errNoExif for png, got %v", err)
	}
	if _, err := readExif([]byte{0xFF, 0xD8, 0xFF, 0xDA, 0x00, 0x02}); err != errNoExif {
		t.Fatalf("expected errNoExif without APP1, got %v", err)
	}
	truncated := []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x01, 0x00, 'E'}
	if _, err := readExif(truncated); err == nil || err == errNoExif {
		t.Fatalf("expected truncation error, got %v", err)
	}
}
