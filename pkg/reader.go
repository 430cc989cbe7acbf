package coincidence

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WindowMagic marks the start of every window in the input file.
const WindowMagic uint32 = 0x4e495743

const maxRecordsPerWindow = 1 << 24

type WindowHeaderStruct struct {
	Magic    uint32
	Index    uint64
	NRecords uint32
}

type RecordStruct struct {
	Channel   uint32
	Edge      uint8
	Threshold uint8
	_         uint16
	TimeNs    float64
}

type WindowReader struct {
	reader   *bufio.Reader
	WinCount int
}

func NewWindowReader(r io.Reader) *WindowReader {
	return &WindowReader{reader: bufio.NewReader(r)}
}

// Next returns the following window, or io.EOF when the input ends cleanly
// between two windows.
func (w *WindowReader) Next() (RawWindow, error) {
	var header WindowHeaderStruct
	if err := binary.Read(w.reader, binary.LittleEndian, &header); err != nil {
		if err == io.EOF {
			return RawWindow{}, io.EOF
		}
		return RawWindow{}, fmt.Errorf("error reading window header: %w", err)
	}
	if header.Magic != WindowMagic {
		return RawWindow{}, fmt.Errorf("%w: 0x%08x after %d windows", ErrBadMagic, header.Magic, w.WinCount)
	}
	if header.NRecords > maxRecordsPerWindow {
		return RawWindow{}, fmt.Errorf("window %d declares %d records", header.Index, header.NRecords)
	}

	records := make([]RecordStruct, header.NRecords)
	if err := binary.Read(w.reader, binary.LittleEndian, records); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return RawWindow{}, fmt.Errorf("error reading records of window %d: %w", header.Index, err)
	}

	window := RawWindow{
		Index:   header.Index,
		Records: make([]RawRecord, len(records)),
	}
	for i, rec := range records {
		window.Records[i] = RawRecord{
			Channel:   rec.Channel,
			Edge:      rec.Edge,
			Threshold: rec.Threshold,
			TimeNs:    rec.TimeNs,
		}
	}
	w.WinCount++
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Read window %d with %d records", window.Index, len(window.Records))
		logger.Info(message, "reader")
	}
	return window, nil
}

func WriteWindow(out io.Writer, window RawWindow) error {
	header := WindowHeaderStruct{
		Magic:    WindowMagic,
		Index:    window.Index,
		NRecords: uint32(len(window.Records)),
	}
	if err := binary.Write(out, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("error writing window header: %w", err)
	}
	records := make([]RecordStruct, len(window.Records))
	for i, rec := range window.Records {
		records[i] = RecordStruct{
			Channel:   rec.Channel,
			Edge:      rec.Edge,
			Threshold: rec.Threshold,
			TimeNs:    rec.TimeNs,
		}
	}
	if err := binary.Write(out, binary.LittleEndian, records); err != nil {
		return fmt.Errorf("error writing records of window %d: %w", window.Index, err)
	}
	return nil
}
