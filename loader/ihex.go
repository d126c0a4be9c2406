package loader

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Intel HEX record types.
const (
	recData        = 0x00
	recEOF         = 0x01
	recExtSegment  = 0x02
	recExtLinear   = 0x04
	recStartLinear = 0x05

	minRecordLen = 11 // ':' + count + addr + type + checksum
)

// HexError reports a malformed Intel HEX record.
type HexError struct {
	Line int
	Msg  string
}

func (e *HexError) Error() string {
	return fmt.Sprintf("intel hex line %d: %s", e.Line, e.Msg)
}

// LoadHex parses Intel HEX data into a Program. Data records are
// coalesced into contiguous segments; an 05 record, when present,
// sets the entry point, otherwise the lowest segment address is used.
func LoadHex(data []byte) (*Program, error) {
	spans := map[uint32][]byte{}
	var base uint32
	var entry uint32
	haveEntry := false
	sawEOF := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if sawEOF {
			return nil, &HexError{lineNo, "record after EOF"}
		}
		if line[0] != ':' {
			return nil, &HexError{lineNo, "missing start code"}
		}
		if len(line) < minRecordLen || len(line)%2 == 0 {
			return nil, &HexError{lineNo, "truncated record"}
		}

		raw, err := hex.DecodeString(line[1:])
		if err != nil {
			return nil, &HexError{lineNo, "invalid hex digits"}
		}
		count := int(raw[0])
		if len(raw) != count+5 {
			return nil, &HexError{lineNo, "length mismatch"}
		}
		var sum byte
		for _, b := range raw {
			sum += b
		}
		if sum != 0 {
			return nil, &HexError{lineNo, "checksum mismatch"}
		}

		offset := uint32(raw[1])<<8 | uint32(raw[2])
		typ := raw[3]
		payload := raw[4 : 4+count]

		switch typ {
		case recData:
			addr := base + offset
			spans[addr] = append([]byte(nil), payload...)
		case recEOF:
			sawEOF = true
		case recExtSegment:
			if count != 2 {
				return nil, &HexError{lineNo, "bad segment address record"}
			}
			base = (uint32(payload[0])<<8 | uint32(payload[1])) << 4
		case recExtLinear:
			if count != 2 {
				return nil, &HexError{lineNo, "bad linear address record"}
			}
			base = (uint32(payload[0])<<8 | uint32(payload[1])) << 16
		case recStartLinear:
			if count != 4 {
				return nil, &HexError{lineNo, "bad start address record"}
			}
			entry = uint32(payload[0])<<24 | uint32(payload[1])<<16 |
				uint32(payload[2])<<8 | uint32(payload[3])
			haveEntry = true
		default:
			return nil, &HexError{lineNo, fmt.Sprintf("unknown record type %02X", typ)}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawEOF {
		return nil, &HexError{lineNo, "missing EOF record"}
	}

	segments := coalesce(spans)
	if len(segments) == 0 {
		return nil, &HexError{lineNo, "no data records"}
	}
	prog := &Program{Segments: segments, Entry: segments[0].Addr}
	if haveEntry {
		prog.Entry = entry
	}
	return prog, nil
}

// coalesce merges adjacent data spans into minimal segments, sorted
// by address.
func coalesce(spans map[uint32][]byte) []Segment {
	addrs := make([]uint32, 0, len(spans))
	for a := range spans {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	var segments []Segment
	for _, a := range addrs {
		data := spans[a]
		n := len(segments)
		if n > 0 {
			last := &segments[n-1]
			if last.Addr+uint32(len(last.Data)) == a {
				last.Data = append(last.Data, data...)
				continue
			}
		}
		segments = append(segments, Segment{Addr: a, Data: append([]byte(nil), data...)})
	}
	return segments
}
