// Package fcs reads metadata from Flow Cytometry Standard files. It parses
// the ASCII header and TEXT segment only; event data is stored verbatim and
// never decoded here.
package fcs

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrBadMagic  = errors.New("fcs: missing FCS magic")
	ErrTruncated = errors.New("fcs: file truncated")
	ErrBadHeader = errors.New("fcs: malformed header")
	ErrBadText   = errors.New("fcs: malformed text segment")
)

const (
	// MagicLen is how many leading bytes carry the format marker.
	MagicLen = 3

	headerLen = 58
)

var magic = []byte("FCS")

// Parameter describes one measured channel, built from the $PnN/$PnS/$PnR/$PnE
// keyword families.
type Parameter struct {
	Name          string // $PnN, short name
	Stain         string // $PnS, optional stain label
	Range         int64  // $PnR
	Amplification string // $PnE
}

// Meta is the parsed metadata of one FCS file.
type Meta struct {
	Version        string
	EventCount     int64 // $TOT
	ParameterCount int   // $PAR
	Parameters     []Parameter
	Keywords       map[string]string
}

// ValidateHeader checks that the first bytes of a file carry the FCS marker.
// It accepts any slice of at least MagicLen bytes, so it can run against the
// first chunk of an upload before the rest arrives.
func ValidateHeader(b []byte) error {
	if len(b) < MagicLen {
		return ErrTruncated
	}
	if !bytes.HasPrefix(b, magic) {
		return ErrBadMagic
	}
	return nil
}

// Parse reads the header and TEXT segment of a complete FCS file.
func Parse(data []byte) (*Meta, error) {
	if err := ValidateHeader(data); err != nil {
		return nil, err
	}
	if len(data) < headerLen {
		return nil, ErrTruncated
	}

	version := strings.TrimSpace(string(data[:10]))
	textBegin, err := headerOffset(data, 10)
	if err != nil {
		return nil, err
	}
	textEnd, err := headerOffset(data, 18)
	if err != nil {
		return nil, err
	}
	if textBegin <= 0 || textEnd <= textBegin {
		return nil, fmt.Errorf("%w: text segment [%d,%d]", ErrBadHeader, textBegin, textEnd)
	}
	if textEnd >= int64(len(data)) {
		return nil, ErrTruncated
	}

	keywords, err := parseText(data[textBegin : textEnd+1])
	if err != nil {
		return nil, err
	}

	meta := &Meta{Version: version, Keywords: keywords}
	if v, ok := keywords["$TOT"]; ok {
		if meta.EventCount, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("%w: $TOT=%q", ErrBadText, v)
		}
	}
	if v, ok := keywords["$PAR"]; ok {
		if meta.ParameterCount, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("%w: $PAR=%q", ErrBadText, v)
		}
	}
	for n := 1; n <= meta.ParameterCount; n++ {
		p := Parameter{
			Name:          keywords[fmt.Sprintf("$P%dN", n)],
			Stain:         keywords[fmt.Sprintf("$P%dS", n)],
			Amplification: keywords[fmt.Sprintf("$P%dE", n)],
		}
		if v, ok := keywords[fmt.Sprintf("$P%dR", n)]; ok {
			p.Range, _ = strconv.ParseInt(v, 10, 64)
		}
		meta.Parameters = append(meta.Parameters, p)
	}
	return meta, nil
}

// headerOffset parses one 8-byte right-justified ASCII offset field.
func headerOffset(data []byte, at int) (int64, error) {
	field := strings.TrimSpace(string(data[at : at+8]))
	if field == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: offset %q", ErrBadHeader, field)
	}
	return n, nil
}

// parseText splits a delimited TEXT segment into keyword/value pairs. The
// first byte is the delimiter; keys are uppercased since keywords are
// case-insensitive.
func parseText(seg []byte) (map[string]string, error) {
	if len(seg) < 2 {
		return nil, ErrBadText
	}
	delim := string(seg[0])
	parts := strings.Split(string(seg[1:]), delim)
	// A trailing delimiter leaves one empty tail element.
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	if len(parts) == 0 || len(parts)%2 != 0 {
		return nil, ErrBadText
	}
	kw := make(map[string]string, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		key := strings.ToUpper(strings.TrimSpace(parts[i]))
		if key == "" {
			return nil, ErrBadText
		}
		kw[key] = strings.TrimSpace(parts[i+1])
	}
	return kw, nil
}
