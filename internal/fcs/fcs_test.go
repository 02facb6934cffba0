package fcs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// buildFCS assembles a minimal valid FCS byte stream with the given keywords.
func buildFCS(t *testing.T, pairs ...string) []byte {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatal("pairs must be key/value")
	}
	var text strings.Builder
	text.WriteByte('/')
	for i := 0; i < len(pairs); i += 2 {
		text.WriteString(pairs[i])
		text.WriteByte('/')
		text.WriteString(pairs[i+1])
		text.WriteByte('/')
	}

	textBegin := 58
	textEnd := textBegin + text.Len() - 1
	header := fmt.Sprintf("FCS3.1    %8d%8d%8d%8d%8d%8d", textBegin, textEnd, 0, 0, 0, 0)
	if len(header) != 58 {
		t.Fatalf("header len = %d", len(header))
	}
	return append([]byte(header), []byte(text.String())...)
}

func TestValidateHeader(t *testing.T) {
	if err := ValidateHeader([]byte("FCS3.1")); err != nil {
		t.Fatalf("valid magic: %v", err)
	}
	if err := ValidateHeader([]byte("FC")); !errors.Is(err, ErrTruncated) {
		t.Fatalf("short: err = %v, want ErrTruncated", err)
	}
	if err := ValidateHeader([]byte("PNG walks into a bar")); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("wrong magic: err = %v, want ErrBadMagic", err)
	}
}

func TestParseKeywords(t *testing.T) {
	data := buildFCS(t,
		"$TOT", "30000",
		"$PAR", "2",
		"$P1N", "FSC-A",
		"$P1S", "Forward Scatter",
		"$P1R", "262144",
		"$P1E", "0,0",
		"$P2N", "SSC-A",
		"$P2R", "262144",
	)
	meta, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if meta.Version != "FCS3.1" {
		t.Errorf("version = %q", meta.Version)
	}
	if meta.EventCount != 30000 {
		t.Errorf("events = %d, want 30000", meta.EventCount)
	}
	if meta.ParameterCount != 2 || len(meta.Parameters) != 2 {
		t.Fatalf("parameters = %d/%d, want 2", meta.ParameterCount, len(meta.Parameters))
	}
	p1 := meta.Parameters[0]
	if p1.Name != "FSC-A" || p1.Stain != "Forward Scatter" || p1.Range != 262144 || p1.Amplification != "0,0" {
		t.Errorf("p1 = %+v", p1)
	}
	if meta.Parameters[1].Name != "SSC-A" || meta.Parameters[1].Stain != "" {
		t.Errorf("p2 = %+v", meta.Parameters[1])
	}
}

func TestParseKeywordCaseInsensitive(t *testing.T) {
	data := buildFCS(t, "$tot", "5")
	meta, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if meta.EventCount != 5 {
		t.Fatalf("events = %d, want 5", meta.EventCount)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string][]byte{
		"wrong magic":       []byte(strings.Repeat("X", 100)),
		"truncated header":  []byte("FCS3.1    42"),
		"text end past eof": []byte("FCS3.1    " + fmt.Sprintf("%8d%8d", 58, 9999) + strings.Repeat(" ", 32) + "/k/v/"),
	}
	for name, data := range cases {
		if _, err := Parse(data); err == nil {
			t.Errorf("%s: parse accepted bad input", name)
		}
	}

	// Odd keyword count cannot form pairs.
	data := buildFCS(t, "$TOT", "5")
	data = append(data, []byte("orphan/")...)
	// Re-point the header at the longer text segment.
	hdr := fmt.Sprintf("FCS3.1    %8d%8d%8d%8d%8d%8d", 58, len(data)-1, 0, 0, 0, 0)
	copy(data, hdr)
	if _, err := Parse(data); !errors.Is(err, ErrBadText) {
		t.Errorf("odd pairs: err = %v, want ErrBadText", err)
	}

	if _, err := Parse(buildFCS(t, "$TOT", "many")); !errors.Is(err, ErrBadText) {
		t.Errorf("non-numeric $TOT: err = %v, want ErrBadText", err)
	}
}
