package model

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultSequenceWidth is the zero-padding applied to the sequence component
// of a Nuremberg ID unless configured otherwise.
const DefaultSequenceWidth = 6

// NurembergID is the hierarchical document identifier
// {source_type}-{year}-{sequence}, monotonic per (source_type, year).
type NurembergID struct {
	SourceType string
	Year       int
	Sequence   int64
}

// Partition returns the allocation partition key, e.g. "far_dfars-2024".
func (n NurembergID) Partition() string {
	return fmt.Sprintf("%s-%d", n.SourceType, n.Year)
}

// Format renders the ID with the sequence zero-padded to width digits.
func (n NurembergID) Format(width int) string {
	if width <= 0 {
		width = DefaultSequenceWidth
	}
	return fmt.Sprintf("%s-%d-%0*d", n.SourceType, n.Year, width, n.Sequence)
}

// ParseNurembergID parses an identifier of the form source_type-year-sequence.
// The source type itself may contain dashes; year and sequence are the last
// two components.
func ParseNurembergID(s string) (NurembergID, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 3 {
		return NurembergID{}, fmt.Errorf("malformed nuremberg id %q", s)
	}
	year, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return NurembergID{}, fmt.Errorf("malformed year in nuremberg id %q: %w", s, err)
	}
	seq, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return NurembergID{}, fmt.Errorf("malformed sequence in nuremberg id %q: %w", s, err)
	}
	return NurembergID{
		SourceType: strings.Join(parts[:len(parts)-2], "-"),
		Year:       year,
		Sequence:   seq,
	}, nil
}

// PartitionFor derives the allocation partition from document metadata:
// the source type plus the publication year.
func PartitionFor(d *Document) (string, error) {
	if d.Source == "" {
		return "", fmt.Errorf("document has no source")
	}
	if len(d.PublicationDate) < 4 {
		return "", fmt.Errorf("document has no publication year: %q", d.PublicationDate)
	}
	year, err := strconv.Atoi(d.PublicationDate[:4])
	if err != nil {
		return "", fmt.Errorf("malformed publication date %q: %w", d.PublicationDate, err)
	}
	return fmt.Sprintf("%s-%d", d.Source, year), nil
}
