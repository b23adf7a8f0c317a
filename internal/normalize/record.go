package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gyeh/cdrload/internal/model"
)

const (
	// Delimiter separates fields on a CDR line.
	Delimiter = "|"
	// FieldCount is the minimum number of tokens a well-formed line carries.
	FieldCount = 31
)

var ErrInsufficientFields = errors.New("insufficient fields")

// LineError reports why a single line was rejected. Field is empty when the
// line was rejected before any field was mapped.
type LineError struct {
	Field string
	Value string
	Err   error
}

func (e *LineError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Parser maps raw CDR lines onto CallDetailRecord values. It holds no mutable
// state and is safe for concurrent use.
type Parser struct {
	layouts TimestampLayouts
}

// NewParser returns a Parser using the given timestamp layouts. Empty layouts
// fall back to the defaults.
func NewParser(layouts TimestampLayouts) *Parser {
	def := DefaultTimestampLayouts()
	if layouts.Comma == "" {
		layouts.Comma = def.Comma
	}
	if layouts.Dot == "" {
		layouts.Dot = def.Dot
	}
	return &Parser{layouts: layouts}
}

// tokens walks the split fields in order. Reading past the end yields "".
type tokens struct {
	vals []string
	pos  int
}

func (t *tokens) next() string {
	if t.pos >= len(t.vals) {
		t.pos++
		return ""
	}
	v := t.vals[t.pos]
	t.pos++
	return v
}

func (t *tokens) str() string { return strings.TrimSpace(t.next()) }
func (t *tokens) i32() int32 { return Int(t.next()) }
func (t *tokens) i64() int64 { return Int64(t.next()) }

// ParseLine splits line on "|" (empty fields preserved) and maps the tokens
// positionally. Lines with fewer than FieldCount tokens are rejected with
// ErrInsufficientFields; a blank or malformed timestamp rejects the line.
// Numeric fields never fail.
func (p *Parser) ParseLine(line string) (model.CallDetailRecord, error) {
	line = strings.TrimRight(line, "\r\n")
	vals := strings.Split(line, Delimiter)
	if len(vals) < FieldCount {
		return model.CallDetailRecord{}, &LineError{
			Err: fmt.Errorf("%w: got %d, want %d", ErrInsufficientFields, len(vals), FieldCount),
		}
	}

	t := &tokens{vals: vals}
	var r model.CallDetailRecord
	var err error

	if r.RecordTime, err = p.timestamp("record_time", t.next()); err != nil {
		return model.CallDetailRecord{}, err
	}

	r.LocalSPC = t.i32()
	r.LocalSSN = t.i32()
	r.LocalRI = t.i32()
	r.LocalGTI = t.i32()
	r.LocalGTDigits = t.str()

	r.RemoteSPC = t.i32()
	r.RemoteSSN = t.i32()
	r.RemoteRI = t.i32()
	r.RemoteGTI = t.i32()
	r.RemoteGTDigits = t.str()

	r.ServiceCode = t.str()

	r.OrigNature = t.i32()
	r.OrigPlan = t.i32()
	r.OrigDigits = t.str()

	r.DestNature = t.i32()
	r.DestPlan = t.i32()
	r.DestDigits = t.str()

	r.ISDNNature = t.i32()
	r.ISDNPlan = t.i32()
	r.MSISDN = t.str()

	r.VLRNature = t.i32()
	r.VLRPlan = t.i32()
	r.IMSI = t.str()
	r.VLRDigits = t.str()

	r.Status = t.str()
	r.Type = t.str()

	if r.Tstamp, err = p.timestamp("tstamp", t.next()); err != nil {
		return model.CallDetailRecord{}, err
	}

	r.LocalDialogID = t.i64()
	r.RemoteDialogID = t.i64()
	r.DialogDuration = t.i64()

	// The layout has 32 slots with USSD last. A 31-token line is accepted with
	// an empty USSD string instead of being rejected.
	r.USSDString = t.str()

	return r, nil
}

func (p *Parser) timestamp(field, v string) (time.Time, error) {
	ts, err := p.layouts.Parse(v)
	if err != nil {
		return ts, &LineError{Field: field, Value: strings.TrimSpace(v), Err: err}
	}
	return ts, nil
}
