package record

import (
	json "github.com/goccy/go-json"

	"github.com/intellect4all/reldb/dberrors"
)

// ColumnSpec is the minimal per-column information the codec needs: name
// and declared Kind; a column's ordinal position is its index in the
// codec's column slice. schema.Table builds these from its richer Column
// definitions.
type ColumnSpec struct {
	Name string
	Kind Kind
}

// Codec (de)serializes Values into the JSON payload of the
// [len uint32 LE][payload] record shape a data-file page stores (the page
// adds the length prefix), preserving the schema's declared column order
// rather than Go map iteration order.
type Codec struct {
	columns []ColumnSpec
}

func NewCodec(columns []ColumnSpec) *Codec {
	return &Codec{columns: columns}
}

// Encode writes the on-disk shape: an ordered array of raw JSON values,
// positional against Codec.columns, with null for a column missing from row.
func (c *Codec) Encode(row Values) ([]byte, error) {
	raw := make([]json.RawMessage, len(c.columns))
	for i, col := range c.columns {
		v, ok := row[col.Name]
		if !ok {
			raw[i] = json.RawMessage("null")
			continue
		}
		b, err := v.MarshalJSON()
		if err != nil {
			return nil, dberrors.Validation("encode column " + col.Name).WithDetail("cause", err.Error())
		}
		raw[i] = b
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, dberrors.IO("marshal row", err)
	}
	return payload, nil
}

func (c *Codec) Decode(payload []byte) (Values, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, dberrors.IO("unmarshal row", err)
	}
	if len(raw) != len(c.columns) {
		return nil, dberrors.Validation("row column count mismatch")
	}
	out := make(Values, len(c.columns))
	for i, col := range c.columns {
		if string(raw[i]) == "null" {
			continue
		}
		v, err := DecodeAs(col.Kind, raw[i])
		if err != nil {
			return nil, err
		}
		out[col.Name] = v
	}
	return out, nil
}
