package converter

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/goccy/go-json"

	"github.com/TFMV/splitcheck/pkg/errors"
)

// jsonKind is the inferred kind of one JSON value.
type jsonKind uint8

const (
	jsonNull jsonKind = 1 << iota
	jsonBool
	jsonInt
	jsonFloat
	jsonString
	jsonNested
)

type jsonRow map[string]interface{}

// decodeJSON reads JSON Lines or a top-level JSON array of objects. Column
// order is the order keys are first seen.
func (d *Decoder) decodeJSON(ctx context.Context, data []byte) (*Decoded, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var (
		keys  []string
		kinds = make(map[string]jsonKind)
		rows  []jsonRow
	)
	add := func(rowKeys []string, row jsonRow) {
		for _, k := range rowKeys {
			if _, seen := kinds[k]; !seen {
				keys = append(keys, k)
			}
			kinds[k] |= kindOfJSON(row[k])
		}
		rows = append(rows, row)
	}

	isArray := bytes.HasPrefix(bytes.TrimSpace(data), []byte("["))
	if isArray {
		if _, err := dec.Token(); err != nil {
			return nil, errors.Conversion(err, "invalid JSON array")
		}
	}
	for {
		if isArray && !dec.More() {
			break
		}
		if len(rows)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, errors.CodeCanceled, "decoding interrupted")
			}
		}
		rowKeys, row, err := readObject(dec)
		if err == io.EOF && !isArray {
			break
		}
		if err != nil {
			return nil, errors.Conversion(err, "invalid JSON record %d", len(rows))
		}
		add(rowKeys, row)
	}

	fields := make([]arrow.Field, len(keys))
	for i, k := range keys {
		fields[i] = arrow.Field{Name: k, Type: arrowTypeForJSON(kinds[k]), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	out := &Decoded{Schema: schema}
	for start := 0; start < len(rows); start += d.chunkSize {
		end := start + d.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		rec, err := d.buildJSONRecord(schema, rows[start:end])
		if err != nil {
			out.Release()
			return nil, err
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

// readObject reads one object, returning its keys in document order.
func readObject(dec *json.Decoder) ([]string, jsonRow, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	row := make(jsonRow)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, dup := row[key]; !dup {
			keys = append(keys, key)
		}
		row[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, row, nil
}

func kindOfJSON(v interface{}) jsonKind {
	switch x := v.(type) {
	case nil:
		return jsonNull
	case bool:
		return jsonBool
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return jsonInt
		}
		return jsonFloat
	case string:
		return jsonString
	default:
		return jsonNested
	}
}

// arrowTypeForJSON picks the narrowest type every observed value fits in.
func arrowTypeForJSON(k jsonKind) arrow.DataType {
	k &^= jsonNull
	switch k {
	case jsonBool:
		return arrow.FixedWidthTypes.Boolean
	case jsonInt:
		return arrow.PrimitiveTypes.Int64
	case jsonFloat, jsonInt | jsonFloat:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

func (d *Decoder) buildJSONRecord(schema *arrow.Schema, rows []jsonRow) (arrow.Record, error) {
	b := array.NewRecordBuilder(d.alloc, schema)
	defer b.Release()

	for i, field := range schema.Fields() {
		fb := b.Field(i)
		for _, row := range rows {
			v, ok := row[field.Name]
			if !ok || v == nil {
				fb.AppendNull()
				continue
			}
			if err := appendJSONValue(fb, v); err != nil {
				return nil, errors.Conversion(err, "column %q", field.Name)
			}
		}
	}
	return b.NewRecord(), nil
}

func appendJSONValue(fb array.Builder, v interface{}) error {
	switch b := fb.(type) {
	case *array.BooleanBuilder:
		b.Append(v.(bool))
	case *array.Int64Builder:
		n, err := v.(json.Number).Int64()
		if err != nil {
			return err
		}
		b.Append(n)
	case *array.Float64Builder:
		f, err := v.(json.Number).Float64()
		if err != nil {
			return err
		}
		b.Append(f)
	case *array.StringBuilder:
		switch x := v.(type) {
		case string:
			b.Append(x)
		case json.Number:
			b.Append(x.String())
		default:
			raw, err := json.Marshal(x)
			if err != nil {
				return err
			}
			b.Append(string(raw))
		}
	default:
		return fmt.Errorf("unexpected builder %T", fb)
	}
	return nil
}
